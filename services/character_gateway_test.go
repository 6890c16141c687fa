package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"combat-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func characterJSON(id string) string {
	return fmt.Sprintf(`{
		"success": true,
		"data": {
			"id": %q,
			"name": "Fighter",
			"createdBy": "user-1",
			"health": 120,
			"maxHealth": 150,
			"stats": {"totalStrength": 15, "totalAgility": 12, "totalIntelligence": 8, "totalFaith": 10},
			"items": [{"itemId": 42, "quantity": 1}]
		}
	}`, id)
}

func TestCharacterGateway_SyncCharacter(t *testing.T) {
	var gotServiceToken, gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/character/char-1", r.URL.Path)
		gotServiceToken = r.Header.Get("X-Service-Token")
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, characterJSON("char-1"))
	}))
	defer server.Close()

	g := NewCharacterGateway(server.URL, "svc-token")
	snapshot, err := g.SyncCharacter(context.Background(), "char-1", "user-jwt")
	require.NoError(t, err)

	assert.Equal(t, "svc-token", gotServiceToken)
	assert.Equal(t, "Bearer user-jwt", gotAuth)
	assert.Equal(t, "char-1", snapshot.ID)
	assert.Equal(t, "user-1", snapshot.CreatedBy)
	assert.Equal(t, 120, snapshot.Health)
	assert.Equal(t, 15, snapshot.Stats.TotalStrength)
	require.Len(t, snapshot.Items, 1)
	assert.Equal(t, int64(42), snapshot.Items[0].ItemID)
}

func TestCharacterGateway_GetCharacterWithItems_UsesCache(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, characterJSON("char-1"))
	}))
	defer server.Close()

	g := NewCharacterGateway(server.URL, "svc-token")

	// First read fetches, second is served from the cache.
	_, err := g.GetCharacterWithItems(context.Background(), "char-1", "")
	require.NoError(t, err)
	_, err = g.GetCharacterWithItems(context.Background(), "char-1", "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	// SyncCharacter always refetches.
	_, err = g.SyncCharacter(context.Background(), "char-1", "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCharacterGateway_SyncCharacter_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	g := NewCharacterGateway(server.URL, "svc-token")
	_, err := g.SyncCharacter(context.Background(), "ghost", "")
	assert.Equal(t, CodeNotFound, ErrorCode(err))
}

func TestCharacterGateway_SyncCharacter_RejectedCredentials(t *testing.T) {
	rejecting := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rejecting {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, characterJSON("char-1"))
	}))
	defer server.Close()

	g := NewCharacterGateway(server.URL, "svc-token")

	// Warm the cache, then make the remote start rejecting.
	_, err := g.SyncCharacter(context.Background(), "char-1", "good-token")
	require.NoError(t, err)
	rejecting = true

	_, err = g.SyncCharacter(context.Background(), "char-1", "bad-token")
	assert.Equal(t, CodeUnauthorized, ErrorCode(err))

	// A rejection also evicts whatever was cached under the old credential.
	_, ok := g.cache.Get("char-1")
	assert.False(t, ok, "cached snapshot should be invalidated on auth rejection")
}

func TestCharacterGateway_SyncCharacter_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	g := NewCharacterGateway(server.URL, "svc-token")
	_, err := g.SyncCharacter(context.Background(), "char-1", "")
	assert.Equal(t, CodeUnavailable, ErrorCode(err))
}

func TestCharacterGateway_GetRandomItemFromCharacter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true, "data": {
			"id": "char-1", "health": 100,
			"items": [{"itemId": 7, "quantity": 2}]
		}}`)
	}))
	defer server.Close()

	g := NewCharacterGateway(server.URL, "svc-token")
	item := g.GetRandomItemFromCharacter(context.Background(), "char-1")
	require.NotNil(t, item)
	assert.Equal(t, int64(7), item.ItemID)
}

func TestCharacterGateway_GetRandomItemFromCharacter_EmptyInventory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true, "data": {"id": "char-1", "health": 100, "items": []}}`)
	}))
	defer server.Close()

	g := NewCharacterGateway(server.URL, "svc-token")
	assert.Nil(t, g.GetRandomItemFromCharacter(context.Background(), "char-1"))

	// Resolution failure is also a nil, never an error.
	server.Close()
	g.cache.Invalidate("char-1")
	assert.Nil(t, g.GetRandomItemFromCharacter(context.Background(), "char-1"))
}

func TestCharacterGateway_TransferItem(t *testing.T) {
	var gift map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/items/gift":
			require.Equal(t, "svc-token", r.Header.Get("X-Service-Token"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gift))
			fmt.Fprint(w, `{"success": true}`)
		default:
			fmt.Fprint(w, characterJSON("char-1"))
		}
	}))
	defer server.Close()

	g := NewCharacterGateway(server.URL, "svc-token")

	// Warm both caches so the transfer has something to invalidate.
	g.cache.Set("loser", &models.CharacterSnapshot{ID: "loser"})
	g.cache.Set("winner", &models.CharacterSnapshot{ID: "winner"})

	err := g.TransferItem(context.Background(), "loser", "winner", 42, 1)
	require.NoError(t, err)

	assert.Equal(t, "loser", gift["fromCharacterId"])
	assert.Equal(t, "winner", gift["toCharacterId"])
	assert.Equal(t, float64(42), gift["itemId"])
	assert.Equal(t, float64(1), gift["quantity"])

	// Both sides' snapshots are stale after the transfer.
	_, ok := g.cache.Get("loser")
	assert.False(t, ok)
	_, ok = g.cache.Get("winner")
	assert.False(t, ok)
}

func TestCharacterGateway_TransferItem_RemoteFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	g := NewCharacterGateway(server.URL, "svc-token")
	err := g.TransferItem(context.Background(), "loser", "winner", 42, 1)
	assert.Equal(t, CodeUnavailable, ErrorCode(err))
}
