// services/character_gateway.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"combat-service/models"
)

const (
	characterRequestTimeout = 5 * time.Second
	snapshotTTL             = 5 * time.Minute
)

// CharacterGateway talks to the Character Service, the canonical owner of
// character data. Every call carries the service-to-service credential; a
// delegated user token is passed explicitly per call — there is no ambient
// process-wide token.
type CharacterGateway struct {
	BaseURL      string
	ServiceToken string
	Client       *http.Client

	cache *SnapshotCache
}

func NewCharacterGateway(baseURL, serviceToken string) *CharacterGateway {
	return &CharacterGateway{
		BaseURL:      baseURL,
		ServiceToken: serviceToken,
		Client: &http.Client{
			Timeout: characterRequestTimeout,
		},
		cache: NewSnapshotCache(snapshotTTL),
	}
}

// SyncCharacter fetches a fresh snapshot from the Character Service and
// caches it. token is the caller's delegated credential; background callers
// pass "" and authenticate with the service token alone.
func (g *CharacterGateway) SyncCharacter(ctx context.Context, characterID, token string) (*models.CharacterSnapshot, error) {
	url := fmt.Sprintf("%s/api/character/%s", g.BaseURL, characterID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, WrapCombatError(CodeUnavailable, "failed to build character service request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", g.ServiceToken)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		log.Printf("[GATEWAY] ❌ Character service unreachable for %s: %v", characterID, err)
		return nil, WrapCombatError(CodeUnavailable, "character service unreachable", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Whatever we knew about this character may have been fetched with
		// the now-rejected credential.
		g.cache.Invalidate(characterID)
		log.Printf("[GATEWAY] ❌ Character service rejected credentials (%d) for %s", resp.StatusCode, characterID)
		return nil, NewCombatError(CodeUnauthorized, "character service rejected credentials")
	case resp.StatusCode == http.StatusNotFound:
		return nil, NewCombatError(CodeNotFound, fmt.Sprintf("character %s not found", characterID))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("[GATEWAY] ❌ Character service returned %d for %s: %s", resp.StatusCode, characterID, string(body))
		return nil, NewCombatError(CodeUnavailable, fmt.Sprintf("character service returned %d", resp.StatusCode))
	}

	var response struct {
		Success bool                     `json:"success"`
		Data    models.CharacterSnapshot `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, WrapCombatError(CodeUnavailable, "failed to decode character service response", err)
	}
	if !response.Success || response.Data.ID == "" {
		return nil, NewCombatError(CodeNotFound, fmt.Sprintf("character %s not found", characterID))
	}

	snapshot := response.Data
	g.cache.Set(characterID, &snapshot)
	return &snapshot, nil
}

// GetCharacterWithItems is the cache-first read-through over SyncCharacter.
func (g *CharacterGateway) GetCharacterWithItems(ctx context.Context, characterID, token string) (*models.CharacterSnapshot, error) {
	if snapshot, ok := g.cache.Get(characterID); ok {
		return snapshot, nil
	}
	return g.SyncCharacter(ctx, characterID, token)
}

// GetRandomItemFromCharacter picks one item uniformly from the character's
// inventory. Returns nil on an empty inventory or any resolution failure —
// the reward transfer is optional and must never abort a duel outcome.
func (g *CharacterGateway) GetRandomItemFromCharacter(ctx context.Context, characterID string) *models.CharacterItem {
	snapshot, err := g.GetCharacterWithItems(ctx, characterID, "")
	if err != nil {
		log.Printf("[GATEWAY] ⚠️ Could not resolve character %s for item pick: %v", characterID, err)
		return nil
	}
	if len(snapshot.Items) == 0 {
		return nil
	}
	item := snapshot.Items[rand.Intn(len(snapshot.Items))]
	return &item
}

// TransferItem moves an item between characters through the Character
// Service's gift interface, then invalidates both cached snapshots so the
// next read observes the new inventories.
func (g *CharacterGateway) TransferItem(ctx context.Context, fromCharacterID, toCharacterID string, itemID int64, quantity int) error {
	payload := map[string]interface{}{
		"fromCharacterId": fromCharacterID,
		"toCharacterId":   toCharacterID,
		"itemId":          itemID,
		"quantity":        quantity,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return WrapCombatError(CodeUnavailable, "failed to encode gift request", err)
	}

	url := fmt.Sprintf("%s/api/items/gift", g.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return WrapCombatError(CodeUnavailable, "failed to build gift request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", g.ServiceToken)

	resp, err := g.Client.Do(req)
	if err != nil {
		return WrapCombatError(CodeUnavailable, "character service unreachable", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return NewCombatError(CodeUnavailable,
			fmt.Sprintf("item gift failed with status %d: %s", resp.StatusCode, string(respBody)))
	}

	g.cache.Invalidate(fromCharacterID)
	g.cache.Invalidate(toCharacterID)
	log.Printf("[GATEWAY] 🎁 Transferred item %d from %s to %s", itemID, fromCharacterID, toCharacterID)
	return nil
}

// Invalidate drops a character's cached snapshot after an external actor
// reports a mutation.
func (g *CharacterGateway) Invalidate(characterID string) {
	g.cache.Invalidate(characterID)
}
