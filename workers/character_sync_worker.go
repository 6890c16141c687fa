// workers/character_sync_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"combat-service/repository"
	"combat-service/services"
)

// CharacterSyncWorker keeps snapshots of every character in an open duel
// warm, so sweeper-side and reward-side reads don't each pay a remote
// round-trip. It authenticates with the service credential only — no user
// token exists in the background.
type CharacterSyncWorker struct {
	repo         *repository.DuelRepository
	gateway      *services.CharacterGateway
	interval     time.Duration
	initialDelay time.Duration
}

func NewCharacterSyncWorker(repo *repository.DuelRepository, gateway *services.CharacterGateway) *CharacterSyncWorker {
	return &CharacterSyncWorker{
		repo:         repo,
		gateway:      gateway,
		interval:     5 * time.Minute,
		initialDelay: 10 * time.Second,
	}
}

func (w *CharacterSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Character Sync Worker (character-service → snapshot cache)…")
	go w.run(ctx)
}

func (w *CharacterSyncWorker) run(ctx context.Context) {
	select {
	case <-time.After(w.initialDelay):
		w.syncActiveDuelCharacters(ctx)
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.syncActiveDuelCharacters(ctx)
		case <-ctx.Done():
			log.Println("⏹️ Character Sync Worker stopped")
			return
		}
	}
}

func (w *CharacterSyncWorker) syncActiveDuelCharacters(ctx context.Context) {
	characterIDs, err := w.repo.ListOpenDuelCharacterIDs(ctx)
	if err != nil {
		log.Printf("[SYNC] ❌ Failed to list open-duel characters: %v", err)
		return
	}
	if len(characterIDs) == 0 {
		return
	}

	synced := 0
	for _, characterID := range characterIDs {
		if _, err := w.gateway.SyncCharacter(ctx, characterID, ""); err != nil {
			log.Printf("[SYNC] ⚠️ Failed to sync character %s: %v", characterID, err)
			continue
		}
		synced++
	}
	log.Printf("[SYNC] ✅ Synced %d of %d character(s) from open duels", synced, len(characterIDs))
}
