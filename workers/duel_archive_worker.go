// workers/duel_archive_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"combat-service/models"
	"combat-service/repository"
	"combat-service/utils"
)

const archiveBatchSize = 20

// DuelArchiveWorker exports finished duels — record plus full action log —
// as JSON objects to R2, then stamps them archived. Terminal duels are
// immutable, so an export is never stale.
type DuelArchiveWorker struct {
	repo     *repository.DuelRepository
	interval time.Duration
}

func NewDuelArchiveWorker(repo *repository.DuelRepository) *DuelArchiveWorker {
	return &DuelArchiveWorker{
		repo:     repo,
		interval: 5 * time.Minute,
	}
}

func (w *DuelArchiveWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Duel Archive Worker (finished duels → R2)…")
	go w.run(ctx)
}

func (w *DuelArchiveWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.archiveBatch(ctx)
		case <-ctx.Done():
			log.Println("⏹️ Duel Archive Worker stopped")
			return
		}
	}
}

func (w *DuelArchiveWorker) archiveBatch(ctx context.Context) {
	duels, err := w.repo.ListUnarchivedFinished(ctx, archiveBatchSize)
	if err != nil {
		log.Printf("[ARCHIVE] ❌ Failed to list unarchived duels: %v", err)
		return
	}
	if len(duels) == 0 {
		return
	}

	archived := 0
	for i := range duels {
		if err := w.archiveDuel(ctx, &duels[i]); err != nil {
			log.Printf("[ARCHIVE] ⚠️ Failed to archive duel %s: %v", duels[i].ID, err)
			continue
		}
		archived++
	}
	log.Printf("[ARCHIVE] ✅ Archived %d of %d finished duel(s)", archived, len(duels))
}

func (w *DuelArchiveWorker) archiveDuel(ctx context.Context, duel *models.Duel) error {
	data, err := json.MarshalIndent(duel, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode duel: %w", err)
	}

	finishedAt := duel.StartedAt
	if duel.FinishedAt != nil {
		finishedAt = *duel.FinishedAt
	}
	key := fmt.Sprintf("duels/%s/%s.json", finishedAt.UTC().Format("2006/01/02"), duel.ID)

	if _, err := utils.UploadBytesToR2(ctx, key, data, "application/json"); err != nil {
		return err
	}
	return w.repo.MarkArchived(ctx, duel.ID, time.Now())
}
