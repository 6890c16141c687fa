// workers/duel_sweeper.go
package workers

import (
	"context"
	"log"
	"time"

	"combat-service/services"
)

// DuelSweeper force-resolves duels that outlived their hard time limit. It
// runs independently of request traffic; the per-request lazy check and the
// minute-level scheduled sweep cover the same ground, and all three race
// safely through the repository's status-guarded writes.
type DuelSweeper struct {
	combat   *services.CombatService
	interval time.Duration
}

func NewDuelSweeper(combat *services.CombatService) *DuelSweeper {
	return &DuelSweeper{
		combat:   combat,
		interval: 30 * time.Second,
	}
}

func (w *DuelSweeper) Start(ctx context.Context) {
	log.Println("🔁 Starting Duel Timeout Sweeper…")
	go w.run(ctx)
}

func (w *DuelSweeper) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			count, err := w.combat.SweepExpiredDuels(ctx)
			if err != nil {
				log.Printf("[SWEEP] ❌ Sweep failed: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("[SWEEP] ⏰ Ended %d duel(s) due to timeout", count)
			}
		case <-ctx.Done():
			log.Println("⏹️ Duel Timeout Sweeper stopped")
			return
		}
	}
}
