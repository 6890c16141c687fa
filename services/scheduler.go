// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartSweepScheduler runs the batch duel sweep every minute, independent
// of the 30-second worker tick. Every transition is a status-guarded
// conditional write, so overlapping sweeps are harmless.
func (s *CombatService) StartSweepScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: draw out ACTIVE duels past the hard time limit
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			count, err := s.SweepExpiredDuels(context.Background())
			if err != nil {
				log.Printf("[Scheduler] Sweep error: %v", err)
				return
			}
			if count > 0 {
				log.Printf("⏰ [Scheduler] Ended %d duel(s) due to timeout", count)
			}
		}),
	)
}
