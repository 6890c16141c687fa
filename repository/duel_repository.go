// repository/duel_repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"combat-service/models"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a duel id resolves to nothing.
	ErrNotFound = errors.New("duel not found")
	// ErrStaleDuel is returned when a conditional update finds the row was
	// changed between read and write. Callers should re-read and retry.
	ErrStaleDuel = errors.New("duel was modified concurrently")
	// ErrCharacterBusy is returned when a participant already has an open duel.
	ErrCharacterBusy = errors.New("character is already in an open duel")
)

// Statuses that count as "occupied" for the one-open-duel-per-character rule.
var openStatuses = []string{models.DuelStatusPending, models.DuelStatusActive}

type DuelRepository struct {
	DB *gorm.DB
}

func NewDuelRepository(db *gorm.DB) *DuelRepository {
	return &DuelRepository{DB: db}
}

// CreateIfUnoccupied inserts the duel only if neither participant is in a
// PENDING or ACTIVE duel. Check and insert share one transaction; on
// Postgres an advisory xact lock per participant serializes concurrent
// initiates for the same characters (SQLite serializes writers on its own).
func (r *DuelRepository) CreateIfUnoccupied(ctx context.Context, duel *models.Duel) error {
	participants := []string{duel.ChallengerID, duel.OpponentID}
	if participants[0] > participants[1] {
		// Lock in a stable order to avoid deadlocks between mirrored pairs.
		participants[0], participants[1] = participants[1], participants[0]
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			for _, id := range participants {
				if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", id).Error; err != nil {
					return err
				}
			}
		}

		var count int64
		err := tx.Model(&models.Duel{}).
			Where("status IN ?", openStatuses).
			Where("challenger_id IN ? OR opponent_id IN ?", participants, participants).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrCharacterBusy
		}

		return tx.Create(duel).Error
	})
}

// FindByID loads a duel without its action log.
func (r *DuelRepository) FindByID(ctx context.Context, duelID string) (*models.Duel, error) {
	var duel models.Duel
	if err := r.DB.WithContext(ctx).First(&duel, "id = ?", duelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &duel, nil
}

// FindWithActions loads a duel together with its action log in timestamp
// order, capped at actionLimit entries.
func (r *DuelRepository) FindWithActions(ctx context.Context, duelID string, actionLimit int) (*models.Duel, error) {
	var duel models.Duel
	err := r.DB.WithContext(ctx).
		Preload("Actions", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC").Limit(actionLimit)
		}).
		First(&duel, "id = ?", duelID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &duel, nil
}

// ListForCharacter returns the character's most recent duels, newest first.
func (r *DuelRepository) ListForCharacter(ctx context.Context, characterID string, limit int) ([]models.Duel, error) {
	var duels []models.Duel
	err := r.DB.WithContext(ctx).
		Preload("Actions", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp DESC")
		}).
		Where("challenger_id = ? OR opponent_id = ?", characterID, characterID).
		Order("started_at DESC").
		Limit(limit).
		Find(&duels).Error
	if err != nil {
		return nil, err
	}
	return duels, nil
}

// DuelUpdate carries the full post-action state of a duel. Applied as a
// single conditional write so the whole effect lands or nothing does.
type DuelUpdate struct {
	Status           string
	ChallengerHealth int
	OpponentHealth   int
	CurrentTurn      *string
	TurnExpiresAt    *time.Time
	LastActionAt     time.Time
	FinishedAt       *time.Time
	WinnerID         *string
	LoserID          *string
}

// ApplyAction persists an accepted action: the duel update and the log
// append share one transaction, guarded by the version the engine read.
// A concurrent writer in between yields ErrStaleDuel and no partial state.
func (r *DuelRepository) ApplyAction(ctx context.Context, duelID string, expectedVersion int, upd DuelUpdate, action *models.DuelAction) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Duel{}).
			Where("id = ? AND version = ?", duelID, expectedVersion).
			Updates(map[string]interface{}{
				"status":            upd.Status,
				"challenger_health": upd.ChallengerHealth,
				"opponent_health":   upd.OpponentHealth,
				"current_turn":      upd.CurrentTurn,
				"turn_expires_at":   upd.TurnExpiresAt,
				"last_action_at":    upd.LastActionAt,
				"finished_at":       upd.FinishedAt,
				"winner_id":         upd.WinnerID,
				"loser_id":          upd.LoserID,
				"version":           expectedVersion + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleDuel
		}
		return tx.Create(action).Error
	})
}

// UpdateTurn flips the turn to nextTurn after a forfeit, guarded by the
// version the caller read.
func (r *DuelRepository) UpdateTurn(ctx context.Context, duelID string, expectedVersion int, nextTurn string, turnExpiresAt time.Time) error {
	res := r.DB.WithContext(ctx).Model(&models.Duel{}).
		Where("id = ? AND version = ?", duelID, expectedVersion).
		Updates(map[string]interface{}{
			"current_turn":    nextTurn,
			"turn_expires_at": turnExpiresAt,
			"version":         expectedVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleDuel
	}
	return nil
}

// MarkDraw force-finishes an ACTIVE duel as DRAW with no winner or loser.
// Status-guarded: whichever writer observes ACTIVE first wins, later
// writers see zero affected rows and report false. Safe to race between
// the sweeper tick, the scheduled sweep and the lazy per-request check.
func (r *DuelRepository) MarkDraw(ctx context.Context, duelID string, finishedAt time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Duel{}).
		Where("id = ? AND status = ?", duelID, models.DuelStatusActive).
		Updates(map[string]interface{}{
			"status":          models.DuelStatusDraw,
			"finished_at":     finishedAt,
			"current_turn":    nil,
			"turn_expires_at": nil,
			"winner_id":       nil,
			"loser_id":        nil,
			"version":         gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindTimedOut returns ACTIVE duels started before the cutoff.
func (r *DuelRepository) FindTimedOut(ctx context.Context, startedBefore time.Time) ([]models.Duel, error) {
	var duels []models.Duel
	err := r.DB.WithContext(ctx).
		Where("status = ? AND started_at < ?", models.DuelStatusActive, startedBefore).
		Find(&duels).Error
	if err != nil {
		return nil, err
	}
	return duels, nil
}

// ListOpenDuelCharacterIDs returns every character participating in a
// PENDING or ACTIVE duel, deduplicated.
func (r *DuelRepository) ListOpenDuelCharacterIDs(ctx context.Context) ([]string, error) {
	var duels []models.Duel
	err := r.DB.WithContext(ctx).
		Select("challenger_id", "opponent_id").
		Where("status IN ?", openStatuses).
		Find(&duels).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(duels)*2)
	ids := make([]string, 0, len(duels)*2)
	for _, d := range duels {
		for _, id := range []string{d.ChallengerID, d.OpponentID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// ListUnarchivedFinished returns terminal duels the archive worker has not
// exported yet, oldest first, with their full action logs.
func (r *DuelRepository) ListUnarchivedFinished(ctx context.Context, limit int) ([]models.Duel, error) {
	var duels []models.Duel
	err := r.DB.WithContext(ctx).
		Preload("Actions", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC")
		}).
		Where("status IN ? AND archived_at IS NULL", []string{models.DuelStatusFinished, models.DuelStatusDraw}).
		Order("finished_at ASC").
		Limit(limit).
		Find(&duels).Error
	if err != nil {
		return nil, err
	}
	return duels, nil
}

// MarkArchived stamps a duel as exported. Operational metadata only — the
// duel row itself is terminal and immutable by this point.
func (r *DuelRepository) MarkArchived(ctx context.Context, duelID string, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&models.Duel{}).
		Where("id = ?", duelID).
		Update("archived_at", at).Error
}
