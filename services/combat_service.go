// services/combat_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"combat-service/models"
	"combat-service/repository"

	"github.com/google/uuid"
)

const (
	duelTimeout = 5 * time.Minute
	turnTimeout = 30 * time.Second

	attackCooldown = 1 * time.Second
	castCooldown   = 2 * time.Second
	healCooldown   = 2 * time.Second

	duelHistoryLimit    = 20
	duelActionViewLimit = 50
)

func cooldownFor(actionType string) time.Duration {
	switch actionType {
	case models.ActionAttack:
		return attackCooldown
	case models.ActionCast:
		return castCooldown
	case models.ActionHeal:
		return healCooldown
	default:
		return 0
	}
}

// CombatService is the duel state machine. It validates and applies
// actions, advances turns, detects termination and hands out the post-duel
// reward. All duel mutation goes through the repository's conditional
// writes — concurrent requests against the same duel resolve to exactly one
// winner per state version.
type CombatService struct {
	repo     *repository.DuelRepository
	gateway  *CharacterGateway
	notifier *NotificationService
}

func NewCombatService(repo *repository.DuelRepository, gateway *CharacterGateway, notifier *NotificationService) *CombatService {
	return &CombatService{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
	}
}

// HealthPair is the duel-scoped health of both participants after an action.
type HealthPair struct {
	ChallengerHealth int `json:"challenger_health"`
	OpponentHealth   int `json:"opponent_health"`
}

// DuelResult is what an accepted action returns to the API layer.
type DuelResult struct {
	Duel       *models.Duel       `json:"duel"`
	Action     *models.DuelAction `json:"action"`
	Damage     int                `json:"damage,omitempty"`
	HealAmount int                `json:"heal_amount,omitempty"`
	NewHealth  HealthPair         `json:"new_health"`
	IsFinished bool               `json:"is_finished"`
	WinnerID   *string            `json:"winner_id,omitempty"`
	LoserID    *string            `json:"loser_id,omitempty"`
}

// InitiateDuel creates a PENDING duel between two distinct, existing
// characters, neither of which may already be in an open duel. The
// challenger takes the first turn.
func (s *CombatService) InitiateDuel(ctx context.Context, challengerID, opponentID, token string) (*models.Duel, error) {
	if challengerID == opponentID {
		return nil, NewCombatError(CodeInvalidArgument, "cannot duel against yourself")
	}

	challenger, err := s.gateway.SyncCharacter(ctx, challengerID, token)
	if err != nil {
		return nil, err
	}
	opponent, err := s.gateway.SyncCharacter(ctx, opponentID, token)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	turnExpiresAt := now.Add(turnTimeout)
	currentTurn := challengerID

	duel := &models.Duel{
		ID:               uuid.NewString(),
		ChallengerID:     challengerID,
		OpponentID:       opponentID,
		Status:           models.DuelStatusPending,
		ChallengerHealth: challenger.Health,
		OpponentHealth:   opponent.Health,
		CurrentTurn:      &currentTurn,
		TurnExpiresAt:    &turnExpiresAt,
		LastActionAt:     now,
		StartedAt:        now,
	}

	if err := s.repo.CreateIfUnoccupied(ctx, duel); err != nil {
		if errors.Is(err, repository.ErrCharacterBusy) {
			return nil, NewCombatError(CodeConflict, "one or both characters are already in a duel")
		}
		return nil, fmt.Errorf("failed to create duel: %w", err)
	}

	log.Printf("[COMBAT] ⚔️ Duel %s created: %s vs %s (health %d/%d)",
		duel.ID, challengerID, opponentID, duel.ChallengerHealth, duel.OpponentHealth)
	return duel, nil
}

// PerformAttack applies an ATTACK action for the acting character.
func (s *CombatService) PerformAttack(ctx context.Context, duelID, characterID, token string) (*DuelResult, error) {
	return s.performAction(ctx, duelID, characterID, token, models.ActionAttack)
}

// PerformCast applies a CAST action for the acting character.
func (s *CombatService) PerformCast(ctx context.Context, duelID, characterID, token string) (*DuelResult, error) {
	return s.performAction(ctx, duelID, characterID, token, models.ActionCast)
}

// PerformHeal applies a HEAL action for the acting character.
func (s *CombatService) PerformHeal(ctx context.Context, duelID, characterID, token string) (*DuelResult, error) {
	return s.performAction(ctx, duelID, characterID, token, models.ActionHeal)
}

func (s *CombatService) performAction(ctx context.Context, duelID, characterID, token, actionType string) (*DuelResult, error) {
	// Lazy hard-timeout check, idempotent with the background sweeps.
	if _, err := s.ResolveDuelTimeout(ctx, duelID); err != nil {
		log.Printf("[COMBAT] ⚠️ Timeout resolution failed for duel %s: %v", duelID, err)
	}

	duel, err := s.repo.FindByID(ctx, duelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewCombatError(CodeNotFound, "duel not found")
		}
		return nil, fmt.Errorf("failed to load duel %s: %w", duelID, err)
	}

	if duel.Status != models.DuelStatusPending && duel.Status != models.DuelStatusActive {
		return nil, NewCombatError(CodeInvalidState, fmt.Sprintf("duel is %s", strings.ToLower(duel.Status)))
	}
	if !duel.IsParticipant(characterID) {
		return nil, NewCombatError(CodeForbidden, "character is not a participant in this duel")
	}
	if duel.CurrentTurn == nil || *duel.CurrentTurn != characterID {
		return nil, NewCombatError(CodeInvalidState, "not your turn")
	}

	now := time.Now()

	// Expired turn is forfeited: the turn flips to the other participant
	// and the caller has to retry on their next window.
	if duel.TurnExpiresAt != nil && now.After(*duel.TurnExpiresAt) {
		next := duel.OtherParticipant(characterID)
		if err := s.repo.UpdateTurn(ctx, duel.ID, duel.Version, next, now.Add(turnTimeout)); err != nil {
			if errors.Is(err, repository.ErrStaleDuel) {
				return nil, NewCombatError(CodeConflict, "duel was modified concurrently, retry")
			}
			return nil, fmt.Errorf("failed to forfeit expired turn: %w", err)
		}
		log.Printf("[COMBAT] ⏳ Turn expired in duel %s, switching to %s", duel.ID, next)
		return nil, NewCombatError(CodeInvalidState, "turn expired")
	}

	if elapsed := now.Sub(duel.LastActionAt); elapsed < cooldownFor(actionType) {
		return nil, NewCombatError(CodeRateLimited, fmt.Sprintf("%s is on cooldown", strings.ToLower(actionType)))
	}

	actor, err := s.gateway.GetCharacterWithItems(ctx, characterID, token)
	if err != nil {
		return nil, err
	}
	target, err := s.gateway.GetCharacterWithItems(ctx, duel.OtherParticipant(characterID), token)
	if err != nil {
		return nil, err
	}

	actingIsChallenger := duel.ChallengerID == characterID
	newChallengerHealth := duel.ChallengerHealth
	newOpponentHealth := duel.OpponentHealth
	damage := 0
	healAmount := 0

	switch actionType {
	case models.ActionAttack, models.ActionCast:
		if actionType == models.ActionAttack {
			damage = actor.Stats.TotalStrength + actor.Stats.TotalAgility
		} else {
			damage = 2 * actor.Stats.TotalIntelligence
		}
		if actingIsChallenger {
			newOpponentHealth = max(0, duel.OpponentHealth-damage)
		} else {
			newChallengerHealth = max(0, duel.ChallengerHealth-damage)
		}
	case models.ActionHeal:
		healAmount = actor.Stats.TotalFaith
		if actingIsChallenger {
			newChallengerHealth = min(actor.EffectiveMaxHealth(), duel.ChallengerHealth+healAmount)
		} else {
			newOpponentHealth = min(actor.EffectiveMaxHealth(), duel.OpponentHealth+healAmount)
		}
	default:
		return nil, NewCombatError(CodeInvalidArgument, fmt.Sprintf("unknown action %q", actionType))
	}

	isFinished := newChallengerHealth <= 0 || newOpponentHealth <= 0
	finalStatus := models.DuelStatusActive
	var winnerID, loserID *string

	if isFinished {
		finalStatus = models.DuelStatusFinished
		switch {
		case newChallengerHealth <= 0 && newOpponentHealth <= 0:
			// Double knockout: finished with no winner.
		case newChallengerHealth <= 0:
			winnerID, loserID = strPtr(duel.OpponentID), strPtr(duel.ChallengerID)
		default:
			winnerID, loserID = strPtr(duel.ChallengerID), strPtr(duel.OpponentID)
		}
	}

	action := &models.DuelAction{
		ID:          uuid.NewString(),
		DuelID:      duel.ID,
		CharacterID: characterID,
		Action:      actionType,
		Timestamp:   now,
	}
	if damage > 0 {
		action.Damage = &damage
	}
	if healAmount > 0 {
		action.Heal = &healAmount
	}

	upd := repository.DuelUpdate{
		Status:           finalStatus,
		ChallengerHealth: newChallengerHealth,
		OpponentHealth:   newOpponentHealth,
		LastActionAt:     now,
		WinnerID:         winnerID,
		LoserID:          loserID,
	}
	if isFinished {
		finishedAt := now
		upd.FinishedAt = &finishedAt
	} else {
		next := duel.OtherParticipant(characterID)
		nextExpiry := now.Add(turnTimeout)
		upd.CurrentTurn = &next
		upd.TurnExpiresAt = &nextExpiry
	}

	if err := s.repo.ApplyAction(ctx, duel.ID, duel.Version, upd, action); err != nil {
		if errors.Is(err, repository.ErrStaleDuel) {
			return nil, NewCombatError(CodeConflict, "duel was modified concurrently, retry")
		}
		return nil, fmt.Errorf("failed to persist %s action: %w", actionType, err)
	}

	duel.Status = finalStatus
	duel.ChallengerHealth = newChallengerHealth
	duel.OpponentHealth = newOpponentHealth
	duel.CurrentTurn = upd.CurrentTurn
	duel.TurnExpiresAt = upd.TurnExpiresAt
	duel.LastActionAt = now
	duel.FinishedAt = upd.FinishedAt
	duel.WinnerID = winnerID
	duel.LoserID = loserID
	duel.Version++

	log.Printf("[COMBAT] %s by %s in duel %s: damage=%d heal=%d health=%d/%d target=%s",
		actionType, characterID, duel.ID, damage, healAmount,
		newChallengerHealth, newOpponentHealth, target.ID)

	// The outcome is committed; the reward is strictly best-effort from
	// here and must never fail or roll back the action.
	if isFinished {
		s.grantVictoryReward(ctx, duel.ID, winnerID, loserID)
	}

	return &DuelResult{
		Duel:       duel,
		Action:     action,
		Damage:     damage,
		HealAmount: healAmount,
		NewHealth: HealthPair{
			ChallengerHealth: newChallengerHealth,
			OpponentHealth:   newOpponentHealth,
		},
		IsFinished: isFinished,
		WinnerID:   winnerID,
		LoserID:    loserID,
	}, nil
}

// grantVictoryReward moves one random item from the loser to the winner and
// notifies the Character Service. Every failure is logged and swallowed.
func (s *CombatService) grantVictoryReward(ctx context.Context, duelID string, winnerID, loserID *string) {
	if winnerID == nil || loserID == nil {
		// Double knockout — nothing to transfer, still announce the end.
		s.notifier.Notify(ctx, CombatNotification{
			Type:      NotificationDuelFinished,
			DuelID:    duelID,
			Timestamp: time.Now(),
		})
		return
	}

	item := s.gateway.GetRandomItemFromCharacter(ctx, *loserID)
	if item == nil {
		log.Printf("[COMBAT] 🎁 No items to transfer from %s after duel %s", *loserID, duelID)
		s.notifier.Notify(ctx, CombatNotification{
			Type:      NotificationDuelFinished,
			DuelID:    duelID,
			WinnerID:  winnerID,
			LoserID:   loserID,
			Timestamp: time.Now(),
		})
		return
	}

	if err := s.gateway.TransferItem(ctx, *loserID, *winnerID, item.ItemID, 1); err != nil {
		log.Printf("[COMBAT] ⚠️ Item transfer after duel %s failed: %v", duelID, err)
		return
	}

	s.notifier.Notify(ctx, CombatNotification{
		Type:      NotificationItemTransfer,
		DuelID:    duelID,
		WinnerID:  winnerID,
		LoserID:   loserID,
		ItemID:    &item.ItemID,
		Timestamp: time.Now(),
	})
}

// ResolveDuelTimeout force-transitions an ACTIVE duel to DRAW once it has
// outlived the hard duel limit. Idempotent with the background sweeps:
// whichever writer observes ACTIVE first performs the transition.
func (s *CombatService) ResolveDuelTimeout(ctx context.Context, duelID string) (bool, error) {
	duel, err := s.repo.FindByID(ctx, duelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if duel.Status != models.DuelStatusActive || time.Since(duel.StartedAt) <= duelTimeout {
		return false, nil
	}

	flipped, err := s.repo.MarkDraw(ctx, duel.ID, time.Now())
	if err != nil {
		return false, err
	}
	if flipped {
		log.Printf("[COMBAT] ⏰ Duel %s ended as DRAW after exceeding the %s limit", duel.ID, duelTimeout)
	}
	return flipped, nil
}

// GetDuelByID returns a duel with its recent action log. The requesting
// user must own one of the participants.
func (s *CombatService) GetDuelByID(ctx context.Context, duelID, userID, token string) (*models.Duel, error) {
	if _, err := s.ResolveDuelTimeout(ctx, duelID); err != nil {
		log.Printf("[COMBAT] ⚠️ Timeout resolution failed for duel %s: %v", duelID, err)
	}

	duel, err := s.repo.FindWithActions(ctx, duelID, duelActionViewLimit)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewCombatError(CodeNotFound, "duel not found")
		}
		return nil, fmt.Errorf("failed to load duel %s: %w", duelID, err)
	}

	if !s.userMayViewDuel(ctx, duel, userID, token) {
		return nil, NewCombatError(CodeForbidden, "not authorized to view this duel")
	}
	return duel, nil
}

// userMayViewDuel accepts the user when they are a participant directly or
// own one of the participant characters. An empty user id is always
// denied, even though the middleware rejects it earlier. Ownership lookups
// go through the gateway cache; a lookup failure just means no match.
func (s *CombatService) userMayViewDuel(ctx context.Context, duel *models.Duel, userID, token string) bool {
	if userID == "" {
		return false
	}
	if duel.IsParticipant(userID) {
		return true
	}
	for _, characterID := range []string{duel.ChallengerID, duel.OpponentID} {
		snapshot, err := s.gateway.GetCharacterWithItems(ctx, characterID, token)
		if err == nil && snapshot.CreatedBy == userID {
			return true
		}
	}
	return false
}

// GetUserDuels returns the character's duel history, newest first.
func (s *CombatService) GetUserDuels(ctx context.Context, characterID string) ([]models.Duel, error) {
	duels, err := s.repo.ListForCharacter(ctx, characterID, duelHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list duels for %s: %w", characterID, err)
	}
	return duels, nil
}

// SweepExpiredDuels transitions every ACTIVE duel past the hard time limit
// to DRAW. Returns how many duels this sweep actually flipped; racing
// sweeps each count only the transitions they won.
func (s *CombatService) SweepExpiredDuels(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-duelTimeout)
	duels, err := s.repo.FindTimedOut(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to query timed-out duels: %w", err)
	}

	count := 0
	for _, duel := range duels {
		flipped, err := s.repo.MarkDraw(ctx, duel.ID, time.Now())
		if err != nil {
			log.Printf("[SWEEP] ❌ Failed to draw duel %s: %v", duel.ID, err)
			continue
		}
		if !flipped {
			continue
		}
		count++
		log.Printf("[SWEEP] ⏰ Duel %s timed out and ended as DRAW", duel.ID)
		s.notifier.Notify(ctx, CombatNotification{
			Type:      NotificationDuelFinished,
			DuelID:    duel.ID,
			Timestamp: time.Now(),
		})
	}
	return count, nil
}

func strPtr(s string) *string {
	return &s
}
