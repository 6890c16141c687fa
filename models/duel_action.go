package models

import "time"

// Action kinds a participant may submit on their turn.
const (
	ActionAttack = "ATTACK"
	ActionCast   = "CAST"
	ActionHeal   = "HEAL"
)

// DuelAction is one accepted action in a duel's append-only log, ordered by
// timestamp. Rows are created once and never mutated or deleted. Damage and
// Heal are mutually exclusive — at most one is non-nil.
type DuelAction struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	DuelID      string `gorm:"index;not null" json:"duel_id"`
	CharacterID string `gorm:"index;not null" json:"character_id"`

	Action string `gorm:"type:varchar(8);not null;check:action IN ('ATTACK','CAST','HEAL')" json:"action"`

	Damage *int `json:"damage,omitempty"`
	Heal   *int `json:"heal,omitempty"`

	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
}
