package models

import "time"

// Duel statuses. A duel is PENDING until the first accepted action, then
// ACTIVE. FINISHED and DRAW are terminal and never change afterwards.
const (
	DuelStatusPending  = "PENDING"
	DuelStatusActive   = "ACTIVE"
	DuelStatusFinished = "FINISHED"
	DuelStatusDraw     = "DRAW"
)

// Duel is one bounded contest between two characters. Health values here are
// authoritative only within the duel — they never write back to the
// character's permanent health on the Character Service.
type Duel struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengerID string `gorm:"index;not null" json:"challenger_id"`
	OpponentID   string `gorm:"index;not null" json:"opponent_id"`

	Status string `gorm:"type:varchar(16);index;not null;check:status IN ('PENDING','ACTIVE','FINISHED','DRAW')" json:"status"`

	ChallengerHealth int `json:"challenger_health"`
	OpponentHealth   int `json:"opponent_health"`

	// CurrentTurn holds the character id allowed to act; nil once terminal.
	CurrentTurn   *string    `json:"current_turn"`
	TurnExpiresAt *time.Time `json:"turn_expires_at"`
	LastActionAt  time.Time  `json:"last_action_at"`

	// Both nil on a DRAW or a double knockout.
	WinnerID *string `json:"winner_id,omitempty"`
	LoserID  *string `json:"loser_id,omitempty"`

	StartedAt  time.Time  `gorm:"index" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// ArchivedAt is stamped once the archive worker has exported the duel
	// to object storage.
	ArchivedAt *time.Time `gorm:"index" json:"-"`

	// Version guards every conditional update. A write only lands if the
	// row still carries the version it was read at; writers that lose the
	// race get zero affected rows and must retry.
	Version int `gorm:"not null;default:0" json:"-"`

	Actions []DuelAction `gorm:"foreignKey:DuelID" json:"actions,omitempty"`
}

// IsTerminal reports whether the duel reached FINISHED or DRAW.
func (d *Duel) IsTerminal() bool {
	return d.Status == DuelStatusFinished || d.Status == DuelStatusDraw
}

// IsParticipant reports whether characterID is one of the two fighters.
func (d *Duel) IsParticipant(characterID string) bool {
	return d.ChallengerID == characterID || d.OpponentID == characterID
}

// OtherParticipant returns the participant opposite to characterID.
func (d *Duel) OtherParticipant(characterID string) string {
	if d.ChallengerID == characterID {
		return d.OpponentID
	}
	return d.ChallengerID
}
