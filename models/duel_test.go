package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDuel_IsTerminal(t *testing.T) {
	assert.False(t, (&Duel{Status: DuelStatusPending}).IsTerminal())
	assert.False(t, (&Duel{Status: DuelStatusActive}).IsTerminal())
	assert.True(t, (&Duel{Status: DuelStatusFinished}).IsTerminal())
	assert.True(t, (&Duel{Status: DuelStatusDraw}).IsTerminal())
}

func TestDuel_Participants(t *testing.T) {
	d := &Duel{ChallengerID: "char-1", OpponentID: "char-2"}

	assert.True(t, d.IsParticipant("char-1"))
	assert.True(t, d.IsParticipant("char-2"))
	assert.False(t, d.IsParticipant("char-3"))

	assert.Equal(t, "char-2", d.OtherParticipant("char-1"))
	assert.Equal(t, "char-1", d.OtherParticipant("char-2"))
}

func TestCharacterSnapshot_EffectiveMaxHealth(t *testing.T) {
	assert.Equal(t, 150, (&CharacterSnapshot{MaxHealth: 150}).EffectiveMaxHealth())

	// Remote services that omit maxHealth fall back to 100.
	assert.Equal(t, 100, (&CharacterSnapshot{}).EffectiveMaxHealth())
}
