package models

// CharacterSnapshot mirrors the JSON the Character Service returns for a
// single character. It is a transient projection: owned by the character
// gateway's cache, never migrated or persisted here.
type CharacterSnapshot struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CreatedBy string          `json:"createdBy"`
	Health    int             `json:"health"`
	MaxHealth int             `json:"maxHealth"`
	Stats     CharacterStats  `json:"stats"`
	Items     []CharacterItem `json:"items"`
}

// CharacterStats carries the item-adjusted totals computed by the Character
// Service. These totals are the single source of truth for damage and heal
// math — base stats are never used directly.
type CharacterStats struct {
	TotalStrength     int `json:"totalStrength"`
	TotalAgility      int `json:"totalAgility"`
	TotalIntelligence int `json:"totalIntelligence"`
	TotalFaith        int `json:"totalFaith"`
}

// CharacterItem is one inventory entry, eligible for the post-duel reward
// transfer.
type CharacterItem struct {
	ItemID   int64 `json:"itemId"`
	Quantity int   `json:"quantity"`
}

// EffectiveMaxHealth falls back to 100 when the remote service omits the
// max health field.
func (c *CharacterSnapshot) EffectiveMaxHealth() int {
	if c.MaxHealth > 0 {
		return c.MaxHealth
	}
	return 100
}
