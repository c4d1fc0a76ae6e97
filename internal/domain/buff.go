package domain

// BuffType is a gameplay modifier category derived from owned property.
type BuffType string

const (
	// BuffHeal restores health to the losing actor after a match
	// (residential zone, "shelter").
	BuffHeal BuffType = "heal"
	// BuffWagerBoost multiplies the match wager, capped (commercial zone).
	BuffWagerBoost BuffType = "wager_boost"
	// BuffInsight grants an information advantage during play (civic zone).
	BuffInsight BuffType = "insight"
	// BuffDisruption gives a per-unit chance to disrupt the opponent
	// (industrial zone).
	BuffDisruption BuffType = "disruption"
	// BuffMorale is a flat morale bonus (entertainment zone).
	BuffMorale BuffType = "morale"
)

// Buff is one typed modifier with an integer magnitude equal to the number
// of properties the actor owns in the originating zone.
type Buff struct {
	Type      BuffType `json:"type"`
	Magnitude int      `json:"magnitude"`
}

// BuffSet is the full set of buffs active for one actor in one match.
type BuffSet []Buff

// Magnitude returns the magnitude of the buff with the given type, or 0 if
// the set does not contain it.
func (bs BuffSet) Magnitude(t BuffType) int {
	for _, b := range bs {
		if b.Type == t {
			return b.Magnitude
		}
	}
	return 0
}
