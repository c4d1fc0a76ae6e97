package domain

import "time"

// Zone is the category of a town lot. Each zone maps to exactly one buff
// type; the magnitude of the buff is the number of built properties the
// actor owns in that zone.
type Zone string

const (
	ZoneResidential   Zone = "residential"
	ZoneCommercial    Zone = "commercial"
	ZoneCivic         Zone = "civic"
	ZoneIndustrial    Zone = "industrial"
	ZoneEntertainment Zone = "entertainment"
)

// Actor is a town inhabitant that can be pulled into a wheel match. The
// wheel only reads property and rivalry data; it writes bankroll, health,
// and memory exclusively as settlement side effects.
type Actor struct {
	ID        string
	Name      string
	Archetype string
	Elo       int
	Bankroll  int64 // integer currency units
	Health    int
	Active    bool
	InMatch   bool
	Rivals    []string // actor IDs flagged as rivals
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Property is a built lot owned by an actor.
type Property struct {
	ID      string
	ActorID string
	Zone    Zone
	Name    string
}

// MemoryEntry is one line of an actor's persistent free-text memory log.
type MemoryEntry struct {
	Text      string
	CreatedAt time.Time
}
