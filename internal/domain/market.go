package domain

import "time"

// MarketStatus is the lifecycle state of a prediction market. Transitions
// are monotonic: OPEN -> LOCKED -> RESOLVED or CANCELLED, never backwards.
type MarketStatus string

const (
	MarketStatusOpen      MarketStatus = "open"
	MarketStatusLocked    MarketStatus = "locked"
	MarketStatusResolved  MarketStatus = "resolved"
	MarketStatusCancelled MarketStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s MarketStatus) Terminal() bool {
	return s == MarketStatusResolved || s == MarketStatusCancelled
}

// Side identifies one of the two options of a binary market.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// Valid reports whether the side is one of the two recognised options.
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// Market is a binary parimutuel spectator market tied to one wheel match.
// While the market is OPEN or LOCKED, PoolA+PoolB equals the sum of all
// non-cancelled bet amounts placed on it.
type Market struct {
	ID          string
	MatchKey    string // links the market to its match; unique per market
	OptionA     MarketOption
	OptionB     MarketOption
	PoolA       int64
	PoolB       int64
	RakePercent int // percentage of the total pool retained at resolution
	Status      MarketStatus
	Outcome     Side // empty until resolved
	ResolvedAt  *time.Time
	CreatedAt   time.Time
}

// MarketOption binds one side of the market to an actor.
type MarketOption struct {
	ActorID string
	Label   string
}

// TotalPool returns PoolA + PoolB.
func (m Market) TotalPool() int64 {
	return m.PoolA + m.PoolB
}

// SideFor returns the side bound to the given actor ID, and whether the
// actor is one of the two options at all.
func (m Market) SideFor(actorID string) (Side, bool) {
	switch actorID {
	case m.OptionA.ActorID:
		return SideA, true
	case m.OptionB.ActorID:
		return SideB, true
	}
	return "", false
}

// Bet is one spectator wager on a market. Payout stays nil until settlement
// writes it exactly once: 0 for losers, the refunded amount on cancellation,
// or the floor-rounded proportional share for winners.
type Bet struct {
	ID        string
	MarketID  string
	Wallet    string
	Side      Side
	Amount    int64
	Payout    *int64
	CreatedAt time.Time
}

// Settled reports whether the payout has been written.
func (b Bet) Settled() bool {
	return b.Payout != nil
}

// MarketOdds is the read-model for the odds endpoint: pool sizes,
// percentages of the total pool, and the parimutuel multiplier per side
// (total/side, before rake; 0 when the side pool is empty).
type MarketOdds struct {
	MarketID    string  `json:"market_id"`
	PoolA       int64   `json:"pool_a"`
	PoolB       int64   `json:"pool_b"`
	PercentA    float64 `json:"percent_a"`
	PercentB    float64 `json:"percent_b"`
	MultiplierA float64 `json:"multiplier_a"`
	MultiplierB float64 `json:"multiplier_b"`
}

// Odds derives the MarketOdds view for the market.
func (m Market) Odds() MarketOdds {
	odds := MarketOdds{MarketID: m.ID, PoolA: m.PoolA, PoolB: m.PoolB}
	total := m.TotalPool()
	if total == 0 {
		return odds
	}
	odds.PercentA = float64(m.PoolA) / float64(total) * 100
	odds.PercentB = float64(m.PoolB) / float64(total) * 100
	if m.PoolA > 0 {
		odds.MultiplierA = float64(total) / float64(m.PoolA)
	}
	if m.PoolB > 0 {
		odds.MultiplierB = float64(total) / float64(m.PoolB)
	}
	return odds
}
