package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// ActorStore reads and mutates town actors. Bankroll, health, and memory
// writes happen only as wheel settlement side effects.
type ActorStore interface {
	GetByID(ctx context.Context, id string) (Actor, error)
	// ListEligible returns actors that are active, not in a match, with
	// health > 0 and bankroll >= minBankroll.
	ListEligible(ctx context.Context, minBankroll int64) ([]Actor, error)
	ListProperties(ctx context.Context, actorID string) ([]Property, error)
	AdjustBankroll(ctx context.Context, actorID string, delta int64) error
	// AdjustHealth applies delta and clamps the result to [0, maxHealth].
	AdjustHealth(ctx context.Context, actorID string, delta int) error
	// AppendMemory appends an entry and trims the log to maxEntries,
	// dropping the oldest lines first.
	AppendMemory(ctx context.Context, actorID, text string, maxEntries int) error
	SetInMatch(ctx context.Context, actorID string, inMatch bool) error
}

// LedgerStore holds spectator wallet balances.
type LedgerStore interface {
	GetBalance(ctx context.Context, wallet string) (int64, error)
	Credit(ctx context.Context, wallet string, amount int64) error
}

// MarketStore persists prediction markets and their bets. PlaceBet,
// Resolve, and Cancel each run inside a single database transaction so that
// balance movements and market/bet row updates commit or abort together.
type MarketStore interface {
	// Create inserts a new OPEN market. If a market already exists for the
	// match key it returns the existing market unchanged.
	Create(ctx context.Context, m Market) (Market, error)
	GetByID(ctx context.Context, id string) (Market, error)
	GetByMatchKey(ctx context.Context, matchKey string) (Market, error)
	// ListActive returns OPEN markets only.
	ListActive(ctx context.Context) ([]Market, error)
	ListBets(ctx context.Context, marketID string) ([]Bet, error)
	GetBet(ctx context.Context, marketID, wallet string) (Bet, error)
	// Lock transitions OPEN -> LOCKED. Locking an already locked or
	// terminal market is a no-op.
	Lock(ctx context.Context, id string) error
	// PlaceBet atomically debits the wallet, bumps the chosen pool, and
	// inserts the bet row. It fails with ErrMarketNotOpen or
	// ErrInsufficientBalance without mutating anything.
	PlaceBet(ctx context.Context, bet Bet) (Bet, error)
	// Resolve atomically settles the market with the winning side:
	// writes payouts, credits winners, updates bettor stats, and marks the
	// market RESOLVED. Resolving a terminal market is a no-op.
	Resolve(ctx context.Context, id string, winner Side) error
	// Cancel atomically refunds every bet in full and marks the market
	// CANCELLED. Cancelling a terminal market is a no-op.
	Cancel(ctx context.Context, id string) error
	// ListResolvedBefore returns RESOLVED/CANCELLED markets resolved
	// strictly before the cutoff, for archival.
	ListResolvedBefore(ctx context.Context, before time.Time) ([]Market, error)
}

// StatsStore reads aggregate bettor performance. Writes happen inside the
// market resolution transaction.
type StatsStore interface {
	Get(ctx context.Context, wallet string) (BettorStats, error)
	// Leaderboard returns the top wallets by lifetime net profit.
	Leaderboard(ctx context.Context, limit int) ([]BettorStats, error)
}

// EventStore persists the append-only town event log.
type EventStore interface {
	Append(ctx context.Context, kind string, detail map[string]any) error
	ListRecent(ctx context.Context, limit int) ([]TownEvent, error)
	ListBefore(ctx context.Context, before time.Time) ([]TownEvent, error)
}
