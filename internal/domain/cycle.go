package domain

import "time"

// Phase is the state of the wheel cycle machine.
type Phase string

const (
	PhaseIdle       Phase = "idle"       // scheduler not started
	PhasePrep       Phase = "prep"       // nothing scheduled
	PhaseAnnouncing Phase = "announcing" // pair chosen, betting window open
	PhaseFighting   Phase = "fighting"   // match in progress, betting locked
	PhaseAftermath  Phase = "aftermath"  // results out, short cool-down
)

// GameType is a supported match game.
type GameType string

const (
	GamePoker GameType = "poker"
	GameRPS   GameType = "rps"
)

// Matchup is the proposed/active match snapshot held by the current cycle.
type Matchup struct {
	MatchKey   string   `json:"match_key"`
	MatchID    string   `json:"match_id,omitempty"` // set once the engine accepts the match
	MarketID   string   `json:"market_id,omitempty"`
	GameType   GameType `json:"game_type"`
	ActorAID   string   `json:"actor_a_id"`
	ActorAName string   `json:"actor_a_name"`
	ActorBID   string   `json:"actor_b_id"`
	ActorBName string   `json:"actor_b_name"`
	Wager      int64    `json:"wager"`
	BuffsA     BuffSet  `json:"buffs_a"`
	BuffsB     BuffSet  `json:"buffs_b"`
}

// Cycle is one in-flight pass of the wheel. It lives in memory only; the
// persistent trace is the town event log plus the market/bet rows.
type Cycle struct {
	ID            string
	Phase         Phase
	Matchup       *Matchup
	StartedAt     time.Time
	FightStartsAt time.Time // when the betting window closes
	FinishedAt    time.Time
}

// Result is one completed wheel outcome, kept in a bounded history ring.
type Result struct {
	MatchKey   string   `json:"match_key"`
	GameType   GameType `json:"game_type"`
	ActorAID   string   `json:"actor_a_id"`
	ActorAName string   `json:"actor_a_name"`
	ActorBID   string   `json:"actor_b_id"`
	ActorBName string   `json:"actor_b_name"`
	WinnerID   string   `json:"winner_id,omitempty"` // empty on a draw
	WinnerName string   `json:"winner_name,omitempty"`
	Draw       bool     `json:"draw"`
	Wager      int64    `json:"wager"`
	PoolA      int64    `json:"pool_a"`
	PoolB      int64    `json:"pool_b"`
	Rake       int64    `json:"rake"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// MoveRecord is one recorded turn for the spectator feed.
type MoveRecord struct {
	MatchID   string    `json:"match_id"`
	ActorID   string    `json:"actor_id"`
	TurnIndex int       `json:"turn_index"`
	Action    string    `json:"action"`
	Rationale string    `json:"rationale,omitempty"` // truncated
	Amount    int64     `json:"amount,omitempty"`
	PlayedAt  time.Time `json:"played_at"`
}

// TownEvent is one append-only entry of the spectator town log.
type TownEvent struct {
	ID        int64
	Kind      string
	Detail    map[string]any
	CreatedAt time.Time
}

// BettorStats is a wallet's aggregate resolved-bet performance.
type BettorStats struct {
	Wallet        string `json:"wallet"`
	TotalBets     int64  `json:"total_bets"`
	TotalWagered  int64  `json:"total_wagered"`
	TotalWon      int64  `json:"total_won"`
	NetProfit     int64  `json:"net_profit"`
	Wins          int64  `json:"wins"`
	CurrentStreak int64  `json:"current_streak"`
	BestStreak    int64  `json:"best_streak"`
	WorstLoss     int64  `json:"worst_loss"`
}
