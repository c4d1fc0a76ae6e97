package domain

import "context"

// EngineMatchStatus is the external engine's view of a match.
type EngineMatchStatus string

const (
	EngineMatchActive    EngineMatchStatus = "active"
	EngineMatchComplete  EngineMatchStatus = "complete"
	EngineMatchCancelled EngineMatchStatus = "cancelled"
)

// EngineMatch is the engine's state snapshot for one match.
type EngineMatch struct {
	ID          string
	Status      EngineMatchStatus
	CurrentTurn string   // actor ID holding the turn while active
	Winners     []string // populated on completion; empty slice means a draw
}

// TurnResult is the outcome of asking the engine to play one turn.
type TurnResult struct {
	Move       MoveRecord
	IsComplete bool
}

// Engine is the external turn-based game engine collaborator. Matches are
// owned by the engine while they run; the wheel only polls them.
type Engine interface {
	CreateMatch(ctx context.Context, actorA, actorB string, gameType GameType, wager int64) (string, error)
	PlayTurn(ctx context.Context, matchID, actorID string) (TurnResult, error)
	GetMatch(ctx context.Context, matchID string) (EngineMatch, error)
	CancelMatch(ctx context.Context, matchID, requestingActorID string) error
}
