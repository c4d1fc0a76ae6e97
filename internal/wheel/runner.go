package wheel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

// maxRationaleLen truncates move rationales for the spectator feed.
const maxRationaleLen = 140

// turnChannel is the signal bus channel for recorded moves.
const turnChannel = "ch:wheel:turn"

// MatchRunner drives the external game engine turn by turn until the match
// completes, hits the turn ceiling, or fails too many turns in a row.
type MatchRunner struct {
	engine    domain.Engine
	bus       domain.SignalBus
	maxTurns  int
	maxFails  int
	turnDelay time.Duration
	logger    *slog.Logger
}

// NewMatchRunner creates a MatchRunner. bus may be nil when no spectator
// feed is attached.
func NewMatchRunner(engine domain.Engine, bus domain.SignalBus, maxTurns, maxFails int, turnDelay time.Duration, logger *slog.Logger) *MatchRunner {
	return &MatchRunner{
		engine:    engine,
		bus:       bus,
		maxTurns:  maxTurns,
		maxFails:  maxFails,
		turnDelay: turnDelay,
		logger:    logger.With(slog.String("component", "match_runner")),
	}
}

// MatchOutcome is the terminal result of running one match.
type MatchOutcome struct {
	MatchID  string
	WinnerID string // empty on a draw
	Draw     bool
	Moves    []domain.MoveRecord
}

// Run plays the match with the given ID to completion. On the max-turn or
// repeated-error path it cancels the match with the engine and returns
// domain.ErrMatchStuck; it never fabricates a winner.
func (r *MatchRunner) Run(ctx context.Context, matchID, actorA, actorB string) (MatchOutcome, error) {
	outcome := MatchOutcome{MatchID: matchID}
	fails := 0

	for turn := 0; turn < r.maxTurns; turn++ {
		state, err := r.engine.GetMatch(ctx, matchID)
		if err != nil {
			fails++
			if fails >= r.maxFails {
				return outcome, r.abortStuck(ctx, matchID, actorA, fmt.Errorf("poll state: %w", err))
			}
			if err := sleep(ctx, r.turnDelay); err != nil {
				return outcome, err
			}
			continue
		}

		switch state.Status {
		case domain.EngineMatchComplete:
			return r.finish(outcome, state), nil
		case domain.EngineMatchCancelled:
			return outcome, domain.ErrMatchStuck
		}

		holder := state.CurrentTurn
		if holder == "" {
			holder = actorA
		}

		result, err := r.engine.PlayTurn(ctx, matchID, holder)
		if err != nil {
			fails++
			r.logger.WarnContext(ctx, "turn execution failed",
				slog.String("match_id", matchID),
				slog.String("actor_id", holder),
				slog.Int("consecutive_fails", fails),
				slog.String("error", err.Error()),
			)
			if fails >= r.maxFails {
				return outcome, r.abortStuck(ctx, matchID, actorA, fmt.Errorf("play turn: %w", err))
			}
			if err := sleep(ctx, r.turnDelay); err != nil {
				return outcome, err
			}
			continue
		}
		fails = 0

		move := result.Move
		move.MatchID = matchID
		move.TurnIndex = turn
		if len(move.Rationale) > maxRationaleLen {
			move.Rationale = move.Rationale[:maxRationaleLen]
		}
		if move.PlayedAt.IsZero() {
			move.PlayedAt = time.Now().UTC()
		}
		outcome.Moves = append(outcome.Moves, move)
		r.publishMove(ctx, move)

		if result.IsComplete {
			state, err := r.engine.GetMatch(ctx, matchID)
			if err != nil {
				return outcome, fmt.Errorf("match_runner: final state of %s: %w", matchID, err)
			}
			return r.finish(outcome, state), nil
		}

		if err := sleep(ctx, r.turnDelay); err != nil {
			return outcome, err
		}
	}

	// Turn ceiling exhausted without a terminal state.
	return outcome, r.abortStuck(ctx, matchID, actorA, fmt.Errorf("exceeded %d turns", r.maxTurns))
}

// finish maps the engine's completed state onto the outcome. An empty
// winners list is a draw.
func (r *MatchRunner) finish(outcome MatchOutcome, state domain.EngineMatch) MatchOutcome {
	if len(state.Winners) > 0 {
		outcome.WinnerID = state.Winners[0]
	} else {
		outcome.Draw = true
	}
	return outcome
}

// abortStuck cancels the match with the engine and wraps the cause in
// domain.ErrMatchStuck. A failed cancellation is logged, not retried.
func (r *MatchRunner) abortStuck(ctx context.Context, matchID, requestingActorID string, cause error) error {
	r.logger.ErrorContext(ctx, "match stuck, cancelling",
		slog.String("match_id", matchID),
		slog.String("cause", cause.Error()),
	)
	if err := r.engine.CancelMatch(ctx, matchID, requestingActorID); err != nil {
		r.logger.ErrorContext(ctx, "engine cancel failed",
			slog.String("match_id", matchID),
			slog.String("error", err.Error()),
		)
	}
	return fmt.Errorf("%w: %v", domain.ErrMatchStuck, cause)
}

func (r *MatchRunner) publishMove(ctx context.Context, move domain.MoveRecord) {
	if r.bus == nil {
		return
	}
	payload, err := json.Marshal(move)
	if err != nil {
		return
	}
	if err := r.bus.Publish(ctx, turnChannel, payload); err != nil {
		r.logger.DebugContext(ctx, "turn publish failed", slog.String("error", err.Error()))
	}
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
