package wheel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func activeState(turn string) stateStep {
	return stateStep{match: domain.EngineMatch{ID: "match-1", Status: domain.EngineMatchActive, CurrentTurn: turn}}
}

func completeState(winners ...string) stateStep {
	return stateStep{match: domain.EngineMatch{ID: "match-1", Status: domain.EngineMatchComplete, Winners: winners}}
}

func turnOK(action string, complete bool) turnStep {
	return turnStep{result: domain.TurnResult{
		Move:       domain.MoveRecord{ActorID: "a1", Action: action},
		IsComplete: complete,
	}}
}

func TestMatchRunner_CompletesWithWinner(t *testing.T) {
	engine := &fakeEngine{
		states: []stateStep{
			activeState("a1"),
			completeState("a1"),
		},
		turns: []turnStep{turnOK("raise", true)},
	}
	bus := newFakeBus()
	runner := NewMatchRunner(engine, bus, 10, 3, 0, testLogger())

	outcome, err := runner.Run(context.Background(), "match-1", "a1", "a2")
	require.NoError(t, err)

	assert.Equal(t, "a1", outcome.WinnerID)
	assert.False(t, outcome.Draw)
	require.Len(t, outcome.Moves, 1)
	assert.Equal(t, "raise", outcome.Moves[0].Action)
	assert.Equal(t, "match-1", outcome.Moves[0].MatchID)
	assert.Equal(t, 1, bus.count("ch:wheel:turn"))
	assert.Empty(t, engine.cancelled)
}

func TestMatchRunner_Draw(t *testing.T) {
	engine := &fakeEngine{
		states: []stateStep{
			activeState("a2"),
			completeState(),
		},
		turns: []turnStep{turnOK("fold", true)},
	}
	runner := NewMatchRunner(engine, nil, 10, 3, 0, testLogger())

	outcome, err := runner.Run(context.Background(), "match-1", "a1", "a2")
	require.NoError(t, err)

	assert.True(t, outcome.Draw)
	assert.Empty(t, outcome.WinnerID)
}

func TestMatchRunner_AlreadyComplete(t *testing.T) {
	engine := &fakeEngine{
		states: []stateStep{completeState("a2")},
	}
	runner := NewMatchRunner(engine, nil, 10, 3, 0, testLogger())

	outcome, err := runner.Run(context.Background(), "match-1", "a1", "a2")
	require.NoError(t, err)
	assert.Equal(t, "a2", outcome.WinnerID)
	assert.Empty(t, outcome.Moves)
}

func TestMatchRunner_ConsecutiveFailuresAbort(t *testing.T) {
	turnErr := errors.New("engine boom")
	engine := &fakeEngine{
		states: []stateStep{activeState("a1")},
		turns: []turnStep{
			{err: turnErr},
			{err: turnErr},
		},
	}
	runner := NewMatchRunner(engine, nil, 10, 2, 0, testLogger())

	_, err := runner.Run(context.Background(), "match-1", "a1", "a2")
	assert.ErrorIs(t, err, domain.ErrMatchStuck)
	assert.Equal(t, []string{"match-1"}, engine.cancelled)
}

func TestMatchRunner_FailCounterResetsOnSuccess(t *testing.T) {
	turnErr := errors.New("engine hiccup")
	engine := &fakeEngine{
		states: []stateStep{
			activeState("a1"),
			activeState("a2"),
			activeState("a1"),
			activeState("a2"),
			completeState("a1"),
		},
		turns: []turnStep{
			{err: turnErr},
			turnOK("call", false),
			{err: turnErr},
			turnOK("showdown", true),
		},
	}
	runner := NewMatchRunner(engine, nil, 10, 2, 0, testLogger())

	outcome, err := runner.Run(context.Background(), "match-1", "a1", "a2")
	require.NoError(t, err)
	assert.Equal(t, "a1", outcome.WinnerID)
	assert.Len(t, outcome.Moves, 2)
	assert.Empty(t, engine.cancelled)
}

func TestMatchRunner_TurnCeilingAborts(t *testing.T) {
	engine := &fakeEngine{
		states: []stateStep{activeState("a1")},
		turns:  []turnStep{turnOK("stall", false)},
	}
	runner := NewMatchRunner(engine, nil, 3, 5, 0, testLogger())

	outcome, err := runner.Run(context.Background(), "match-1", "a1", "a2")
	assert.ErrorIs(t, err, domain.ErrMatchStuck)
	assert.Len(t, outcome.Moves, 3)
	assert.Equal(t, []string{"match-1"}, engine.cancelled)
}

func TestMatchRunner_EngineCancelledMatch(t *testing.T) {
	engine := &fakeEngine{
		states: []stateStep{
			{match: domain.EngineMatch{ID: "match-1", Status: domain.EngineMatchCancelled}},
		},
	}
	runner := NewMatchRunner(engine, nil, 10, 3, 0, testLogger())

	_, err := runner.Run(context.Background(), "match-1", "a1", "a2")
	assert.ErrorIs(t, err, domain.ErrMatchStuck)
	// The engine already tore the match down; no cancel call goes out.
	assert.Empty(t, engine.cancelled)
}

func TestMatchRunner_TruncatesRationale(t *testing.T) {
	long := strings.Repeat("x", 400)
	engine := &fakeEngine{
		states: []stateStep{
			activeState("a1"),
			completeState("a1"),
		},
		turns: []turnStep{
			{result: domain.TurnResult{
				Move:       domain.MoveRecord{ActorID: "a1", Action: "bet", Rationale: long},
				IsComplete: true,
			}},
		},
	}
	runner := NewMatchRunner(engine, nil, 10, 3, 0, testLogger())

	outcome, err := runner.Run(context.Background(), "match-1", "a1", "a2")
	require.NoError(t, err)
	require.Len(t, outcome.Moves, 1)
	assert.Len(t, outcome.Moves[0].Rationale, 140)
}
