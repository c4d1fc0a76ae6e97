package wheel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/townwheel/internal/config"
	"github.com/alanyoungcy/townwheel/internal/domain"
)

const (
	phaseChannel  = "ch:wheel:phase"
	resultChannel = "ch:wheel:result"

	// spinLease is the redis lease held around each tick. The design
	// assumes a single live scheduler; the lease only guards against an
	// accidental second instance double-ticking.
	spinLease = "wheel:spin"
)

// MarketService is the narrow settlement surface the scheduler needs. It is
// declared locally so the wheel package does not depend on the concrete
// market implementation.
type MarketService interface {
	CreateMarket(ctx context.Context, matchKey string, optionA, optionB domain.MarketOption) (domain.Market, error)
	Lock(ctx context.Context, marketID string) error
	// Resolve settles the market for the given winning actor. An empty
	// winner ID means a draw and cancels the market with full refunds.
	Resolve(ctx context.Context, marketID, winnerActorID string) error
	Cancel(ctx context.Context, marketID string) error
	GetMarket(ctx context.Context, marketID string) (domain.Market, error)
}

// Notifier is the announcement surface for fight events.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Scheduler is the top-level wheel state machine. It owns the spin timer,
// sequences selection, betting, the fight, and settlement, and performs the
// end-of-cycle bookkeeping. Exactly one cycle is ever in flight; a
// re-entrant spin while one is running is a logged no-op.
type Scheduler struct {
	cfg      config.WheelConfig
	actors   domain.ActorStore
	events   domain.EventStore
	market   MarketService
	engine   domain.Engine
	runner   *MatchRunner
	selector *AgentSelector
	buffs    *BuffResolver
	wager    WagerCalculator
	bus      domain.SignalBus
	notifier Notifier
	locks    domain.LockManager
	logger   *slog.Logger

	history *historyRing
	now     func() time.Time

	mu         sync.Mutex
	isRunning  bool
	phase      domain.Phase
	cycle      *domain.Cycle
	nextSpinAt time.Time
}

// SchedulerDeps bundles the scheduler's collaborators.
type SchedulerDeps struct {
	Actors   domain.ActorStore
	Events   domain.EventStore
	Market   MarketService
	Engine   domain.Engine
	Runner   *MatchRunner
	Selector *AgentSelector
	Buffs    *BuffResolver
	Wager    WagerCalculator
	Bus      domain.SignalBus // optional
	Notifier Notifier         // optional
	Locks    domain.LockManager // optional
	Now      func() time.Time // optional; defaults to time.Now
}

// NewScheduler constructs a Scheduler with its dependencies injected.
func NewScheduler(cfg config.WheelConfig, deps SchedulerDeps, logger *slog.Logger) *Scheduler {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Scheduler{
		cfg:      cfg,
		actors:   deps.Actors,
		events:   deps.Events,
		market:   deps.Market,
		engine:   deps.Engine,
		runner:   deps.Runner,
		selector: deps.Selector,
		buffs:    deps.Buffs,
		wager:    deps.Wager,
		bus:      deps.Bus,
		notifier: deps.Notifier,
		locks:    deps.Locks,
		logger:   logger.With(slog.String("component", "wheel_scheduler")),
		history:  newHistoryRing(cfg.HistorySize),
		now:      now,
		phase:    domain.PhaseIdle,
	}
}

// Run drives the periodic spin timer until the context is cancelled. Each
// spin blocks the loop for the full cycle; the next spin is scheduled
// relative to the cycle's own bookkeeping.
func (s *Scheduler) Run(ctx context.Context) error {
	s.setPhase(ctx, domain.PhasePrep)
	s.setNextSpin(s.now().Add(s.cfg.CycleInterval()))

	s.logger.InfoContext(ctx, "wheel scheduler started",
		slog.Duration("cycle_interval", s.cfg.CycleInterval()),
		slog.Duration("betting_window", s.cfg.BettingWindow()),
	)

	timer := time.NewTimer(s.cfg.CycleInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("wheel scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			if err := s.Spin(ctx); err != nil && !expectedSpinErr(err) {
				s.logger.ErrorContext(ctx, "spin failed",
					slog.String("error", err.Error()),
				)
			}
			timer.Reset(s.untilNextSpin())
		}
	}
}

// expectedSpinErr reports errors that are normal outcomes of a tick rather
// than failures worth an error log.
func expectedSpinErr(err error) bool {
	return errors.Is(err, domain.ErrNotEnoughAgents) ||
		errors.Is(err, domain.ErrAlreadySpinning) ||
		errors.Is(err, context.Canceled)
}

// Spin runs one full cycle to completion. It is safe to call concurrently
// with the periodic timer: if a cycle is already in flight the call is a
// no-op returning domain.ErrAlreadySpinning.
func (s *Scheduler) Spin(ctx context.Context) (err error) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		s.logger.InfoContext(ctx, "spin requested while cycle in flight, ignoring")
		return domain.ErrAlreadySpinning
	}
	s.isRunning = true
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			// One failed cycle must never take the process down.
			s.logger.ErrorContext(ctx, "panic during wheel cycle",
				slog.Any("panic", r),
			)
			err = fmt.Errorf("wheel: cycle panicked: %v", r)
			s.abortToPrep(ctx)
		}
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	// Guard against a second scheduler instance double-ticking.
	if s.locks != nil {
		unlock, lockErr := s.locks.Acquire(ctx, spinLease, s.cfg.CycleInterval())
		if lockErr != nil {
			if errors.Is(lockErr, domain.ErrLockHeld) {
				s.logger.WarnContext(ctx, "spin lease held elsewhere, skipping tick")
				s.setNextSpin(s.now().Add(s.cfg.CycleInterval()))
				return nil
			}
			s.logger.WarnContext(ctx, "spin lease unavailable, proceeding",
				slog.String("error", lockErr.Error()),
			)
		} else {
			defer unlock()
		}
	}

	return s.runCycle(ctx)
}

// runCycle executes the phase sequence for one cycle.
func (s *Scheduler) runCycle(ctx context.Context) error {
	s.setPhase(ctx, domain.PhaseAnnouncing)

	matchup, err := s.propose(ctx)
	if err != nil {
		s.abortToPrep(ctx)
		return err
	}

	cycle := &domain.Cycle{
		ID:            uuid.New().String(),
		Phase:         domain.PhaseAnnouncing,
		Matchup:       matchup,
		StartedAt:     s.now(),
		FightStartsAt: s.now().Add(s.cfg.BettingWindow()),
	}
	s.setCycle(cycle)

	s.logger.InfoContext(ctx, "fight announced",
		slog.String("match_key", matchup.MatchKey),
		slog.String("actor_a", matchup.ActorAName),
		slog.String("actor_b", matchup.ActorBName),
		slog.String("game", string(matchup.GameType)),
		slog.Int64("wager", matchup.Wager),
	)
	s.announce(ctx, "fight_announced", fmt.Sprintf("%s vs %s", matchup.ActorAName, matchup.ActorBName),
		fmt.Sprintf("%s match for %d. Betting closes in %s.", matchup.GameType, matchup.Wager, s.cfg.BettingWindow()))

	// Betting window.
	if err := sleep(ctx, s.cfg.BettingWindow()); err != nil {
		s.releaseActors(ctx, matchup)
		s.cancelMarketQuietly(ctx, matchup.MarketID)
		s.abortToPrep(ctx)
		return err
	}

	if err := s.market.Lock(ctx, matchup.MarketID); err != nil {
		s.logger.ErrorContext(ctx, "market lock failed",
			slog.String("market_id", matchup.MarketID),
			slog.String("error", err.Error()),
		)
	}
	s.setPhase(ctx, domain.PhaseFighting)

	matchID, err := s.engine.CreateMatch(ctx, matchup.ActorAID, matchup.ActorBID, matchup.GameType, matchup.Wager)
	if err != nil {
		// Match never started: refund spectators, no history slot.
		s.logger.ErrorContext(ctx, "engine match creation failed",
			slog.String("match_key", matchup.MatchKey),
			slog.String("error", err.Error()),
		)
		s.cancelMarketQuietly(ctx, matchup.MarketID)
		s.releaseActors(ctx, matchup)
		s.abortToPrep(ctx)
		return fmt.Errorf("wheel: create match: %w", err)
	}
	matchup.MatchID = matchID
	s.setCycle(cycle)

	outcome, err := s.runner.Run(ctx, matchID, matchup.ActorAID, matchup.ActorBID)
	if err != nil {
		if errors.Is(err, domain.ErrMatchStuck) {
			// The runner already cancelled the engine match; the market
			// cancellation is attempted on the same path. A failure here
			// is logged and surfaced, not retried.
			s.cancelMarketQuietly(ctx, matchup.MarketID)
			s.releaseActors(ctx, matchup)
			s.abortToPrep(ctx)
			return err
		}
		s.cancelMarketQuietly(ctx, matchup.MarketID)
		s.releaseActors(ctx, matchup)
		s.abortToPrep(ctx)
		return fmt.Errorf("wheel: run match: %w", err)
	}

	s.settle(ctx, cycle, outcome)

	s.setNextSpin(s.now().Add(s.cfg.CycleInterval()))
	s.setPhase(ctx, domain.PhaseAftermath)

	if err := sleep(ctx, s.cfg.Cooldown()); err != nil {
		return err
	}
	s.clearCycle()
	s.setPhase(ctx, domain.PhasePrep)
	return nil
}

// propose selects the pair, computes buffs and the wager, and opens the
// spectator market.
func (s *Scheduler) propose(ctx context.Context) (*domain.Matchup, error) {
	eligible, err := s.actors.ListEligible(ctx, s.cfg.MinBankroll)
	if err != nil {
		return nil, fmt.Errorf("wheel: list eligible: %w", err)
	}

	actorA, actorB, err := s.selector.Pick(eligible)
	if err != nil {
		s.logger.InfoContext(ctx, "not enough eligible agents, skipping spin",
			slog.Int("eligible", len(eligible)),
		)
		return nil, err
	}

	gameType := s.selector.DrawGameType(s.cfg.GameWeights)

	buffsA, err := s.buffs.Resolve(ctx, actorA.ID)
	if err != nil {
		return nil, fmt.Errorf("wheel: resolve buffs %s: %w", actorA.ID, err)
	}
	buffsB, err := s.buffs.Resolve(ctx, actorB.ID)
	if err != nil {
		return nil, fmt.Errorf("wheel: resolve buffs %s: %w", actorB.ID, err)
	}

	wager := s.wager.Compute(actorA.Bankroll, actorB.Bankroll, buffsA, buffsB)

	matchup := &domain.Matchup{
		MatchKey:   uuid.New().String(),
		GameType:   gameType,
		ActorAID:   actorA.ID,
		ActorAName: actorA.Name,
		ActorBID:   actorB.ID,
		ActorBName: actorB.Name,
		Wager:      wager,
		BuffsA:     buffsA,
		BuffsB:     buffsB,
	}

	market, err := s.market.CreateMarket(ctx, matchup.MatchKey,
		domain.MarketOption{ActorID: actorA.ID, Label: actorA.Name},
		domain.MarketOption{ActorID: actorB.ID, Label: actorB.Name},
	)
	if err != nil {
		return nil, fmt.Errorf("wheel: create market: %w", err)
	}
	matchup.MarketID = market.ID

	for _, id := range []string{actorA.ID, actorB.ID} {
		if err := s.actors.SetInMatch(ctx, id, true); err != nil {
			s.logger.WarnContext(ctx, "mark in-match failed",
				slog.String("actor_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	return matchup, nil
}

// settle performs the end-of-cycle bookkeeping: market resolution,
// combatant stakes, post-match buffs, memory, history, and the town log.
func (s *Scheduler) settle(ctx context.Context, cycle *domain.Cycle, outcome MatchOutcome) {
	matchup := cycle.Matchup

	if err := s.market.Resolve(ctx, matchup.MarketID, outcome.WinnerID); err != nil {
		s.logger.ErrorContext(ctx, "market resolution failed",
			slog.String("market_id", matchup.MarketID),
			slog.String("error", err.Error()),
		)
	}

	winnerName := ""
	loserID := ""
	loserBuffs := domain.BuffSet(nil)
	if !outcome.Draw {
		if outcome.WinnerID == matchup.ActorAID {
			winnerName = matchup.ActorAName
			loserID = matchup.ActorBID
			loserBuffs = matchup.BuffsB
		} else {
			winnerName = matchup.ActorBName
			loserID = matchup.ActorAID
			loserBuffs = matchup.BuffsA
		}

		// Combatant stakes move winner-ward.
		if err := s.actors.AdjustBankroll(ctx, outcome.WinnerID, matchup.Wager); err != nil {
			s.logger.ErrorContext(ctx, "winner stake credit failed",
				slog.String("actor_id", outcome.WinnerID),
				slog.String("error", err.Error()),
			)
		}
		if err := s.actors.AdjustBankroll(ctx, loserID, -matchup.Wager); err != nil {
			s.logger.ErrorContext(ctx, "loser stake debit failed",
				slog.String("actor_id", loserID),
				slog.String("error", err.Error()),
			)
		}

		// Shelter buff heals the loser.
		if c := loserBuffs.Magnitude(domain.BuffHeal); c > 0 {
			heal := c * s.cfg.HealPerUnit
			if heal > s.cfg.MaxHeal {
				heal = s.cfg.MaxHeal
			}
			if err := s.actors.AdjustHealth(ctx, loserID, heal); err != nil {
				s.logger.WarnContext(ctx, "shelter heal failed",
					slog.String("actor_id", loserID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	s.writeMemories(ctx, matchup, outcome, winnerName)

	market, err := s.market.GetMarket(ctx, matchup.MarketID)
	if err != nil {
		s.logger.WarnContext(ctx, "market reload failed",
			slog.String("market_id", matchup.MarketID),
			slog.String("error", err.Error()),
		)
	}

	result := domain.Result{
		MatchKey:   matchup.MatchKey,
		GameType:   matchup.GameType,
		ActorAID:   matchup.ActorAID,
		ActorAName: matchup.ActorAName,
		ActorBID:   matchup.ActorBID,
		ActorBName: matchup.ActorBName,
		WinnerID:   outcome.WinnerID,
		WinnerName: winnerName,
		Draw:       outcome.Draw,
		Wager:      matchup.Wager,
		PoolA:      market.PoolA,
		PoolB:      market.PoolB,
		Rake:       market.TotalPool() * int64(market.RakePercent) / 100,
		ResolvedAt: s.now(),
	}
	s.history.Push(result)

	if err := s.events.Append(ctx, "wheel_result", map[string]any{
		"match_key": result.MatchKey,
		"game_type": string(result.GameType),
		"actor_a":   result.ActorAName,
		"actor_b":   result.ActorBName,
		"winner":    result.WinnerName,
		"draw":      result.Draw,
		"wager":     result.Wager,
	}); err != nil {
		s.logger.WarnContext(ctx, "town event append failed",
			slog.String("error", err.Error()),
		)
	}

	s.releaseActors(ctx, matchup)
	s.publishResult(ctx, result)

	title := fmt.Sprintf("%s vs %s", matchup.ActorAName, matchup.ActorBName)
	if outcome.Draw {
		s.announce(ctx, "fight_result", title, "The match ended in a draw. All bets refunded.")
	} else {
		s.announce(ctx, "fight_result", title,
			fmt.Sprintf("%s wins %d in %s.", winnerName, matchup.Wager, matchup.GameType))
	}
}

// writeMemories appends a structured outcome line to both actors' bounded
// memory logs.
func (s *Scheduler) writeMemories(ctx context.Context, matchup *domain.Matchup, outcome MatchOutcome, winnerName string) {
	for _, actorID := range []string{matchup.ActorAID, matchup.ActorBID} {
		opponent := matchup.ActorBName
		if actorID == matchup.ActorBID {
			opponent = matchup.ActorAName
		}
		var text string
		switch {
		case outcome.Draw:
			text = fmt.Sprintf("Fought %s at the wheel (%s, wager %d). Draw.", opponent, matchup.GameType, matchup.Wager)
		case actorID == outcome.WinnerID:
			text = fmt.Sprintf("Beat %s at the wheel (%s) and won %d.", opponent, matchup.GameType, matchup.Wager)
		default:
			text = fmt.Sprintf("Lost %d to %s at the wheel (%s).", matchup.Wager, winnerName, matchup.GameType)
		}
		if err := s.actors.AppendMemory(ctx, actorID, text, s.cfg.MemoryMaxEntries); err != nil {
			s.logger.WarnContext(ctx, "memory append failed",
				slog.String("actor_id", actorID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// ---------------------------------------------------------------------------
// Status surface
// ---------------------------------------------------------------------------

// Status is the read-model for the status endpoint.
type Status struct {
	Phase            domain.Phase    `json:"phase"`
	NextSpinSeconds  int64           `json:"next_spin_seconds"`
	FightInSeconds   int64           `json:"fight_in_seconds,omitempty"`
	Matchup          *domain.Matchup `json:"matchup,omitempty"`
	LastResult       *domain.Result  `json:"last_result,omitempty"`
}

// Status returns a snapshot of the wheel's current state. Countdowns are
// floored at zero.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Phase:           s.phase,
		NextSpinSeconds: secondsUntil(s.now(), s.nextSpinAt),
	}
	if s.cycle != nil && s.cycle.Matchup != nil {
		m := *s.cycle.Matchup
		st.Matchup = &m
		if s.phase == domain.PhaseAnnouncing {
			st.FightInSeconds = secondsUntil(s.now(), s.cycle.FightStartsAt)
		}
	}
	if last, ok := s.history.Last(); ok {
		st.LastResult = &last
	}
	return st
}

// Phase returns the current phase.
func (s *Scheduler) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// CurrentMarketID returns the market ID of the in-flight cycle, if any.
func (s *Scheduler) CurrentMarketID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cycle == nil || s.cycle.Matchup == nil || s.cycle.Matchup.MarketID == "" {
		return "", false
	}
	return s.cycle.Matchup.MarketID, true
}

// NextSpinAt returns the scheduled time of the next spin.
func (s *Scheduler) NextSpinAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSpinAt
}

// History returns up to limit recent results, most recent first.
func (s *Scheduler) History(limit int) []domain.Result {
	return s.history.Recent(limit)
}

func secondsUntil(now, t time.Time) int64 {
	d := t.Sub(now)
	if d < 0 {
		return 0
	}
	return int64(d.Seconds())
}

// ---------------------------------------------------------------------------
// internals
// ---------------------------------------------------------------------------

func (s *Scheduler) setPhase(ctx context.Context, p domain.Phase) {
	s.mu.Lock()
	s.phase = p
	if s.cycle != nil {
		s.cycle.Phase = p
	}
	s.mu.Unlock()

	if s.bus != nil {
		payload, err := json.Marshal(map[string]string{"phase": string(p)})
		if err == nil {
			_ = s.bus.Publish(ctx, phaseChannel, payload)
		}
	}
}

func (s *Scheduler) setCycle(c *domain.Cycle) {
	s.mu.Lock()
	s.cycle = c
	s.mu.Unlock()
}

func (s *Scheduler) clearCycle() {
	s.mu.Lock()
	s.cycle = nil
	s.mu.Unlock()
}

func (s *Scheduler) setNextSpin(t time.Time) {
	s.mu.Lock()
	s.nextSpinAt = t
	s.mu.Unlock()
}

func (s *Scheduler) untilNextSpin() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.nextSpinAt.Sub(s.now())
	if d < time.Second {
		d = time.Second
	}
	return d
}

// abortToPrep returns the wheel to PREP and schedules the next tick one
// full interval out.
func (s *Scheduler) abortToPrep(ctx context.Context) {
	s.clearCycle()
	s.setNextSpin(s.now().Add(s.cfg.CycleInterval()))
	s.setPhase(ctx, domain.PhasePrep)
}

// cancelMarketQuietly cancels the market with full refunds, logging rather
// than propagating failures.
func (s *Scheduler) cancelMarketQuietly(ctx context.Context, marketID string) {
	if marketID == "" {
		return
	}
	if err := s.market.Cancel(ctx, marketID); err != nil {
		s.logger.ErrorContext(ctx, "market cancellation failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Scheduler) releaseActors(ctx context.Context, matchup *domain.Matchup) {
	for _, id := range []string{matchup.ActorAID, matchup.ActorBID} {
		if err := s.actors.SetInMatch(ctx, id, false); err != nil {
			s.logger.WarnContext(ctx, "release in-match flag failed",
				slog.String("actor_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *Scheduler) publishResult(ctx context.Context, result domain.Result) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	_ = s.bus.Publish(ctx, resultChannel, payload)
}

func (s *Scheduler) announce(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.DebugContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
