package wheel

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

// fakeActorStore is an in-memory domain.ActorStore for scheduler and buff
// tests.
type fakeActorStore struct {
	mu         sync.Mutex
	actors     map[string]*domain.Actor
	properties map[string][]domain.Property
	memories   map[string][]string
	maxHealth  int
}

func newFakeActorStore(actors ...domain.Actor) *fakeActorStore {
	s := &fakeActorStore{
		actors:     make(map[string]*domain.Actor),
		properties: make(map[string][]domain.Property),
		memories:   make(map[string][]string),
		maxHealth:  100,
	}
	for i := range actors {
		a := actors[i]
		s.actors[a.ID] = &a
	}
	return s
}

func (s *fakeActorStore) GetByID(_ context.Context, id string) (domain.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[id]
	if !ok {
		return domain.Actor{}, domain.ErrNotFound
	}
	return *a, nil
}

func (s *fakeActorStore) ListEligible(_ context.Context, minBankroll int64) ([]domain.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Actor
	for _, a := range s.actors {
		if a.Active && !a.InMatch && a.Health > 0 && a.Bankroll >= minBankroll {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeActorStore) ListProperties(_ context.Context, actorID string) ([]domain.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.properties[actorID], nil
}

func (s *fakeActorStore) AdjustBankroll(_ context.Context, actorID string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[actorID]
	if !ok {
		return domain.ErrNotFound
	}
	a.Bankroll += delta
	return nil
}

func (s *fakeActorStore) AdjustHealth(_ context.Context, actorID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[actorID]
	if !ok {
		return domain.ErrNotFound
	}
	a.Health += delta
	if a.Health < 0 {
		a.Health = 0
	}
	if a.Health > s.maxHealth {
		a.Health = s.maxHealth
	}
	return nil
}

func (s *fakeActorStore) AppendMemory(_ context.Context, actorID, text string, maxEntries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append(s.memories[actorID], text)
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}
	s.memories[actorID] = entries
	return nil
}

func (s *fakeActorStore) SetInMatch(_ context.Context, actorID string, inMatch bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[actorID]
	if !ok {
		return domain.ErrNotFound
	}
	a.InMatch = inMatch
	return nil
}

func (s *fakeActorStore) actor(id string) domain.Actor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.actors[id]
}

// fakeEngine plays back a scripted sequence of GetMatch snapshots and
// PlayTurn results.
type fakeEngine struct {
	mu        sync.Mutex
	createErr error
	matchID   string
	states    []stateStep
	stateIdx  int
	turns     []turnStep
	turnIdx   int
	cancelled []string
}

type stateStep struct {
	match domain.EngineMatch
	err   error
}

type turnStep struct {
	result domain.TurnResult
	err    error
}

func (e *fakeEngine) CreateMatch(_ context.Context, _, _ string, _ domain.GameType, _ int64) (string, error) {
	if e.createErr != nil {
		return "", e.createErr
	}
	if e.matchID == "" {
		e.matchID = "match-1"
	}
	return e.matchID, nil
}

func (e *fakeEngine) GetMatch(_ context.Context, matchID string) (domain.EngineMatch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	step := e.states[e.stateIdx]
	if e.stateIdx < len(e.states)-1 {
		e.stateIdx++
	}
	return step.match, step.err
}

func (e *fakeEngine) PlayTurn(_ context.Context, matchID, actorID string) (domain.TurnResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	step := e.turns[e.turnIdx]
	if e.turnIdx < len(e.turns)-1 {
		e.turnIdx++
	}
	return step.result, step.err
}

func (e *fakeEngine) CancelMatch(_ context.Context, matchID, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelled = append(e.cancelled, matchID)
	return nil
}

// fakeMarketService records scheduler-driven market transitions.
type fakeMarketService struct {
	mu        sync.Mutex
	market    domain.Market
	locked    bool
	resolved  bool
	winnerID  string
	cancelled bool
}

func (m *fakeMarketService) CreateMarket(_ context.Context, matchKey string, optionA, optionB domain.MarketOption) (domain.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.market = domain.Market{
		ID:       "market-1",
		MatchKey: matchKey,
		OptionA:  optionA,
		OptionB:  optionB,
		Status:   domain.MarketStatusOpen,
	}
	return m.market, nil
}

func (m *fakeMarketService) Lock(_ context.Context, marketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = true
	m.market.Status = domain.MarketStatusLocked
	return nil
}

func (m *fakeMarketService) Resolve(_ context.Context, marketID, winnerActorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if winnerActorID == "" {
		m.cancelled = true
		m.market.Status = domain.MarketStatusCancelled
		return nil
	}
	m.resolved = true
	m.winnerID = winnerActorID
	m.market.Status = domain.MarketStatusResolved
	return nil
}

func (m *fakeMarketService) Cancel(_ context.Context, marketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = true
	m.market.Status = domain.MarketStatusCancelled
	return nil
}

func (m *fakeMarketService) GetMarket(_ context.Context, marketID string) (domain.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.market, nil
}

// fakeEventStore records appended town events.
type fakeEventStore struct {
	mu     sync.Mutex
	events []string
}

func (s *fakeEventStore) Append(_ context.Context, kind string, _ map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, kind)
	return nil
}

func (s *fakeEventStore) ListRecent(_ context.Context, _ int) ([]domain.TownEvent, error) {
	return nil, nil
}

func (s *fakeEventStore) ListBefore(_ context.Context, _ time.Time) ([]domain.TownEvent, error) {
	return nil, nil
}

// fakeBus records published channel/payload pairs.
type fakeBus struct {
	mu       sync.Mutex
	messages map[string]int
}

func newFakeBus() *fakeBus {
	return &fakeBus{messages: make(map[string]int)}
}

func (b *fakeBus) Publish(_ context.Context, channel string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[channel]++
	return nil
}

func (b *fakeBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *fakeBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.messages[channel]
}
