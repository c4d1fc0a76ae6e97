package market

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory MarketStore mirroring the transactional
// semantics of the postgres implementation: rejected bets mutate nothing,
// settlement writes payouts and credits winners, cancellation refunds in
// full, and terminal markets no-op.
type memStore struct {
	mu      sync.Mutex
	markets map[string]*domain.Market
	byKey   map[string]string
	bets    map[string][]domain.Bet
	ledger  *memLedger
}

func newMemStore(ledger *memLedger) *memStore {
	return &memStore{
		markets: make(map[string]*domain.Market),
		byKey:   make(map[string]string),
		bets:    make(map[string][]domain.Bet),
		ledger:  ledger,
	}
}

func (s *memStore) Create(_ context.Context, m domain.Market) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byKey[m.MatchKey]; ok {
		return *s.markets[id], nil
	}
	stored := m
	s.markets[m.ID] = &stored
	s.byKey[m.MatchKey] = m.ID
	return stored, nil
}

func (s *memStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return *m, nil
}

func (s *memStore) GetByMatchKey(_ context.Context, matchKey string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[matchKey]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return *s.markets[id], nil
}

func (s *memStore) ListActive(_ context.Context) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.markets {
		if m.Status == domain.MarketStatusOpen {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memStore) ListBets(_ context.Context, marketID string) ([]domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Bet(nil), s.bets[marketID]...), nil
}

func (s *memStore) GetBet(_ context.Context, marketID, wallet string) (domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bets := s.bets[marketID]
	for i := len(bets) - 1; i >= 0; i-- {
		if bets[i].Wallet == wallet {
			return bets[i], nil
		}
	}
	return domain.Bet{}, domain.ErrNotFound
}

func (s *memStore) Lock(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if m.Status == domain.MarketStatusOpen {
		m.Status = domain.MarketStatusLocked
	}
	return nil
}

func (s *memStore) PlaceBet(_ context.Context, bet domain.Bet) (domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[bet.MarketID]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	if m.Status != domain.MarketStatusOpen {
		return domain.Bet{}, domain.ErrMarketNotOpen
	}
	if !s.ledger.debit(bet.Wallet, bet.Amount) {
		return domain.Bet{}, domain.ErrInsufficientBalance
	}
	if bet.Side == domain.SideA {
		m.PoolA += bet.Amount
	} else {
		m.PoolB += bet.Amount
	}
	s.bets[bet.MarketID] = append(s.bets[bet.MarketID], bet)
	return bet, nil
}

func (s *memStore) Resolve(_ context.Context, id string, winner domain.Side) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if m.Status.Terminal() {
		return nil
	}
	settlement := domain.ComputeSettlement(*m, s.bets[id], winner)
	for i := range s.bets[id] {
		p := settlement.Payouts[i]
		payout := p.Payout
		s.bets[id][i].Payout = &payout
		if p.Won && payout > 0 {
			s.ledger.credit(p.Wallet, payout)
		}
	}
	now := time.Now().UTC()
	m.Status = domain.MarketStatusResolved
	m.Outcome = winner
	m.ResolvedAt = &now
	return nil
}

func (s *memStore) Cancel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if m.Status.Terminal() {
		return nil
	}
	for i := range s.bets[id] {
		refund := s.bets[id][i].Amount
		s.bets[id][i].Payout = &refund
		s.ledger.credit(s.bets[id][i].Wallet, refund)
	}
	now := time.Now().UTC()
	m.Status = domain.MarketStatusCancelled
	m.ResolvedAt = &now
	return nil
}

func (s *memStore) ListResolvedBefore(_ context.Context, before time.Time) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.markets {
		if m.Status.Terminal() && m.ResolvedAt != nil && m.ResolvedAt.Before(before) {
			out = append(out, *m)
		}
	}
	return out, nil
}

// memLedger is an in-memory LedgerStore.
type memLedger struct {
	mu       sync.Mutex
	balances map[string]int64
}

func newMemLedger() *memLedger {
	return &memLedger{balances: make(map[string]int64)}
}

func (l *memLedger) GetBalance(_ context.Context, wallet string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[wallet], nil
}

func (l *memLedger) Credit(_ context.Context, wallet string, amount int64) error {
	if amount <= 0 {
		return domain.ErrAmountNotPositive
	}
	l.credit(wallet, amount)
	return nil
}

func (l *memLedger) credit(wallet string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[wallet] += amount
}

func (l *memLedger) debit(wallet string, amount int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[wallet] < amount {
		return false
	}
	l.balances[wallet] -= amount
	return true
}

// memStats is an in-memory StatsStore; settlement-side writes are out of
// scope for the service tests.
type memStats struct{}

func (memStats) Get(_ context.Context, wallet string) (domain.BettorStats, error) {
	return domain.BettorStats{Wallet: wallet}, nil
}

func (memStats) Leaderboard(_ context.Context, _ int) ([]domain.BettorStats, error) {
	return nil, nil
}

// memOddsCache is an in-memory OddsCache.
type memOddsCache struct {
	mu    sync.Mutex
	cache map[string]domain.MarketOdds
}

func newMemOddsCache() *memOddsCache {
	return &memOddsCache{cache: make(map[string]domain.MarketOdds)}
}

func (c *memOddsCache) Set(_ context.Context, odds domain.MarketOdds) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[odds.MarketID] = odds
	return nil
}

func (c *memOddsCache) Get(_ context.Context, marketID string) (domain.MarketOdds, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	odds, ok := c.cache[marketID]
	if !ok {
		return domain.MarketOdds{}, domain.ErrNotFound
	}
	return odds, nil
}

func (c *memOddsCache) Invalidate(_ context.Context, marketID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, marketID)
	return nil
}

type serviceFixture struct {
	svc    *Service
	store  *memStore
	ledger *memLedger
	odds   *memOddsCache
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	ledger := newMemLedger()
	store := newMemStore(ledger)
	odds := newMemOddsCache()
	svc := NewService(store, ledger, memStats{}, odds, nil, 5, testLogger())
	return &serviceFixture{svc: svc, store: store, ledger: ledger, odds: odds}
}

func (f *serviceFixture) openMarket(t *testing.T) domain.Market {
	t.Helper()
	m, err := f.svc.CreateMarket(context.Background(), "match-key-1",
		domain.MarketOption{ActorID: "actor-a", Label: "Ada"},
		domain.MarketOption{ActorID: "actor-b", Label: "Bram"},
	)
	require.NoError(t, err)
	return m
}

func TestService_CreateMarketIdempotent(t *testing.T) {
	f := newServiceFixture(t)

	first := f.openMarket(t)
	second, err := f.svc.CreateMarket(context.Background(), "match-key-1",
		domain.MarketOption{ActorID: "actor-a", Label: "Ada"},
		domain.MarketOption{ActorID: "actor-b", Label: "Bram"},
	)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, first.RakePercent)
	assert.Equal(t, domain.MarketStatusOpen, first.Status)
}

func TestService_PlaceBet(t *testing.T) {
	f := newServiceFixture(t)
	m := f.openMarket(t)
	f.ledger.credit("alice", 500)

	bet, err := f.svc.PlaceBet(context.Background(), "alice", m.ID, domain.SideA, 200)
	require.NoError(t, err)
	assert.Equal(t, domain.SideA, bet.Side)

	balance, err := f.svc.Balance(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)

	got, err := f.svc.GetMarket(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), got.PoolA)
	assert.Equal(t, int64(0), got.PoolB)
}

func TestService_PlaceBetRejections(t *testing.T) {
	f := newServiceFixture(t)
	m := f.openMarket(t)
	f.ledger.credit("alice", 100)

	_, err := f.svc.PlaceBet(context.Background(), "alice", m.ID, domain.SideA, 0)
	assert.ErrorIs(t, err, domain.ErrAmountNotPositive)

	_, err = f.svc.PlaceBet(context.Background(), "alice", m.ID, domain.Side("C"), 50)
	assert.ErrorIs(t, err, domain.ErrInvalidSide)

	_, err = f.svc.PlaceBet(context.Background(), "alice", m.ID, domain.SideA, 500)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	require.NoError(t, f.svc.Lock(context.Background(), m.ID))
	_, err = f.svc.PlaceBet(context.Background(), "alice", m.ID, domain.SideA, 50)
	assert.ErrorIs(t, err, domain.ErrMarketNotOpen)

	// Nothing moved: the rejected bets left balance and pools alone.
	balance, _ := f.svc.Balance(context.Background(), "alice")
	assert.Equal(t, int64(100), balance)
	got, _ := f.svc.GetMarket(context.Background(), m.ID)
	assert.Equal(t, int64(0), got.TotalPool())
}

func TestService_ResolvePaysWinners(t *testing.T) {
	f := newServiceFixture(t)
	m := f.openMarket(t)
	f.ledger.credit("alice", 1000)
	f.ledger.credit("bob", 3000)
	f.ledger.credit("carol", 6000)

	_, err := f.svc.PlaceBet(context.Background(), "alice", m.ID, domain.SideA, 1000)
	require.NoError(t, err)
	_, err = f.svc.PlaceBet(context.Background(), "bob", m.ID, domain.SideA, 3000)
	require.NoError(t, err)
	_, err = f.svc.PlaceBet(context.Background(), "carol", m.ID, domain.SideB, 6000)
	require.NoError(t, err)

	require.NoError(t, f.svc.Resolve(context.Background(), m.ID, "actor-a"))

	// Pool 10000, rake 500, payout pool 9500 split over the A pool.
	balance, _ := f.svc.Balance(context.Background(), "alice")
	assert.Equal(t, int64(2375), balance)
	balance, _ = f.svc.Balance(context.Background(), "bob")
	assert.Equal(t, int64(7125), balance)
	balance, _ = f.svc.Balance(context.Background(), "carol")
	assert.Equal(t, int64(0), balance)

	got, err := f.svc.GetMarket(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusResolved, got.Status)
	assert.Equal(t, domain.SideA, got.Outcome)

	bet, err := f.svc.BetOutcome(context.Background(), "carol", m.ID)
	require.NoError(t, err)
	require.NotNil(t, bet.Payout)
	assert.Equal(t, int64(0), *bet.Payout)
}

func TestService_ResolveUnknownActor(t *testing.T) {
	f := newServiceFixture(t)
	m := f.openMarket(t)

	err := f.svc.Resolve(context.Background(), m.ID, "stranger")
	assert.Error(t, err)

	got, _ := f.svc.GetMarket(context.Background(), m.ID)
	assert.Equal(t, domain.MarketStatusOpen, got.Status)
}

func TestService_ResolveEmptyWinnerCancels(t *testing.T) {
	f := newServiceFixture(t)
	m := f.openMarket(t)
	f.ledger.credit("alice", 500)

	_, err := f.svc.PlaceBet(context.Background(), "alice", m.ID, domain.SideB, 500)
	require.NoError(t, err)

	require.NoError(t, f.svc.Resolve(context.Background(), m.ID, ""))

	balance, _ := f.svc.Balance(context.Background(), "alice")
	assert.Equal(t, int64(500), balance)

	got, _ := f.svc.GetMarket(context.Background(), m.ID)
	assert.Equal(t, domain.MarketStatusCancelled, got.Status)
}

func TestService_ResolveTerminalNoOp(t *testing.T) {
	f := newServiceFixture(t)
	m := f.openMarket(t)
	f.ledger.credit("alice", 500)

	_, err := f.svc.PlaceBet(context.Background(), "alice", m.ID, domain.SideA, 500)
	require.NoError(t, err)

	require.NoError(t, f.svc.Resolve(context.Background(), m.ID, "actor-a"))
	balance, _ := f.svc.Balance(context.Background(), "alice")

	// A second resolution pays nobody twice.
	require.NoError(t, f.svc.Resolve(context.Background(), m.ID, "actor-a"))
	again, _ := f.svc.Balance(context.Background(), "alice")
	assert.Equal(t, balance, again)

	// Cancelling after resolution refunds nothing either.
	require.NoError(t, f.svc.Cancel(context.Background(), m.ID))
	again, _ = f.svc.Balance(context.Background(), "alice")
	assert.Equal(t, balance, again)
}

func TestService_GetActiveMarkets(t *testing.T) {
	f := newServiceFixture(t)
	m := f.openMarket(t)

	active, err := f.svc.GetActiveMarkets(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, f.svc.Lock(context.Background(), m.ID))
	active, err = f.svc.GetActiveMarkets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestService_OddsCacheFirst(t *testing.T) {
	f := newServiceFixture(t)
	m := f.openMarket(t)
	f.ledger.credit("alice", 400)

	_, err := f.svc.PlaceBet(context.Background(), "alice", m.ID, domain.SideA, 400)
	require.NoError(t, err)

	// PlaceBet refreshed the cache; the read hits it.
	odds, err := f.svc.Odds(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), odds.PoolA)
	assert.InDelta(t, 100.0, odds.PercentA, 1e-9)

	cached, err := f.odds.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, odds, cached)

	// Resolution invalidates; the next read falls through to the store.
	require.NoError(t, f.svc.Resolve(context.Background(), m.ID, "actor-a"))
	_, err = f.odds.Get(context.Background(), m.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	odds, err = f.svc.Odds(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), odds.PoolA)
}
