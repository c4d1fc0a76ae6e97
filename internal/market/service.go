// Package market implements the spectator prediction market around wheel
// matches: a binary parimutuel pool per match with rake-adjusted,
// floor-rounded settlement.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

// oddsChannel carries odds updates for the spectator feed.
const oddsChannel = "ch:wheel:odds"

// Service exposes the prediction market operations. All financial
// mutations delegate to the store, which runs them inside a single
// transaction; the service layers validation, caching, and publishing on
// top.
type Service struct {
	markets domain.MarketStore
	ledger  domain.LedgerStore
	stats   domain.StatsStore
	odds    domain.OddsCache // optional
	bus     domain.SignalBus // optional
	rake    int
	logger  *slog.Logger
}

// NewService creates a market Service. odds and bus may be nil.
func NewService(
	markets domain.MarketStore,
	ledger domain.LedgerStore,
	stats domain.StatsStore,
	odds domain.OddsCache,
	bus domain.SignalBus,
	rakePercent int,
	logger *slog.Logger,
) *Service {
	return &Service{
		markets: markets,
		ledger:  ledger,
		stats:   stats,
		odds:    odds,
		bus:     bus,
		rake:    rakePercent,
		logger:  logger.With(slog.String("component", "market_service")),
	}
}

// CreateMarket opens spectator wagering for a match. Creation is
// idempotent per match key: a second call returns the existing market
// unchanged.
func (s *Service) CreateMarket(ctx context.Context, matchKey string, optionA, optionB domain.MarketOption) (domain.Market, error) {
	m := domain.Market{
		ID:          uuid.New().String(),
		MatchKey:    matchKey,
		OptionA:     optionA,
		OptionB:     optionB,
		RakePercent: s.rake,
		Status:      domain.MarketStatusOpen,
		CreatedAt:   time.Now().UTC(),
	}

	created, err := s.markets.Create(ctx, m)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market: create for %s: %w", matchKey, err)
	}

	s.logger.InfoContext(ctx, "market opened",
		slog.String("market_id", created.ID),
		slog.String("match_key", matchKey),
		slog.String("option_a", optionA.Label),
		slog.String("option_b", optionB.Label),
	)
	return created, nil
}

// PlaceBet validates and places one spectator bet. The debit, pool bump,
// and bet insert commit together; a rejected bet mutates nothing.
func (s *Service) PlaceBet(ctx context.Context, wallet, marketID string, side domain.Side, amount int64) (domain.Bet, error) {
	if amount <= 0 {
		return domain.Bet{}, domain.ErrAmountNotPositive
	}
	if !side.Valid() {
		return domain.Bet{}, domain.ErrInvalidSide
	}

	bet := domain.Bet{
		ID:        uuid.New().String(),
		MarketID:  marketID,
		Wallet:    wallet,
		Side:      side,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}

	placed, err := s.markets.PlaceBet(ctx, bet)
	if err != nil {
		return domain.Bet{}, err
	}

	s.logger.InfoContext(ctx, "bet placed",
		slog.String("market_id", marketID),
		slog.String("wallet", wallet),
		slog.String("side", string(side)),
		slog.Int64("amount", amount),
	)
	s.refreshOdds(ctx, marketID)
	return placed, nil
}

// Lock closes the betting window. Locking an already locked or terminal
// market is a no-op.
func (s *Service) Lock(ctx context.Context, marketID string) error {
	if err := s.markets.Lock(ctx, marketID); err != nil {
		return fmt.Errorf("market: lock %s: %w", marketID, err)
	}
	s.logger.InfoContext(ctx, "market locked", slog.String("market_id", marketID))
	return nil
}

// Resolve settles the market for the winning actor. An empty winner ID is
// a draw and cancels the market with full refunds. Resolving an already
// settled market is a silent no-op.
func (s *Service) Resolve(ctx context.Context, marketID, winnerActorID string) error {
	if winnerActorID == "" {
		return s.Cancel(ctx, marketID)
	}

	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return fmt.Errorf("market: resolve %s: %w", marketID, err)
	}
	if m.Status.Terminal() {
		return nil
	}

	winner, ok := m.SideFor(winnerActorID)
	if !ok {
		return fmt.Errorf("market: resolve %s: actor %s is not an option", marketID, winnerActorID)
	}

	if err := s.markets.Resolve(ctx, marketID, winner); err != nil {
		return fmt.Errorf("market: resolve %s: %w", marketID, err)
	}

	s.logger.InfoContext(ctx, "market resolved",
		slog.String("market_id", marketID),
		slog.String("outcome", string(winner)),
	)
	s.invalidateOdds(ctx, marketID)
	return nil
}

// Cancel refunds every bet in full and closes the market. Cancelling an
// already settled market is a silent no-op.
func (s *Service) Cancel(ctx context.Context, marketID string) error {
	if err := s.markets.Cancel(ctx, marketID); err != nil {
		return fmt.Errorf("market: cancel %s: %w", marketID, err)
	}
	s.logger.InfoContext(ctx, "market cancelled", slog.String("market_id", marketID))
	s.invalidateOdds(ctx, marketID)
	return nil
}

// GetMarket returns a market by ID.
func (s *Service) GetMarket(ctx context.Context, marketID string) (domain.Market, error) {
	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market: get %s: %w", marketID, err)
	}
	return m, nil
}

// GetActiveMarkets returns all OPEN markets.
func (s *Service) GetActiveMarkets(ctx context.Context) ([]domain.Market, error) {
	markets, err := s.markets.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("market: list active: %w", err)
	}
	return markets, nil
}

// Odds returns the current odds view for a market, preferring the cache.
func (s *Service) Odds(ctx context.Context, marketID string) (domain.MarketOdds, error) {
	if s.odds != nil {
		if odds, err := s.odds.Get(ctx, marketID); err == nil {
			return odds, nil
		}
	}

	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.MarketOdds{}, fmt.Errorf("market: odds %s: %w", marketID, err)
	}
	return m.Odds(), nil
}

// BetOutcome returns the caller's settled bet on the given market, used for
// the personal result during AFTERMATH.
func (s *Service) BetOutcome(ctx context.Context, wallet, marketID string) (domain.Bet, error) {
	bet, err := s.markets.GetBet(ctx, marketID, wallet)
	if err != nil {
		return domain.Bet{}, err
	}
	return bet, nil
}

// Stats returns a wallet's aggregate resolved-bet performance.
func (s *Service) Stats(ctx context.Context, wallet string) (domain.BettorStats, error) {
	st, err := s.stats.Get(ctx, wallet)
	if err != nil {
		return domain.BettorStats{}, fmt.Errorf("market: stats %s: %w", wallet, err)
	}
	return st, nil
}

// Leaderboard returns the top bettors by lifetime net profit.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]domain.BettorStats, error) {
	board, err := s.stats.Leaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("market: leaderboard: %w", err)
	}
	return board, nil
}

// Balance returns a spectator wallet's ledger balance.
func (s *Service) Balance(ctx context.Context, wallet string) (int64, error) {
	return s.ledger.GetBalance(ctx, wallet)
}

// refreshOdds recomputes the odds view after a pool change and pushes it to
// the cache and the spectator feed. Failures are non-fatal.
func (s *Service) refreshOdds(ctx context.Context, marketID string) {
	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return
	}
	odds := m.Odds()

	if s.odds != nil {
		if err := s.odds.Set(ctx, odds); err != nil {
			s.logger.DebugContext(ctx, "odds cache set failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.bus != nil {
		if payload, err := json.Marshal(odds); err == nil {
			_ = s.bus.Publish(ctx, oddsChannel, payload)
		}
	}
}

func (s *Service) invalidateOdds(ctx context.Context, marketID string) {
	if s.odds == nil {
		return
	}
	if err := s.odds.Invalidate(ctx, marketID); err != nil {
		s.logger.DebugContext(ctx, "odds cache invalidate failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}
