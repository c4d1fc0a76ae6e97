package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/townwheel/internal/domain"
	"github.com/alanyoungcy/townwheel/internal/wheel"
)

// fakeMarkets implements MarketService with canned responses.
type fakeMarkets struct {
	placeErr     error
	placedMarket string
	placedSide   domain.Side
	odds         domain.MarketOdds
	oddsErr      error
	active       []domain.Market
	stats        domain.BettorStats
	leaders      []domain.BettorStats
	balance      int64
}

func (f *fakeMarkets) PlaceBet(_ context.Context, wallet, marketID string, side domain.Side, amount int64) (domain.Bet, error) {
	if f.placeErr != nil {
		return domain.Bet{}, f.placeErr
	}
	f.placedMarket = marketID
	f.placedSide = side
	return domain.Bet{ID: "b1", MarketID: marketID, Wallet: wallet, Side: side, Amount: amount}, nil
}

func (f *fakeMarkets) Odds(_ context.Context, marketID string) (domain.MarketOdds, error) {
	if f.oddsErr != nil {
		return domain.MarketOdds{}, f.oddsErr
	}
	return f.odds, nil
}

func (f *fakeMarkets) GetActiveMarkets(_ context.Context) ([]domain.Market, error) {
	return f.active, nil
}

func (f *fakeMarkets) Stats(_ context.Context, wallet string) (domain.BettorStats, error) {
	return f.stats, nil
}

func (f *fakeMarkets) Leaderboard(_ context.Context, _ int) ([]domain.BettorStats, error) {
	return f.leaders, nil
}

func (f *fakeMarkets) Balance(_ context.Context, _ string) (int64, error) {
	return f.balance, nil
}

func announcingWheel() *fakeWheel {
	return &fakeWheel{
		status:     wheel.Status{Phase: domain.PhaseAnnouncing},
		marketID:   "market-1",
		nextSpinAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func postBet(t *testing.T, h *MarketHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/wheel/bet", strings.NewReader(body))
	h.PlaceBet(rec, req)
	return rec
}

func TestMarketHandler_PlaceBet(t *testing.T) {
	markets := &fakeMarkets{}
	h := NewMarketHandler(markets, announcingWheel(), testLogger())

	rec := postBet(t, h, `{"wallet":"alice","side":"A","amount":100}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	// The market ID defaults to the current cycle's market.
	assert.Equal(t, "market-1", markets.placedMarket)
	assert.Equal(t, domain.SideA, markets.placedSide)

	var bet domain.Bet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bet))
	assert.Equal(t, int64(100), bet.Amount)
}

func TestMarketHandler_PlaceBet_ExplicitMarket(t *testing.T) {
	markets := &fakeMarkets{}
	h := NewMarketHandler(markets, announcingWheel(), testLogger())

	rec := postBet(t, h, `{"wallet":"alice","market_id":"market-9","side":"B","amount":50}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "market-9", markets.placedMarket)
}

func TestMarketHandler_PlaceBet_MissingWallet(t *testing.T) {
	h := NewMarketHandler(&fakeMarkets{}, announcingWheel(), testLogger())

	rec := postBet(t, h, `{"side":"A","amount":100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarketHandler_PlaceBet_InvalidBody(t *testing.T) {
	h := NewMarketHandler(&fakeMarkets{}, announcingWheel(), testLogger())

	rec := postBet(t, h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarketHandler_PlaceBet_OutsideBettingWindow(t *testing.T) {
	fw := announcingWheel()
	fw.status.Phase = domain.PhaseFighting
	h := NewMarketHandler(&fakeMarkets{}, fw, testLogger())

	rec := postBet(t, h, `{"wallet":"alice","side":"A","amount":100}`)

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp struct {
		Error      string `json:"error"`
		Phase      string `json:"phase"`
		NextSpinAt string `json:"next_spin_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.ErrNotBettingPhase.Error(), resp.Error)
	assert.Equal(t, "fighting", resp.Phase)
	assert.Equal(t, "2026-03-01T12:00:00Z", resp.NextSpinAt)
}

func TestMarketHandler_PlaceBet_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"non-positive amount", domain.ErrAmountNotPositive, http.StatusBadRequest},
		{"invalid side", domain.ErrInvalidSide, http.StatusBadRequest},
		{"insufficient balance", domain.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{"market not open", domain.ErrMarketNotOpen, http.StatusConflict},
		{"market missing", domain.ErrNotFound, http.StatusNotFound},
		{"internal", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMarketHandler(&fakeMarkets{placeErr: tt.err}, announcingWheel(), testLogger())

			rec := postBet(t, h, `{"wallet":"alice","side":"A","amount":100}`)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestMarketHandler_GetOdds(t *testing.T) {
	markets := &fakeMarkets{odds: domain.MarketOdds{MarketID: "market-1", PoolA: 400, PercentA: 100}}
	h := NewMarketHandler(markets, announcingWheel(), testLogger())

	rec := httptest.NewRecorder()
	h.GetOdds(rec, httptest.NewRequest(http.MethodGet, "/wheel/odds", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var odds domain.MarketOdds
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &odds))
	assert.Equal(t, int64(400), odds.PoolA)
}

func TestMarketHandler_GetOdds_NoCurrentMarket(t *testing.T) {
	h := NewMarketHandler(&fakeMarkets{}, &fakeWheel{}, testLogger())

	rec := httptest.NewRecorder()
	h.GetOdds(rec, httptest.NewRequest(http.MethodGet, "/wheel/odds", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarketHandler_GetOdds_NotFound(t *testing.T) {
	h := NewMarketHandler(&fakeMarkets{oddsErr: domain.ErrNotFound}, announcingWheel(), testLogger())

	rec := httptest.NewRecorder()
	h.GetOdds(rec, httptest.NewRequest(http.MethodGet, "/wheel/odds?market_id=gone", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarketHandler_GetMyStats(t *testing.T) {
	markets := &fakeMarkets{
		stats:   domain.BettorStats{Wallet: "alice", TotalBets: 4, NetProfit: 120},
		balance: 900,
	}
	h := NewMarketHandler(markets, announcingWheel(), testLogger())

	rec := httptest.NewRecorder()
	h.GetMyStats(rec, httptest.NewRequest(http.MethodGet, "/wheel/my-stats?wallet=alice", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp myStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(120), resp.Stats.NetProfit)
	assert.Equal(t, int64(900), resp.Balance)
}

func TestMarketHandler_GetMyStats_MissingWallet(t *testing.T) {
	h := NewMarketHandler(&fakeMarkets{}, announcingWheel(), testLogger())

	rec := httptest.NewRecorder()
	h.GetMyStats(rec, httptest.NewRequest(http.MethodGet, "/wheel/my-stats", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarketHandler_GetLeaderboard_Empty(t *testing.T) {
	h := NewMarketHandler(&fakeMarkets{}, announcingWheel(), testLogger())

	rec := httptest.NewRecorder()
	h.GetLeaderboard(rec, httptest.NewRequest(http.MethodGet, "/wheel/leaderboard", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp leaderboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Leaders)
	assert.Empty(t, resp.Leaders)
}

func TestMarketHandler_GetActiveMarkets(t *testing.T) {
	markets := &fakeMarkets{active: []domain.Market{{ID: "market-1", Status: domain.MarketStatusOpen}}}
	h := NewMarketHandler(markets, announcingWheel(), testLogger())

	rec := httptest.NewRecorder()
	h.GetActiveMarkets(rec, httptest.NewRequest(http.MethodGet, "/wheel/markets", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Markets []domain.Market `json:"markets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Markets, 1)
}
