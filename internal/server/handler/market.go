package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

// MarketService defines what the betting handlers need from the market
// service layer.
type MarketService interface {
	PlaceBet(ctx context.Context, wallet, marketID string, side domain.Side, amount int64) (domain.Bet, error)
	Odds(ctx context.Context, marketID string) (domain.MarketOdds, error)
	GetActiveMarkets(ctx context.Context) ([]domain.Market, error)
	Stats(ctx context.Context, wallet string) (domain.BettorStats, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.BettorStats, error)
	Balance(ctx context.Context, wallet string) (int64, error)
}

// PhaseInfo is the slice of the scheduler's state the betting handlers use
// to gate wagers to the announcement window.
type PhaseInfo interface {
	Phase() domain.Phase
	NextSpinAt() time.Time
	CurrentMarketID() (string, bool)
}

// MarketHandler serves the spectator betting endpoints.
type MarketHandler struct {
	markets MarketService
	phases  PhaseInfo
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and
// scheduler view.
func NewMarketHandler(markets MarketService, phases PhaseInfo, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		phases:  phases,
		logger:  logger,
	}
}

// placeBetRequest is the body for POST /wheel/bet. MarketID may be omitted
// to bet on the current cycle's market.
type placeBetRequest struct {
	Wallet   string `json:"wallet"`
	MarketID string `json:"market_id"`
	Side     string `json:"side"`
	Amount   int64  `json:"amount"`
}

// PlaceBet places a spectator bet on the current matchup. Bets are only
// accepted while the wheel is announcing; outside that window the response
// carries the current phase and the next spin time.
// POST /wheel/bet
func (h *MarketHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Wallet == "" {
		writeError(w, http.StatusBadRequest, "missing wallet")
		return
	}

	if phase := h.phases.Phase(); phase != domain.PhaseAnnouncing {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":        domain.ErrNotBettingPhase.Error(),
			"phase":        phase,
			"next_spin_at": h.phases.NextSpinAt().UTC().Format(time.RFC3339),
		})
		return
	}

	marketID := req.MarketID
	if marketID == "" {
		current, ok := h.phases.CurrentMarketID()
		if !ok {
			writeError(w, http.StatusConflict, "no market is open")
			return
		}
		marketID = current
	}

	bet, err := h.markets.PlaceBet(r.Context(), req.Wallet, marketID, domain.Side(req.Side), req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAmountNotPositive):
			writeError(w, http.StatusBadRequest, "amount must be positive")
		case errors.Is(err, domain.ErrInvalidSide):
			writeError(w, http.StatusBadRequest, "side must be A or B")
		case errors.Is(err, domain.ErrInsufficientBalance):
			writeError(w, http.StatusUnprocessableEntity, "insufficient balance")
		case errors.Is(err, domain.ErrMarketNotOpen):
			writeError(w, http.StatusConflict, "market is not open")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "market not found")
		default:
			h.logger.ErrorContext(r.Context(), "handler: place bet failed",
				slog.String("market_id", marketID),
				slog.String("wallet", req.Wallet),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to place bet")
		}
		return
	}

	writeJSON(w, http.StatusCreated, bet)
}

// GetOdds returns the live odds view for a market. Without a market_id
// query parameter it targets the current cycle's market.
// GET /wheel/odds?market_id=...
func (h *MarketHandler) GetOdds(w http.ResponseWriter, r *http.Request) {
	marketID := r.URL.Query().Get("market_id")
	if marketID == "" {
		current, ok := h.phases.CurrentMarketID()
		if !ok {
			writeError(w, http.StatusNotFound, "no market is open")
			return
		}
		marketID = current
	}

	odds, err := h.markets.Odds(r.Context(), marketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get odds failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get odds")
		return
	}

	writeJSON(w, http.StatusOK, odds)
}

// myStatsResponse joins a wallet's stats with its live balance.
type myStatsResponse struct {
	Stats   domain.BettorStats `json:"stats"`
	Balance int64              `json:"balance"`
}

// GetMyStats returns the caller's aggregate betting performance.
// GET /wheel/my-stats?wallet=...
func (h *MarketHandler) GetMyStats(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "missing wallet")
		return
	}

	stats, err := h.markets.Stats(r.Context(), wallet)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get stats failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	balance, err := h.markets.Balance(r.Context(), wallet)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get balance failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get balance")
		return
	}

	writeJSON(w, http.StatusOK, myStatsResponse{Stats: stats, Balance: balance})
}

// leaderboardResponse wraps the leaderboard endpoint output.
type leaderboardResponse struct {
	Leaders []domain.BettorStats `json:"leaders"`
	Limit   int                  `json:"limit"`
}

// GetLeaderboard returns the top bettors by lifetime net profit.
// GET /wheel/leaderboard?limit=10
func (h *MarketHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	leaders, err := h.markets.Leaderboard(r.Context(), opts.Limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: leaderboard failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get leaderboard")
		return
	}
	if leaders == nil {
		leaders = []domain.BettorStats{}
	}

	writeJSON(w, http.StatusOK, leaderboardResponse{Leaders: leaders, Limit: opts.Limit})
}

// GetActiveMarkets returns all markets currently open for betting.
// GET /wheel/markets
func (h *MarketHandler) GetActiveMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.GetActiveMarkets(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}
	if markets == nil {
		markets = []domain.Market{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"markets": markets})
}
