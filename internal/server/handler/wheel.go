package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/townwheel/internal/domain"
	"github.com/alanyoungcy/townwheel/internal/wheel"
)

// WheelService defines what the wheel handler needs from the scheduler. It
// is declared locally so the handler package does not depend on the
// concrete scheduler beyond its read model.
type WheelService interface {
	Status() wheel.Status
	History(limit int) []domain.Result
	Spin(ctx context.Context) error
	CurrentMarketID() (string, bool)
}

// BetReader looks up a wallet's settled bet, for the personal outcome shown
// on the status endpoint during the aftermath.
type BetReader interface {
	BetOutcome(ctx context.Context, wallet, marketID string) (domain.Bet, error)
}

// WheelHandler serves the wheel status, history, and manual spin endpoints.
type WheelHandler struct {
	wheel  WheelService
	bets   BetReader
	logger *slog.Logger
}

// NewWheelHandler creates a WheelHandler with the given scheduler and logger.
func NewWheelHandler(wheel WheelService, bets BetReader, logger *slog.Logger) *WheelHandler {
	return &WheelHandler{
		wheel:  wheel,
		bets:   bets,
		logger: logger,
	}
}

// statusResponse extends the scheduler snapshot with the caller's own bet.
type statusResponse struct {
	wheel.Status
	MyBet *domain.Bet `json:"my_bet,omitempty"`
}

// GetStatus returns the wheel's current phase, countdowns, and matchup.
// With ?wallet= it also returns the caller's bet on the settled market
// during the aftermath.
// GET /wheel/status?wallet=...
func (h *WheelHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Status: h.wheel.Status()}

	wallet := r.URL.Query().Get("wallet")
	if wallet != "" && resp.Phase == domain.PhaseAftermath {
		if marketID, ok := h.wheel.CurrentMarketID(); ok {
			if bet, err := h.bets.BetOutcome(r.Context(), wallet, marketID); err == nil {
				resp.MyBet = &bet
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// historyResponse wraps the history endpoint output.
type historyResponse struct {
	Results []domain.Result `json:"results"`
	Limit   int             `json:"limit"`
}

// GetHistory returns recent wheel results, most recent first.
// GET /wheel/history?limit=20
func (h *WheelHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	results := h.wheel.History(opts.Limit)
	if results == nil {
		results = []domain.Result{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Results: results,
		Limit:   opts.Limit,
	})
}

// ForceSpin triggers a wheel cycle immediately and blocks until it
// completes, then returns the outcome.
// POST /wheel/spin
func (h *WheelHandler) ForceSpin(w http.ResponseWriter, r *http.Request) {
	if err := h.wheel.Spin(r.Context()); err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadySpinning):
			writeError(w, http.StatusConflict, "a spin is already in progress")
		case errors.Is(err, domain.ErrNotEnoughAgents):
			writeError(w, http.StatusUnprocessableEntity, "not enough eligible agents for a match")
		default:
			h.logger.ErrorContext(r.Context(), "handler: spin failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "spin failed")
		}
		return
	}

	st := h.wheel.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": st,
		"result": st.LastResult,
	})
}
