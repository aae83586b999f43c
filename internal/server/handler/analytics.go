package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

// AnalyticsService is the slice of the analytics pipeline the handler needs.
type AnalyticsService interface {
	PriceSeriesByID(ctx context.Context, marketID int64) ([]domain.PriceSample, error)
	RefreshSeries(ctx context.Context, marketID int64) ([]domain.PriceSample, error)
	Leaderboard(ctx context.Context, filter domain.LeaderboardFilter) ([]domain.LeaderboardEntry, error)
}

// AnalyticsHandler serves price-series and leaderboard endpoints.
type AnalyticsHandler struct {
	analytics AnalyticsService
	logger    *slog.Logger
}

func NewAnalyticsHandler(analytics AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		logger:    logger,
	}
}

// priceSeriesResponse wraps a market's reconstructed price history.
type priceSeriesResponse struct {
	MarketID int64                `json:"market_id"`
	Samples  []domain.PriceSample `json:"samples"`
}

// leaderboardResponse wraps the ranked PnL entries.
type leaderboardResponse struct {
	Entries []domain.LeaderboardEntry `json:"entries"`
}

// GetPriceSeries returns the market's implied price history reconstructed
// from on-chain transfers.
// GET /api/markets/{id}/prices
func (h *AnalyticsHandler) GetPriceSeries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	samples, err := h.analytics.PriceSeriesByID(r.Context(), id)
	if err != nil {
		h.writeSeriesError(w, r, id, err)
		return
	}

	writeJSON(w, http.StatusOK, priceSeriesResponse{MarketID: id, Samples: samples})
}

// RefreshPriceSeries drops the cached series and recomputes it from chain
// history. Admin only.
// POST /api/markets/{id}/prices/refresh
func (h *AnalyticsHandler) RefreshPriceSeries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	samples, err := h.analytics.RefreshSeries(r.Context(), id)
	if err != nil {
		h.writeSeriesError(w, r, id, err)
		return
	}

	writeJSON(w, http.StatusOK, priceSeriesResponse{MarketID: id, Samples: samples})
}

// GetLeaderboard ranks accounts by realized plus marked PnL across the
// selected markets. An optional date caps the replay, giving standings as of
// the end of that day (UTC).
// GET /api/leaderboard?ticker=SNAP&market_id=3&date=2026-06-30
func (h *AnalyticsHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.LeaderboardFilter{Ticker: q.Get("ticker")}
	if v := q.Get("market_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid market_id")
			return
		}
		filter.MarketID = id
	}
	if v := q.Get("date"); v != "" {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
		// Include every trade on the named day.
		filter.Until = day.AddDate(0, 0, 1)
	}

	entries, err := h.analytics.Leaderboard(r.Context(), filter)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			writeError(w, http.StatusBadGateway, "block explorer unavailable")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: leaderboard failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, leaderboardResponse{Entries: entries})
}

func (h *AnalyticsHandler) writeSeriesError(w http.ResponseWriter, r *http.Request, marketID int64, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "market not found")
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		writeError(w, http.StatusBadGateway, "block explorer unavailable")
	case errors.Is(err, domain.ErrEventOrder):
		h.logger.ErrorContext(r.Context(), "handler: inconsistent transfer history",
			slog.Int64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusUnprocessableEntity, "inconsistent transfer history")
	default:
		h.logger.ErrorContext(r.Context(), "handler: price series failed",
			slog.Int64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute price series")
	}
}
