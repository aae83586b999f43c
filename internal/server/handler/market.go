package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	Get(ctx context.Context, id int64) (domain.Market, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, int64, error)
	ListByTicker(ctx context.Context, ticker string) ([]domain.Market, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns markets with pagination, optionally narrowed to one
// company ticker.
// GET /api/markets?limit=50&offset=0&ticker=SNAP
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	if ticker := r.URL.Query().Get("ticker"); ticker != "" {
		markets, err := h.markets.ListByTicker(r.Context(), ticker)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "handler: list markets by ticker failed",
				slog.String("ticker", ticker),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to list markets")
			return
		}
		writeJSON(w, http.StatusOK, listMarketsResponse{
			Markets: markets,
			Total:   int64(len(markets)),
			Limit:   len(markets),
		})
		return
	}

	opts := parseListOpts(r)
	markets, total, err := h.markets.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market by its ID, with beat/miss prices
// refreshed from the latest reconstructed trade.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	market, err := h.markets.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.Int64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, market)
}
