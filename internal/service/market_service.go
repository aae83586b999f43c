package service

import (
	"context"
	"log/slog"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

// MarketService serves market metadata, decorating it with live prices from
// the analytics pipeline.
type MarketService struct {
	markets   domain.MarketStore
	analytics *AnalyticsService
	logger    *slog.Logger
}

// NewMarketService creates a MarketService.
func NewMarketService(markets domain.MarketStore, analytics *AnalyticsService, logger *slog.Logger) *MarketService {
	return &MarketService{
		markets:   markets,
		analytics: analytics,
		logger:    logger.With(slog.String("component", "markets")),
	}
}

// List returns a page of markets and the total count.
func (s *MarketService) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, int64, error) {
	markets, err := s.markets.List(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.markets.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return markets, total, nil
}

// ListByTicker returns all markets for one company ticker.
func (s *MarketService) ListByTicker(ctx context.Context, ticker string) ([]domain.Market, error) {
	return s.markets.ListByTicker(ctx, ticker)
}

// Get returns one market with its beat/miss prices refreshed from the latest
// reconstructed trade. Price refresh failures fall back to the stored
// prices so a flaky explorer never hides the market itself.
func (s *MarketService) Get(ctx context.Context, id int64) (domain.Market, error) {
	market, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, err
	}

	longPrice, shortPrice, err := s.analytics.CurrentPrices(ctx, market)
	if err != nil {
		s.logger.WarnContext(ctx, "price refresh failed, serving stored prices",
			slog.Int64("market_id", id),
			slog.String("error", err.Error()),
		)
		return market, nil
	}
	market.BeatPrice = longPrice
	market.MissPrice = shortPrice
	return market, nil
}
