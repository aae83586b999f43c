package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chainedmetrics/kpimarkets/internal/analytics"
	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

// SeriesRefreshChannel is the signal-bus channel carrying series refresh
// events for WebSocket fan-out.
const SeriesRefreshChannel = "series:refresh"

// TransferFetcher pulls an address's full ERC-20 transfer history from the
// block explorer.
type TransferFetcher interface {
	TokenTransfers(ctx context.Context, address string) ([]domain.TransferEvent, error)
}

// AnalyticsService reconstructs price histories and PnL leaderboards from
// on-chain transfer events. Computed series are cached; every cache miss is
// a full explorer scan of the market's AMM address.
type AnalyticsService struct {
	markets    domain.MarketStore
	fetcher    TransferFetcher
	cache      domain.SeriesCache
	bus        domain.SignalBus
	collateral string
	null       string
	logger     *slog.Logger
}

// NewAnalyticsService creates an AnalyticsService. collateral and null are
// the chain-wide collateral token contract and mint/burn address.
func NewAnalyticsService(
	markets domain.MarketStore,
	fetcher TransferFetcher,
	cache domain.SeriesCache,
	bus domain.SignalBus,
	collateral, null string,
	logger *slog.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		markets:    markets,
		fetcher:    fetcher,
		cache:      cache,
		bus:        bus,
		collateral: collateral,
		null:       null,
		logger:     logger.With(slog.String("component", "analytics")),
	}
}

// PriceSeries returns the market's reconstructed price history, serving from
// cache when possible.
func (s *AnalyticsService) PriceSeries(ctx context.Context, market domain.Market) ([]domain.PriceSample, error) {
	if s.cache != nil {
		samples, err := s.cache.GetSeries(ctx, market.ID)
		if err == nil {
			return samples, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			// A broken cache degrades to a recompute, not a failed request.
			s.logger.WarnContext(ctx, "series cache read failed",
				slog.Int64("market_id", market.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	samples, err := s.computeSeries(ctx, market)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetSeries(ctx, market.ID, samples); err != nil {
			s.logger.WarnContext(ctx, "series cache write failed",
				slog.Int64("market_id", market.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return samples, nil
}

// PriceSeriesByID looks up the market and returns its price history.
func (s *AnalyticsService) PriceSeriesByID(ctx context.Context, marketID int64) ([]domain.PriceSample, error) {
	market, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return nil, err
	}
	return s.PriceSeries(ctx, market)
}

// RefreshSeries drops the cached series, recomputes it from chain history,
// and announces the refresh on the signal bus.
func (s *AnalyticsService) RefreshSeries(ctx context.Context, marketID int64) ([]domain.PriceSample, error) {
	market, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, marketID); err != nil {
			s.logger.WarnContext(ctx, "series cache invalidate failed",
				slog.Int64("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}

	samples, err := s.PriceSeries(ctx, market)
	if err != nil {
		return nil, err
	}

	if s.bus != nil {
		payload, _ := json.Marshal(map[string]any{
			"market_id":  marketID,
			"samples":    len(samples),
			"refreshed":  time.Now().UTC(),
		})
		if err := s.bus.Publish(ctx, SeriesRefreshChannel, payload); err != nil {
			s.logger.WarnContext(ctx, "series refresh publish failed",
				slog.Int64("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}
	return samples, nil
}

// CurrentPrices returns the market's latest implied long/short prices, or the
// stored defaults when no trade has produced a defined price yet.
func (s *AnalyticsService) CurrentPrices(ctx context.Context, market domain.Market) (longPrice, shortPrice float64, err error) {
	samples, err := s.PriceSeries(ctx, market)
	if err != nil {
		return 0, 0, err
	}
	if len(samples) == 0 {
		return market.BeatPrice, market.MissPrice, nil
	}
	last := samples[len(samples)-1]
	return last.LongPrice, 1 - last.LongPrice, nil
}

// Leaderboard replays trades for the markets selected by filter and ranks
// accounts by combined PnL. Open positions are marked at each market's last
// implied price. A non-zero Until cuts the replay off at that instant, so the
// board reflects standings as of that date.
func (s *AnalyticsService) Leaderboard(ctx context.Context, filter domain.LeaderboardFilter) ([]domain.LeaderboardEntry, error) {
	markets, err := s.selectMarkets(ctx, filter)
	if err != nil {
		return nil, err
	}

	combined := make(map[string]float64)
	for _, m := range markets {
		trades, err := s.fetchTrades(ctx, m)
		if err != nil {
			return nil, err
		}
		if !filter.Until.IsZero() {
			trades = analytics.TradesBefore(trades, filter.Until)
		}
		analytics.MergePnL(combined, analytics.ComputePnL(trades, nil))
	}

	s.logger.DebugContext(ctx, "leaderboard computed",
		slog.Int("markets", len(markets)),
		slog.Int("accounts", len(combined)),
	)
	return analytics.Rank(combined), nil
}

func (s *AnalyticsService) selectMarkets(ctx context.Context, filter domain.LeaderboardFilter) ([]domain.Market, error) {
	switch {
	case filter.MarketID != 0:
		m, err := s.markets.GetByID(ctx, filter.MarketID)
		if err != nil {
			return nil, err
		}
		return []domain.Market{m}, nil
	case filter.Ticker != "":
		return s.markets.ListByTicker(ctx, filter.Ticker)
	default:
		return s.markets.List(ctx, domain.ListOpts{})
	}
}

// computeSeries runs the full reconstruction pipeline for one market.
func (s *AnalyticsService) computeSeries(ctx context.Context, market domain.Market) ([]domain.PriceSample, error) {
	events, err := s.fetcher.TokenTransfers(ctx, market.BrokerAddress)
	if err != nil {
		return nil, fmt.Errorf("analytics service: market %d: %w", market.ID, err)
	}

	addrs := market.Addresses(s.collateral, s.null)
	samples, err := analytics.BuildPriceSeries(events, addrs, market.High, market.Low)
	if err != nil {
		return nil, fmt.Errorf("analytics service: market %d: %w", market.ID, err)
	}

	s.logger.DebugContext(ctx, "series computed",
		slog.Int64("market_id", market.ID),
		slog.Int("events", len(events)),
		slog.Int("samples", len(samples)),
	)
	return samples, nil
}

func (s *AnalyticsService) fetchTrades(ctx context.Context, market domain.Market) ([]*analytics.Trade, error) {
	events, err := s.fetcher.TokenTransfers(ctx, market.BrokerAddress)
	if err != nil {
		return nil, fmt.Errorf("analytics service: market %d: %w", market.ID, err)
	}
	trades, err := analytics.GroupTrades(events, market.Addresses(s.collateral, s.null))
	if err != nil {
		return nil, fmt.Errorf("analytics service: market %d: %w", market.ID, err)
	}
	return trades, nil
}
