package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

// SeriesProvider computes the current reconstructed price series for one
// market. The analytics service satisfies this.
type SeriesProvider interface {
	PriceSeries(ctx context.Context, market domain.Market) ([]domain.PriceSample, error)
}

// Archiver snapshots every market's reconstructed price series to object
// storage so history survives explorer data loss and supports offline
// analysis. Markets whose series cannot be computed are skipped, not fatal:
// one flaky explorer response should not abort the whole sweep.
type Archiver struct {
	writer  domain.BlobWriter
	markets domain.MarketStore
	series  SeriesProvider
	prefix  string
}

// NewArchiver creates a new Archiver writing under the given key prefix.
func NewArchiver(writer domain.BlobWriter, markets domain.MarketStore, series SeriesProvider, prefix string) *Archiver {
	if prefix == "" {
		prefix = "price-series"
	}
	return &Archiver{
		writer:  writer,
		markets: markets,
		series:  series,
		prefix:  prefix,
	}
}

// seriesSnapshot is the JSON document written per market per sweep.
type seriesSnapshot struct {
	MarketID     int64                `json:"market_id"`
	Ticker       string               `json:"ticker"`
	Metric       string               `json:"metric"`
	FiscalPeriod string               `json:"fiscal_period"`
	TakenAt      time.Time            `json:"taken_at"`
	Samples      []domain.PriceSample `json:"samples"`
}

// ArchiveAll snapshots the price series of every market and returns the
// number of markets archived and the number skipped due to errors.
func (a *Archiver) ArchiveAll(ctx context.Context, now time.Time) (archived, skipped int, err error) {
	markets, err := a.markets.List(ctx, domain.ListOpts{})
	if err != nil {
		return 0, 0, fmt.Errorf("s3blob: archive list markets: %w", err)
	}

	for _, m := range markets {
		if ctx.Err() != nil {
			return archived, skipped, ctx.Err()
		}
		if err := a.archiveMarket(ctx, m, now); err != nil {
			skipped++
			continue
		}
		archived++
	}
	return archived, skipped, nil
}

// archiveMarket writes one market's snapshot to
// <prefix>/<ticker>/<market-id>/<timestamp>.json.
func (a *Archiver) archiveMarket(ctx context.Context, m domain.Market, now time.Time) error {
	samples, err := a.series.PriceSeries(ctx, m)
	if err != nil {
		return fmt.Errorf("s3blob: archive series for market %d: %w", m.ID, err)
	}

	snap := seriesSnapshot{
		MarketID:     m.ID,
		Ticker:       m.Ticker,
		Metric:       m.Metric,
		FiscalPeriod: m.FiscalPeriod,
		TakenAt:      now.UTC(),
		Samples:      samples,
	}

	buf, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("s3blob: marshal snapshot for market %d: %w", m.ID, err)
	}

	path := fmt.Sprintf("%s/%s/%d/%s.json", a.prefix, m.Ticker, m.ID, now.UTC().Format("2006-01-02T15-04-05"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/json"); err != nil {
		return fmt.Errorf("s3blob: upload snapshot for market %d: %w", m.ID, err)
	}
	return nil
}
