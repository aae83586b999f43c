package service

import (
	"context"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

const (
	testCollateral = "0xusdc"
	testNull       = "0x0000000000000000000000000000000000000000"
)

func testMarket(id int64, ticker, broker string) domain.Market {
	return domain.Market{
		ID:            id,
		Ticker:        ticker,
		Metric:        "revenue",
		FiscalPeriod:  "Q3-2026",
		High:          100,
		Low:           0,
		BeatAddress:   broker + "beat",
		MissAddress:   broker + "miss",
		BrokerAddress: broker,
		BeatPrice:     0.5,
		MissPrice:     0.5,
	}
}

// completeBuy returns the four legs of one complete long buy on market m.
func completeBuy(m domain.Market, hash, buyer string, invested, minted, returned int64, ts int64) []domain.TransferEvent {
	return []domain.TransferEvent{
		{TxHash: hash, From: buyer, To: m.BrokerAddress, ContractAddress: testCollateral, Value: big.NewInt(invested), Timestamp: ts},
		{TxHash: hash, From: testNull, To: m.BrokerAddress, ContractAddress: m.BeatAddress, Value: big.NewInt(minted), Timestamp: ts},
		{TxHash: hash, From: testNull, To: m.BrokerAddress, ContractAddress: m.MissAddress, Value: big.NewInt(minted), Timestamp: ts},
		{TxHash: hash, From: m.BrokerAddress, To: buyer, ContractAddress: m.BeatAddress, Value: big.NewInt(returned), Timestamp: ts},
	}
}

func newTestAnalytics(markets *fakeMarketStore, fetcher *fakeFetcher, cache *fakeSeriesCache, bus *fakeBus) *AnalyticsService {
	var c domain.SeriesCache
	if cache != nil {
		c = cache
	}
	var b domain.SignalBus
	if bus != nil {
		b = bus
	}
	return NewAnalyticsService(markets, fetcher, c, b, testCollateral, testNull, discardLogger())
}

func TestPriceSeriesComputesAndCaches(t *testing.T) {
	m := testMarket(1, "SNAP", "0xamm1")
	markets := &fakeMarketStore{markets: map[int64]domain.Market{1: m}}
	fetcher := &fakeFetcher{events: map[string][]domain.TransferEvent{
		"0xamm1": completeBuy(m, "0xa", "0xbuyer", 100, 200, 150, 10),
	}}
	cache := newFakeSeriesCache()

	svc := newTestAnalytics(markets, fetcher, cache, nil)
	ctx := context.Background()

	samples, err := svc.PriceSeriesByID(ctx, 1)
	if err != nil {
		t.Fatalf("PriceSeriesByID() error = %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	if want := 200.0 / 250.0; math.Abs(samples[0].LongPrice-want) > 1e-9 {
		t.Errorf("LongPrice = %v, want %v", samples[0].LongPrice, want)
	}
	if cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1", cache.sets)
	}

	// Second read must come from the cache.
	if _, err := svc.PriceSeriesByID(ctx, 1); err != nil {
		t.Fatalf("PriceSeriesByID() second call error = %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetcher calls = %d, want 1", fetcher.calls)
	}
}

func TestPriceSeriesUnknownMarket(t *testing.T) {
	svc := newTestAnalytics(&fakeMarketStore{markets: map[int64]domain.Market{}}, &fakeFetcher{}, nil, nil)
	if _, err := svc.PriceSeriesByID(context.Background(), 42); err != domain.ErrNotFound {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestCurrentPricesFallsBackToStored(t *testing.T) {
	m := testMarket(1, "SNAP", "0xamm1")
	m.BeatPrice, m.MissPrice = 0.62, 0.38
	svc := newTestAnalytics(
		&fakeMarketStore{markets: map[int64]domain.Market{1: m}},
		&fakeFetcher{}, // no on-chain history
		nil, nil,
	)

	long, short, err := svc.CurrentPrices(context.Background(), m)
	if err != nil {
		t.Fatalf("CurrentPrices() error = %v", err)
	}
	if long != 0.62 || short != 0.38 {
		t.Errorf("prices = (%v, %v), want stored (0.62, 0.38)", long, short)
	}
}

func TestRefreshSeriesPublishes(t *testing.T) {
	m := testMarket(1, "SNAP", "0xamm1")
	markets := &fakeMarketStore{markets: map[int64]domain.Market{1: m}}
	fetcher := &fakeFetcher{events: map[string][]domain.TransferEvent{
		"0xamm1": completeBuy(m, "0xa", "0xbuyer", 100, 200, 150, 10),
	}}
	cache := newFakeSeriesCache()
	bus := newFakeBus()

	svc := newTestAnalytics(markets, fetcher, cache, bus)
	ctx := context.Background()

	// Prime the cache, then refresh: the fetcher must be hit again.
	if _, err := svc.PriceSeriesByID(ctx, 1); err != nil {
		t.Fatalf("PriceSeriesByID() error = %v", err)
	}
	if _, err := svc.RefreshSeries(ctx, 1); err != nil {
		t.Fatalf("RefreshSeries() error = %v", err)
	}
	if fetcher.calls != 2 {
		t.Errorf("fetcher calls = %d, want 2", fetcher.calls)
	}
	if len(bus.messages[SeriesRefreshChannel]) != 1 {
		t.Errorf("published refresh events = %d, want 1", len(bus.messages[SeriesRefreshChannel]))
	}
}

func TestLeaderboard(t *testing.T) {
	m1 := testMarket(1, "SNAP", "0xamm1")
	m2 := testMarket(2, "TWTR", "0xamm2")
	markets := &fakeMarketStore{markets: map[int64]domain.Market{1: m1, 2: m2}}
	fetcher := &fakeFetcher{events: map[string][]domain.TransferEvent{
		// alice buys on both markets, bob only on the first.
		"0xamm1": append(
			completeBuy(m1, "0xa", "0xalice", 100, 200, 150, 10),
			completeBuy(m1, "0xb", "0xbob", 50, 80, 60, 20)...,
		),
		"0xamm2": completeBuy(m2, "0xc", "0xalice", 30, 60, 40, 30),
	}}

	svc := newTestAnalytics(markets, fetcher, nil, nil)

	entries, err := svc.Leaderboard(context.Background(), domain.LeaderboardFilter{})
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].PnL < entries[i].PnL {
			t.Errorf("entries not sorted descending: %v", entries)
		}
	}

	// Ticker filter narrows to one market.
	entries, err = svc.Leaderboard(context.Background(), domain.LeaderboardFilter{Ticker: "TWTR"})
	if err != nil {
		t.Fatalf("Leaderboard(ticker) error = %v", err)
	}
	if len(entries) != 1 || entries[0].Account != "0xalice" {
		t.Errorf("ticker-filtered entries = %v", entries)
	}
}

func TestLeaderboardAsOfDate(t *testing.T) {
	m := testMarket(1, "SNAP", "0xamm1")
	markets := &fakeMarketStore{markets: map[int64]domain.Market{1: m}}
	fetcher := &fakeFetcher{events: map[string][]domain.TransferEvent{
		// alice trades at t=10, bob at t=20.
		"0xamm1": append(
			completeBuy(m, "0xa", "0xalice", 100, 200, 150, 10),
			completeBuy(m, "0xb", "0xbob", 50, 80, 60, 20)...,
		),
	}}

	svc := newTestAnalytics(markets, fetcher, nil, nil)

	// A cutoff between the two trades drops bob from the board.
	entries, err := svc.Leaderboard(context.Background(), domain.LeaderboardFilter{
		Until: time.Unix(15, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("Leaderboard(until) error = %v", err)
	}
	if len(entries) != 1 || entries[0].Account != "0xalice" {
		t.Errorf("as-of entries = %v, want only 0xalice", entries)
	}
}
