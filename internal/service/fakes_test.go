package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMarketStore struct {
	markets map[int64]domain.Market
}

func (f *fakeMarketStore) GetByID(_ context.Context, id int64) (domain.Market, error) {
	m, ok := f.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMarketStore) List(context.Context, domain.ListOpts) ([]domain.Market, error) {
	out := make([]domain.Market, 0, len(f.markets))
	for _, m := range f.markets {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMarketStore) ListByTicker(_ context.Context, ticker string) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range f.markets {
		if m.Ticker == ticker {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMarketStore) Count(context.Context) (int64, error) {
	return int64(len(f.markets)), nil
}

type fakeFetcher struct {
	events map[string][]domain.TransferEvent
	err    error
	calls  int
}

func (f *fakeFetcher) TokenTransfers(_ context.Context, address string) ([]domain.TransferEvent, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.events[address], nil
}

type fakeSeriesCache struct {
	mu     sync.Mutex
	series map[int64][]domain.PriceSample
	sets   int
}

func newFakeSeriesCache() *fakeSeriesCache {
	return &fakeSeriesCache{series: make(map[int64][]domain.PriceSample)}
}

func (f *fakeSeriesCache) GetSeries(_ context.Context, marketID int64) ([]domain.PriceSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.series[marketID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeSeriesCache) SetSeries(_ context.Context, marketID int64, samples []domain.PriceSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.series[marketID] = samples
	f.sets++
	return nil
}

func (f *fakeSeriesCache) Invalidate(_ context.Context, marketID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.series, marketID)
	return nil
}

type fakeBus struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{messages: make(map[string][][]byte)}
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[channel] = append(f.messages[channel], payload)
	return nil
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

type fakeUserStore struct {
	mu     sync.Mutex
	users  map[string]domain.User
	nextID int64
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]domain.User)}
}

func (f *fakeUserStore) Create(_ context.Context, u domain.User) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[u.Email]; exists {
		return 0, domain.ErrAlreadyExists
	}
	f.nextID++
	u.ID = f.nextID
	f.users[u.Email] = u
	return u.ID, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

type fakeAccessStore struct {
	requests []domain.AccessRequest
}

func (f *fakeAccessStore) Create(_ context.Context, r domain.AccessRequest) (int64, error) {
	f.requests = append(f.requests, r)
	return int64(len(f.requests)), nil
}

type fakeNotifier struct {
	events []string
}

func (f *fakeNotifier) Notify(_ context.Context, event, title, message string) error {
	f.events = append(f.events, event)
	return nil
}

type fakeFaucetQueue struct {
	enqueued []string
	err      error
}

func (f *fakeFaucetQueue) Enqueue(_ context.Context, email, address string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.enqueued = append(f.enqueued, email)
	return "req-1", nil
}

func (f *fakeFaucetQueue) ProcessNext(context.Context, func(context.Context, domain.FaucetRequest) (float64, error)) (bool, error) {
	return false, nil
}
