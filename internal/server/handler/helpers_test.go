package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMarketService struct {
	markets map[int64]domain.Market
	err     error
}

func (f *fakeMarketService) Get(_ context.Context, id int64) (domain.Market, error) {
	if f.err != nil {
		return domain.Market{}, f.err
	}
	m, ok := f.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMarketService) List(context.Context, domain.ListOpts) ([]domain.Market, int64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	out := make([]domain.Market, 0, len(f.markets))
	for _, m := range f.markets {
		out = append(out, m)
	}
	return out, int64(len(out)), nil
}

func (f *fakeMarketService) ListByTicker(_ context.Context, ticker string) ([]domain.Market, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Market
	for _, m := range f.markets {
		if m.Ticker == ticker {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeAnalyticsService struct {
	samples  []domain.PriceSample
	entries  []domain.LeaderboardEntry
	err      error
	refreshs int
	filter   domain.LeaderboardFilter
}

func (f *fakeAnalyticsService) PriceSeriesByID(context.Context, int64) ([]domain.PriceSample, error) {
	return f.samples, f.err
}

func (f *fakeAnalyticsService) RefreshSeries(context.Context, int64) ([]domain.PriceSample, error) {
	f.refreshs++
	return f.samples, f.err
}

func (f *fakeAnalyticsService) Leaderboard(_ context.Context, filter domain.LeaderboardFilter) ([]domain.LeaderboardEntry, error) {
	f.filter = filter
	return f.entries, f.err
}

type fakeAuthService struct {
	registerErr error
	loginErr    error
	token       string
	user        domain.User
}

func (f *fakeAuthService) Register(_ context.Context, email, _, _, _ string) (domain.User, error) {
	if f.registerErr != nil {
		return domain.User{}, f.registerErr
	}
	u := f.user
	u.Email = email
	return u, nil
}

func (f *fakeAuthService) Login(context.Context, string, string) (string, domain.User, error) {
	if f.loginErr != nil {
		return "", domain.User{}, f.loginErr
	}
	return f.token, f.user, nil
}

func (f *fakeAuthService) RequestAccess(context.Context, domain.AccessRequest) (int64, error) {
	return 7, nil
}

type fakeFaucetService struct {
	email string
	err   error
}

func (f *fakeFaucetService) Request(_ context.Context, email, _ string) (string, error) {
	f.email = email
	if f.err != nil {
		return "", f.err
	}
	return "req-1", nil
}
