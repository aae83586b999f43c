package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

func TestGetPriceSeries(t *testing.T) {
	h := NewAnalyticsHandler(&fakeAnalyticsService{samples: []domain.PriceSample{
		{Time: time.Unix(1700000000, 0).UTC(), LongPrice: 0.8},
	}}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/markets/1/prices", nil)
	req.SetPathValue("id", "1")
	rec := httptest.NewRecorder()
	h.GetPriceSeries(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		MarketID int64             `json:"market_id"`
		Samples  []json.RawMessage `json:"samples"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.MarketID != 1 || len(resp.Samples) != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestGetPriceSeriesUpstreamDown(t *testing.T) {
	h := NewAnalyticsHandler(&fakeAnalyticsService{err: domain.ErrUpstreamUnavailable}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/markets/1/prices", nil)
	req.SetPathValue("id", "1")
	rec := httptest.NewRecorder()
	h.GetPriceSeries(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestGetPriceSeriesInconsistentHistory(t *testing.T) {
	h := NewAnalyticsHandler(&fakeAnalyticsService{err: domain.ErrEventOrder}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/markets/1/prices", nil)
	req.SetPathValue("id", "1")
	rec := httptest.NewRecorder()
	h.GetPriceSeries(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestRefreshPriceSeries(t *testing.T) {
	svc := &fakeAnalyticsService{}
	h := NewAnalyticsHandler(svc, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/markets/1/prices/refresh", nil)
	req.SetPathValue("id", "1")
	rec := httptest.NewRecorder()
	h.RefreshPriceSeries(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.refreshs != 1 {
		t.Errorf("refresh calls = %d, want 1", svc.refreshs)
	}
}

func TestGetLeaderboard(t *testing.T) {
	h := NewAnalyticsHandler(&fakeAnalyticsService{entries: []domain.LeaderboardEntry{
		{Account: "0xalice", PnL: 12.5},
		{Account: "0xbob", PnL: -3},
	}}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil)
	rec := httptest.NewRecorder()
	h.GetLeaderboard(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Entries []struct {
			Account string
			PnL     float64
		} `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Entries) != 2 || resp.Entries[0].Account != "0xalice" {
		t.Errorf("entries = %+v", resp.Entries)
	}
}

func TestGetLeaderboardBadMarketID(t *testing.T) {
	h := NewAnalyticsHandler(&fakeAnalyticsService{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?market_id=abc", nil)
	rec := httptest.NewRecorder()
	h.GetLeaderboard(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetLeaderboardDateFilter(t *testing.T) {
	svc := &fakeAnalyticsService{}
	h := NewAnalyticsHandler(svc, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?date=2026-06-30", nil)
	rec := httptest.NewRecorder()
	h.GetLeaderboard(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	// The cutoff covers the whole named day.
	want := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	if !svc.filter.Until.Equal(want) {
		t.Errorf("filter.Until = %v, want %v", svc.filter.Until, want)
	}
}

func TestGetLeaderboardBadDate(t *testing.T) {
	h := NewAnalyticsHandler(&fakeAnalyticsService{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?date=June", nil)
	rec := httptest.NewRecorder()
	h.GetLeaderboard(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
