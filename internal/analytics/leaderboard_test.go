package analytics

import (
	"testing"
)

func TestRank(t *testing.T) {
	pnl := map[string]float64{
		"0xalice": 20,
		"0xbob":   -5,
		"0xcarol": 120.5,
	}

	entries := Rank(pnl)
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	wantOrder := []string{"0xcarol", "0xalice", "0xbob"}
	for i, want := range wantOrder {
		if entries[i].Account != want {
			t.Errorf("entries[%d].Account = %q, want %q", i, entries[i].Account, want)
		}
	}
}

func TestRankTieBreak(t *testing.T) {
	pnl := map[string]float64{
		"0xbbb": 10,
		"0xaaa": 10,
	}
	entries := Rank(pnl)
	if entries[0].Account != "0xaaa" || entries[1].Account != "0xbbb" {
		t.Errorf("tie break order = %q, %q, want 0xaaa, 0xbbb", entries[0].Account, entries[1].Account)
	}
}

func TestRankEmpty(t *testing.T) {
	if entries := Rank(nil); len(entries) != 0 {
		t.Fatalf("got %d entries, want 0", len(entries))
	}
}

func TestMergePnL(t *testing.T) {
	dst := map[string]float64{"0xalice": 10, "0xbob": -2}
	src := map[string]float64{"0xalice": 5, "0xcarol": 7}

	MergePnL(dst, src)

	want := map[string]float64{"0xalice": 15, "0xbob": -2, "0xcarol": 7}
	if len(dst) != len(want) {
		t.Fatalf("got %d accounts, want %d", len(dst), len(want))
	}
	for account, total := range want {
		if !almostEqual(dst[account], total) {
			t.Errorf("dst[%q] = %v, want %v", account, dst[account], total)
		}
	}
}
