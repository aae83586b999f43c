package analytics

import (
	"sort"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

// MergePnL accumulates per-account PnL from src into dst, for leaderboards
// spanning multiple markets.
func MergePnL(dst, src map[string]float64) {
	for account, pnl := range src {
		dst[account] += pnl
	}
}

// Rank converts a PnL map into a leaderboard sorted by PnL descending.
// Ties break by account address so output is deterministic.
func Rank(pnl map[string]float64) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(pnl))
	for account, total := range pnl {
		entries = append(entries, domain.LeaderboardEntry{Account: account, PnL: total})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].PnL != entries[j].PnL {
			return entries[i].PnL > entries[j].PnL
		}
		return entries[i].Account < entries[j].Account
	})
	return entries
}
