package domain

import "time"

// LeaderboardEntry is one account's total PnL (realized plus mark-to-market).
type LeaderboardEntry struct {
	Account string
	PnL     float64
}

// LeaderboardFilter narrows which markets and trades contribute to a
// leaderboard query. Zero values mean "no filter". Until excludes trades at
// or after that instant, giving an as-of-date leaderboard.
type LeaderboardFilter struct {
	Ticker   string
	MarketID int64
	Until    time.Time
}
