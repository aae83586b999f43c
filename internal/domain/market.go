package domain

import "time"

// Market represents one KPI prediction market: a bet on whether a company's
// reported metric (e.g. quarterly revenue) beats or misses a threshold.
// BeatAddress/MissAddress are the long/short outcome token contracts and
// BrokerAddress is the AMM contract that holds collateral and issues them.
type Market struct {
	ID            int64
	Ticker        string
	Metric        string
	FiscalPeriod  string
	ValueString   string
	High          float64
	Low           float64
	BeatAddress   string
	MissAddress   string
	BrokerAddress string
	BeatPrice     float64
	MissPrice     float64
	Issued        int64
	Closed        bool
	Highlight     bool
	ResolvedValue *float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Addresses binds the market's on-chain contracts to the chain-level
// collateral token and null address from configuration.
func (m Market) Addresses(collateral, null string) MarketAddresses {
	return MarketAddresses{
		AMM:        m.BrokerAddress,
		Collateral: collateral,
		Long:       m.BeatAddress,
		Short:      m.MissAddress,
		Null:       null,
	}
}
