package analytics

import (
	"math/big"
	"time"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

// MarkPrices pins the long/short prices used to value open positions. When
// nil, ComputePnL marks at the last trade's implied long price (and
// short = 1 - long).
type MarkPrices struct {
	Long  float64
	Short float64
}

type position struct {
	cash  float64
	long  float64
	short float64
}

// ComputePnL replays complete trades and returns each account's realized
// cash flow plus the mark-to-market value of any open token balances.
// Incomplete trades are skipped: without all four legs there is no buyer or
// investment amount to book.
func ComputePnL(trades []*Trade, mark *MarkPrices) map[string]float64 {
	positions := make(map[string]*position)

	for _, t := range trades {
		if !t.Complete() {
			continue
		}

		buyer := t.CollateralTransfer.From
		p := positions[buyer]
		if p == nil {
			p = &position{}
			positions[buyer] = p
		}

		invested := bigToFloat(t.CollateralTransfer.Value)
		returned := bigToFloat(t.ReturnTransfer.Value)

		switch t.Kind() {
		case TradeBuy:
			p.cash -= invested
			if t.Side() == domain.OrderSideLong {
				p.long += returned
			} else {
				p.short += returned
			}
		case TradeSell:
			p.cash += invested
			if t.Side() == domain.OrderSideLong {
				p.long -= returned
			} else {
				p.short -= returned
			}
		}
	}

	longPrice, shortPrice := markPrices(trades, mark)

	pnl := make(map[string]float64, len(positions))
	for account, p := range positions {
		total := p.cash
		if p.long != 0 {
			total += p.long * longPrice
		}
		if p.short != 0 {
			total += p.short * shortPrice
		}
		pnl[account] = total
	}
	return pnl
}

// TradesBefore returns the prefix of trades whose timestamp is before cutoff.
// Trades arrive in ascending time order, so the cutoff is a prefix boundary.
func TradesBefore(trades []*Trade, cutoff time.Time) []*Trade {
	for i, t := range trades {
		if !t.Time().Before(cutoff) {
			return trades[:i]
		}
	}
	return trades
}

// markPrices resolves the prices used to value open positions: the explicit
// override when given, otherwise the last implied long price observed while
// replaying the trade stream through the AMM balance rules.
func markPrices(trades []*Trade, mark *MarkPrices) (longPrice, shortPrice float64) {
	if mark != nil {
		return mark.Long, mark.Short
	}
	p := lastImpliedLongPrice(trades)
	return p, 1 - p
}

// lastImpliedLongPrice replays net deltas the same way Book does (including
// the no-op and zero-liquidity skips) and returns the final implied long
// price, or 0 when no trade ever produced a defined price.
func lastImpliedLongPrice(trades []*Trade) float64 {
	long, short := new(big.Int), new(big.Int)
	price := 0.0
	for _, t := range trades {
		deltaLong, deltaShort := t.Deltas()
		if deltaLong.Sign() == 0 && deltaShort.Sign() == 0 {
			continue
		}
		long.Add(long, deltaLong)
		short.Add(short, deltaShort)
		total := new(big.Int).Add(long, short)
		if total.Sign() == 0 {
			continue
		}
		price = bigRatio(short, total)
	}
	return price
}

// bigToFloat converts a base-unit quantity to float64 for PnL arithmetic.
// Relative precision is bounded by the float64 mantissa, which is ample for
// ranking accounts.
func bigToFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
