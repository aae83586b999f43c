// Package analytics reconstructs logical trades, implied market prices, and
// per-account PnL from a market's raw on-chain transfer history. Everything
// here is request-scoped: state is rebuilt from the event stream on each call
// and nothing is shared between invocations.
package analytics

import (
	"fmt"
	"math/big"
	"time"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

// TransferRole is the structural role a transfer event plays within the
// 4-leg AMM trade pattern.
type TransferRole int

const (
	RoleUnclassified TransferRole = iota
	RoleCollateral
	RoleLongMint
	RoleShortMint
	RoleReturn
)

// String returns the role name for logging.
func (r TransferRole) String() string {
	switch r {
	case RoleCollateral:
		return "collateral"
	case RoleLongMint:
		return "long_mint"
	case RoleShortMint:
		return "short_mint"
	case RoleReturn:
		return "return"
	default:
		return "unclassified"
	}
}

// Classify determines the role of a single transfer event. Rules are
// evaluated in priority order and an event matches at most one role.
func Classify(ev domain.TransferEvent, addrs domain.MarketAddresses) TransferRole {
	switch {
	case ev.ContractAddress == addrs.Collateral && ev.To == addrs.AMM:
		return RoleCollateral
	case ev.From == addrs.Null && ev.To == addrs.AMM && ev.ContractAddress == addrs.Long:
		return RoleLongMint
	case ev.From == addrs.Null && ev.To == addrs.AMM && ev.ContractAddress == addrs.Short:
		return RoleShortMint
	case ev.From == addrs.AMM && (ev.ContractAddress == addrs.Long || ev.ContractAddress == addrs.Short):
		return RoleReturn
	default:
		return RoleUnclassified
	}
}

// TradeKind tags how a complete trade affects an account's position.
type TradeKind string

const (
	TradeBuy  TradeKind = "buy"
	TradeSell TradeKind = "sell"
)

// Trade accumulates all transfer events sharing one transaction hash. The
// four slots hold at most one event each; events that match no role stay in
// Events only, so they still count toward balance deltas.
type Trade struct {
	Hash               string
	CollateralTransfer *domain.TransferEvent
	LongMint           *domain.TransferEvent
	ShortMint          *domain.TransferEvent
	ReturnTransfer     *domain.TransferEvent
	Events             []domain.TransferEvent

	addrs domain.MarketAddresses
	kind  TradeKind
}

func newTrade(hash string, addrs domain.MarketAddresses) *Trade {
	return &Trade{Hash: hash, addrs: addrs, kind: TradeBuy}
}

// Add classifies ev into its slot and appends it to the raw event list. A
// later event with the same role replaces the earlier slot occupant.
func (t *Trade) Add(ev domain.TransferEvent) {
	switch Classify(ev, t.addrs) {
	case RoleCollateral:
		t.CollateralTransfer = &ev
	case RoleLongMint:
		t.LongMint = &ev
	case RoleShortMint:
		t.ShortMint = &ev
	case RoleReturn:
		t.ReturnTransfer = &ev
	}
	t.Events = append(t.Events, ev)
}

// Complete reports whether all four legs of the trade pattern were observed.
func (t *Trade) Complete() bool {
	return t.CollateralTransfer != nil &&
		t.LongMint != nil &&
		t.ShortMint != nil &&
		t.ReturnTransfer != nil
}

// Kind reports the trade's direction. The 4-leg pattern only ever produces
// buys today; the sell tag exists so the PnL replay stays total if a
// burn-side detection rule is added later.
func (t *Trade) Kind() TradeKind {
	return t.kind
}

// Time returns the trade's timestamp, taken from its first observed event.
func (t *Trade) Time() time.Time {
	return time.Unix(t.Events[0].Timestamp, 0).UTC()
}

// Side returns which outcome token the trade bought, derived from the return
// transfer's contract address.
func (t *Trade) Side() domain.OrderSide {
	if t.ReturnTransfer != nil && t.ReturnTransfer.ContractAddress == t.addrs.Short {
		return domain.OrderSideShort
	}
	return domain.OrderSideLong
}

// Deltas returns the net long/short token movement between the AMM and the
// outside world across ALL raw events, signed: AMM-outgoing negative,
// AMM-incoming positive. Unclassified events contribute too, which lets
// partial trades still move the balances.
func (t *Trade) Deltas() (deltaLong, deltaShort *big.Int) {
	deltaLong, deltaShort = new(big.Int), new(big.Int)
	for _, ev := range t.Events {
		switch {
		case ev.From == t.addrs.AMM:
			if ev.ContractAddress == t.addrs.Long {
				deltaLong.Sub(deltaLong, ev.Value)
			} else if ev.ContractAddress == t.addrs.Short {
				deltaShort.Sub(deltaShort, ev.Value)
			}
		case ev.To == t.addrs.AMM:
			if ev.ContractAddress == t.addrs.Long {
				deltaLong.Add(deltaLong, ev.Value)
			} else if ev.ContractAddress == t.addrs.Short {
				deltaShort.Add(deltaShort, ev.Value)
			}
		}
	}
	return deltaLong, deltaShort
}

// GroupTrades splits an ascending, hash-contiguous event stream into one
// Trade per maximal run of equal transaction hashes. The upstream explorer
// sorts by time and keeps a transaction's events adjacent; if a hash
// reappears after a different hash that assumption is broken and downstream
// balances would silently corrupt, so GroupTrades fails fast instead.
func GroupTrades(events []domain.TransferEvent, addrs domain.MarketAddresses) ([]*Trade, error) {
	if len(events) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var trades []*Trade
	cur := newTrade(events[0].TxHash, addrs)

	for _, ev := range events {
		if ev.TxHash != cur.Hash {
			if seen[ev.TxHash] {
				return nil, fmt.Errorf("analytics: hash %s reappears non-contiguously: %w", ev.TxHash, domain.ErrEventOrder)
			}
			seen[cur.Hash] = true
			trades = append(trades, cur)
			cur = newTrade(ev.TxHash, addrs)
		}
		cur.Add(ev)
	}
	trades = append(trades, cur)

	return trades, nil
}
