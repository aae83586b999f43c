package analytics

import (
	"errors"
	"math/big"
	"testing"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

var testAddrs = domain.MarketAddresses{
	AMM:        "0xamm",
	Collateral: "0xusdc",
	Long:       "0xbeat",
	Short:      "0xmiss",
	Null:       "0x0000000000000000000000000000000000000000",
}

func ev(hash, from, to, contract string, value int64, ts int64) domain.TransferEvent {
	return domain.TransferEvent{
		TxHash:          hash,
		From:            from,
		To:              to,
		ContractAddress: contract,
		Value:           big.NewInt(value),
		Timestamp:       ts,
	}
}

// buyEvents returns the four legs of a complete long buy in on-chain order.
func buyEvents(hash, buyer string, invested, minted, returned int64, ts int64) []domain.TransferEvent {
	return []domain.TransferEvent{
		ev(hash, buyer, testAddrs.AMM, testAddrs.Collateral, invested, ts),
		ev(hash, testAddrs.Null, testAddrs.AMM, testAddrs.Long, minted, ts),
		ev(hash, testAddrs.Null, testAddrs.AMM, testAddrs.Short, minted, ts),
		ev(hash, testAddrs.AMM, buyer, testAddrs.Long, returned, ts),
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		ev   domain.TransferEvent
		want TransferRole
	}{
		{
			name: "collateral into amm",
			ev:   ev("0x1", "0xbuyer", testAddrs.AMM, testAddrs.Collateral, 100, 1),
			want: RoleCollateral,
		},
		{
			name: "long mint",
			ev:   ev("0x1", testAddrs.Null, testAddrs.AMM, testAddrs.Long, 200, 1),
			want: RoleLongMint,
		},
		{
			name: "short mint",
			ev:   ev("0x1", testAddrs.Null, testAddrs.AMM, testAddrs.Short, 200, 1),
			want: RoleShortMint,
		},
		{
			name: "long return to buyer",
			ev:   ev("0x1", testAddrs.AMM, "0xbuyer", testAddrs.Long, 150, 1),
			want: RoleReturn,
		},
		{
			name: "short return to buyer",
			ev:   ev("0x1", testAddrs.AMM, "0xbuyer", testAddrs.Short, 150, 1),
			want: RoleReturn,
		},
		{
			name: "collateral out of amm is not a leg",
			ev:   ev("0x1", testAddrs.AMM, "0xbuyer", testAddrs.Collateral, 100, 1),
			want: RoleUnclassified,
		},
		{
			name: "token transfer between strangers",
			ev:   ev("0x1", "0xalice", "0xbob", testAddrs.Long, 10, 1),
			want: RoleUnclassified,
		},
		{
			name: "mint to non-amm recipient",
			ev:   ev("0x1", testAddrs.Null, "0xbuyer", testAddrs.Long, 10, 1),
			want: RoleUnclassified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.ev, testAddrs); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyCollateralBeatsReturn(t *testing.T) {
	// If the collateral contract ever coincided with an outcome token, the
	// collateral rule must win because it is checked first.
	addrs := testAddrs
	addrs.Collateral = addrs.Long
	e := ev("0x1", "0xbuyer", addrs.AMM, addrs.Long, 50, 1)
	if got := Classify(e, addrs); got != RoleCollateral {
		t.Fatalf("Classify() = %v, want RoleCollateral", got)
	}
}

func TestTradeCompleteAndSide(t *testing.T) {
	tr := newTrade("0xa", testAddrs)
	for _, e := range buyEvents("0xa", "0xbuyer", 100, 200, 150, 10) {
		tr.Add(e)
	}

	if !tr.Complete() {
		t.Fatal("trade with all four legs should be complete")
	}
	if got := tr.Side(); got != domain.OrderSideLong {
		t.Errorf("Side() = %v, want long", got)
	}
	if got := tr.Kind(); got != TradeBuy {
		t.Errorf("Kind() = %v, want buy", got)
	}
}

func TestTradeIncomplete(t *testing.T) {
	tr := newTrade("0xa", testAddrs)
	events := buyEvents("0xa", "0xbuyer", 100, 200, 150, 10)
	for _, e := range events[:3] { // no return leg
		tr.Add(e)
	}
	if tr.Complete() {
		t.Fatal("trade missing the return leg should not be complete")
	}
}

// permutations returns every ordering of [0, n).
func permutations(n int) [][]int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	var out [][]int
	var rec func(k int)
	rec = func(k int) {
		if k == n {
			out = append(out, append([]int(nil), idx...))
			return
		}
		for i := k; i < n; i++ {
			idx[k], idx[i] = idx[i], idx[k]
			rec(k + 1)
			idx[k], idx[i] = idx[i], idx[k]
		}
	}
	rec(0)
	return out
}

func TestTradeCompleteAllEventOrders(t *testing.T) {
	// Completeness must not depend on the order the legs arrive in within a
	// hash group: all 24 orderings of the four legs complete the trade, and
	// dropping any one leg leaves it incomplete in every remaining order.
	events := buyEvents("0xa", "0xbuyer", 100, 200, 150, 10)

	for _, order := range permutations(len(events)) {
		tr := newTrade("0xa", testAddrs)
		for _, i := range order {
			tr.Add(events[i])
		}
		if !tr.Complete() {
			t.Errorf("order %v: trade with all four legs should be complete", order)
		}
	}

	for omit := range events {
		rest := make([]domain.TransferEvent, 0, 3)
		for i, e := range events {
			if i != omit {
				rest = append(rest, e)
			}
		}
		for _, order := range permutations(len(rest)) {
			tr := newTrade("0xa", testAddrs)
			for _, i := range order {
				tr.Add(rest[i])
			}
			if tr.Complete() {
				t.Errorf("omit leg %d, order %v: three-leg trade should not be complete", omit, order)
			}
		}
	}
}

func TestTradeDeltas(t *testing.T) {
	tests := []struct {
		name      string
		events    []domain.TransferEvent
		wantLong  int64
		wantShort int64
	}{
		{
			name:      "complete long buy",
			events:    buyEvents("0xa", "0xbuyer", 100, 200, 150, 10),
			wantLong:  50, // 200 minted - 150 returned
			wantShort: 200,
		},
		{
			name: "unclassified events still count",
			events: []domain.TransferEvent{
				ev("0xa", "0xwhale", testAddrs.AMM, testAddrs.Long, 500, 1),
				ev("0xa", testAddrs.AMM, "0xwhale", testAddrs.Short, 300, 1),
			},
			wantLong:  500,
			wantShort: -300,
		},
		{
			name: "events not touching the amm are ignored",
			events: []domain.TransferEvent{
				ev("0xa", "0xalice", "0xbob", testAddrs.Long, 999, 1),
			},
			wantLong:  0,
			wantShort: 0,
		},
		{
			name: "collateral movement never shifts token balances",
			events: []domain.TransferEvent{
				ev("0xa", "0xbuyer", testAddrs.AMM, testAddrs.Collateral, 100, 1),
			},
			wantLong:  0,
			wantShort: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTrade("0xa", testAddrs)
			for _, e := range tt.events {
				tr.Add(e)
			}
			gotLong, gotShort := tr.Deltas()
			if gotLong.Cmp(big.NewInt(tt.wantLong)) != 0 || gotShort.Cmp(big.NewInt(tt.wantShort)) != 0 {
				t.Errorf("Deltas() = (%s, %s), want (%d, %d)", gotLong, gotShort, tt.wantLong, tt.wantShort)
			}
		})
	}
}

func TestGroupTrades(t *testing.T) {
	a := buyEvents("0xa", "0xbuyer1", 100, 200, 150, 10)
	b := buyEvents("0xb", "0xbuyer2", 50, 90, 60, 20)

	events := append(append([]domain.TransferEvent{}, a...), b...)
	trades, err := GroupTrades(events, testAddrs)
	if err != nil {
		t.Fatalf("GroupTrades() error = %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("got %d trades, want 2", len(trades))
	}
	if trades[0].Hash != "0xa" || trades[1].Hash != "0xb" {
		t.Errorf("trade hashes = %q, %q", trades[0].Hash, trades[1].Hash)
	}
	if len(trades[0].Events) != 4 || len(trades[1].Events) != 4 {
		t.Errorf("event counts = %d, %d, want 4, 4", len(trades[0].Events), len(trades[1].Events))
	}
}

func TestGroupTradesEmpty(t *testing.T) {
	trades, err := GroupTrades(nil, testAddrs)
	if err != nil {
		t.Fatalf("GroupTrades(nil) error = %v", err)
	}
	if trades != nil {
		t.Fatalf("got %d trades, want none", len(trades))
	}
}

func TestGroupTradesNonContiguousHash(t *testing.T) {
	events := []domain.TransferEvent{
		ev("0xa", "0xbuyer", testAddrs.AMM, testAddrs.Collateral, 1, 1),
		ev("0xb", "0xbuyer", testAddrs.AMM, testAddrs.Collateral, 1, 2),
		ev("0xa", "0xbuyer", testAddrs.AMM, testAddrs.Collateral, 1, 3), // 0xa reappears
	}
	_, err := GroupTrades(events, testAddrs)
	if !errors.Is(err, domain.ErrEventOrder) {
		t.Fatalf("GroupTrades() error = %v, want ErrEventOrder", err)
	}
}
