package analytics

import (
	"math/big"
	"time"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

// Book tracks the AMM's running long/short token balances for one market and
// turns trades into price samples. High and low are the metric bounds fixed
// at market creation; the implied long price maps linearly between them.
// Balances are base units kept in big integers so wide 18-decimal token
// values survive intact.
type Book struct {
	high, low    float64
	longBalance  *big.Int
	shortBalance *big.Int
	samples      []domain.PriceSample
}

// NewBook creates an empty Book for a market with the given metric bounds.
func NewBook(high, low float64) *Book {
	return &Book{
		high:         high,
		low:          low,
		longBalance:  new(big.Int),
		shortBalance: new(big.Int),
	}
}

// ProcessTrade applies a trade's net token movement to the book and derives
// a price sample. It returns ok=false for trades with zero net movement
// (internal/no-op transactions) and for the zero-liquidity state where both
// balances sum to zero after the update: no price is defined there, so the
// sample is skipped while the balance update still applies.
func (b *Book) ProcessTrade(t *Trade) (domain.PriceSample, bool) {
	deltaLong, deltaShort := t.Deltas()
	if deltaLong.Sign() == 0 && deltaShort.Sign() == 0 {
		return domain.PriceSample{}, false
	}

	b.longBalance.Add(b.longBalance, deltaLong)
	b.shortBalance.Add(b.shortBalance, deltaShort)

	total := new(big.Int).Add(b.longBalance, b.shortBalance)
	if total.Sign() == 0 {
		return domain.PriceSample{}, false
	}

	longPrice := bigRatio(b.shortBalance, total)
	sample := domain.PriceSample{
		LongPrice:       longPrice,
		ForecastedValue: b.low + longPrice*(b.high-b.low),
		LongBalance:     new(big.Int).Set(b.longBalance),
		ShortBalance:    new(big.Int).Set(b.shortBalance),
		TxHash:          t.Hash,
	}

	if t.Complete() {
		ct := t.CollateralTransfer
		rt := t.ReturnTransfer
		sample.Time = time.Unix(ct.Timestamp, 0).UTC()
		sample.Buyer = ct.From
		sample.Investment = new(big.Int).Set(ct.Value)
		sample.OrderSide = t.Side()
		sample.ReturnAmount = new(big.Int).Set(rt.Value)
		// A zero-value return leg yields price-per-token 0 rather than an error.
		if rt.Value.Sign() != 0 {
			sample.PricePerToken = bigRatio(ct.Value, rt.Value)
		}
	} else {
		sample.Degraded = true
		sample.Time = time.Unix(t.Events[0].Timestamp, 0).UTC()
	}

	b.samples = append(b.samples, sample)
	return sample, true
}

// Samples returns all price samples emitted so far, in trade order.
func (b *Book) Samples() []domain.PriceSample {
	return b.samples
}

// Balances returns copies of the current long and short token balances.
func (b *Book) Balances() (long, short *big.Int) {
	return new(big.Int).Set(b.longBalance), new(big.Int).Set(b.shortBalance)
}

// bigRatio divides num by den in float space, tolerating values far beyond
// the int64 range.
func bigRatio(num, den *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(num), new(big.Float).SetInt(den)).Float64()
	return f
}

// BuildPriceSeries runs the full reconstruction pipeline over a raw event
// stream: group by hash, replay through a fresh Book, return the samples.
func BuildPriceSeries(events []domain.TransferEvent, addrs domain.MarketAddresses, high, low float64) ([]domain.PriceSample, error) {
	trades, err := GroupTrades(events, addrs)
	if err != nil {
		return nil, err
	}

	book := NewBook(high, low)
	for _, t := range trades {
		book.ProcessTrade(t)
	}
	return book.Samples(), nil
}
