package domain

import (
	"math/big"
	"time"
)

// OrderSide identifies which outcome token a trade bought.
type OrderSide string

const (
	OrderSideLong  OrderSide = "long"
	OrderSideShort OrderSide = "short"
)

// PriceSample is one point in a market's reconstructed price history. A
// degraded sample (incomplete on-chain trade) carries only the timestamp and
// the updated balances. Token quantities are base units and can exceed int64.
type PriceSample struct {
	Time            time.Time
	LongPrice       float64
	ForecastedValue float64
	LongBalance     *big.Int
	ShortBalance    *big.Int
	Degraded        bool

	// Trade-level detail, populated for complete trades only.
	Buyer         string
	Investment    *big.Int
	OrderSide     OrderSide
	PricePerToken float64
	ReturnAmount  *big.Int
	TxHash        string
}
