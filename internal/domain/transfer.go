package domain

import "math/big"

// TransferEvent is a single ERC-20 transfer row as returned by the block
// explorer, ascending time order. Value is in token base units; 18-decimal
// tokens routinely exceed the int64 range, so it is arbitrary precision.
type TransferEvent struct {
	TxHash          string
	From            string
	To              string
	ContractAddress string
	Value           *big.Int
	Timestamp       int64
}

// MarketAddresses holds the fixed contract addresses needed to classify a
// market's transfer events. All addresses are lowercase hex.
type MarketAddresses struct {
	AMM        string
	Collateral string
	Long       string
	Short      string
	Null       string
}
