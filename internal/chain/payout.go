// Package chain sends native MATIC faucet payouts through a JSON-RPC node.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// weiPerMatic converts whole MATIC to wei.
var weiPerMatic = big.NewFloat(1e18)

// Payer signs and broadcasts native-token transfers from the faucet wallet.
type Payer struct {
	client   *ethclient.Client
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	gasLimit uint64
	logger   *slog.Logger
}

// NewPayer dials the RPC endpoint and loads the faucet wallet key.
func NewPayer(ctx context.Context, rpcURL, privateKeyHex string, chainID int64, gasLimit uint64, logger *slog.Logger) (*Payer, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain: parse faucet key: %w", err)
	}

	if gasLimit == 0 {
		gasLimit = 21000
	}

	return &Payer{
		client:   client,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  big.NewInt(chainID),
		gasLimit: gasLimit,
		logger:   logger.With(slog.String("component", "chain")),
	}, nil
}

// From returns the faucet wallet address.
func (p *Payer) From() string {
	return p.from.Hex()
}

// Send transfers amountMatic native MATIC to the recipient and returns the
// transaction hash once the transaction is accepted by the node.
func (p *Payer) Send(ctx context.Context, to string, amountMatic float64) (string, error) {
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("chain: invalid recipient address %q", to)
	}
	if amountMatic <= 0 {
		return "", fmt.Errorf("chain: invalid payout amount %v", amountMatic)
	}

	nonce, err := p.client.PendingNonceAt(ctx, p.from)
	if err != nil {
		return "", fmt.Errorf("chain: pending nonce: %w", err)
	}
	gasPrice, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("chain: suggest gas price: %w", err)
	}

	value, _ := new(big.Float).Mul(big.NewFloat(amountMatic), weiPerMatic).Int(nil)
	tx := types.NewTransaction(nonce, common.HexToAddress(to), value, p.gasLimit, gasPrice, nil)

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(p.chainID), p.key)
	if err != nil {
		return "", fmt.Errorf("chain: sign transaction: %w", err)
	}

	if err := p.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("chain: broadcast transaction: %w", err)
	}

	hash := signed.Hash().Hex()
	p.logger.InfoContext(ctx, "payout sent",
		slog.String("to", to),
		slog.Float64("matic", amountMatic),
		slog.String("tx", hash),
	)
	return hash, nil
}

// Close releases the RPC connection.
func (p *Payer) Close() {
	p.client.Close()
}
