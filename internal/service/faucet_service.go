package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

// FaucetService accepts faucet payout requests from authenticated users.
// Actual payouts happen asynchronously in the worker, which drains the queue.
type FaucetService struct {
	queue    domain.FaucetQueue
	notifier Notifier
	logger   *slog.Logger
}

// NewFaucetService creates a FaucetService.
func NewFaucetService(queue domain.FaucetQueue, notifier Notifier, logger *slog.Logger) *FaucetService {
	return &FaucetService{
		queue:    queue,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "faucet")),
	}
}

// Request enqueues a payout to the given wallet address for the user. The
// queue enforces one payout per account.
func (s *FaucetService) Request(ctx context.Context, email, address string) (string, error) {
	address = strings.TrimSpace(address)
	if !strings.HasPrefix(address, "0x") || len(address) != 42 {
		return "", fmt.Errorf("%w: invalid wallet address %q", domain.ErrInvalidInput, address)
	}

	id, err := s.queue.Enqueue(ctx, email, strings.ToLower(address))
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "faucet request queued",
		slog.String("email", email),
		slog.String("request_id", id),
	)

	if s.notifier != nil {
		msg := fmt.Sprintf("Faucet payout queued for %s to %s (request %s)", email, address, id)
		if err := s.notifier.Notify(ctx, "faucet_requested", "Faucet request", msg); err != nil {
			s.logger.WarnContext(ctx, "faucet notification failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return id, nil
}
