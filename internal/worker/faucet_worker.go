// Package worker runs the background faucet payout loop.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

// Queue is the part of the faucet queue the worker drives. AwaitSignal
// blocks until a new request is announced or the timeout elapses, so the
// loop wakes immediately on enqueue but still polls as a fallback.
type Queue interface {
	ProcessNext(ctx context.Context, payout func(ctx context.Context, req domain.FaucetRequest) (float64, error)) (bool, error)
	AwaitSignal(ctx context.Context, timeout time.Duration) error
}

// Payer broadcasts a native MATIC transfer and returns the tx hash.
type Payer interface {
	Send(ctx context.Context, to string, amountMatic float64) (string, error)
}

// Notifier fans a named event out to the configured channels.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// FaucetWorker drains the payout queue, paying each pending request the
// configured MATIC amount. Failed payouts are dead-lettered by the queue
// and surfaced through the notifier.
type FaucetWorker struct {
	queue        Queue
	payer        Payer
	notifier     Notifier
	payoutMatic  float64
	pollInterval time.Duration
	logger       *slog.Logger
}

func NewFaucetWorker(queue Queue, payer Payer, notifier Notifier, payoutMatic float64, pollInterval time.Duration, logger *slog.Logger) *FaucetWorker {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &FaucetWorker{
		queue:        queue,
		payer:        payer,
		notifier:     notifier,
		payoutMatic:  payoutMatic,
		pollInterval: pollInterval,
		logger:       logger.With(slog.String("component", "faucet_worker")),
	}
}

// Run blocks until ctx is cancelled, alternating between draining the
// queue and waiting for the next enqueue signal.
func (w *FaucetWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "faucet worker started",
		slog.Float64("payout_matic", w.payoutMatic),
		slog.Duration("poll_interval", w.pollInterval),
	)

	for {
		if err := w.drain(ctx); err != nil {
			return err
		}
		if err := w.queue.AwaitSignal(ctx, w.pollInterval); err != nil {
			if ctx.Err() != nil {
				w.logger.InfoContext(ctx, "faucet worker stopping")
				return ctx.Err()
			}
			w.logger.WarnContext(ctx, "faucet signal wait failed, falling back to poll", slog.Any("error", err))
			select {
			case <-time.After(w.pollInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// drain processes queued requests until the queue reports empty. Payout
// failures are recorded on the row by the queue, so the loop keeps going.
func (w *FaucetWorker) drain(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		processed, err := w.queue.ProcessNext(ctx, w.pay)
		if err != nil {
			if !processed {
				return fmt.Errorf("worker: claim faucet request: %w", err)
			}
			w.logger.ErrorContext(ctx, "faucet payout failed", slog.Any("error", err))
			w.notify(ctx, "faucet_failed", "Faucet payout failed", err.Error())
			continue
		}
		if !processed {
			return nil
		}
	}
}

func (w *FaucetWorker) pay(ctx context.Context, req domain.FaucetRequest) (float64, error) {
	hash, err := w.payer.Send(ctx, req.Address, w.payoutMatic)
	if err != nil {
		return 0, err
	}
	w.logger.InfoContext(ctx, "faucet request paid",
		slog.String("request_id", req.ID),
		slog.String("address", req.Address),
		slog.String("tx", hash),
	)
	w.notify(ctx, "faucet_paid",
		"Faucet payout sent",
		fmt.Sprintf("Sent %v MATIC to %s (tx %s)", w.payoutMatic, req.Address, hash),
	)
	return w.payoutMatic, nil
}

func (w *FaucetWorker) notify(ctx context.Context, event, title, message string) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.Notify(ctx, event, title, message); err != nil {
		w.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.Any("error", err),
		)
	}
}
