package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeQueue struct {
	mu      sync.Mutex
	pending []domain.FaucetRequest
	failed  []domain.FaucetRequest
	paid    []float64
	cancel  context.CancelFunc
}

func (f *fakeQueue) ProcessNext(ctx context.Context, payout func(ctx context.Context, req domain.FaucetRequest) (float64, error)) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return false, nil
	}
	req := f.pending[0]
	f.pending = f.pending[1:]
	amount, err := payout(ctx, req)
	if err != nil {
		f.failed = append(f.failed, req)
		return true, err
	}
	f.paid = append(f.paid, amount)
	return true, nil
}

func (f *fakeQueue) AwaitSignal(ctx context.Context, _ time.Duration) error {
	// Stop the worker once the drain pass is over.
	f.cancel()
	return ctx.Err()
}

type fakePayer struct {
	sent   []string
	failOn string
}

func (f *fakePayer) Send(_ context.Context, to string, _ float64) (string, error) {
	if to == f.failOn {
		return "", errors.New("rpc unavailable")
	}
	f.sent = append(f.sent, to)
	return "0xtxhash", nil
}

type fakeNotifier struct {
	events []string
}

func (f *fakeNotifier) Notify(_ context.Context, event, _, _ string) error {
	f.events = append(f.events, event)
	return nil
}

func TestFaucetWorkerDrainsQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := &fakeQueue{
		pending: []domain.FaucetRequest{
			{ID: "r1", Email: "a@example.com", Address: "0xaaa"},
			{ID: "r2", Email: "b@example.com", Address: "0xbbb"},
		},
		cancel: cancel,
	}
	payer := &fakePayer{}
	notifier := &fakeNotifier{}

	w := NewFaucetWorker(queue, payer, notifier, 0.4, time.Second, discardLogger())
	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	if len(payer.sent) != 2 {
		t.Fatalf("sent %d payouts, want 2", len(payer.sent))
	}
	if len(queue.paid) != 2 || queue.paid[0] != 0.4 {
		t.Errorf("paid amounts = %v", queue.paid)
	}
	if len(notifier.events) != 2 || notifier.events[0] != "faucet_paid" {
		t.Errorf("events = %v", notifier.events)
	}
}

func TestFaucetWorkerDeadLettersFailedPayout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := &fakeQueue{
		pending: []domain.FaucetRequest{
			{ID: "r1", Address: "0xbad"},
			{ID: "r2", Address: "0xgood"},
		},
		cancel: cancel,
	}
	payer := &fakePayer{failOn: "0xbad"}
	notifier := &fakeNotifier{}

	w := NewFaucetWorker(queue, payer, notifier, 0.4, time.Second, discardLogger())
	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	if len(queue.failed) != 1 || queue.failed[0].ID != "r1" {
		t.Errorf("failed = %v", queue.failed)
	}
	if len(payer.sent) != 1 || payer.sent[0] != "0xgood" {
		t.Errorf("sent = %v", payer.sent)
	}
	want := []string{"faucet_failed", "faucet_paid"}
	if len(notifier.events) != 2 || notifier.events[0] != want[0] || notifier.events[1] != want[1] {
		t.Errorf("events = %v, want %v", notifier.events, want)
	}
}
