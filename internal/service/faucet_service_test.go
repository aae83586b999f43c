package service

import (
	"context"
	"errors"
	"testing"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

func TestFaucetRequest(t *testing.T) {
	queue := &fakeFaucetQueue{}
	notifier := &fakeNotifier{}
	svc := NewFaucetService(queue, notifier, discardLogger())

	id, err := svc.Request(context.Background(), "trader@example.com", "0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if id != "req-1" {
		t.Errorf("request id = %q", id)
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0] != "trader@example.com" {
		t.Errorf("enqueued = %v", queue.enqueued)
	}
	if len(notifier.events) != 1 || notifier.events[0] != "faucet_requested" {
		t.Errorf("notified events = %v", notifier.events)
	}
}

func TestFaucetRequestRejectsBadAddress(t *testing.T) {
	svc := NewFaucetService(&fakeFaucetQueue{}, nil, discardLogger())

	for _, addr := range []string{"", "1111", "0x123", "not-an-address"} {
		if _, err := svc.Request(context.Background(), "trader@example.com", addr); err == nil {
			t.Errorf("Request(%q) should fail", addr)
		}
	}
}

func TestFaucetRequestPropagatesQueueErrors(t *testing.T) {
	queue := &fakeFaucetQueue{err: domain.ErrFaucetAlreadyPaid}
	svc := NewFaucetService(queue, nil, discardLogger())

	_, err := svc.Request(context.Background(), "trader@example.com", "0x1111111111111111111111111111111111111111")
	if !errors.Is(err, domain.ErrFaucetAlreadyPaid) {
		t.Fatalf("Request() error = %v, want ErrFaucetAlreadyPaid", err)
	}
}
