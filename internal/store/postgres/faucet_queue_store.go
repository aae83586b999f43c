package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

// notifyChannel carries a faucet request ID from Enqueue to listening workers.
const notifyChannel = "faucet_request"

// FaucetQueueStore implements domain.FaucetQueue using PostgreSQL. The queue
// table doubles as the work ledger: rows with a NULL error_msg are pending,
// rows with one are dead-lettered for operator inspection, and successfully
// paid rows are deleted.
type FaucetQueueStore struct {
	pool *pgxpool.Pool
}

// NewFaucetQueueStore creates a new FaucetQueueStore.
func NewFaucetQueueStore(pool *pgxpool.Pool) *FaucetQueueStore {
	return &FaucetQueueStore{pool: pool}
}

// Enqueue validates the account's faucet eligibility, inserts a pending
// payout request, and notifies listening workers. Each account is funded at
// most once.
func (s *FaucetQueueStore) Enqueue(ctx context.Context, email, address string) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("postgres: enqueue faucet request: %w", err)
	}
	defer tx.Rollback(ctx)

	var received float64
	var active bool
	err = tx.QueryRow(ctx,
		`SELECT matic_received, active FROM users WHERE email = $1`, email,
	).Scan(&received, &active)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("postgres: check faucet eligibility for %s: %w", email, err)
	}
	if !active {
		return "", domain.ErrUserInactive
	}
	if received > 0 {
		return "", domain.ErrFaucetAlreadyPaid
	}

	var pending bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM faucet_queue WHERE email = $1 AND error_msg IS NULL)`,
		email,
	).Scan(&pending)
	if err != nil {
		return "", fmt.Errorf("postgres: check pending faucet request for %s: %w", email, err)
	}
	if pending {
		return "", domain.ErrAlreadyExists
	}

	id := uuid.New().String()
	if _, err := tx.Exec(ctx,
		`INSERT INTO faucet_queue (id, email, address) VALUES ($1, $2, $3)`,
		id, email, address,
	); err != nil {
		return "", fmt.Errorf("postgres: insert faucet request for %s: %w", email, err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, id); err != nil {
		return "", fmt.Errorf("postgres: notify faucet workers: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("postgres: commit faucet request for %s: %w", email, err)
	}
	return id, nil
}

// ProcessNext claims the oldest pending request under a row lock, invokes
// payout, and finalizes the row inside the same transaction. The SKIP LOCKED
// claim lets multiple workers drain the queue without double-paying. It
// returns false when the queue is empty.
func (s *FaucetQueueStore) ProcessNext(ctx context.Context, payout func(ctx context.Context, req domain.FaucetRequest) (float64, error)) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("postgres: process faucet request: %w", err)
	}
	defer tx.Rollback(ctx)

	var req domain.FaucetRequest
	err = tx.QueryRow(ctx, `
		SELECT id, email, address, created_at
		FROM faucet_queue
		WHERE error_msg IS NULL
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1`,
	).Scan(&req.ID, &req.Email, &req.Address, &req.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("postgres: claim faucet request: %w", err)
	}

	paid, payErr := payout(ctx, req)
	if payErr != nil {
		// Dead-letter the row so it is not retried automatically.
		if _, err := tx.Exec(ctx,
			`UPDATE faucet_queue SET error_msg = $2, error_time = $3 WHERE id = $1`,
			req.ID, payErr.Error(), time.Now().UTC(),
		); err != nil {
			return false, fmt.Errorf("postgres: record faucet failure %s: %w", req.ID, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("postgres: commit faucet failure %s: %w", req.ID, err)
		}
		return true, fmt.Errorf("faucet payout %s: %w", req.ID, payErr)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET matic_received = matic_received + $2 WHERE email = $1`,
		req.Email, paid,
	); err != nil {
		return false, fmt.Errorf("postgres: mark faucet paid for %s: %w", req.Email, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM faucet_queue WHERE id = $1`, req.ID); err != nil {
		return false, fmt.Errorf("postgres: delete faucet request %s: %w", req.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("postgres: commit faucet payout %s: %w", req.ID, err)
	}
	return true, nil
}

// AwaitSignal blocks on a LISTEN connection until an Enqueue notification
// arrives, the timeout elapses, or ctx is canceled. A timeout is not an
// error; it lets the worker fall back to periodic polling.
func (s *FaucetQueueStore) AwaitSignal(ctx context.Context, timeout time.Duration) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("postgres: listen %s: %w", notifyChannel, err)
	}
	// Unsubscribe before the connection goes back to the pool.
	defer conn.Exec(context.WithoutCancel(ctx), "UNLISTEN *")

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := conn.Conn().WaitForNotification(waitCtx); err != nil {
		if waitCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil
		}
		return fmt.Errorf("postgres: wait for %s: %w", notifyChannel, err)
	}
	return nil
}
