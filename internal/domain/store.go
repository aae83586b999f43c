package domain

import "context"

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists market metadata.
type MarketStore interface {
	GetByID(ctx context.Context, id int64) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	ListByTicker(ctx context.Context, ticker string) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// UserStore persists user accounts. The faucet payout that credits
// users.matic_received runs inside the queue claim transaction, so it lives
// on FaucetQueue rather than here.
type UserStore interface {
	Create(ctx context.Context, u User) (int64, error)
	GetByEmail(ctx context.Context, email string) (User, error)
}

// AccessRequestStore persists access requests from the public site.
type AccessRequestStore interface {
	Create(ctx context.Context, r AccessRequest) (int64, error)
}

// FaucetQueue is the MATIC faucet payout queue. Enqueue inserts a pending
// request and notifies the worker; ProcessNext claims the oldest unprocessed
// row under a row lock, invokes payout, and either finalizes the request
// (mark user paid, delete row) or records the payout error. It returns false
// when the queue is empty.
type FaucetQueue interface {
	Enqueue(ctx context.Context, email, address string) (string, error)
	ProcessNext(ctx context.Context, payout func(ctx context.Context, req FaucetRequest) (float64, error)) (bool, error)
}
