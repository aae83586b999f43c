package domain

import "time"

// User is a registered account on the exchange UI.
type User struct {
	ID            int64
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	Admin         bool
	Active        bool
	MaticReceived float64
	CreatedOn     time.Time
}

// AccessRequest is a prospective user asking for access to the product.
type AccessRequest struct {
	ID        int64
	FullName  string
	Email     string
	Reason    string
	Company   string
	CreatedAt time.Time
}

// FaucetRequest is a pending MATIC faucet payout, one per account.
type FaucetRequest struct {
	ID        string
	Email     string
	Address   string
	ErrorMsg  *string
	ErrorTime *time.Time
	CreatedAt time.Time
}
