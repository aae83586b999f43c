package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

// AccessRequestStore implements domain.AccessRequestStore using PostgreSQL.
type AccessRequestStore struct {
	pool *pgxpool.Pool
}

// NewAccessRequestStore creates a new AccessRequestStore.
func NewAccessRequestStore(pool *pgxpool.Pool) *AccessRequestStore {
	return &AccessRequestStore{pool: pool}
}

// Create inserts an access request and returns its ID.
func (s *AccessRequestStore) Create(ctx context.Context, r domain.AccessRequest) (int64, error) {
	const query = `
		INSERT INTO access_requests (full_name, email, reason, company)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query, r.FullName, r.Email, r.Reason, r.Company).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: create access request for %s: %w", r.Email, err)
	}
	return id, nil
}
