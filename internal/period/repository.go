package period

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BalanceStore persists the carry-forward chain between fiscal periods.
// The engine itself holds no cross-call state; sequencing lives here.
type BalanceStore interface {
	// CarryForwardInto returns the carry-forward flowing into the given
	// period, i.e. the stored outgoing balance of the preceding quarter.
	// Zero with no error when nothing was stored.
	CarryForwardInto(ctx context.Context, sessionID string, year, quarter int) (float64, error)
	// Save upserts the outgoing carry-forward for a period.
	Save(ctx context.Context, sessionID string, year, quarter int, carryForwardOut float64) error
}

// Repository is the PostgreSQL-backed balance store, keyed by
// (session_id, year, quarter). See migrations/0001_period_balances.sql.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PreviousQuarter steps one quarter back.
func PreviousQuarter(year, quarter int) (int, int) {
	if quarter == 1 {
		return year - 1, 4
	}
	return year, quarter - 1
}

func (r *Repository) CarryForwardInto(ctx context.Context, sessionID string, year, quarter int) (float64, error) {
	prevYear, prevQuarter := PreviousQuarter(year, quarter)
	const query = `
		SELECT carry_forward
		FROM period_balances
		WHERE session_id = $1 AND year = $2 AND quarter = $3`
	var carry float64
	err := r.pool.QueryRow(ctx, query, sessionID, prevYear, prevQuarter).Scan(&carry)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("period: load carry-forward: %w", err)
	}
	return carry, nil
}

func (r *Repository) Save(ctx context.Context, sessionID string, year, quarter int, carryForwardOut float64) error {
	const query = `
		INSERT INTO period_balances (session_id, year, quarter, carry_forward, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (session_id, year, quarter)
		DO UPDATE SET carry_forward = EXCLUDED.carry_forward, updated_at = now()`
	if _, err := r.pool.Exec(ctx, query, sessionID, year, quarter, carryForwardOut); err != nil {
		return fmt.Errorf("period: save carry-forward: %w", err)
	}
	return nil
}
