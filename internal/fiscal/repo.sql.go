package fiscal

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pawnbook/pawnbook/internal/shared"
)

// Repository reads the company fiscal calendar configuration.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ErrCompanyNotFound indicates an unknown company reference.
var ErrCompanyNotFound = shared.Referential("fiscal: company not found")

// FiscalStart returns the month and day the company's financial year
// begins on.
func (r *Repository) FiscalStart(ctx context.Context, companyID int64) (time.Month, int, error) {
	var month, day int
	err := r.pool.QueryRow(ctx, `SELECT fiscal_start_month, fiscal_start_day FROM companies WHERE id=$1`, companyID).
		Scan(&month, &day)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrCompanyNotFound
		}
		return 0, 0, err
	}
	return time.Month(month), day, nil
}
