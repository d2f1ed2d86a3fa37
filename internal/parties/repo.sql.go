package parties

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists customers and schemes on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, company_id, name, phone, account_id, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Phone, &c.AccountID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrCustomerNotFound
		}
		return Customer{}, err
	}
	return c, nil
}

// InsertCustomer creates a customer row.
func (r *Repository) InsertCustomer(ctx context.Context, in CustomerInput) (Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx, `INSERT INTO customers (company_id, name, phone)
VALUES ($1,$2,$3) RETURNING `+customerColumns, in.CompanyID, in.Name, in.Phone))
}

// GetCustomer loads one customer.
func (r *Repository) GetCustomer(ctx context.Context, companyID, customerID int64) (Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers
WHERE id=$1 AND company_id=$2`, customerID, companyID))
}

// UpdateCustomer updates the editable fields.
func (r *Repository) UpdateCustomer(ctx context.Context, companyID, customerID int64, in CustomerInput) (Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx, `UPDATE customers SET name=$3, phone=$4, updated_at=NOW()
WHERE id=$1 AND company_id=$2 RETURNING `+customerColumns, customerID, companyID, in.Name, in.Phone))
}

// DeleteCustomer removes a customer without a ledger sub-account.
func (r *Repository) DeleteCustomer(ctx context.Context, companyID, customerID int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM customers
WHERE id=$1 AND company_id=$2 AND account_id IS NULL`, customerID, companyID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		// Either unknown or already linked to the ledger.
		if _, err := r.GetCustomer(ctx, companyID, customerID); err != nil {
			return err
		}
		return ErrCustomerHasAccount
	}
	return nil
}

// ListCustomers returns the company's customers by name.
func (r *Repository) ListCustomers(ctx context.Context, companyID int64) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers
WHERE company_id=$1 ORDER BY name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const schemeColumns = `id, company_id, name, monthly_rate_pct, duration_months, created_at, updated_at`

func scanScheme(row pgx.Row) (Scheme, error) {
	var (
		s    Scheme
		rate string
	)
	err := row.Scan(&s.ID, &s.CompanyID, &s.Name, &rate, &s.DurationMonths, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Scheme{}, ErrSchemeNotFound
		}
		return Scheme{}, err
	}
	if s.MonthlyRatePct, err = decimal.NewFromString(rate); err != nil {
		return Scheme{}, err
	}
	return s, nil
}

// InsertScheme creates a scheme row.
func (r *Repository) InsertScheme(ctx context.Context, in SchemeInput) (Scheme, error) {
	return scanScheme(r.pool.QueryRow(ctx, `INSERT INTO schemes (company_id, name, monthly_rate_pct, duration_months)
VALUES ($1,$2,$3,$4) RETURNING `+schemeColumns,
		in.CompanyID, in.Name, in.MonthlyRatePct.String(), in.DurationMonths))
}

// GetScheme loads one scheme.
func (r *Repository) GetScheme(ctx context.Context, companyID, schemeID int64) (Scheme, error) {
	return scanScheme(r.pool.QueryRow(ctx, `SELECT `+schemeColumns+` FROM schemes
WHERE id=$1 AND company_id=$2`, schemeID, companyID))
}

// UpdateScheme updates scheme terms for future pledges only.
func (r *Repository) UpdateScheme(ctx context.Context, companyID, schemeID int64, in SchemeInput) (Scheme, error) {
	return scanScheme(r.pool.QueryRow(ctx, `UPDATE schemes SET name=$3, monthly_rate_pct=$4, duration_months=$5, updated_at=NOW()
WHERE id=$1 AND company_id=$2 RETURNING `+schemeColumns,
		schemeID, companyID, in.Name, in.MonthlyRatePct.String(), in.DurationMonths))
}

// ListSchemes returns the company's schemes by name.
func (r *Repository) ListSchemes(ctx context.Context, companyID int64) ([]Scheme, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+schemeColumns+` FROM schemes
WHERE company_id=$1 ORDER BY name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Scheme
	for rows.Next() {
		s, err := scanScheme(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
