package pledge

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pawnbook/pawnbook/internal/ledger"
	"github.com/pawnbook/pawnbook/internal/platform/db"
	"github.com/pawnbook/pawnbook/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes pledge persistence inside one transaction together
// with the ledger posting surface bound to the same transaction, so a
// disbursal or payment and its voucher commit or roll back as one unit.
type TxRepository interface {
	Ledger() ledger.TxRepository

	InsertPledge(ctx context.Context, p Pledge) (Pledge, error)
	GetPledgeForUpdate(ctx context.Context, companyID, pledgeID int64) (Pledge, error)
	UpdatePledgeStatus(ctx context.Context, pledgeID int64, status Status) error

	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	GetPayment(ctx context.Context, companyID, paymentID int64) (Payment, error)
	UpdatePaymentRow(ctx context.Context, p Payment) error
	DeletePaymentRow(ctx context.Context, paymentID int64) error
	SumPayments(ctx context.Context, pledgeID int64) (PaymentTotals, error)

	GetSchemeTerms(ctx context.Context, companyID, schemeID int64) (decimal.Decimal, int, error)
	GetCustomerName(ctx context.Context, companyID, customerID int64) (string, error)
	GetCompanyFiscalStart(ctx context.Context, companyID int64) (time.Month, int, error)
}

// Repository persists pledges and payments on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
	lg ledger.TxRepository
}

// WithTx executes fn within a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("pledge repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, lg: ledger.NewTxRepository(tx)})
	})
}

func (r *txRepository) Ledger() ledger.TxRepository {
	return r.lg
}

const pledgeColumns = `id, company_id, customer_id, scheme_id, pledge_no, principal, monthly_rate_pct,
duration_months, first_month_interest, document_charges, final_amount, status, pledge_date, due_date,
created_by, created_at, updated_at`

func scanPledge(row pgx.Row) (Pledge, error) {
	var (
		p                                     Pledge
		principal, rate, fmi, charges, final1 string
	)
	err := row.Scan(&p.ID, &p.CompanyID, &p.CustomerID, &p.SchemeID, &p.PledgeNo, &principal, &rate,
		&p.DurationMonths, &fmi, &charges, &final1, &p.Status, &p.PledgeDate, &p.DueDate,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pledge{}, ErrPledgeNotFound
		}
		return Pledge{}, err
	}
	for dst, src := range map[*decimal.Decimal]string{
		&p.Principal: principal, &p.MonthlyRatePct: rate, &p.FirstMonthInterest: fmi,
		&p.DocumentCharges: charges, &p.FinalAmount: final1,
	} {
		if *dst, err = decimal.NewFromString(src); err != nil {
			return Pledge{}, err
		}
	}
	return p, nil
}

func (r *txRepository) InsertPledge(ctx context.Context, p Pledge) (Pledge, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO pledges (company_id, customer_id, scheme_id, pledge_no,
principal, monthly_rate_pct, duration_months, first_month_interest, document_charges, final_amount,
status, pledge_date, due_date, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
RETURNING id, created_at, updated_at`,
		p.CompanyID, p.CustomerID, p.SchemeID, p.PledgeNo,
		p.Principal.StringFixed(2), p.MonthlyRatePct.String(), p.DurationMonths,
		p.FirstMonthInterest.StringFixed(2), p.DocumentCharges.StringFixed(2), p.FinalAmount.StringFixed(2),
		p.Status, p.PledgeDate, p.DueDate, p.CreatedBy)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if shared.IsUniqueViolation(err) {
			return Pledge{}, ErrDuplicatePledgeNo
		}
		return Pledge{}, err
	}
	return p, nil
}

func (r *txRepository) GetPledgeForUpdate(ctx context.Context, companyID, pledgeID int64) (Pledge, error) {
	return scanPledge(r.tx.QueryRow(ctx, `SELECT `+pledgeColumns+` FROM pledges
WHERE id=$1 AND company_id=$2 FOR UPDATE`, pledgeID, companyID))
}

func (r *txRepository) UpdatePledgeStatus(ctx context.Context, pledgeID int64, status Status) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE pledges SET status=$2, updated_at=NOW() WHERE id=$1`, pledgeID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPledgeNotFound
	}
	return nil
}

const paymentColumns = `id, pledge_id, company_id, voucher_id, date, amount, interest, principal,
penalty, discount, balance_amount, method, receipt_no, note, created_by, created_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var (
		p                                                   Payment
		amount, interest, principal, penalty, disc, balance string
	)
	err := row.Scan(&p.ID, &p.PledgeID, &p.CompanyID, &p.VoucherID, &p.Date, &amount, &interest,
		&principal, &penalty, &disc, &balance, &p.Method, &p.ReceiptNo, &p.Note, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, err
	}
	for dst, src := range map[*decimal.Decimal]string{
		&p.Amount: amount, &p.Interest: interest, &p.Principal: principal,
		&p.Penalty: penalty, &p.Discount: disc, &p.BalanceAmount: balance,
	} {
		if *dst, err = decimal.NewFromString(src); err != nil {
			return Payment{}, err
		}
	}
	return p, nil
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO payments (pledge_id, company_id, voucher_id, date, amount,
interest, principal, penalty, discount, balance_amount, method, receipt_no, note, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
RETURNING id, created_at`,
		p.PledgeID, p.CompanyID, p.VoucherID, p.Date, p.Amount.StringFixed(2),
		p.Interest.StringFixed(2), p.Principal.StringFixed(2), p.Penalty.StringFixed(2),
		p.Discount.StringFixed(2), p.BalanceAmount.StringFixed(2), p.Method, p.ReceiptNo, p.Note, p.CreatedBy)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		if shared.IsUniqueViolation(err) {
			return Payment{}, ErrDuplicateReceipt
		}
		return Payment{}, err
	}
	return p, nil
}

func (r *txRepository) GetPayment(ctx context.Context, companyID, paymentID int64) (Payment, error) {
	return scanPayment(r.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments
WHERE id=$1 AND company_id=$2`, paymentID, companyID))
}

func (r *txRepository) UpdatePaymentRow(ctx context.Context, p Payment) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE payments SET voucher_id=$2, date=$3, amount=$4, interest=$5,
principal=$6, penalty=$7, discount=$8, balance_amount=$9, method=$10, receipt_no=$11, note=$12
WHERE id=$1`,
		p.ID, p.VoucherID, p.Date, p.Amount.StringFixed(2), p.Interest.StringFixed(2),
		p.Principal.StringFixed(2), p.Penalty.StringFixed(2), p.Discount.StringFixed(2),
		p.BalanceAmount.StringFixed(2), p.Method, p.ReceiptNo, p.Note)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return ErrDuplicateReceipt
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *txRepository) DeletePaymentRow(ctx context.Context, paymentID int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM payments WHERE id=$1`, paymentID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *txRepository) SumPayments(ctx context.Context, pledgeID int64) (PaymentTotals, error) {
	return sumPayments(ctx, r.tx, pledgeID)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func sumPayments(ctx context.Context, q queryRower, pledgeID int64) (PaymentTotals, error) {
	var amount, interest, principal string
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(amount),0), COALESCE(SUM(interest),0), COALESCE(SUM(principal),0)
FROM payments WHERE pledge_id=$1`, pledgeID).Scan(&amount, &interest, &principal)
	if err != nil {
		return PaymentTotals{}, err
	}
	var totals PaymentTotals
	for dst, src := range map[*decimal.Decimal]string{
		&totals.Amount: amount, &totals.Interest: interest, &totals.Principal: principal,
	} {
		if *dst, err = decimal.NewFromString(src); err != nil {
			return PaymentTotals{}, err
		}
	}
	return totals, nil
}

func (r *txRepository) GetSchemeTerms(ctx context.Context, companyID, schemeID int64) (decimal.Decimal, int, error) {
	var (
		rate     string
		duration int
	)
	err := r.tx.QueryRow(ctx, `SELECT monthly_rate_pct, duration_months FROM schemes
WHERE id=$1 AND company_id=$2`, schemeID, companyID).Scan(&rate, &duration)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, 0, ErrSchemeNotFound
		}
		return decimal.Zero, 0, err
	}
	parsed, err := decimal.NewFromString(rate)
	if err != nil {
		return decimal.Zero, 0, err
	}
	return parsed, duration, nil
}

func (r *txRepository) GetCustomerName(ctx context.Context, companyID, customerID int64) (string, error) {
	var name string
	err := r.tx.QueryRow(ctx, `SELECT name FROM customers WHERE id=$1 AND company_id=$2`, customerID, companyID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ledger.ErrCustomerNotFound
		}
		return "", err
	}
	return name, nil
}

// GetCompanyFiscalStart reads the company's fiscal calendar FOR SHARE. The
// shared lock is held until the payment transaction commits, so a year
// close, which locks the same row FOR UPDATE, cannot run concurrently with
// a payment posting into the year it is closing.
func (r *txRepository) GetCompanyFiscalStart(ctx context.Context, companyID int64) (time.Month, int, error) {
	var month, day int
	err := r.tx.QueryRow(ctx, `SELECT fiscal_start_month, fiscal_start_day FROM companies WHERE id=$1 FOR SHARE`, companyID).Scan(&month, &day)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ledger.ErrCompanyNotFound
		}
		return 0, 0, err
	}
	return time.Month(month), day, nil
}

// GetPledge loads one pledge for read-side callers.
func (r *Repository) GetPledge(ctx context.Context, companyID, pledgeID int64) (Pledge, error) {
	return scanPledge(r.pool.QueryRow(ctx, `SELECT `+pledgeColumns+` FROM pledges
WHERE id=$1 AND company_id=$2`, pledgeID, companyID))
}

// PaymentTotals aggregates recorded payments for quoting without a lock.
func (r *Repository) PaymentTotals(ctx context.Context, pledgeID int64) (PaymentTotals, error) {
	return sumPayments(ctx, r.pool, pledgeID)
}

// ListPayments returns a pledge's payments in business order.
func (r *Repository) ListPayments(ctx context.Context, companyID, pledgeID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments
WHERE pledge_id=$1 AND company_id=$2 ORDER BY date, id`, pledgeID, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
