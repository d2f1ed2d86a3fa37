package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pawnbook/pawnbook/internal/ledger/reports"
	"github.com/pawnbook/pawnbook/internal/platform/db"
	"github.com/pawnbook/pawnbook/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	WithSerializableTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations available inside one posting
// transaction. Entries within a voucher are written and read back in
// insertion order (entry id ascending); that order is semantically
// meaningful for running balances.
type TxRepository interface {
	InsertVoucher(ctx context.Context, in PostingInput) (Voucher, error)
	InsertEntries(ctx context.Context, voucher Voucher, lines []EntryInput) ([]Entry, error)
	GetVoucherWithEntries(ctx context.Context, companyID, voucherID int64) (Voucher, error)

	GetAccount(ctx context.Context, companyID, accountID int64) (Account, error)
	GetAccountByCode(ctx context.Context, companyID int64, code string) (Account, error)
	GetAccountByCodeForUpdate(ctx context.Context, companyID int64, code string) (Account, error)
	InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error)
	CountChildren(ctx context.Context, parentID int64) (int, error)
	AccountHasEntries(ctx context.Context, accountID int64) (bool, error)
	SetAccountActive(ctx context.Context, accountID int64, active bool) error
	DeleteAccount(ctx context.Context, accountID int64) error
	GetCustomerLink(ctx context.Context, companyID, customerID int64) (*int64, error)
	LinkCustomerAccount(ctx context.Context, customerID, accountID int64) error

	HasVoucherOfTypeInRange(ctx context.Context, companyID int64, vtype VoucherType, from, to time.Time) (bool, error)
	CountEmptyVouchers(ctx context.Context, companyID int64, from, to time.Time) (int, error)
	AccountTotalsInRange(ctx context.Context, companyID int64, from, to *time.Time) ([]reports.AccountBalance, error)

	LockCompany(ctx context.Context, companyID int64) error
	MarkYearClosed(ctx context.Context, companyID int64, from, to time.Time) error
	YearClosed(ctx context.Context, companyID int64, from, to time.Time) (bool, error)
}

// Repository persists ledger entities on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an already-open transaction so other services can
// post vouchers inside their own transaction boundary.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes fn within a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// WithSerializableTx executes fn within a Serializable transaction; used by
// the fiscal year close/open engine.
func (r *Repository) WithSerializableTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) InsertVoucher(ctx context.Context, in PostingInput) (Voucher, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO vouchers (company_id, type, date, narration, created_by)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`, in.CompanyID, in.Type, in.Date, in.Narration, in.ActorID)
	voucher := Voucher{
		CompanyID: in.CompanyID,
		Type:      in.Type,
		Date:      in.Date,
		Narration: in.Narration,
		CreatedBy: in.ActorID,
	}
	if err := row.Scan(&voucher.ID, &voucher.CreatedAt); err != nil {
		return Voucher{}, err
	}
	return voucher, nil
}

func (r *txRepository) InsertEntries(ctx context.Context, voucher Voucher, lines []EntryInput) ([]Entry, error) {
	out := make([]Entry, 0, len(lines))
	for _, line := range lines {
		var refKind, refID any
		if line.Ref != nil {
			refKind = string(line.Ref.Kind)
			refID = line.Ref.ID
		}
		entry := Entry{
			VoucherID: voucher.ID,
			CompanyID: voucher.CompanyID,
			AccountID: line.AccountID,
			Direction: line.Direction,
			Amount:    line.Amount,
			Narration: line.Narration,
			Ref:       line.Ref,
			Date:      voucher.Date,
		}
		err := r.tx.QueryRow(ctx, `INSERT INTO entries (voucher_id, company_id, account_id, direction, amount, narration, ref_kind, ref_id, date)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
			voucher.ID, voucher.CompanyID, line.AccountID, line.Direction, line.Amount.StringFixed(2), line.Narration, refKind, refID, voucher.Date).
			Scan(&entry.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *txRepository) GetVoucherWithEntries(ctx context.Context, companyID, voucherID int64) (Voucher, error) {
	var voucher Voucher
	err := r.tx.QueryRow(ctx, `SELECT id, company_id, type, date, narration, created_by, created_at
FROM vouchers WHERE id=$1 AND company_id=$2`, voucherID, companyID).
		Scan(&voucher.ID, &voucher.CompanyID, &voucher.Type, &voucher.Date, &voucher.Narration, &voucher.CreatedBy, &voucher.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Voucher{}, ErrVoucherNotFound
		}
		return Voucher{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, voucher_id, company_id, account_id, direction, amount, narration, ref_kind, ref_id, date
FROM entries WHERE voucher_id=$1 ORDER BY id ASC`, voucherID)
	if err != nil {
		return Voucher{}, err
	}
	defer rows.Close()
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return Voucher{}, err
		}
		voucher.Entries = append(voucher.Entries, entry)
	}
	return voucher, rows.Err()
}

func scanEntry(rows pgx.Rows) (Entry, error) {
	var (
		entry   Entry
		amount  string
		refKind *string
		refID   *int64
	)
	if err := rows.Scan(&entry.ID, &entry.VoucherID, &entry.CompanyID, &entry.AccountID, &entry.Direction,
		&amount, &entry.Narration, &refKind, &refID, &entry.Date); err != nil {
		return Entry{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return Entry{}, err
	}
	entry.Amount = parsed
	if refKind != nil && refID != nil {
		entry.Ref = &Reference{Kind: RefKind(*refKind), ID: *refID}
	}
	return entry, nil
}

const accountColumns = `id, company_id, code, name, type, parent_id, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) GetAccount(ctx context.Context, companyID, accountID int64) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 AND company_id=$2`, accountID, companyID))
}

func (r *txRepository) GetAccountByCode(ctx context.Context, companyID int64, code string) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND code=$2`, companyID, code))
}

func (r *txRepository) GetAccountByCodeForUpdate(ctx context.Context, companyID int64, code string) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND code=$2 FOR UPDATE`, companyID, code))
}

func (r *txRepository) InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (company_id, code, name, type, parent_id, is_active)
VALUES ($1,$2,$3,$4,$5,TRUE) RETURNING `+accountColumns, in.CompanyID, in.Code, in.Name, in.Type, in.ParentID)
	account, err := scanAccount(row)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	return account, nil
}

func (r *txRepository) CountChildren(ctx context.Context, parentID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE parent_id=$1`, parentID).Scan(&count)
	return count, err
}

func (r *txRepository) AccountHasEntries(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM entries WHERE account_id=$1)`, accountID).Scan(&exists)
	return exists, err
}

func (r *txRepository) SetAccountActive(ctx context.Context, accountID int64, active bool) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET is_active=$2, updated_at=NOW() WHERE id=$1`, accountID, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) DeleteAccount(ctx context.Context, accountID int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) GetCustomerLink(ctx context.Context, companyID, customerID int64) (*int64, error) {
	var accountID *int64
	err := r.tx.QueryRow(ctx, `SELECT account_id FROM customers WHERE id=$1 AND company_id=$2 FOR UPDATE`, customerID, companyID).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return accountID, nil
}

func (r *txRepository) LinkCustomerAccount(ctx context.Context, customerID, accountID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE customers SET account_id=$2, updated_at=NOW() WHERE id=$1`, customerID, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errors.New("ledger: customer not found for sub-account link")
	}
	return nil
}

func (r *txRepository) HasVoucherOfTypeInRange(ctx context.Context, companyID int64, vtype VoucherType, from, to time.Time) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vouchers WHERE company_id=$1 AND type=$2 AND date BETWEEN $3 AND $4)`,
		companyID, vtype, from, to).Scan(&exists)
	return exists, err
}

func (r *txRepository) CountEmptyVouchers(ctx context.Context, companyID int64, from, to time.Time) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM vouchers v
WHERE v.company_id=$1 AND v.date BETWEEN $2 AND $3
AND NOT EXISTS (SELECT 1 FROM entries e WHERE e.voucher_id = v.id)`, companyID, from, to).Scan(&count)
	return count, err
}

// LockCompany takes an exclusive lock on the company row for the rest of
// the transaction. The year close/open engine holds it so no payment
// transaction, which reads the same row FOR SHARE, can post into the year
// being closed concurrently.
func (r *txRepository) LockCompany(ctx context.Context, companyID int64) error {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM companies WHERE id=$1 FOR UPDATE`, companyID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCompanyNotFound
		}
		return err
	}
	return nil
}

// MarkYearClosed records the closed-year marker. The unique index on
// (company_id, period_start) makes a concurrent double close impossible
// even outside serializable isolation.
func (r *txRepository) MarkYearClosed(ctx context.Context, companyID int64, from, to time.Time) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO fiscal_year_closings (company_id, period_start, period_end)
VALUES ($1,$2,$3)`, companyID, from, to)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return ErrYearAlreadyClosed
		}
		return err
	}
	return nil
}

// YearClosed reports whether a closed-year marker falls inside the window.
func (r *txRepository) YearClosed(ctx context.Context, companyID int64, from, to time.Time) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM fiscal_year_closings
WHERE company_id=$1 AND period_start >= $2 AND period_end <= $3)`, companyID, from, to).Scan(&exists)
	return exists, err
}

const accountTotalsSQL = `SELECT a.id, a.code, a.name, a.type,
COALESCE(SUM(CASE WHEN e.direction='DR' THEN e.amount END), 0) AS debit,
COALESCE(SUM(CASE WHEN e.direction='CR' THEN e.amount END), 0) AS credit
FROM accounts a
LEFT JOIN entries e ON e.account_id = a.id
  AND ($2::date IS NULL OR e.date >= $2)
  AND ($3::date IS NULL OR e.date <= $3)
WHERE a.company_id = $1 AND a.is_active
GROUP BY a.id, a.code, a.name, a.type
ORDER BY a.code`

func (r *txRepository) AccountTotalsInRange(ctx context.Context, companyID int64, from, to *time.Time) ([]reports.AccountBalance, error) {
	rows, err := r.tx.Query(ctx, accountTotalsSQL, companyID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccountTotals(rows)
}

func collectAccountTotals(rows pgx.Rows) ([]reports.AccountBalance, error) {
	var out []reports.AccountBalance
	for rows.Next() {
		var (
			bal           reports.AccountBalance
			debit, credit string
		)
		if err := rows.Scan(&bal.AccountID, &bal.Code, &bal.Name, &bal.Type, &debit, &credit); err != nil {
			return nil, err
		}
		var err error
		if bal.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if bal.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		out = append(out, bal)
	}
	return out, rows.Err()
}

// AccountTotals returns per-account debit/credit sums over the window for
// the read-side report paths. Nil bounds leave the window open on that side.
func (r *Repository) AccountTotals(ctx context.Context, companyID int64, from, to *time.Time) ([]reports.AccountBalance, error) {
	rows, err := r.pool.Query(ctx, accountTotalsSQL, companyID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccountTotals(rows)
}

// NetBalanceBefore returns the credit-minus-debit net for one account over
// entries strictly before the cutoff date.
func (r *Repository) NetBalanceBefore(ctx context.Context, companyID, accountID int64, cutoff time.Time) (decimal.Decimal, error) {
	var raw string
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(CASE WHEN direction='CR' THEN amount ELSE -amount END), 0)
FROM entries WHERE company_id=$1 AND account_id=$2 AND date < $3`, companyID, accountID, cutoff).Scan(&raw)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

// EntriesForAccount returns the entries hitting one account within the
// window, ordered by (voucher date, voucher id, entry id) so backdated
// vouchers report in business order, not wall-clock order.
func (r *Repository) EntriesForAccount(ctx context.Context, companyID, accountID int64, from, to time.Time) ([]reports.LineEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.id, e.voucher_id, v.type, e.direction, e.amount, e.narration, e.date
FROM entries e JOIN vouchers v ON v.id = e.voucher_id
WHERE e.company_id=$1 AND e.account_id=$2 AND e.date BETWEEN $3 AND $4
ORDER BY e.date, e.voucher_id, e.id`, companyID, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []reports.LineEntry
	for rows.Next() {
		var (
			line   reports.LineEntry
			amount string
		)
		if err := rows.Scan(&line.EntryID, &line.VoucherID, &line.VoucherType, &line.Direction, &amount, &line.Narration, &line.Date); err != nil {
			return nil, err
		}
		if line.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// CustomerAccountID resolves the customer's sub-account for read-side
// statement queries.
func (r *Repository) CustomerAccountID(ctx context.Context, companyID, customerID int64) (int64, error) {
	var accountID *int64
	err := r.pool.QueryRow(ctx, `SELECT account_id FROM customers WHERE id=$1 AND company_id=$2`, customerID, companyID).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCustomerNotFound
		}
		return 0, err
	}
	if accountID == nil {
		return 0, ErrCustomerNoSubAccount
	}
	return *accountID, nil
}

// ListAccounts returns the company's chart ordered by code.
func (r *Repository) ListAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
