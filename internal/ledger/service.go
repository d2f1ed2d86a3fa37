package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pawnbook/pawnbook/internal/ledger/reports"
	"github.com/pawnbook/pawnbook/internal/shared"
)

// ReadPort abstracts the read-side queries backing the report paths.
type ReadPort interface {
	AccountTotals(ctx context.Context, companyID int64, from, to *time.Time) ([]reports.AccountBalance, error)
	NetBalanceBefore(ctx context.Context, companyID, accountID int64, cutoff time.Time) (decimal.Decimal, error)
	EntriesForAccount(ctx context.Context, companyID, accountID int64, from, to time.Time) ([]reports.LineEntry, error)
	ListAccounts(ctx context.Context, companyID int64) ([]Account, error)
	CustomerAccountID(ctx context.Context, companyID, customerID int64) (int64, error)
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheBumper invalidates cached reports after a write. The report cache is
// a convenience only; the entry log stays the single source of truth.
type CacheBumper interface {
	Bump(ctx context.Context, companyID int64)
}

// Service coordinates posting, reversal, the account registry, and report
// computation.
type Service struct {
	repo  RepositoryPort
	read  ReadPort
	audit AuditPort
	cache CacheBumper
	now   func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, read ReadPort, audit AuditPort, cache CacheBumper) *Service {
	return &Service{repo: repo, read: read, audit: audit, cache: cache, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post validates and persists a new voucher with balanced entries in one
// atomic transaction. On any failure nothing is persisted.
func (s *Service) Post(ctx context.Context, input PostingInput) (Voucher, error) {
	var voucher Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var e error
		voucher, e = PostWithTx(ctx, tx, input)
		return e
	})
	if err != nil {
		return Voucher{}, err
	}
	s.afterWrite(ctx, input.CompanyID, input.ActorID, "voucher.post", voucher)
	return voucher, nil
}

// Reverse synthesizes and posts the mirror voucher of an existing one.
func (s *Service) Reverse(ctx context.Context, companyID, voucherID, actorID int64, reason string) (Voucher, error) {
	var voucher Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var e error
		voucher, e = ReverseWithTx(ctx, tx, companyID, voucherID, actorID, reason, s.now())
		return e
	})
	if err != nil {
		return Voucher{}, err
	}
	s.afterWrite(ctx, companyID, actorID, "voucher.reverse", voucher)
	return voucher, nil
}

func (s *Service) afterWrite(ctx context.Context, companyID, actorID int64, action string, voucher Voucher) {
	if s.cache != nil {
		s.cache.Bump(ctx, companyID)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   action,
			Entity:   "voucher",
			EntityID: fmt.Sprintf("%d", voucher.ID),
			Meta: map[string]any{
				"type":    string(voucher.Type),
				"entries": len(voucher.Entries),
			},
			At: s.now(),
		})
	}
}

// CreateAccount adds an explicit chart node. The code must be unique within
// the company and the parent, when given, must exist in the same company.
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error) {
	if err := input.Validate(); err != nil {
		return Account{}, err
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.ParentID != nil {
			parent, err := tx.GetAccount(ctx, input.CompanyID, *input.ParentID)
			if err != nil {
				if errors.Is(err, ErrAccountNotFound) {
					return ErrInvalidParent
				}
				return err
			}
			if parent.CompanyID != input.CompanyID {
				return ErrInvalidParent
			}
		}
		var e error
		account, e = tx.InsertAccount(ctx, input)
		return e
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// CustomerSubAccount returns the customer's ledger sub-account, allocating
// it on first use. Allocation locks the fixed parent row so concurrent
// first payments for different customers cannot collide on the next
// sequential sub-code. Idempotent: an existing link is returned as is.
func (s *Service) CustomerSubAccount(ctx context.Context, companyID, customerID int64, customerName string) (Account, error) {
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var e error
		account, e = EnsureCustomerSubAccount(ctx, tx, companyID, customerID, customerName)
		return e
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// EnsureCustomerSubAccount is the in-transaction body of CustomerSubAccount
// so payment posting can resolve the sub-account inside its own transaction.
func EnsureCustomerSubAccount(ctx context.Context, tx TxRepository, companyID, customerID int64, customerName string) (Account, error) {
	linked, err := tx.GetCustomerLink(ctx, companyID, customerID)
	if err != nil {
		return Account{}, err
	}
	if linked != nil {
		return tx.GetAccount(ctx, companyID, *linked)
	}
	parent, err := tx.GetAccountByCodeForUpdate(ctx, companyID, CodeCustomerLiabilities)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ErrMissingParentAccount
		}
		return Account{}, err
	}
	children, err := tx.CountChildren(ctx, parent.ID)
	if err != nil {
		return Account{}, err
	}
	account, err := tx.InsertAccount(ctx, CreateAccountInput{
		CompanyID: companyID,
		Code:      fmt.Sprintf("%s.%d", parent.Code, children+1),
		Name:      fmt.Sprintf("Customer - %s", customerName),
		Type:      AccountTypeLiability,
		ParentID:  &parent.ID,
	})
	if err != nil {
		return Account{}, err
	}
	if err := tx.LinkCustomerAccount(ctx, customerID, account.ID); err != nil {
		return Account{}, err
	}
	return account, nil
}

// DeactivateAccount retires an account. Accounts with posted entries are
// only deactivated, never deleted; an account with no history is hard
// deleted instead.
func (s *Service) DeactivateAccount(ctx context.Context, companyID, accountID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetAccount(ctx, companyID, accountID); err != nil {
			return err
		}
		hasEntries, err := tx.AccountHasEntries(ctx, accountID)
		if err != nil {
			return err
		}
		if hasEntries {
			return tx.SetAccountActive(ctx, accountID, false)
		}
		return tx.DeleteAccount(ctx, accountID)
	})
}

type chartSeed struct {
	code string
	name string
	typ  AccountType
}

var defaultChart = []chartSeed{
	{CodeCash, "Cash", AccountTypeAsset},
	{CodeBank, "Bank", AccountTypeAsset},
	{CodePledgeLoans, "Pledge Loans", AccountTypeAsset},
	{CodeCustomerLiabilities, "Customer Pledge Liabilities", AccountTypeLiability},
	{CodeRetainedEarnings, "Retained Earnings", AccountTypeEquity},
	{CodeInterestIncome, "Interest Income", AccountTypeIncome},
	{CodeDocumentCharges, "Document Charges", AccountTypeIncome},
	{CodePenaltyIncome, "Penalty Income", AccountTypeIncome},
	{CodeDiscountExpense, "Settlement Discounts", AccountTypeExpense},
}

// InitChartOfAccounts seeds the fixed chart for a company. Existing codes
// are left untouched, so the call is idempotent.
func (s *Service) InitChartOfAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	var created []Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, seed := range defaultChart {
			_, err := tx.GetAccountByCode(ctx, companyID, seed.code)
			if err == nil {
				continue
			}
			if !errors.Is(err, ErrAccountNotFound) {
				return err
			}
			account, err := tx.InsertAccount(ctx, CreateAccountInput{
				CompanyID: companyID,
				Code:      seed.code,
				Name:      seed.name,
				Type:      seed.typ,
			})
			if err != nil {
				return err
			}
			created = append(created, account)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListAccounts returns the company's chart of accounts.
func (s *Service) ListAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	return s.read.ListAccounts(ctx, companyID)
}

// AccountBalance returns one account's normalized balance from entries
// dated on or before asOf.
func (s *Service) AccountBalance(ctx context.Context, companyID, accountID int64, asOf time.Time) (decimal.Decimal, error) {
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var e error
		account, e = tx.GetAccount(ctx, companyID, accountID)
		return e
	})
	if err != nil {
		return decimal.Zero, err
	}
	net, err := s.read.NetBalanceBefore(ctx, companyID, accountID, asOf.AddDate(0, 0, 1))
	if err != nil {
		return decimal.Zero, err
	}
	if account.Type.DebitNormal() {
		return net.Neg(), nil
	}
	return net, nil
}

// TrialBalance computes every active account's normalized balance from
// entries dated on or before asOf.
func (s *Service) TrialBalance(ctx context.Context, companyID int64, asOf time.Time) (reports.TrialBalance, error) {
	totals, err := s.read.AccountTotals(ctx, companyID, nil, &asOf)
	if err != nil {
		return reports.TrialBalance{}, err
	}
	return reports.BuildTrialBalance(totals), nil
}

// ProfitAndLoss computes income and expense totals strictly within the
// fiscal window.
func (s *Service) ProfitAndLoss(ctx context.Context, companyID int64, from, to time.Time) (reports.ProfitAndLoss, error) {
	totals, err := s.read.AccountTotals(ctx, companyID, &from, &to)
	if err != nil {
		return reports.ProfitAndLoss{}, err
	}
	return reports.BuildProfitAndLoss(totals), nil
}

// BalanceSheet computes asset, liability, and equity balances as of a date.
func (s *Service) BalanceSheet(ctx context.Context, companyID int64, asOf time.Time) (reports.BalanceSheet, error) {
	totals, err := s.read.AccountTotals(ctx, companyID, nil, &asOf)
	if err != nil {
		return reports.BalanceSheet{}, err
	}
	return reports.BuildBalanceSheet(totals), nil
}

// DayBook builds the daily cash book: opening balance strictly before the
// date, the day's cash entries in insertion order with running balances,
// and the derived closing balance.
func (s *Service) DayBook(ctx context.Context, companyID int64, day time.Time) (reports.DayBook, error) {
	var cash Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var e error
		cash, e = tx.GetAccountByCode(ctx, companyID, CodeCash)
		return e
	})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return reports.DayBook{}, ErrMissingParentAccount
		}
		return reports.DayBook{}, err
	}
	net, err := s.read.NetBalanceBefore(ctx, companyID, cash.ID, day)
	if err != nil {
		return reports.DayBook{}, err
	}
	lines, err := s.read.EntriesForAccount(ctx, companyID, cash.ID, day, day)
	if err != nil {
		return reports.DayBook{}, err
	}
	// Cash is debit-normal; NetBalanceBefore is credit-positive.
	return reports.BuildDayBook(net.Neg(), lines), nil
}

// CustomerStatement builds the customer's sub-ledger over a date range.
func (s *Service) CustomerStatement(ctx context.Context, companyID, customerID int64, from, to time.Time) (reports.Statement, error) {
	accountID, err := s.read.CustomerAccountID(ctx, companyID, customerID)
	if err != nil {
		return reports.Statement{}, err
	}
	opening, err := s.read.NetBalanceBefore(ctx, companyID, accountID, from)
	if err != nil {
		return reports.Statement{}, err
	}
	lines, err := s.read.EntriesForAccount(ctx, companyID, accountID, from, to)
	if err != nil {
		return reports.Statement{}, err
	}
	return reports.BuildStatement(opening, lines), nil
}
