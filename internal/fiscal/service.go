package fiscal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pawnbook/pawnbook/internal/ledger"
	"github.com/pawnbook/pawnbook/internal/ledger/reports"
	"github.com/pawnbook/pawnbook/internal/shared"
)

// CompanyPort reads the company's fiscal calendar.
type CompanyPort interface {
	FiscalStart(ctx context.Context, companyID int64) (time.Month, int, error)
}

// AuditPort records year close/open events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheBumper invalidates cached reports after a posting.
type CacheBumper interface {
	Bump(ctx context.Context, companyID int64)
}

// Service runs the year close/open cycle. Both operations execute as one
// Serializable ledger transaction holding an exclusive lock on the company
// row; payment posting reads the same row FOR SHARE, so a payment either
// commits before the close sees the year's totals or waits and then hits
// the closed-year marker.
type Service struct {
	ledger    ledger.RepositoryPort
	companies CompanyPort
	audit     AuditPort
	cache     CacheBumper
	now       func() time.Time
}

// NewService constructs the fiscal service.
func NewService(ledgerRepo ledger.RepositoryPort, companies CompanyPort, audit AuditPort, cache CacheBumper) *Service {
	return &Service{ledger: ledgerRepo, companies: companies, audit: audit, cache: cache, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CloseInput carries a year close or open request. StartYear is the
// calendar year the financial year begins in.
type CloseInput struct {
	CompanyID int64
	StartYear int
	Confirm   string
	ActorID   int64
}

// CloseYear posts the closing voucher for the financial year: every income
// account is debited down to zero, every expense account credited down to
// zero, and the net lands on Retained Earnings. The unposted-voucher check
// re-runs inside the transaction immediately before the entries are
// written, not just at request entry.
func (s *Service) CloseYear(ctx context.Context, in CloseInput) (ledger.Voucher, error) {
	year, err := s.resolveYear(ctx, in)
	if err != nil {
		return ledger.Voucher{}, err
	}
	if !year.Ended(s.now()) {
		return ledger.Voucher{}, ErrYearNotEnded
	}

	var voucher ledger.Voucher
	err = s.ledger.WithSerializableTx(ctx, func(ctx context.Context, tx ledger.TxRepository) error {
		if err := tx.LockCompany(ctx, in.CompanyID); err != nil {
			return err
		}
		closed, err := tx.YearClosed(ctx, in.CompanyID, year.Start, year.End)
		if err != nil {
			return err
		}
		if closed {
			return ErrAlreadyClosed
		}
		if err := s.ensureNoPending(ctx, tx, in.CompanyID, year); err != nil {
			return err
		}

		totals, err := tx.AccountTotalsInRange(ctx, in.CompanyID, &year.Start, &year.End)
		if err != nil {
			return err
		}
		retained, err := tx.GetAccountByCode(ctx, in.CompanyID, ledger.CodeRetainedEarnings)
		if err != nil {
			if errors.Is(err, ledger.ErrAccountNotFound) {
				return ledger.ErrMissingParentAccount
			}
			return err
		}
		entries, err := closingEntries(totals, retained.ID)
		if err != nil {
			return err
		}

		// Final re-validation before the write.
		if err := s.ensureNoPending(ctx, tx, in.CompanyID, year); err != nil {
			return err
		}
		input := ledger.PostingInput{
			CompanyID: in.CompanyID,
			Type:      ledger.VoucherTypeYearClose,
			Date:      year.End,
			Narration: fmt.Sprintf("year-end closing %s", year.Label()),
			ActorID:   in.ActorID,
			Entries:   entries,
		}
		if len(entries) == 0 {
			// Zero-activity year: the marker alone records the close. A
			// voucher never exists without entries.
			voucher = ledger.Voucher{
				CompanyID: in.CompanyID,
				Type:      input.Type,
				Date:      input.Date,
				Narration: input.Narration,
				CreatedBy: in.ActorID,
			}
			return markYearClosed(ctx, tx, in.CompanyID, year)
		}
		voucher, err = ledger.PostWithTx(ctx, tx, input)
		if err != nil {
			return err
		}
		return markYearClosed(ctx, tx, in.CompanyID, year)
	})
	if err != nil {
		return ledger.Voucher{}, err
	}
	s.afterWrite(ctx, in, "year.close", voucher.ID)
	return voucher, nil
}

// OpenYear posts the opening voucher for the financial year, carrying
// forward every non-zero asset, liability, and equity balance as of the
// prior year's end. Income and expense accounts start at zero because the
// prior close zeroed them.
func (s *Service) OpenYear(ctx context.Context, in CloseInput) (ledger.Voucher, error) {
	year, err := s.resolveYear(ctx, in)
	if err != nil {
		return ledger.Voucher{}, err
	}

	var voucher ledger.Voucher
	err = s.ledger.WithSerializableTx(ctx, func(ctx context.Context, tx ledger.TxRepository) error {
		if err := tx.LockCompany(ctx, in.CompanyID); err != nil {
			return err
		}
		prior := year.Prior()
		priorClosed, err := tx.YearClosed(ctx, in.CompanyID, prior.Start, prior.End)
		if err != nil {
			return err
		}
		if !priorClosed {
			return ErrPriorYearNotClosed
		}
		opened, err := tx.HasVoucherOfTypeInRange(ctx, in.CompanyID, ledger.VoucherTypeYearOpen, year.Start, year.End)
		if err != nil {
			return err
		}
		if opened {
			return ErrAlreadyOpened
		}

		totals, err := tx.AccountTotalsInRange(ctx, in.CompanyID, nil, &prior.End)
		if err != nil {
			return err
		}
		entries := openingEntries(totals)
		if len(entries) == 0 {
			return ledger.ErrEmptyVoucher
		}
		voucher, err = ledger.PostWithTx(ctx, tx, ledger.PostingInput{
			CompanyID: in.CompanyID,
			Type:      ledger.VoucherTypeYearOpen,
			Date:      year.Start,
			Narration: fmt.Sprintf("opening balances %s", year.Label()),
			ActorID:   in.ActorID,
			Entries:   entries,
		})
		return err
	})
	if err != nil {
		return ledger.Voucher{}, err
	}
	s.afterWrite(ctx, in, "year.open", voucher.ID)
	return voucher, nil
}

// YearFor exposes the derived financial year for reporting callers.
func (s *Service) YearFor(ctx context.Context, companyID int64, startYear int) (Year, error) {
	month, day, err := s.companies.FiscalStart(ctx, companyID)
	if err != nil {
		return Year{}, err
	}
	return YearStarting(startYear, month, day), nil
}

func (s *Service) resolveYear(ctx context.Context, in CloseInput) (Year, error) {
	if in.Confirm != ConfirmToken {
		return Year{}, ErrConfirmationRequired
	}
	if in.CompanyID == 0 || in.StartYear == 0 {
		return Year{}, shared.Validation("fiscal: company and start year required")
	}
	month, day, err := s.companies.FiscalStart(ctx, in.CompanyID)
	if err != nil {
		return Year{}, err
	}
	return YearStarting(in.StartYear, month, day), nil
}

// markYearClosed writes the closed-year marker, translating the duplicate
// case so a lost race surfaces as the same error as an explicit re-close.
func markYearClosed(ctx context.Context, tx ledger.TxRepository, companyID int64, year Year) error {
	if err := tx.MarkYearClosed(ctx, companyID, year.Start, year.End); err != nil {
		if errors.Is(err, ledger.ErrYearAlreadyClosed) {
			return ErrAlreadyClosed
		}
		return err
	}
	return nil
}

func (s *Service) ensureNoPending(ctx context.Context, tx ledger.TxRepository, companyID int64, year Year) error {
	pending, err := tx.CountEmptyVouchers(ctx, companyID, year.Start, year.End)
	if err != nil {
		return err
	}
	if pending > 0 {
		return ErrPendingUnpostedVouchers
	}
	return nil
}

// closingEntries zeroes income and expense balances into retained earnings.
func closingEntries(totals []reports.AccountBalance, retainedID int64) ([]ledger.EntryInput, error) {
	var entries []ledger.EntryInput
	net := decimal.Zero
	for _, acc := range totals {
		balance := acc.Net()
		if balance.IsZero() {
			continue
		}
		switch acc.Type {
		case string(ledger.AccountTypeIncome):
			entries = append(entries, flipEntry(acc.AccountID, balance, ledger.Debit))
			net = net.Add(balance)
		case string(ledger.AccountTypeExpense):
			entries = append(entries, flipEntry(acc.AccountID, balance, ledger.Credit))
			net = net.Sub(balance)
		}
	}
	if len(entries) == 0 {
		return nil, nil
	}
	if net.IsPositive() {
		entries = append(entries, ledger.EntryInput{
			AccountID: retainedID, Direction: ledger.Credit, Amount: net, Narration: "net profit",
		})
	} else if net.IsNegative() {
		entries = append(entries, ledger.EntryInput{
			AccountID: retainedID, Direction: ledger.Debit, Amount: net.Abs(), Narration: "net loss",
		})
	}
	return entries, nil
}

// flipEntry writes the entry that cancels a normal-side balance. A negative
// normal balance flips to the account's other side.
func flipEntry(accountID int64, balance decimal.Decimal, closingSide ledger.Direction) ledger.EntryInput {
	if balance.IsNegative() {
		return ledger.EntryInput{AccountID: accountID, Direction: closingSide.Opposite(), Amount: balance.Abs()}
	}
	return ledger.EntryInput{AccountID: accountID, Direction: closingSide, Amount: balance}
}

// openingEntries carries forward balance-sheet balances on their normal side.
func openingEntries(totals []reports.AccountBalance) []ledger.EntryInput {
	var entries []ledger.EntryInput
	for _, acc := range totals {
		balance := acc.Net()
		if balance.IsZero() {
			continue
		}
		var side ledger.Direction
		switch acc.Type {
		case string(ledger.AccountTypeAsset):
			side = ledger.Debit
		case string(ledger.AccountTypeLiability), string(ledger.AccountTypeEquity):
			side = ledger.Credit
		default:
			continue
		}
		if balance.IsNegative() {
			side = side.Opposite()
			balance = balance.Abs()
		}
		entries = append(entries, ledger.EntryInput{AccountID: acc.AccountID, Direction: side, Amount: balance})
	}
	return entries
}

func (s *Service) afterWrite(ctx context.Context, in CloseInput, action string, voucherID int64) {
	if s.cache != nil {
		s.cache.Bump(ctx, in.CompanyID)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  in.ActorID,
			Action:   action,
			Entity:   "voucher",
			EntityID: fmt.Sprintf("%d", voucherID),
			Meta:     map[string]any{"start_year": in.StartYear},
			At:       s.now(),
		})
	}
}
