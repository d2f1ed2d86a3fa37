package fiscal

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pawnbook/pawnbook/internal/ledger"
	"github.com/pawnbook/pawnbook/internal/ledger/reports"
	_ "github.com/pawnbook/pawnbook/testing"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// fakeLedger is an in-memory ledger repository driving close/open flows.
type fakeLedger struct {
	accounts    map[int64]ledger.Account
	vouchers    map[int64]ledger.Voucher
	entries     []ledger.Entry
	closedYears map[time.Time]time.Time

	emptyVouchers int
	companyLocks  int

	nextAccountID int64
	nextVoucherID int64
	nextEntryID   int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		accounts:    map[int64]ledger.Account{},
		vouchers:    map[int64]ledger.Voucher{},
		closedYears: map[time.Time]time.Time{},
	}
}

func (f *fakeLedger) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeLedger) WithSerializableTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeLedger) addAccount(code, name string, typ ledger.AccountType) ledger.Account {
	f.nextAccountID++
	a := ledger.Account{ID: f.nextAccountID, CompanyID: 1, Code: code, Name: name, Type: typ, IsActive: true}
	f.accounts[a.ID] = a
	return a
}

func (f *fakeLedger) post(t *testing.T, vtype ledger.VoucherType, date time.Time, lines ...ledger.EntryInput) {
	t.Helper()
	_, err := ledger.PostWithTx(context.Background(), f, ledger.PostingInput{
		CompanyID: 1, Type: vtype, Date: date, ActorID: 9, Entries: lines,
	})
	require.NoError(t, err)
}

func (f *fakeLedger) InsertVoucher(_ context.Context, in ledger.PostingInput) (ledger.Voucher, error) {
	f.nextVoucherID++
	v := ledger.Voucher{
		ID: f.nextVoucherID, CompanyID: in.CompanyID, Type: in.Type,
		Date: in.Date, Narration: in.Narration, CreatedBy: in.ActorID,
	}
	f.vouchers[v.ID] = v
	return v, nil
}

func (f *fakeLedger) InsertEntries(_ context.Context, voucher ledger.Voucher, lines []ledger.EntryInput) ([]ledger.Entry, error) {
	out := make([]ledger.Entry, 0, len(lines))
	for _, line := range lines {
		f.nextEntryID++
		e := ledger.Entry{
			ID: f.nextEntryID, VoucherID: voucher.ID, CompanyID: voucher.CompanyID,
			AccountID: line.AccountID, Direction: line.Direction, Amount: line.Amount,
			Narration: line.Narration, Ref: line.Ref, Date: voucher.Date,
		}
		f.entries = append(f.entries, e)
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeLedger) GetVoucherWithEntries(_ context.Context, _, voucherID int64) (ledger.Voucher, error) {
	v, ok := f.vouchers[voucherID]
	if !ok {
		return ledger.Voucher{}, ledger.ErrVoucherNotFound
	}
	for _, e := range f.entries {
		if e.VoucherID == voucherID {
			v.Entries = append(v.Entries, e)
		}
	}
	return v, nil
}

func (f *fakeLedger) GetAccount(_ context.Context, _, accountID int64) (ledger.Account, error) {
	a, ok := f.accounts[accountID]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return a, nil
}

func (f *fakeLedger) GetAccountByCode(_ context.Context, _ int64, code string) (ledger.Account, error) {
	for _, a := range f.accounts {
		if a.Code == code {
			return a, nil
		}
	}
	return ledger.Account{}, ledger.ErrAccountNotFound
}

func (f *fakeLedger) GetAccountByCodeForUpdate(ctx context.Context, companyID int64, code string) (ledger.Account, error) {
	return f.GetAccountByCode(ctx, companyID, code)
}

func (f *fakeLedger) InsertAccount(_ context.Context, in ledger.CreateAccountInput) (ledger.Account, error) {
	return f.addAccount(in.Code, in.Name, in.Type), nil
}

func (f *fakeLedger) CountChildren(context.Context, int64) (int, error)       { return 0, nil }
func (f *fakeLedger) AccountHasEntries(context.Context, int64) (bool, error) { return false, nil }
func (f *fakeLedger) SetAccountActive(context.Context, int64, bool) error    { return nil }
func (f *fakeLedger) DeleteAccount(context.Context, int64) error             { return nil }
func (f *fakeLedger) GetCustomerLink(context.Context, int64, int64) (*int64, error) {
	return nil, ledger.ErrCustomerNotFound
}
func (f *fakeLedger) LinkCustomerAccount(context.Context, int64, int64) error { return nil }

func (f *fakeLedger) HasVoucherOfTypeInRange(_ context.Context, _ int64, vtype ledger.VoucherType, from, to time.Time) (bool, error) {
	for _, v := range f.vouchers {
		if v.Type == vtype && !v.Date.Before(from) && !v.Date.After(to) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) CountEmptyVouchers(context.Context, int64, time.Time, time.Time) (int, error) {
	return f.emptyVouchers, nil
}

func (f *fakeLedger) LockCompany(context.Context, int64) error {
	f.companyLocks++
	return nil
}

func (f *fakeLedger) MarkYearClosed(_ context.Context, _ int64, from, to time.Time) error {
	if _, ok := f.closedYears[from]; ok {
		return ledger.ErrYearAlreadyClosed
	}
	f.closedYears[from] = to
	return nil
}

func (f *fakeLedger) YearClosed(_ context.Context, _ int64, from, to time.Time) (bool, error) {
	for start, end := range f.closedYears {
		if !start.Before(from) && !end.After(to) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) AccountTotalsInRange(_ context.Context, _ int64, from, to *time.Time) ([]reports.AccountBalance, error) {
	var out []reports.AccountBalance
	for id := int64(1); id <= f.nextAccountID; id++ {
		a := f.accounts[id]
		bal := reports.AccountBalance{AccountID: a.ID, Code: a.Code, Name: a.Name, Type: string(a.Type)}
		for _, e := range f.entries {
			if e.AccountID != a.ID {
				continue
			}
			if from != nil && e.Date.Before(*from) {
				continue
			}
			if to != nil && e.Date.After(*to) {
				continue
			}
			if e.Direction == ledger.Debit {
				bal.Debit = bal.Debit.Add(e.Amount)
			} else {
				bal.Credit = bal.Credit.Add(e.Amount)
			}
		}
		out = append(out, bal)
	}
	return out, nil
}

func (f *fakeLedger) netFor(accountID int64) decimal.Decimal {
	net := decimal.Zero
	for _, e := range f.entries {
		if e.AccountID == accountID {
			net = net.Add(e.Signed())
		}
	}
	return net
}

type fixedCalendar struct{}

func (fixedCalendar) FiscalStart(context.Context, int64) (time.Month, int, error) {
	return time.April, 1, nil
}

func seededLedger(t *testing.T) (*fakeLedger, map[string]ledger.Account) {
	t.Helper()
	lg := newFakeLedger()
	accounts := map[string]ledger.Account{
		"cash":     lg.addAccount(ledger.CodeCash, "Cash", ledger.AccountTypeAsset),
		"loans":    lg.addAccount(ledger.CodePledgeLoans, "Pledge Loans", ledger.AccountTypeAsset),
		"interest": lg.addAccount(ledger.CodeInterestIncome, "Interest Income", ledger.AccountTypeIncome),
		"discount": lg.addAccount(ledger.CodeDiscountExpense, "Settlement Discounts", ledger.AccountTypeExpense),
		"retained": lg.addAccount(ledger.CodeRetainedEarnings, "Retained Earnings", ledger.AccountTypeEquity),
	}
	// One year of activity inside fiscal 2025-26: interest earned 3600,
	// discounts given 400, the rest parked on cash.
	mid := time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)
	lg.post(t, ledger.VoucherTypeReceipt, mid,
		ledger.EntryInput{AccountID: accounts["cash"].ID, Direction: ledger.Debit, Amount: d("3600")},
		ledger.EntryInput{AccountID: accounts["interest"].ID, Direction: ledger.Credit, Amount: d("3600")})
	lg.post(t, ledger.VoucherTypeJournal, mid,
		ledger.EntryInput{AccountID: accounts["discount"].ID, Direction: ledger.Debit, Amount: d("400")},
		ledger.EntryInput{AccountID: accounts["cash"].ID, Direction: ledger.Credit, Amount: d("400")})
	return lg, accounts
}

func newTestService(lg *fakeLedger) *Service {
	svc := NewService(lg, fixedCalendar{}, nil, nil)
	svc.WithNow(func() time.Time { return time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC) })
	return svc
}

func closeInput() CloseInput {
	return CloseInput{CompanyID: 1, StartYear: 2025, Confirm: ConfirmToken, ActorID: 9}
}

func TestCloseYearRequiresConfirmToken(t *testing.T) {
	lg, _ := seededLedger(t)
	svc := newTestService(lg)

	in := closeInput()
	in.Confirm = "yes"
	_, err := svc.CloseYear(context.Background(), in)
	require.ErrorIs(t, err, ErrConfirmationRequired)

	in.Confirm = ""
	_, err = svc.CloseYear(context.Background(), in)
	require.ErrorIs(t, err, ErrConfirmationRequired)
}

func TestCloseYearZeroesIncomeAndExpense(t *testing.T) {
	lg, accounts := seededLedger(t)
	svc := newTestService(lg)

	voucher, err := svc.CloseYear(context.Background(), closeInput())
	require.NoError(t, err)
	require.Equal(t, ledger.VoucherTypeYearClose, voucher.Type)
	require.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), voucher.Date)

	require.True(t, lg.netFor(accounts["interest"].ID).IsZero(), "income zeroed")
	require.True(t, lg.netFor(accounts["discount"].ID).IsZero(), "expense zeroed")
	require.True(t, lg.netFor(accounts["retained"].ID).Equal(d("3200")), "net profit to retained earnings")
}

func TestCloseYearTwiceFailsAlreadyClosed(t *testing.T) {
	lg, _ := seededLedger(t)
	svc := newTestService(lg)

	_, err := svc.CloseYear(context.Background(), closeInput())
	require.NoError(t, err)
	closingVouchers := countType(lg, ledger.VoucherTypeYearClose)

	_, err = svc.CloseYear(context.Background(), closeInput())
	require.ErrorIs(t, err, ErrAlreadyClosed)
	require.Equal(t, closingVouchers, countType(lg, ledger.VoucherTypeYearClose), "no duplicate closing voucher")
}

func TestCloseYearNotEnded(t *testing.T) {
	lg, _ := seededLedger(t)
	svc := newTestService(lg)
	svc.WithNow(func() time.Time { return time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC) })

	_, err := svc.CloseYear(context.Background(), closeInput())
	require.ErrorIs(t, err, ErrYearNotEnded)
}

func TestCloseYearBlocksOnUnpostedVouchers(t *testing.T) {
	lg, _ := seededLedger(t)
	lg.emptyVouchers = 1
	svc := newTestService(lg)

	_, err := svc.CloseYear(context.Background(), closeInput())
	require.ErrorIs(t, err, ErrPendingUnpostedVouchers)
}

func TestCloseYearZeroActivityMarksWithoutVoucher(t *testing.T) {
	lg := newFakeLedger()
	lg.addAccount(ledger.CodeRetainedEarnings, "Retained Earnings", ledger.AccountTypeEquity)
	svc := newTestService(lg)

	voucher, err := svc.CloseYear(context.Background(), closeInput())
	require.NoError(t, err)
	require.Equal(t, ledger.VoucherTypeYearClose, voucher.Type)
	require.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), voucher.Date)

	// No voucher header is written for a year with nothing to close; the
	// marker alone records the close, so no entry-less voucher ever exists.
	require.Empty(t, lg.vouchers)
	require.Zero(t, voucher.ID)

	_, err = svc.CloseYear(context.Background(), closeInput())
	require.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestCloseAndOpenYearLockCompanyRow(t *testing.T) {
	lg, _ := seededLedger(t)
	svc := newTestService(lg)

	_, err := svc.CloseYear(context.Background(), closeInput())
	require.NoError(t, err)
	require.Equal(t, 1, lg.companyLocks)

	in := closeInput()
	in.StartYear = 2026
	_, err = svc.OpenYear(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 2, lg.companyLocks)
}

func TestOpenYearRequiresPriorClose(t *testing.T) {
	lg, _ := seededLedger(t)
	svc := newTestService(lg)

	in := closeInput()
	in.StartYear = 2026
	_, err := svc.OpenYear(context.Background(), in)
	require.ErrorIs(t, err, ErrPriorYearNotClosed)
}

func TestOpenYearCarriesForwardBalances(t *testing.T) {
	lg, accounts := seededLedger(t)
	svc := newTestService(lg)

	_, err := svc.CloseYear(context.Background(), closeInput())
	require.NoError(t, err)

	in := closeInput()
	in.StartYear = 2026
	voucher, err := svc.OpenYear(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, ledger.VoucherTypeYearOpen, voucher.Type)
	require.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), voucher.Date)

	// Only balance-sheet accounts are carried: cash 3200 Dr, retained 3200 Cr.
	require.Len(t, voucher.Entries, 2)
	for _, e := range voucher.Entries {
		switch e.AccountID {
		case accounts["cash"].ID:
			require.Equal(t, ledger.Debit, e.Direction)
			require.True(t, e.Amount.Equal(d("3200")))
		case accounts["retained"].ID:
			require.Equal(t, ledger.Credit, e.Direction)
			require.True(t, e.Amount.Equal(d("3200")))
		default:
			t.Fatalf("unexpected account %d in opening voucher", e.AccountID)
		}
	}

	_, err = svc.OpenYear(context.Background(), in)
	require.ErrorIs(t, err, ErrAlreadyOpened)
}

func TestYearContaining(t *testing.T) {
	year := YearContaining(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), time.April, 1)
	require.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), year.Start)
	require.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), year.End)

	before := YearContaining(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), time.April, 1)
	require.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), before.Start)

	require.Equal(t, "2025-26", year.Label())
	require.Equal(t, year.Prior().End, year.Start.AddDate(0, 0, -1))
	require.True(t, year.Contains(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)))
	require.False(t, year.Contains(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func countType(lg *fakeLedger, vtype ledger.VoucherType) int {
	count := 0
	for _, v := range lg.vouchers {
		if v.Type == vtype {
			count++
		}
	}
	return count
}
