package pledge

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pawnbook/pawnbook/internal/ledger"
	"github.com/pawnbook/pawnbook/internal/ledger/reports"
	"github.com/pawnbook/pawnbook/internal/shared"
)

// fakeLedgerTx is an in-memory ledger.TxRepository so pledge flows can post
// real balanced vouchers without a database.
type fakeLedgerTx struct {
	accounts      map[int64]ledger.Account
	vouchers      map[int64]ledger.Voucher
	entries       []ledger.Entry
	customerLinks map[int64]*int64
	closedYears   map[time.Time]time.Time

	nextAccountID int64
	nextVoucherID int64
	nextEntryID   int64
}

func newFakeLedgerTx() *fakeLedgerTx {
	return &fakeLedgerTx{
		accounts:      map[int64]ledger.Account{},
		vouchers:      map[int64]ledger.Voucher{},
		customerLinks: map[int64]*int64{},
		closedYears:   map[time.Time]time.Time{},
	}
}

func (f *fakeLedgerTx) InsertVoucher(_ context.Context, in ledger.PostingInput) (ledger.Voucher, error) {
	f.nextVoucherID++
	v := ledger.Voucher{
		ID: f.nextVoucherID, CompanyID: in.CompanyID, Type: in.Type,
		Date: in.Date, Narration: in.Narration, CreatedBy: in.ActorID, CreatedAt: time.Now(),
	}
	f.vouchers[v.ID] = v
	return v, nil
}

func (f *fakeLedgerTx) InsertEntries(_ context.Context, voucher ledger.Voucher, lines []ledger.EntryInput) ([]ledger.Entry, error) {
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

func (f *fakeLedgerTx) GetVoucherWithEntries(_ context.Context, companyID, voucherID int64) (ledger.Voucher, error) {
	v, ok := f.vouchers[voucherID]
	if !ok || v.CompanyID != companyID {
		return ledger.Voucher{}, ledger.ErrVoucherNotFound
	}
	v.Entries = nil
	for _, e := range f.entries {
		if e.VoucherID == voucherID {
			v.Entries = append(v.Entries, e)
		}
	}
	return v, nil
}

func (f *fakeLedgerTx) GetAccount(_ context.Context, companyID, accountID int64) (ledger.Account, error) {
	a, ok := f.accounts[accountID]
	if !ok || a.CompanyID != companyID {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return a, nil
}

func (f *fakeLedgerTx) GetAccountByCode(_ context.Context, companyID int64, code string) (ledger.Account, error) {
	for _, a := range f.accounts {
		if a.CompanyID == companyID && a.Code == code {
			return a, nil
		}
	}
	return ledger.Account{}, ledger.ErrAccountNotFound
}

func (f *fakeLedgerTx) GetAccountByCodeForUpdate(ctx context.Context, companyID int64, code string) (ledger.Account, error) {
	return f.GetAccountByCode(ctx, companyID, code)
}

func (f *fakeLedgerTx) InsertAccount(_ context.Context, in ledger.CreateAccountInput) (ledger.Account, error) {
	f.nextAccountID++
	a := ledger.Account{
		ID: f.nextAccountID, CompanyID: in.CompanyID, Code: in.Code, Name: in.Name,
		Type: in.Type, ParentID: in.ParentID, IsActive: true,
	}
	f.accounts[a.ID] = a
	return a, nil
}

func (f *fakeLedgerTx) CountChildren(_ context.Context, parentID int64) (int, error) {
	count := 0
	for _, a := range f.accounts {
		if a.ParentID != nil && *a.ParentID == parentID {
			count++
		}
	}
	return count, nil
}

func (f *fakeLedgerTx) AccountHasEntries(_ context.Context, accountID int64) (bool, error) {
	for _, e := range f.entries {
		if e.AccountID == accountID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedgerTx) SetAccountActive(_ context.Context, accountID int64, active bool) error {
	a := f.accounts[accountID]
	a.IsActive = active
	f.accounts[accountID] = a
	return nil
}

func (f *fakeLedgerTx) DeleteAccount(_ context.Context, accountID int64) error {
	delete(f.accounts, accountID)
	return nil
}

func (f *fakeLedgerTx) GetCustomerLink(_ context.Context, _, customerID int64) (*int64, error) {
	link, ok := f.customerLinks[customerID]
	if !ok {
		return nil, ledger.ErrCustomerNotFound
	}
	return link, nil
}

func (f *fakeLedgerTx) LinkCustomerAccount(_ context.Context, customerID, accountID int64) error {
	f.customerLinks[customerID] = &accountID
	return nil
}

func (f *fakeLedgerTx) HasVoucherOfTypeInRange(_ context.Context, companyID int64, vtype ledger.VoucherType, from, to time.Time) (bool, error) {
	for _, v := range f.vouchers {
		if v.CompanyID == companyID && v.Type == vtype && !v.Date.Before(from) && !v.Date.After(to) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedgerTx) CountEmptyVouchers(context.Context, int64, time.Time, time.Time) (int, error) {
	return 0, nil
}

func (f *fakeLedgerTx) LockCompany(context.Context, int64) error { return nil }

func (f *fakeLedgerTx) MarkYearClosed(_ context.Context, _ int64, from, to time.Time) error {
	if _, ok := f.closedYears[from]; ok {
		return ledger.ErrYearAlreadyClosed
	}
	f.closedYears[from] = to
	return nil
}

func (f *fakeLedgerTx) YearClosed(_ context.Context, _ int64, from, to time.Time) (bool, error) {
	for start, end := range f.closedYears {
		if !start.Before(from) && !end.After(to) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedgerTx) AccountTotalsInRange(context.Context, int64, *time.Time, *time.Time) ([]reports.AccountBalance, error) {
	return nil, nil
}

func (f *fakeLedgerTx) netFor(accountID int64) decimal.Decimal {
	net := decimal.Zero
	for _, e := range f.entries {
		if e.AccountID == accountID {
			net = net.Add(e.Signed())
		}
	}
	return net
}

// fakeStore implements RepositoryPort and TxRepository over the fake ledger.
type fakeStore struct {
	lg       *fakeLedgerTx
	pledges  map[int64]Pledge
	payments map[int64]Payment

	schemeRate     decimal.Decimal
	schemeDuration int
	customerNames  map[int64]string

	nextPledgeID  int64
	nextPaymentID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lg:             newFakeLedgerTx(),
		pledges:        map[int64]Pledge{},
		payments:       map[int64]Payment{},
		schemeRate:     decimal.NewFromInt(2),
		schemeDuration: 12,
		customerNames:  map[int64]string{},
	}
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, s)
}

func (s *fakeStore) Ledger() ledger.TxRepository { return s.lg }

func (s *fakeStore) InsertPledge(_ context.Context, p Pledge) (Pledge, error) {
	s.nextPledgeID++
	p.ID = s.nextPledgeID
	s.pledges[p.ID] = p
	return p, nil
}

func (s *fakeStore) GetPledgeForUpdate(_ context.Context, companyID, pledgeID int64) (Pledge, error) {
	p, ok := s.pledges[pledgeID]
	if !ok || p.CompanyID != companyID {
		return Pledge{}, ErrPledgeNotFound
	}
	return p, nil
}

func (s *fakeStore) UpdatePledgeStatus(_ context.Context, pledgeID int64, status Status) error {
	p, ok := s.pledges[pledgeID]
	if !ok {
		return ErrPledgeNotFound
	}
	p.Status = status
	s.pledges[pledgeID] = p
	return nil
}

func (s *fakeStore) InsertPayment(_ context.Context, p Payment) (Payment, error) {
	for _, existing := range s.payments {
		if existing.ReceiptNo == p.ReceiptNo {
			return Payment{}, ErrDuplicateReceipt
		}
	}
	s.nextPaymentID++
	p.ID = s.nextPaymentID
	s.payments[p.ID] = p
	return p, nil
}

func (s *fakeStore) GetPayment(_ context.Context, companyID, paymentID int64) (Payment, error) {
	p, ok := s.payments[paymentID]
	if !ok || p.CompanyID != companyID {
		return Payment{}, ErrPaymentNotFound
	}
	return p, nil
}

func (s *fakeStore) UpdatePaymentRow(_ context.Context, p Payment) error {
	if _, ok := s.payments[p.ID]; !ok {
		return ErrPaymentNotFound
	}
	s.payments[p.ID] = p
	return nil
}

func (s *fakeStore) DeletePaymentRow(_ context.Context, paymentID int64) error {
	if _, ok := s.payments[paymentID]; !ok {
		return ErrPaymentNotFound
	}
	delete(s.payments, paymentID)
	return nil
}

func (s *fakeStore) SumPayments(_ context.Context, pledgeID int64) (PaymentTotals, error) {
	var totals PaymentTotals
	for _, p := range s.payments {
		if p.PledgeID == pledgeID {
			totals.Amount = totals.Amount.Add(p.Amount)
			totals.Interest = totals.Interest.Add(p.Interest)
			totals.Principal = totals.Principal.Add(p.Principal)
		}
	}
	return totals, nil
}

func (s *fakeStore) GetSchemeTerms(_ context.Context, _, schemeID int64) (decimal.Decimal, int, error) {
	if schemeID != 1 {
		return decimal.Zero, 0, ErrSchemeNotFound
	}
	return s.schemeRate, s.schemeDuration, nil
}

func (s *fakeStore) GetCustomerName(_ context.Context, _, customerID int64) (string, error) {
	name, ok := s.customerNames[customerID]
	if !ok {
		return "", ledger.ErrCustomerNotFound
	}
	return name, nil
}

func (s *fakeStore) GetCompanyFiscalStart(context.Context, int64) (time.Month, int, error) {
	return time.April, 1, nil
}

func (s *fakeStore) seedChart(t *testing.T) map[string]ledger.Account {
	t.Helper()
	out := map[string]ledger.Account{}
	for _, seed := range []struct {
		code string
		name string
		typ  ledger.AccountType
	}{
		{ledger.CodeCash, "Cash", ledger.AccountTypeAsset},
		{ledger.CodePledgeLoans, "Pledge Loans", ledger.AccountTypeAsset},
		{ledger.CodeCustomerLiabilities, "Customer Pledge Liabilities", ledger.AccountTypeLiability},
		{ledger.CodeInterestIncome, "Interest Income", ledger.AccountTypeIncome},
		{ledger.CodeDocumentCharges, "Document Charges", ledger.AccountTypeIncome},
	} {
		a, err := s.lg.InsertAccount(context.Background(), ledger.CreateAccountInput{
			CompanyID: 1, Code: seed.code, Name: seed.name, Type: seed.typ,
		})
		require.NoError(t, err)
		out[seed.code] = a
	}
	return out
}

func newTestService(store *fakeStore) *Service {
	return newTestServiceWithIdem(store, nil)
}

func newTestServiceWithIdem(store *fakeStore, idem IdempotencyPort) *Service {
	svc := NewService(store, nil, nil, nil, idem)
	svc.WithNow(func() time.Time { return time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC) })
	return svc
}

// fakeIdemStore is an in-memory receipt reservation store.
type fakeIdemStore struct {
	keys map[string]bool
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{keys: map[string]bool{}}
}

func (f *fakeIdemStore) CheckAndInsert(_ context.Context, key, _ string) error {
	if f.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = true
	return nil
}

func (f *fakeIdemStore) Delete(_ context.Context, key string) error {
	delete(f.keys, key)
	return nil
}

func disburseInput() DisburseInput {
	return DisburseInput{
		CompanyID:       1,
		CustomerID:      10,
		SchemeID:        1,
		PledgeNo:        "PLG-001",
		Principal:       d("90000"),
		DocumentCharges: d("200"),
		PledgeDate:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		ActorID:         4,
	}
}

func TestDisbursePostsBalancedVoucher(t *testing.T) {
	store := newFakeStore()
	chart := store.seedChart(t)
	store.customerNames[10] = "Meena"
	svc := newTestService(store)

	pledge, err := svc.Disburse(context.Background(), disburseInput())
	require.NoError(t, err)

	require.True(t, pledge.FirstMonthInterest.Equal(d("1800")))
	require.True(t, pledge.FinalAmount.Equal(d("92000")), "principal + first month interest + charges")
	require.Equal(t, StatusActive, pledge.Status)
	require.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), pledge.DueDate)

	require.Len(t, store.lg.entries, 4)
	require.True(t, store.lg.netFor(chart[ledger.CodePledgeLoans].ID).Equal(d("-90000")), "loans debited")
	require.True(t, store.lg.netFor(chart[ledger.CodeCash].ID).Equal(d("88000")), "cash paid out net of withheld interest and charges")
	require.True(t, store.lg.netFor(chart[ledger.CodeInterestIncome].ID).Equal(d("1800")))
	require.True(t, store.lg.netFor(chart[ledger.CodeDocumentCharges].ID).Equal(d("200")))

	// The voucher balances: total signed effect is zero.
	total := decimal.Zero
	for _, e := range store.lg.entries {
		total = total.Add(e.Signed())
	}
	require.True(t, total.IsZero())
}

func TestDisburseRejectsDeductionsAtPrincipal(t *testing.T) {
	store := newFakeStore()
	store.seedChart(t)
	store.customerNames[10] = "Meena"
	store.schemeRate = decimal.NewFromInt(100)
	svc := newTestService(store)

	_, err := svc.Disburse(context.Background(), disburseInput())
	require.ErrorIs(t, err, ErrDisbursalExceedsPrincipal)
}

func TestRecordPaymentAllocatesSubAccountAndRedeems(t *testing.T) {
	store := newFakeStore()
	store.seedChart(t)
	store.customerNames[10] = "Meena"
	store.customerLinksInit(10)
	svc := newTestService(store)

	pledge, err := svc.Disburse(context.Background(), disburseInput())
	require.NoError(t, err)

	// Settling inside the first month: principal only.
	payment, err := svc.RecordPayment(context.Background(), PaymentInput{
		CompanyID: 1,
		PledgeID:  pledge.ID,
		Date:      time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Amount:    d("90000"),
		Principal: d("90000"),
		ReceiptNo: "RCP-001",
		ActorID:   4,
	})
	require.NoError(t, err)
	require.NotZero(t, payment.VoucherID)
	require.True(t, payment.BalanceAmount.IsZero(), "nothing left after full settlement")
	require.Equal(t, StatusRedeemed, store.pledges[pledge.ID].Status)

	// The customer's sub-account was allocated under the fixed parent.
	sub, err := store.lg.GetAccountByCode(context.Background(), 1, ledger.CodeCustomerLiabilities+".1")
	require.NoError(t, err)
	require.True(t, store.lg.netFor(sub.ID).Equal(d("90000")), "payment credited to customer sub-account")
}

func TestRecordPaymentDuplicateReceipt(t *testing.T) {
	store := newFakeStore()
	store.seedChart(t)
	store.customerNames[10] = "Meena"
	store.customerLinksInit(10)
	svc := newTestService(store)

	pledge, err := svc.Disburse(context.Background(), disburseInput())
	require.NoError(t, err)

	input := PaymentInput{
		CompanyID: 1, PledgeID: pledge.ID,
		Date:      time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Amount:    d("1000"), Principal: d("1000"),
		ReceiptNo: "RCP-001", ActorID: 4,
	}
	_, err = svc.RecordPayment(context.Background(), input)
	require.NoError(t, err)
	_, err = svc.RecordPayment(context.Background(), input)
	require.ErrorIs(t, err, ErrDuplicateReceipt)
}

func TestRecordPaymentLockedInClosedYear(t *testing.T) {
	store := newFakeStore()
	store.seedChart(t)
	store.customerNames[10] = "Meena"
	store.customerLinksInit(10)
	svc := newTestService(store)

	pledge, err := svc.Disburse(context.Background(), disburseInput())
	require.NoError(t, err)

	// A closed-year marker for fiscal 2025-26 locks the whole year.
	require.NoError(t, store.lg.MarkYearClosed(context.Background(), 1,
		time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)))

	_, err = svc.RecordPayment(context.Background(), PaymentInput{
		CompanyID: 1, PledgeID: pledge.ID,
		Date:      time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Amount:    d("1000"), Principal: d("1000"),
		ReceiptNo: "RCP-001", ActorID: 4,
	})
	require.ErrorIs(t, err, ErrPaymentLocked)
}

func TestUpdatePaymentRestoresCustomerBalance(t *testing.T) {
	run := func(t *testing.T, record func(svc *Service, pledgeID int64)) decimal.Decimal {
		store := newFakeStore()
		store.seedChart(t)
		store.customerNames[10] = "Meena"
		store.customerLinksInit(10)
		svc := newTestService(store)

		pledge, err := svc.Disburse(context.Background(), disburseInput())
		require.NoError(t, err)
		record(svc, pledge.ID)

		sub, err := store.lg.GetAccountByCode(context.Background(), 1, ledger.CodeCustomerLiabilities+".1")
		require.NoError(t, err)
		return store.lg.netFor(sub.ID)
	}

	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	// Entered wrong (10000), then corrected to 15000.
	corrected := run(t, func(svc *Service, pledgeID int64) {
		payment, err := svc.RecordPayment(context.Background(), PaymentInput{
			CompanyID: 1, PledgeID: pledgeID, Date: date,
			Amount: d("10000"), Principal: d("10000"), ReceiptNo: "RCP-001", ActorID: 4,
		})
		require.NoError(t, err)
		_, err = svc.UpdatePayment(context.Background(), payment.ID, PaymentInput{
			CompanyID: 1, PledgeID: pledgeID, Date: date,
			Amount: d("15000"), Principal: d("15000"), ReceiptNo: "RCP-001", ActorID: 4,
		})
		require.NoError(t, err)
	})
	// Entered correctly the first time.
	direct := run(t, func(svc *Service, pledgeID int64) {
		_, err := svc.RecordPayment(context.Background(), PaymentInput{
			CompanyID: 1, PledgeID: pledgeID, Date: date,
			Amount: d("15000"), Principal: d("15000"), ReceiptNo: "RCP-001", ActorID: 4,
		})
		require.NoError(t, err)
	})

	require.True(t, corrected.Equal(direct),
		"customer balance after correction (%s) must equal direct entry (%s)", corrected, direct)
}

func TestDeletePaymentReversesAndRecomputes(t *testing.T) {
	store := newFakeStore()
	store.seedChart(t)
	store.customerNames[10] = "Meena"
	store.customerLinksInit(10)
	svc := newTestService(store)

	pledge, err := svc.Disburse(context.Background(), disburseInput())
	require.NoError(t, err)
	payment, err := svc.RecordPayment(context.Background(), PaymentInput{
		CompanyID: 1, PledgeID: pledge.ID,
		Date:      time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Amount:    d("10000"), Principal: d("10000"),
		ReceiptNo: "RCP-001", ActorID: 4,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPartialPaid, store.pledges[pledge.ID].Status)
	entriesBefore := len(store.lg.entries)

	require.NoError(t, svc.DeletePayment(context.Background(), 1, payment.ID, 4))
	require.Equal(t, StatusActive, store.pledges[pledge.ID].Status)
	require.Empty(t, store.payments)

	// Append-only: the reversal added entries, nothing was removed.
	require.Greater(t, len(store.lg.entries), entriesBefore)
	sub, err := store.lg.GetAccountByCode(context.Background(), 1, ledger.CodeCustomerLiabilities+".1")
	require.NoError(t, err)
	require.True(t, store.lg.netFor(sub.ID).IsZero())
}

func TestUpdatePaymentRejectsForeignPledge(t *testing.T) {
	store := newFakeStore()
	store.seedChart(t)
	store.customerNames[10] = "Meena"
	store.customerLinksInit(10)
	svc := newTestService(store)

	first, err := svc.Disburse(context.Background(), disburseInput())
	require.NoError(t, err)
	second := disburseInput()
	second.PledgeNo = "PLG-002"
	other, err := svc.Disburse(context.Background(), second)
	require.NoError(t, err)

	payment, err := svc.RecordPayment(context.Background(), PaymentInput{
		CompanyID: 1, PledgeID: first.ID,
		Date:      time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Amount:    d("1000"), Principal: d("1000"),
		ReceiptNo: "RCP-001", ActorID: 4,
	})
	require.NoError(t, err)

	// Addressing the payment through a pledge it does not belong to must
	// fail instead of silently correcting to the real pledge.
	_, err = svc.UpdatePayment(context.Background(), payment.ID, PaymentInput{
		CompanyID: 1, PledgeID: other.ID,
		Date:      time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Amount:    d("2000"), Principal: d("2000"),
		ReceiptNo: "RCP-001", ActorID: 4,
	})
	require.ErrorIs(t, err, ErrPaymentNotFound)
	require.True(t, store.payments[payment.ID].Amount.Equal(d("1000")), "payment untouched")
}

func TestRecordPaymentReservesReceipt(t *testing.T) {
	store := newFakeStore()
	store.seedChart(t)
	store.customerNames[10] = "Meena"
	store.customerLinksInit(10)
	idem := newFakeIdemStore()
	svc := newTestServiceWithIdem(store, idem)

	pledge, err := svc.Disburse(context.Background(), disburseInput())
	require.NoError(t, err)

	input := PaymentInput{
		CompanyID: 1, PledgeID: pledge.ID,
		Date:      time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Amount:    d("1000"), Principal: d("1000"),
		ReceiptNo: "RCP-001", ActorID: 4,
	}
	_, err = svc.RecordPayment(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, idem.keys, 1)

	// The retry is rejected by the reservation, before any posting work.
	_, err = svc.RecordPayment(context.Background(), input)
	require.ErrorIs(t, err, ErrDuplicateReceipt)
	require.Len(t, store.payments, 1)
}

func TestRecordPaymentReleasesReceiptOnFailure(t *testing.T) {
	store := newFakeStore()
	store.seedChart(t)
	store.customerNames[10] = "Meena"
	store.customerLinksInit(10)
	idem := newFakeIdemStore()
	svc := newTestServiceWithIdem(store, idem)

	pledge, err := svc.Disburse(context.Background(), disburseInput())
	require.NoError(t, err)
	require.NoError(t, store.lg.MarkYearClosed(context.Background(), 1,
		time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)))

	input := PaymentInput{
		CompanyID: 1, PledgeID: pledge.ID,
		Date:      time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Amount:    d("1000"), Principal: d("1000"),
		ReceiptNo: "RCP-001", ActorID: 4,
	}
	_, err = svc.RecordPayment(context.Background(), input)
	require.ErrorIs(t, err, ErrPaymentLocked)
	require.Empty(t, idem.keys, "failed posting must release the reservation")
}

func TestDeletePaymentReleasesReceipt(t *testing.T) {
	store := newFakeStore()
	store.seedChart(t)
	store.customerNames[10] = "Meena"
	store.customerLinksInit(10)
	idem := newFakeIdemStore()
	svc := newTestServiceWithIdem(store, idem)

	pledge, err := svc.Disburse(context.Background(), disburseInput())
	require.NoError(t, err)
	input := PaymentInput{
		CompanyID: 1, PledgeID: pledge.ID,
		Date:      time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Amount:    d("1000"), Principal: d("1000"),
		ReceiptNo: "RCP-001", ActorID: 4,
	}
	payment, err := svc.RecordPayment(context.Background(), input)
	require.NoError(t, err)

	require.NoError(t, svc.DeletePayment(context.Background(), 1, payment.ID, 4))
	require.Empty(t, idem.keys)

	// The receipt number is free for the corrected entry.
	_, err = svc.RecordPayment(context.Background(), input)
	require.NoError(t, err)
}

// customerLinksInit registers a customer with no sub-account yet.
func (s *fakeStore) customerLinksInit(customerID int64) {
	s.lg.customerLinks[customerID] = nil
}
