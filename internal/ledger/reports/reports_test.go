package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	_ "github.com/pawnbook/pawnbook/testing"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestBuildTrialBalance(t *testing.T) {
	accounts := []AccountBalance{
		{Code: "1000", Name: "Cash", Type: "ASSET", Debit: dec("88200.00"), Credit: dec("0")},
		{Code: "1100", Name: "Pledge Loans", Type: "ASSET", Debit: dec("90000.00"), Credit: dec("0")},
		{Code: "4000", Name: "Interest Income", Type: "INCOME", Debit: dec("0"), Credit: dec("1800.00")},
		{Code: "9999", Name: "Suspense", Type: "EXPENSE", Debit: dec("0"), Credit: dec("0")},
	}

	tb := BuildTrialBalance(accounts)
	if len(tb.Rows) != 4 {
		t.Fatalf("expected 4 rows including the zero-balance account, got %d", len(tb.Rows))
	}
	if !tb.TotalDebit.Equal(dec("178200.00")) {
		t.Fatalf("unexpected total debit: %s", tb.TotalDebit)
	}
	if tb.TotalDebitDisplay != "178,200.00" || tb.TotalCreditDisplay != "1,800.00" {
		t.Fatalf("unexpected total displays: %q / %q", tb.TotalDebitDisplay, tb.TotalCreditDisplay)
	}
	if tb.Rows[0].DebitDisplay != "88,200.00" {
		t.Fatalf("unexpected row display: %q", tb.Rows[0].DebitDisplay)
	}
	if !tb.TotalCredit.Equal(dec("1800.00")) {
		t.Fatalf("unexpected total credit: %s", tb.TotalCredit)
	}
	if tb.Balanced {
		t.Fatal("partial ledger must not report balanced")
	}
}

func TestBuildTrialBalanceBalancedAfterFullPosting(t *testing.T) {
	// Disbursal of 100000 at 2% monthly with 200 document charges:
	// loans 100000 Dr, cash 97800 Cr net, interest 2000 Cr, charges 200 Cr.
	accounts := []AccountBalance{
		{Code: "1000", Name: "Cash", Type: "ASSET", Debit: dec("0"), Credit: dec("97800.00")},
		{Code: "1100", Name: "Pledge Loans", Type: "ASSET", Debit: dec("100000.00"), Credit: dec("0")},
		{Code: "4000", Name: "Interest Income", Type: "INCOME", Debit: dec("0"), Credit: dec("2000.00")},
		{Code: "4010", Name: "Document Charges", Type: "INCOME", Debit: dec("0"), Credit: dec("200.00")},
	}

	tb := BuildTrialBalance(accounts)
	if !tb.Balanced {
		t.Fatalf("expected balanced trial balance, Dr=%s Cr=%s", tb.TotalDebit, tb.TotalCredit)
	}
	// Cash is overdrawn here, so its balance flips to the credit column.
	for _, row := range tb.Rows {
		if row.Code != "1000" {
			continue
		}
		if !row.Debit.IsZero() || !row.Credit.Equal(dec("97800.00")) {
			t.Fatalf("negative asset must flip to credit column, got Dr=%s Cr=%s", row.Debit, row.Credit)
		}
	}
}

func TestBuildProfitAndLoss(t *testing.T) {
	accounts := []AccountBalance{
		{Code: "1000", Name: "Cash", Type: "ASSET", Debit: dec("500"), Credit: dec("0")},
		{Code: "4000", Name: "Interest Income", Type: "INCOME", Debit: dec("0"), Credit: dec("3600.00")},
		{Code: "4020", Name: "Penalty Income", Type: "INCOME", Debit: dec("0"), Credit: dec("150.00")},
		{Code: "5000", Name: "Settlement Discounts", Type: "EXPENSE", Debit: dec("250.00"), Credit: dec("0")},
	}

	pl := BuildProfitAndLoss(accounts)
	if len(pl.Income.Accounts) != 2 {
		t.Fatalf("expected 2 income accounts, got %d", len(pl.Income.Accounts))
	}
	if !pl.Income.Total.Equal(dec("3750.00")) {
		t.Fatalf("unexpected income total: %s", pl.Income.Total)
	}
	if !pl.Expense.Total.Equal(dec("250.00")) {
		t.Fatalf("unexpected expense total: %s", pl.Expense.Total)
	}
	if !pl.NetProfit.Equal(dec("3500.00")) {
		t.Fatalf("unexpected net profit: %s", pl.NetProfit)
	}
	if pl.NetProfitDisplay != "3,500.00" || pl.Income.TotalDisplay != "3,750.00" {
		t.Fatalf("unexpected displays: %q / %q", pl.NetProfitDisplay, pl.Income.TotalDisplay)
	}
	if pl.Income.Accounts[0].AmountDisplay != "3,600.00" {
		t.Fatalf("unexpected account display: %q", pl.Income.Accounts[0].AmountDisplay)
	}
}

func TestBuildBalanceSheet(t *testing.T) {
	accounts := []AccountBalance{
		{Code: "1000", Name: "Cash", Type: "ASSET", Debit: dec("91800.00"), Credit: dec("88200.00")},
		{Code: "1100", Name: "Pledge Loans", Type: "ASSET", Debit: dec("90000.00"), Credit: dec("90000.00")},
		{Code: "3000", Name: "Retained Earnings", Type: "EQUITY", Debit: dec("0"), Credit: dec("3600.00")},
		{Code: "4000", Name: "Interest Income", Type: "INCOME", Debit: dec("3600.00"), Credit: dec("3600.00")},
	}

	bs := BuildBalanceSheet(accounts)
	if !bs.Assets.Total.Equal(dec("3600.00")) {
		t.Fatalf("unexpected assets total: %s", bs.Assets.Total)
	}
	if !bs.Equity.Total.Equal(dec("3600.00")) {
		t.Fatalf("unexpected equity total: %s", bs.Equity.Total)
	}
	if len(bs.Assets.Accounts)+len(bs.Liabilities.Accounts)+len(bs.Equity.Accounts) != 3 {
		t.Fatal("income accounts must not appear on the balance sheet")
	}
	if !bs.Balanced {
		t.Fatal("expected balanced balance sheet")
	}
	if bs.Assets.TotalDisplay != "3,600.00" || bs.Equity.TotalDisplay != "3,600.00" {
		t.Fatalf("unexpected section displays: %q / %q", bs.Assets.TotalDisplay, bs.Equity.TotalDisplay)
	}
}

func TestBuildDayBookRunningBalance(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	lines := []LineEntry{
		{EntryID: 1, VoucherID: 1, VoucherType: "RECEIPT", Direction: "DR", Amount: dec("5000.00"), Date: day},
		{EntryID: 2, VoucherID: 2, VoucherType: "LOAN_DISBURSAL", Direction: "CR", Amount: dec("88200.00"), Date: day},
		{EntryID: 3, VoucherID: 3, VoucherType: "PAYMENT", Direction: "DR", Amount: dec("1800.00"), Date: day},
	}

	book := BuildDayBook(dec("100000.00"), lines)
	if !book.OpeningBalance.Equal(dec("100000.00")) {
		t.Fatalf("unexpected opening: %s", book.OpeningBalance)
	}
	if !book.ClosingBalance.Equal(dec("18600.00")) {
		t.Fatalf("unexpected closing: %s", book.ClosingBalance)
	}
	if !book.TotalDebit.Equal(dec("6800.00")) || !book.TotalCredit.Equal(dec("88200.00")) {
		t.Fatalf("unexpected totals Dr=%s Cr=%s", book.TotalDebit, book.TotalCredit)
	}
	want := []string{"105000.00", "16800.00", "18600.00"}
	wantDisplay := []string{"105,000.00", "16,800.00", "18,600.00"}
	for i, line := range book.Lines {
		if !line.RunningBalance.Equal(dec(want[i])) {
			t.Fatalf("line %d running balance %s, want %s", i, line.RunningBalance, want[i])
		}
		if line.RunningDisplay != wantDisplay[i] {
			t.Fatalf("line %d running display %q, want %q", i, line.RunningDisplay, wantDisplay[i])
		}
	}
	if book.OpeningDisplay != "100,000.00" || book.ClosingDisplay != "18,600.00" {
		t.Fatalf("unexpected book displays: %q / %q", book.OpeningDisplay, book.ClosingDisplay)
	}
}

func TestBuildStatementLiabilitySide(t *testing.T) {
	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	lines := []LineEntry{
		{EntryID: 1, VoucherID: 10, VoucherType: "RECEIPT", Direction: "CR", Amount: dec("2000.00"), Date: day},
		{EntryID: 2, VoucherID: 11, VoucherType: "PAYMENT", Direction: "DR", Amount: dec("500.00"), Date: day},
	}

	st := BuildStatement(dec("100.00"), lines)
	if !st.ClosingBalance.Equal(dec("1600.00")) {
		t.Fatalf("unexpected closing: %s", st.ClosingBalance)
	}
	if !st.Lines[0].RunningBalance.Equal(dec("2100.00")) {
		t.Fatalf("unexpected first running balance: %s", st.Lines[0].RunningBalance)
	}
	if st.Lines[0].RunningDisplay != "2,100.00" || st.ClosingDisplay != "1,600.00" {
		t.Fatalf("unexpected displays: %q / %q", st.Lines[0].RunningDisplay, st.ClosingDisplay)
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(dec("91800")); got != "91,800.00" {
		t.Fatalf("unexpected format: %q", got)
	}
	if got := FormatAmount(dec("0.005")); got != "0.01" {
		t.Fatalf("unexpected rounding: %q", got)
	}
}
