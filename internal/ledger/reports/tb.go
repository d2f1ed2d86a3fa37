package reports

import (
	"sort"

	"github.com/shopspring/decimal"
)

// TrialBalanceRow is one account's normalized balance placed in its debit
// or credit column. The Display fields carry the same amounts formatted
// for presentation; the raw decimals stay authoritative.
type TrialBalanceRow struct {
	Code          string
	Name          string
	Type          string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	DebitDisplay  string
	CreditDisplay string
}

// TrialBalance lists every active account's normalized balance. Balanced is
// the global double-entry invariant: it must hold after every posting, not
// only after year close.
type TrialBalance struct {
	Rows               []TrialBalanceRow
	TotalDebit         decimal.Decimal
	TotalCredit        decimal.Decimal
	TotalDebitDisplay  string
	TotalCreditDisplay string
	Balanced           bool
}

// BuildTrialBalance converts account aggregates into trial balance rows.
// Debit-normal accounts with positive net land in the debit column and vice
// versa; a negative net flips the column rather than printing a negative.
func BuildTrialBalance(accounts []AccountBalance) TrialBalance {
	tb := TrialBalance{}
	for _, acc := range accounts {
		net := acc.Net()
		row := TrialBalanceRow{Code: acc.Code, Name: acc.Name, Type: acc.Type}
		debitSide := debitNormal(acc.Type)
		if net.IsNegative() {
			debitSide = !debitSide
			net = net.Abs()
		}
		if debitSide {
			row.Debit = net
		} else {
			row.Credit = net
		}
		row.DebitDisplay = FormatAmount(row.Debit)
		row.CreditDisplay = FormatAmount(row.Credit)
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebit = tb.TotalDebit.Add(row.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(row.Credit)
	}
	sort.Slice(tb.Rows, func(i, j int) bool { return tb.Rows[i].Code < tb.Rows[j].Code })
	tb.TotalDebitDisplay = FormatAmount(tb.TotalDebit)
	tb.TotalCreditDisplay = FormatAmount(tb.TotalCredit)
	tb.Balanced = tb.TotalDebit.Sub(tb.TotalCredit).Abs().LessThan(tolerance)
	return tb
}
