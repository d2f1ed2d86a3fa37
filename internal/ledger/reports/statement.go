package reports

import "github.com/shopspring/decimal"

// StatementLine is one movement on a customer's sub-account with the
// running balance after it. The customer sub-account is a liability, so
// credits increase the running balance.
type StatementLine struct {
	Entry          LineEntry
	AmountDisplay  string
	RunningBalance decimal.Decimal
	RunningDisplay string
}

// Statement is the customer sub-ledger over a date range.
type Statement struct {
	OpeningBalance decimal.Decimal
	OpeningDisplay string
	ClosingBalance decimal.Decimal
	ClosingDisplay string
	Lines          []StatementLine
}

// BuildStatement folds the window's entries over the balance brought
// forward (credit-minus-debit, the liability normal side).
func BuildStatement(opening decimal.Decimal, lines []LineEntry) Statement {
	st := Statement{OpeningBalance: opening, ClosingBalance: opening}
	for _, line := range lines {
		delta := line.Amount
		if line.Direction == "DR" {
			delta = delta.Neg()
		}
		st.ClosingBalance = st.ClosingBalance.Add(delta)
		st.Lines = append(st.Lines, StatementLine{
			Entry:          line,
			AmountDisplay:  FormatAmount(line.Amount),
			RunningBalance: st.ClosingBalance,
			RunningDisplay: FormatAmount(st.ClosingBalance),
		})
	}
	st.OpeningDisplay = FormatAmount(st.OpeningBalance)
	st.ClosingDisplay = FormatAmount(st.ClosingBalance)
	return st
}
