// Package reports builds the read-side views of the ledger: trial balance,
// profit and loss, balance sheet, day book, and customer statements. Every
// builder is a pure function over entry aggregates; nothing here mutates
// state or trusts a stored balance.
package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// tolerance mirrors the ledger-wide 0.01 comparison threshold.
var tolerance = decimal.New(1, -2)

// AccountBalance carries one account's aggregated debit and credit sums
// over a query window, as fetched from the entry log.
type AccountBalance struct {
	AccountID int64
	Code      string
	Name      string
	Type      string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Net returns the balance on the account's normal side: debit-minus-credit
// for assets and expenses, credit-minus-debit for the rest.
func (a AccountBalance) Net() decimal.Decimal {
	if debitNormal(a.Type) {
		return a.Debit.Sub(a.Credit)
	}
	return a.Credit.Sub(a.Debit)
}

func debitNormal(accountType string) bool {
	return accountType == "ASSET" || accountType == "EXPENSE"
}

// LineEntry is one ledger line as it appears in the day book or a customer
// statement, in (date, voucher id, entry id) order.
type LineEntry struct {
	EntryID     int64
	VoucherID   int64
	VoucherType string
	Direction   string
	Amount      decimal.Decimal
	Narration   string
	Date        time.Time
}

// signed returns the line's effect with debits positive, the convention for
// cash-side running balances.
func (l LineEntry) signed() decimal.Decimal {
	if l.Direction == "DR" {
		return l.Amount
	}
	return l.Amount.Neg()
}
