package reports

import "github.com/shopspring/decimal"

// DayBookLine is one cash movement with its cumulative running balance.
type DayBookLine struct {
	Entry          LineEntry
	AmountDisplay  string
	RunningBalance decimal.Decimal
	RunningDisplay string
}

// DayBook is the daily cash book: the cash account's balance brought
// forward, the day's movements in insertion order, and the closing balance.
type DayBook struct {
	OpeningBalance decimal.Decimal
	OpeningDisplay string
	ClosingBalance decimal.Decimal
	ClosingDisplay string
	Lines          []DayBookLine
	TotalDebit     decimal.Decimal
	TotalCredit    decimal.Decimal

	TotalDebitDisplay  string
	TotalCreditDisplay string
}

// BuildDayBook folds the day's cash entries over the opening balance.
// Opening is the cash balance strictly before the day; entries must arrive
// in (voucher id, entry id) order, which is the insertion order the posting
// engine guarantees.
func BuildDayBook(opening decimal.Decimal, lines []LineEntry) DayBook {
	book := DayBook{OpeningBalance: opening, ClosingBalance: opening}
	for _, line := range lines {
		book.ClosingBalance = book.ClosingBalance.Add(line.signed())
		if line.Direction == "DR" {
			book.TotalDebit = book.TotalDebit.Add(line.Amount)
		} else {
			book.TotalCredit = book.TotalCredit.Add(line.Amount)
		}
		book.Lines = append(book.Lines, DayBookLine{
			Entry:          line,
			AmountDisplay:  FormatAmount(line.Amount),
			RunningBalance: book.ClosingBalance,
			RunningDisplay: FormatAmount(book.ClosingBalance),
		})
	}
	book.OpeningDisplay = FormatAmount(book.OpeningBalance)
	book.ClosingDisplay = FormatAmount(book.ClosingBalance)
	book.TotalDebitDisplay = FormatAmount(book.TotalDebit)
	book.TotalCreditDisplay = FormatAmount(book.TotalCredit)
	return book
}
