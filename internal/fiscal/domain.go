// Package fiscal implements the financial year close/open cycle: zeroing
// income and expense into retained earnings and carrying balance-sheet
// balances forward. Years are derived values, never stored rows.
package fiscal

import (
	"time"

	"github.com/pawnbook/pawnbook/internal/shared"
)

// Year is one financial year of a company, derived from the company's
// fiscal start month and day. End is inclusive: the day before the next
// year starts.
type Year struct {
	Start time.Time
	End   time.Time
}

// YearStarting builds the year beginning on the given fiscal start date.
func YearStarting(year int, month time.Month, day int) Year {
	start := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Year{Start: start, End: start.AddDate(1, 0, -1)}
}

// YearContaining returns the financial year that covers the given date for
// a company whose fiscal year starts on (month, day).
func YearContaining(date time.Time, month time.Month, day int) Year {
	candidate := YearStarting(date.Year(), month, day)
	if date.Before(candidate.Start) {
		return YearStarting(date.Year()-1, month, day)
	}
	return candidate
}

// Prior returns the immediately preceding financial year.
func (y Year) Prior() Year {
	return Year{Start: y.Start.AddDate(-1, 0, 0), End: y.Start.AddDate(0, 0, -1)}
}

// Contains reports whether the date falls inside the year.
func (y Year) Contains(date time.Time) bool {
	return !date.Before(y.Start) && !date.After(y.End)
}

// Ended reports whether the year's end date has passed as of now.
func (y Year) Ended(now time.Time) bool {
	return y.End.Before(now)
}

// Label renders the year as "2025-26" style for narrations and logs.
func (y Year) Label() string {
	return y.Start.Format("2006") + "-" + y.End.Format("06")
}

// ConfirmToken is the literal a caller must supply to close or open a
// year. It is a deliberate anti-accident control, not a formality.
const ConfirmToken = "CONFIRM"

var (
	// ErrConfirmationRequired indicates the caller did not supply the literal token.
	ErrConfirmationRequired = shared.Validation("fiscal: confirmation token required, send \"CONFIRM\"")
	// ErrAlreadyClosed indicates a closing voucher exists for the year.
	ErrAlreadyClosed = shared.StateConflict("fiscal: financial year already closed")
	// ErrYearNotEnded indicates the fiscal end date is still in the future.
	ErrYearNotEnded = shared.StateConflict("fiscal: financial year has not ended yet")
	// ErrPendingUnpostedVouchers indicates vouchers without entries exist in the year.
	ErrPendingUnpostedVouchers = shared.StateConflict("fiscal: year has vouchers without entries")
	// ErrPriorYearNotClosed indicates the preceding year has no closing voucher.
	ErrPriorYearNotClosed = shared.StateConflict("fiscal: prior financial year is not closed")
	// ErrAlreadyOpened indicates an opening voucher exists for the year.
	ErrAlreadyOpened = shared.StateConflict("fiscal: financial year already opened")
)
