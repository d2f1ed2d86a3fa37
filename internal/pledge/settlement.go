package pledge

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pawnbook/pawnbook/internal/ledger"
)

var hundred = decimal.NewFromInt(100)

// MonthlyInterest returns principal x rate% rounded to the currency scale.
func MonthlyInterest(principal, monthlyRatePct decimal.Decimal) decimal.Decimal {
	return principal.Mul(monthlyRatePct).Div(hundred).Round(2)
}

// CompletedExtraMonths counts the fully completed calendar months beyond
// the mandatory first month, counted from the pledge date. A quote inside
// the first month returns 0; a quote exactly one calendar month after the
// pledge date returns 1. Fractional periods never count.
func CompletedExtraMonths(pledgeDate, asOf time.Time) int {
	if asOf.Before(pledgeDate) {
		return 0
	}
	months := 0
	for !asOf.Before(pledgeDate.AddDate(0, months+1, 0)) {
		months++
	}
	return months
}

// Period is one interest line in a settlement breakdown.
type Period struct {
	From      time.Time
	To        time.Time
	Days      int
	RatePct   decimal.Decimal
	Amount    decimal.Decimal
	Mandatory bool
}

// Quote is the settlement position of a pledge as of a date. Breakdown
// always reconciles: the sum of its line amounts equals TotalInterest.
type Quote struct {
	AsOf               time.Time
	TotalInterest      decimal.Decimal
	PaidInterest       decimal.Decimal
	PaidPrincipal      decimal.Decimal
	RemainingInterest  decimal.Decimal
	RemainingPrincipal decimal.Decimal
	FinalAmount        decimal.Decimal
	Breakdown          []Period
}

// BuildQuote computes the settlement quote. The first month's interest is
// mandatory and was collected at disbursal, so it is carried as both the
// first breakdown line and as already-paid interest. Each further fully
// completed calendar month adds one line of principal x monthly rate.
func BuildQuote(p Pledge, paid PaymentTotals, asOf time.Time) Quote {
	q := Quote{AsOf: asOf}

	first := Period{
		From:      p.PledgeDate,
		To:        p.PledgeDate.AddDate(0, 1, 0),
		RatePct:   p.MonthlyRatePct,
		Amount:    p.FirstMonthInterest,
		Mandatory: true,
	}
	first.Days = daysBetween(first.From, first.To)
	q.Breakdown = append(q.Breakdown, first)
	q.TotalInterest = p.FirstMonthInterest

	monthly := MonthlyInterest(p.Principal, p.MonthlyRatePct)
	for n := 1; n <= CompletedExtraMonths(p.PledgeDate, asOf); n++ {
		period := Period{
			From:    p.PledgeDate.AddDate(0, n, 0),
			To:      p.PledgeDate.AddDate(0, n+1, 0),
			RatePct: p.MonthlyRatePct,
			Amount:  monthly,
		}
		period.Days = daysBetween(period.From, period.To)
		q.Breakdown = append(q.Breakdown, period)
		q.TotalInterest = q.TotalInterest.Add(monthly)
	}

	q.PaidInterest = p.FirstMonthInterest.Add(paid.Interest)
	q.PaidPrincipal = paid.Principal
	q.RemainingInterest = clampZero(q.TotalInterest.Sub(q.PaidInterest))
	q.RemainingPrincipal = clampZero(p.Principal.Sub(q.PaidPrincipal))
	q.FinalAmount = q.RemainingInterest.Add(q.RemainingPrincipal)
	return q
}

// StatusFor recomputes the lifecycle state from the quote and the recorded
// payment totals. The disbursal-withheld first-month interest never moves
// a pledge out of ACTIVE on its own.
func StatusFor(p Pledge, paid PaymentTotals, asOf time.Time) Status {
	q := BuildQuote(p, paid, asOf)
	totalDue := p.Principal.Add(q.TotalInterest)
	settled := p.FirstMonthInterest.Add(paid.Amount)
	if totalDue.Sub(settled).LessThanOrEqual(ledger.Tolerance) {
		return StatusRedeemed
	}
	if paid.Amount.IsPositive() {
		return StatusPartialPaid
	}
	return StatusActive
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func clampZero(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
