// Package pledge implements the pawn-lending side of the ledger: pledge
// disbursal, payment recording with the interest/principal/penalty/discount
// split, the settlement arithmetic, and the pledge status machine.
package pledge

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pawnbook/pawnbook/internal/ledger"
	"github.com/pawnbook/pawnbook/internal/shared"
)

// Status enumerates the pledge lifecycle. Redeemed is terminal.
type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusPartialPaid Status = "PARTIAL_PAID"
	StatusRedeemed    Status = "REDEEMED"
)

// Pledge is one pawn loan. Scheme terms are snapshotted at disbursal:
// later scheme edits never change an existing pledge's arithmetic.
// FinalAmount is derived in the disbursal transaction and must always equal
// Principal + FirstMonthInterest + DocumentCharges.
type Pledge struct {
	ID                 int64
	CompanyID          int64
	CustomerID         int64
	SchemeID           int64
	PledgeNo           string
	Principal          decimal.Decimal
	MonthlyRatePct     decimal.Decimal
	DurationMonths     int
	FirstMonthInterest decimal.Decimal
	DocumentCharges    decimal.Decimal
	FinalAmount        decimal.Decimal
	Status             Status
	PledgeDate         time.Time
	DueDate            time.Time
	CreatedBy          int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Payment is one settlement instalment against a pledge. Amount must equal
// Interest + Principal + Penalty − Discount. BalanceAmount is a stored
// convenience snapshot; reconciliation always recomputes from entries.
type Payment struct {
	ID            int64
	PledgeID      int64
	CompanyID     int64
	VoucherID     int64
	Date          time.Time
	Amount        decimal.Decimal
	Interest      decimal.Decimal
	Principal     decimal.Decimal
	Penalty       decimal.Decimal
	Discount      decimal.Decimal
	BalanceAmount decimal.Decimal
	Method        string
	ReceiptNo     string
	Note          string
	CreatedBy     int64
	CreatedAt     time.Time
}

// PaymentTotals aggregates a pledge's recorded payments.
type PaymentTotals struct {
	Amount    decimal.Decimal
	Interest  decimal.Decimal
	Principal decimal.Decimal
}

var (
	// ErrPledgeNotFound indicates an unknown pledge reference.
	ErrPledgeNotFound = shared.Referential("pledge: pledge not found")
	// ErrPaymentNotFound indicates an unknown payment reference.
	ErrPaymentNotFound = shared.Referential("pledge: payment not found")
	// ErrSchemeNotFound indicates an unknown scheme reference.
	ErrSchemeNotFound = shared.Referential("pledge: scheme not found")
	// ErrDuplicateReceipt indicates the receipt number is already taken.
	ErrDuplicateReceipt = shared.Validation("pledge: receipt number already used")
	// ErrDuplicatePledgeNo indicates the pledge number is already taken.
	ErrDuplicatePledgeNo = shared.Validation("pledge: pledge number already used")
	// ErrComponentMismatch indicates amount != interest+principal+penalty-discount.
	ErrComponentMismatch = shared.Validation("pledge: payment components do not sum to amount")
	// ErrPaymentLocked blocks edits to payments dated inside a closed year.
	ErrPaymentLocked = shared.StateConflict("pledge: payment falls in a closed financial year")
	// ErrDisbursalExceedsPrincipal indicates upfront deductions at or above principal.
	ErrDisbursalExceedsPrincipal = shared.Validation("pledge: first-month interest and charges must be below principal")
)

// DisburseInput carries the fields to open a pledge.
type DisburseInput struct {
	CompanyID       int64
	CustomerID      int64
	SchemeID        int64
	PledgeNo        string
	Principal       decimal.Decimal
	DocumentCharges decimal.Decimal
	PledgeDate      time.Time
	Narration       string
	ActorID         int64
}

// Validate checks structural requirements of a disbursal.
func (in DisburseInput) Validate() error {
	if in.CompanyID == 0 {
		return shared.Validation("pledge: company required")
	}
	if in.CustomerID == 0 {
		return shared.Validation("pledge: customer required")
	}
	if in.SchemeID == 0 {
		return shared.Validation("pledge: scheme required")
	}
	if in.PledgeNo == "" {
		return shared.Validation("pledge: pledge number required")
	}
	if !in.Principal.IsPositive() {
		return shared.Validation("pledge: principal must be positive")
	}
	if in.DocumentCharges.IsNegative() {
		return shared.Validation("pledge: document charges cannot be negative")
	}
	if in.PledgeDate.IsZero() {
		return shared.Validation("pledge: pledge date required")
	}
	return nil
}

// PaymentInput carries the fields to record or revise a payment.
type PaymentInput struct {
	CompanyID int64
	PledgeID  int64
	Date      time.Time
	Amount    decimal.Decimal
	Interest  decimal.Decimal
	Principal decimal.Decimal
	Penalty   decimal.Decimal
	Discount  decimal.Decimal
	Method    string
	ReceiptNo string
	Note      string
	ActorID   int64
}

// Validate checks the component split: every component non-negative, total
// positive, and interest + principal + penalty − discount equal to the
// total within the ledger tolerance.
func (in PaymentInput) Validate() error {
	if in.CompanyID == 0 {
		return shared.Validation("pledge: company required")
	}
	if in.PledgeID == 0 {
		return shared.Validation("pledge: pledge required")
	}
	if in.Date.IsZero() {
		return shared.Validation("pledge: payment date required")
	}
	if in.ReceiptNo == "" {
		return shared.Validation("pledge: receipt number required")
	}
	if !in.Amount.IsPositive() {
		return shared.Validation("pledge: payment amount must be positive")
	}
	for _, c := range []decimal.Decimal{in.Interest, in.Principal, in.Penalty, in.Discount} {
		if c.IsNegative() {
			return shared.Validation("pledge: payment components cannot be negative")
		}
	}
	expected := in.Interest.Add(in.Principal).Add(in.Penalty).Sub(in.Discount)
	if !ledger.WithinTolerance(expected, in.Amount) {
		return ErrComponentMismatch
	}
	return nil
}
