// Package ledger implements the double-entry core: the chart of accounts,
// the voucher posting protocol, and voucher reversal. Balances are always
// derived from the entry log; no stored balance is authoritative.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pawnbook/pawnbook/internal/shared"
)

// Tolerance is the single comparison threshold for monetary equality.
// Amounts are never compared with ==.
var Tolerance = decimal.New(1, -2) // 0.01

// WithinTolerance reports whether a and b differ by less than Tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Tolerance)
}

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
	AccountTypeEquity    AccountType = "EQUITY"
)

// DebitNormal reports whether debits increase the balance of this account
// type. Assets and expenses are debit-normal, the rest credit-normal.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeIncome, AccountTypeExpense, AccountTypeEquity:
		return true
	}
	return false
}

// Fixed chart codes seeded by InitChartOfAccounts. Customer sub-accounts are
// allocated as children of CodeCustomerLiabilities.
const (
	CodeCash                = "1000"
	CodeBank                = "1010"
	CodePledgeLoans         = "1100"
	CodeCustomerLiabilities = "2000"
	CodeInterestIncome      = "4000"
	CodeDocumentCharges     = "4010"
	CodePenaltyIncome       = "4020"
	CodeDiscountExpense     = "5000"
	CodeRetainedEarnings    = "3000"
)

// Account models a chart of accounts node. The tree is held as rows plus a
// parent id; children are discovered by filtering, never by live
// back-pointer collections.
type Account struct {
	ID        int64
	CompanyID int64
	Code      string
	Name      string
	Type      AccountType
	ParentID  *int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VoucherType is the closed enumeration of posting origins.
type VoucherType string

const (
	VoucherTypeDisbursal VoucherType = "LOAN_DISBURSAL"
	VoucherTypeReceipt   VoucherType = "RECEIPT"
	VoucherTypePayment   VoucherType = "PAYMENT"
	VoucherTypeJournal   VoucherType = "JOURNAL"
	VoucherTypeAuction   VoucherType = "AUCTION"
	VoucherTypeYearClose VoucherType = "YEAR_END_CLOSING"
	VoucherTypeYearOpen  VoucherType = "YEAR_OPENING"
)

// Valid reports whether t is a known voucher type.
func (t VoucherType) Valid() bool {
	switch t {
	case VoucherTypeDisbursal, VoucherTypeReceipt, VoucherTypePayment,
		VoucherTypeJournal, VoucherTypeAuction, VoucherTypeYearClose, VoucherTypeYearOpen:
		return true
	}
	return false
}

// Direction tags an entry as debit or credit. An entry is exactly one of
// the two, never both, never neither.
type Direction string

const (
	Debit  Direction = "DR"
	Credit Direction = "CR"
)

// Opposite returns the mirrored direction, used by reversal.
func (d Direction) Opposite() Direction {
	if d == Debit {
		return Credit
	}
	return Debit
}

// RefKind names the business object an entry traces back to.
type RefKind string

const (
	RefPledge   RefKind = "PLEDGE"
	RefPayment  RefKind = "PAYMENT"
	RefReversal RefKind = "REVERSAL"
)

// Reference points an entry back at the business object that caused it.
type Reference struct {
	Kind RefKind
	ID   int64
}

// Voucher is the atomic transaction header: it exists only together with
// its entries.
type Voucher struct {
	ID        int64
	CompanyID int64
	Type      VoucherType
	Date      time.Time
	Narration string
	CreatedBy int64
	CreatedAt time.Time
	Entries   []Entry
}

// Entry is one debit or credit line against a single account. CompanyID and
// Date are denormalised from the voucher at write time so report queries
// never join for them.
type Entry struct {
	ID        int64
	VoucherID int64
	CompanyID int64
	AccountID int64
	Direction Direction
	Amount    decimal.Decimal
	Narration string
	Ref       *Reference
	Date      time.Time
}

// Signed returns the entry amount as credit-positive.
func (e Entry) Signed() decimal.Decimal {
	if e.Direction == Credit {
		return e.Amount
	}
	return e.Amount.Neg()
}

// EntryInput describes one line of a posting request.
type EntryInput struct {
	AccountID int64
	Direction Direction
	Amount    decimal.Decimal
	Narration string
	Ref       *Reference
}

// PostingInput groups fields required to post a voucher.
type PostingInput struct {
	CompanyID int64
	Type      VoucherType
	Date      time.Time
	Narration string
	ActorID   int64
	Entries   []EntryInput
}

var (
	// ErrEmptyVoucher indicates a posting with no entries.
	ErrEmptyVoucher = shared.Validation("ledger: voucher requires at least one entry")
	// ErrUnbalancedVoucher indicates sum(debits) != sum(credits) within Tolerance.
	ErrUnbalancedVoucher = shared.Validation("ledger: voucher entries do not balance")
	// ErrDuplicateCode indicates the account code exists in the company.
	ErrDuplicateCode = shared.Validation("ledger: account code already exists for company")
	// ErrInvalidParent indicates the parent account is missing or foreign.
	ErrInvalidParent = shared.Referential("ledger: parent account missing or belongs to another company")
	// ErrMissingParentAccount indicates the chart of accounts is not initialised.
	ErrMissingParentAccount = shared.Referential("ledger: chart of accounts not initialised for company")
	// ErrAccountNotFound indicates an unknown account reference.
	ErrAccountNotFound = shared.Referential("ledger: account not found")
	// ErrVoucherNotFound indicates an unknown voucher reference.
	ErrVoucherNotFound = shared.Referential("ledger: voucher not found")
	// ErrNothingToReverse indicates the original voucher has no entries.
	ErrNothingToReverse = shared.StateConflict("ledger: voucher has no entries to reverse")
	// ErrAccountHasEntries blocks hard-deleting accounts with history.
	ErrAccountHasEntries = shared.StateConflict("ledger: account has entries and can only be deactivated")
	// ErrReversalMismatch signals a reversal whose totals drifted from the original.
	ErrReversalMismatch = shared.Consistency("ledger: reversal totals do not match original voucher")
	// ErrCustomerNotFound indicates an unknown customer reference.
	ErrCustomerNotFound = shared.Referential("ledger: customer not found")
	// ErrCustomerNoSubAccount indicates the customer has no ledger sub-account yet.
	ErrCustomerNoSubAccount = shared.Referential("ledger: customer has no ledger sub-account")
	// ErrCompanyNotFound indicates an unknown company reference.
	ErrCompanyNotFound = shared.Referential("ledger: company not found")
	// ErrYearAlreadyClosed indicates a closing marker already exists for the window.
	ErrYearAlreadyClosed = shared.StateConflict("ledger: financial year already closed")
)

// Validate checks the posting contract before anything touches the
// datastore: non-empty entry list, positive magnitudes, known directions,
// and balanced debit/credit totals within Tolerance.
func (in PostingInput) Validate() error {
	if in.CompanyID == 0 {
		return shared.Validation("ledger: company required")
	}
	if !in.Type.Valid() {
		return shared.Validation(fmt.Sprintf("ledger: unknown voucher type %q", in.Type))
	}
	if in.Date.IsZero() {
		return shared.Validation("ledger: voucher date required")
	}
	if len(in.Entries) == 0 {
		return ErrEmptyVoucher
	}
	var debit, credit decimal.Decimal
	for idx, line := range in.Entries {
		if line.AccountID == 0 {
			return shared.Validation(fmt.Sprintf("ledger: entry %d missing account", idx))
		}
		if line.Direction != Debit && line.Direction != Credit {
			return shared.Validation(fmt.Sprintf("ledger: entry %d has unknown direction %q", idx, line.Direction))
		}
		if !line.Amount.IsPositive() {
			return shared.Validation(fmt.Sprintf("ledger: entry %d amount must be positive", idx))
		}
		if line.Direction == Debit {
			debit = debit.Add(line.Amount)
		} else {
			credit = credit.Add(line.Amount)
		}
	}
	if !WithinTolerance(debit, credit) {
		return ErrUnbalancedVoucher
	}
	return nil
}

// CreateAccountInput carries the fields for explicit account creation.
type CreateAccountInput struct {
	CompanyID int64
	Code      string
	Name      string
	Type      AccountType
	ParentID  *int64
}

// Validate checks structural requirements of the account input.
func (in CreateAccountInput) Validate() error {
	if in.CompanyID == 0 {
		return shared.Validation("ledger: company required")
	}
	if in.Code == "" {
		return shared.Validation("ledger: account code required")
	}
	if in.Name == "" {
		return shared.Validation("ledger: account name required")
	}
	if !in.Type.Valid() {
		return shared.Validation(fmt.Sprintf("ledger: unknown account type %q", in.Type))
	}
	return nil
}
