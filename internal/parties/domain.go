// Package parties holds the master data the ledger consumes: customers and
// interest schemes. Only ledger-facing fields live here; the engine treats
// everything else about a customer as someone else's problem.
package parties

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pawnbook/pawnbook/internal/shared"
)

// Customer is a borrower. AccountID links to the customer's ledger
// sub-account once the first payment allocates one.
type Customer struct {
	ID        int64
	CompanyID int64
	Name      string
	Phone     string
	AccountID *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Scheme defines pledge terms. Pledges snapshot these values at disbursal;
// editing a scheme never changes an existing pledge.
type Scheme struct {
	ID             int64
	CompanyID      int64
	Name           string
	MonthlyRatePct decimal.Decimal
	DurationMonths int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

var (
	// ErrCustomerNotFound indicates an unknown customer reference.
	ErrCustomerNotFound = shared.Referential("parties: customer not found")
	// ErrSchemeNotFound indicates an unknown scheme reference.
	ErrSchemeNotFound = shared.Referential("parties: scheme not found")
	// ErrCustomerHasAccount blocks deleting a customer with a ledger sub-account.
	ErrCustomerHasAccount = shared.StateConflict("parties: customer has a ledger sub-account and cannot be deleted")
)

// CustomerInput carries customer create/update fields.
type CustomerInput struct {
	CompanyID int64
	Name      string
	Phone     string
}

// Validate checks structural requirements.
func (in CustomerInput) Validate() error {
	if in.CompanyID == 0 {
		return shared.Validation("parties: company required")
	}
	if in.Name == "" {
		return shared.Validation("parties: customer name required")
	}
	return nil
}

// SchemeInput carries scheme create/update fields.
type SchemeInput struct {
	CompanyID      int64
	Name           string
	MonthlyRatePct decimal.Decimal
	DurationMonths int
}

// Validate checks structural requirements.
func (in SchemeInput) Validate() error {
	if in.CompanyID == 0 {
		return shared.Validation("parties: company required")
	}
	if in.Name == "" {
		return shared.Validation("parties: scheme name required")
	}
	if !in.MonthlyRatePct.IsPositive() {
		return shared.Validation("parties: monthly rate must be positive")
	}
	if in.DurationMonths <= 0 {
		return shared.Validation("parties: duration must be positive")
	}
	return nil
}
