package parties

import (
	"context"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	InsertCustomer(ctx context.Context, in CustomerInput) (Customer, error)
	GetCustomer(ctx context.Context, companyID, customerID int64) (Customer, error)
	UpdateCustomer(ctx context.Context, companyID, customerID int64, in CustomerInput) (Customer, error)
	DeleteCustomer(ctx context.Context, companyID, customerID int64) error
	ListCustomers(ctx context.Context, companyID int64) ([]Customer, error)

	InsertScheme(ctx context.Context, in SchemeInput) (Scheme, error)
	GetScheme(ctx context.Context, companyID, schemeID int64) (Scheme, error)
	UpdateScheme(ctx context.Context, companyID, schemeID int64, in SchemeInput) (Scheme, error)
	ListSchemes(ctx context.Context, companyID int64) ([]Scheme, error)
}

// Service is the thin master-data layer over the repository.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the parties service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateCustomer validates and persists a customer.
func (s *Service) CreateCustomer(ctx context.Context, in CustomerInput) (Customer, error) {
	if err := in.Validate(); err != nil {
		return Customer{}, err
	}
	return s.repo.InsertCustomer(ctx, in)
}

// GetCustomer loads one customer.
func (s *Service) GetCustomer(ctx context.Context, companyID, customerID int64) (Customer, error) {
	return s.repo.GetCustomer(ctx, companyID, customerID)
}

// UpdateCustomer validates and updates a customer.
func (s *Service) UpdateCustomer(ctx context.Context, companyID, customerID int64, in CustomerInput) (Customer, error) {
	if err := in.Validate(); err != nil {
		return Customer{}, err
	}
	return s.repo.UpdateCustomer(ctx, companyID, customerID, in)
}

// DeleteCustomer removes a customer that never touched the ledger.
func (s *Service) DeleteCustomer(ctx context.Context, companyID, customerID int64) error {
	return s.repo.DeleteCustomer(ctx, companyID, customerID)
}

// ListCustomers returns the company's customers.
func (s *Service) ListCustomers(ctx context.Context, companyID int64) ([]Customer, error) {
	return s.repo.ListCustomers(ctx, companyID)
}

// CreateScheme validates and persists a scheme.
func (s *Service) CreateScheme(ctx context.Context, in SchemeInput) (Scheme, error) {
	if err := in.Validate(); err != nil {
		return Scheme{}, err
	}
	return s.repo.InsertScheme(ctx, in)
}

// GetScheme loads one scheme.
func (s *Service) GetScheme(ctx context.Context, companyID, schemeID int64) (Scheme, error) {
	return s.repo.GetScheme(ctx, companyID, schemeID)
}

// UpdateScheme validates and updates a scheme. Existing pledges keep their
// snapshotted terms.
func (s *Service) UpdateScheme(ctx context.Context, companyID, schemeID int64, in SchemeInput) (Scheme, error) {
	if err := in.Validate(); err != nil {
		return Scheme{}, err
	}
	return s.repo.UpdateScheme(ctx, companyID, schemeID, in)
}

// ListSchemes returns the company's schemes.
func (s *Service) ListSchemes(ctx context.Context, companyID int64) ([]Scheme, error) {
	return s.repo.ListSchemes(ctx, companyID)
}
