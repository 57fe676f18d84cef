package directory

import (
	"context"
)

// RepositoryPort abstracts persistence for the directory service.
type RepositoryPort interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetWarehouse(ctx context.Context, id int64) (Warehouse, error)
	GetVendor(ctx context.Context, id int64) (Vendor, error)
	GetUser(ctx context.Context, id int64) (User, error)
	ListProducts(ctx context.Context, orgID int64) ([]Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	CreateVendor(ctx context.Context, v Vendor) (Vendor, error)
	CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error)
}

// Service fronts directory lookups for the ledger and order workflows.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the directory service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	return s.repo.GetWarehouse(ctx, id)
}

func (s *Service) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	return s.repo.GetVendor(ctx, id)
}

func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, orgID int64) ([]Product, error) {
	return s.repo.ListProducts(ctx, orgID)
}

// CreateProduct validates and inserts a catalog item.
func (s *Service) CreateProduct(ctx context.Context, p Product) (Product, error) {
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	return s.repo.CreateProduct(ctx, p)
}

// CreateVendor validates and inserts a vendor.
func (s *Service) CreateVendor(ctx context.Context, v Vendor) (Vendor, error) {
	if err := validateVendor(v); err != nil {
		return Vendor{}, err
	}
	return s.repo.CreateVendor(ctx, v)
}

// CreateWarehouse validates and inserts a warehouse with its zones.
func (s *Service) CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	if err := validateWarehouse(w); err != nil {
		return Warehouse{}, err
	}
	return s.repo.CreateWarehouse(ctx, w)
}
