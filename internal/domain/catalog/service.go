package catalog

import (
	"context"
	"fmt"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/pkg/logger"
)

// Service provides catalog operations for the external CRUD layer and the
// seeding tools.
type Service struct {
	repo Repository
}

// NewService creates a catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and persists a product.
func (s *Service) Create(ctx context.Context, product *Product) error {
	if err := product.Validate(ctx); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	logger.Info(ctx, "product created",
		"product_id", product.ID,
		"code", product.Code,
		"ownership", product.OwnershipType,
	)
	return nil
}

// Get retrieves a product by ID.
func (s *Service) Get(ctx context.Context, productID id.ID) (*Product, error) {
	return s.repo.Get(ctx, productID)
}

// List returns all products.
func (s *Service) List(ctx context.Context) ([]*Product, error) {
	return s.repo.List(ctx)
}
