package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/Arya602/craft-heart-connect/internal/domain"
	apperrors "github.com/Arya602/craft-heart-connect/pkg/errors"
	"github.com/Arya602/craft-heart-connect/pkg/pagination"
)

// ProductSource lists the published catalog.
type ProductSource interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// CatalogService filters, sorts and pages the product catalog.
type CatalogService struct {
	products ProductSource
	logger   *slog.Logger
	group    singleflight.Group
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(products ProductSource, logger *slog.Logger) *CatalogService {
	return &CatalogService{products: products, logger: logger}
}

// Browse returns one page of the products matching filter and the number of
// matches overall. Concurrent callers share one upstream fetch.
func (s *CatalogService) Browse(ctx context.Context, filter domain.Filter, page pagination.Params) ([]domain.Product, int, error) {
	products, err := s.list(ctx)
	if err != nil {
		return nil, 0, err
	}

	matched := filter.Apply(products)
	return pagination.Slice(matched, page), len(matched), nil
}

// Product returns the published listing for id, which is where cart prices
// come from.
func (s *CatalogService) Product(ctx context.Context, id string) (domain.Product, error) {
	products, err := s.list(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, apperrors.NotFound("product", id)
}

func (s *CatalogService) list(ctx context.Context) ([]domain.Product, error) {
	v, err, shared := s.group.Do("products", func() (any, error) {
		return s.products.ListProducts(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if shared {
		s.logger.DebugContext(ctx, "product listing shared with concurrent request")
	}
	return v.([]domain.Product), nil
}
