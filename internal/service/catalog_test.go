package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Arya602/craft-heart-connect/internal/domain"
	apperrors "github.com/Arya602/craft-heart-connect/pkg/errors"
	"github.com/Arya602/craft-heart-connect/pkg/pagination"
)

func catalog() []domain.Product {
	return []domain.Product{
		{ID: "p1", Title: "Blue Pottery Vase", Category: "pottery", Price: decimal.NewFromInt(1200), Rating: 4.8},
		{ID: "p2", Title: "Terracotta Lamp", Category: "pottery", Price: decimal.NewFromInt(450), Rating: 4.2},
		{ID: "p3", Title: "Pashmina Shawl", Category: "textiles", Price: decimal.NewFromInt(3500), Rating: 4.9},
		{ID: "p4", Title: "Clay Diya Set", Category: "pottery", Price: decimal.NewFromInt(250), Rating: 4.5},
	}
}

func ids(products []domain.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestBrowse_FilterSortPage(t *testing.T) {
	source := new(mockProductSource)
	svc := NewCatalogService(source, newTestLogger())
	source.On("ListProducts", mock.Anything).Return(catalog(), nil)

	filter := domain.Filter{Category: "Pottery", Sort: domain.SortPriceLow}

	page, total, err := svc.Browse(context.Background(), filter, pagination.Params{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"p4", "p2"}, ids(page))

	page, total, err = svc.Browse(context.Background(), filter, pagination.Params{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"p1"}, ids(page))
}

func TestBrowse_PastLastPage(t *testing.T) {
	source := new(mockProductSource)
	svc := NewCatalogService(source, newTestLogger())
	source.On("ListProducts", mock.Anything).Return(catalog(), nil)

	page, total, err := svc.Browse(context.Background(), domain.Filter{}, pagination.Params{Page: 5, PerPage: 20})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.NotNil(t, page)
	assert.Empty(t, page)
}

func TestBrowse_SourceError(t *testing.T) {
	source := new(mockProductSource)
	svc := NewCatalogService(source, newTestLogger())
	source.On("ListProducts", mock.Anything).Return(nil, errors.New("product api down"))

	_, _, err := svc.Browse(context.Background(), domain.Filter{}, pagination.DefaultParams())
	assert.ErrorContains(t, err, "list products")
}

func TestProduct_FindsListing(t *testing.T) {
	source := new(mockProductSource)
	svc := NewCatalogService(source, newTestLogger())
	source.On("ListProducts", mock.Anything).Return(catalog(), nil)

	p, err := svc.Product(context.Background(), "p3")
	require.NoError(t, err)
	assert.Equal(t, "Pashmina Shawl", p.Title)
	assert.True(t, decimal.NewFromInt(3500).Equal(p.Price))
}

func TestProduct_Unknown(t *testing.T) {
	source := new(mockProductSource)
	svc := NewCatalogService(source, newTestLogger())
	source.On("ListProducts", mock.Anything).Return(catalog(), nil)

	_, err := svc.Product(context.Background(), "p-missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
