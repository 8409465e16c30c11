package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Arya602/craft-heart-connect/internal/domain"
	"github.com/Arya602/craft-heart-connect/internal/service"
	apperrors "github.com/Arya602/craft-heart-connect/pkg/errors"
	"github.com/Arya602/craft-heart-connect/pkg/httputil"
	"github.com/Arya602/craft-heart-connect/pkg/pagination"
)

// ProductHandler serves the public catalog.
type ProductHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.CatalogService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  logger,
	}
}

// List handles GET /api/v1/products
//
// Query parameters: category, region, q, min_price, max_price, min_rating,
// sort (featured, price-low, price-high, rating, newest), page, per_page.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	page := pagination.FromRequest(r)

	products, total, err := h.service.Browse(r.Context(), filter, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse[domain.Product](products, total, page.Page, page.PerPage))
}

func parseFilter(q url.Values) (domain.Filter, error) {
	f := domain.Filter{
		Category: q.Get("category"),
		Region:   q.Get("region"),
		Query:    q.Get("q"),
	}

	sort, err := domain.ParseSortOrder(q.Get("sort"))
	if err != nil {
		return domain.Filter{}, err
	}
	f.Sort = sort

	if f.MinPrice, err = parsePrice(q, "min_price"); err != nil {
		return domain.Filter{}, err
	}
	if f.MaxPrice, err = parsePrice(q, "max_price"); err != nil {
		return domain.Filter{}, err
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return domain.Filter{}, apperrors.InvalidInput("min_price must not exceed max_price")
	}

	if v := q.Get("min_rating"); v != "" {
		rating, err := strconv.ParseFloat(v, 64)
		if err != nil || rating < 0 || rating > 5 {
			return domain.Filter{}, apperrors.InvalidInput("min_rating must be a number between 0 and 5")
		}
		f.MinRating = rating
	}

	return f, nil
}

func parsePrice(q url.Values, key string) (*decimal.Decimal, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("%s must be a non-negative number", key))
	}
	return &d, nil
}
