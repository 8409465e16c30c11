package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Arya602/craft-heart-connect/internal/domain"
	"github.com/Arya602/craft-heart-connect/internal/service"
	"github.com/Arya602/craft-heart-connect/pkg/httputil"
	"github.com/Arya602/craft-heart-connect/pkg/middleware"
	"github.com/Arya602/craft-heart-connect/pkg/pagination"
	"github.com/Arya602/craft-heart-connect/pkg/validator"
)

// IdempotencyKeyHeader lets a client retry a checkout without placing the
// order twice.
const IdempotencyKeyHeader = "Idempotency-Key"

// CheckoutHandler handles HTTP requests for checkout and order endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// Quote handles GET /api/v1/checkout/quote
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.service.Quote(r.Context(), middleware.SessionID(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, quote)
}

// PlaceOrder handles POST /api/v1/checkout
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req service.PlaceOrderInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)

	conf, err := h.service.PlaceOrder(r.Context(), middleware.SessionID(r), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.Header().Set("Location", "/api/v1/orders/"+conf.OrderID)
	httputil.WriteData(w, http.StatusCreated, conf)
}

// ListOrders handles GET /api/v1/orders
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)

	receipts, total, err := h.service.ListReceipts(r.Context(), middleware.SessionID(r), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse[domain.Receipt](receipts, total, page.Page, page.PerPage))
}

// GetOrder handles GET /api/v1/orders/{orderId}
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := httputil.ParseID(w, r, "order id", chi.URLParam(r, "orderId"))
	if !ok {
		return
	}

	conf, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, conf)
}
