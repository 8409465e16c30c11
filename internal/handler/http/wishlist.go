package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Arya602/craft-heart-connect/internal/service"
	"github.com/Arya602/craft-heart-connect/pkg/httputil"
	"github.com/Arya602/craft-heart-connect/pkg/middleware"
)

// WishlistHandler handles HTTP requests for wishlist endpoints.
type WishlistHandler struct {
	service *service.WishlistService
	logger  *slog.Logger
}

// NewWishlistHandler creates a new wishlist HTTP handler.
func NewWishlistHandler(svc *service.WishlistService, logger *slog.Logger) *WishlistHandler {
	return &WishlistHandler{
		service: svc,
		logger:  logger,
	}
}

// savedResponse reports whether one product is on the wishlist.
type savedResponse struct {
	ProductID string `json:"product_id"`
	Saved     bool   `json:"saved"`
}

// List handles GET /api/v1/wishlist
func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	wl, err := h.service.List(r.Context(), middleware.SessionID(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, wl)
}

// Contains handles GET /api/v1/wishlist/{productId}
func (h *WishlistHandler) Contains(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseID(w, r, "product id", chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	saved, err := h.service.Contains(r.Context(), middleware.SessionID(r), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, savedResponse{ProductID: productID, Saved: saved})
}

// Add handles POST /api/v1/wishlist/{productId}
func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseID(w, r, "product id", chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	wl, err := h.service.Add(r.Context(), middleware.SessionID(r), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, wl)
}

// Remove handles DELETE /api/v1/wishlist/{productId}
func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseID(w, r, "product id", chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	wl, err := h.service.Remove(r.Context(), middleware.SessionID(r), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, wl)
}

// Toggle handles POST /api/v1/wishlist/{productId}/toggle
func (h *WishlistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseID(w, r, "product id", chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	res, err := h.service.Toggle(r.Context(), middleware.SessionID(r), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, res)
}
