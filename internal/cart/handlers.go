package cart

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Handler exposes cart endpoints. Requests must pass through Middleware.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// quantityInput accepts both JSON numbers and numeric strings, as form
// posts send them.
type quantityInput string

func (q *quantityInput) UnmarshalJSON(b []byte) error {
	*q = quantityInput(strings.Trim(strings.TrimSpace(string(b)), `"`))
	return nil
}

type addItemRequest struct {
	ProductID string        `json:"productId" validate:"required"`
	Quantity  quantityInput `json:"quantity"`
}

type updateItemRequest struct {
	Quantity quantityInput `json:"quantity"`
}

// View handles GET /api/v1/cart.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	view, err := h.service.View(r.Context(), cartID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// AddItem handles POST /api/v1/cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	qty, err := pricing.ParseQuantity(string(req.Quantity), h.service.maxQuantity())
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := h.service.Add(r.Context(), cartID, strings.TrimSpace(req.ProductID), qty)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": pricing.Line{ProductID: req.ProductID, Quantity: n}})
}

// UpdateItem handles PATCH /api/v1/cart/items/{productId}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productId")
	var req updateItemRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	qty, err := pricing.ParseQuantity(string(req.Quantity), h.service.maxQuantity())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.service.SetQuantity(r.Context(), cartID, productID, qty); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": pricing.Line{ProductID: productID, Quantity: qty}})
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	if err := h.service.Remove(r.Context(), cartID, chi.URLParam(r, "productId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Count handles GET /api/v1/cart/count.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	n, err := h.service.Count(r.Context(), cartID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]int{"count": n}})
}

func (h *Handler) cartID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return "", false
	}
	id, ok := common.CartID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "CART_REQUIRED", "cart cookie missing", nil)
		return "", false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricing.ErrProductNotFound):
		common.JSONError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, pricing.ErrInvalidQuantity):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_QUANTITY", err.Error(), nil)
	case errors.Is(err, pricing.ErrInvalidDiscount):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_DISCOUNT", err.Error(), nil)
	case errors.Is(err, pricing.ErrInvalidProduct):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_PRODUCT", err.Error(), nil)
	case errors.Is(err, ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, "LINE_NOT_FOUND", "product is not in the cart", nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "CART_NOT_FOUND", "cart not found", nil)
	default:
		common.WriteError(w, err)
	}
}
