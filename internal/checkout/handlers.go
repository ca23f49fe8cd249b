package checkout

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/order"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Handler exposes checkout endpoints. Requests must pass through the cart
// middleware so the cart id is on the context.
type Handler struct {
	Svc    *Service
	Orders *order.Service
}

// Preview handles GET /api/v1/checkout.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	cartID, _ := common.CartID(r.Context())
	userID, _ := common.UserID(r.Context())
	view, err := h.Svc.Preview(r.Context(), cartID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Checkout handles POST /api/v1/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var customer Customer
	if err := common.DecodeAndValidate(r, &customer); err != nil {
		writeError(w, err)
		return
	}
	cartID, _ := common.CartID(r.Context())
	userID, _ := common.UserID(r.Context())
	receipt, err := h.Svc.Place(r.Context(), Input{CartID: cartID, UserID: userID, Customer: customer})
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": receipt})
}

// Success handles GET /api/v1/checkout/success/{orderId}. The order is shown
// to the account that placed it or to the browser holding the cart it came from.
func (h *Handler) Success(w http.ResponseWriter, r *http.Request) {
	if h.Orders == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	cartID, _ := common.CartID(r.Context())
	userID, _ := common.UserID(r.Context())
	detail, err := h.Orders.GetForShopper(r.Context(), chi.URLParam(r, "orderId"), userID, cartID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart is empty", nil)
	case errors.Is(err, ErrCartForbidden):
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, ErrInProgress):
		common.JSONError(w, http.StatusConflict, "CHECKOUT_IN_PROGRESS", err.Error(), nil)
	case errors.Is(err, cart.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "CART_NOT_FOUND", "cart not found", nil)
	case errors.Is(err, order.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, pricing.ErrProductNotFound):
		common.JSONError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, pricing.ErrInvalidProduct):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_PRODUCT", err.Error(), nil)
	case errors.Is(err, pricing.ErrInvalidDiscount):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_DISCOUNT", err.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}
