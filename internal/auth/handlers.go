package auth

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/common"
)

// Handler exposes HTTP handlers for authentication and account endpoints.
// The admin console mounts a second Handler with RequiredRole set to admin
// and no cart wiring.
type Handler struct {
	Service          *Service
	AccessCookieName string
	CookieDomain     string
	CookieSecure     bool
	CookieSameSite   http.SameSite
	RequiredRole     string

	// Carts, when set, lets login claim the shopper's anonymous cart.
	Carts      *cart.Service
	CartCookie cart.CookieConfig
	Logger     *zerolog.Logger
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth service not configured", nil)
		return
	}
	var req RegisterInput
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	user, err := h.Service.Register(r.Context(), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": user})
}

// Login handles POST /api/v1/auth/login and POST /api/v1/admin/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth service not configured", nil)
		return
	}
	var req loginRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if h.RequiredRole != "" && result.User.Role != h.RequiredRole {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "account may not use this console", nil)
		return
	}
	h.setAccessCookie(w, result)
	h.claimCart(w, r, result.User.ID)
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"user":            result.User,
			"accessToken":     result.AccessToken,
			"accessExpiresAt": result.AccessExpiry,
		},
	})
}

// Logout handles POST /api/v1/auth/logout. The cart cookie is dropped too so
// the next visitor on this browser starts with an anonymous cart.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, h.AccessCookieName)
	if h.Carts != nil {
		h.CartCookie.Clear(w)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	user, err := h.Service.Me(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": user})
}

// claimCart binds the browser's cart to the account. Failures only cost the
// shopper their anonymous lines, so they are logged and login proceeds.
func (h *Handler) claimCart(w http.ResponseWriter, r *http.Request, userID string) {
	if h.Carts == nil {
		return
	}
	current, ok := common.CartID(r.Context())
	if !ok {
		current = h.CartCookie.Read(r)
	}
	claimed, err := h.Carts.Claim(r.Context(), current, userID)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn().Err(err).Str("user_id", userID).Msg("cart_claim_failed")
		}
		return
	}
	if claimed.ID != current {
		h.CartCookie.Write(w, claimed.ID)
	}
}

func (h *Handler) setAccessCookie(w http.ResponseWriter, result LoginResult) {
	if h.AccessCookieName == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.AccessCookieName,
		Value:    result.AccessToken,
		Domain:   h.CookieDomain,
		Path:     "/",
		Expires:  result.AccessExpiry,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: h.CookieSameSite,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter, name string) {
	if name == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Domain:   h.CookieDomain,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: h.CookieSameSite,
	})
}
