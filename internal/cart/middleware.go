package cart

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/common"
)

// CookieConfig describes the cart cookie.
type CookieConfig struct {
	Name     string
	TTL      time.Duration
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func (c CookieConfig) name() string {
	if c.Name == "" {
		return "cartId"
	}
	return c.Name
}

// Read returns the cart id carried by the request, if any.
func (c CookieConfig) Read(r *http.Request) string {
	cookie, err := r.Cookie(c.name())
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Write sets the cart cookie on the response.
func (c CookieConfig) Write(w http.ResponseWriter, cartID string) {
	sameSite := c.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	cookie := &http.Cookie{
		Name:     c.name(),
		Value:    cartID,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: sameSite,
	}
	if c.TTL > 0 {
		cookie.Expires = time.Now().Add(c.TTL)
		cookie.MaxAge = int(c.TTL.Seconds())
	}
	http.SetCookie(w, cookie)
}

// Clear expires the cart cookie.
func (c CookieConfig) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
	})
}

// Middleware resolves the shopper's cart from the cookie, creating one when
// missing or stale, and stores its id on the request context.
type Middleware struct {
	Service *Service
	Cookie  CookieConfig
	Logger  *zerolog.Logger
}

// Handler wraps next with cart bootstrap.
func (m Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := m.Cookie.Read(r)
		c, created, err := m.Service.EnsureCart(r.Context(), current)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error().Err(err).Msg("cart_bootstrap_failed")
			}
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart unavailable", nil)
			return
		}
		if created || c.ID != current {
			m.Cookie.Write(w, c.ID)
		}
		next.ServeHTTP(w, r.WithContext(common.WithCartID(r.Context(), c.ID)))
	})
}
