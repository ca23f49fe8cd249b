// Package cart keeps shopping carts: lines of product references with
// quantities, priced on read through the pricing composer.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

var (
	// ErrNotFound indicates the requested cart could not be located.
	ErrNotFound = errors.New("cart not found")
	// ErrLineNotFound is returned when a quantity update targets a product not in the cart.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrQuantityLimit is returned by stores when an increment would push a
	// line past the configured maximum. It matches pricing.ErrInvalidQuantity.
	ErrQuantityLimit = fmt.Errorf("line quantity limit reached: %w", pricing.ErrInvalidQuantity)
)

// Cart is a stored cart. UserID is nil for anonymous carts.
type Cart struct {
	ID        string         `json:"id"`
	UserID    *string        `json:"userId,omitempty"`
	Lines     []pricing.Line `json:"lines"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Count sums line quantities.
func (c Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Owner returns the user id or "" for anonymous carts.
func (c Cart) Owner() string {
	if c.UserID == nil {
		return ""
	}
	return *c.UserID
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// View is a priced cart.
type View struct {
	CartID  string                 `json:"cartId"`
	Lines   []pricing.ComposedLine `json:"lines"`
	Summary pricing.Summary        `json:"summary"`
}

// Store persists carts. Implementations must make IncrementLine atomic:
// two concurrent increments of the same line both land.
type Store interface {
	CreateCart(ctx context.Context) (Cart, error)
	// GetCart returns ErrNotFound for unknown ids.
	GetCart(ctx context.Context, cartID string) (Cart, error)
	// FindCartByUser returns the most recently updated cart of the user or ErrNotFound.
	FindCartByUser(ctx context.Context, userID string) (Cart, error)
	AttachUser(ctx context.Context, cartID, userID string) error
	// IncrementLine adds delta to the line, creating it when absent, and
	// returns the resulting quantity. ErrQuantityLimit when the result would exceed limit.
	IncrementLine(ctx context.Context, cartID, productID string, delta, limit int) (int, error)
	// SetLineQuantity overwrites an existing line; ErrLineNotFound when absent.
	SetLineQuantity(ctx context.Context, cartID, productID string, qty int) error
	// RemoveLine is idempotent.
	RemoveLine(ctx context.Context, cartID, productID string) error
	// ClearLines empties the cart; ErrNotFound for unknown ids.
	ClearLines(ctx context.Context, cartID string) error
	// ReleaseLines subtracts each line's quantity and drops lines that reach
	// zero. Units added after the lines were read stay in the cart.
	// ErrNotFound for unknown ids.
	ReleaseLines(ctx context.Context, cartID string, lines []pricing.Line) error
}
