package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Service exposes cart operations on top of a Store.
type Service struct {
	Store    Store
	Products pricing.ProductLookup
	// MaxQuantity bounds every line; pricing.MaxQuantity when zero.
	MaxQuantity       int
	LookupConcurrency int
	Logger            *zerolog.Logger
}

var errNotConfigured = errors.New("cart service not configured")

func (s *Service) ready() error {
	if s == nil || s.Store == nil {
		return errNotConfigured
	}
	return nil
}

func (s *Service) maxQuantity() int {
	if s.MaxQuantity > 0 {
		return s.MaxQuantity
	}
	return pricing.MaxQuantity
}

func (s *Service) composer() pricing.Composer {
	return pricing.Composer{Lookup: s.Products, Concurrency: s.LookupConcurrency}
}

// EnsureCart returns the cart identified by cartID, creating a fresh one when
// the id is blank or unknown. created reports whether a new cart was made.
func (s *Service) EnsureCart(ctx context.Context, cartID string) (c Cart, created bool, err error) {
	if err := s.ready(); err != nil {
		return Cart{}, false, err
	}
	if cartID != "" {
		c, err = s.Store.GetCart(ctx, cartID)
		if err == nil {
			return c, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Cart{}, false, err
		}
	}
	c, err = s.Store.CreateCart(ctx)
	if err != nil {
		return Cart{}, false, err
	}
	return c, true, nil
}

// Add merges qty into the product's line and returns the resulting quantity.
func (s *Service) Add(ctx context.Context, cartID, productID string, qty int) (n int, err error) {
	defer func() { obs.RecordCartMutation("add", err) }()
	if err := s.ready(); err != nil {
		return 0, err
	}
	limit := s.maxQuantity()
	if err := pricing.ValidateQuantity(qty, limit); err != nil {
		return 0, err
	}
	if err := s.requireSellable(ctx, productID); err != nil {
		return 0, err
	}
	n, err = s.Store.IncrementLine(ctx, cartID, productID, qty, limit)
	if err != nil {
		if errors.Is(err, ErrQuantityLimit) {
			return 0, fmt.Errorf("%w: line would exceed %d", pricing.ErrInvalidQuantity, limit)
		}
		return 0, err
	}
	return n, nil
}

// SetQuantity overwrites the line quantity.
func (s *Service) SetQuantity(ctx context.Context, cartID, productID string, qty int) (err error) {
	defer func() { obs.RecordCartMutation("set", err) }()
	if err := s.ready(); err != nil {
		return err
	}
	if err := pricing.ValidateQuantity(qty, s.maxQuantity()); err != nil {
		return err
	}
	return s.Store.SetLineQuantity(ctx, cartID, productID, qty)
}

// Remove drops the product's line. Removing an absent line succeeds.
func (s *Service) Remove(ctx context.Context, cartID, productID string) (err error) {
	defer func() { obs.RecordCartMutation("remove", err) }()
	if err := s.ready(); err != nil {
		return err
	}
	return s.Store.RemoveLine(ctx, cartID, productID)
}

// View prices every line of the cart.
func (s *Service) View(ctx context.Context, cartID string) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	c, err := s.Store.GetCart(ctx, cartID)
	if err != nil {
		return View{}, err
	}
	lines, err := s.composer().Compose(ctx, c.Lines)
	if err != nil {
		return View{}, err
	}
	obs.RecordComposedLines(len(lines))
	return View{CartID: c.ID, Lines: lines, Summary: pricing.Summarize(lines)}, nil
}

// Total is the sum of composed line totals; an empty cart totals zero.
func (s *Service) Total(ctx context.Context, cartID string) (pricing.Money, error) {
	v, err := s.View(ctx, cartID)
	if err != nil {
		return 0, err
	}
	return v.Summary.Total, nil
}

// Count sums line quantities without resolving products.
func (s *Service) Count(ctx context.Context, cartID string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	c, err := s.Store.GetCart(ctx, cartID)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

// Claim binds a cart to a user at login. When the user already owns a
// different cart the anonymous lines are merged into it, capped at the
// line maximum, and the owned cart is returned. Otherwise the anonymous
// cart is attached to the user.
func (s *Service) Claim(ctx context.Context, cartID, userID string) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	if userID == "" {
		return Cart{}, errors.New("claim cart: user id required")
	}

	owned, err := s.Store.FindCartByUser(ctx, userID)
	switch {
	case err == nil:
		if owned.ID == cartID || cartID == "" {
			return owned, nil
		}
		if err := s.merge(ctx, cartID, owned.ID); err != nil {
			return Cart{}, err
		}
		return s.Store.GetCart(ctx, owned.ID)
	case !errors.Is(err, ErrNotFound):
		return Cart{}, err
	}

	c, _, err := s.EnsureCart(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}
	if c.Owner() != "" && c.Owner() != userID {
		// Someone else's cart; start fresh rather than take it over.
		if c, err = s.Store.CreateCart(ctx); err != nil {
			return Cart{}, err
		}
	}
	if err := s.Store.AttachUser(ctx, c.ID, userID); err != nil {
		return Cart{}, err
	}
	c.UserID = &userID
	return c, nil
}

func (s *Service) merge(ctx context.Context, fromID, intoID string) error {
	from, err := s.Store.GetCart(ctx, fromID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if from.Owner() != "" {
		return nil
	}
	limit := s.maxQuantity()
	for _, line := range from.Lines {
		_, err := s.Store.IncrementLine(ctx, intoID, line.ProductID, line.Quantity, limit)
		if errors.Is(err, ErrQuantityLimit) {
			err = s.Store.SetLineQuantity(ctx, intoID, line.ProductID, limit)
		}
		if err != nil {
			return fmt.Errorf("merge line %s: %w", line.ProductID, err)
		}
	}
	if err := s.Store.ClearLines(ctx, fromID); err != nil {
		s.logger().Warn().Err(err).Str("cart_id", fromID).Msg("cart_merge_clear_failed")
	}
	return nil
}

// requireSellable rejects unknown, soft-deleted and inactive products.
func (s *Service) requireSellable(ctx context.Context, productID string) error {
	if s.Products == nil {
		return errors.New("cart: product lookup not configured")
	}
	p, err := s.Products.ProductByID(ctx, productID)
	if err != nil {
		return err
	}
	if p.Deleted || (p.Status != "" && p.Status != "active") {
		return fmt.Errorf("product %s: %w", productID, pricing.ErrProductNotFound)
	}
	return nil
}

func (s *Service) logger() *zerolog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	nop := zerolog.Nop()
	return &nop
}
