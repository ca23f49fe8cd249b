// Package checkout turns a cart into an order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/events"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

var (
	// ErrEmptyCart is returned when checking out a cart without lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCartForbidden is returned when the cart belongs to another account.
	ErrCartForbidden = errors.New("cart belongs to another account")
	// ErrInProgress is returned when another checkout holds the cart lock.
	ErrInProgress = errors.New("checkout already in progress for this cart")
)

// Customer is the delivery information captured at checkout.
type Customer struct {
	FullName string `json:"fullName" validate:"required,max=120"`
	Phone    string `json:"phone" validate:"required,max=32"`
	Address  string `json:"address" validate:"required,max=500"`
	Note     string `json:"note" validate:"max=1000"`
}

func (c Customer) trimmed() Customer {
	return Customer{
		FullName: strings.TrimSpace(c.FullName),
		Phone:    strings.TrimSpace(c.Phone),
		Address:  strings.TrimSpace(c.Address),
		Note:     strings.TrimSpace(c.Note),
	}
}

// CartStore is the part of cart.Store checkout needs.
type CartStore interface {
	GetCart(ctx context.Context, cartID string) (cart.Cart, error)
	ReleaseLines(ctx context.Context, cartID string, lines []pricing.Line) error
}

// Locker serialises checkouts of the same cart; lock.Locker satisfies it.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Emitter publishes domain events; *events.Bus satisfies it.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID pgtype.UUID, payload any) (db.DomainEvent, error)
}

// UserFinder resolves the buyer's email for the confirmation event.
type UserFinder interface {
	GetUserByID(ctx context.Context, id pgtype.UUID) (db.User, error)
}

// Service places orders.
type Service struct {
	Carts             CartStore
	Products          pricing.ProductLookup
	Orders            OrderWriter
	Lock              Locker
	LockTTL           time.Duration
	Events            Emitter
	Users             UserFinder
	LookupConcurrency int
	Logger            *zerolog.Logger
}

// Input identifies who checks out which cart.
type Input struct {
	CartID   string
	UserID   string
	Customer Customer
}

// Receipt is returned after a successful checkout.
type Receipt struct {
	OrderID string                 `json:"orderId"`
	Status  string                 `json:"status"`
	Total   pricing.Money          `json:"total"`
	Lines   []pricing.ComposedLine `json:"lines"`
	Summary pricing.Summary        `json:"summary"`
}

// Preview prices the cart the way Place would, without writing anything.
func (s *Service) Preview(ctx context.Context, cartID, userID string) (cart.View, error) {
	if err := s.ready(); err != nil {
		return cart.View{}, err
	}
	c, err := s.loadCart(ctx, cartID, userID)
	if err != nil {
		return cart.View{}, err
	}
	lines, err := s.composer().Compose(ctx, c.Lines)
	if err != nil {
		return cart.View{}, err
	}
	return cart.View{CartID: c.ID, Lines: lines, Summary: pricing.Summarize(lines)}, nil
}

// Place converts the cart into an order while holding the cart lock. Every
// line is priced against the live catalog and frozen into the order; any
// missing product aborts before anything is written. The cart is cleared
// once the order is committed.
func (s *Service) Place(ctx context.Context, in Input) (receipt Receipt, err error) {
	defer func() { obs.RecordCheckout(checkoutResult(err)) }()
	if err := s.ready(); err != nil {
		return Receipt{}, err
	}
	if s.Lock == nil {
		return s.place(ctx, in)
	}
	err = s.Lock.WithLock(ctx, "checkout:"+in.CartID, s.LockTTL, func(ctx context.Context) error {
		var placeErr error
		receipt, placeErr = s.place(ctx, in)
		return placeErr
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return Receipt{}, fmt.Errorf("%w: %v", ErrInProgress, err)
	}
	return receipt, err
}

func (s *Service) place(ctx context.Context, in Input) (Receipt, error) {
	c, err := s.loadCart(ctx, in.CartID, in.UserID)
	if err != nil {
		return Receipt{}, err
	}
	if len(c.Lines) == 0 {
		return Receipt{}, ErrEmptyCart
	}
	composed, err := s.composer().Compose(ctx, c.Lines)
	if err != nil {
		return Receipt{}, err
	}
	obs.RecordComposedLines(len(composed))

	snapshot := make([]pricing.OrderLine, 0, len(composed))
	for _, l := range composed {
		snapshot = append(snapshot, pricing.OrderLine{
			ProductID:          l.ProductID,
			Quantity:           l.Quantity,
			Price:              l.UnitPriceOriginal,
			DiscountPercentage: l.DiscountPercentage,
		})
	}
	summary := pricing.Summarize(composed)

	order, err := s.Orders.CreateOrder(ctx, Draft{
		UserID:   in.UserID,
		CartID:   c.ID,
		Customer: in.Customer.trimmed(),
		Lines:    snapshot,
		Total:    summary.Total,
	})
	if err != nil {
		return Receipt{}, err
	}
	orderID := db.UUIDString(order.ID)
	log := s.logger().With().Str("order_id", orderID).Str("cart_id", c.ID).Logger()

	// Only the ordered units leave the cart; lines added while the order
	// was being written stay for the next checkout.
	if err := s.Carts.ReleaseLines(ctx, c.ID, c.Lines); err != nil {
		log.Error().Err(err).Msg("checkout_cart_release_failed")
	}
	s.emitCreated(ctx, order, in.UserID, summary, &log)

	return Receipt{
		OrderID: orderID,
		Status:  order.Status,
		Total:   order.Total,
		Lines:   composed,
		Summary: summary,
	}, nil
}

func (s *Service) emitCreated(ctx context.Context, order db.Order, userID string, summary pricing.Summary, log *zerolog.Logger) {
	if s.Events == nil {
		return
	}
	payload := events.OrderCreated{
		OrderID: db.UUIDString(order.ID),
		UserID:  userID,
		Total:   order.Total,
		Items:   summary.Items,
	}
	if s.Users != nil && order.UserID.Valid {
		if user, err := s.Users.GetUserByID(ctx, order.UserID); err == nil {
			payload.Email = user.Email
		}
	}
	if _, err := s.Events.Emit(ctx, events.TopicOrderCreated, order.ID, payload); err != nil {
		log.Warn().Err(err).Msg("checkout_event_failed")
	}
}

func (s *Service) loadCart(ctx context.Context, cartID, userID string) (cart.Cart, error) {
	if cartID == "" {
		return cart.Cart{}, cart.ErrNotFound
	}
	c, err := s.Carts.GetCart(ctx, cartID)
	if err != nil {
		return cart.Cart{}, err
	}
	if owner := c.Owner(); owner != "" && owner != userID {
		return cart.Cart{}, ErrCartForbidden
	}
	return c, nil
}

func (s *Service) composer() pricing.Composer {
	return pricing.Composer{Lookup: s.Products, Concurrency: s.LookupConcurrency}
}

func (s *Service) ready() error {
	if s == nil || s.Carts == nil || s.Orders == nil || s.Products == nil {
		return errors.New("checkout service not configured")
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

func checkoutResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyCart):
		return "empty"
	case errors.Is(err, ErrInProgress):
		return "conflict"
	case errors.Is(err, pricing.ErrProductNotFound):
		return "product_missing"
	default:
		return "error"
	}
}
