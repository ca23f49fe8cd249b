// Package order serves placed orders: the customer's history, the admin
// back-office and the status state machine.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/events"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Order statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusShipping  = "shipping"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
)

var (
	// ErrNotFound is returned for unknown orders and orders owned by someone else.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned when the current status does not allow the move.
	ErrInvalidTransition = errors.New("order status transition not allowed")
	// ErrUnknownStatus is returned for targets outside the status set.
	ErrUnknownStatus = errors.New("unknown order status")
)

// transitions lists, per target status, the statuses it may be reached from.
var transitions = map[string][]string{
	StatusConfirmed: {StatusPending},
	StatusShipping:  {StatusConfirmed},
	StatusCompleted: {StatusShipping},
	StatusCanceled:  {StatusPending, StatusConfirmed},
}

// CanTransition reports whether an order in status from may move to to.
func CanTransition(from, to string) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

type queries interface {
	GetOrder(ctx context.Context, id pgtype.UUID) (db.Order, error)
	ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]db.OrderItem, error)
	ListOrdersByUser(ctx context.Context, arg db.ListOrdersByUserParams) ([]db.Order, error)
	CountOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error)
	ListOrdersAdmin(ctx context.Context, arg db.ListOrdersAdminParams) ([]db.Order, error)
	CountOrdersAdmin(ctx context.Context, status pgtype.Text) (int64, error)
	UpdateOrderStatusIfAllowed(ctx context.Context, arg db.UpdateOrderStatusIfAllowedParams) (db.Order, error)
}

// Emitter publishes domain events; *events.Bus satisfies it.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID pgtype.UUID, payload any) (db.DomainEvent, error)
}

// Order is the API view of an order header.
type Order struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId,omitempty"`
	CartID    string        `json:"cartId,omitempty"`
	Status    string        `json:"status"`
	FullName  string        `json:"fullName"`
	Phone     string        `json:"phone"`
	Address   string        `json:"address"`
	Note      *string       `json:"note,omitempty"`
	Total     pricing.Money `json:"total"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Detail is an order with its lines priced from the frozen snapshot.
type Detail struct {
	Order
	Lines   []pricing.ComposedLine `json:"lines"`
	Summary pricing.Summary        `json:"summary"`
}

// Page is one page of order headers.
type Page struct {
	Items      []Order           `json:"items"`
	Pagination common.Pagination `json:"pagination"`
}

// Service reads and transitions orders.
type Service struct {
	Q                 queries
	Products          pricing.ProductLookup
	LookupConcurrency int
	Events            Emitter
	Logger            *zerolog.Logger
}

// NewService wires a Service over the generated queries.
func NewService(q *db.Queries, products pricing.ProductLookup, emitter Emitter, logger *zerolog.Logger) *Service {
	return &Service{Q: q, Products: products, Events: emitter, Logger: logger}
}

// Get loads the order and recomputes its lines with the frozen prices.
func (s *Service) Get(ctx context.Context, orderID string) (Detail, error) {
	row, err := s.load(ctx, orderID)
	if err != nil {
		return Detail{}, err
	}
	return s.detail(ctx, row)
}

// GetForUser is Get restricted to orders placed by userID.
func (s *Service) GetForUser(ctx context.Context, orderID, userID string) (Detail, error) {
	row, err := s.load(ctx, orderID)
	if err != nil {
		return Detail{}, err
	}
	if userID == "" || db.UUIDString(row.UserID) != userID {
		return Detail{}, ErrNotFound
	}
	return s.detail(ctx, row)
}

// GetForShopper returns the order when it belongs to userID or was placed
// from cartID. Used by the post-checkout confirmation page.
func (s *Service) GetForShopper(ctx context.Context, orderID, userID, cartID string) (Detail, error) {
	row, err := s.load(ctx, orderID)
	if err != nil {
		return Detail{}, err
	}
	owner := db.UUIDString(row.UserID)
	byUser := userID != "" && owner == userID
	byCart := cartID != "" && db.UUIDString(row.CartID) == cartID
	if !byUser && !byCart {
		return Detail{}, ErrNotFound
	}
	return s.detail(ctx, row)
}

// ListForUser pages the user's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, page, perPage int) (Page, error) {
	if err := s.ready(); err != nil {
		return Page{}, err
	}
	uid, err := db.ParseUUID(userID)
	if err != nil {
		return Page{}, ErrNotFound
	}
	total, err := s.Q.CountOrdersByUser(ctx, uid)
	if err != nil {
		return Page{}, fmt.Errorf("count orders: %w", err)
	}
	p := common.NewPagination(page, perPage, total)
	rows, err := s.Q.ListOrdersByUser(ctx, db.ListOrdersByUserParams{
		UserID: uid,
		Limit:  int32(perPage),
		Offset: int32(p.Offset()),
	})
	if err != nil {
		return Page{}, fmt.Errorf("list orders: %w", err)
	}
	return Page{Items: toOrders(rows), Pagination: p}, nil
}

// ListAdmin pages every order, optionally filtered by status.
func (s *Service) ListAdmin(ctx context.Context, status string, page, perPage int) (Page, error) {
	if err := s.ready(); err != nil {
		return Page{}, err
	}
	if status != "" {
		if _, ok := transitions[status]; !ok && status != StatusPending {
			return Page{}, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
		}
	}
	filter := db.Text(status)
	total, err := s.Q.CountOrdersAdmin(ctx, filter)
	if err != nil {
		return Page{}, fmt.Errorf("count orders: %w", err)
	}
	p := common.NewPagination(page, perPage, total)
	rows, err := s.Q.ListOrdersAdmin(ctx, db.ListOrdersAdminParams{
		Status: filter,
		Limit:  int32(perPage),
		Offset: int32(p.Offset()),
	})
	if err != nil {
		return Page{}, fmt.Errorf("list orders: %w", err)
	}
	return Page{Items: toOrders(rows), Pagination: p}, nil
}

// Transition moves an order to status to, guarded by the state machine.
func (s *Service) Transition(ctx context.Context, orderID, to string) (Order, error) {
	row, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	return s.transition(ctx, row, to)
}

// Cancel lets the customer cancel an order that is still pending.
func (s *Service) Cancel(ctx context.Context, orderID, userID string) (Order, error) {
	row, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if userID == "" || db.UUIDString(row.UserID) != userID {
		return Order{}, ErrNotFound
	}
	if row.Status != StatusPending {
		return Order{}, fmt.Errorf("%w: %s orders cannot be canceled by the customer", ErrInvalidTransition, row.Status)
	}
	return s.transition(ctx, row, StatusCanceled)
}

func (s *Service) transition(ctx context.Context, row db.Order, to string) (Order, error) {
	from, ok := transitions[to]
	if !ok {
		return Order{}, fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if !CanTransition(row.Status, to) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, row.Status, to)
	}
	updated, err := s.Q.UpdateOrderStatusIfAllowed(ctx, db.UpdateOrderStatusIfAllowedParams{
		ID:           row.ID,
		Status:       to,
		FromStatuses: from,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Moved by someone else between the read and the update.
			return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, row.Status, to)
		}
		return Order{}, fmt.Errorf("update order status: %w", err)
	}
	obs.RecordOrderTransition(row.Status, to)
	if s.Events != nil {
		payload := events.OrderStatusChanged{OrderID: db.UUIDString(row.ID), From: row.Status, To: to}
		if _, err := s.Events.Emit(ctx, events.TopicOrderStatusChanged, row.ID, payload); err != nil {
			s.logger().Warn().Err(err).Str("order_id", payload.OrderID).Msg("order_status_event_failed")
		}
	}
	return toOrder(updated), nil
}

func (s *Service) load(ctx context.Context, orderID string) (db.Order, error) {
	if err := s.ready(); err != nil {
		return db.Order{}, err
	}
	id, err := db.ParseUUID(orderID)
	if err != nil {
		return db.Order{}, ErrNotFound
	}
	row, err := s.Q.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.Order{}, ErrNotFound
		}
		return db.Order{}, fmt.Errorf("get order: %w", err)
	}
	return row, nil
}

func (s *Service) detail(ctx context.Context, row db.Order) (Detail, error) {
	items, err := s.Q.ListOrderItems(ctx, row.ID)
	if err != nil {
		return Detail{}, fmt.Errorf("list order items: %w", err)
	}
	lines := make([]pricing.OrderLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.OrderLine{
			ProductID:          db.UUIDString(it.ProductID),
			Quantity:           int(it.Qty),
			Price:              it.Price,
			DiscountPercentage: it.DiscountPercentage,
		})
	}
	composer := pricing.Composer{Lookup: s.Products, Concurrency: s.LookupConcurrency}
	composed, err := composer.ComposeOrder(ctx, lines)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Order: toOrder(row), Lines: composed, Summary: pricing.Summarize(composed)}, nil
}

func (s *Service) ready() error {
	if s == nil || s.Q == nil {
		return errors.New("order service not configured")
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

func toOrders(rows []db.Order) []Order {
	out := make([]Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, toOrder(row))
	}
	return out
}

func toOrder(row db.Order) Order {
	return Order{
		ID:        db.UUIDString(row.ID),
		UserID:    db.UUIDString(row.UserID),
		CartID:    db.UUIDString(row.CartID),
		Status:    row.Status,
		FullName:  row.FullName,
		Phone:     row.Phone,
		Address:   row.Address,
		Note:      db.TextPtr(row.Note),
		Total:     row.Total,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}
