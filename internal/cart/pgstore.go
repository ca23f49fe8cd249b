package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

type cartQueries interface {
	CreateCart(ctx context.Context, userID pgtype.UUID) (db.Cart, error)
	GetCart(ctx context.Context, id pgtype.UUID) (db.Cart, error)
	GetLatestCartByUser(ctx context.Context, userID pgtype.UUID) (db.Cart, error)
	AttachCartUser(ctx context.Context, arg db.AttachCartUserParams) (int64, error)
	TouchCart(ctx context.Context, id pgtype.UUID) (int64, error)
	ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]db.CartItem, error)
	IncrementCartItem(ctx context.Context, arg db.IncrementCartItemParams) (int32, error)
	SetCartItemQty(ctx context.Context, arg db.SetCartItemQtyParams) (int64, error)
	SubtractCartItem(ctx context.Context, arg db.SubtractCartItemParams) error
	DeleteCartItem(ctx context.Context, arg db.DeleteCartItemParams) error
	ClearCartItems(ctx context.Context, cartID pgtype.UUID) error
}

// PGStore keeps carts in the carts and cart_items tables.
type PGStore struct {
	Q      cartQueries
	Logger *zerolog.Logger
}

func (s PGStore) CreateCart(ctx context.Context) (Cart, error) {
	row, err := s.Q.CreateCart(ctx, pgtype.UUID{})
	if err != nil {
		return Cart{}, fmt.Errorf("create cart: %w", err)
	}
	return fromRow(row, nil), nil
}

func (s PGStore) GetCart(ctx context.Context, cartID string) (Cart, error) {
	id, err := db.ParseUUID(cartID)
	if err != nil {
		return Cart{}, ErrNotFound
	}
	row, err := s.Q.GetCart(ctx, id)
	if err != nil {
		return Cart{}, notFoundOr(err, "get cart")
	}
	return s.withItems(ctx, row)
}

func (s PGStore) FindCartByUser(ctx context.Context, userID string) (Cart, error) {
	uid, err := db.ParseUUID(userID)
	if err != nil {
		return Cart{}, ErrNotFound
	}
	row, err := s.Q.GetLatestCartByUser(ctx, uid)
	if err != nil {
		return Cart{}, notFoundOr(err, "find cart by user")
	}
	return s.withItems(ctx, row)
}

func (s PGStore) AttachUser(ctx context.Context, cartID, userID string) error {
	id, err := db.ParseUUID(cartID)
	if err != nil {
		return ErrNotFound
	}
	uid, err := db.ParseUUID(userID)
	if err != nil {
		return fmt.Errorf("attach user: invalid user id: %w", err)
	}
	n, err := s.Q.AttachCartUser(ctx, db.AttachCartUserParams{ID: id, UserID: uid})
	if err != nil {
		return fmt.Errorf("attach user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementLine runs a single INSERT .. ON CONFLICT DO UPDATE guarded by the
// limit, so concurrent adds are serialised by the row lock.
func (s PGStore) IncrementLine(ctx context.Context, cartID, productID string, delta, limit int) (int, error) {
	id, err := db.ParseUUID(cartID)
	if err != nil {
		return 0, ErrNotFound
	}
	pid, err := db.ParseUUID(productID)
	if err != nil {
		return 0, fmt.Errorf("product %s: %w", productID, pricing.ErrProductNotFound)
	}
	qty, err := s.Q.IncrementCartItem(ctx, db.IncrementCartItemParams{
		CartID:    id,
		ProductID: pid,
		Qty:       int32(delta),
		MaxQty:    int32(limit),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrQuantityLimit
		}
		return 0, notFoundOr(err, "increment cart item")
	}
	s.touch(ctx, id)
	return int(qty), nil
}

func (s PGStore) SetLineQuantity(ctx context.Context, cartID, productID string, qty int) error {
	id, err := db.ParseUUID(cartID)
	if err != nil {
		return ErrNotFound
	}
	pid, err := db.ParseUUID(productID)
	if err != nil {
		return ErrLineNotFound
	}
	n, err := s.Q.SetCartItemQty(ctx, db.SetCartItemQtyParams{CartID: id, ProductID: pid, Qty: int32(qty)})
	if err != nil {
		return fmt.Errorf("set cart item qty: %w", err)
	}
	if n == 0 {
		return ErrLineNotFound
	}
	s.touch(ctx, id)
	return nil
}

func (s PGStore) RemoveLine(ctx context.Context, cartID, productID string) error {
	id, err := db.ParseUUID(cartID)
	if err != nil {
		return ErrNotFound
	}
	pid, err := db.ParseUUID(productID)
	if err != nil {
		return nil
	}
	if err := s.Q.DeleteCartItem(ctx, db.DeleteCartItemParams{CartID: id, ProductID: pid}); err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return nil
}

func (s PGStore) ClearLines(ctx context.Context, cartID string) error {
	id, err := db.ParseUUID(cartID)
	if err != nil {
		return ErrNotFound
	}
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	if err := s.Q.ClearCartItems(ctx, id); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}
	return nil
}

func (s PGStore) ReleaseLines(ctx context.Context, cartID string, lines []pricing.Line) error {
	id, err := db.ParseUUID(cartID)
	if err != nil {
		return ErrNotFound
	}
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	for _, l := range lines {
		pid, err := db.ParseUUID(l.ProductID)
		if err != nil {
			continue
		}
		err = s.Q.SubtractCartItem(ctx, db.SubtractCartItemParams{CartID: id, ProductID: pid, Qty: int32(l.Quantity)})
		if err != nil {
			return fmt.Errorf("release line %s: %w", l.ProductID, err)
		}
	}
	return nil
}

// exists bumps updated_at and reports ErrNotFound when no cart row matched.
func (s PGStore) exists(ctx context.Context, id pgtype.UUID) error {
	n, err := s.Q.TouchCart(ctx, id)
	if err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// touch records activity after a line change. The change itself has
// already been applied, so a failure is only logged.
func (s PGStore) touch(ctx context.Context, id pgtype.UUID) {
	if _, err := s.Q.TouchCart(ctx, id); err != nil && s.Logger != nil {
		s.Logger.Warn().Err(err).Str("cart_id", db.UUIDString(id)).Msg("cart_touch_failed")
	}
}

func (s PGStore) withItems(ctx context.Context, row db.Cart) (Cart, error) {
	items, err := s.Q.ListCartItems(ctx, row.ID)
	if err != nil {
		return Cart{}, fmt.Errorf("list cart items: %w", err)
	}
	return fromRow(row, items), nil
}

func fromRow(row db.Cart, items []db.CartItem) Cart {
	c := Cart{
		ID:        db.UUIDString(row.ID),
		UserID:    optional(db.UUIDString(row.UserID)),
		Lines:     make([]pricing.Line, 0, len(items)),
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
	for _, it := range items {
		c.Lines = append(c.Lines, pricing.Line{ProductID: db.UUIDString(it.ProductID), Quantity: int(it.Qty)})
	}
	return c
}

// notFoundOr maps missing rows and cart foreign-key violations to ErrNotFound.
func notFoundOr(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
