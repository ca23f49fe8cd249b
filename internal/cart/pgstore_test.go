package cart_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

type stubCartQueries struct {
	incrementErr error
	incrementQty int32
	items        []db.CartItem
	touched      int
	touchErr     error
	missingCart  bool
	subtracted   []db.SubtractCartItemParams
	cleared      int
}

func (s *stubCartQueries) CreateCart(context.Context, pgtype.UUID) (db.Cart, error) {
	return db.Cart{}, errors.New("not used")
}

func (s *stubCartQueries) GetCart(_ context.Context, id pgtype.UUID) (db.Cart, error) {
	return db.Cart{ID: id}, nil
}

func (s *stubCartQueries) GetLatestCartByUser(context.Context, pgtype.UUID) (db.Cart, error) {
	return db.Cart{}, pgx.ErrNoRows
}

func (s *stubCartQueries) AttachCartUser(context.Context, db.AttachCartUserParams) (int64, error) {
	return 0, nil
}

func (s *stubCartQueries) TouchCart(context.Context, pgtype.UUID) (int64, error) {
	s.touched++
	if s.touchErr != nil {
		return 0, s.touchErr
	}
	if s.missingCart {
		return 0, nil
	}
	return 1, nil
}

func (s *stubCartQueries) ListCartItems(context.Context, pgtype.UUID) ([]db.CartItem, error) {
	return s.items, nil
}

func (s *stubCartQueries) IncrementCartItem(context.Context, db.IncrementCartItemParams) (int32, error) {
	return s.incrementQty, s.incrementErr
}

func (s *stubCartQueries) SetCartItemQty(context.Context, db.SetCartItemQtyParams) (int64, error) {
	return 0, nil
}

func (s *stubCartQueries) SubtractCartItem(_ context.Context, arg db.SubtractCartItemParams) error {
	s.subtracted = append(s.subtracted, arg)
	return nil
}

func (s *stubCartQueries) DeleteCartItem(context.Context, db.DeleteCartItemParams) error {
	return nil
}

func (s *stubCartQueries) ClearCartItems(context.Context, pgtype.UUID) error {
	s.cleared++
	return nil
}

const pgCartID = "55555555-5555-5555-5555-555555555555"

func TestPGStoreIncrementMapping(t *testing.T) {
	ctx := context.Background()

	q := &stubCartQueries{incrementQty: 4}
	n, err := cart.PGStore{Q: q}.IncrementLine(ctx, pgCartID, kaosID, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, 1, q.touched)

	_, err = cart.PGStore{Q: &stubCartQueries{incrementErr: pgx.ErrNoRows}}.IncrementLine(ctx, pgCartID, kaosID, 1, 10)
	require.ErrorIs(t, err, cart.ErrQuantityLimit)

	fk := &pgconn.PgError{Code: "23503"}
	_, err = cart.PGStore{Q: &stubCartQueries{incrementErr: fk}}.IncrementLine(ctx, pgCartID, kaosID, 1, 10)
	require.ErrorIs(t, err, cart.ErrNotFound)

	_, err = cart.PGStore{Q: q}.IncrementLine(ctx, "not-a-uuid", kaosID, 1, 10)
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestPGStoreMissingRowsAndLines(t *testing.T) {
	ctx := context.Background()
	store := cart.PGStore{Q: &stubCartQueries{}}

	_, err := store.FindCartByUser(ctx, kaosID)
	require.ErrorIs(t, err, cart.ErrNotFound)
	require.ErrorIs(t, store.AttachUser(ctx, pgCartID, kaosID), cart.ErrNotFound)
	require.ErrorIs(t, store.SetLineQuantity(ctx, pgCartID, kaosID, 2), cart.ErrLineNotFound)
}

func TestPGStoreGetCartLines(t *testing.T) {
	pid, err := db.ParseUUID(kaosID)
	require.NoError(t, err)
	store := cart.PGStore{Q: &stubCartQueries{items: []db.CartItem{{ProductID: pid, Qty: 3}}}}

	c, err := store.GetCart(context.Background(), pgCartID)
	require.NoError(t, err)
	require.Equal(t, pgCartID, c.ID)
	require.Nil(t, c.UserID)
	require.Len(t, c.Lines, 1)
	require.Equal(t, kaosID, c.Lines[0].ProductID)
	require.Equal(t, 3, c.Lines[0].Quantity)
}

func TestPGStoreTouchFailureDoesNotFailMutation(t *testing.T) {
	q := &stubCartQueries{incrementQty: 2, touchErr: errors.New("connection reset")}
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	n, err := cart.PGStore{Q: q, Logger: &logger}.IncrementLine(context.Background(), pgCartID, kaosID, 2, 10)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Contains(t, buf.String(), "cart_touch_failed")
}

func TestPGStoreClearAndReleaseUnknownCart(t *testing.T) {
	ctx := context.Background()
	q := &stubCartQueries{missingCart: true}
	store := cart.PGStore{Q: q}

	require.ErrorIs(t, store.ClearLines(ctx, pgCartID), cart.ErrNotFound)
	require.ErrorIs(t, store.ReleaseLines(ctx, pgCartID, []pricing.Line{{ProductID: kaosID, Quantity: 1}}), cart.ErrNotFound)
	require.Zero(t, q.cleared)
	require.Empty(t, q.subtracted)
}

func TestPGStoreReleaseLinesSubtractsSnapshot(t *testing.T) {
	q := &stubCartQueries{}
	err := cart.PGStore{Q: q}.ReleaseLines(context.Background(), pgCartID, []pricing.Line{
		{ProductID: kaosID, Quantity: 2},
		{ProductID: sepatuID, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, q.subtracted, 2)
	require.Equal(t, int32(2), q.subtracted[0].Qty)
	require.Equal(t, kaosID, db.UUIDString(q.subtracted[0].ProductID))
	require.Equal(t, int32(1), q.subtracted[1].Qty)
}
