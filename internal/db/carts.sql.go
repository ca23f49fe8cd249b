package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createCart = `-- name: CreateCart :one
INSERT INTO carts (user_id) VALUES ($1)
RETURNING id, user_id, created_at, updated_at`

func (q *Queries) CreateCart(ctx context.Context, userID pgtype.UUID) (Cart, error) {
	row := q.db.QueryRow(ctx, createCart, userID)
	var i Cart
	err := row.Scan(&i.ID, &i.UserID, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const getCart = `-- name: GetCart :one
SELECT id, user_id, created_at, updated_at FROM carts WHERE id = $1`

func (q *Queries) GetCart(ctx context.Context, id pgtype.UUID) (Cart, error) {
	row := q.db.QueryRow(ctx, getCart, id)
	var i Cart
	err := row.Scan(&i.ID, &i.UserID, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const getLatestCartByUser = `-- name: GetLatestCartByUser :one
SELECT id, user_id, created_at, updated_at FROM carts
WHERE user_id = $1
ORDER BY updated_at DESC
LIMIT 1`

func (q *Queries) GetLatestCartByUser(ctx context.Context, userID pgtype.UUID) (Cart, error) {
	row := q.db.QueryRow(ctx, getLatestCartByUser, userID)
	var i Cart
	err := row.Scan(&i.ID, &i.UserID, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const attachCartUser = `-- name: AttachCartUser :execrows
UPDATE carts SET user_id = $2, updated_at = now() WHERE id = $1`

type AttachCartUserParams struct {
	ID     pgtype.UUID `json:"id"`
	UserID pgtype.UUID `json:"user_id"`
}

func (q *Queries) AttachCartUser(ctx context.Context, arg AttachCartUserParams) (int64, error) {
	tag, err := q.db.Exec(ctx, attachCartUser, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const touchCart = `-- name: TouchCart :execrows
UPDATE carts SET updated_at = now() WHERE id = $1`

func (q *Queries) TouchCart(ctx context.Context, id pgtype.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, touchCart, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listCartItems = `-- name: ListCartItems :many
SELECT cart_id, product_id, qty, added_at, updated_at
FROM cart_items
WHERE cart_id = $1
ORDER BY added_at ASC, product_id ASC`

func (q *Queries) ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]CartItem, error) {
	rows, err := q.db.Query(ctx, listCartItems, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CartItem
	for rows.Next() {
		var i CartItem
		if err := rows.Scan(&i.CartID, &i.ProductID, &i.Qty, &i.AddedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const incrementCartItem = `-- name: IncrementCartItem :one
INSERT INTO cart_items (cart_id, product_id, qty)
VALUES ($1, $2, $3)
ON CONFLICT (cart_id, product_id) DO UPDATE
SET qty = cart_items.qty + EXCLUDED.qty, updated_at = now()
WHERE cart_items.qty + EXCLUDED.qty <= $4
RETURNING qty`

type IncrementCartItemParams struct {
	CartID    pgtype.UUID `json:"cart_id"`
	ProductID pgtype.UUID `json:"product_id"`
	Qty       int32       `json:"qty"`
	MaxQty    int32       `json:"max_qty"`
}

// IncrementCartItem inserts the line or adds to it in one statement. When
// the merged quantity would exceed MaxQty no row is returned (pgx.ErrNoRows).
func (q *Queries) IncrementCartItem(ctx context.Context, arg IncrementCartItemParams) (int32, error) {
	row := q.db.QueryRow(ctx, incrementCartItem, arg.CartID, arg.ProductID, arg.Qty, arg.MaxQty)
	var qty int32
	err := row.Scan(&qty)
	return qty, err
}

const setCartItemQty = `-- name: SetCartItemQty :execrows
UPDATE cart_items SET qty = $3, updated_at = now()
WHERE cart_id = $1 AND product_id = $2`

type SetCartItemQtyParams struct {
	CartID    pgtype.UUID `json:"cart_id"`
	ProductID pgtype.UUID `json:"product_id"`
	Qty       int32       `json:"qty"`
}

func (q *Queries) SetCartItemQty(ctx context.Context, arg SetCartItemQtyParams) (int64, error) {
	tag, err := q.db.Exec(ctx, setCartItemQty, arg.CartID, arg.ProductID, arg.Qty)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const subtractCartItem = `-- name: SubtractCartItem :exec
WITH reduced AS (
	UPDATE cart_items SET qty = qty - $3, updated_at = now()
	WHERE cart_id = $1 AND product_id = $2 AND qty > $3
	RETURNING product_id
)
DELETE FROM cart_items
WHERE cart_id = $1 AND product_id = $2 AND qty <= $3`

type SubtractCartItemParams struct {
	CartID    pgtype.UUID `json:"cart_id"`
	ProductID pgtype.UUID `json:"product_id"`
	Qty       int32       `json:"qty"`
}

// SubtractCartItem lowers the line by Qty, deleting it when nothing is left.
func (q *Queries) SubtractCartItem(ctx context.Context, arg SubtractCartItemParams) error {
	_, err := q.db.Exec(ctx, subtractCartItem, arg.CartID, arg.ProductID, arg.Qty)
	return err
}

const deleteCartItem = `-- name: DeleteCartItem :exec
DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`

type DeleteCartItemParams struct {
	CartID    pgtype.UUID `json:"cart_id"`
	ProductID pgtype.UUID `json:"product_id"`
}

func (q *Queries) DeleteCartItem(ctx context.Context, arg DeleteCartItemParams) error {
	_, err := q.db.Exec(ctx, deleteCartItem, arg.CartID, arg.ProductID)
	return err
}

const clearCartItems = `-- name: ClearCartItems :exec
DELETE FROM cart_items WHERE cart_id = $1`

func (q *Queries) ClearCartItems(ctx context.Context, cartID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, clearCartItems, cartID)
	return err
}
