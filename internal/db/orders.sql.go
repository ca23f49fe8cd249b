package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, user_id, cart_id, status, full_name, phone, address, note, total, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.CartID,
		&i.Status,
		&i.FullName,
		&i.Phone,
		&i.Address,
		&i.Note,
		&i.Total,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectOrders(ctx context.Context, db DBTX, sql string, args ...any) ([]Order, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (user_id, cart_id, status, full_name, phone, address, note, total)
VALUES ($1, $2, 'pending', $3, $4, $5, $6, $7)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	UserID   pgtype.UUID `json:"user_id"`
	CartID   pgtype.UUID `json:"cart_id"`
	FullName string      `json:"full_name"`
	Phone    string      `json:"phone"`
	Address  string      `json:"address"`
	Note     pgtype.Text `json:"note"`
	Total    int64       `json:"total"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.UserID,
		arg.CartID,
		arg.FullName,
		arg.Phone,
		arg.Address,
		arg.Note,
		arg.Total,
	)
	return scanOrder(row)
}

const insertOrderItem = `-- name: InsertOrderItem :exec
INSERT INTO order_items (order_id, position, product_id, qty, price, discount_percentage)
VALUES ($1, $2, $3, $4, $5, $6)`

type InsertOrderItemParams struct {
	OrderID            pgtype.UUID `json:"order_id"`
	Position           int32       `json:"position"`
	ProductID          pgtype.UUID `json:"product_id"`
	Qty                int32       `json:"qty"`
	Price              int64       `json:"price"`
	DiscountPercentage int32       `json:"discount_percentage"`
}

func (q *Queries) InsertOrderItem(ctx context.Context, arg InsertOrderItemParams) error {
	_, err := q.db.Exec(ctx, insertOrderItem,
		arg.OrderID,
		arg.Position,
		arg.ProductID,
		arg.Qty,
		arg.Price,
		arg.DiscountPercentage,
	)
	return err
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id pgtype.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const listOrderItems = `-- name: ListOrderItems :many
SELECT order_id, position, product_id, qty, price, discount_percentage
FROM order_items
WHERE order_id = $1
ORDER BY position ASC`

func (q *Queries) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(&i.OrderID, &i.Position, &i.ProductID, &i.Qty, &i.Price, &i.DiscountPercentage); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listOrdersByUser = `-- name: ListOrdersByUser :many
SELECT ` + orderColumns + `
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListOrdersByUserParams struct {
	UserID pgtype.UUID `json:"user_id"`
	Limit  int32       `json:"limit"`
	Offset int32       `json:"offset"`
}

func (q *Queries) ListOrdersByUser(ctx context.Context, arg ListOrdersByUserParams) ([]Order, error) {
	return collectOrders(ctx, q.db, listOrdersByUser, arg.UserID, arg.Limit, arg.Offset)
}

const countOrdersByUser = `-- name: CountOrdersByUser :one
SELECT count(*) FROM orders WHERE user_id = $1`

func (q *Queries) CountOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countOrdersByUser, userID).Scan(&count)
	return count, err
}

const listOrdersAdmin = `-- name: ListOrdersAdmin :many
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::text IS NULL OR status = $1::text)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListOrdersAdminParams struct {
	Status pgtype.Text `json:"status"`
	Limit  int32       `json:"limit"`
	Offset int32       `json:"offset"`
}

func (q *Queries) ListOrdersAdmin(ctx context.Context, arg ListOrdersAdminParams) ([]Order, error) {
	return collectOrders(ctx, q.db, listOrdersAdmin, arg.Status, arg.Limit, arg.Offset)
}

const countOrdersAdmin = `-- name: CountOrdersAdmin :one
SELECT count(*) FROM orders WHERE ($1::text IS NULL OR status = $1::text)`

func (q *Queries) CountOrdersAdmin(ctx context.Context, status pgtype.Text) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countOrdersAdmin, status).Scan(&count)
	return count, err
}

const updateOrderStatusIfAllowed = `-- name: UpdateOrderStatusIfAllowed :one
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1 AND status = ANY($3::text[])
RETURNING ` + orderColumns

type UpdateOrderStatusIfAllowedParams struct {
	ID           pgtype.UUID `json:"id"`
	Status       string      `json:"status"`
	FromStatuses []string    `json:"from_statuses"`
}

// UpdateOrderStatusIfAllowed moves the order only when its current status is
// one of FromStatuses; otherwise pgx.ErrNoRows is returned.
func (q *Queries) UpdateOrderStatusIfAllowed(ctx context.Context, arg UpdateOrderStatusIfAllowedParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatusIfAllowed, arg.ID, arg.Status, arg.FromStatuses))
}
