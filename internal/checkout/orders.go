package checkout

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Draft is everything needed to persist an order.
type Draft struct {
	UserID   string
	CartID   string
	Customer Customer
	Lines    []pricing.OrderLine
	Total    pricing.Money
}

// OrderWriter persists an order and its lines atomically.
type OrderWriter interface {
	CreateOrder(ctx context.Context, d Draft) (db.Order, error)
}

type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// PGOrderWriter writes the order header and lines in one transaction.
// *pgxpool.Pool satisfies Pool.
type PGOrderWriter struct {
	Pool txBeginner
}

func (w PGOrderWriter) CreateOrder(ctx context.Context, d Draft) (db.Order, error) {
	uid, err := optionalUUID(d.UserID)
	if err != nil {
		return db.Order{}, fmt.Errorf("user id: %w", err)
	}
	cid, err := optionalUUID(d.CartID)
	if err != nil {
		return db.Order{}, fmt.Errorf("cart id: %w", err)
	}

	tx, err := w.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return db.Order{}, fmt.Errorf("begin order tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	qtx := db.New(tx)

	order, err := qtx.CreateOrder(ctx, db.CreateOrderParams{
		UserID:   uid,
		CartID:   cid,
		FullName: d.Customer.FullName,
		Phone:    d.Customer.Phone,
		Address:  d.Customer.Address,
		Note:     db.Text(d.Customer.Note),
		Total:    d.Total,
	})
	if err != nil {
		return db.Order{}, fmt.Errorf("insert order: %w", err)
	}
	for i, line := range d.Lines {
		pid, err := db.ParseUUID(line.ProductID)
		if err != nil {
			return db.Order{}, fmt.Errorf("line %d product id: %w", i, err)
		}
		if err := qtx.InsertOrderItem(ctx, db.InsertOrderItemParams{
			OrderID:            order.ID,
			Position:           int32(i),
			ProductID:          pid,
			Qty:                int32(line.Quantity),
			Price:              line.Price,
			DiscountPercentage: line.DiscountPercentage,
		}); err != nil {
			return db.Order{}, fmt.Errorf("insert order item %d: %w", i, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return db.Order{}, fmt.Errorf("commit order: %w", err)
	}
	return order, nil
}

func optionalUUID(id string) (pgtype.UUID, error) {
	if id == "" {
		return pgtype.UUID{}, nil
	}
	return db.ParseUUID(id)
}
