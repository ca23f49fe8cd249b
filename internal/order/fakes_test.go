package order_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

type fakeQueries struct {
	mu     sync.Mutex
	orders map[[16]byte]db.Order
	items  map[[16]byte][]db.OrderItem
}

func newFakeQueries() *fakeQueries {
	return &fakeQueries{orders: map[[16]byte]db.Order{}, items: map[[16]byte][]db.OrderItem{}}
}

func (f *fakeQueries) add(userID, cartID, status string, total int64, created time.Time, items ...db.OrderItem) db.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	var uid, cid pgtype.UUID
	if userID != "" {
		uid, _ = db.ParseUUID(userID)
	}
	if cartID != "" {
		cid, _ = db.ParseUUID(cartID)
	}
	o := db.Order{
		ID:        id,
		UserID:    uid,
		CartID:    cid,
		Status:    status,
		FullName:  "Budi",
		Phone:     "0812",
		Address:   "Jakarta",
		Total:     total,
		CreatedAt: pgtype.Timestamptz{Time: created, Valid: true},
		UpdatedAt: pgtype.Timestamptz{Time: created, Valid: true},
	}
	f.orders[id.Bytes] = o
	for i := range items {
		items[i].OrderID = id
		items[i].Position = int32(i)
	}
	f.items[id.Bytes] = items
	return o
}

func (f *fakeQueries) GetOrder(_ context.Context, id pgtype.UUID) (db.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id.Bytes]
	if !ok {
		return db.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (f *fakeQueries) ListOrderItems(_ context.Context, orderID pgtype.UUID) ([]db.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]db.OrderItem(nil), f.items[orderID.Bytes]...), nil
}

func (f *fakeQueries) filtered(match func(db.Order) bool) []db.Order {
	var out []db.Order
	for _, o := range f.orders {
		if match(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Time.After(out[j].CreatedAt.Time) })
	return out
}

func window(rows []db.Order, limit, offset int32) []db.Order {
	if int(offset) >= len(rows) {
		return nil
	}
	end := int(offset + limit)
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func (f *fakeQueries) ListOrdersByUser(_ context.Context, arg db.ListOrdersByUserParams) ([]db.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.filtered(func(o db.Order) bool { return o.UserID == arg.UserID })
	return window(rows, arg.Limit, arg.Offset), nil
}

func (f *fakeQueries) CountOrdersByUser(_ context.Context, userID pgtype.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.filtered(func(o db.Order) bool { return o.UserID == userID }))), nil
}

func (f *fakeQueries) ListOrdersAdmin(_ context.Context, arg db.ListOrdersAdminParams) ([]db.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.filtered(func(o db.Order) bool { return !arg.Status.Valid || o.Status == arg.Status.String })
	return window(rows, arg.Limit, arg.Offset), nil
}

func (f *fakeQueries) CountOrdersAdmin(_ context.Context, status pgtype.Text) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.filtered(func(o db.Order) bool { return !status.Valid || o.Status == status.String }))), nil
}

func (f *fakeQueries) UpdateOrderStatusIfAllowed(_ context.Context, arg db.UpdateOrderStatusIfAllowedParams) (db.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[arg.ID.Bytes]
	if !ok {
		return db.Order{}, pgx.ErrNoRows
	}
	allowed := false
	for _, s := range arg.FromStatuses {
		if s == o.Status {
			allowed = true
		}
	}
	if !allowed {
		return db.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	f.orders[arg.ID.Bytes] = o
	return o, nil
}

type fakeProducts map[string]pricing.Product

func (f fakeProducts) ProductByID(_ context.Context, id string) (pricing.Product, error) {
	p, ok := f[id]
	if !ok {
		return pricing.Product{}, fmt.Errorf("product %s: %w", id, pricing.ErrProductNotFound)
	}
	return p, nil
}

type emitted struct {
	topic   string
	payload any
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (f *fakeEmitter) Emit(_ context.Context, topic string, aggregateID pgtype.UUID, payload any) (db.DomainEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{topic: topic, payload: payload})
	return db.DomainEvent{Topic: topic, AggregateID: aggregateID}, nil
}

const (
	userA  = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	userB  = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
	cartA  = "cccccccc-cccc-cccc-cccc-cccccccccccc"
	kaosID = "11111111-1111-1111-1111-111111111111"
	topiID = "22222222-2222-2222-2222-222222222222"
)

func mustUUID(s string) pgtype.UUID {
	id, err := db.ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func catalog() fakeProducts {
	price := pricing.Money(300000)
	return fakeProducts{
		// Live price differs from the frozen one on purpose.
		kaosID: {ID: kaosID, Title: "Kaos Hitam", Slug: "kaos-hitam", Price: &price, Status: "active"},
		topiID: {ID: topiID, Title: "Topi", Slug: "topi", Deleted: true},
	}
}
