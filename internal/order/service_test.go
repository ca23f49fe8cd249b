package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/events"
	"github.com/noah-isme/toko-storefront/internal/order"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

func newOrderService(q *fakeQueries, emitter *fakeEmitter) *order.Service {
	return &order.Service{Q: q, Products: catalog(), Events: emitter}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{order.StatusPending, order.StatusConfirmed, true},
		{order.StatusConfirmed, order.StatusShipping, true},
		{order.StatusShipping, order.StatusCompleted, true},
		{order.StatusPending, order.StatusCanceled, true},
		{order.StatusConfirmed, order.StatusCanceled, true},
		{order.StatusShipping, order.StatusCanceled, false},
		{order.StatusPending, order.StatusShipping, false},
		{order.StatusCompleted, order.StatusPending, false},
		{order.StatusCanceled, order.StatusConfirmed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, order.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestGetUsesFrozenPrices(t *testing.T) {
	q := newFakeQueries()
	o := q.add(userA, cartA, order.StatusPending, 450000, time.Now(),
		db.OrderItem{ProductID: mustUUID(kaosID), Qty: 2, Price: 250000, DiscountPercentage: 10},
	)
	svc := newOrderService(q, &fakeEmitter{})

	detail, err := svc.Get(context.Background(), db.UUIDString(o.ID))
	require.NoError(t, err)
	require.Len(t, detail.Lines, 1)
	line := detail.Lines[0]
	assert.Equal(t, "Kaos Hitam", line.Title)
	assert.Equal(t, pricing.Money(250000), line.UnitPriceOriginal)
	assert.Equal(t, pricing.Money(225000), line.NewPrice)
	assert.Equal(t, pricing.Money(450000), detail.Summary.Total)
	assert.Equal(t, detail.Total, detail.Summary.Total)
}

func TestGetKeepsSoftDeletedProducts(t *testing.T) {
	q := newFakeQueries()
	o := q.add(userA, "", order.StatusCompleted, 50000, time.Now(),
		db.OrderItem{ProductID: mustUUID(topiID), Qty: 1, Price: 50000},
	)
	detail, err := newOrderService(q, &fakeEmitter{}).Get(context.Background(), db.UUIDString(o.ID))
	require.NoError(t, err)
	assert.Equal(t, "Topi", detail.Lines[0].Title)
	assert.Equal(t, pricing.Money(50000), detail.Summary.Total)
}

func TestOwnershipChecks(t *testing.T) {
	q := newFakeQueries()
	o := q.add(userA, cartA, order.StatusPending, 0, time.Now())
	svc := newOrderService(q, &fakeEmitter{})
	ctx := context.Background()
	id := db.UUIDString(o.ID)

	_, err := svc.GetForUser(ctx, id, userB)
	require.ErrorIs(t, err, order.ErrNotFound)
	_, err = svc.GetForUser(ctx, id, userA)
	require.NoError(t, err)

	_, err = svc.GetForShopper(ctx, id, "", cartA)
	require.NoError(t, err)
	_, err = svc.GetForShopper(ctx, id, userB, "")
	require.ErrorIs(t, err, order.ErrNotFound)

	_, err = svc.Get(ctx, "not-a-uuid")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestTransitionEmitsEvent(t *testing.T) {
	q := newFakeQueries()
	o := q.add(userA, "", order.StatusPending, 0, time.Now())
	emitter := &fakeEmitter{}
	svc := newOrderService(q, emitter)
	ctx := context.Background()
	id := db.UUIDString(o.ID)

	updated, err := svc.Transition(ctx, id, order.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, updated.Status)

	_, err = svc.Transition(ctx, id, order.StatusCompleted)
	require.ErrorIs(t, err, order.ErrInvalidTransition)

	_, err = svc.Transition(ctx, id, "refunded")
	require.ErrorIs(t, err, order.ErrUnknownStatus)

	require.Len(t, emitter.events, 1)
	assert.Equal(t, events.TopicOrderStatusChanged, emitter.events[0].topic)
	assert.Equal(t, events.OrderStatusChanged{OrderID: id, From: "pending", To: "confirmed"}, emitter.events[0].payload)
}

func TestCustomerCancel(t *testing.T) {
	q := newFakeQueries()
	pending := q.add(userA, "", order.StatusPending, 0, time.Now())
	confirmed := q.add(userA, "", order.StatusConfirmed, 0, time.Now())
	svc := newOrderService(q, &fakeEmitter{})
	ctx := context.Background()

	_, err := svc.Cancel(ctx, db.UUIDString(pending.ID), userB)
	require.ErrorIs(t, err, order.ErrNotFound)

	canceled, err := svc.Cancel(ctx, db.UUIDString(pending.ID), userA)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCanceled, canceled.Status)

	_, err = svc.Cancel(ctx, db.UUIDString(confirmed.ID), userA)
	require.ErrorIs(t, err, order.ErrInvalidTransition)
}

func TestListForUserPaginates(t *testing.T) {
	q := newFakeQueries()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		q.add(userA, "", order.StatusPending, int64(i), base.Add(time.Duration(i)*time.Hour))
	}
	q.add(userB, "", order.StatusPending, 99, base)
	svc := newOrderService(q, &fakeEmitter{})

	page, err := svc.ListForUser(context.Background(), userA, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Pagination.TotalItems)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, pricing.Money(2), page.Items[0].Total)
	assert.Equal(t, pricing.Money(1), page.Items[1].Total)
}

func TestListAdminFiltersStatus(t *testing.T) {
	q := newFakeQueries()
	q.add(userA, "", order.StatusPending, 1, time.Now())
	q.add(userA, "", order.StatusShipping, 2, time.Now())
	svc := newOrderService(q, &fakeEmitter{})
	ctx := context.Background()

	all, err := svc.ListAdmin(ctx, "", 1, 20)
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	shipping, err := svc.ListAdmin(ctx, order.StatusShipping, 1, 20)
	require.NoError(t, err)
	require.Len(t, shipping.Items, 1)
	assert.Equal(t, order.StatusShipping, shipping.Items[0].Status)

	_, err = svc.ListAdmin(ctx, "lost", 1, 20)
	require.ErrorIs(t, err, order.ErrUnknownStatus)
}
