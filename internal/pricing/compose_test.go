package pricing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	mu       sync.Mutex
	products map[string]Product
	failWith error
	calls    atomic.Int64
}

func (f *fakeLookup) ProductByID(_ context.Context, id string) (Product, error) {
	f.calls.Add(1)
	if f.failWith != nil {
		return Product{}, f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (f *fakeLookup) set(p Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ID] = p
}

func money(v Money) *Money { return &v }
func pct(v int32) *int32   { return &v }

func newFakeLookup(products ...Product) *fakeLookup {
	f := &fakeLookup{products: map[string]Product{}}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func TestComposeTotals(t *testing.T) {
	lookup := newFakeLookup(
		Product{ID: "a", Title: "Kaos", Slug: "kaos", Price: money(100000), DiscountPercentage: pct(10)},
		Product{ID: "b", Title: "Topi", Slug: "topi", Price: money(50000), DiscountPercentage: pct(0)},
		Product{ID: "c", Title: "Tas", Slug: "tas", Price: money(200000)},
	)
	c := Composer{Lookup: lookup, Concurrency: 2}

	lines, err := c.Compose(context.Background(), []Line{
		{ProductID: "a", Quantity: 2},
		{ProductID: "b", Quantity: 1},
		{ProductID: "c", Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, lines, 3)
	require.Equal(t, int64(3), lookup.calls.Load())

	require.Equal(t, "a", lines[0].ProductID)
	require.Equal(t, Money(90000), lines[0].NewPrice)
	require.Equal(t, "90000", lines[0].NewPriceText)
	require.Equal(t, Money(180000), lines[0].LineTotal)
	require.Equal(t, Money(50000), lines[1].LineTotal)
	require.Equal(t, Money(200000), lines[2].LineTotal)
	require.Equal(t, int32(0), lines[2].DiscountPercentage)

	require.Equal(t, Money(430000), Total(lines))

	summary := Summarize(lines)
	require.Equal(t, 4, summary.Items)
	require.Equal(t, Money(450000), summary.Subtotal)
	require.Equal(t, Money(20000), summary.Savings)
	require.Equal(t, Money(430000), summary.Total)
}

func TestComposeMixedCart(t *testing.T) {
	lookup := newFakeLookup(
		Product{ID: "x", Price: money(200000), DiscountPercentage: pct(10)},
		Product{ID: "y", Price: money(100000)},
		Product{ID: "z", Price: money(100000), DiscountPercentage: pct(100)},
	)
	lines, err := Composer{Lookup: lookup}.Compose(context.Background(), []Line{
		{ProductID: "x", Quantity: 1},
		{ProductID: "y", Quantity: 2},
		{ProductID: "z", Quantity: 3},
	})
	require.NoError(t, err)
	require.Equal(t, Money(380000), Total(lines))
}

func TestComposeEmptyDoesNoLookups(t *testing.T) {
	lookup := newFakeLookup()
	lines, err := Composer{Lookup: lookup}.Compose(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, lines)
	require.Equal(t, Money(0), Total(lines))
	require.Equal(t, int64(0), lookup.calls.Load())
}

func TestComposeMissingProductAborts(t *testing.T) {
	lookup := newFakeLookup(Product{ID: "a", Price: money(1000)})
	_, err := Composer{Lookup: lookup}.Compose(context.Background(), []Line{
		{ProductID: "a", Quantity: 1},
		{ProductID: "ghost", Quantity: 1},
	})
	require.ErrorIs(t, err, ErrProductNotFound)
	require.Contains(t, err.Error(), "ghost")
}

func TestComposeSoftDeletedProductIsNotFound(t *testing.T) {
	lookup := newFakeLookup(Product{ID: "a", Price: money(1000), Deleted: true})
	_, err := Composer{Lookup: lookup}.Compose(context.Background(), []Line{{ProductID: "a", Quantity: 1}})
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestComposeStoreErrorStaysDistinct(t *testing.T) {
	boom := errors.New("connection refused")
	lookup := newFakeLookup()
	lookup.failWith = boom
	_, err := Composer{Lookup: lookup}.Compose(context.Background(), []Line{{ProductID: "a", Quantity: 1}})
	require.ErrorIs(t, err, boom)
	require.False(t, errors.Is(err, ErrProductNotFound))
}

func TestComposeInvalidProductPropagates(t *testing.T) {
	lookup := newFakeLookup(Product{ID: "a"})
	_, err := Composer{Lookup: lookup}.Compose(context.Background(), []Line{{ProductID: "a", Quantity: 1}})
	require.ErrorIs(t, err, ErrInvalidProduct)
}

func TestComposeOrderUsesFrozenValues(t *testing.T) {
	lookup := newFakeLookup(Product{ID: "a", Title: "Kaos", Price: money(100000), DiscountPercentage: pct(10)})
	frozen := []OrderLine{{ProductID: "a", Quantity: 2, Price: 100000, DiscountPercentage: 10}}

	before, err := Composer{Lookup: lookup}.ComposeOrder(context.Background(), frozen)
	require.NoError(t, err)
	require.Equal(t, Money(180000), Total(before))

	lookup.set(Product{ID: "a", Title: "Kaos", Price: money(500000), DiscountPercentage: pct(50), Deleted: true})

	after, err := Composer{Lookup: lookup}.ComposeOrder(context.Background(), frozen)
	require.NoError(t, err)
	require.Equal(t, Total(before), Total(after))
	require.Equal(t, "Kaos", after[0].Title)
	require.Equal(t, Money(100000), after[0].UnitPriceOriginal)
}

func TestComposeWithoutLookup(t *testing.T) {
	_, err := Composer{}.Compose(context.Background(), []Line{{ProductID: "a", Quantity: 1}})
	require.Error(t, err)
}
