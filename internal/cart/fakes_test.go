package cart_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

type memStore struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart
	order []string
}

func newMemStore() *memStore {
	return &memStore{carts: map[string]*cart.Cart{}}
}

func (m *memStore) CreateCart(context.Context) (cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	c := &cart.Cart{ID: uuid.NewString(), Lines: []pricing.Line{}, CreatedAt: now, UpdatedAt: now}
	m.carts[c.ID] = c
	m.order = append(m.order, c.ID)
	return copyCart(c), nil
}

func (m *memStore) GetCart(_ context.Context, id string) (cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return cart.Cart{}, cart.ErrNotFound
	}
	return copyCart(c), nil
}

func (m *memStore) FindCartByUser(_ context.Context, userID string) (cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		c := m.carts[m.order[i]]
		if c.UserID != nil && *c.UserID == userID {
			return copyCart(c), nil
		}
	}
	return cart.Cart{}, cart.ErrNotFound
}

func (m *memStore) AttachUser(_ context.Context, cartID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return cart.ErrNotFound
	}
	c.UserID = &userID
	return nil
}

func (m *memStore) IncrementLine(_ context.Context, cartID, productID string, delta, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return 0, cart.ErrNotFound
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			if c.Lines[i].Quantity+delta > limit {
				return 0, cart.ErrQuantityLimit
			}
			c.Lines[i].Quantity += delta
			return c.Lines[i].Quantity, nil
		}
	}
	if delta > limit {
		return 0, cart.ErrQuantityLimit
	}
	c.Lines = append(c.Lines, pricing.Line{ProductID: productID, Quantity: delta})
	return delta, nil
}

func (m *memStore) SetLineQuantity(_ context.Context, cartID, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return cart.ErrNotFound
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = qty
			return nil
		}
	}
	return cart.ErrLineNotFound
}

func (m *memStore) RemoveLine(_ context.Context, cartID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return nil
	}
	kept := c.Lines[:0]
	for _, l := range c.Lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	c.Lines = kept
	return nil
}

func (m *memStore) ClearLines(_ context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return cart.ErrNotFound
	}
	c.Lines = []pricing.Line{}
	return nil
}

func (m *memStore) ReleaseLines(_ context.Context, cartID string, lines []pricing.Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return cart.ErrNotFound
	}
	ordered := map[string]int{}
	for _, l := range lines {
		ordered[l.ProductID] += l.Quantity
	}
	kept := c.Lines[:0]
	for _, l := range c.Lines {
		l.Quantity -= ordered[l.ProductID]
		if l.Quantity > 0 {
			kept = append(kept, l)
		}
	}
	c.Lines = kept
	return nil
}

func copyCart(c *cart.Cart) cart.Cart {
	out := *c
	out.Lines = append([]pricing.Line(nil), c.Lines...)
	return out
}

type fakeProducts struct {
	mu       sync.Mutex
	products map[string]pricing.Product
	calls    int
}

func (f *fakeProducts) ProductByID(_ context.Context, id string) (pricing.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	p, ok := f.products[id]
	if !ok {
		return pricing.Product{}, fmt.Errorf("product %s: %w", id, pricing.ErrProductNotFound)
	}
	return p, nil
}

func money(v pricing.Money) *pricing.Money { return &v }
func percent(v int32) *int32             { return &v }

const (
	kaosID   = "11111111-1111-1111-1111-111111111111"
	sepatuID = "22222222-2222-2222-2222-222222222222"
	goneID   = "33333333-3333-3333-3333-333333333333"
	offID    = "44444444-4444-4444-4444-444444444444"
)

func catalogFixture() *fakeProducts {
	return &fakeProducts{products: map[string]pricing.Product{
		kaosID:   {ID: kaosID, Title: "Kaos Hitam", Slug: "kaos-hitam", Price: money(250000), DiscountPercentage: percent(10), Status: "active"},
		sepatuID: {ID: sepatuID, Title: "Sepatu Putih", Slug: "sepatu-putih", Price: money(200000), Status: "active"},
		goneID:   {ID: goneID, Title: "Tas", Slug: "tas", Price: money(100000), Status: "active", Deleted: true},
		offID:    {ID: offID, Title: "Topi", Slug: "topi", Price: money(50000), Status: "inactive"},
	}}
}

func newService(store cart.Store, products *fakeProducts) *cart.Service {
	return &cart.Service{Store: store, Products: products, MaxQuantity: 10}
}
