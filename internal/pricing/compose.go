package pricing

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const defaultLookupConcurrency = 8

// Line is a cart line: a product reference and a quantity.
type Line struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// OrderLine is a line captured at checkout with its price and discount frozen.
type OrderLine struct {
	ProductID          string `json:"productId"`
	Quantity           int    `json:"quantity"`
	Price              Money  `json:"price"`
	DiscountPercentage int32  `json:"discountPercentage"`
}

// ComposedLine is a display-ready line with its effective price and total.
type ComposedLine struct {
	ProductID          string `json:"productId"`
	Title              string `json:"title"`
	Slug               string `json:"slug"`
	Thumbnail          string `json:"thumbnail,omitempty"`
	Quantity           int    `json:"quantity"`
	UnitPriceOriginal  Money  `json:"price"`
	DiscountPercentage int32  `json:"discountPercentage"`
	NewPrice           Money  `json:"newPriceAmount"`
	NewPriceText       string `json:"newPrice"`
	LineTotal          Money  `json:"lineTotal"`
}

// Summary aggregates composed lines.
type Summary struct {
	Items    int   `json:"items"`
	Subtotal Money `json:"subtotal"`
	Savings  Money `json:"savings"`
	Total    Money `json:"total"`
}

// ProductLookup resolves a product by id. Implementations return
// ErrProductNotFound (possibly wrapped) when no record exists.
type ProductLookup interface {
	ProductByID(ctx context.Context, id string) (Product, error)
}

// ComposeLine prices a live cart line against the current product record.
func ComposeLine(line Line, product Product) (ComposedLine, error) {
	if product.Deleted {
		return ComposedLine{}, fmt.Errorf("product %s: %w", line.ProductID, ErrProductNotFound)
	}
	newPrice, err := EffectivePrice(product)
	if err != nil {
		return ComposedLine{}, err
	}
	var percent int32
	if product.DiscountPercentage != nil {
		percent = *product.DiscountPercentage
	}
	return ComposedLine{
		ProductID:          line.ProductID,
		Title:              product.Title,
		Slug:               product.Slug,
		Thumbnail:          product.Thumbnail,
		Quantity:           line.Quantity,
		UnitPriceOriginal:  *product.Price,
		DiscountPercentage: percent,
		NewPrice:           newPrice,
		NewPriceText:       FormatPrice(newPrice),
		LineTotal:          Money(line.Quantity) * newPrice,
	}, nil
}

// ComposeSnapshotLine prices an order line from its frozen values. The
// product only supplies display metadata and may be soft-deleted.
func ComposeSnapshotLine(line OrderLine, product Product) (ComposedLine, error) {
	newPrice, err := Discount(line.Price, line.DiscountPercentage)
	if err != nil {
		return ComposedLine{}, err
	}
	return ComposedLine{
		ProductID:          line.ProductID,
		Title:              product.Title,
		Slug:               product.Slug,
		Thumbnail:          product.Thumbnail,
		Quantity:           line.Quantity,
		UnitPriceOriginal:  line.Price,
		DiscountPercentage: line.DiscountPercentage,
		NewPrice:           newPrice,
		NewPriceText:       FormatPrice(newPrice),
		LineTotal:          Money(line.Quantity) * newPrice,
	}, nil
}

// Composer resolves products for many lines at once.
type Composer struct {
	Lookup      ProductLookup
	Concurrency int
}

// Compose performs one lookup per line and prices each line. Any failure
// aborts the whole composition. Result order matches input order.
func (c Composer) Compose(ctx context.Context, lines []Line) ([]ComposedLine, error) {
	out := make([]ComposedLine, len(lines))
	if len(lines) == 0 {
		return out, nil
	}
	err := c.each(ctx, len(lines), func(ctx context.Context, i int) error {
		product, err := c.resolve(ctx, lines[i].ProductID)
		if err != nil {
			return err
		}
		composed, err := ComposeLine(lines[i], product)
		if err != nil {
			return err
		}
		out[i] = composed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ComposeOrder prices frozen order lines, resolving products for display only.
func (c Composer) ComposeOrder(ctx context.Context, lines []OrderLine) ([]ComposedLine, error) {
	out := make([]ComposedLine, len(lines))
	if len(lines) == 0 {
		return out, nil
	}
	err := c.each(ctx, len(lines), func(ctx context.Context, i int) error {
		product, err := c.resolve(ctx, lines[i].ProductID)
		if err != nil {
			return err
		}
		composed, err := ComposeSnapshotLine(lines[i], product)
		if err != nil {
			return err
		}
		out[i] = composed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c Composer) resolve(ctx context.Context, productID string) (Product, error) {
	product, err := c.Lookup.ProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return Product{}, fmt.Errorf("product %s: %w", productID, ErrProductNotFound)
		}
		return Product{}, fmt.Errorf("lookup product %s: %w", productID, err)
	}
	return product, nil
}

func (c Composer) each(ctx context.Context, n int, fn func(context.Context, int) error) error {
	if c.Lookup == nil {
		return errors.New("pricing: product lookup not configured")
	}
	limit := c.Concurrency
	if limit <= 0 {
		limit = defaultLookupConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		g.Go(func() error { return fn(gctx, i) })
	}
	return g.Wait()
}

// Total sums line totals. An empty slice totals zero.
func Total(lines []ComposedLine) Money {
	var total Money
	for _, l := range lines {
		total += l.LineTotal
	}
	return total
}

// Summarize reports quantity, pre-discount subtotal, savings and total.
func Summarize(lines []ComposedLine) Summary {
	var s Summary
	for _, l := range lines {
		s.Items += l.Quantity
		s.Subtotal += Money(l.Quantity) * l.UnitPriceOriginal
		s.Total += l.LineTotal
	}
	s.Savings = s.Subtotal - s.Total
	return s
}
