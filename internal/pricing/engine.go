package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units.
type Money = int64

var (
	// ErrProductNotFound is returned when a referenced product no longer exists or is soft-deleted.
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidQuantity is returned for quantities that are not whole numbers within bounds.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrInvalidDiscount is returned for discount percentages outside 0..100.
	ErrInvalidDiscount = errors.New("invalid discount percentage")
	// ErrInvalidProduct is returned when a product record lacks a usable price.
	ErrInvalidProduct = errors.New("invalid product")
)

var hundred = decimal.NewFromInt(100)

// Product is the pricing view of a catalog product. Nil Price or
// DiscountPercentage mirror missing columns on legacy records.
type Product struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Slug               string `json:"slug"`
	Thumbnail          string `json:"thumbnail,omitempty"`
	Price              *Money `json:"price,omitempty"`
	DiscountPercentage *int32 `json:"discountPercentage,omitempty"`
	Stock              int32  `json:"stock"`
	Status             string `json:"status"`
	Deleted            bool   `json:"deleted"`
}

// Discount returns price reduced by percent, rounded half-up to a whole unit.
func Discount(price Money, percent int32) (Money, error) {
	if price < 0 {
		return 0, fmt.Errorf("price %d is negative: %w", price, ErrInvalidProduct)
	}
	if err := ValidateDiscount(percent); err != nil {
		return 0, err
	}
	discounted := decimal.NewFromInt(price).
		Mul(decimal.NewFromInt32(100 - percent)).
		Div(hundred).
		Round(0)
	return discounted.IntPart(), nil
}

// ValidateDiscount checks that percent is within 0..100 inclusive.
func ValidateDiscount(percent int32) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("discount %d outside 0..100: %w", percent, ErrInvalidDiscount)
	}
	return nil
}

// EffectivePrice returns the discounted unit price of p. A missing discount counts as zero.
func EffectivePrice(p Product) (Money, error) {
	if p.Price == nil {
		return 0, fmt.Errorf("product %s has no price: %w", p.ID, ErrInvalidProduct)
	}
	var percent int32
	if p.DiscountPercentage != nil {
		percent = *p.DiscountPercentage
	}
	return Discount(*p.Price, percent)
}

// FormatPrice renders an amount as a zero-decimal string.
func FormatPrice(m Money) string {
	return decimal.NewFromInt(m).StringFixed(0)
}
