package pricing

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxQuantity is the default upper bound for a single cart line.
const MaxQuantity = 999

// ParseQuantity converts raw request input into a validated quantity.
func ParseQuantity(raw string, max int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("quantity is required: %w", ErrInvalidQuantity)
	}
	q, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("quantity %q is not a whole number: %w", trimmed, ErrInvalidQuantity)
	}
	if err := ValidateQuantity(q, max); err != nil {
		return 0, err
	}
	return q, nil
}

// ValidateQuantity enforces 1 <= q <= max. A non-positive max falls back to MaxQuantity.
func ValidateQuantity(q, max int) error {
	if max <= 0 {
		max = MaxQuantity
	}
	if q < 1 {
		return fmt.Errorf("quantity must be at least 1, got %d: %w", q, ErrInvalidQuantity)
	}
	if q > max {
		return fmt.Errorf("quantity must not exceed %d, got %d: %w", max, q, ErrInvalidQuantity)
	}
	return nil
}
