package common

import (
	"strconv"
	"strings"
)

// AtoiDefault parses a decimal query value, returning def for blank or
// malformed input.
func AtoiDefault(value string, def int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return def
}
