package service

import (
	"errors"
	"math"
	"strconv"

	"github.com/imitation/backend/internal/repository"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// ClampPagination bounds limit to [1, MaxListLimit] and offset to >= 0.
// A zero limit means "not given" and becomes DefaultListLimit; a negative
// one is clamped up to 1.
func ClampPagination(limit, offset int) repository.ListOptions {
	if limit == 0 {
		limit = DefaultListLimit
	}
	limit = min(max(limit, 1), MaxListLimit)
	offset = max(offset, 0)
	return repository.ListOptions{Limit: limit, Offset: offset}
}

// ParsePagination reads raw query-string values. Anything that is not an
// integer falls back to the default for that parameter; an integer too
// large to represent is clamped like any other out-of-range value.
func ParsePagination(rawLimit, rawOffset string) repository.ListOptions {
	return ClampPagination(parseQueryInt(rawLimit), parseQueryInt(rawOffset))
}

// parseQueryInt returns 0 for a missing or non-numeric value. Values past
// the int32 range saturate toward their sign.
func parseQueryInt(raw string) int {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	// On ErrRange, ParseInt has already saturated n to MaxInt64 or MinInt64.
	return int(max(min(n, math.MaxInt32), math.MinInt32))
}
