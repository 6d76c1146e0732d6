package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/chatkeeper/internal/common"
)

// maxOwnerLen matches the width of the owner columns.
const maxOwnerLen = 200

// withTimeout bounds a single persistence call by the configured operation
// timeout. A caller deadline that is already shorter wins.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func validateOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return fmt.Errorf("%w: owner is required", common.ErrValidation)
	}
	if utf8.RuneCountInString(owner) > maxOwnerLen {
		return fmt.Errorf("%w: owner is longer than %d characters", common.ErrValidation, maxOwnerLen)
	}
	return nil
}

// checkWidth reports a value that does not fit a column of width characters.
func checkWidth(field, value string, width int) error {
	if utf8.RuneCountInString(value) > width {
		return fmt.Errorf("%w: %s is longer than %d characters", common.ErrValidation, field, width)
	}
	return nil
}

// effectiveLimit applies the configured default to non-positive limits.
func effectiveLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}

// reverse flips newest-first rows into display order.
func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
