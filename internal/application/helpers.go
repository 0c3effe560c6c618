package application

import (
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
)

const (
	defaultListLimit = 200
	maxListLimit     = 2000
)

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}
	return input
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
