package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
)

// Resolution is the outcome of a catalog lookup. Known is nil when the UID is
// not in the catalog.
type Resolution struct {
	UID   string
	Known *domain.Product
}

type Resolver struct {
	products domain.ProductRepository
}

func NewResolver(products domain.ProductRepository) *Resolver {
	return &Resolver{products: products}
}

// Resolve looks a UID up in the catalog. A missing product is not an error.
func (r *Resolver) Resolve(ctx context.Context, uid string) (Resolution, error) {
	normalized := normalizeUID(uid)
	if normalized == "" {
		return Resolution{}, validationError("uid is required")
	}

	product, err := r.products.FindByUID(ctx, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrStorage) {
			return Resolution{}, err
		}
		return Resolution{}, fmt.Errorf("%w: resolve %s: %w", domain.ErrStorage, normalized, err)
	}
	return Resolution{UID: normalized, Known: product}, nil
}

func normalizeUID(uid string) string {
	return strings.ToUpper(strings.TrimSpace(uid))
}
