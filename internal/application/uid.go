package application

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
)

const DefaultUIDAttempts = 32

var uidPattern = regexp.MustCompile(`^[A-Z]{3}[0-9]{4}$`)

// ValidUID reports whether uid has the catalog format: three upper-case
// letters followed by four digits.
func ValidUID(uid string) bool {
	return uidPattern.MatchString(uid)
}

// UIDGenerator draws catalog UIDs and skips the ones already taken.
type UIDGenerator struct {
	maxAttempts int
	next        func() string
}

func NewUIDGenerator(maxAttempts int) *UIDGenerator {
	return newUIDGenerator(maxAttempts, randomUID)
}

func newUIDGenerator(maxAttempts int, next func() string) *UIDGenerator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultUIDAttempts
	}
	return &UIDGenerator{maxAttempts: maxAttempts, next: next}
}

// Generate returns a UID that is not present in products. The caller should
// hand in the repository bound to the transaction that will insert the
// product so the check and the insert see the same catalog.
func (g *UIDGenerator) Generate(ctx context.Context, products domain.ProductRepository) (string, error) {
	for range g.maxAttempts {
		candidate := g.next()
		taken, err := products.ExistsByUID(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free uid after %d attempts", domain.ErrConflict, g.maxAttempts)
}

func randomUID() string {
	b := make([]byte, 0, 7)
	for range 3 {
		b = append(b, byte('A'+rand.IntN(26)))
	}
	return fmt.Sprintf("%s%04d", b, rand.IntN(10000))
}
