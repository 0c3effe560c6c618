package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
	"gorm.io/gorm"
)

type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) Repositories() domain.Repositories {
	return repositoriesFor(u.db)
}

// Within runs fn in a single transaction. Every repository handed to fn is
// bound to that transaction; returning an error rolls all of them back.
func (u *UnitOfWork) Within(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, repositoriesFor(tx))
	})
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: transaction: %w", domain.ErrStorage, err)
}

func repositoriesFor(db *gorm.DB) domain.Repositories {
	return domain.Repositories{
		Products:      NewProductRepository(db),
		Interventions: NewInterventionRepository(db),
		Requests:      NewServiceRequestRepository(db),
	}
}

func isDomainError(err error) bool {
	for _, target := range []error{domain.ErrValidation, domain.ErrNotFound, domain.ErrConflict, domain.ErrStorage} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
