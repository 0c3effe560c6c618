package application

import (
	"context"
	"fmt"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
)

type ProductService struct {
	uow         domain.UnitOfWork
	provisioner ProductProvisioner
	resolver    *Resolver
}

func NewProductService(uow domain.UnitOfWork, provisioner ProductProvisioner) *ProductService {
	return &ProductService{
		uow:         uow,
		provisioner: provisioner,
		resolver:    NewResolver(uow.Repositories().Products),
	}
}

// Create adds a product to the catalog under a generated UID.
func (s *ProductService) Create(ctx context.Context, draft ProductDraft) (domain.Product, error) {
	if draft.Situation != "" {
		situation, ok := domain.ParseSituation(string(draft.Situation))
		if !ok {
			return domain.Product{}, validationError("unknown situation %q", draft.Situation)
		}
		draft.Situation = situation
	}

	var created domain.Product
	err := s.uow.Within(ctx, func(ctx context.Context, repos domain.Repositories) error {
		p, err := s.provisioner.Provision(ctx, repos, draft)
		if err != nil {
			return err
		}
		created = p
		return nil
	})
	return created, err
}

func (s *ProductService) Get(ctx context.Context, id uint) (domain.Product, error) {
	if id == 0 {
		return domain.Product{}, validationError("product id is required")
	}
	return s.uow.Repositories().Products.GetByID(ctx, id)
}

func (s *ProductService) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	filter.Limit = normalizeLimit(filter.Limit)
	return s.uow.Repositories().Products.List(ctx, filter)
}

func (s *ProductService) Resolve(ctx context.Context, uid string) (Resolution, error) {
	return s.resolver.Resolve(ctx, uid)
}

func (s *ProductService) UpdateSituation(ctx context.Context, id uint, raw string) (domain.Product, error) {
	situation, ok := domain.ParseSituation(raw)
	if !ok {
		return domain.Product{}, validationError("unknown situation %q", raw)
	}
	p, err := s.uow.Repositories().Products.UpdateSituation(ctx, id, situation)
	if err != nil {
		return domain.Product{}, fmt.Errorf("update situation of product %d: %w", id, err)
	}
	return p, nil
}
