package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
)

// memStore is an in-memory catalog with snapshot rollback in Within.
type memStore struct {
	products      []domain.Product
	interventions []domain.Intervention
	requests      []domain.ServiceRequest
	nextID        uint

	lookupErr       error
	interventionErr error
}

func newMemStore() *memStore {
	return &memStore{nextID: 1000}
}

func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *memStore) Repositories() domain.Repositories {
	return domain.Repositories{
		Products:      memProducts{s},
		Interventions: memInterventions{s},
		Requests:      memRequests{s},
	}
}

func (s *memStore) Within(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	products := append([]domain.Product(nil), s.products...)
	interventions := append([]domain.Intervention(nil), s.interventions...)
	requests := append([]domain.ServiceRequest(nil), s.requests...)
	nextID := s.nextID

	if err := fn(ctx, s.Repositories()); err != nil {
		s.products, s.interventions, s.requests, s.nextID = products, interventions, requests, nextID
		return err
	}
	return nil
}

func (s *memStore) seedProduct(p domain.Product) domain.Product {
	if p.ID == 0 {
		p.ID = s.id()
	}
	if p.Situation == "" {
		p.Situation = domain.SituationInStock
	}
	s.products = append(s.products, p)
	return p
}

func (s *memStore) seedRequest(r domain.ServiceRequest) domain.ServiceRequest {
	if r.ID == 0 {
		r.ID = s.id()
	}
	if r.Status == "" {
		r.Status = domain.RequestPending
	}
	s.requests = append(s.requests, r)
	return r
}

func (s *memStore) request(id uint) domain.ServiceRequest {
	for _, r := range s.requests {
		if r.ID == id {
			return r
		}
	}
	panic(fmt.Sprintf("request %d not seeded", id))
}

type memProducts struct{ s *memStore }

func (m memProducts) FindByUID(_ context.Context, uid string) (*domain.Product, error) {
	if m.s.lookupErr != nil {
		return nil, m.s.lookupErr
	}
	for _, p := range m.s.products {
		if p.UID == uid {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (m memProducts) ExistsByUID(ctx context.Context, uid string) (bool, error) {
	p, err := m.FindByUID(ctx, uid)
	return p != nil, err
}

func (m memProducts) GetByID(_ context.Context, id uint) (domain.Product, error) {
	for _, p := range m.s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, fmt.Errorf("%w: product", domain.ErrNotFound)
}

func (m memProducts) Create(ctx context.Context, value domain.Product) (domain.Product, error) {
	if taken, _ := m.ExistsByUID(ctx, value.UID); taken {
		return domain.Product{}, fmt.Errorf("%w: product already exists", domain.ErrConflict)
	}
	value.ID = 0
	value.CreatedAt = time.Now()
	return m.s.seedProduct(value), nil
}

func (m memProducts) List(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	out := make([]domain.Product, 0)
	for _, p := range m.s.products {
		if filter.Situation != "" && p.Situation != filter.Situation {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Query)) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m memProducts) UpdateSituation(_ context.Context, id uint, situation domain.Situation) (domain.Product, error) {
	for i := range m.s.products {
		if m.s.products[i].ID == id {
			m.s.products[i].Situation = situation
			return m.s.products[i], nil
		}
	}
	return domain.Product{}, fmt.Errorf("%w: product", domain.ErrNotFound)
}

type memInterventions struct{ s *memStore }

func (m memInterventions) Create(_ context.Context, value domain.Intervention) (domain.Intervention, error) {
	if m.s.interventionErr != nil {
		return domain.Intervention{}, m.s.interventionErr
	}
	value.ID = m.s.id()
	if value.Status == "" {
		value.Status = domain.InterventionInProgress
	}
	value.EnteredAt = time.Now()
	m.s.interventions = append(m.s.interventions, value)
	return value, nil
}

func (m memInterventions) GetByID(_ context.Context, id uint) (domain.Intervention, error) {
	for _, iv := range m.s.interventions {
		if iv.ID == id {
			return iv, nil
		}
	}
	return domain.Intervention{}, fmt.Errorf("%w: intervention", domain.ErrNotFound)
}

func (m memInterventions) List(_ context.Context, filter domain.InterventionFilter) ([]domain.Intervention, error) {
	out := make([]domain.Intervention, 0)
	for _, iv := range m.s.interventions {
		if filter.ProductID != nil && iv.ProductID != *filter.ProductID {
			continue
		}
		if filter.Status != "" && iv.Status != filter.Status {
			continue
		}
		out = append(out, iv)
	}
	if filter.Offset >= len(out) {
		return []domain.Intervention{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m memInterventions) ListByProduct(ctx context.Context, productID uint) ([]domain.Intervention, error) {
	return m.List(ctx, domain.InterventionFilter{ProductID: &productID})
}

func (m memInterventions) UpdateStatus(_ context.Context, id uint, status domain.InterventionStatus) (domain.Intervention, error) {
	for i := range m.s.interventions {
		iv := &m.s.interventions[i]
		if iv.ID != id {
			continue
		}
		if iv.Status.Terminal() {
			return domain.Intervention{}, fmt.Errorf("%w: intervention is already %s", domain.ErrConflict, iv.Status)
		}
		iv.Status = status
		if status.Terminal() {
			now := time.Now()
			iv.ExitedAt = &now
		}
		return *iv, nil
	}
	return domain.Intervention{}, fmt.Errorf("%w: intervention", domain.ErrNotFound)
}

type memRequests struct{ s *memStore }

func (m memRequests) Create(_ context.Context, value domain.ServiceRequest) (domain.ServiceRequest, error) {
	value.ID = 0
	value.Status = domain.RequestPending
	value.CreatedAt = time.Now()
	return m.s.seedRequest(value), nil
}

func (m memRequests) GetByID(_ context.Context, id uint) (domain.ServiceRequest, error) {
	for _, r := range m.s.requests {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.ServiceRequest{}, fmt.Errorf("%w: service request %d", domain.ErrNotFound, id)
}

func (m memRequests) List(_ context.Context, filter domain.ServiceRequestFilter) ([]domain.ServiceRequest, error) {
	out := make([]domain.ServiceRequest, 0)
	for _, r := range m.s.requests {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m memRequests) ListPending(ctx context.Context) ([]domain.ServiceRequest, error) {
	return m.List(ctx, domain.ServiceRequestFilter{Status: domain.RequestPending})
}

func (m memRequests) Validate(_ context.Context, id uint, validatorName, notes string, interventionID uint) (domain.ServiceRequest, error) {
	return m.resolve(id, func(r *domain.ServiceRequest) {
		r.Status = domain.RequestValidated
		r.ValidatorName = validatorName
		r.ValidationNotes = notes
		r.InterventionID = &interventionID
	})
}

func (m memRequests) Reject(_ context.Context, id uint, validatorName, notes string) (domain.ServiceRequest, error) {
	return m.resolve(id, func(r *domain.ServiceRequest) {
		r.Status = domain.RequestRejected
		r.ValidatorName = validatorName
		r.ValidationNotes = notes
	})
}

func (m memRequests) resolve(id uint, apply func(r *domain.ServiceRequest)) (domain.ServiceRequest, error) {
	for i := range m.s.requests {
		r := &m.s.requests[i]
		if r.ID != id {
			continue
		}
		if r.Status != domain.RequestPending {
			return domain.ServiceRequest{}, fmt.Errorf("%w: service request %d is already %s", domain.ErrConflict, id, r.Status)
		}
		apply(r)
		now := time.Now()
		r.ValidatedAt = &now
		return *r, nil
	}
	return domain.ServiceRequest{}, fmt.Errorf("%w: service request %d", domain.ErrNotFound, id)
}

type countingProvisioner struct {
	next  ProductProvisioner
	calls int
}

func (c *countingProvisioner) Provision(ctx context.Context, repos domain.Repositories, draft ProductDraft) (domain.Product, error) {
	c.calls++
	return c.next.Provision(ctx, repos, draft)
}

type countingOpener struct {
	next  InterventionOpener
	calls int
}

func (c *countingOpener) Open(ctx context.Context, repos domain.Repositories, in OpenInput) (domain.Intervention, error) {
	c.calls++
	return c.next.Open(ctx, repos, in)
}

type auditEntry struct {
	action   string
	targetID uint
	metadata string
}

type recordingAuditor struct {
	entries []auditEntry
}

func (a *recordingAuditor) WriteAudit(_ context.Context, _ *uint, action, _ string, targetID *uint, metadata string) {
	var id uint
	if targetID != nil {
		id = *targetID
	}
	a.entries = append(a.entries, auditEntry{action: action, targetID: id, metadata: metadata})
}

// sequence returns the given UIDs in order, then repeats the last one.
func sequence(uids ...string) func() string {
	i := 0
	return func() string {
		uid := uids[min(i, len(uids)-1)]
		i++
		return uid
	}
}

var errDiskFull = errors.New("disk full")
