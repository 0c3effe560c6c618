package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
	"go.uber.org/zap"
)

type ProductProvisioner interface {
	Provision(ctx context.Context, repos domain.Repositories, draft ProductDraft) (domain.Product, error)
}

type InterventionOpener interface {
	Open(ctx context.Context, repos domain.Repositories, in OpenInput) (domain.Intervention, error)
}

type Auditor interface {
	WriteAudit(ctx context.Context, actorUserID *uint, action, targetType string, targetID *uint, metadata string)
}

type AcceptInput struct {
	RequestID              uint
	CreateProductIfUnknown bool
	ValidatorName          string
	Notes                  string
	ProductOverrides       ProductOverrides
	ActorUserID            *uint
}

type AcceptResult struct {
	Request        domain.ServiceRequest
	Intervention   domain.Intervention
	Product        *domain.Product
	ProductCreated bool
}

type RejectInput struct {
	RequestID     uint
	ValidatorName string
	Notes         string
	ActorUserID   *uint
}

// LifecycleService moves service requests out of EN_ATTENTE.
type LifecycleService struct {
	uow         domain.UnitOfWork
	provisioner ProductProvisioner
	opener      InterventionOpener
	audit       Auditor
	log         *zap.Logger
}

func NewLifecycleService(uow domain.UnitOfWork, provisioner ProductProvisioner, opener InterventionOpener, audit Auditor, log *zap.Logger) *LifecycleService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LifecycleService{uow: uow, provisioner: provisioner, opener: opener, audit: audit, log: log}
}

// Accept validates a pending request. Product provisioning, the intervention
// and the status change commit together or not at all.
func (s *LifecycleService) Accept(ctx context.Context, in AcceptInput) (AcceptResult, error) {
	start := time.Now()
	result, err := s.accept(ctx, in)
	s.logOutcome("accept", in.RequestID, start, err,
		zap.Bool("product_created", result.ProductCreated),
		zap.Uint("intervention_id", result.Intervention.ID),
	)
	if err != nil {
		return AcceptResult{}, err
	}

	metadata := fmt.Sprintf("intervention=%d", result.Intervention.ID)
	if result.ProductCreated {
		metadata += fmt.Sprintf(" product=%s", result.Product.UID)
	}
	s.writeAudit(ctx, in.ActorUserID, "request.accept", result.Request.ID, metadata)
	return result, nil
}

func (s *LifecycleService) accept(ctx context.Context, in AcceptInput) (AcceptResult, error) {
	if in.RequestID == 0 {
		return AcceptResult{}, validationError("request id is required")
	}
	if blank(in.ValidatorName) {
		return AcceptResult{}, validationError("validator name is required")
	}

	var result AcceptResult
	err := s.uow.Within(ctx, func(ctx context.Context, repos domain.Repositories) error {
		req, err := repos.Requests.GetByID(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if req.Status.Resolved() {
			return fmt.Errorf("%w: service request %d is already %s", domain.ErrConflict, req.ID, req.Status)
		}

		productID := req.ProductID
		if req.Type == domain.RequestUnknownProduct && in.CreateProductIfUnknown {
			product, err := s.provisioner.Provision(ctx, repos, in.ProductOverrides.apply(ProductDraft{
				Name:         req.ProductName,
				SerialNumber: req.ProductSerial,
				Manufacturer: req.ProductManufacturer,
				Category:     req.ProductCategory,
				Subcategory:  req.ProductSubcategory,
				Description:  req.ProductDescription,
			}))
			if err != nil {
				return fmt.Errorf("provision product: %w", err)
			}
			productID = &product.ID
			result.Product = &product
			result.ProductCreated = true
		}

		intervention, err := s.opener.Open(ctx, repos, OpenInput{
			ProductID:        productID,
			SerialNumber:     req.ProductSerial,
			ClientNote:       req.ClientNote,
			FaultDescription: req.FaultDescription,
			Category:         req.ProductCategory,
			Subcategory:      req.ProductSubcategory,
			ServiceRequestID: &req.ID,
		})
		if err != nil {
			return err
		}
		result.Intervention = intervention

		if result.Product == nil {
			product, err := repos.Products.GetByID(ctx, intervention.ProductID)
			if err != nil {
				return err
			}
			result.Product = &product
		}

		validated, err := repos.Requests.Validate(ctx, req.ID, strings.TrimSpace(in.ValidatorName), strings.TrimSpace(in.Notes), intervention.ID)
		if err != nil {
			return err
		}
		result.Request = validated
		return nil
	})
	if err != nil {
		return AcceptResult{}, err
	}
	return result, nil
}

// Reject refuses a pending request. A request that was already resolved is
// left untouched and ErrConflict is returned.
func (s *LifecycleService) Reject(ctx context.Context, in RejectInput) (domain.ServiceRequest, error) {
	start := time.Now()
	req, err := s.reject(ctx, in)
	s.logOutcome("reject", in.RequestID, start, err)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	s.writeAudit(ctx, in.ActorUserID, "request.reject", req.ID, req.ValidationNotes)
	return req, nil
}

func (s *LifecycleService) reject(ctx context.Context, in RejectInput) (domain.ServiceRequest, error) {
	if in.RequestID == 0 {
		return domain.ServiceRequest{}, validationError("request id is required")
	}
	if blank(in.ValidatorName) {
		return domain.ServiceRequest{}, validationError("validator name is required")
	}
	return s.uow.Repositories().Requests.Reject(ctx, in.RequestID, strings.TrimSpace(in.ValidatorName), strings.TrimSpace(in.Notes))
}

func (s *LifecycleService) logOutcome(decision string, requestID uint, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("decision", decision),
		zap.Uint("request_id", requestID),
		zap.Duration("duration", time.Since(start)),
	)
	if err != nil {
		s.log.Warn("service request decision failed", append(fields, zap.Error(err))...)
		return
	}
	s.log.Info("service request resolved", fields...)
}

func (s *LifecycleService) writeAudit(ctx context.Context, actorUserID *uint, action string, requestID uint, metadata string) {
	if s.audit == nil {
		return
	}
	id := requestID
	s.audit.WriteAudit(ctx, actorUserID, action, "service_request", &id, metadata)
}
