package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
	"gorm.io/gorm"
)

type ServiceRequestRepository struct {
	db *gorm.DB
}

func NewServiceRequestRepository(db *gorm.DB) *ServiceRequestRepository {
	return &ServiceRequestRepository{db: db}
}

// Create always stores the request as EN_ATTENTE, whatever the caller put in Status.
func (r *ServiceRequestRepository) Create(ctx context.Context, value domain.ServiceRequest) (domain.ServiceRequest, error) {
	m := ServiceRequestModel{
		Status:              string(domain.RequestPending),
		RequestType:         string(value.Type),
		ProductID:           value.ProductID,
		ProductName:         value.ProductName,
		ProductSerial:       value.ProductSerial,
		ProductUID:          value.ProductUID,
		ProductManufacturer: value.ProductManufacturer,
		ProductCategory:     value.ProductCategory,
		ProductSubcategory:  value.ProductSubcategory,
		ProductDescription:  value.ProductDescription,
		OwnerType:           string(value.OwnerType),
		OwnerName:           value.OwnerName,
		OwnerDetails:        value.OwnerDetails,
		FaultDescription:    value.FaultDescription,
		ClientNote:          value.ClientNote,
		Detector:            value.Detector,
		RequesterName:       value.RequesterName,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.ServiceRequest{}, translateError(err, "service request")
	}
	return toDomainServiceRequest(m), nil
}

func (r *ServiceRequestRepository) GetByID(ctx context.Context, id uint) (domain.ServiceRequest, error) {
	var m ServiceRequestModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.ServiceRequest{}, translateError(err, fmt.Sprintf("service request %d", id))
	}
	return toDomainServiceRequest(m), nil
}

func (r *ServiceRequestRepository) List(ctx context.Context, filter domain.ServiceRequestFilter) ([]domain.ServiceRequest, error) {
	q := r.db.WithContext(ctx).Model(&ServiceRequestModel{})
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Type != "" {
		q = q.Where("request_type = ?", string(filter.Type))
	}
	if strings.TrimSpace(filter.Query) != "" {
		like := "%" + strings.TrimSpace(filter.Query) + "%"
		q = q.Where("requester_name LIKE ? OR product_name LIKE ? OR product_uid LIKE ? OR product_serial LIKE ? OR fault_description LIKE ?", like, like, like, like, like)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	rows := make([]ServiceRequestModel, 0)
	if err := q.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, translateError(err, "service request list")
	}
	return toDomainServiceRequests(rows), nil
}

// ListPending returns the EN_ATTENTE queue, oldest first.
func (r *ServiceRequestRepository) ListPending(ctx context.Context) ([]domain.ServiceRequest, error) {
	rows := make([]ServiceRequestModel, 0)
	err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.RequestPending)).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err, "pending service requests")
	}
	return toDomainServiceRequests(rows), nil
}

func (r *ServiceRequestRepository) Validate(ctx context.Context, id uint, validatorName, notes string, interventionID uint) (domain.ServiceRequest, error) {
	now := time.Now().UTC()
	return r.resolve(ctx, id, map[string]any{
		"status":           string(domain.RequestValidated),
		"validator_name":   validatorName,
		"validation_notes": notes,
		"validated_at":     now,
		"intervention_id":  interventionID,
		"updated_at":       now,
	})
}

func (r *ServiceRequestRepository) Reject(ctx context.Context, id uint, validatorName, notes string) (domain.ServiceRequest, error) {
	now := time.Now().UTC()
	return r.resolve(ctx, id, map[string]any{
		"status":           string(domain.RequestRejected),
		"validator_name":   validatorName,
		"validation_notes": notes,
		"validated_at":     now,
		"updated_at":       now,
	})
}

// resolve applies a decision only while the row is still pending, so that
// two operators racing on the same request cannot both win.
func (r *ServiceRequestRepository) resolve(ctx context.Context, id uint, updates map[string]any) (domain.ServiceRequest, error) {
	res := r.db.WithContext(ctx).Model(&ServiceRequestModel{}).
		Where("id = ? AND status = ?", id, string(domain.RequestPending)).
		Updates(updates)
	if res.Error != nil {
		return domain.ServiceRequest{}, translateError(res.Error, fmt.Sprintf("service request %d", id))
	}
	if res.RowsAffected == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return domain.ServiceRequest{}, err
		}
		return domain.ServiceRequest{}, fmt.Errorf("%w: service request %d is already %s", domain.ErrConflict, id, current.Status)
	}
	return r.GetByID(ctx, id)
}

func toDomainServiceRequests(rows []ServiceRequestModel) []domain.ServiceRequest {
	result := make([]domain.ServiceRequest, 0, len(rows))
	for _, m := range rows {
		result = append(result, toDomainServiceRequest(m))
	}
	return result
}

func toDomainServiceRequest(m ServiceRequestModel) domain.ServiceRequest {
	return domain.ServiceRequest{
		ID:                  m.ID,
		Status:              domain.RequestStatus(m.Status),
		Type:                domain.RequestType(m.RequestType),
		ProductID:           m.ProductID,
		ProductName:         m.ProductName,
		ProductSerial:       m.ProductSerial,
		ProductUID:          m.ProductUID,
		ProductManufacturer: m.ProductManufacturer,
		ProductCategory:     m.ProductCategory,
		ProductSubcategory:  m.ProductSubcategory,
		ProductDescription:  m.ProductDescription,
		OwnerType:           domain.OwnerType(m.OwnerType),
		OwnerName:           m.OwnerName,
		OwnerDetails:        m.OwnerDetails,
		FaultDescription:    m.FaultDescription,
		ClientNote:          m.ClientNote,
		Detector:            m.Detector,
		RequesterName:       m.RequesterName,
		ValidatorName:       m.ValidatorName,
		ValidationNotes:     m.ValidationNotes,
		ValidatedAt:         m.ValidatedAt,
		InterventionID:      m.InterventionID,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}
