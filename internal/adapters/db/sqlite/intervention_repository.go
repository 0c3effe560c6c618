package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
	"gorm.io/gorm"
)

type InterventionRepository struct {
	db *gorm.DB
}

func NewInterventionRepository(db *gorm.DB) *InterventionRepository {
	return &InterventionRepository{db: db}
}

type interventionRow struct {
	ID               uint
	ProductID        uint
	ProductUID       string
	ProductName      string
	ServiceRequestID *uint
	SerialNumber     string
	ClientNote       string
	FaultDescription string
	Category         string
	Subcategory      string
	Status           string
	EnteredAt        time.Time
	ExitedAt         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const interventionSelect = `
SELECT i.id,
       i.product_id,
       COALESCE(p.uid, '') AS product_uid,
       COALESCE(p.name, '') AS product_name,
       i.service_request_id,
       i.serial_number,
       i.client_note,
       i.fault_description,
       i.category,
       i.subcategory,
       i.status,
       i.entered_at,
       i.exited_at,
       i.created_at,
       i.updated_at
FROM interventions i
LEFT JOIN products p ON p.id = i.product_id
`

func (r *InterventionRepository) Create(ctx context.Context, value domain.Intervention) (domain.Intervention, error) {
	enteredAt := value.EnteredAt
	if enteredAt.IsZero() {
		enteredAt = time.Now().UTC()
	}
	m := InterventionModel{
		ProductID:        value.ProductID,
		ServiceRequestID: value.ServiceRequestID,
		SerialNumber:     value.SerialNumber,
		ClientNote:       value.ClientNote,
		FaultDescription: value.FaultDescription,
		Category:         value.Category,
		Subcategory:      value.Subcategory,
		Status:           defaultString(string(value.Status), string(domain.InterventionInProgress)),
		EnteredAt:        enteredAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Intervention{}, translateError(err, "intervention")
	}
	return r.GetByID(ctx, m.ID)
}

func (r *InterventionRepository) GetByID(ctx context.Context, id uint) (domain.Intervention, error) {
	rows := make([]interventionRow, 0, 1)
	if err := r.db.WithContext(ctx).Raw(interventionSelect+"WHERE i.id = ?", id).Scan(&rows).Error; err != nil {
		return domain.Intervention{}, translateError(err, "intervention")
	}
	if len(rows) == 0 {
		return domain.Intervention{}, translateError(gorm.ErrRecordNotFound, "intervention")
	}
	return toDomainIntervention(rows[0]), nil
}

func (r *InterventionRepository) List(ctx context.Context, filter domain.InterventionFilter) ([]domain.Intervention, error) {
	where := "WHERE 1 = 1"
	args := make([]any, 0, 3)
	if filter.ProductID != nil {
		where += " AND i.product_id = ?"
		args = append(args, *filter.ProductID)
	}
	if filter.Status != "" {
		where += " AND i.status = ?"
		args = append(args, string(filter.Status))
	}
	tail := " ORDER BY i.entered_at DESC, i.id DESC"
	switch {
	case filter.Limit > 0:
		tail += fmt.Sprintf(" LIMIT %d", filter.Limit)
	case filter.Offset > 0:
		tail += " LIMIT -1"
	}
	if filter.Offset > 0 {
		tail += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows := make([]interventionRow, 0)
	if err := r.db.WithContext(ctx).Raw(interventionSelect+where+tail, args...).Scan(&rows).Error; err != nil {
		return nil, translateError(err, "intervention list")
	}
	result := make([]domain.Intervention, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainIntervention(row))
	}
	return result, nil
}

// ListByProduct returns the product's repair history, newest first.
func (r *InterventionRepository) ListByProduct(ctx context.Context, productID uint) ([]domain.Intervention, error) {
	return r.List(ctx, domain.InterventionFilter{ProductID: &productID})
}

// UpdateStatus refuses to move a ticket out of a terminal status. Reaching a
// terminal status stamps exited_at.
func (r *InterventionRepository) UpdateStatus(ctx context.Context, id uint, status domain.InterventionStatus) (domain.Intervention, error) {
	updates := map[string]any{"status": string(status), "updated_at": time.Now().UTC()}
	if status.Terminal() {
		updates["exited_at"] = time.Now().UTC()
	}

	res := r.db.WithContext(ctx).Model(&InterventionModel{}).
		Where("id = ? AND status NOT IN ?", id, []string{string(domain.InterventionDone), string(domain.InterventionCancelled)}).
		Updates(updates)
	if res.Error != nil {
		return domain.Intervention{}, translateError(res.Error, "intervention")
	}
	if res.RowsAffected == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return domain.Intervention{}, err
		}
		return domain.Intervention{}, fmt.Errorf("%w: intervention %d is already %s", domain.ErrConflict, id, current.Status)
	}
	return r.GetByID(ctx, id)
}

func toDomainIntervention(row interventionRow) domain.Intervention {
	return domain.Intervention{
		ID:               row.ID,
		ProductID:        row.ProductID,
		ProductUID:       row.ProductUID,
		ProductName:      row.ProductName,
		ServiceRequestID: row.ServiceRequestID,
		SerialNumber:     row.SerialNumber,
		ClientNote:       row.ClientNote,
		FaultDescription: row.FaultDescription,
		Category:         row.Category,
		Subcategory:      row.Subcategory,
		Status:           domain.InterventionStatus(row.Status),
		EnteredAt:        row.EnteredAt,
		ExitedAt:         row.ExitedAt,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}
