package sqlite

import (
	"context"
	"strings"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
	"gorm.io/gorm"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) FindByUID(ctx context.Context, uid string) (*domain.Product, error) {
	rows := make([]ProductModel, 0, 1)
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).Limit(1).Find(&rows).Error; err != nil {
		return nil, translateError(err, "product lookup")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	p := toDomainProduct(rows[0])
	return &p, nil
}

func (r *ProductRepository) ExistsByUID(ctx context.Context, uid string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&ProductModel{}).Where("uid = ?", uid).Count(&count).Error; err != nil {
		return false, translateError(err, "product lookup")
	}
	return count > 0, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id uint) (domain.Product, error) {
	var m ProductModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.Product{}, translateError(err, "product")
	}
	return toDomainProduct(m), nil
}

func (r *ProductRepository) Create(ctx context.Context, value domain.Product) (domain.Product, error) {
	m := ProductModel{
		UID:          value.UID,
		Name:         value.Name,
		SerialNumber: value.SerialNumber,
		Manufacturer: value.Manufacturer,
		Category:     value.Category,
		Subcategory:  value.Subcategory,
		Description:  value.Description,
		Situation:    defaultString(string(value.Situation), string(domain.SituationInStock)),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Product{}, translateError(err, "product")
	}
	return toDomainProduct(m), nil
}

func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	q := r.db.WithContext(ctx).Model(&ProductModel{})
	if filter.Situation != "" {
		q = q.Where("situation = ?", string(filter.Situation))
	}
	if strings.TrimSpace(filter.Query) != "" {
		like := "%" + strings.TrimSpace(filter.Query) + "%"
		q = q.Where("name LIKE ? OR uid LIKE ? OR serial_number LIKE ? OR manufacturer LIKE ?", like, like, like, like)
	}

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	rows := make([]ProductModel, 0)
	if err := q.Order("id DESC").Find(&rows).Error; err != nil {
		return nil, translateError(err, "product list")
	}

	result := make([]domain.Product, 0, len(rows))
	for _, m := range rows {
		result = append(result, toDomainProduct(m))
	}
	return result, nil
}

func (r *ProductRepository) UpdateSituation(ctx context.Context, id uint, situation domain.Situation) (domain.Product, error) {
	res := r.db.WithContext(ctx).Model(&ProductModel{}).Where("id = ?", id).Update("situation", string(situation))
	if res.Error != nil {
		return domain.Product{}, translateError(res.Error, "product")
	}
	if res.RowsAffected == 0 {
		return domain.Product{}, translateError(gorm.ErrRecordNotFound, "product")
	}
	return r.GetByID(ctx, id)
}

func toDomainProduct(m ProductModel) domain.Product {
	return domain.Product{
		ID:           m.ID,
		UID:          m.UID,
		Name:         m.Name,
		SerialNumber: m.SerialNumber,
		Manufacturer: m.Manufacturer,
		Category:     m.Category,
		Subcategory:  m.Subcategory,
		Description:  m.Description,
		Situation:    domain.Situation(m.Situation),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
