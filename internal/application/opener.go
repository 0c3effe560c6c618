package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
)

type OpenInput struct {
	ProductID        *uint
	SerialNumber     string
	ClientNote       string
	FaultDescription string
	Category         string
	Subcategory      string
	ServiceRequestID *uint
}

type Opener struct{}

func NewOpener() *Opener {
	return &Opener{}
}

// Open creates an "En cours" intervention on an existing product.
func (o *Opener) Open(ctx context.Context, repos domain.Repositories, in OpenInput) (domain.Intervention, error) {
	if in.ProductID == nil || *in.ProductID == 0 {
		return domain.Intervention{}, validationError("no product associated with this request")
	}

	product, err := repos.Products.GetByID(ctx, *in.ProductID)
	if err != nil {
		return domain.Intervention{}, fmt.Errorf("open intervention: %w", err)
	}

	return repos.Interventions.Create(ctx, domain.Intervention{
		ProductID:        product.ID,
		ServiceRequestID: in.ServiceRequestID,
		SerialNumber:     defaultString(strings.TrimSpace(in.SerialNumber), product.SerialNumber),
		ClientNote:       strings.TrimSpace(in.ClientNote),
		FaultDescription: strings.TrimSpace(in.FaultDescription),
		Category:         defaultString(strings.TrimSpace(in.Category), product.Category),
		Subcategory:      defaultString(strings.TrimSpace(in.Subcategory), product.Subcategory),
		Status:           domain.InterventionInProgress,
	})
}
