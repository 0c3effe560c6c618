package application

import (
	"context"
	"strings"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
)

// ProductDraft carries the fields of a product about to enter the catalog.
type ProductDraft struct {
	Name         string
	SerialNumber string
	Manufacturer string
	Category     string
	Subcategory  string
	Description  string
	Situation    domain.Situation
}

// ProductOverrides lets the operator correct the descriptive fields of a
// provisional product when accepting its request. Blank fields keep the
// request's value.
type ProductOverrides struct {
	Manufacturer string `json:"manufacturer"`
	Category     string `json:"category"`
	Subcategory  string `json:"subcategory"`
	Description  string `json:"description"`
}

func (o ProductOverrides) apply(d ProductDraft) ProductDraft {
	d.Manufacturer = defaultString(o.Manufacturer, d.Manufacturer)
	d.Category = defaultString(o.Category, d.Category)
	d.Subcategory = defaultString(o.Subcategory, d.Subcategory)
	d.Description = defaultString(o.Description, d.Description)
	return d
}

type Provisioner struct {
	uids *UIDGenerator
}

func NewProvisioner(uids *UIDGenerator) *Provisioner {
	return &Provisioner{uids: uids}
}

// Provision inserts a new catalog product with a freshly generated UID.
func (p *Provisioner) Provision(ctx context.Context, repos domain.Repositories, draft ProductDraft) (domain.Product, error) {
	name := strings.TrimSpace(draft.Name)
	serial := strings.TrimSpace(draft.SerialNumber)
	if name == "" || serial == "" {
		return domain.Product{}, validationError("product name and serial number are required")
	}

	situation := draft.Situation
	if situation == "" {
		situation = domain.SituationInStock
	}

	uid, err := p.uids.Generate(ctx, repos.Products)
	if err != nil {
		return domain.Product{}, err
	}

	return repos.Products.Create(ctx, domain.Product{
		UID:          uid,
		Name:         name,
		SerialNumber: serial,
		Manufacturer: strings.TrimSpace(draft.Manufacturer),
		Category:     strings.TrimSpace(draft.Category),
		Subcategory:  strings.TrimSpace(draft.Subcategory),
		Description:  strings.TrimSpace(draft.Description),
		Situation:    situation,
	})
}
