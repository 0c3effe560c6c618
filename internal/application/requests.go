package application

import (
	"context"
	"strings"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
)

// CreateRequestInput is the intake form of a service request.
type CreateRequestInput struct {
	Type                domain.RequestType
	ProductID           *uint
	ProductName         string
	ProductSerial       string
	ProductUID          string
	ProductManufacturer string
	ProductCategory     string
	ProductSubcategory  string
	ProductDescription  string
	OwnerType           domain.OwnerType
	OwnerName           string
	OwnerDetails        string
	FaultDescription    string
	ClientNote          string
	Detector            string
	RequesterName       string
}

type RequestService struct {
	repo     domain.ServiceRequestRepository
	products domain.ProductRepository
}

func NewRequestService(repo domain.ServiceRequestRepository, products domain.ProductRepository) *RequestService {
	return &RequestService{repo: repo, products: products}
}

func (s *RequestService) Create(ctx context.Context, in CreateRequestInput) (domain.ServiceRequest, error) {
	requestType, ok := domain.ParseRequestType(string(in.Type))
	if !ok {
		return domain.ServiceRequest{}, validationError("unknown request type %q", in.Type)
	}
	ownerType, ok := domain.ParseOwnerType(string(in.OwnerType))
	if !ok {
		return domain.ServiceRequest{}, validationError("unknown owner type %q", in.OwnerType)
	}
	if blank(in.RequesterName) {
		return domain.ServiceRequest{}, validationError("requester name is required")
	}
	if blank(in.FaultDescription) {
		return domain.ServiceRequest{}, validationError("fault description is required")
	}

	switch requestType {
	case domain.RequestKnownProduct:
		if in.ProductID == nil || *in.ProductID == 0 {
			return domain.ServiceRequest{}, validationError("product id is required for a catalogued product")
		}
		if _, err := s.products.GetByID(ctx, *in.ProductID); err != nil {
			return domain.ServiceRequest{}, err
		}
	case domain.RequestUnknownProduct:
		if in.ProductID != nil {
			return domain.ServiceRequest{}, validationError("an uncatalogued product request cannot reference product %d", *in.ProductID)
		}
		if blank(in.ProductName) || blank(in.ProductSerial) {
			return domain.ServiceRequest{}, validationError("product name and serial number are required for an uncatalogued product")
		}
	}

	return s.repo.Create(ctx, domain.ServiceRequest{
		Type:                requestType,
		ProductID:           in.ProductID,
		ProductName:         strings.TrimSpace(in.ProductName),
		ProductSerial:       strings.TrimSpace(in.ProductSerial),
		ProductUID:          normalizeUID(in.ProductUID),
		ProductManufacturer: strings.TrimSpace(in.ProductManufacturer),
		ProductCategory:     strings.TrimSpace(in.ProductCategory),
		ProductSubcategory:  strings.TrimSpace(in.ProductSubcategory),
		ProductDescription:  strings.TrimSpace(in.ProductDescription),
		OwnerType:           ownerType,
		OwnerName:           strings.TrimSpace(in.OwnerName),
		OwnerDetails:        strings.TrimSpace(in.OwnerDetails),
		FaultDescription:    strings.TrimSpace(in.FaultDescription),
		ClientNote:          strings.TrimSpace(in.ClientNote),
		Detector:            strings.TrimSpace(in.Detector),
		RequesterName:       strings.TrimSpace(in.RequesterName),
	})
}

func (s *RequestService) Get(ctx context.Context, id uint) (domain.ServiceRequest, error) {
	if id == 0 {
		return domain.ServiceRequest{}, validationError("request id is required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *RequestService) List(ctx context.Context, filter domain.ServiceRequestFilter) ([]domain.ServiceRequest, error) {
	filter.Limit = normalizeLimit(filter.Limit)
	return s.repo.List(ctx, filter)
}

// ListPending returns the review queue, oldest request first.
func (s *RequestService) ListPending(ctx context.Context) ([]domain.ServiceRequest, error) {
	return s.repo.ListPending(ctx)
}
