package rpcjson

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/atvirokodosprendimai/magsav/internal/application"
	"github.com/atvirokodosprendimai/magsav/internal/domain"
)

type idParams struct {
	ID uint `json:"id"`
}

func (s *Server) whoAmI(_ context.Context, identity domain.Identity, _ json.RawMessage) (any, error) {
	perms := make([]string, 0, len(identity.Permissions))
	for p := range identity.Permissions {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return map[string]any{"id": identity.User.ID, "email": identity.User.Email, "permissions": perms}, nil
}

func (s *Server) listProducts(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		Q         string `json:"q"`
		Situation string `json:"situation"`
		Limit     int    `json:"limit"`
	}
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	filter := domain.ProductFilter{Query: p.Q, Limit: p.Limit}
	if p.Situation != "" {
		situation, ok := domain.ParseSituation(p.Situation)
		if !ok {
			return nil, errInvalidParams
		}
		filter.Situation = situation
	}
	return s.svc.Products.List(ctx, filter)
}

func (s *Server) getProduct(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p idParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	return s.svc.Products.Get(ctx, p.ID)
}

func (s *Server) createProduct(ctx context.Context, identity domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		Name         string `json:"name"`
		SerialNumber string `json:"serial_number"`
		Manufacturer string `json:"manufacturer"`
		Category     string `json:"category"`
		Subcategory  string `json:"subcategory"`
		Description  string `json:"description"`
		Situation    string `json:"situation"`
	}
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	out, err := s.svc.Products.Create(ctx, application.ProductDraft{
		Name:         p.Name,
		SerialNumber: p.SerialNumber,
		Manufacturer: p.Manufacturer,
		Category:     p.Category,
		Subcategory:  p.Subcategory,
		Description:  p.Description,
		Situation:    domain.Situation(p.Situation),
	})
	if err != nil {
		return nil, err
	}
	s.svc.Access.WriteAudit(ctx, &identity.User.ID, "product.create", "product", &out.ID, "rpc")
	return out, nil
}

func (s *Server) resolveProduct(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		UID string `json:"uid"`
	}
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	res, err := s.svc.Products.Resolve(ctx, p.UID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"uid": res.UID, "known": res.Known != nil, "product": res.Known}, nil
}

func (s *Server) updateSituation(ctx context.Context, identity domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		ID        uint   `json:"id"`
		Situation string `json:"situation"`
	}
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	out, err := s.svc.Products.UpdateSituation(ctx, p.ID, p.Situation)
	if err != nil {
		return nil, err
	}
	s.svc.Access.WriteAudit(ctx, &identity.User.ID, "product.situation", "product", &out.ID, "rpc")
	return out, nil
}

func (s *Server) listRequests(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		Status string `json:"status"`
		Type   string `json:"type"`
		Q      string `json:"q"`
		Limit  int    `json:"limit"`
	}
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	filter := domain.ServiceRequestFilter{Query: p.Q, Limit: p.Limit}
	if p.Status != "" {
		status, ok := domain.ParseRequestStatus(p.Status)
		if !ok {
			return nil, errInvalidParams
		}
		filter.Status = status
	}
	if p.Type != "" {
		requestType, ok := domain.ParseRequestType(p.Type)
		if !ok {
			return nil, errInvalidParams
		}
		filter.Type = requestType
	}
	return s.svc.Requests.List(ctx, filter)
}

func (s *Server) listPendingRequests(ctx context.Context, _ domain.Identity, _ json.RawMessage) (any, error) {
	return s.svc.Requests.ListPending(ctx)
}

func (s *Server) getRequest(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p idParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	return s.svc.Requests.Get(ctx, p.ID)
}

func (s *Server) createRequest(ctx context.Context, identity domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		Type                string `json:"type"`
		ProductID           *uint  `json:"product_id"`
		ProductName         string `json:"product_name"`
		ProductSerial       string `json:"product_serial"`
		ProductUID          string `json:"product_uid"`
		ProductManufacturer string `json:"product_manufacturer"`
		ProductCategory     string `json:"product_category"`
		ProductSubcategory  string `json:"product_subcategory"`
		ProductDescription  string `json:"product_description"`
		OwnerType           string `json:"owner_type"`
		OwnerName           string `json:"owner_name"`
		OwnerDetails        string `json:"owner_details"`
		FaultDescription    string `json:"fault_description"`
		ClientNote          string `json:"client_note"`
		Detector            string `json:"detector"`
		RequesterName       string `json:"requester_name"`
	}
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	out, err := s.svc.Requests.Create(ctx, application.CreateRequestInput{
		Type:                domain.RequestType(p.Type),
		ProductID:           p.ProductID,
		ProductName:         p.ProductName,
		ProductSerial:       p.ProductSerial,
		ProductUID:          p.ProductUID,
		ProductManufacturer: p.ProductManufacturer,
		ProductCategory:     p.ProductCategory,
		ProductSubcategory:  p.ProductSubcategory,
		ProductDescription:  p.ProductDescription,
		OwnerType:           domain.OwnerType(p.OwnerType),
		OwnerName:           p.OwnerName,
		OwnerDetails:        p.OwnerDetails,
		FaultDescription:    p.FaultDescription,
		ClientNote:          p.ClientNote,
		Detector:            p.Detector,
		RequesterName:       orEmail(p.RequesterName, identity),
	})
	if err != nil {
		return nil, err
	}
	s.svc.Access.WriteAudit(ctx, &identity.User.ID, "request.create", "service_request", &out.ID, "rpc")
	return out, nil
}

func (s *Server) acceptRequest(ctx context.Context, identity domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		ID                     uint                         `json:"id"`
		CreateProductIfUnknown bool                         `json:"create_product_if_unknown"`
		ValidatorName          string                       `json:"validator_name"`
		Notes                  string                       `json:"notes"`
		Overrides              application.ProductOverrides `json:"overrides"`
	}
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	return s.svc.Lifecycle.Accept(ctx, application.AcceptInput{
		RequestID:              p.ID,
		CreateProductIfUnknown: p.CreateProductIfUnknown,
		ValidatorName:          orEmail(p.ValidatorName, identity),
		Notes:                  p.Notes,
		ProductOverrides:       p.Overrides,
		ActorUserID:            &identity.User.ID,
	})
}

func (s *Server) rejectRequest(ctx context.Context, identity domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		ID            uint   `json:"id"`
		ValidatorName string `json:"validator_name"`
		Notes         string `json:"notes"`
	}
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	return s.svc.Lifecycle.Reject(ctx, application.RejectInput{
		RequestID:     p.ID,
		ValidatorName: orEmail(p.ValidatorName, identity),
		Notes:         p.Notes,
		ActorUserID:   &identity.User.ID,
	})
}

func (s *Server) listInterventions(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		Status    string `json:"status"`
		ProductID *uint  `json:"product_id"`
		Limit     int    `json:"limit"`
	}
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	filter := domain.InterventionFilter{ProductID: p.ProductID, Limit: p.Limit}
	if p.Status != "" {
		status, ok := domain.ParseInterventionStatus(p.Status)
		if !ok {
			return nil, errInvalidParams
		}
		filter.Status = status
	}
	return s.svc.Interventions.List(ctx, filter)
}

func (s *Server) productInterventions(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		ProductID uint `json:"product_id"`
	}
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	return s.svc.Interventions.ListByProduct(ctx, p.ProductID)
}

func (s *Server) getIntervention(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p idParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	return s.svc.Interventions.Get(ctx, p.ID)
}

func (s *Server) updateInterventionStatus(ctx context.Context, identity domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		ID     uint   `json:"id"`
		Status string `json:"status"`
	}
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	out, err := s.svc.Interventions.UpdateStatus(ctx, p.ID, p.Status)
	if err != nil {
		return nil, err
	}
	s.svc.Access.WriteAudit(ctx, &identity.User.ID, "intervention.status", "intervention", &out.ID, "rpc")
	return out, nil
}

func (s *Server) listUsers(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		Q     string `json:"q"`
		Limit int    `json:"limit"`
	}
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	return s.svc.Access.ListUsers(ctx, p.Q, p.Limit)
}

func (s *Server) createUser(ctx context.Context, identity domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		RoleID   uint   `json:"role_id"`
	}
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	out, err := s.svc.Access.CreateUser(ctx, p.Email, p.Password, p.RoleID)
	if err != nil {
		return nil, err
	}
	s.svc.Access.WriteAudit(ctx, &identity.User.ID, "access.user.create", "user", &out.ID, "rpc")
	return out, nil
}

func (s *Server) listRoles(ctx context.Context, _ domain.Identity, _ json.RawMessage) (any, error) {
	return s.svc.Access.ListRoles(ctx)
}

func (s *Server) assignRole(ctx context.Context, identity domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		UserID uint `json:"user_id"`
		RoleID uint `json:"role_id"`
	}
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	if err := s.svc.Access.AssignRole(ctx, p.UserID, p.RoleID); err != nil {
		return nil, err
	}
	s.svc.Access.WriteAudit(ctx, &identity.User.ID, "access.role.assign", "user", &p.UserID, "rpc")
	return map[string]any{"ok": true}, nil
}

func (s *Server) listAuditLogs(ctx context.Context, _ domain.Identity, raw json.RawMessage) (any, error) {
	var p struct {
		Limit int `json:"limit"`
	}
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	return s.svc.Access.ListAuditLogs(ctx, p.Limit)
}

func orEmail(name string, identity domain.Identity) string {
	if name != "" {
		return name
	}
	return identity.User.Email
}
