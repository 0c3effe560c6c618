package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/atvirokodosprendimai/magsav/internal/application"
	"github.com/atvirokodosprendimai/magsav/internal/domain"
)

func (h *Handler) handleAPIListProducts(w http.ResponseWriter, r *http.Request) {
	filter := domain.ProductFilter{Query: r.URL.Query().Get("q"), Limit: queryLimit(r)}
	if raw := r.URL.Query().Get("situation"); raw != "" {
		situation, ok := domain.ParseSituation(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown situation"})
			return
		}
		filter.Situation = situation
	}
	items, err := h.svc.Products.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type apiCreateProductRequest struct {
	Name         string `json:"name"`
	SerialNumber string `json:"serial_number"`
	Manufacturer string `json:"manufacturer"`
	Category     string `json:"category"`
	Subcategory  string `json:"subcategory"`
	Description  string `json:"description"`
	Situation    string `json:"situation"`
}

func (h *Handler) handleAPICreateProduct(w http.ResponseWriter, r *http.Request) {
	var req apiCreateProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := h.svc.Products.Create(r.Context(), application.ProductDraft{
		Name:         req.Name,
		SerialNumber: req.SerialNumber,
		Manufacturer: req.Manufacturer,
		Category:     req.Category,
		Subcategory:  req.Subcategory,
		Description:  req.Description,
		Situation:    domain.Situation(req.Situation),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeAudit(r.Context(), "product.create", "product", &v.ID)
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleAPIGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.svc.Products.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleAPIResolveProduct(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Products.Resolve(r.Context(), r.URL.Query().Get("uid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uid": res.UID, "known": res.Known != nil, "product": res.Known})
}

type apiSituationRequest struct {
	Situation string `json:"situation"`
}

func (h *Handler) handleAPIUpdateSituation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req apiSituationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := h.svc.Products.UpdateSituation(r.Context(), id, req.Situation)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeAudit(r.Context(), "product.situation", "product", &v.ID)
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleAPIListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ServiceRequestFilter{Query: q.Get("q"), Limit: queryLimit(r)}
	if raw := q.Get("status"); raw != "" {
		status, ok := domain.ParseRequestStatus(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown status"})
			return
		}
		filter.Status = status
	}
	if raw := q.Get("type"); raw != "" {
		requestType, ok := domain.ParseRequestType(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown type"})
			return
		}
		filter.Type = requestType
	}
	items, err := h.svc.Requests.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIListPendingRequests(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Requests.ListPending(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type apiCreateRequestRequest struct {
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

func (req apiCreateRequestRequest) input() application.CreateRequestInput {
	return application.CreateRequestInput{
		Type:                domain.RequestType(req.Type),
		ProductID:           req.ProductID,
		ProductName:         req.ProductName,
		ProductSerial:       req.ProductSerial,
		ProductUID:          req.ProductUID,
		ProductManufacturer: req.ProductManufacturer,
		ProductCategory:     req.ProductCategory,
		ProductSubcategory:  req.ProductSubcategory,
		ProductDescription:  req.ProductDescription,
		OwnerType:           domain.OwnerType(req.OwnerType),
		OwnerName:           req.OwnerName,
		OwnerDetails:        req.OwnerDetails,
		FaultDescription:    req.FaultDescription,
		ClientNote:          req.ClientNote,
		Detector:            req.Detector,
		RequesterName:       req.RequesterName,
	}
}

func (h *Handler) handleAPICreateRequest(w http.ResponseWriter, r *http.Request) {
	var req apiCreateRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := req.input()
	in.RequesterName = defaultRequester(in.RequesterName, currentUserEmail(r.Context()))
	v, err := h.svc.Requests.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeAudit(r.Context(), "request.create", "service_request", &v.ID)
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleAPIGetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.svc.Requests.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type apiAcceptRequest struct {
	CreateProductIfUnknown bool                         `json:"create_product_if_unknown"`
	ValidatorName          string                       `json:"validator_name"`
	Notes                  string                       `json:"notes"`
	Overrides              application.ProductOverrides `json:"overrides"`
}

func (h *Handler) handleAPIAcceptRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req apiAcceptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Lifecycle.Accept(r.Context(), application.AcceptInput{
		RequestID:              id,
		CreateProductIfUnknown: req.CreateProductIfUnknown,
		ValidatorName:          defaultRequester(req.ValidatorName, currentUserEmail(r.Context())),
		Notes:                  req.Notes,
		ProductOverrides:       req.Overrides,
		ActorUserID:            currentUserID(r.Context()),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type apiRejectRequest struct {
	ValidatorName string `json:"validator_name"`
	Notes         string `json:"notes"`
}

func (h *Handler) handleAPIRejectRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req apiRejectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := h.svc.Lifecycle.Reject(r.Context(), application.RejectInput{
		RequestID:     id,
		ValidatorName: defaultRequester(req.ValidatorName, currentUserEmail(r.Context())),
		Notes:         req.Notes,
		ActorUserID:   currentUserID(r.Context()),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleAPIListInterventions(w http.ResponseWriter, r *http.Request) {
	filter, ok := interventionFilter(w, r)
	if !ok {
		return
	}
	items, err := h.svc.Interventions.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIProductInterventions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	items, err := h.svc.Interventions.ListByProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIGetIntervention(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.svc.Interventions.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type apiInterventionStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleAPIUpdateInterventionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req apiInterventionStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := h.svc.Interventions.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeAudit(r.Context(), "intervention.status", "intervention", &v.ID)
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleAPIExportInterventions(w http.ResponseWriter, r *http.Request) {
	filter, ok := interventionFilter(w, r)
	if !ok {
		return
	}
	f, filename, err := h.svc.Interventions.ExportXLSX(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(w); err != nil {
		h.log.Sugar().Warnw("write xlsx export", "error", err)
	}
}

func interventionFilter(w http.ResponseWriter, r *http.Request) (domain.InterventionFilter, bool) {
	q := r.URL.Query()
	filter := domain.InterventionFilter{Limit: queryLimit(r)}
	if raw := q.Get("status"); raw != "" {
		status, ok := domain.ParseInterventionStatus(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown status"})
			return filter, false
		}
		filter.Status = status
	}
	if raw := q.Get("product_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid product_id"})
			return filter, false
		}
		id := uint(v)
		filter.ProductID = &id
	}
	return filter, true
}

func defaultRequester(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
