package domain

import (
	"strings"
	"time"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "EN_ATTENTE"
	RequestValidated RequestStatus = "VALIDEE"
	RequestRejected  RequestStatus = "REFUSEE"
)

func ParseRequestStatus(raw string) (RequestStatus, bool) {
	switch s := RequestStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case RequestPending, RequestValidated, RequestRejected:
		return s, true
	}
	return "", false
}

// Resolved reports whether the request has left EN_ATTENTE. Resolution is final.
func (s RequestStatus) Resolved() bool {
	return s == RequestValidated || s == RequestRejected
}

type RequestType string

const (
	RequestKnownProduct   RequestType = "PRODUIT_REPERTORIE"
	RequestUnknownProduct RequestType = "PRODUIT_NON_REPERTORIE"
)

func ParseRequestType(raw string) (RequestType, bool) {
	switch t := RequestType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case RequestKnownProduct, RequestUnknownProduct:
		return t, true
	}
	return "", false
}

type OwnerType string

const (
	OwnerNone     OwnerType = ""
	OwnerClient   OwnerType = "CLIENT"
	OwnerCompany  OwnerType = "SOCIETE"
	OwnerInternal OwnerType = "INTERNE"
)

func ParseOwnerType(raw string) (OwnerType, bool) {
	switch o := OwnerType(strings.ToUpper(strings.TrimSpace(raw))); o {
	case OwnerNone, OwnerClient, OwnerCompany, OwnerInternal:
		return o, true
	}
	return "", false
}

type Situation string

const (
	SituationInStock   Situation = "En stock"
	SituationInSAV     Situation = "En SAV"
	SituationInRepair  Situation = "En réparation"
	SituationInService Situation = "En service"
	SituationRented    Situation = "En location"
	SituationSold      Situation = "Vendu"
	SituationScrapped  Situation = "Rebut"
)

var situations = []Situation{
	SituationInStock,
	SituationInSAV,
	SituationInRepair,
	SituationInService,
	SituationRented,
	SituationSold,
	SituationScrapped,
}

func ParseSituation(raw string) (Situation, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range situations {
		if strings.EqualFold(string(s), trimmed) {
			return s, true
		}
	}
	return "", false
}

type InterventionStatus string

const (
	InterventionInProgress   InterventionStatus = "En cours"
	InterventionDiagnosis    InterventionStatus = "En diagnostic"
	InterventionWaitingParts InterventionStatus = "En attente pièces"
	InterventionDone         InterventionStatus = "Terminée"
	InterventionCancelled    InterventionStatus = "Annulée"
)

var interventionStatuses = []InterventionStatus{
	InterventionInProgress,
	InterventionDiagnosis,
	InterventionWaitingParts,
	InterventionDone,
	InterventionCancelled,
}

func ParseInterventionStatus(raw string) (InterventionStatus, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range interventionStatuses {
		if strings.EqualFold(string(s), trimmed) {
			return s, true
		}
	}
	return "", false
}

// Terminal statuses close the ticket and stamp its exit date.
func (s InterventionStatus) Terminal() bool {
	return s == InterventionDone || s == InterventionCancelled
}

type Product struct {
	ID           uint
	UID          string
	Name         string
	SerialNumber string
	Manufacturer string
	Category     string
	Subcategory  string
	Description  string
	Situation    Situation
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ProductFilter struct {
	Query     string
	Situation Situation
	Limit     int
}

type Intervention struct {
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
	Status           InterventionStatus
	EnteredAt        time.Time
	ExitedAt         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type InterventionFilter struct {
	ProductID *uint
	Status    InterventionStatus
	Limit     int
	Offset    int
}

// ServiceRequest is an intake ticket ("demande d'intervention") awaiting an operator decision.
type ServiceRequest struct {
	ID     uint
	Status RequestStatus
	Type   RequestType

	ProductID           *uint
	ProductName         string
	ProductSerial       string
	ProductUID          string
	ProductManufacturer string
	ProductCategory     string
	ProductSubcategory  string
	ProductDescription  string

	OwnerType    OwnerType
	OwnerName    string
	OwnerDetails string

	FaultDescription string
	ClientNote       string
	Detector         string
	RequesterName    string

	ValidatorName   string
	ValidationNotes string
	ValidatedAt     *time.Time
	InterventionID  *uint

	CreatedAt time.Time
	UpdatedAt time.Time
}

type ServiceRequestFilter struct {
	Status RequestStatus
	Type   RequestType
	Query  string
	Limit  int
}

type User struct {
	ID           uint
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AuthSession struct {
	ID        uint
	UserID    uint
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type APIToken struct {
	ID        uint
	UserID    uint
	Name      string
	TokenHash string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

type Identity struct {
	User        User
	Permissions map[string]struct{}
}

type Role struct {
	ID        uint
	Key       string
	Name      string
	CreatedAt time.Time
}

type AuditLog struct {
	ID          uint
	ActorUserID *uint
	Action      string
	TargetType  string
	TargetID    *uint
	Metadata    string
	CreatedAt   time.Time
}

type AuditRecord struct {
	ID             uint
	ActorUserID    *uint
	ActorUserEmail string
	Action         string
	TargetType     string
	TargetID       *uint
	Metadata       string
	CreatedAt      time.Time
}
