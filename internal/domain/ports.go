package domain

import "context"

type ProductRepository interface {
	FindByUID(ctx context.Context, uid string) (*Product, error)
	ExistsByUID(ctx context.Context, uid string) (bool, error)
	GetByID(ctx context.Context, id uint) (Product, error)
	Create(ctx context.Context, value Product) (Product, error)
	List(ctx context.Context, filter ProductFilter) ([]Product, error)
	UpdateSituation(ctx context.Context, id uint, situation Situation) (Product, error)
}

type InterventionRepository interface {
	Create(ctx context.Context, value Intervention) (Intervention, error)
	GetByID(ctx context.Context, id uint) (Intervention, error)
	List(ctx context.Context, filter InterventionFilter) ([]Intervention, error)
	ListByProduct(ctx context.Context, productID uint) ([]Intervention, error)
	UpdateStatus(ctx context.Context, id uint, status InterventionStatus) (Intervention, error)
}

// ServiceRequestRepository persists intake requests. Validate and Reject only
// touch rows still in EN_ATTENTE: ErrNotFound when the id is unknown,
// ErrConflict when the row was already resolved.
type ServiceRequestRepository interface {
	Create(ctx context.Context, value ServiceRequest) (ServiceRequest, error)
	GetByID(ctx context.Context, id uint) (ServiceRequest, error)
	List(ctx context.Context, filter ServiceRequestFilter) ([]ServiceRequest, error)
	ListPending(ctx context.Context) ([]ServiceRequest, error)
	Validate(ctx context.Context, id uint, validatorName, notes string, interventionID uint) (ServiceRequest, error)
	Reject(ctx context.Context, id uint, validatorName, notes string) (ServiceRequest, error)
}

type AccessRepository interface {
	CreateUser(ctx context.Context, value User) (User, error)
	CountUsers(ctx context.Context) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id uint) (User, error)
	ListUsers(ctx context.Context, query string, limit int) ([]User, error)
	CreateSession(ctx context.Context, value AuthSession) (AuthSession, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (AuthSession, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	CreateAPIToken(ctx context.Context, value APIToken) (APIToken, error)
	GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (APIToken, error)
	CreateRoleIfMissing(ctx context.Context, key, name string) (uint, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreatePermissionIfMissing(ctx context.Context, key string) (uint, error)
	GrantPermissionToRole(ctx context.Context, roleID, permissionID uint) error
	AssignRoleToUser(ctx context.Context, userID, roleID uint) error
	GetPermissionsByUserID(ctx context.Context, userID uint) ([]string, error)
	CreateAuditLog(ctx context.Context, value AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]AuditRecord, error)
}

// Repositories groups the stores touched by the request lifecycle. Inside
// UnitOfWork.Within they all share one transaction.
type Repositories struct {
	Products      ProductRepository
	Interventions InterventionRepository
	Requests      ServiceRequestRepository
}

type UnitOfWork interface {
	Repositories() Repositories
	Within(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
