package sqlite

import "time"

type ProductModel struct {
	ID           uint   `gorm:"primaryKey"`
	UID          string `gorm:"column:uid;uniqueIndex;not null"`
	Name         string `gorm:"not null;index"`
	SerialNumber string `gorm:"not null;default:'';index"`
	Manufacturer string `gorm:"not null;default:''"`
	Category     string `gorm:"not null;default:''"`
	Subcategory  string `gorm:"not null;default:''"`
	Description  string `gorm:"not null;default:''"`
	Situation    string `gorm:"not null;default:'En stock'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ProductModel) TableName() string { return "products" }

type InterventionModel struct {
	ID               uint `gorm:"primaryKey"`
	ProductID        uint `gorm:"not null;index"`
	ServiceRequestID *uint
	SerialNumber     string `gorm:"not null;default:''"`
	ClientNote       string `gorm:"not null;default:''"`
	FaultDescription string `gorm:"not null;default:''"`
	Category         string `gorm:"not null;default:''"`
	Subcategory      string `gorm:"not null;default:''"`
	Status           string `gorm:"not null;default:'En cours';index"`
	EnteredAt        time.Time
	ExitedAt         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (InterventionModel) TableName() string { return "interventions" }

type ServiceRequestModel struct {
	ID                  uint   `gorm:"primaryKey"`
	Status              string `gorm:"not null;default:'EN_ATTENTE';index"`
	RequestType         string `gorm:"not null"`
	ProductID           *uint
	ProductName         string `gorm:"not null;default:''"`
	ProductSerial       string `gorm:"not null;default:''"`
	ProductUID          string `gorm:"column:product_uid;not null;default:''"`
	ProductManufacturer string `gorm:"not null;default:''"`
	ProductCategory     string `gorm:"not null;default:''"`
	ProductSubcategory  string `gorm:"not null;default:''"`
	ProductDescription  string `gorm:"not null;default:''"`
	OwnerType           string `gorm:"not null;default:''"`
	OwnerName           string `gorm:"not null;default:''"`
	OwnerDetails        string `gorm:"not null;default:''"`
	FaultDescription    string `gorm:"not null;default:''"`
	ClientNote          string `gorm:"not null;default:''"`
	Detector            string `gorm:"not null;default:''"`
	RequesterName       string `gorm:"not null"`
	ValidatorName       string `gorm:"not null;default:''"`
	ValidationNotes     string `gorm:"not null;default:''"`
	ValidatedAt         *time.Time
	InterventionID      *uint
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (ServiceRequestModel) TableName() string { return "service_requests" }

type UserModel struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type SessionModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (SessionModel) TableName() string { return "sessions" }

type APITokenModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	Name      string `gorm:"not null"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (APITokenModel) TableName() string { return "api_tokens" }

type RoleModel struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"not null;uniqueIndex"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
}

func (RoleModel) TableName() string { return "roles" }

type PermissionModel struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
}

func (PermissionModel) TableName() string { return "permissions" }

type UserRoleModel struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;index:idx_user_role,unique"`
	RoleID    uint `gorm:"not null;index:idx_user_role,unique"`
	CreatedAt time.Time
}

func (UserRoleModel) TableName() string { return "user_roles" }

type RolePermissionModel struct {
	ID           uint `gorm:"primaryKey"`
	RoleID       uint `gorm:"not null;index:idx_role_perm,unique"`
	PermissionID uint `gorm:"not null;index:idx_role_perm,unique"`
	CreatedAt    time.Time
}

func (RolePermissionModel) TableName() string { return "role_permissions" }

type AuditLogModel struct {
	ID          uint `gorm:"primaryKey"`
	ActorUserID *uint
	Action      string `gorm:"not null;index"`
	TargetType  string `gorm:"not null;index"`
	TargetID    *uint
	Metadata    string
	CreatedAt   time.Time
}

func (AuditLogModel) TableName() string { return "audit_logs" }
