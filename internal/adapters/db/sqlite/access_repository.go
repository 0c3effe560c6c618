package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
	"gorm.io/gorm"
)

// AccessRepository stores operators, their credentials, roles and the audit trail.
type AccessRepository struct {
	db *gorm.DB
}

func NewAccessRepository(db *gorm.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

func (r *AccessRepository) CreateUser(ctx context.Context, value domain.User) (domain.User, error) {
	m := UserModel{Email: normalizeEmail(value.Email), PasswordHash: value.PasswordHash}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.User{}, translateError(err, "user "+m.Email)
	}
	return toDomainUser(m), nil
}

func (r *AccessRepository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, translateError(err, "user count")
	}
	return count, nil
}

func (r *AccessRepository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&m).Error; err != nil {
		return domain.User{}, translateError(err, "user")
	}
	return toDomainUser(m), nil
}

func (r *AccessRepository) GetUserByID(ctx context.Context, id uint) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.User{}, translateError(err, "user")
	}
	return toDomainUser(m), nil
}

func (r *AccessRepository) ListUsers(ctx context.Context, query string, limit int) ([]domain.User, error) {
	q := r.db.WithContext(ctx).Model(&UserModel{})
	if strings.TrimSpace(query) != "" {
		q = q.Where("email LIKE ?", "%"+strings.TrimSpace(query)+"%")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	rows := make([]UserModel, 0)
	if err := q.Order("id DESC").Find(&rows).Error; err != nil {
		return nil, translateError(err, "user list")
	}
	result := make([]domain.User, 0, len(rows))
	for _, m := range rows {
		result = append(result, toDomainUser(m))
	}
	return result, nil
}

func (r *AccessRepository) CreateSession(ctx context.Context, value domain.AuthSession) (domain.AuthSession, error) {
	m := SessionModel{UserID: value.UserID, TokenHash: value.TokenHash, ExpiresAt: value.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.AuthSession{}, translateError(err, "session")
	}
	return domain.AuthSession{ID: m.ID, UserID: m.UserID, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *AccessRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.AuthSession, error) {
	var m SessionModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		return domain.AuthSession{}, translateError(err, "session")
	}
	return domain.AuthSession{ID: m.ID, UserID: m.UserID, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *AccessRepository) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&SessionModel{}).Error
	return translateError(err, "session")
}

func (r *AccessRepository) CreateAPIToken(ctx context.Context, value domain.APIToken) (domain.APIToken, error) {
	m := APITokenModel{UserID: value.UserID, Name: value.Name, TokenHash: value.TokenHash, ExpiresAt: value.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.APIToken{}, translateError(err, "api token")
	}
	return toDomainAPIToken(m), nil
}

func (r *AccessRepository) GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (domain.APIToken, error) {
	var m APITokenModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		return domain.APIToken{}, translateError(err, "api token")
	}
	return toDomainAPIToken(m), nil
}

func (r *AccessRepository) CreateRoleIfMissing(ctx context.Context, key, name string) (uint, error) {
	m := RoleModel{Key: key, Name: name}
	if err := r.db.WithContext(ctx).Where("key = ?", key).FirstOrCreate(&m).Error; err != nil {
		return 0, translateError(err, "role "+key)
	}
	return m.ID, nil
}

func (r *AccessRepository) ListRoles(ctx context.Context) ([]domain.Role, error) {
	rows := make([]RoleModel, 0)
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, translateError(err, "role list")
	}
	result := make([]domain.Role, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.Role{ID: m.ID, Key: m.Key, Name: m.Name, CreatedAt: m.CreatedAt})
	}
	return result, nil
}

func (r *AccessRepository) CreatePermissionIfMissing(ctx context.Context, key string) (uint, error) {
	m := PermissionModel{Key: key}
	if err := r.db.WithContext(ctx).Where("key = ?", key).FirstOrCreate(&m).Error; err != nil {
		return 0, translateError(err, "permission "+key)
	}
	return m.ID, nil
}

func (r *AccessRepository) GrantPermissionToRole(ctx context.Context, roleID, permissionID uint) error {
	m := RolePermissionModel{RoleID: roleID, PermissionID: permissionID}
	err := r.db.WithContext(ctx).Where("role_id = ? AND permission_id = ?", roleID, permissionID).FirstOrCreate(&m).Error
	return translateError(err, "role permission")
}

func (r *AccessRepository) AssignRoleToUser(ctx context.Context, userID, roleID uint) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&RoleModel{}).Where("id = ?", roleID).Count(&count).Error; err != nil {
		return translateError(err, "role")
	}
	if count == 0 {
		return translateError(gorm.ErrRecordNotFound, "role")
	}
	m := UserRoleModel{UserID: userID, RoleID: roleID}
	err := r.db.WithContext(ctx).Where("user_id = ? AND role_id = ?", userID, roleID).FirstOrCreate(&m).Error
	return translateError(err, "user role")
}

func (r *AccessRepository) GetPermissionsByUserID(ctx context.Context, userID uint) ([]string, error) {
	keys := make([]string, 0)
	err := r.db.WithContext(ctx).Raw(`
SELECT DISTINCT p.key
FROM permissions p
JOIN role_permissions rp ON rp.permission_id = p.id
JOIN user_roles ur ON ur.role_id = rp.role_id
WHERE ur.user_id = ?
ORDER BY p.key
`, userID).Scan(&keys).Error
	if err != nil {
		return nil, translateError(err, "permissions")
	}
	return keys, nil
}

func (r *AccessRepository) CreateAuditLog(ctx context.Context, value domain.AuditLog) error {
	m := AuditLogModel{ActorUserID: value.ActorUserID, Action: value.Action, TargetType: value.TargetType, TargetID: value.TargetID, Metadata: value.Metadata}
	return translateError(r.db.WithContext(ctx).Create(&m).Error, "audit log")
}

func (r *AccessRepository) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	type row struct {
		ID             uint
		ActorUserID    *uint
		ActorUserEmail string
		Action         string
		TargetType     string
		TargetID       *uint
		Metadata       string
		CreatedAt      time.Time
	}
	rows := make([]row, 0)
	err := r.db.WithContext(ctx).Raw(`
SELECT a.id,
       a.actor_user_id,
       COALESCE(u.email, '') AS actor_user_email,
       a.action,
       a.target_type,
       a.target_id,
       a.metadata,
       a.created_at
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_user_id
ORDER BY a.id DESC
LIMIT ?
`, limit).Scan(&rows).Error
	if err != nil {
		return nil, translateError(err, "audit log list")
	}
	result := make([]domain.AuditRecord, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.AuditRecord{
			ID:             m.ID,
			ActorUserID:    m.ActorUserID,
			ActorUserEmail: m.ActorUserEmail,
			Action:         m.Action,
			TargetType:     m.TargetType,
			TargetID:       m.TargetID,
			Metadata:       m.Metadata,
			CreatedAt:      m.CreatedAt,
		})
	}
	return result, nil
}

func toDomainUser(m UserModel) domain.User {
	return domain.User{ID: m.ID, Email: m.Email, PasswordHash: m.PasswordHash, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func toDomainAPIToken(m APITokenModel) domain.APIToken {
	return domain.APIToken{ID: m.ID, UserID: m.UserID, Name: m.Name, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
