package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	PermissionAll      = "*"
	PermissionRead     = "sav.read"
	PermissionWrite    = "sav.write"
	PermissionValidate = "sav.validate"
	PermissionAdmin    = "admin"
)

type roleSeed struct {
	key         string
	name        string
	permissions []string
}

var bootstrapRoles = []roleSeed{
	{key: "admin", name: "Administrateur", permissions: []string{PermissionAll}},
	{key: "technicien", name: "Technicien", permissions: []string{PermissionRead, PermissionWrite}},
	{key: "responsable", name: "Responsable SAV", permissions: []string{PermissionRead, PermissionWrite, PermissionValidate}},
}

// AccessService handles operators, their credentials and the audit trail.
type AccessService struct {
	repo domain.AccessRepository
	log  *zap.Logger
}

func NewAccessService(repo domain.AccessRepository, log *zap.Logger) *AccessService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccessService{repo: repo, log: log}
}

// Bootstrap seeds the built-in roles and, on an empty user table, the first
// administrator.
func (s *AccessService) Bootstrap(ctx context.Context, email, password string) error {
	if blank(email) || blank(password) {
		return validationError("bootstrap admin email and password are required")
	}

	roleIDs := make(map[string]uint, len(bootstrapRoles))
	for _, seed := range bootstrapRoles {
		roleID, err := s.repo.CreateRoleIfMissing(ctx, seed.key, seed.name)
		if err != nil {
			return err
		}
		for _, key := range seed.permissions {
			permID, err := s.repo.CreatePermissionIfMissing(ctx, key)
			if err != nil {
				return err
			}
			if err := s.repo.GrantPermissionToRole(ctx, roleID, permID); err != nil {
				return err
			}
		}
		roleIDs[seed.key] = roleID
	}

	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	u, err := s.repo.CreateUser(ctx, domain.User{Email: strings.ToLower(strings.TrimSpace(email)), PasswordHash: hash})
	if err != nil {
		return err
	}
	if err := s.repo.AssignRoleToUser(ctx, u.ID, roleIDs["admin"]); err != nil {
		return err
	}

	s.log.Info("bootstrap administrator created", zap.String("email", u.Email))
	return s.repo.CreateAuditLog(ctx, domain.AuditLog{ActorUserID: &u.ID, Action: "auth.bootstrap_admin", TargetType: "user", TargetID: &u.ID, Metadata: "initial admin created"})
}

func (s *AccessService) LoginWithSession(ctx context.Context, email, password string, ttl time.Duration) (domain.User, string, error) {
	u, err := s.authenticateEmailPassword(ctx, email, password)
	if err != nil {
		return domain.User{}, "", err
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return domain.User{}, "", err
	}

	_, err = s.repo.CreateSession(ctx, domain.AuthSession{
		UserID:    u.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().UTC().Add(ttl),
	})
	if err != nil {
		return domain.User{}, "", err
	}

	s.WriteAudit(ctx, &u.ID, "auth.login.session", "user", &u.ID, "session login")
	return u, plain, nil
}

func (s *AccessService) LoginWithAPIToken(ctx context.Context, email, password, tokenName string, ttl *time.Duration) (domain.User, string, error) {
	u, err := s.authenticateEmailPassword(ctx, email, password)
	if err != nil {
		return domain.User{}, "", err
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return domain.User{}, "", err
	}

	var expiresAt *time.Time
	if ttl != nil {
		t := time.Now().UTC().Add(*ttl)
		expiresAt = &t
	}

	_, err = s.repo.CreateAPIToken(ctx, domain.APIToken{
		UserID:    u.ID,
		Name:      defaultString(tokenName, "cli"),
		TokenHash: hash,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return domain.User{}, "", err
	}

	s.WriteAudit(ctx, &u.ID, "auth.login.api_token", "user", &u.ID, "api token issued")
	return u, plain, nil
}

func (s *AccessService) AuthenticateSession(ctx context.Context, token string) (domain.Identity, error) {
	hash := hashToken(token)
	session, err := s.repo.GetSessionByTokenHash(ctx, hash)
	if err != nil {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	if session.ExpiresAt.Before(time.Now().UTC()) {
		_ = s.repo.DeleteSessionByTokenHash(ctx, hash)
		return domain.Identity{}, fmt.Errorf("%w: session expired", domain.ErrUnauthorized)
	}

	return s.identityByUserID(ctx, session.UserID)
}

func (s *AccessService) AuthenticateBearerToken(ctx context.Context, token string) (domain.Identity, error) {
	hash := hashToken(token)
	apit, err := s.repo.GetAPITokenByTokenHash(ctx, hash)
	if err != nil {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	if apit.ExpiresAt != nil && apit.ExpiresAt.Before(time.Now().UTC()) {
		return domain.Identity{}, fmt.Errorf("%w: token expired", domain.ErrUnauthorized)
	}

	return s.identityByUserID(ctx, apit.UserID)
}

// Authenticate accepts either a session token or an API token.
func (s *AccessService) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	if blank(token) {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	if identity, err := s.AuthenticateBearerToken(ctx, token); err == nil {
		return identity, nil
	}
	return s.AuthenticateSession(ctx, token)
}

func (s *AccessService) LogoutSession(ctx context.Context, token string) error {
	if blank(token) {
		return nil
	}
	return s.repo.DeleteSessionByTokenHash(ctx, hashToken(token))
}

func (s *AccessService) Can(identity domain.Identity, permission string) bool {
	if _, ok := identity.Permissions[PermissionAll]; ok {
		return true
	}
	_, ok := identity.Permissions[permission]
	return ok
}

// Require returns ErrForbidden when identity lacks permission.
func (s *AccessService) Require(identity domain.Identity, permission string) error {
	if s.Can(identity, permission) {
		return nil
	}
	return fmt.Errorf("%w: missing permission %s", domain.ErrForbidden, permission)
}

// WriteAudit records an action. Failures are logged and never reach the caller.
func (s *AccessService) WriteAudit(ctx context.Context, actorUserID *uint, action, targetType string, targetID *uint, metadata string) {
	err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ActorUserID: actorUserID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Metadata:    metadata,
	})
	if err != nil {
		s.log.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *AccessService) CreateUser(ctx context.Context, email, password string, roleID uint) (domain.User, error) {
	if blank(email) || blank(password) {
		return domain.User{}, validationError("email and password are required")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.repo.CreateUser(ctx, domain.User{Email: strings.ToLower(strings.TrimSpace(email)), PasswordHash: hash})
	if err != nil {
		return domain.User{}, err
	}
	if roleID != 0 {
		if err := s.repo.AssignRoleToUser(ctx, u.ID, roleID); err != nil {
			return domain.User{}, err
		}
	}
	return u, nil
}

func (s *AccessService) ListUsers(ctx context.Context, query string, limit int) ([]domain.User, error) {
	return s.repo.ListUsers(ctx, query, normalizeLimit(limit))
}

func (s *AccessService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.repo.ListRoles(ctx)
}

func (s *AccessService) AssignRole(ctx context.Context, userID, roleID uint) error {
	if userID == 0 || roleID == 0 {
		return validationError("user_id and role_id are required")
	}
	return s.repo.AssignRoleToUser(ctx, userID, roleID)
}

func (s *AccessService) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	return s.repo.ListAuditLogs(ctx, normalizeLimit(limit))
}

func (s *AccessService) authenticateEmailPassword(ctx context.Context, email, password string) (domain.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
		}
		return domain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	return u, nil
}

func (s *AccessService) identityByUserID(ctx context.Context, userID uint) (domain.Identity, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	permList, err := s.repo.GetPermissionsByUserID(ctx, userID)
	if err != nil {
		return domain.Identity{}, err
	}
	permMap := make(map[string]struct{}, len(permList))
	for _, p := range permList {
		permMap[p] = struct{}{}
	}
	return domain.Identity{User: u, Permissions: permMap}, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func newTokenPair() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	plain := base64.RawURLEncoding.EncodeToString(raw)
	return plain, hashToken(plain), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum[:])
}
