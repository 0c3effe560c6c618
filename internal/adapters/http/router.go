package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/magsav/internal/application"
	"github.com/atvirokodosprendimai/magsav/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const sessionCookieName = "magsav_session"

type contextKey string

const identityKey contextKey = "identity"

type Handler struct {
	svc        application.Services
	log        *zap.Logger
	sessionTTL time.Duration
}

func NewRouter(svc application.Services, log *zap.Logger, sessionTTL time.Duration) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if sessionTTL <= 0 {
		sessionTTL = 12 * time.Hour
	}
	h := &Handler{svc: svc, log: log, sessionTTL: sessionTTL}
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(log))

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/login", h.handleAPILogin)
		api.With(h.requireAuthAPI(application.PermissionRead)).Get("/auth/whoami", h.handleAPIWhoAmI)
		api.With(h.requireAuthAPI(application.PermissionRead)).Post("/auth/logout", h.handleAPILogout)

		api.With(h.requireAuthAPI(application.PermissionRead)).Get("/products", h.handleAPIListProducts)
		api.With(h.requireAuthAPI(application.PermissionWrite)).Post("/products", h.handleAPICreateProduct)
		api.With(h.requireAuthAPI(application.PermissionRead)).Get("/products/resolve", h.handleAPIResolveProduct)
		api.With(h.requireAuthAPI(application.PermissionRead)).Get("/products/{id}", h.handleAPIGetProduct)
		api.With(h.requireAuthAPI(application.PermissionWrite)).Post("/products/{id}/situation", h.handleAPIUpdateSituation)
		api.With(h.requireAuthAPI(application.PermissionRead)).Get("/products/{id}/interventions", h.handleAPIProductInterventions)

		api.With(h.requireAuthAPI(application.PermissionRead)).Get("/requests", h.handleAPIListRequests)
		api.With(h.requireAuthAPI(application.PermissionRead)).Get("/requests/pending", h.handleAPIListPendingRequests)
		api.With(h.requireAuthAPI(application.PermissionWrite)).Post("/requests", h.handleAPICreateRequest)
		api.With(h.requireAuthAPI(application.PermissionRead)).Get("/requests/{id}", h.handleAPIGetRequest)
		api.With(h.requireAuthAPI(application.PermissionValidate)).Post("/requests/{id}/accept", h.handleAPIAcceptRequest)
		api.With(h.requireAuthAPI(application.PermissionValidate)).Post("/requests/{id}/reject", h.handleAPIRejectRequest)

		api.With(h.requireAuthAPI(application.PermissionRead)).Get("/interventions", h.handleAPIListInterventions)
		api.With(h.requireAuthAPI(application.PermissionRead)).Get("/interventions/export.xlsx", h.handleAPIExportInterventions)
		api.With(h.requireAuthAPI(application.PermissionRead)).Get("/interventions/{id}", h.handleAPIGetIntervention)
		api.With(h.requireAuthAPI(application.PermissionWrite)).Post("/interventions/{id}/status", h.handleAPIUpdateInterventionStatus)

		api.With(h.requireAuthAPI(application.PermissionAdmin)).Get("/access/users", h.handleAPIListUsers)
		api.With(h.requireAuthAPI(application.PermissionAdmin)).Post("/access/users", h.handleAPICreateUser)
		api.With(h.requireAuthAPI(application.PermissionAdmin)).Get("/access/roles", h.handleAPIListRoles)
		api.With(h.requireAuthAPI(application.PermissionAdmin)).Post("/access/assign-role", h.handleAPIAssignRole)
		api.With(h.requireAuthAPI(application.PermissionAdmin)).Get("/audit/logs", h.handleAPIListAuditLogs)
	})

	return r
}

func (h *Handler) requireAuthAPI(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := h.authenticateRequest(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
				return
			}
			if err := h.svc.Access.Require(identity, permission); err != nil {
				writeJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden"})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
		})
	}
}

func (h *Handler) authenticateRequest(r *http.Request) (domain.Identity, bool) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[7:])
		identity, err := h.svc.Access.AuthenticateBearerToken(r.Context(), token)
		if err == nil {
			return identity, true
		}
	}

	c, err := r.Cookie(sessionCookieName)
	if err == nil && strings.TrimSpace(c.Value) != "" {
		identity, authErr := h.svc.Access.AuthenticateSession(r.Context(), c.Value)
		if authErr == nil {
			return identity, true
		}
	}

	return domain.Identity{}, false
}

func identityFromContext(ctx context.Context) (domain.Identity, bool) {
	value := ctx.Value(identityKey)
	if value == nil {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	return identity, ok
}

func currentUserEmail(ctx context.Context) string {
	identity, ok := identityFromContext(ctx)
	if !ok {
		return ""
	}
	return identity.User.Email
}

func currentUserID(ctx context.Context) *uint {
	identity, ok := identityFromContext(ctx)
	if !ok {
		return nil
	}
	id := identity.User.ID
	return &id
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   false,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps domain errors onto HTTP status codes. Storage and other
// unclassified failures are logged and answered with a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		reqID, _ := r.Context().Value(requestIDKey).(string)
		h.log.Error("request failed", zap.String("request_id", reqID), zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, status, map[string]any{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "id")
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid id"})
		return 0, false
	}
	return uint(v), true
}

func queryLimit(r *http.Request) int {
	v, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return v
}

func (h *Handler) writeAudit(ctx context.Context, action, targetType string, targetID *uint) {
	h.svc.Access.WriteAudit(ctx, currentUserID(ctx), action, targetType, targetID, "")
}
