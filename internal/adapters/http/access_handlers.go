package http

import (
	"net/http"
	"sort"
	"strings"
)

type apiLoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Mode      string `json:"mode"`
	TokenName string `json:"token_name"`
}

func (h *Handler) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	var req apiLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = "token"
	}

	if mode == "session" {
		u, token, err := h.svc.Access.LoginWithSession(r.Context(), req.Email, req.Password, h.sessionTTL)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
			return
		}
		h.setSessionCookie(w, token)
		writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "email": u.Email, "mode": "session"})
		return
	}

	u, token, err := h.svc.Access.LoginWithAPIToken(r.Context(), req.Email, req.Password, req.TokenName, nil)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "email": u.Email, "token": token, "mode": "token"})
}

func (h *Handler) handleAPIWhoAmI(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	perms := make([]string, 0, len(identity.Permissions))
	for p := range identity.Permissions {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	writeJSON(w, http.StatusOK, map[string]any{"id": identity.User.ID, "email": identity.User.Email, "permissions": perms})
}

func (h *Handler) handleAPILogout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	c, err := r.Cookie(sessionCookieName)
	if err == nil && c.Value != "" {
		_ = h.svc.Access.LogoutSession(r.Context(), c.Value)
		h.clearSessionCookie(w)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAPIListUsers(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Access.ListUsers(r.Context(), r.URL.Query().Get("q"), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type apiCreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   uint   `json:"role_id"`
}

func (h *Handler) handleAPICreateUser(w http.ResponseWriter, r *http.Request) {
	var req apiCreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := h.svc.Access.CreateUser(r.Context(), req.Email, req.Password, req.RoleID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeAudit(r.Context(), "access.user.create", "user", &v.ID)
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleAPIListRoles(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Access.ListRoles(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type apiAssignRoleRequest struct {
	UserID uint `json:"user_id"`
	RoleID uint `json:"role_id"`
}

func (h *Handler) handleAPIAssignRole(w http.ResponseWriter, r *http.Request) {
	var req apiAssignRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.Access.AssignRole(r.Context(), req.UserID, req.RoleID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeAudit(r.Context(), "access.role.assign", "user", &req.UserID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAPIListAuditLogs(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Access.ListAuditLogs(r.Context(), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
