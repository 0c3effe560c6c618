package main

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// invoke sends one operation over the configured transport. RPC params get
// the stored token; HTTP calls send it as a bearer header.
func invoke(ctx context.Context, cfg cliConfig, rpcMethod string, params map[string]any, httpMethod, path string, body any, out any) error {
	if cfg.Transport == "uds" {
		if params == nil {
			params = map[string]any{}
		}
		params["token"] = cfg.Token
		return newRPCClient(cfg.Socket).call(ctx, rpcMethod, params, out)
	}
	return newAPIClient(cfg.Server, cfg.Token).request(ctx, httpMethod, path, body, out)
}

func withQuery(path string, q url.Values) string {
	if encoded := q.Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}

func idPath(prefix string, id uint, suffix string) string {
	return prefix + "/" + uintToString(id) + suffix
}

func doLogin(ctx context.Context, cfg cliConfig, email, password, tokenName string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "auth.login", map[string]any{
			"email":      email,
			"password":   password,
			"token_name": tokenName,
		}, out)
	}
	client := newAPIClient(cfg.Server, "")
	return client.request(ctx, http.MethodPost, "/api/auth/login", map[string]any{
		"email":      email,
		"password":   password,
		"mode":       "token",
		"token_name": tokenName,
	}, out)
}

func doWhoAmI(ctx context.Context, cfg cliConfig, out any) error {
	return invoke(ctx, cfg, "auth.whoami", nil, http.MethodGet, "/api/auth/whoami", nil, out)
}

func doLogout(ctx context.Context, cfg cliConfig) error {
	if cfg.Transport == "uds" {
		return nil
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func doProductsList(ctx context.Context, cfg cliConfig, q, situation string, limit int, out any) error {
	query := url.Values{}
	if q != "" {
		query.Set("q", q)
	}
	if situation != "" {
		query.Set("situation", situation)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	params := map[string]any{"q": q, "situation": situation, "limit": limit}
	return invoke(ctx, cfg, "products.list", params, http.MethodGet, withQuery("/api/products", query), nil, out)
}

func doProductsGet(ctx context.Context, cfg cliConfig, id uint, out any) error {
	return invoke(ctx, cfg, "products.get", map[string]any{"id": id}, http.MethodGet, idPath("/api/products", id, ""), nil, out)
}

func doProductsCreate(ctx context.Context, cfg cliConfig, in map[string]any, out any) error {
	params := make(map[string]any, len(in)+1)
	for k, v := range in {
		params[k] = v
	}
	return invoke(ctx, cfg, "products.create", params, http.MethodPost, "/api/products", in, out)
}

func doProductsResolve(ctx context.Context, cfg cliConfig, uid string, out any) error {
	query := url.Values{"uid": []string{uid}}
	return invoke(ctx, cfg, "products.resolve", map[string]any{"uid": uid}, http.MethodGet, withQuery("/api/products/resolve", query), nil, out)
}

func doProductsSituation(ctx context.Context, cfg cliConfig, id uint, situation string, out any) error {
	params := map[string]any{"id": id, "situation": situation}
	body := map[string]any{"situation": situation}
	return invoke(ctx, cfg, "products.situation", params, http.MethodPost, idPath("/api/products", id, "/situation"), body, out)
}

func doProductsHistory(ctx context.Context, cfg cliConfig, id uint, out any) error {
	params := map[string]any{"product_id": id}
	return invoke(ctx, cfg, "interventions.by_product", params, http.MethodGet, idPath("/api/products", id, "/interventions"), nil, out)
}

func doRequestsList(ctx context.Context, cfg cliConfig, status, requestType, q string, limit int, out any) error {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if requestType != "" {
		query.Set("type", requestType)
	}
	if q != "" {
		query.Set("q", q)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	params := map[string]any{"status": status, "type": requestType, "q": q, "limit": limit}
	return invoke(ctx, cfg, "requests.list", params, http.MethodGet, withQuery("/api/requests", query), nil, out)
}

func doRequestsPending(ctx context.Context, cfg cliConfig, out any) error {
	return invoke(ctx, cfg, "requests.pending", nil, http.MethodGet, "/api/requests/pending", nil, out)
}

func doRequestsGet(ctx context.Context, cfg cliConfig, id uint, out any) error {
	return invoke(ctx, cfg, "requests.get", map[string]any{"id": id}, http.MethodGet, idPath("/api/requests", id, ""), nil, out)
}

func doRequestsCreate(ctx context.Context, cfg cliConfig, in map[string]any, out any) error {
	params := make(map[string]any, len(in)+1)
	for k, v := range in {
		params[k] = v
	}
	return invoke(ctx, cfg, "requests.create", params, http.MethodPost, "/api/requests", in, out)
}

func doRequestsAccept(ctx context.Context, cfg cliConfig, id uint, in map[string]any, out any) error {
	params := map[string]any{"id": id}
	for k, v := range in {
		params[k] = v
	}
	return invoke(ctx, cfg, "requests.accept", params, http.MethodPost, idPath("/api/requests", id, "/accept"), in, out)
}

func doRequestsReject(ctx context.Context, cfg cliConfig, id uint, validatorName, notes string, out any) error {
	body := map[string]any{"validator_name": validatorName, "notes": notes}
	params := map[string]any{"id": id, "validator_name": validatorName, "notes": notes}
	return invoke(ctx, cfg, "requests.reject", params, http.MethodPost, idPath("/api/requests", id, "/reject"), body, out)
}

func interventionQuery(status string, productID uint) url.Values {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if productID != 0 {
		query.Set("product_id", uintToString(productID))
	}
	return query
}

func doInterventionsList(ctx context.Context, cfg cliConfig, status string, productID uint, out any) error {
	params := map[string]any{"status": status}
	if productID != 0 {
		params["product_id"] = productID
	}
	path := withQuery("/api/interventions", interventionQuery(status, productID))
	return invoke(ctx, cfg, "interventions.list", params, http.MethodGet, path, nil, out)
}

func doInterventionsGet(ctx context.Context, cfg cliConfig, id uint, out any) error {
	return invoke(ctx, cfg, "interventions.get", map[string]any{"id": id}, http.MethodGet, idPath("/api/interventions", id, ""), nil, out)
}

func doInterventionsStatus(ctx context.Context, cfg cliConfig, id uint, status string, out any) error {
	params := map[string]any{"id": id, "status": status}
	body := map[string]any{"status": status}
	return invoke(ctx, cfg, "interventions.status", params, http.MethodPost, idPath("/api/interventions", id, "/status"), body, out)
}

// doInterventionsExport always goes over HTTP; the workbook is binary.
func doInterventionsExport(ctx context.Context, cfg cliConfig, status string, productID uint, w io.Writer) error {
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.download(ctx, withQuery("/api/interventions/export.xlsx", interventionQuery(status, productID)), w)
}

func doUsersList(ctx context.Context, cfg cliConfig, q string, out any) error {
	query := url.Values{}
	if q != "" {
		query.Set("q", q)
	}
	return invoke(ctx, cfg, "access.users.list", map[string]any{"q": q}, http.MethodGet, withQuery("/api/access/users", query), nil, out)
}

func doUsersCreate(ctx context.Context, cfg cliConfig, email, password string, roleID uint, out any) error {
	body := map[string]any{"email": email, "password": password, "role_id": roleID}
	params := map[string]any{"email": email, "password": password, "role_id": roleID}
	return invoke(ctx, cfg, "access.users.create", params, http.MethodPost, "/api/access/users", body, out)
}

func doRolesList(ctx context.Context, cfg cliConfig, out any) error {
	return invoke(ctx, cfg, "access.roles.list", nil, http.MethodGet, "/api/access/roles", nil, out)
}

func doAssignRole(ctx context.Context, cfg cliConfig, userID, roleID uint, out any) error {
	body := map[string]any{"user_id": userID, "role_id": roleID}
	params := map[string]any{"user_id": userID, "role_id": roleID}
	return invoke(ctx, cfg, "access.roles.assign", params, http.MethodPost, "/api/access/assign-role", body, out)
}

func doAuditList(ctx context.Context, cfg cliConfig, limit int, out any) error {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return invoke(ctx, cfg, "audit.list", map[string]any{"limit": limit}, http.MethodGet, withQuery("/api/audit/logs", query), nil, out)
}
