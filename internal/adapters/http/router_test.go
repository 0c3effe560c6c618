package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/magsav/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/magsav/internal/application"
	"github.com/atvirokodosprendimai/magsav/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type testServer struct {
	handler http.Handler
	access  *application.AccessService
	db      *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithLogger(t, nil)
}

func newTestServerWithLogger(t *testing.T, log *zap.Logger) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "magsav_http_test.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	_, err = sqlite.RunMigrations(ctx, db)
	require.NoError(t, err)

	uow := sqlite.NewUnitOfWork(db)
	access := application.NewAccessService(sqlite.NewAccessRepository(db), nil)
	require.NoError(t, access.Bootstrap(ctx, "admin@magsav.local", "secret"))

	provisioner := application.NewProvisioner(application.NewUIDGenerator(0))
	svc := application.Services{
		Access:        access,
		Products:      application.NewProductService(uow, provisioner),
		Requests:      application.NewRequestService(uow.Repositories().Requests, uow.Repositories().Products),
		Lifecycle:     application.NewLifecycleService(uow, provisioner, application.NewOpener(), access, nil),
		Interventions: application.NewInterventionService(uow.Repositories().Interventions),
	}
	return &testServer{handler: NewRouter(svc, log, time.Hour), access: access, db: db}
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := s.do(t, "", http.MethodPost, "/api/auth/login", map[string]any{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func (s *testServer) do(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "admin@magsav.local", "secret")

	rec := srv.do(t, token, http.MethodPost, "/api/requests", map[string]any{
		"type":              "PRODUIT_NON_REPERTORIE",
		"product_name":      "Scanner X",
		"product_serial":    "SN-001",
		"fault_description": "paper jam",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	created := decode[domain.ServiceRequest](t, rec)
	assert.Equal(t, domain.RequestPending, created.Status)
	assert.Equal(t, "admin@magsav.local", created.RequesterName)

	rec = srv.do(t, token, http.MethodGet, "/api/requests/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.ServiceRequest](t, rec), 1)

	rec = srv.do(t, token, http.MethodPost, "/api/requests/1/accept", map[string]any{"create_product_if_unknown": true, "notes": "ok"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[application.AcceptResult](t, rec)
	assert.True(t, res.ProductCreated)
	assert.Equal(t, domain.RequestValidated, res.Request.Status)
	assert.Equal(t, "admin@magsav.local", res.Request.ValidatorName)
	require.NotNil(t, res.Product)
	assert.True(t, application.ValidUID(res.Product.UID))

	rec = srv.do(t, token, http.MethodPost, "/api/requests/1/reject", map[string]any{"notes": "too late"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, token, http.MethodPost, "/api/requests/99/reject", map[string]any{})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, token, http.MethodGet, "/api/products/resolve?uid="+res.Product.UID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resolved := decode[map[string]any](t, rec)
	assert.Equal(t, true, resolved["known"])

	rec = srv.do(t, token, http.MethodPost, "/api/interventions/1/status", map[string]any{"status": "Terminée"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := decode[domain.Intervention](t, rec)
	require.NotNil(t, closed.ExitedAt)

	rec = srv.do(t, token, http.MethodGet, "/api/interventions/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Interventions")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCreateRequestValidationIsBadRequest(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "admin@magsav.local", "secret")

	rec := srv.do(t, token, http.MethodPost, "/api/requests", map[string]any{
		"type":           "PRODUIT_NON_REPERTORIE",
		"product_name":   "Scanner X",
		"product_serial": "SN-001",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, token, http.MethodGet, "/api/requests?status=PERDU", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, token, http.MethodPost, "/api/requests", map[string]any{
		"type":              "PRODUIT_NON_REPERTORIE",
		"product_id":        1,
		"product_name":      "Scanner X",
		"product_serial":    "SN-001",
		"fault_description": "paper jam",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRequestForMissingProductIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "admin@magsav.local", "secret")

	rec := srv.do(t, token, http.MethodPost, "/api/requests", map[string]any{
		"type":              "PRODUIT_REPERTORIE",
		"product_id":        999,
		"fault_description": "no power",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	rec = srv.do(t, token, http.MethodGet, "/api/requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]domain.ServiceRequest](t, rec))
}

func TestProductInterventionHistory(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "admin@magsav.local", "secret")

	rec := srv.do(t, token, http.MethodPost, "/api/requests", map[string]any{
		"type":              "PRODUIT_NON_REPERTORIE",
		"product_name":      "Scanner X",
		"product_serial":    "SN-001",
		"fault_description": "paper jam",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = srv.do(t, token, http.MethodPost, "/api/requests/1/accept", map[string]any{"create_product_if_unknown": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[application.AcceptResult](t, rec)
	require.NotNil(t, res.Product)

	rec = srv.do(t, token, http.MethodGet, fmt.Sprintf("/api/products/%d/interventions", res.Product.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	history := decode[[]domain.Intervention](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, res.Intervention.ID, history[0].ID)

	rec = srv.do(t, token, http.MethodGet, "/api/products/999/interventions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]domain.Intervention](t, rec))

	rec = srv.do(t, "", http.MethodGet, "/api/products/1/interventions", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStorageErrorsAreNotLeaked(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	srv := newTestServerWithLogger(t, zap.New(core))
	token := srv.login(t, "admin@magsav.local", "secret")

	require.NoError(t, srv.db.Exec("DROP TABLE interventions").Error)

	rec := srv.do(t, token, http.MethodGet, "/api/interventions", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "internal error", body["error"])
	assert.NotContains(t, rec.Body.String(), "no such table")

	failures := logs.FilterMessage("request failed").All()
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].ContextMap()["error"], "interventions")
	assert.Equal(t, rec.Header().Get("X-Request-ID"), failures[0].ContextMap()["request_id"])
}

func TestPermissionsAreEnforced(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	rec := srv.do(t, "", http.MethodGet, "/api/requests", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	roles, err := srv.access.ListRoles(ctx)
	require.NoError(t, err)
	var techRole uint
	for _, r := range roles {
		if r.Key == "technicien" {
			techRole = r.ID
		}
	}
	_, err = srv.access.CreateUser(ctx, "tech@magsav.local", "pw", techRole)
	require.NoError(t, err)
	token := srv.login(t, "tech@magsav.local", "pw")

	rec = srv.do(t, token, http.MethodGet, "/api/requests", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, token, http.MethodPost, "/api/requests/1/accept", map[string]any{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, token, http.MethodGet, "/api/audit/logs", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		domain.ErrValidation:   http.StatusBadRequest,
		domain.ErrNotFound:     http.StatusNotFound,
		domain.ErrConflict:     http.StatusConflict,
		domain.ErrStorage:      http.StatusInternalServerError,
		domain.ErrUnauthorized: http.StatusUnauthorized,
		domain.ErrForbidden:    http.StatusForbidden,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}
