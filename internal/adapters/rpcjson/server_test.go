package rpcjson

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/magsav/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/magsav/internal/application"
	"github.com/atvirokodosprendimai/magsav/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func newServices(t *testing.T) application.Services {
	t.Helper()
	svc, _ := newServicesWithDB(t)
	return svc
}

func newServicesWithDB(t *testing.T) (application.Services, *gorm.DB) {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "magsav_rpc_test.db"), 0)
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
	return application.Services{
		Access:        access,
		Products:      application.NewProductService(uow, provisioner),
		Requests:      application.NewRequestService(uow.Repositories().Requests, uow.Repositories().Products),
		Lifecycle:     application.NewLifecycleService(uow, provisioner, application.NewOpener(), access, nil),
		Interventions: application.NewInterventionService(uow.Repositories().Interventions),
	}, db
}

func call(t *testing.T, s *Server, method string, params any) response {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return s.dispatch(context.Background(), request{JSONRPC: "2.0", Method: method, Params: raw, ID: 1})
}

func login(t *testing.T, s *Server) string {
	t.Helper()
	resp := call(t, s, "auth.login", map[string]any{"email": "admin@magsav.local", "password": "secret"})
	require.Nil(t, resp.Error)
	token, _ := resp.Result.(map[string]any)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestDispatchLifecycle(t *testing.T) {
	s := &Server{svc: newServices(t), log: zap.NewNop()}
	token := login(t, s)

	resp := call(t, s, "requests.create", map[string]any{
		"token":             token,
		"type":              "PRODUIT_NON_REPERTORIE",
		"product_name":      "Scanner X",
		"product_serial":    "SN-001",
		"fault_description": "paper jam",
	})
	require.Nil(t, resp.Error)

	resp = call(t, s, "requests.accept", map[string]any{"token": token, "id": 1, "create_product_if_unknown": true})
	require.Nil(t, resp.Error)
	res, ok := resp.Result.(application.AcceptResult)
	require.True(t, ok)
	assert.True(t, res.ProductCreated)

	resp = call(t, s, "requests.reject", map[string]any{"token": token, "id": 1, "notes": "late"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeConflict, resp.Error.Code)

	resp = call(t, s, "requests.get", map[string]any{"token": token, "id": 42})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeNotFound, resp.Error.Code)

	resp = call(t, s, "interventions.status", map[string]any{"token": token, "id": res.Intervention.ID, "status": "broken"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeValidation, resp.Error.Code)

	resp = call(t, s, "interventions.by_product", map[string]any{"token": token, "product_id": res.Product.ID})
	require.Nil(t, resp.Error)
	history, ok := resp.Result.([]domain.Intervention)
	require.True(t, ok)
	require.Len(t, history, 1)
	assert.Equal(t, res.Intervention.ID, history[0].ID)

	resp = call(t, s, "interventions.by_product", map[string]any{"token": token, "product_id": 0})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeValidation, resp.Error.Code)

	resp = call(t, s, "requests.create", map[string]any{
		"token":             token,
		"type":              "PRODUIT_REPERTORIE",
		"product_id":        999,
		"fault_description": "no power",
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeNotFound, resp.Error.Code)
}

func TestDispatchAuthorizesThroughAccessService(t *testing.T) {
	ctx := context.Background()
	svc := newServices(t)
	s := &Server{svc: svc, log: zap.NewNop()}

	roles, err := svc.Access.ListRoles(ctx)
	require.NoError(t, err)
	var techRole uint
	for _, r := range roles {
		if r.Key == "technicien" {
			techRole = r.ID
		}
	}
	_, err = svc.Access.CreateUser(ctx, "tech@magsav.local", "pw", techRole)
	require.NoError(t, err)

	resp := call(t, s, "auth.login", map[string]any{"email": "tech@magsav.local", "password": "pw"})
	require.Nil(t, resp.Error)
	techToken, _ := resp.Result.(map[string]any)["token"].(string)

	resp = call(t, s, "requests.list", map[string]any{"token": techToken})
	assert.Nil(t, resp.Error)

	resp = call(t, s, "requests.accept", map[string]any{"token": techToken, "id": 1})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeForbidden, resp.Error.Code)

	_, session, err := svc.Access.LoginWithSession(ctx, "admin@magsav.local", "secret", time.Hour)
	require.NoError(t, err)
	resp = call(t, s, "audit.list", map[string]any{"token": session})
	assert.Nil(t, resp.Error)
}

func TestDispatchHidesStorageErrors(t *testing.T) {
	svc, db := newServicesWithDB(t)
	core, logs := observer.New(zap.ErrorLevel)
	s := &Server{svc: svc, log: zap.New(core)}
	token := login(t, s)

	require.NoError(t, db.Exec("DROP TABLE interventions").Error)

	resp := call(t, s, "interventions.list", map[string]any{"token": token})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeInternal, resp.Error.Code)
	assert.Equal(t, "internal error", resp.Error.Message)

	failures := logs.FilterMessage("rpc method failed").All()
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].ContextMap()["error"], "interventions")
}

func TestDispatchRejectsBadCalls(t *testing.T) {
	s := &Server{svc: newServices(t), log: zap.NewNop()}

	resp := s.dispatch(context.Background(), request{JSONRPC: "1.0", Method: "requests.list", ID: 1})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeInvalidRequest, resp.Error.Code)

	resp = call(t, s, "requests.list", map[string]any{"token": "bogus"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeUnauthorized, resp.Error.Code)

	token := login(t, s)
	resp = call(t, s, "nope.nope", map[string]any{"token": token})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)

	resp = call(t, s, "requests.list", map[string]any{"token": token, "status": "PERDU"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestServeOverUnixSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "magsav")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	path := filepath.Join(dir, "rpc.sock")

	srv, err := Start(path, newServices(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"jsonrpc":"2.0","method":"auth.login","params":{"email":"admin@magsav.local","password":"secret"},"id":7}` + "\n"))
	require.NoError(t, err)

	var resp struct {
		Result struct {
			Token string `json:"token"`
		} `json:"result"`
		Error *rpcError `json:"error"`
		ID    int       `json:"id"`
	}
	require.NoError(t, json.NewDecoder(bufio.NewReader(conn)).Decode(&resp))
	assert.Nil(t, resp.Error)
	assert.Equal(t, 7, resp.ID)
	assert.NotEmpty(t, resp.Result.Token)
}
