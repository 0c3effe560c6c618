package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/magsav/internal/application"
	"github.com/atvirokodosprendimai/magsav/internal/domain"
	"go.uber.org/zap"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeValidation     = 40000
	codeUnauthorized   = 40100
	codeForbidden      = 40300
	codeNotFound       = 40400
	codeConflict       = 40900
	codeInternal       = 50000
)

type Server struct {
	svc      application.Services
	log      *zap.Logger
	listener net.Listener
	path     string
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type handlerFunc func(ctx context.Context, identity domain.Identity, params json.RawMessage) (any, error)

type method struct {
	permission string
	handle     handlerFunc
}

// Start listens on the unix socket at path and serves JSON-RPC 2.0 until Close.
func Start(path string, svc application.Services, log *zap.Logger) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	s := &Server{svc: svc, log: log, listener: ln, path: path}
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "parse error"}, ID: nil})
			return
		}

		resp := s.dispatch(context.Background(), req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	start := time.Now()
	resp := s.call(ctx, req)
	fields := []zap.Field{zap.String("method", req.Method), zap.Duration("latency", time.Since(start))}
	if resp.Error != nil {
		s.log.Warn("rpc call failed", append(fields, zap.Int("code", resp.Error.Code), zap.String("error", resp.Error.Message))...)
	} else {
		s.log.Debug("rpc call", fields...)
	}
	return resp
}

func (s *Server) call(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return errorResponse(req.ID, codeInvalidRequest, "invalid request")
	}
	if req.Method == "auth.login" {
		return s.handleAuthLogin(ctx, req)
	}

	m, ok := s.methods()[req.Method]
	if !ok {
		return errorResponse(req.ID, codeMethodNotFound, "method not found")
	}
	identity, rpcResp, ok := s.authz(ctx, req, m.permission)
	if !ok {
		return rpcResp
	}
	result, err := m.handle(ctx, identity, req.Params)
	if err != nil {
		return s.appError(req, err)
	}
	return response{JSONRPC: "2.0", Result: result, ID: req.ID}
}

func (s *Server) methods() map[string]method {
	return map[string]method{
		"auth.whoami":              {application.PermissionRead, s.whoAmI},
		"products.list":            {application.PermissionRead, s.listProducts},
		"products.get":             {application.PermissionRead, s.getProduct},
		"products.create":          {application.PermissionWrite, s.createProduct},
		"products.resolve":         {application.PermissionRead, s.resolveProduct},
		"products.situation":       {application.PermissionWrite, s.updateSituation},
		"requests.list":            {application.PermissionRead, s.listRequests},
		"requests.pending":         {application.PermissionRead, s.listPendingRequests},
		"requests.get":             {application.PermissionRead, s.getRequest},
		"requests.create":          {application.PermissionWrite, s.createRequest},
		"requests.accept":          {application.PermissionValidate, s.acceptRequest},
		"requests.reject":          {application.PermissionValidate, s.rejectRequest},
		"interventions.list":       {application.PermissionRead, s.listInterventions},
		"interventions.get":        {application.PermissionRead, s.getIntervention},
		"interventions.by_product": {application.PermissionRead, s.productInterventions},
		"interventions.status":     {application.PermissionWrite, s.updateInterventionStatus},
		"access.users.list":        {application.PermissionAdmin, s.listUsers},
		"access.users.create":      {application.PermissionAdmin, s.createUser},
		"access.roles.list":        {application.PermissionAdmin, s.listRoles},
		"access.roles.assign":      {application.PermissionAdmin, s.assignRole},
		"audit.list":               {application.PermissionAdmin, s.listAuditLogs},
	}
}

func (s *Server) handleAuthLogin(ctx context.Context, req request) response {
	var p struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		TokenName string `json:"token_name"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	u, token, err := s.svc.Access.LoginWithAPIToken(ctx, p.Email, p.Password, p.TokenName, nil)
	if err != nil {
		return errorResponse(req.ID, codeUnauthorized, "invalid credentials")
	}
	return response{JSONRPC: "2.0", Result: map[string]any{"user_id": u.ID, "email": u.Email, "token": token}, ID: req.ID}
}

func (s *Server) authz(ctx context.Context, req request, permission string) (domain.Identity, response, bool) {
	var p struct {
		Token string `json:"token"`
	}
	if !decodeParams(req.Params, &p) {
		return domain.Identity{}, invalidParams(req.ID), false
	}
	identity, err := s.svc.Access.Authenticate(ctx, p.Token)
	if err != nil {
		return domain.Identity{}, errorResponse(req.ID, codeUnauthorized, "unauthorized"), false
	}
	if permission != "" {
		if err := s.svc.Access.Require(identity, permission); err != nil {
			return domain.Identity{}, errorResponse(req.ID, codeForbidden, "forbidden"), false
		}
	}
	return identity, response{}, true
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// errInvalidParams marks params that do not decode into the method's shape.
var errInvalidParams = errors.New("invalid params")

func bind(raw json.RawMessage, out any) error {
	if !decodeParams(raw, out) {
		return errInvalidParams
	}
	return nil
}

func errorResponse(id any, code int, message string) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: code, Message: message}, ID: id}
}

func invalidParams(id any) response {
	return errorResponse(id, codeInvalidParams, "invalid params")
}

// appError maps domain errors onto RPC codes. Unclassified failures are
// logged and reported without their detail.
func (s *Server) appError(req request, err error) response {
	id := req.ID
	switch {
	case errors.Is(err, errInvalidParams):
		return invalidParams(id)
	case errors.Is(err, domain.ErrValidation):
		return errorResponse(id, codeValidation, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return errorResponse(id, codeNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return errorResponse(id, codeConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return errorResponse(id, codeUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return errorResponse(id, codeForbidden, err.Error())
	default:
		s.log.Error("rpc method failed", zap.String("method", req.Method), zap.Error(err))
		return errorResponse(id, codeInternal, "internal error")
	}
}
