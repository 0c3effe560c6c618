package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

const rpcDialTimeout = 5 * time.Second

var rpcSeq atomic.Int64

type rpcClient struct {
	socket string
}

type rpcCall struct {
	Version string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int64  `json:"id"`
}

type rpcReply struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcFault       `json:"error"`
	ID     int64           `json:"id"`
}

// rpcFault is a JSON-RPC error object; the code mirrors the server's
// domain error mapping (40400 not found, 40900 conflict, ...).
type rpcFault struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcFault) Error() string {
	return fmt.Sprintf("rpc error (%d): %s", e.Code, e.Message)
}

func newRPCClient(socket string) *rpcClient {
	return &rpcClient{socket: socket}
}

// call opens one connection per call; the server keeps no session state.
func (c *rpcClient) call(ctx context.Context, method string, params any, out any) error {
	dialer := net.Dialer{Timeout: rpcDialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socket)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.socket, err)
	}
	defer func() { _ = conn.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	id := rpcSeq.Add(1)
	if err := json.NewEncoder(conn).Encode(rpcCall{Version: "2.0", Method: method, Params: params, ID: id}); err != nil {
		return err
	}

	var reply rpcReply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return fmt.Errorf("read %s reply: %w", method, err)
	}
	if reply.Error != nil {
		return reply.Error
	}
	if reply.ID != id {
		return fmt.Errorf("rpc reply id %d does not match call %d", reply.ID, id)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(reply.Result, out)
}
