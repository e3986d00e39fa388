// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/masc/pkg/masc"
	"github.com/teradata-labs/masc/pkg/metrics"
	"github.com/teradata-labs/masc/pkg/protocol"
	"github.com/teradata-labs/masc/pkg/session"
)

// sessionHeader carries the server-assigned MCP session id.
const sessionHeader = "X-MCP-Session-ID"

// agentHeader lets clients attribute calls without an agent_id argument.
const agentHeader = "X-MASC-Agent"

// maxBodyBytes bounds a single JSON-RPC request frame.
const maxBodyBytes = 4 << 20

// handleMCP is the JSON-RPC 2.0 tool dispatcher.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		s.setRetryAfter(w)
		http.Error(w, "draining", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	token, err := s.verifier.Verify(r)
	if err != nil {
		s.writeRPCError(w, http.StatusUnauthorized, nil, protocol.ErrorFrom(err))
		return
	}
	if err := s.limiter.Allow(clientKey(r, token)); err != nil {
		metrics.RateLimitedTotal.Inc()
		s.writeRPCError(w, http.StatusTooManyRequests, nil, protocol.ErrorFrom(err))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeRPCError(w, http.StatusOK, nil, protocol.NewError(protocol.ParseError, "read body: "+err.Error(), nil))
		return
	}
	req, rpcErr := protocol.ParseRequest(body)
	if rpcErr != nil {
		s.writeRPCError(w, http.StatusOK, nil, rpcErr)
		return
	}

	ctx := session.WithID(r.Context(), r.Header.Get(sessionHeader))
	ctx = session.WithAgent(ctx, r.Header.Get(agentHeader))

	resp := s.dispatch(ctx, w.Header(), r, req)
	if resp == nil {
		// Notification: acknowledged, nothing to send back.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if wantsSSE(r) {
		s.writeSSEResponse(w, req, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// dispatch routes one parsed request. A nil return means no response
// (notification semantics).
func (s *Server) dispatch(ctx context.Context, respHeader http.Header, r *http.Request, req *protocol.Request) *protocol.Response {
	switch req.Method {
	case protocol.MethodInitialize:
		return s.handleInitialize(respHeader, r, req)

	case protocol.MethodPing:
		return mustResponse(req.ID, map[string]interface{}{})

	case protocol.MethodToolsList:
		enabled, err := s.enabledCategories(ctx)
		if err != nil {
			return protocol.NewErrorResponse(req.ID, protocol.ErrorFrom(err))
		}
		return mustResponse(req.ID, protocol.ToolListResult{Tools: s.registry.List(enabled)})

	case protocol.MethodToolsCall:
		return s.handleToolCall(ctx, req)

	case protocol.MethodCancelRequest:
		return s.handleCancel(req)

	default:
		e := protocol.NewError(protocol.MethodNotFound, fmt.Sprintf("unknown method %q", req.Method), nil)
		if req.IsNotification() {
			return nil
		}
		return protocol.NewErrorResponse(req.ID, e)
	}
}

func (s *Server) handleInitialize(respHeader http.Header, r *http.Request, req *protocol.Request) *protocol.Response {
	var params protocol.InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return protocol.NewErrorResponse(req.ID, protocol.NewError(protocol.InvalidParams, "decode params: "+err.Error(), nil))
		}
	}

	session := r.Header.Get(sessionHeader)
	if session == "" {
		session = uuid.NewString()
	}
	respHeader.Set(sessionHeader, session)

	s.logger.Info("client initialized",
		zap.String("client", params.ClientInfo.Name),
		zap.String("session", session))

	return mustResponse(req.ID, protocol.InitializeResult{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities: protocol.ServerCapabilities{
			Tools:         &protocol.ToolsCapability{},
			Notifications: &protocol.NotificationsCapability{SSE: true, Resume: true},
		},
		ServerInfo: protocol.Implementation{Name: "masc", Version: serviceVersion()},
	})
}

func (s *Server) handleToolCall(ctx context.Context, req *protocol.Request) *protocol.Response {
	var params protocol.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewErrorResponse(req.ID, protocol.NewError(protocol.InvalidParams, "decode params: "+err.Error(), nil))
	}
	if params.Name == "" {
		return protocol.NewErrorResponse(req.ID, protocol.NewError(protocol.InvalidParams, "tool name is required", nil))
	}
	if _, ok := s.registry.Get(params.Name); !ok {
		var data interface{}
		if sugg := s.registry.Suggest(params.Name); len(sugg) > 0 {
			data = map[string]interface{}{"did_you_mean": sugg}
		}
		return protocol.NewErrorResponse(req.ID, protocol.NewError(protocol.MethodNotFound, fmt.Sprintf("unknown tool %q", params.Name), data))
	}

	callCtx := ctx
	if req.ID != nil {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithCancel(ctx)
		key := req.ID.String()
		s.inflight.Set(key, cancel)
		defer func() {
			s.inflight.Delete(key)
			cancel()
		}()
	}

	enabled, err := s.enabledCategories(callCtx)
	if err != nil {
		return protocol.NewErrorResponse(req.ID, protocol.ErrorFrom(err))
	}

	agent := session.Agent(callCtx)
	if agent == "" {
		if v, ok := params.Arguments["agent_id"].(string); ok {
			agent = v
		}
	}

	start := time.Now()
	result, err := s.registry.Call(callCtx, params.Name, params.Arguments, enabled)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = string(masc.KindOf(err))
		if outcome == "" {
			outcome = "internal"
		}
	}
	metrics.ToolCallsTotal.WithLabelValues(params.Name, outcome).Inc()
	metrics.ToolCallDuration.WithLabelValues(params.Name).Observe(elapsed.Seconds())
	s.store.Telemetry().ToolCalled(ctx, params.Name, agent, err == nil, float64(elapsed.Milliseconds()))

	if err != nil {
		if callCtx.Err() == context.Canceled {
			err = masc.Cancelled("tool call %s cancelled", params.Name)
		}
		return protocol.NewErrorResponse(req.ID, protocol.ErrorFrom(err))
	}
	if req.IsNotification() {
		return nil
	}
	return mustResponse(req.ID, result)
}

// handleCancel tears down an in-flight tools/call by request id. Usually
// a notification; a response is produced only when the cancel itself
// carries an id.
func (s *Server) handleCancel(req *protocol.Request) *protocol.Response {
	var params protocol.CancelParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == nil {
		if req.IsNotification() {
			return nil
		}
		return protocol.NewErrorResponse(req.ID, protocol.NewError(protocol.InvalidParams, "cancel requires an id", nil))
	}

	cancel, found := s.inflight.Take(params.ID.String())
	if found {
		cancel()
	}
	if req.IsNotification() {
		return nil
	}
	return mustResponse(req.ID, map[string]interface{}{"cancelled": found})
}

// wantsSSE reports whether the client asked for an event-stream framed
// response.
func wantsSSE(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// writeSSEResponse frames one JSON-RPC response as SSE: a progress event
// acknowledging the call, then the final message.
func (s *Server) writeSSEResponse(w http.ResponseWriter, req *protocol.Request, resp *protocol.Response) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	progress, _ := json.Marshal(map[string]string{"method": req.Method, "status": "accepted"})
	fmt.Fprintf(w, "event: progress\ndata: %s\n\n", progress)
	flusher.Flush()

	body, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("encode response", zap.Error(err))
		return
	}
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", body)
	flusher.Flush()
}

func (s *Server) writeRPCError(w http.ResponseWriter, status int, id *protocol.RequestID, e *protocol.Error) {
	writeJSON(w, status, protocol.NewErrorResponse(id, e))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// mustResponse wraps a result that is known to marshal.
func mustResponse(id *protocol.RequestID, result interface{}) *protocol.Response {
	resp, err := protocol.NewResponse(id, result)
	if err != nil {
		return protocol.NewErrorResponse(id, protocol.NewError(protocol.InternalError, err.Error(), nil))
	}
	return resp
}
