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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/masc/pkg/auth"
	"github.com/teradata-labs/masc/pkg/bus"
	"github.com/teradata-labs/masc/pkg/drift"
	"github.com/teradata-labs/masc/pkg/masc"
	"github.com/teradata-labs/masc/pkg/protocol"
	"github.com/teradata-labs/masc/pkg/ratelimit"
	"github.com/teradata-labs/masc/pkg/room"
	"github.com/teradata-labs/masc/pkg/storage/memory"
	"github.com/teradata-labs/masc/pkg/tools"
)

type fixture struct {
	srv   *Server
	store *room.Store
	bus   *bus.Bus
	clock *masc.VirtualClock
	ts    *httptest.Server
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	clock := masc.NewVirtualClock(time.Unix(1_700_000_000, 0))
	b := bus.New(bus.DefaultOptions())
	t.Cleanup(b.Close)
	store, err := room.New(context.Background(), room.Options{
		Backend: memory.New(),
		Bus:     b,
		Clock:   clock,
		IDs:     masc.SeededIDs(11),
	})
	require.NoError(t, err)

	opts.Store = store
	opts.Bus = b
	opts.BackendType = "memory"
	if opts.Registry == nil {
		opts.Registry = tools.NewRegistry(tools.Deps{
			Store: store,
			Drift: drift.DefaultConfig(),
			Rng:   rand.New(rand.NewSource(11)),
		})
	}
	if opts.KeepaliveInterval <= 0 {
		opts.KeepaliveInterval = 100 * time.Millisecond
	}
	srv := New(opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{srv: srv, store: store, bus: b, clock: clock, ts: ts}
}

func (f *fixture) rpc(t *testing.T, id int64, method string, params interface{}) (*http.Response, *protocol.Response) {
	t.Helper()
	req := map[string]interface{}{"jsonrpc": "2.0", "method": method}
	if id != 0 {
		req["id"] = id
	}
	if params != nil {
		req["params"] = params
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpResp, err := http.Post(f.ts.URL+"/mcp", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { httpResp.Body.Close() })

	if httpResp.StatusCode == http.StatusAccepted {
		return httpResp, nil
	}
	var resp protocol.Response
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&resp))
	return httpResp, &resp
}

func (f *fixture) callTool(t *testing.T, id int64, name string, args map[string]interface{}) *protocol.Response {
	t.Helper()
	_, resp := f.rpc(t, id, protocol.MethodToolsCall, protocol.CallToolParams{Name: name, Arguments: args})
	return resp
}

// toolResult decodes the JSON payload of a successful tools/call.
func toolResult(t *testing.T, resp *protocol.Response) map[string]interface{} {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected error: %+v", resp.Error)
	var res protocol.CallToolResult
	require.NoError(t, json.Unmarshal(resp.Result, &res))
	require.Len(t, res.Content, 1)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &out))
	return out
}

func TestInitializeAssignsSession(t *testing.T) {
	f := newFixture(t, Options{})

	httpResp, resp := f.rpc(t, 1, protocol.MethodInitialize, protocol.InitializeParams{
		ClientInfo: protocol.Implementation{Name: "test-client", Version: "1.0"},
	})
	require.Nil(t, resp.Error)
	assert.NotEmpty(t, httpResp.Header.Get("X-MCP-Session-ID"))

	var result protocol.InitializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, protocol.ProtocolVersion, result.ProtocolVersion)
	assert.True(t, result.Capabilities.Notifications.SSE)
}

func TestToolCallRoundTrip(t *testing.T) {
	f := newFixture(t, Options{})

	out := toolResult(t, f.callTool(t, 1, "masc_join", map[string]interface{}{"agent_id": "alice"}))
	assert.Equal(t, "alice", out["id"])

	out = toolResult(t, f.callTool(t, 2, "masc_add_task", map[string]interface{}{"title": "write docs"}))
	taskID := out["id"].(string)

	out = toolResult(t, f.callTool(t, 3, "masc_claim", map[string]interface{}{
		"task_id": taskID, "agent_id": "alice",
	}))
	assert.Equal(t, "claimed", out["status"])
}

func TestUnknownToolSuggests(t *testing.T) {
	f := newFixture(t, Options{})

	resp := f.callTool(t, 1, "masc_brodcast", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.MethodNotFound, resp.Error.Code)
	assert.Contains(t, string(resp.Error.Data), "masc_broadcast")
}

func TestUnknownMethod(t *testing.T) {
	f := newFixture(t, Options{})

	_, resp := f.rpc(t, 1, "tools/poke", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.MethodNotFound, resp.Error.Code)
}

func TestDomainErrorOnWire(t *testing.T) {
	f := newFixture(t, Options{})

	resp := f.callTool(t, 1, "masc_done", map[string]interface{}{
		"task_id": "nope", "agent_id": "alice",
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.ServerError, resp.Error.Code)

	var data struct {
		Kind string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(resp.Error.Data, &data))
	assert.Equal(t, "not_found", data.Kind)
}

func TestInvalidParamsCode(t *testing.T) {
	f := newFixture(t, Options{})

	resp := f.callTool(t, 1, "masc_join", map[string]interface{}{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.InvalidParams, resp.Error.Code)
}

func TestModeFiltersToolSurface(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.store.ModeSet(ctx, "minimal")
	require.NoError(t, err)

	_, resp := f.rpc(t, 1, protocol.MethodToolsList, nil)
	require.Nil(t, resp.Error)
	var list protocol.ToolListResult
	require.NoError(t, json.Unmarshal(resp.Result, &list))
	for _, tool := range list.Tools {
		assert.Contains(t, []string{"core", "comm", "health"}, tool.Category)
	}

	callResp := f.callTool(t, 2, "masc_vote_create", map[string]interface{}{
		"topic": "x", "options": []string{"a", "b"}, "agent_id": "alice",
	})
	require.NotNil(t, callResp.Error)
	var data struct {
		Kind string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(callResp.Error.Data, &data))
	assert.Equal(t, "tool_disabled", data.Kind)
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t, Options{Verifier: auth.NewVerifier([]string{"tok-1"})})

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	resp, err := http.Post(f.ts.URL+"/mcp", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPost, f.ts.URL+"/mcp", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer tok-1")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, Options{
		Limiter: ratelimit.New(ratelimit.Config{Capacity: 2, RefillPerSecond: 0.001}),
	})

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Post(f.ts.URL+"/mcp", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)
}

func TestCancelNotification(t *testing.T) {
	f := newFixture(t, Options{})

	// Cancelling an id that is not in flight is a no-op.
	httpResp, resp := f.rpc(t, 0, protocol.MethodCancelRequest, map[string]interface{}{"id": 42})
	assert.Nil(t, resp)
	assert.Equal(t, http.StatusAccepted, httpResp.StatusCode)

	// With an id of its own the cancel reports whether it found a target.
	_, resp = f.rpc(t, 7, protocol.MethodCancelRequest, map[string]interface{}{"id": 42})
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"cancelled":false}`, string(resp.Result))
}

func TestSSEFramedResponse(t *testing.T) {
	f := newFixture(t, Options{})

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	req, _ := http.NewRequest(http.MethodPost, f.ts.URL+"/mcp", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	raw := make([]byte, 4096)
	n, _ := resp.Body.Read(raw)
	frames := string(raw[:n])
	assert.Contains(t, frames, "event: progress")
	assert.Contains(t, frames, "event: message")
	assert.Contains(t, frames, `"jsonrpc":"2.0"`)
}

func TestHealthAndAgentCard(t *testing.T) {
	f := newFixture(t, Options{})

	resp, err := http.Get(f.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "memory", health["backend"])

	card, err := http.Get(f.ts.URL + "/.well-known/agent-card.json")
	require.NoError(t, err)
	defer card.Body.Close()
	var doc map[string]interface{}
	require.NoError(t, json.NewDecoder(card.Body).Decode(&doc))
	assert.Equal(t, "masc", doc["name"])
}

func TestRESTSurface(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.store.Join(ctx, room.JoinParams{AgentID: "alice"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.store.AddTask(ctx, room.AddTaskParams{Title: fmt.Sprintf("task %d", i)})
		require.NoError(t, err)
	}

	resp, err := http.Get(f.ts.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var status room.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, 3, status.Tasks["pending"])

	tasks, err := http.Get(f.ts.URL + "/api/v1/tasks?limit=2&offset=1")
	require.NoError(t, err)
	defer tasks.Body.Close()
	var page struct {
		Tasks []masc.Task `json:"tasks"`
	}
	require.NoError(t, json.NewDecoder(tasks.Body).Decode(&page))
	assert.Len(t, page.Tasks, 2)

	missing, err := http.Get(f.ts.URL + "/api/v1/credits?agent=ghost")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestDrainingAdvertisesRetryAfter(t *testing.T) {
	f := newFixture(t, Options{DrainTimeout: 45 * time.Second})
	f.srv.draining.Store(true)

	post, err := http.Post(f.ts.URL+"/mcp", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer post.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, post.StatusCode)
	assert.Equal(t, "45", post.Header.Get("Retry-After"))

	for _, path := range []string{"/sse", "/health"} {
		resp, err := http.Get(f.ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
		assert.Equal(t, "45", resp.Header.Get("Retry-After"), path)
	}
}
