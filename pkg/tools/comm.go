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
package tools

import (
	"context"
	"encoding/json"

	"github.com/teradata-labs/masc/pkg/masc"
)

func (r *Registry) registerComm() {
	s := r.deps.Store

	r.register(Tool{
		Name:        "masc_broadcast",
		Description: "Append a broadcast message to the room's ordered log.",
		Category:    "comm",
		InputSchema: objectSchema(
			reqProp("agent_id", "string", "Sending agent"),
			reqProp("body", "object", "Message payload"),
			enumProp("priority", "Delivery hint; never reorders the log", false,
				"low", "normal", "high"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				AgentID  string          `json:"agent_id"`
				Body     json.RawMessage `json:"body"`
				Priority string          `json:"priority"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.Broadcast(ctx, p.AgentID, p.Body, masc.MessagePriority(p.Priority))
		},
	})

	r.register(Tool{
		Name:        "masc_messages",
		Description: "Read messages with seq greater than since_seq, oldest first.",
		Category:    "comm",
		InputSchema: objectSchema(
			prop("since_seq", "integer", "Return messages after this seq; 0 from the start"),
			prop("limit", "integer", "Maximum messages to return"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				SinceSeq int64 `json:"since_seq"`
				Limit    int   `json:"limit"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			msgs, err := s.Messages(ctx, p.SinceSeq, p.Limit)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"messages": msgs}, nil
		},
	})

	r.register(Tool{
		Name:        "masc_lock",
		Description: "Take an advisory lock on a file path. Re-locking extends it.",
		Category:    "comm",
		InputSchema: objectSchema(
			reqProp("agent_id", "string", "Locking agent"),
			reqProp("path", "string", "File path to lock"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				AgentID string `json:"agent_id"`
				Path    string `json:"path"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.LockPath(ctx, p.AgentID, p.Path)
		},
	})

	r.register(Tool{
		Name:        "masc_unlock",
		Description: "Release a file lock. Only the holder may unlock.",
		Category:    "comm",
		InputSchema: objectSchema(
			reqProp("agent_id", "string", "Unlocking agent"),
			reqProp("path", "string", "File path to release"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				AgentID string `json:"agent_id"`
				Path    string `json:"path"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			if err := s.UnlockPath(ctx, p.AgentID, p.Path); err != nil {
				return nil, err
			}
			return map[string]interface{}{"unlocked": true, "path": p.Path}, nil
		},
	})

	r.register(Tool{
		Name:        "masc_locks",
		Description: "List currently held file locks.",
		Category:    "comm",
		InputSchema: objectSchema(),
		Handler: func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
			locks, err := s.Locks(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"locks": locks}, nil
		},
	})
}
