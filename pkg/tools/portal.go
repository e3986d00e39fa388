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

func (r *Registry) registerPortal() {
	s := r.deps.Store

	r.register(Tool{
		Name:        "masc_portal_open",
		Description: "Open (or return the existing) direct channel between two agents.",
		Category:    "portal",
		InputSchema: objectSchema(
			reqProp("agent_a", "string", "One endpoint"),
			reqProp("agent_b", "string", "The other endpoint"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				AgentA string `json:"agent_a"`
				AgentB string `json:"agent_b"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.PortalOpen(ctx, p.AgentA, p.AgentB)
		},
	})

	r.register(Tool{
		Name:        "masc_portal_send",
		Description: "Send a payload into a portal; it lands in the peer's inbox.",
		Category:    "portal",
		InputSchema: objectSchema(
			reqProp("portal_id", "string", "Portal to send through"),
			reqProp("agent_id", "string", "Sending endpoint"),
			reqProp("payload", "object", "Opaque payload"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				PortalID string          `json:"portal_id"`
				AgentID  string          `json:"agent_id"`
				Payload  json.RawMessage `json:"payload"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			if err := s.PortalSend(ctx, p.PortalID, p.AgentID, p.Payload); err != nil {
				return nil, err
			}
			return map[string]interface{}{"sent": true}, nil
		},
	})

	r.register(Tool{
		Name:        "masc_portal_recv",
		Description: "Drain up to max payloads from the agent's portal inbox.",
		Category:    "portal",
		InputSchema: objectSchema(
			reqProp("portal_id", "string", "Portal to read"),
			reqProp("agent_id", "string", "Receiving endpoint"),
			prop("max", "integer", "Maximum payloads to drain; 0 drains all"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				PortalID string `json:"portal_id"`
				AgentID  string `json:"agent_id"`
				Max      int    `json:"max"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			msgs, err := s.PortalRecv(ctx, p.PortalID, p.AgentID, p.Max)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"payloads": msgs}, nil
		},
	})

	r.register(Tool{
		Name:        "masc_portal_close",
		Description: "Close a portal. Either endpoint may close it.",
		Category:    "portal",
		InputSchema: objectSchema(
			reqProp("portal_id", "string", "Portal to close"),
			reqProp("agent_id", "string", "Closing endpoint"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				PortalID string `json:"portal_id"`
				AgentID  string `json:"agent_id"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			if err := s.PortalClose(ctx, p.PortalID, p.AgentID); err != nil {
				return nil, err
			}
			return map[string]interface{}{"closed": true}, nil
		},
	})

	r.register(Tool{
		Name:        "masc_portals",
		Description: "List portals and their endpoints.",
		Category:    "portal",
		InputSchema: objectSchema(),
		Handler: func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
			portals, err := s.Portals(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"portals": portals}, nil
		},
	})
}
