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
	"time"

	"github.com/teradata-labs/masc/pkg/masc"
)

func (r *Registry) registerTempo() {
	s := r.deps.Store

	r.register(Tool{
		Name:        "masc_tempo_get",
		Description: "Read the room's supervisor interval in seconds.",
		Category:    "tempo",
		InputSchema: objectSchema(),
		Handler: func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
			tempo, err := s.TempoGet(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"tempo": tempo.Seconds()}, nil
		},
	})

	r.register(Tool{
		Name:        "masc_tempo_set",
		Description: "Set the room's supervisor interval in seconds.",
		Category:    "tempo",
		InputSchema: objectSchema(
			reqProp("tempo", "number", "Interval in seconds; must be positive"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				Tempo float64 `json:"tempo"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.TempoSet(ctx, time.Duration(p.Tempo*float64(time.Second)))
		},
	})
}

func (r *Registry) registerHealth() {
	s := r.deps.Store

	r.register(Tool{
		Name:        "masc_status",
		Description: "Snapshot the room: agents, tasks, locks, votes, portals, handoffs.",
		Category:    "health",
		InputSchema: objectSchema(),
		Handler: func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
			return s.Status(ctx)
		},
	})

	r.register(Tool{
		Name:        "masc_pause",
		Description: "Pause the room. Mutations fail until resume; heartbeats still work.",
		Category:    "health",
		InputSchema: objectSchema(
			prop("reason", "string", "Why the room is paused"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				Reason string `json:"reason"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.Pause(ctx, p.Reason)
		},
	})

	r.register(Tool{
		Name:        "masc_resume",
		Description: "Resume a paused room.",
		Category:    "health",
		InputSchema: objectSchema(),
		Handler: func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
			return s.Resume(ctx)
		},
	})
}

func (r *Registry) registerCost() {
	s := r.deps.Store

	r.register(Tool{
		Name:        "masc_credits",
		Description: "Read token-spend ledgers, for one agent or all.",
		Category:    "cost",
		InputSchema: objectSchema(
			prop("agent_id", "string", "Only this agent's ledger"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				AgentID string `json:"agent_id"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			if p.AgentID != "" {
				return s.Credit(ctx, p.AgentID)
			}
			credits, err := s.Credits(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"credits": credits}, nil
		},
	})
}

func (r *Registry) registerDashboard() {
	s := r.deps.Store

	r.register(Tool{
		Name:        "masc_dashboard",
		Description: "One-call overview: room status, fitness ranking, credits, synapses.",
		Category:    "dashboard",
		InputSchema: objectSchema(),
		Handler: func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
			status, err := s.Status(ctx)
			if err != nil {
				return nil, err
			}
			credits, err := s.Credits(ctx)
			if err != nil {
				return nil, err
			}
			synapses, err := s.Synapses().Snapshot(ctx)
			if err != nil {
				return nil, err
			}
			scores, _, err := r.scores(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"status":   status,
				"credits":  credits,
				"synapses": synapses,
				"fitness":  scores,
			}, nil
		},
	})
}
