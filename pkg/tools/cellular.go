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

	"github.com/teradata-labs/masc/pkg/drift"
	"github.com/teradata-labs/masc/pkg/masc"
	"github.com/teradata-labs/masc/pkg/room"
)

func (r *Registry) registerCellular() {
	s := r.deps.Store
	driftCfg := r.deps.Drift

	r.register(Tool{
		Name:        "masc_handoff_create",
		Description: "Persist a context capsule so a successor agent can take over.",
		Category:    "cellular",
		InputSchema: objectSchema(
			reqProp("from_agent", "string", "Agent handing off"),
			reqProp("goal", "string", "What the successor must achieve"),
			enumProp("reason", "Why the handoff is happening", true,
				"context_limit", "timeout", "explicit", "fatal_error", "task_complete"),
			prop("task_id", "string", "Task the capsule belongs to"),
			prop("context_pct", "number", "Context window consumed, 0..1"),
			prop("progress_summary", "string", "Where the work stands"),
			arrayProp("completed_steps", "string", "Steps already done"),
			arrayProp("pending_steps", "string", "Steps still open"),
			arrayProp("key_decisions", "string", "Decisions the successor must honor"),
			arrayProp("assumptions", "string", "Assumptions in effect"),
			arrayProp("warnings", "string", "Traps and sharp edges"),
			arrayProp("unresolved_errors", "string", "Known failures left open"),
			arrayProp("modified_files", "string", "Files touched so far"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				FromAgent        string   `json:"from_agent"`
				TaskID           string   `json:"task_id"`
				Reason           string   `json:"reason"`
				ContextPct       float64  `json:"context_pct"`
				Goal             string   `json:"goal"`
				ProgressSummary  string   `json:"progress_summary"`
				CompletedSteps   []string `json:"completed_steps"`
				PendingSteps     []string `json:"pending_steps"`
				KeyDecisions     []string `json:"key_decisions"`
				Assumptions      []string `json:"assumptions"`
				Warnings         []string `json:"warnings"`
				UnresolvedErrors []string `json:"unresolved_errors"`
				ModifiedFiles    []string `json:"modified_files"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.HandoffCreate(ctx, room.HandoffCreateParams{
				FromAgent:        p.FromAgent,
				TaskID:           p.TaskID,
				Reason:           masc.HandoffReason(p.Reason),
				ContextPct:       p.ContextPct,
				Goal:             p.Goal,
				ProgressSummary:  p.ProgressSummary,
				CompletedSteps:   p.CompletedSteps,
				PendingSteps:     p.PendingSteps,
				KeyDecisions:     p.KeyDecisions,
				Assumptions:      p.Assumptions,
				Warnings:         p.Warnings,
				UnresolvedErrors: p.UnresolvedErrors,
				ModifiedFiles:    p.ModifiedFiles,
			})
		},
	})

	r.register(Tool{
		Name:        "masc_handoff_claim",
		Description: "Claim a pending capsule. Exactly one successor wins.",
		Category:    "cellular",
		InputSchema: objectSchema(
			reqProp("handoff_id", "string", "Capsule to claim"),
			reqProp("agent_id", "string", "Claiming agent"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				HandoffID string `json:"handoff_id"`
				AgentID   string `json:"agent_id"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.HandoffClaim(ctx, p.HandoffID, p.AgentID)
		},
	})

	r.register(Tool{
		Name:        "masc_handoff_get",
		Description: "Read a capsule with its rendered resume prompt and token estimate.",
		Category:    "cellular",
		InputSchema: objectSchema(
			reqProp("handoff_id", "string", "Capsule to read"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				HandoffID string `json:"handoff_id"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.HandoffGet(ctx, p.HandoffID)
		},
	})

	r.register(Tool{
		Name:        "masc_handoff_ack",
		Description: "Acknowledge a claimed capsule as consumed, reporting success.",
		Category:    "cellular",
		InputSchema: objectSchema(
			reqProp("handoff_id", "string", "Capsule to acknowledge"),
			reqProp("agent_id", "string", "The claiming agent"),
			prop("success", "boolean", "Whether the takeover succeeded"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				HandoffID string `json:"handoff_id"`
				AgentID   string `json:"agent_id"`
				Success   bool   `json:"success"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.HandoffAck(ctx, p.HandoffID, p.AgentID, p.Success)
		},
	})

	r.register(Tool{
		Name:        "masc_handoffs",
		Description: "List capsules, optionally filtered by status, newest first.",
		Category:    "cellular",
		InputSchema: objectSchema(
			enumProp("status", "Restrict to one status", false,
				"pending", "claimed", "consumed", "expired"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			handoffs, err := s.Handoffs(ctx, masc.HandoffStatus(p.Status))
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"handoffs": handoffs}, nil
		},
	})

	r.register(Tool{
		Name:        "masc_verify_handoff",
		Description: "Compare a received context against the original and report drift.",
		Category:    "cellular",
		InputSchema: objectSchema(
			reqProp("original", "string", "The context as handed off"),
			reqProp("received", "string", "The context as understood by the successor"),
		),
		Handler: func(_ context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				Original string `json:"original"`
				Received string `json:"received"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return drift.Verify(p.Original, p.Received, driftCfg), nil
		},
	})
}
