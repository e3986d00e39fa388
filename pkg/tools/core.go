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
	"github.com/teradata-labs/masc/pkg/room"
)

// agentArg resolves the calling agent from either argument spelling;
// some clients send agent_name where the canonical field is agent_id.
func agentArg(id, name string) string {
	if id != "" {
		return id
	}
	return name
}

func (r *Registry) registerCore() {
	s := r.deps.Store

	r.register(Tool{
		Name:        "masc_join",
		Description: "Join the room as an agent, or revive a previous identity.",
		Category:    "core",
		InputSchema: objectSchema(
			reqProp("agent_id", "string", "Stable agent identity"),
			prop("display_name", "string", "Human-facing label"),
			arrayProp("capabilities", "string", "Skills the agent advertises"),
			prop("role", "string", "Free-form role label"),
			prop("worktree", "string", "Worktree the agent operates in"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				AgentID      string   `json:"agent_id"`
				DisplayName  string   `json:"display_name"`
				Capabilities []string `json:"capabilities"`
				Role         string   `json:"role"`
				Worktree     string   `json:"worktree"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.Join(ctx, room.JoinParams{
				AgentID:      p.AgentID,
				DisplayName:  p.DisplayName,
				Capabilities: p.Capabilities,
				Role:         p.Role,
				Worktree:     p.Worktree,
			})
		},
	})

	r.register(Tool{
		Name:        "masc_leave",
		Description: "Leave the room, releasing claimed tasks and file locks.",
		Category:    "core",
		InputSchema: objectSchema(
			reqProp("agent_id", "string", "Agent leaving the room"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				AgentID string `json:"agent_id"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			if err := s.Leave(ctx, p.AgentID); err != nil {
				return nil, err
			}
			return map[string]interface{}{"left": true, "agent_id": p.AgentID}, nil
		},
	})

	r.register(Tool{
		Name:        "masc_heartbeat",
		Description: "Report liveness. Revives a zombie; a left agent must re-join.",
		Category:    "core",
		InputSchema: objectSchema(
			reqProp("agent_id", "string", "Agent reporting in"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				AgentID string `json:"agent_id"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.Heartbeat(ctx, p.AgentID)
		},
	})

	r.register(Tool{
		Name:        "masc_agents",
		Description: "List every agent in the room with status and current task.",
		Category:    "core",
		InputSchema: objectSchema(),
		Handler: func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
			agents, err := s.Agents(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"agents": agents}, nil
		},
	})

	r.register(Tool{
		Name:        "masc_add_task",
		Description: "Queue a task. Priority 1 is claimed first; default is 3.",
		Category:    "core",
		InputSchema: objectSchema(
			reqProp("title", "string", "Short task title"),
			prop("id", "string", "Explicit task id; generated when omitted"),
			prop("description", "string", "Longer task body"),
			prop("priority", "integer", "1 (highest) to 5"),
			prop("payload", "object", "Opaque payload passed through to the claimer"),
			arrayProp("required_capabilities", "string", "Capabilities a claimer must hold"),
			prop("source", "string", "Origin marker for externally fed tasks"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				ID                   string          `json:"id"`
				Title                string          `json:"title"`
				Description          string          `json:"description"`
				Priority             int             `json:"priority"`
				Payload              json.RawMessage `json:"payload"`
				RequiredCapabilities []string        `json:"required_capabilities"`
				Source               string          `json:"source"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.AddTask(ctx, room.AddTaskParams{
				ID:                   p.ID,
				Title:                p.Title,
				Description:          p.Description,
				Priority:             p.Priority,
				Payload:              p.Payload,
				RequiredCapabilities: p.RequiredCapabilities,
				Source:               p.Source,
			})
		},
	})

	r.register(Tool{
		Name:        "masc_claim",
		Description: "Claim a specific pending task. Exactly one claimer wins.",
		Category:    "core",
		InputSchema: objectSchema(
			reqProp("task_id", "string", "Task to claim"),
			prop("agent_id", "string", "Claiming agent"),
			prop("agent_name", "string", "Alias for agent_id"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				TaskID    string `json:"task_id"`
				AgentID   string `json:"agent_id"`
				AgentName string `json:"agent_name"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.Claim(ctx, p.TaskID, agentArg(p.AgentID, p.AgentName))
		},
	})

	r.register(Tool{
		Name:        "masc_claim_next",
		Description: "Claim the highest-priority pending task the agent can work.",
		Category:    "core",
		InputSchema: objectSchema(
			reqProp("agent_id", "string", "Claiming agent"),
			arrayProp("capabilities", "string", "Narrow the agent's advertised capabilities"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				AgentID      string   `json:"agent_id"`
				Capabilities []string `json:"capabilities"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.ClaimNext(ctx, p.AgentID, p.Capabilities)
		},
	})

	r.register(Tool{
		Name:        "masc_progress",
		Description: "Mark a claimed task in_progress with a progress note.",
		Category:    "core",
		InputSchema: objectSchema(
			reqProp("task_id", "string", "Task being worked"),
			reqProp("agent_id", "string", "Owning agent"),
			prop("note", "string", "What changed"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				TaskID  string `json:"task_id"`
				AgentID string `json:"agent_id"`
				Note    string `json:"note"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.Progress(ctx, p.TaskID, p.AgentID, p.Note)
		},
	})

	r.register(Tool{
		Name:        "masc_done",
		Description: "Complete a task the agent owns.",
		Category:    "core",
		InputSchema: objectSchema(
			reqProp("task_id", "string", "Task to complete"),
			prop("agent_id", "string", "Owning agent"),
			prop("agent_name", "string", "Alias for agent_id"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				TaskID    string `json:"task_id"`
				AgentID   string `json:"agent_id"`
				AgentName string `json:"agent_name"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.Done(ctx, p.TaskID, agentArg(p.AgentID, p.AgentName))
		},
	})

	r.register(Tool{
		Name:        "masc_cancel_task",
		Description: "Cancel a task from any non-terminal state.",
		Category:    "core",
		InputSchema: objectSchema(
			reqProp("task_id", "string", "Task to cancel"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				TaskID string `json:"task_id"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.CancelTask(ctx, p.TaskID)
		},
	})

	r.register(Tool{
		Name:        "masc_tasks",
		Description: "List tasks, optionally filtered by status.",
		Category:    "core",
		InputSchema: objectSchema(
			enumProp("status", "Restrict to one status", false,
				"pending", "claimed", "in_progress", "done", "cancelled"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			tasks, err := s.Tasks(ctx, masc.TaskStatus(p.Status))
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"tasks": tasks}, nil
		},
	})
}
