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

func (r *Registry) registerInterrupt() {
	s := r.deps.Store

	r.register(Tool{
		Name:        "masc_checkpoint_save",
		Description: "Save a step checkpoint; the task's previous step completes.",
		Category:    "interrupt",
		InputSchema: objectSchema(
			reqProp("task_id", "string", "Task being checkpointed"),
			reqProp("step", "integer", "Monotonic step number"),
			reqProp("state", "object", "Resumable state snapshot"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				TaskID string          `json:"task_id"`
				Step   int             `json:"step"`
				State  json.RawMessage `json:"state"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.CheckpointSave(ctx, p.TaskID, p.Step, string(p.State))
		},
	})

	r.register(Tool{
		Name:        "masc_checkpoint_interrupt",
		Description: "Interrupt an in-progress checkpoint for human review.",
		Category:    "interrupt",
		InputSchema: objectSchema(
			reqProp("task_id", "string", "Owning task"),
			reqProp("checkpoint_id", "string", "Checkpoint to interrupt"),
			prop("message", "string", "Why the work is being held"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				TaskID       string `json:"task_id"`
				CheckpointID string `json:"checkpoint_id"`
				Message      string `json:"message"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.CheckpointInterrupt(ctx, p.TaskID, p.CheckpointID, p.Message)
		},
	})

	r.register(Tool{
		Name:        "masc_checkpoint_approve",
		Description: "Approve an interrupted checkpoint so work continues.",
		Category:    "interrupt",
		InputSchema: objectSchema(
			reqProp("task_id", "string", "Owning task"),
			reqProp("checkpoint_id", "string", "Checkpoint to approve"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				TaskID       string `json:"task_id"`
				CheckpointID string `json:"checkpoint_id"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.CheckpointApprove(ctx, p.TaskID, p.CheckpointID)
		},
	})

	r.register(Tool{
		Name:        "masc_checkpoint_reject",
		Description: "Reject an interrupted checkpoint with a reason.",
		Category:    "interrupt",
		InputSchema: objectSchema(
			reqProp("task_id", "string", "Owning task"),
			reqProp("checkpoint_id", "string", "Checkpoint to reject"),
			prop("reason", "string", "Why the work is rejected"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				TaskID       string `json:"task_id"`
				CheckpointID string `json:"checkpoint_id"`
				Reason       string `json:"reason"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.CheckpointReject(ctx, p.TaskID, p.CheckpointID, p.Reason)
		},
	})

	r.register(Tool{
		Name:        "masc_checkpoint_branch",
		Description: "Branch an interrupted checkpoint into a new line of work.",
		Category:    "interrupt",
		InputSchema: objectSchema(
			reqProp("task_id", "string", "Owning task"),
			reqProp("checkpoint_id", "string", "Checkpoint to branch from"),
			reqProp("branch_name", "string", "Name of the new branch"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				TaskID       string `json:"task_id"`
				CheckpointID string `json:"checkpoint_id"`
				BranchName   string `json:"branch_name"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.CheckpointBranch(ctx, p.TaskID, p.CheckpointID, p.BranchName)
		},
	})

	r.register(Tool{
		Name:        "masc_checkpoint_revert",
		Description: "Revert a non-terminal checkpoint, discarding its state.",
		Category:    "interrupt",
		InputSchema: objectSchema(
			reqProp("task_id", "string", "Owning task"),
			reqProp("checkpoint_id", "string", "Checkpoint to revert"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				TaskID       string `json:"task_id"`
				CheckpointID string `json:"checkpoint_id"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.CheckpointRevert(ctx, p.TaskID, p.CheckpointID)
		},
	})

	r.register(Tool{
		Name:        "masc_checkpoints",
		Description: "List a task's checkpoints in step order.",
		Category:    "interrupt",
		InputSchema: objectSchema(
			reqProp("task_id", "string", "Task to list"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				TaskID string `json:"task_id"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			cps, err := s.Checkpoints(ctx, p.TaskID)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"checkpoints": cps}, nil
		},
	})
}
