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
package room

import (
	"context"
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"github.com/teradata-labs/masc/pkg/masc"
)

// claimNextRetries bounds the CAS loop in ClaimNext.
const claimNextRetries = 8

// AddTaskParams are the arguments of add_task.
type AddTaskParams struct {
	ID                   string
	Title                string
	Description          string
	Priority             int
	Payload              json.RawMessage
	RequiredCapabilities []string
	Source               string
}

// AddTask stores a new pending task. A missing id is generated; a
// duplicate id is a conflict.
func (s *Store) AddTask(ctx context.Context, p AddTaskParams) (*masc.Task, error) {
	if p.Title == "" {
		return nil, masc.InvalidArgument("add_task requires a title")
	}
	if p.Priority == 0 {
		p.Priority = 3
	}
	if p.Priority < 1 || p.Priority > 5 {
		return nil, masc.InvalidArgument("priority must be 1..5, got %d", p.Priority)
	}
	if err := s.checkWritable(ctx); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = s.ids.NewID()
	}

	task := masc.Task{
		ID:                   p.ID,
		Title:                p.Title,
		Description:          p.Description,
		Priority:             p.Priority,
		Status:               masc.TaskPending,
		CreatedAt:            s.clock.NowUnix(),
		Source:               p.Source,
		Payload:              p.Payload,
		RequiredCapabilities: p.RequiredCapabilities,
	}

	ok, err := s.casJSON(ctx, masc.TaskKey(s.cfg.Room, task.ID), nil, &task)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, masc.Conflict("task %q already exists", task.ID)
	}

	if _, err := s.notify(ctx, masc.MessageTaskUpdate, "task_added", p.Source, map[string]interface{}{
		"task":     task.ID,
		"title":    task.Title,
		"priority": task.Priority,
	}); err != nil {
		s.logger.Warn("notify task_added", zap.Error(err))
	}
	return &task, nil
}

// Claim moves a pending task to claimed via CAS. Claiming a task already
// held by the same agent is idempotent; held by another agent, a conflict.
func (s *Store) Claim(ctx context.Context, taskID, agentID string) (*masc.Task, error) {
	if taskID == "" || agentID == "" {
		return nil, masc.InvalidArgument("claim requires task_id and agent_id")
	}
	if err := s.checkWritable(ctx); err != nil {
		return nil, err
	}
	if ok, err := s.agentExists(ctx, agentID); err != nil {
		return nil, err
	} else if !ok {
		return nil, masc.NotFound("agent %q not in room", agentID)
	}

	key := masc.TaskKey(s.cfg.Room, taskID)
	raw, err := s.getRaw(ctx, key)
	if err != nil {
		if masc.IsKind(err, masc.KindNotFound) {
			return nil, masc.NotFound("task %q not found", taskID)
		}
		return nil, err
	}
	var task masc.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, masc.BackendFatal("corrupt task %s: %v", taskID, err)
	}

	if task.ClaimedBy == agentID && !task.Status.Terminal() {
		return &task, nil // idempotent re-claim
	}
	if task.Status != masc.TaskPending {
		return nil, masc.Conflict("task %q is %s (claimed_by %q)", taskID, task.Status, task.ClaimedBy)
	}

	task.Status = masc.TaskClaimed
	task.ClaimedBy = agentID
	task.ClaimedAt = s.clock.NowUnix()

	ok, err := s.casJSON(ctx, key, raw, &task)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, masc.Conflict("task %q was claimed concurrently", taskID)
	}

	s.setAgentTask(ctx, agentID, taskID)
	if _, err := s.notify(ctx, masc.MessageTaskUpdate, "task_claimed", agentID, map[string]interface{}{
		"task":  taskID,
		"agent": agentID,
	}); err != nil {
		s.logger.Warn("notify task_claimed", zap.Error(err))
	}
	s.rec.Record(ctx, masc.TelemetryTaskStarted, map[string]interface{}{"agent": agentID, "task": taskID})
	return &task, nil
}

// ClaimNext claims the highest-priority pending task the agent is capable
// of (priority 1 first, oldest created_at breaking ties). Races with other
// claimers are resolved by retrying the scan a bounded number of times.
func (s *Store) ClaimNext(ctx context.Context, agentID string, capabilities []string) (*masc.Task, error) {
	if agentID == "" {
		return nil, masc.InvalidArgument("claim_next requires an agent_id")
	}
	if err := s.checkWritable(ctx); err != nil {
		return nil, err
	}
	stored, err := s.Agent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if stored.Status == masc.AgentLeft {
		return nil, masc.NotFound("agent %q not in room", agentID)
	}
	// An explicit filter narrows the agent's advertised capabilities.
	agent := masc.Agent{Capabilities: stored.Capabilities}
	if capabilities != nil {
		agent.Capabilities = capabilities
	}

	for attempt := 0; attempt < claimNextRetries; attempt++ {
		candidates, err := s.pendingTasks(ctx)
		if err != nil {
			return nil, err
		}
		var viable []masc.Task
		for _, task := range candidates {
			if agent.HasCapabilities(task.RequiredCapabilities) {
				viable = append(viable, task)
			}
		}
		if len(viable) == 0 {
			return nil, masc.NotFound("no pending task matches agent %q", agentID)
		}

		sort.Slice(viable, func(i, j int) bool {
			if viable[i].Priority != viable[j].Priority {
				return viable[i].Priority < viable[j].Priority
			}
			return viable[i].CreatedAt < viable[j].CreatedAt
		})

		task, err := s.Claim(ctx, viable[0].ID, agentID)
		if err == nil {
			return task, nil
		}
		if !masc.IsKind(err, masc.KindConflict) {
			return nil, err
		}
		// Lost the race for this task; rescan.
	}
	return nil, masc.Conflict("claim_next lost %d races", claimNextRetries)
}

// Progress moves a claimed task to in_progress with a note.
func (s *Store) Progress(ctx context.Context, taskID, agentID, note string) (*masc.Task, error) {
	task, err := s.transitionOwned(ctx, taskID, agentID, masc.TaskInProgress, func(t *masc.Task) {})
	if err != nil {
		return nil, err
	}
	if _, err := s.notify(ctx, masc.MessageTaskUpdate, "task_progress", agentID, map[string]interface{}{
		"task":  taskID,
		"agent": agentID,
		"note":  note,
	}); err != nil {
		s.logger.Warn("notify task_progress", zap.Error(err))
	}
	return task, nil
}

// Done completes a task claimed by the calling agent and releases the
// locks the agent acquired while on it. Locks tied to another task the
// agent still holds survive.
func (s *Store) Done(ctx context.Context, taskID, agentID string) (*masc.Task, error) {
	var claimedAt float64
	task, err := s.transitionOwned(ctx, taskID, agentID, masc.TaskDone, func(t *masc.Task) {
		claimedAt = t.ClaimedAt
		t.CompletedAt = s.clock.NowUnix()
	})
	if err != nil {
		return nil, err
	}

	s.setAgentTask(ctx, agentID, "")
	if _, err := s.releaseTaskLocks(ctx, agentID, taskID); err != nil {
		s.logger.Warn("release locks after done", zap.Error(err))
	}

	if _, err := s.notify(ctx, masc.MessageTaskUpdate, "task_done", agentID, map[string]interface{}{
		"task":  taskID,
		"agent": agentID,
	}); err != nil {
		s.logger.Warn("notify task_done", zap.Error(err))
	}

	fields := map[string]interface{}{"agent": agentID, "task": taskID}
	if claimedAt > 0 {
		fields["duration_s"] = task.CompletedAt - claimedAt
	}
	s.rec.Record(ctx, masc.TelemetryTaskCompleted, fields)
	return task, nil
}

// CancelTask moves any non-terminal task to cancelled.
func (s *Store) CancelTask(ctx context.Context, taskID string) (*masc.Task, error) {
	if taskID == "" {
		return nil, masc.InvalidArgument("cancel_task requires a task_id")
	}

	key := masc.TaskKey(s.cfg.Room, taskID)
	var task masc.Task
	err := s.withLock(ctx, "task:"+taskID, func() error {
		raw, err := s.getRaw(ctx, key)
		if err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				return masc.NotFound("task %q not found", taskID)
			}
			return err
		}
		if err := json.Unmarshal(raw, &task); err != nil {
			return masc.BackendFatal("corrupt task %s: %v", taskID, err)
		}
		if !masc.ValidTaskTransition(task.Status, masc.TaskCancelled) {
			return masc.Conflict("task %q is already %s", taskID, task.Status)
		}
		holder := task.ClaimedBy
		task.Status = masc.TaskCancelled
		task.ClaimedBy = ""
		if holder != "" {
			s.setAgentTask(ctx, holder, "")
		}
		return s.setJSON(ctx, key, &task)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.notify(ctx, masc.MessageTaskUpdate, "task_cancelled", "", map[string]interface{}{
		"task": taskID,
	}); err != nil {
		s.logger.Warn("notify task_cancelled", zap.Error(err))
	}
	return &task, nil
}

// Tasks lists tasks, optionally filtered by status, ordered by priority
// then age.
func (s *Store) Tasks(ctx context.Context, status masc.TaskStatus) ([]masc.Task, error) {
	keys, err := s.be.List(ctx, masc.TaskPrefix(s.cfg.Room))
	if err != nil {
		return nil, err
	}
	out := make([]masc.Task, 0, len(keys))
	for _, key := range keys {
		var task masc.Task
		if err := s.getJSON(ctx, key, &task); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				continue
			}
			return nil, err
		}
		if status != "" && task.Status != status {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Task returns one task by id.
func (s *Store) Task(ctx context.Context, taskID string) (*masc.Task, error) {
	var task masc.Task
	if err := s.getJSON(ctx, masc.TaskKey(s.cfg.Room, taskID), &task); err != nil {
		if masc.IsKind(err, masc.KindNotFound) {
			return nil, masc.NotFound("task %q not found", taskID)
		}
		return nil, err
	}
	return &task, nil
}

func (s *Store) pendingTasks(ctx context.Context) ([]masc.Task, error) {
	return s.Tasks(ctx, masc.TaskPending)
}

// transitionOwned applies a status transition that requires the caller to
// hold the claim, mutating the task via fn before the write.
func (s *Store) transitionOwned(ctx context.Context, taskID, agentID string, to masc.TaskStatus, fn func(*masc.Task)) (*masc.Task, error) {
	if taskID == "" || agentID == "" {
		return nil, masc.InvalidArgument("requires task_id and agent_id")
	}

	key := masc.TaskKey(s.cfg.Room, taskID)
	var task masc.Task
	err := s.withLock(ctx, "task:"+taskID, func() error {
		raw, err := s.getRaw(ctx, key)
		if err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				return masc.NotFound("task %q not found", taskID)
			}
			return err
		}
		if err := json.Unmarshal(raw, &task); err != nil {
			return masc.BackendFatal("corrupt task %s: %v", taskID, err)
		}
		if task.ClaimedBy != agentID {
			return masc.Forbidden("task %q is claimed by %q, not %q", taskID, task.ClaimedBy, agentID)
		}
		if task.Status == to {
			return nil // idempotent
		}
		if !masc.ValidTaskTransition(task.Status, to) {
			return masc.Conflict("task %q cannot move %s -> %s", taskID, task.Status, to)
		}
		fn(&task)
		task.Status = to
		if to.Terminal() {
			// claimed_by is only set while the task is claimed or running.
			task.ClaimedBy = ""
		}
		return s.setJSON(ctx, key, &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// setAgentTask records the agent's current task pointer; failures are
// logged, not fatal, because the task record is the source of truth.
func (s *Store) setAgentTask(ctx context.Context, agentID, taskID string) {
	key := masc.AgentKey(s.cfg.Room, agentID)
	err := s.withLock(ctx, "agent:"+agentID, func() error {
		var agent masc.Agent
		if err := s.getJSON(ctx, key, &agent); err != nil {
			return err
		}
		agent.CurrentTaskID = taskID
		return s.setJSON(ctx, key, &agent)
	})
	if err != nil {
		s.logger.Debug("set agent task pointer", zap.String("agent", agentID), zap.Error(err))
	}
}
