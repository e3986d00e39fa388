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

// JoinParams are the arguments of a join.
type JoinParams struct {
	AgentID      string
	DisplayName  string
	Capabilities []string
	Role         string
	Worktree     string
}

// Join creates or revives an agent. Joining an agent that is already
// active is idempotent and returns the existing record; a left or zombie
// agent is resurrected.
func (s *Store) Join(ctx context.Context, p JoinParams) (*masc.Agent, error) {
	if p.AgentID == "" {
		return nil, masc.InvalidArgument("join requires an agent_id")
	}
	if err := s.checkWritable(ctx); err != nil {
		return nil, err
	}

	key := masc.AgentKey(s.cfg.Room, p.AgentID)
	var agent masc.Agent
	revived := false

	err := s.withLock(ctx, "agent:"+p.AgentID, func() error {
		now := s.clock.NowUnix()
		err := s.getJSON(ctx, key, &agent)
		switch {
		case err == nil:
			if agent.Status == masc.AgentActive || agent.Status == masc.AgentBusy || agent.Status == masc.AgentIdle {
				// Idempotent re-join.
				agent.LastHeartbeat = now
				return s.setJSON(ctx, key, &agent)
			}
			revived = true
			agent.Status = masc.AgentActive
			agent.LastHeartbeat = now
			if p.DisplayName != "" {
				agent.DisplayName = p.DisplayName
			}
			if len(p.Capabilities) > 0 {
				agent.Capabilities = p.Capabilities
			}
			if p.Role != "" {
				agent.Role = p.Role
			}
			return s.setJSON(ctx, key, &agent)

		case masc.IsKind(err, masc.KindNotFound):
			revived = false
			agent = masc.Agent{
				ID:              p.AgentID,
				DisplayName:     p.DisplayName,
				Capabilities:    p.Capabilities,
				Status:          masc.AgentActive,
				JoinedAt:        now,
				LastHeartbeat:   now,
				Role:            p.Role,
				CurrentWorktree: p.Worktree,
			}
			return s.setJSON(ctx, key, &agent)

		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.notify(ctx, masc.MessageAgentEvent, "agent_joined", p.AgentID, map[string]interface{}{
		"agent":   p.AgentID,
		"revived": revived,
	}); err != nil {
		s.logger.Warn("notify agent_joined", zap.Error(err))
	}
	s.rec.Record(ctx, masc.TelemetryAgentJoined, map[string]interface{}{"agent": p.AgentID})

	cp := agent
	return &cp, nil
}

// Leave flips the agent to left, releases its file locks and returns its
// claimed tasks to pending (done tasks stay done).
func (s *Store) Leave(ctx context.Context, agentID string) error {
	if agentID == "" {
		return masc.InvalidArgument("leave requires an agent_id")
	}

	key := masc.AgentKey(s.cfg.Room, agentID)
	err := s.withLock(ctx, "agent:"+agentID, func() error {
		var agent masc.Agent
		if err := s.getJSON(ctx, key, &agent); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				return masc.NotFound("agent %q not in room", agentID)
			}
			return err
		}
		agent.Status = masc.AgentLeft
		agent.CurrentTaskID = ""
		return s.setJSON(ctx, key, &agent)
	})
	if err != nil {
		return err
	}

	released, unlocked, err := s.releaseAgentResources(ctx, agentID)
	if err != nil {
		return err
	}

	if _, err := s.notify(ctx, masc.MessageAgentEvent, "agent_left", agentID, map[string]interface{}{
		"agent":          agentID,
		"tasks_released": released,
		"locks_released": unlocked,
	}); err != nil {
		s.logger.Warn("notify agent_left", zap.Error(err))
	}
	s.rec.Record(ctx, masc.TelemetryAgentLeft, map[string]interface{}{"agent": agentID})
	return nil
}

// Heartbeat bumps last_heartbeat. A zombie revives; a left agent stays
// left and reports not_found so the client knows to re-join.
func (s *Store) Heartbeat(ctx context.Context, agentID string) (*masc.Agent, error) {
	if agentID == "" {
		return nil, masc.InvalidArgument("heartbeat requires an agent_id")
	}

	key := masc.AgentKey(s.cfg.Room, agentID)
	var agent masc.Agent
	err := s.withLock(ctx, "agent:"+agentID, func() error {
		if err := s.getJSON(ctx, key, &agent); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				return masc.NotFound("agent %q not in room", agentID)
			}
			return err
		}
		if agent.Status == masc.AgentLeft {
			return masc.NotFound("agent %q has left; join again", agentID)
		}
		if agent.Status == masc.AgentZombie {
			agent.Status = masc.AgentActive
		}
		agent.LastHeartbeat = s.clock.NowUnix()
		return s.setJSON(ctx, key, &agent)
	})
	if err != nil {
		return nil, err
	}
	cp := agent
	return &cp, nil
}

// Agents lists all agents in the room, stably ordered by id. Left agents
// are included until the supervisor GCs them.
func (s *Store) Agents(ctx context.Context) ([]masc.Agent, error) {
	keys, err := s.be.List(ctx, masc.AgentPrefix(s.cfg.Room))
	if err != nil {
		return nil, err
	}
	out := make([]masc.Agent, 0, len(keys))
	for _, key := range keys {
		var agent masc.Agent
		if err := s.getJSON(ctx, key, &agent); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				continue // deleted between List and Get
			}
			return nil, err
		}
		out = append(out, agent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Agent returns one agent by id.
func (s *Store) Agent(ctx context.Context, agentID string) (*masc.Agent, error) {
	var agent masc.Agent
	if err := s.getJSON(ctx, masc.AgentKey(s.cfg.Room, agentID), &agent); err != nil {
		if masc.IsKind(err, masc.KindNotFound) {
			return nil, masc.NotFound("agent %q not in room", agentID)
		}
		return nil, err
	}
	return &agent, nil
}

// agentExists reports whether an agent record exists in any non-left state.
func (s *Store) agentExists(ctx context.Context, agentID string) (bool, error) {
	agent, err := s.Agent(ctx, agentID)
	if err != nil {
		if masc.IsKind(err, masc.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	return agent.Status != masc.AgentLeft, nil
}

// releaseAgentResources returns the agent's claimed tasks to pending and
// drops its file locks. Used by leave and the zombie sweep.
func (s *Store) releaseAgentResources(ctx context.Context, agentID string) (tasksReleased, locksReleased []string, err error) {
	tasksReleased, err = s.releaseAgentTasks(ctx, agentID)
	if err != nil {
		return nil, nil, err
	}
	locksReleased, err = s.releaseAgentLocks(ctx, agentID)
	return tasksReleased, locksReleased, err
}

// releaseAgentTasks returns every non-terminal task claimed by the agent
// to pending.
func (s *Store) releaseAgentTasks(ctx context.Context, agentID string) ([]string, error) {
	keys, err := s.be.List(ctx, masc.TaskPrefix(s.cfg.Room))
	if err != nil {
		return nil, err
	}
	var released []string
	for _, key := range keys {
		raw, err := s.getRaw(ctx, key)
		if err != nil {
			continue
		}
		var task masc.Task
		if jsonErr := json.Unmarshal(raw, &task); jsonErr != nil {
			continue
		}
		if task.ClaimedBy != agentID || task.Status.Terminal() {
			continue
		}
		task.Status = masc.TaskPending
		task.ClaimedBy = ""
		task.ClaimedAt = 0
		if ok, casErr := s.casJSON(ctx, key, raw, &task); casErr == nil && ok {
			released = append(released, task.ID)
		}
	}
	return released, nil
}

// releaseAgentLocks drops every file lock the agent holds.
func (s *Store) releaseAgentLocks(ctx context.Context, agentID string) ([]string, error) {
	return s.releaseLocks(ctx, agentID, func(masc.Lock) bool { return true })
}

// releaseTaskLocks drops the agent's locks tied to taskID. Untagged locks
// (acquired while the agent had no current task) are released too.
func (s *Store) releaseTaskLocks(ctx context.Context, agentID, taskID string) ([]string, error) {
	return s.releaseLocks(ctx, agentID, func(l masc.Lock) bool {
		return l.TaskID == taskID || l.TaskID == ""
	})
}

func (s *Store) releaseLocks(ctx context.Context, agentID string, match func(masc.Lock) bool) ([]string, error) {
	keys, err := s.be.List(ctx, masc.LockPrefix(s.cfg.Room))
	if err != nil {
		return nil, err
	}
	var released []string
	for _, key := range keys {
		var lock masc.Lock
		if err := s.getJSON(ctx, key, &lock); err != nil {
			continue
		}
		if lock.Holder != agentID || !match(lock) {
			continue
		}
		if err := s.be.Delete(ctx, key); err == nil {
			released = append(released, lock.FilePath)
		}
	}
	return released, nil
}
