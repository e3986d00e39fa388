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

	"go.uber.org/zap"

	"github.com/teradata-labs/masc/pkg/masc"
)

// Supervisor entry points. These run on every tempo tick, even while the
// room is paused, so a paused room still converges to a clean state. Each
// sweep tolerates individual record failures and reports how many records
// it changed.

// SweepZombies demotes silent agents to zombie and GCs zombies past the
// zombie TTL. A freshly-demoted zombie holding a task leaves a timeout
// handoff capsule behind before its tasks return to pending.
func (s *Store) SweepZombies(ctx context.Context) (int, error) {
	agents, err := s.Agents(ctx)
	if err != nil {
		return 0, err
	}
	now := s.clock.NowUnix()
	changed := 0

	for i := range agents {
		a := agents[i]
		switch a.Status {
		case masc.AgentActive, masc.AgentIdle, masc.AgentBusy:
			if now-a.LastHeartbeat <= s.cfg.HeartbeatTTL.Seconds() {
				continue
			}
			if err := s.demoteToZombie(ctx, a.ID); err != nil {
				s.logger.Warn("zombie demote", zap.String("agent", a.ID), zap.Error(err))
				continue
			}
			changed++

		case masc.AgentZombie:
			if now-a.LastHeartbeat <= s.cfg.ZombieTTL.Seconds() {
				continue
			}
			if err := s.collectZombie(ctx, a.ID); err != nil {
				s.logger.Warn("zombie collect", zap.String("agent", a.ID), zap.Error(err))
				continue
			}
			changed++
		}
	}
	return changed, nil
}

// demoteToZombie marks the agent zombie, drops a timeout capsule for its
// claimed work and returns that work to pending.
func (s *Store) demoteToZombie(ctx context.Context, agentID string) error {
	key := masc.AgentKey(s.cfg.Room, agentID)
	var agent masc.Agent
	abandonedTask := ""
	err := s.withLock(ctx, "agent:"+agentID, func() error {
		if err := s.getJSON(ctx, key, &agent); err != nil {
			return err
		}
		switch agent.Status {
		case masc.AgentActive, masc.AgentIdle, masc.AgentBusy:
		default:
			return nil // raced with heartbeat or leave
		}
		abandonedTask = agent.CurrentTaskID
		agent.Status = masc.AgentZombie
		agent.CurrentTaskID = ""
		return s.setJSON(ctx, key, &agent)
	})
	if err != nil || agent.Status != masc.AgentZombie {
		return err
	}

	if abandonedTask != "" {
		if err := s.zombieHandoff(ctx, agent.ID, abandonedTask); err != nil {
			s.logger.Warn("zombie handoff", zap.String("agent", agentID), zap.Error(err))
		}
	}
	released, unlocked, err := s.releaseAgentResources(ctx, agentID)
	if err != nil {
		return err
	}
	if _, err := s.notify(ctx, masc.MessageAgentEvent, "agent_zombie", agentID, map[string]interface{}{
		"agent":          agentID,
		"tasks_released": released,
		"locks_released": unlocked,
	}); err != nil {
		s.logger.Warn("notify agent_zombie", zap.Error(err))
	}
	return nil
}

// zombieHandoff leaves a minimal capsule so a successor can pick up the
// abandoned task. It bypasses the pause gate; sweeps run regardless.
func (s *Store) zombieHandoff(ctx context.Context, agentID, taskID string) error {
	h := masc.Handoff{
		ID:        s.ids.NewID(),
		FromAgent: agentID,
		TaskID:    taskID,
		Reason:    masc.ReasonTimeout,
		Goal:      "Resume task " + taskID + " abandoned by " + agentID,
		Warnings:  []string{"previous agent stopped heartbeating; progress state may be incomplete"},
		CreatedAt: s.clock.NowUnix(),
		Status:    masc.HandoffPending,
	}
	env, err := s.sealHandoff(&h)
	if err != nil {
		return err
	}
	if err := s.setJSON(ctx, masc.HandoffKey(s.cfg.Room, h.ID), env); err != nil {
		return err
	}
	s.rec.Record(ctx, masc.TelemetryHandoffTriggered, map[string]interface{}{
		"handoff":    h.ID,
		"from_agent": agentID,
		"task":       taskID,
		"reason":     string(masc.ReasonTimeout),
	})
	_, err = s.notify(ctx, masc.MessageHandoffEvent, "handoff_created", agentID, map[string]interface{}{
		"handoff": h.ID,
		"from":    agentID,
		"task":    taskID,
		"reason":  string(masc.ReasonTimeout),
	})
	return err
}

// collectZombie flips a long-dead zombie to left and deletes its record.
func (s *Store) collectZombie(ctx context.Context, agentID string) error {
	key := masc.AgentKey(s.cfg.Room, agentID)
	err := s.withLock(ctx, "agent:"+agentID, func() error {
		var agent masc.Agent
		if err := s.getJSON(ctx, key, &agent); err != nil {
			return err
		}
		if agent.Status != masc.AgentZombie {
			return nil
		}
		return s.be.Delete(ctx, key)
	})
	if err != nil {
		return err
	}
	_, err = s.notify(ctx, masc.MessageAgentEvent, "agent_left", agentID, map[string]interface{}{
		"agent":     agentID,
		"collected": true,
	})
	return err
}

// ExpireHandoffs expires pending capsules past the handoff TTL and returns
// stale claims to pending with to_agent cleared.
func (s *Store) ExpireHandoffs(ctx context.Context) (int, error) {
	keys, err := s.be.List(ctx, masc.HandoffPrefix(s.cfg.Room))
	if err != nil {
		return 0, err
	}
	now := s.clock.NowUnix()
	changed := 0

	for _, key := range keys {
		raw, err := s.getRaw(ctx, key)
		if err != nil {
			continue
		}
		var env handoffEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}

		switch {
		case env.Status == masc.HandoffPending && now-env.CreatedAt > s.cfg.HandoffTTL.Seconds():
			env.Status = masc.HandoffExpired
		case env.Status == masc.HandoffClaimed && env.ClaimedAt > 0 && now-env.ClaimedAt > s.cfg.HandoffConsumeTTL.Seconds():
			env.Status = masc.HandoffPending
			env.ToAgent = ""
			env.ClaimedAt = 0
		default:
			continue
		}

		if ok, err := s.casJSON(ctx, key, raw, &env); err != nil || !ok {
			continue
		}
		changed++
		event := "handoff_expired"
		if env.Status == masc.HandoffPending {
			event = "handoff_reopened"
		}
		if _, err := s.notify(ctx, masc.MessageHandoffEvent, event, "", map[string]interface{}{
			"handoff": env.ID,
		}); err != nil {
			s.logger.Warn("notify handoff expiry", zap.Error(err))
		}
	}
	return changed, nil
}

// AutoCloseVotes closes open votes past their deadline.
func (s *Store) AutoCloseVotes(ctx context.Context) (int, error) {
	votes, err := s.Votes(ctx)
	if err != nil {
		return 0, err
	}
	now := s.clock.NowUnix()
	changed := 0
	for i := range votes {
		v := votes[i]
		if v.Status != masc.VoteOpen || v.ClosesAt <= 0 || now < v.ClosesAt {
			continue
		}
		if _, err := s.VoteClose(ctx, v.ID); err != nil {
			if !masc.IsKind(err, masc.KindConflict) {
				s.logger.Warn("auto-close vote", zap.String("vote", v.ID), zap.Error(err))
			}
			continue
		}
		changed++
	}
	return changed, nil
}

// ExpireLocks releases file locks past their expiry.
func (s *Store) ExpireLocks(ctx context.Context) (int, error) {
	keys, err := s.be.List(ctx, masc.LockPrefix(s.cfg.Room))
	if err != nil {
		return 0, err
	}
	now := s.clock.NowUnix()
	changed := 0
	for _, key := range keys {
		var lock masc.Lock
		if err := s.getJSON(ctx, key, &lock); err != nil {
			continue
		}
		if lock.ExpiresAt <= 0 || now < lock.ExpiresAt {
			continue
		}
		if err := s.be.Delete(ctx, key); err != nil {
			continue
		}
		changed++
		if _, err := s.notify(ctx, masc.MessageSystem, "lock_expired", "", map[string]interface{}{
			"path":   lock.FilePath,
			"holder": lock.Holder,
		}); err != nil {
			s.logger.Warn("notify lock_expired", zap.Error(err))
		}
	}
	return changed, nil
}

// SweepCache deletes expired cache entries.
func (s *Store) SweepCache(ctx context.Context) (int, error) {
	keys, err := s.be.List(ctx, masc.CachePrefix(s.cfg.Room))
	if err != nil {
		return 0, err
	}
	now := s.clock.NowUnix()
	changed := 0
	for _, key := range keys {
		var entry masc.CacheEntry
		if err := s.getJSON(ctx, key, &entry); err != nil {
			continue
		}
		if !entry.Expired(now) {
			continue
		}
		if err := s.be.Delete(ctx, key); err == nil {
			changed++
		}
	}
	return changed, nil
}

// TimeoutInterrupts rejects checkpoints stuck in interrupted past the
// interrupt TTL.
func (s *Store) TimeoutInterrupts(ctx context.Context) (int, error) {
	keys, err := s.be.List(ctx, masc.CheckpointPrefix(s.cfg.Room, ""))
	if err != nil {
		return 0, err
	}
	now := s.clock.NowUnix()
	changed := 0
	for _, key := range keys {
		raw, err := s.getRaw(ctx, key)
		if err != nil {
			continue
		}
		var cp masc.Checkpoint
		if err := json.Unmarshal(raw, &cp); err != nil {
			continue
		}
		if cp.Status != masc.CheckpointInterrupted {
			continue
		}
		interruptedAt := cp.InterruptedAt
		if interruptedAt == 0 {
			interruptedAt = cp.CreatedAt
		}
		if now-interruptedAt <= s.cfg.InterruptTTL.Seconds() {
			continue
		}
		cp.Status = masc.CheckpointRejected
		cp.RejectReason = "timeout"
		cp.ResolvedAt = now
		if ok, err := s.casJSON(ctx, key, raw, &cp); err != nil || !ok {
			continue
		}
		changed++
		if _, err := s.notify(ctx, masc.MessageSystem, "checkpoint_rejected", "", map[string]interface{}{
			"checkpoint": cp.ID,
			"task":       cp.TaskID,
			"reason":     "timeout",
		}); err != nil {
			s.logger.Warn("notify interrupt timeout", zap.Error(err))
		}
	}
	return changed, nil
}

// Load is the supervisor's tempo input: active tasks over the concurrency
// target.
func (s *Store) Load(ctx context.Context) (float64, error) {
	tasks, err := s.Tasks(ctx, "")
	if err != nil {
		return 0, err
	}
	active := 0
	for _, t := range tasks {
		if t.Status == masc.TaskClaimed || t.Status == masc.TaskInProgress {
			active++
		}
	}
	return float64(active) / float64(s.cfg.ConcurrencyTarget), nil
}
