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
	"sort"

	"go.uber.org/zap"

	"github.com/teradata-labs/masc/pkg/masc"
)

// Checkpoint state is sealed at rest when encryption is enabled; every
// read returns the clear snapshot.

// CheckpointSave records a new workflow step as in_progress and completes
// the task's previous in_progress step, if any. Saving is how steps
// normally finish; approve/reject only arbitrate interrupted ones.
func (s *Store) CheckpointSave(ctx context.Context, taskID string, step int, stateJSON string) (*masc.Checkpoint, error) {
	if taskID == "" {
		return nil, masc.InvalidArgument("checkpoint_save requires task_id")
	}
	if step < 0 {
		return nil, masc.InvalidArgument("checkpoint step must be non-negative")
	}
	if err := s.checkWritable(ctx); err != nil {
		return nil, err
	}

	sealed, err := s.sealer.Seal(stateJSON)
	if err != nil {
		return nil, err
	}
	cp := masc.Checkpoint{
		ID:        s.ids.NewID(),
		TaskID:    taskID,
		Step:      step,
		StateJSON: sealed,
		Status:    masc.CheckpointInProgress,
		CreatedAt: s.clock.NowUnix(),
	}

	err = s.withLock(ctx, "checkpoints:"+taskID, func() error {
		prior, err := s.listCheckpoints(ctx, taskID)
		if err != nil {
			return err
		}
		now := s.clock.NowUnix()
		for i := range prior {
			if prior[i].Status != masc.CheckpointInProgress {
				continue
			}
			prior[i].Status = masc.CheckpointCompleted
			prior[i].ResolvedAt = now
			if err := s.setJSON(ctx, masc.CheckpointKey(s.cfg.Room, taskID, prior[i].ID), &prior[i]); err != nil {
				return err
			}
		}
		return s.setJSON(ctx, masc.CheckpointKey(s.cfg.Room, taskID, cp.ID), &cp)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.notify(ctx, masc.MessageSystem, "checkpoint_saved", "", map[string]interface{}{
		"checkpoint": cp.ID,
		"task":       taskID,
		"step":       step,
	}); err != nil {
		s.logger.Warn("notify checkpoint_saved", zap.Error(err))
	}
	return s.openCheckpoint(&cp)
}

// CheckpointInterrupt pauses an in_progress step for human review.
func (s *Store) CheckpointInterrupt(ctx context.Context, taskID, checkpointID, message string) (*masc.Checkpoint, error) {
	return s.transitionCheckpoint(ctx, taskID, checkpointID, masc.CheckpointInterrupted, "checkpoint_interrupted", func(cp *masc.Checkpoint) {
		cp.InterruptMessage = message
		cp.InterruptedAt = s.clock.NowUnix()
	})
}

// CheckpointApprove resolves an interrupted step as completed.
func (s *Store) CheckpointApprove(ctx context.Context, taskID, checkpointID string) (*masc.Checkpoint, error) {
	return s.transitionCheckpoint(ctx, taskID, checkpointID, masc.CheckpointCompleted, "checkpoint_approved", nil)
}

// CheckpointReject resolves an interrupted step as rejected.
func (s *Store) CheckpointReject(ctx context.Context, taskID, checkpointID, reason string) (*masc.Checkpoint, error) {
	return s.transitionCheckpoint(ctx, taskID, checkpointID, masc.CheckpointRejected, "checkpoint_rejected", func(cp *masc.Checkpoint) {
		cp.RejectReason = reason
	})
}

// CheckpointRevert abandons any non-terminal step (time travel).
func (s *Store) CheckpointRevert(ctx context.Context, taskID, checkpointID string) (*masc.Checkpoint, error) {
	return s.transitionCheckpoint(ctx, taskID, checkpointID, masc.CheckpointReverted, "checkpoint_reverted", nil)
}

// CheckpointBranch forks an interrupted step: the parent becomes branched
// and a new in_progress checkpoint clones its state at step+1.
func (s *Store) CheckpointBranch(ctx context.Context, taskID, checkpointID, branchName string) (*masc.Checkpoint, error) {
	if branchName == "" {
		return nil, masc.InvalidArgument("checkpoint_branch requires branch_name")
	}
	if err := s.checkWritable(ctx); err != nil {
		return nil, err
	}

	var child masc.Checkpoint
	err := s.withLock(ctx, "checkpoint:"+checkpointID, func() error {
		var parent masc.Checkpoint
		if err := s.getCheckpoint(ctx, taskID, checkpointID, &parent); err != nil {
			return err
		}
		if !masc.ValidCheckpointTransition(parent.Status, masc.CheckpointBranched) {
			return masc.Conflict("checkpoint %q is %s; cannot branch", checkpointID, parent.Status)
		}
		now := s.clock.NowUnix()
		parent.Status = masc.CheckpointBranched
		parent.BranchName = branchName
		parent.ResolvedAt = now
		if err := s.setJSON(ctx, masc.CheckpointKey(s.cfg.Room, taskID, parent.ID), &parent); err != nil {
			return err
		}
		child = masc.Checkpoint{
			ID:         s.ids.NewID(),
			TaskID:     taskID,
			Step:       parent.Step + 1,
			StateJSON:  parent.StateJSON, // still sealed; clone as stored
			Status:     masc.CheckpointInProgress,
			ParentID:   parent.ID,
			BranchName: branchName,
			CreatedAt:  now,
		}
		return s.setJSON(ctx, masc.CheckpointKey(s.cfg.Room, taskID, child.ID), &child)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.notify(ctx, masc.MessageSystem, "checkpoint_branched", "", map[string]interface{}{
		"checkpoint": checkpointID,
		"child":      child.ID,
		"task":       taskID,
		"branch":     branchName,
	}); err != nil {
		s.logger.Warn("notify checkpoint_branched", zap.Error(err))
	}
	return s.openCheckpoint(&child)
}

// Checkpoints lists a task's checkpoints ordered by step then creation.
func (s *Store) Checkpoints(ctx context.Context, taskID string) ([]masc.Checkpoint, error) {
	if taskID == "" {
		return nil, masc.InvalidArgument("checkpoints requires task_id")
	}
	cps, err := s.listCheckpoints(ctx, taskID)
	if err != nil {
		return nil, err
	}
	out := make([]masc.Checkpoint, 0, len(cps))
	for i := range cps {
		cp, err := s.openCheckpoint(&cps[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Step != out[j].Step {
			return out[i].Step < out[j].Step
		}
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) transitionCheckpoint(ctx context.Context, taskID, checkpointID string, to masc.CheckpointStatus, event string, mutate func(*masc.Checkpoint)) (*masc.Checkpoint, error) {
	if taskID == "" || checkpointID == "" {
		return nil, masc.InvalidArgument("checkpoint operations require task_id and checkpoint_id")
	}
	if err := s.checkWritable(ctx); err != nil {
		return nil, err
	}

	var cp masc.Checkpoint
	err := s.withLock(ctx, "checkpoint:"+checkpointID, func() error {
		if err := s.getCheckpoint(ctx, taskID, checkpointID, &cp); err != nil {
			return err
		}
		if !masc.ValidCheckpointTransition(cp.Status, to) {
			return masc.Conflict("checkpoint %q cannot move %s → %s", checkpointID, cp.Status, to)
		}
		cp.Status = to
		if to.Terminal() {
			cp.ResolvedAt = s.clock.NowUnix()
		}
		if mutate != nil {
			mutate(&cp)
		}
		return s.setJSON(ctx, masc.CheckpointKey(s.cfg.Room, taskID, cp.ID), &cp)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.notify(ctx, masc.MessageSystem, event, "", map[string]interface{}{
		"checkpoint": checkpointID,
		"task":       taskID,
		"status":     string(to),
	}); err != nil {
		s.logger.Warn("notify checkpoint transition", zap.Error(err), zap.String("event", event))
	}
	return s.openCheckpoint(&cp)
}

func (s *Store) getCheckpoint(ctx context.Context, taskID, checkpointID string, cp *masc.Checkpoint) error {
	err := s.getJSON(ctx, masc.CheckpointKey(s.cfg.Room, taskID, checkpointID), cp)
	if masc.IsKind(err, masc.KindNotFound) {
		return masc.NotFound("checkpoint %q not found for task %q", checkpointID, taskID)
	}
	return err
}

// listCheckpoints returns stored (still sealed) records.
func (s *Store) listCheckpoints(ctx context.Context, taskID string) ([]masc.Checkpoint, error) {
	keys, err := s.be.List(ctx, masc.CheckpointPrefix(s.cfg.Room, taskID))
	if err != nil {
		return nil, err
	}
	out := make([]masc.Checkpoint, 0, len(keys))
	for _, key := range keys {
		var cp masc.Checkpoint
		if err := s.getJSON(ctx, key, &cp); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// openCheckpoint returns a copy with clear-text state.
func (s *Store) openCheckpoint(cp *masc.Checkpoint) (*masc.Checkpoint, error) {
	out := *cp
	state, err := s.sealer.Open(cp.StateJSON)
	if err != nil {
		return nil, err
	}
	out.StateJSON = state
	return &out, nil
}
