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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/masc/pkg/masc"
)

func TestLockContention(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	join(t, s, "alice")
	join(t, s, "bob")

	lock, err := s.LockPath(ctx, "alice", "./src/main.go")
	require.NoError(t, err)
	assert.Equal(t, "src/main.go", lock.FilePath)

	// Another agent is refused; the holder re-locks freely.
	_, err = s.LockPath(ctx, "bob", "src/main.go")
	assert.True(t, masc.IsKind(err, masc.KindConflict))
	_, err = s.LockPath(ctx, "alice", "src\\main.go")
	require.NoError(t, err)

	// Only the holder unlocks.
	err = s.UnlockPath(ctx, "bob", "src/main.go")
	assert.True(t, masc.IsKind(err, masc.KindForbidden))
	require.NoError(t, s.UnlockPath(ctx, "alice", "src/main.go"))

	_, err = s.LockPath(ctx, "bob", "src/main.go")
	require.NoError(t, err)

	err = s.UnlockPath(ctx, "alice", "never/locked.go")
	assert.True(t, masc.IsKind(err, masc.KindNotFound))
}

func TestLockTTLExpiry(t *testing.T) {
	s, clock := testStoreWithConfig(t, Config{LockTTL: 30 * time.Second})
	ctx := context.Background()

	join(t, s, "alice")
	join(t, s, "bob")
	first, err := s.LockPath(ctx, "alice", "a.go")
	require.NoError(t, err)
	require.Greater(t, first.ExpiresAt, 0.0)

	// Holder re-lock pushes the expiry without resetting acquired_at.
	clock.Advance(20 * time.Second)
	second, err := s.LockPath(ctx, "alice", "a.go")
	require.NoError(t, err)
	assert.Equal(t, first.AcquiredAt, second.AcquiredAt)
	assert.Greater(t, second.ExpiresAt, first.ExpiresAt)

	// Past expiry the lock is claimable by anyone.
	clock.Advance(31 * time.Second)
	taken, err := s.LockPath(ctx, "bob", "a.go")
	require.NoError(t, err)
	assert.Equal(t, "bob", taken.Holder)
}

func TestDoneReleasesOnlyThatTaskLocks(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	join(t, s, "alice")
	t1, err := s.AddTask(ctx, AddTaskParams{Title: "parser rewrite"})
	require.NoError(t, err)
	t2, err := s.AddTask(ctx, AddTaskParams{Title: "lexer cleanup"})
	require.NoError(t, err)

	// Locks are tagged with the task the holder is on at acquisition.
	_, err = s.Claim(ctx, t1.ID, "alice")
	require.NoError(t, err)
	first, err := s.LockPath(ctx, "alice", "parser.go")
	require.NoError(t, err)
	assert.Equal(t, t1.ID, first.TaskID)

	_, err = s.Claim(ctx, t2.ID, "alice")
	require.NoError(t, err)
	second, err := s.LockPath(ctx, "alice", "lexer.go")
	require.NoError(t, err)
	assert.Equal(t, t2.ID, second.TaskID)

	// Finishing the first task drops only its lock.
	_, err = s.Done(ctx, t1.ID, "alice")
	require.NoError(t, err)
	locks, err := s.Locks(ctx)
	require.NoError(t, err)
	require.Len(t, locks, 1)
	assert.Equal(t, "lexer.go", locks[0].FilePath)

	_, err = s.Done(ctx, t2.ID, "alice")
	require.NoError(t, err)
	locks, err = s.Locks(ctx)
	require.NoError(t, err)
	assert.Empty(t, locks)
}

func TestVoteFlow(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	join(t, s, "alice")
	join(t, s, "bob")
	v, err := s.VoteCreate(ctx, "deploy window", []string{"now", "tonight"}, "alice", 0)
	require.NoError(t, err)

	_, err = s.VoteCast(ctx, v.ID, "alice", "now")
	require.NoError(t, err)
	_, err = s.VoteCast(ctx, v.ID, "bob", "tonight")
	require.NoError(t, err)
	// Re-cast overwrites.
	_, err = s.VoteCast(ctx, v.ID, "bob", "now")
	require.NoError(t, err)

	_, err = s.VoteCast(ctx, v.ID, "alice", "never")
	assert.True(t, masc.IsKind(err, masc.KindInvalidArgument))

	status, err := s.VoteStatus(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Counts["now"])
	assert.Equal(t, "now", status.Leader)

	closed, err := s.VoteClose(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, masc.VoteClosed, closed.Vote.Status)

	_, err = s.VoteCast(ctx, v.ID, "alice", "now")
	assert.True(t, masc.IsKind(err, masc.KindConflict))
	_, err = s.VoteClose(ctx, v.ID)
	assert.True(t, masc.IsKind(err, masc.KindConflict))
}

func TestPortalFlow(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	join(t, s, "alice")
	join(t, s, "bob")
	p, err := s.PortalOpen(ctx, "alice", "bob")
	require.NoError(t, err)

	// Opening the same unordered pair again returns the existing portal.
	again, err := s.PortalOpen(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)

	require.NoError(t, s.PortalSend(ctx, p.ID, "alice", json.RawMessage(`{"hi":1}`)))
	require.NoError(t, s.PortalSend(ctx, p.ID, "alice", json.RawMessage(`{"hi":2}`)))

	got, err := s.PortalRecv(ctx, p.ID, "bob", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"hi":1}`, string(got[0]))

	// Inbox drained.
	got, err = s.PortalRecv(ctx, p.ID, "bob", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Non-members stay outside.
	join(t, s, "carol")
	err = s.PortalSend(ctx, p.ID, "carol", json.RawMessage(`{}`))
	assert.True(t, masc.IsKind(err, masc.KindForbidden))

	require.NoError(t, s.PortalClose(ctx, p.ID, "alice"))
	err = s.PortalSend(ctx, p.ID, "bob", json.RawMessage(`{}`))
	assert.True(t, masc.IsKind(err, masc.KindConflict))
}

func TestCacheTTL(t *testing.T) {
	s, clock := testStore(t)
	ctx := context.Background()

	_, err := s.CacheSet(ctx, "build/result", "ok", time.Minute, []string{"ci"})
	require.NoError(t, err)
	_, err = s.CacheSet(ctx, "keep", "forever", 0, nil)
	require.NoError(t, err)

	entry, err := s.CacheGet(ctx, "build/result")
	require.NoError(t, err)
	assert.Equal(t, "ok", entry.Value)
	assert.Equal(t, "build_result", entry.Key)

	clock.Advance(2 * time.Minute)
	_, err = s.CacheGet(ctx, "build/result")
	assert.True(t, masc.IsKind(err, masc.KindNotFound))

	list, err := s.CacheList(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "keep", list[0].Key)

	tagged, err := s.CacheList(ctx, "ci")
	require.NoError(t, err)
	assert.Empty(t, tagged)

	require.NoError(t, s.CacheDelete(ctx, "keep"))
	err = s.CacheDelete(ctx, "keep")
	assert.True(t, masc.IsKind(err, masc.KindNotFound))
}

func TestCheckpointFlow(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	cp, err := s.CheckpointSave(ctx, "t1", 0, `{"stage":"init"}`)
	require.NoError(t, err)
	assert.Equal(t, masc.CheckpointInProgress, cp.Status)
	assert.Equal(t, `{"stage":"init"}`, cp.StateJSON)

	// Saving the next step completes the previous one.
	next, err := s.CheckpointSave(ctx, "t1", 1, `{"stage":"plan"}`)
	require.NoError(t, err)
	cps, err := s.Checkpoints(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, cps, 2)
	assert.Equal(t, masc.CheckpointCompleted, cps[0].Status)

	interrupted, err := s.CheckpointInterrupt(ctx, "t1", next.ID, "need human review")
	require.NoError(t, err)
	assert.Equal(t, masc.CheckpointInterrupted, interrupted.Status)
	assert.Equal(t, "need human review", interrupted.InterruptMessage)

	// Completed checkpoints admit nothing further.
	_, err = s.CheckpointInterrupt(ctx, "t1", cps[0].ID, "x")
	assert.True(t, masc.IsKind(err, masc.KindConflict))

	approved, err := s.CheckpointApprove(ctx, "t1", next.ID)
	require.NoError(t, err)
	assert.Equal(t, masc.CheckpointCompleted, approved.Status)
	assert.Greater(t, approved.ResolvedAt, 0.0)
}

func TestCheckpointBranchAndRevert(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	cp, err := s.CheckpointSave(ctx, "t1", 3, `{"cursor":42}`)
	require.NoError(t, err)
	_, err = s.CheckpointInterrupt(ctx, "t1", cp.ID, "fork here")
	require.NoError(t, err)

	child, err := s.CheckpointBranch(ctx, "t1", cp.ID, "alt-approach")
	require.NoError(t, err)
	assert.Equal(t, cp.ID, child.ParentID)
	assert.Equal(t, 4, child.Step)
	assert.Equal(t, `{"cursor":42}`, child.StateJSON)
	assert.Equal(t, masc.CheckpointInProgress, child.Status)

	parent, err := s.Checkpoints(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, parent, 2)
	assert.Equal(t, masc.CheckpointBranched, parent[0].Status)

	// Branched is terminal; the child can still be reverted.
	_, err = s.CheckpointRevert(ctx, "t1", cp.ID)
	assert.True(t, masc.IsKind(err, masc.KindConflict))
	reverted, err := s.CheckpointRevert(ctx, "t1", child.ID)
	require.NoError(t, err)
	assert.Equal(t, masc.CheckpointReverted, reverted.Status)
}
