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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/masc/pkg/masc"
)

func TestZombieSweep(t *testing.T) {
	s, clock := testStoreWithConfig(t, Config{
		HeartbeatTTL: 30 * time.Second,
		ZombieTTL:    2 * time.Minute,
	})
	ctx := context.Background()

	join(t, s, "alice")
	join(t, s, "bob")
	task, err := s.AddTask(ctx, AddTaskParams{Title: "long job"})
	require.NoError(t, err)
	_, err = s.Claim(ctx, task.ID, "alice")
	require.NoError(t, err)
	_, err = s.LockPath(ctx, "alice", "src/job.go")
	require.NoError(t, err)

	// Bob keeps beating; alice goes silent.
	clock.Advance(31 * time.Second)
	_, err = s.Heartbeat(ctx, "bob")
	require.NoError(t, err)

	changed, err := s.SweepZombies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	alice, err := s.Agent(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, masc.AgentZombie, alice.Status)

	// Her task went back to pending, her lock is gone, and a timeout
	// capsule exists for a successor.
	reTask, err := s.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, masc.TaskPending, reTask.Status)
	assert.Empty(t, reTask.ClaimedBy)

	locks, err := s.Locks(ctx)
	require.NoError(t, err)
	assert.Empty(t, locks)

	pending, err := s.Handoffs(ctx, masc.HandoffPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "alice", pending[0].FromAgent)
	assert.Equal(t, task.ID, pending[0].TaskID)
	assert.Equal(t, masc.ReasonTimeout, pending[0].Reason)

	// A zombie heartbeat revives.
	revived, err := s.Heartbeat(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, masc.AgentActive, revived.Status)

	// Bob departs cleanly; alice goes silent again. Past the zombie TTL
	// her record is collected.
	require.NoError(t, s.Leave(ctx, "bob"))
	clock.Advance(31 * time.Second)
	_, err = s.SweepZombies(ctx)
	require.NoError(t, err)
	clock.Advance(3 * time.Minute)
	changed, err = s.SweepZombies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	_, err = s.Agent(ctx, "alice")
	assert.True(t, masc.IsKind(err, masc.KindNotFound))
}

func TestExpireHandoffs(t *testing.T) {
	s, clock := testStoreWithConfig(t, Config{
		HandoffTTL:        10 * time.Minute,
		HandoffConsumeTTL: time.Minute,
	})
	ctx := context.Background()

	join(t, s, "alice")
	join(t, s, "bob")
	stale := createHandoff(t, s, "alice")
	clock.Advance(5 * time.Minute)
	claimed := createHandoff(t, s, "alice")
	_, err := s.HandoffClaim(ctx, claimed.ID, "bob")
	require.NoError(t, err)

	// Nothing is due yet.
	changed, err := s.ExpireHandoffs(ctx)
	require.NoError(t, err)
	assert.Zero(t, changed)

	// Past both windows: the unclaimed capsule expires and the stale
	// claim reopens with to_agent cleared.
	clock.Advance(6 * time.Minute)
	changed, err = s.ExpireHandoffs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	_, err = s.HandoffClaim(ctx, stale.ID, "bob")
	assert.True(t, masc.IsKind(err, masc.KindNotFound))

	reopened, err := s.Handoffs(ctx, masc.HandoffPending)
	require.NoError(t, err)
	require.Len(t, reopened, 1)
	assert.Equal(t, claimed.ID, reopened[0].ID)
	assert.Empty(t, reopened[0].ToAgent)
}

func TestAutoCloseVotes(t *testing.T) {
	s, clock := testStore(t)
	ctx := context.Background()

	join(t, s, "alice")
	deadline := clock.NowUnix() + 60
	timed, err := s.VoteCreate(ctx, "timed", []string{"a", "b"}, "alice", deadline)
	require.NoError(t, err)
	open, err := s.VoteCreate(ctx, "open-ended", []string{"a", "b"}, "alice", 0)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	changed, err := s.AutoCloseVotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	st, err := s.VoteStatus(ctx, timed.ID)
	require.NoError(t, err)
	assert.Equal(t, masc.VoteClosed, st.Vote.Status)
	st, err = s.VoteStatus(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, masc.VoteOpen, st.Vote.Status)
}

func TestExpireLocksAndCache(t *testing.T) {
	s, clock := testStoreWithConfig(t, Config{LockTTL: 30 * time.Second})
	ctx := context.Background()

	join(t, s, "alice")
	_, err := s.LockPath(ctx, "alice", "a.go")
	require.NoError(t, err)
	_, err = s.CacheSet(ctx, "short", "v", time.Second, nil)
	require.NoError(t, err)
	_, err = s.CacheSet(ctx, "long", "v", time.Hour, nil)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	n, err := s.ExpireLocks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.SweepCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.CacheGet(ctx, "long")
	require.NoError(t, err)
}

func TestTimeoutInterrupts(t *testing.T) {
	s, clock := testStoreWithConfig(t, Config{InterruptTTL: time.Hour})
	ctx := context.Background()

	cp, err := s.CheckpointSave(ctx, "t1", 0, `{}`)
	require.NoError(t, err)
	_, err = s.CheckpointInterrupt(ctx, "t1", cp.ID, "review")
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	n, err := s.TimeoutInterrupts(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(31 * time.Minute)
	n, err = s.TimeoutInterrupts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cps, err := s.Checkpoints(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.Equal(t, masc.CheckpointRejected, cps[0].Status)
	assert.Equal(t, "timeout", cps[0].RejectReason)
}

func TestLoad(t *testing.T) {
	s, _ := testStoreWithConfig(t, Config{ConcurrencyTarget: 4})
	ctx := context.Background()

	join(t, s, "alice")
	for i := 0; i < 2; i++ {
		task, err := s.AddTask(ctx, AddTaskParams{Title: "t"})
		require.NoError(t, err)
		_, err = s.Claim(ctx, task.ID, "alice")
		require.NoError(t, err)
	}

	load, err := s.Load(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, load, 1e-9)
}
