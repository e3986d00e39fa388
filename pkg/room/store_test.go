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

	"github.com/teradata-labs/masc/pkg/bus"
	"github.com/teradata-labs/masc/pkg/masc"
	"github.com/teradata-labs/masc/pkg/storage/memory"
)

func testStore(t *testing.T) (*Store, *masc.VirtualClock) {
	t.Helper()
	return testStoreWithConfig(t, Config{})
}

func testStoreWithConfig(t *testing.T, cfg Config) (*Store, *masc.VirtualClock) {
	t.Helper()
	clock := masc.NewVirtualClock(time.Unix(1_700_000_000, 0))
	b := bus.New(bus.DefaultOptions())
	t.Cleanup(b.Close)
	s, err := New(context.Background(), Options{
		Backend: memory.New(),
		Bus:     b,
		Clock:   clock,
		IDs:     masc.SeededIDs(42),
		Config:  cfg,
	})
	require.NoError(t, err)
	return s, clock
}

func join(t *testing.T, s *Store, id string, caps ...string) {
	t.Helper()
	_, err := s.Join(context.Background(), JoinParams{AgentID: id, Capabilities: caps})
	require.NoError(t, err)
}

func TestJoinClaimDone(t *testing.T) {
	s, clock := testStore(t)
	ctx := context.Background()

	join(t, s, "alice")
	task, err := s.AddTask(ctx, AddTaskParams{Title: "refactor parser"})
	require.NoError(t, err)
	assert.Equal(t, masc.TaskPending, task.Status)
	assert.Equal(t, 3, task.Priority)

	claimed, err := s.Claim(ctx, task.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, masc.TaskClaimed, claimed.Status)
	assert.Equal(t, "alice", claimed.ClaimedBy)

	clock.Advance(90 * time.Second)
	inProgress, err := s.Progress(ctx, task.ID, "alice", "halfway")
	require.NoError(t, err)
	assert.Equal(t, masc.TaskInProgress, inProgress.Status)

	done, err := s.Done(ctx, task.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, masc.TaskDone, done.Status)
	assert.Empty(t, done.ClaimedBy)
	assert.Equal(t, clock.NowUnix(), done.CompletedAt)

	// Every transition left a message with a monotone seq.
	msgs, err := s.Messages(ctx, 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Seq)
	}
}

func TestClaimConflict(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	join(t, s, "alice")
	join(t, s, "bob")
	task, err := s.AddTask(ctx, AddTaskParams{Title: "migrate schema"})
	require.NoError(t, err)

	_, err = s.Claim(ctx, task.ID, "alice")
	require.NoError(t, err)

	_, err = s.Claim(ctx, task.ID, "bob")
	assert.True(t, masc.IsKind(err, masc.KindConflict))

	// Re-claim by the holder is idempotent.
	again, err := s.Claim(ctx, task.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", again.ClaimedBy)

	// Done by a non-holder is forbidden.
	_, err = s.Done(ctx, task.ID, "bob")
	assert.True(t, masc.IsKind(err, masc.KindForbidden))
}

func TestClaimNextPriorityOrder(t *testing.T) {
	s, clock := testStore(t)
	ctx := context.Background()

	join(t, s, "alice", "go")
	_, err := s.AddTask(ctx, AddTaskParams{ID: "low", Title: "low", Priority: 5})
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = s.AddTask(ctx, AddTaskParams{ID: "old-high", Title: "old high", Priority: 1})
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = s.AddTask(ctx, AddTaskParams{ID: "new-high", Title: "new high", Priority: 1})
	require.NoError(t, err)
	_, err = s.AddTask(ctx, AddTaskParams{ID: "gated", Title: "gated", Priority: 1, RequiredCapabilities: []string{"rust"}})
	require.NoError(t, err)

	first, err := s.ClaimNext(ctx, "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, "old-high", first.ID)

	second, err := s.ClaimNext(ctx, "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, "new-high", second.ID)

	// "gated" requires a capability alice lacks; "low" is next.
	third, err := s.ClaimNext(ctx, "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, "low", third.ID)
}

func TestMessageMonotonicity(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	join(t, s, "alice")
	for i := 0; i < 5; i++ {
		_, err := s.Broadcast(ctx, "alice", json.RawMessage(`{"n":1}`), "")
		require.NoError(t, err)
	}

	r1, err := s.Messages(ctx, 0, 3)
	require.NoError(t, err)
	r2, err := s.Messages(ctx, 0, 0)
	require.NoError(t, err)
	require.True(t, len(r2) >= len(r1))
	for i := range r1 {
		assert.Equal(t, r1[i], r2[i])
	}

	// Reads since a seq pick up exactly where the previous read stopped.
	tail, err := s.Messages(ctx, r1[len(r1)-1].Seq, 0)
	require.NoError(t, err)
	assert.Equal(t, r1[len(r1)-1].Seq+1, tail[0].Seq)
}

func TestPauseResume(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	join(t, s, "alice")
	_, err := s.Pause(ctx, "maintenance")
	require.NoError(t, err)

	_, err = s.AddTask(ctx, AddTaskParams{Title: "blocked"})
	assert.True(t, masc.IsKind(err, masc.KindConflict))

	// Lifecycle stays available so the room can drain.
	_, err = s.Heartbeat(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, s.Leave(ctx, "alice"))

	_, err = s.Resume(ctx)
	require.NoError(t, err)
	_, err = s.AddTask(ctx, AddTaskParams{Title: "unblocked"})
	require.NoError(t, err)
}

func TestStatusSnapshot(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	join(t, s, "alice")
	join(t, s, "bob")
	task, err := s.AddTask(ctx, AddTaskParams{Title: "one"})
	require.NoError(t, err)
	_, err = s.Claim(ctx, task.ID, "alice")
	require.NoError(t, err)
	_, err = s.VoteCreate(ctx, "lunch", []string{"pizza", "sushi"}, "alice", 0)
	require.NoError(t, err)

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Agents[string(masc.AgentActive)])
	assert.Equal(t, 1, st.Tasks[string(masc.TaskClaimed)])
	assert.Equal(t, 1, st.OpenVotes)
	assert.Greater(t, st.LastSeq, int64(0))
	assert.Equal(t, "main", st.Room.RoomID)
}

func TestTempoAndMode(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	tempo, err := s.TempoGet(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, tempo)

	_, err = s.TempoSet(ctx, time.Minute)
	require.NoError(t, err)
	tempo, err = s.TempoGet(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, tempo)

	_, err = s.ModeSet(ctx, "review")
	require.NoError(t, err)
	mode, err := s.ModeGet(ctx)
	require.NoError(t, err)
	assert.Equal(t, "review", mode)
}

func TestCredits(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	_, err := s.CreditAdd(ctx, "alice", 100, 40)
	require.NoError(t, err)
	_, err = s.CreditRecord(ctx, "alice", "four word input here", "ok")
	require.NoError(t, err)

	c, err := s.Credit(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Calls)
	assert.Greater(t, c.TokensIn, int64(100))

	all, err := s.Credits(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = s.Credit(ctx, "nobody")
	assert.True(t, masc.IsKind(err, masc.KindNotFound))
}
