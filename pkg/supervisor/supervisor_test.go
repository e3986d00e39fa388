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
package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/masc/pkg/bus"
	"github.com/teradata-labs/masc/pkg/masc"
	"github.com/teradata-labs/masc/pkg/room"
	"github.com/teradata-labs/masc/pkg/storage/memory"
)

func testSupervisor(t *testing.T, cfg room.Config) (*Supervisor, *room.Store, *masc.VirtualClock) {
	t.Helper()
	clock := masc.NewVirtualClock(time.Unix(1_700_000_000, 0))
	b := bus.New(bus.DefaultOptions())
	t.Cleanup(b.Close)
	store, err := room.New(context.Background(), room.Options{
		Backend: memory.New(),
		Bus:     b,
		Clock:   clock,
		IDs:     masc.SeededIDs(3),
		Config:  cfg,
	})
	require.NoError(t, err)

	sup, err := New(Options{Store: store, Bus: b})
	require.NoError(t, err)
	return sup, store, clock
}

func TestPassSweepsZombies(t *testing.T) {
	sup, store, clock := testSupervisor(t, room.Config{
		HeartbeatTTL: 30 * time.Second,
	})
	ctx := context.Background()

	_, err := store.Join(ctx, room.JoinParams{AgentID: "alice"})
	require.NoError(t, err)
	clock.Advance(31 * time.Second)

	sup.Pass(ctx)

	alice, err := store.Agent(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, masc.AgentZombie, alice.Status)
}

func TestPassClosesDueVotes(t *testing.T) {
	sup, store, clock := testSupervisor(t, room.Config{})
	ctx := context.Background()

	_, err := store.Join(ctx, room.JoinParams{AgentID: "alice"})
	require.NoError(t, err)
	vote, err := store.VoteCreate(ctx, "merge strategy", []string{"squash", "rebase"}, "alice", clock.NowUnix()+60)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	sup.Pass(ctx)

	result, err := store.VoteStatus(ctx, vote.ID)
	require.NoError(t, err)
	assert.Equal(t, masc.VoteClosed, result.Vote.Status)
}

func TestIntervalScalesWithLoad(t *testing.T) {
	sup, store, _ := testSupervisor(t, room.Config{
		Tempo:             30 * time.Second,
		ConcurrencyTarget: 2,
	})
	ctx := context.Background()

	// Idle room runs at the base tempo.
	assert.Equal(t, 30*time.Second, sup.interval(ctx))

	_, err := store.Join(ctx, room.JoinParams{AgentID: "alice"})
	require.NoError(t, err)
	task, err := store.AddTask(ctx, room.AddTaskParams{Title: "one"})
	require.NoError(t, err)
	_, err = store.Claim(ctx, task.ID, "alice")
	require.NoError(t, err)

	// One active task against a target of two: load 0.5, interval 45s.
	assert.Equal(t, 45*time.Second, sup.interval(ctx))
}

func TestIntervalClamps(t *testing.T) {
	sup, store, _ := testSupervisor(t, room.Config{
		Tempo:             200 * time.Second,
		ConcurrencyTarget: 1,
	})
	ctx := context.Background()

	_, err := store.Join(ctx, room.JoinParams{AgentID: "alice"})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		task, err := store.AddTask(ctx, room.AddTaskParams{Title: "busy"})
		require.NoError(t, err)
		_, err = store.Claim(ctx, task.ID, "alice")
		require.NoError(t, err)
	}

	// 200s * (1+2) clamps at the ceiling.
	assert.Equal(t, maxInterval, sup.interval(ctx))

}

func TestIntervalFloors(t *testing.T) {
	sup, store, _ := testSupervisor(t, room.Config{})
	ctx := context.Background()

	_, err := store.TempoSet(ctx, 1*time.Second)
	require.NoError(t, err)
	assert.Equal(t, minInterval, sup.interval(ctx))
}

func TestBadCronSpecRejected(t *testing.T) {
	_, store, _ := testSupervisor(t, room.Config{})
	_, err := New(Options{Store: store, RotateSpec: "not a cron spec"})
	require.Error(t, err)
	assert.True(t, masc.IsKind(err, masc.KindInvalidArgument))
}

func TestRunStopsOnCancel(t *testing.T) {
	sup, _, _ := testSupervisor(t, room.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}
