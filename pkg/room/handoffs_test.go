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

func createHandoff(t *testing.T, s *Store, from string) *masc.Handoff {
	t.Helper()
	h, err := s.HandoffCreate(context.Background(), HandoffCreateParams{
		FromAgent:       from,
		TaskID:          "t1",
		Reason:          masc.ReasonContextLimit,
		ContextPct:      0.93,
		Goal:            "Finish the storage migration",
		ProgressSummary: "Schema converted; data copy half done",
		CompletedSteps:  []string{"schema converted"},
		PendingSteps:    []string{"copy remaining rows", "swap aliases"},
		Warnings:        []string{"replica lag above 5s"},
		ModifiedFiles:   []string{"store/migrate.go"},
	})
	require.NoError(t, err)
	return h
}

func TestHandoffLifecycle(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	join(t, s, "alice")
	join(t, s, "bob")
	h := createHandoff(t, s, "alice")
	assert.Equal(t, masc.HandoffPending, h.Status)

	// The creator cannot take its own capsule back.
	_, err := s.HandoffClaim(ctx, h.ID, "alice")
	assert.True(t, masc.IsKind(err, masc.KindConflict))

	claimed, err := s.HandoffClaim(ctx, h.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, masc.HandoffClaimed, claimed.Status)
	assert.Equal(t, "bob", claimed.ToAgent)

	// Exactly one claim wins.
	join(t, s, "carol")
	_, err = s.HandoffClaim(ctx, h.ID, "carol")
	assert.True(t, masc.IsKind(err, masc.KindConflict))

	view, err := s.HandoffGet(ctx, h.ID)
	require.NoError(t, err)
	assert.Contains(t, view.Prompt, "Finish the storage migration")
	assert.Contains(t, view.Prompt, "replica lag above 5s")
	assert.Greater(t, view.Tokens, 0)

	// Only the claimer may ack.
	_, err = s.HandoffAck(ctx, h.ID, "carol", true)
	assert.True(t, masc.IsKind(err, masc.KindForbidden))

	acked, err := s.HandoffAck(ctx, h.ID, "bob", true)
	require.NoError(t, err)
	assert.Equal(t, masc.HandoffConsumed, acked.Status)

	// A successful ack strengthens the alice→bob synapse.
	edge, err := s.Synapses().Neighbors(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, edge, 1)
	assert.Equal(t, "bob", edge[0].To)
	assert.Greater(t, edge[0].Weight, 0.0)

	// Consumed is terminal.
	_, err = s.HandoffAck(ctx, h.ID, "bob", true)
	assert.True(t, masc.IsKind(err, masc.KindConflict))
}

func TestHandoffValidation(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	_, err := s.HandoffCreate(ctx, HandoffCreateParams{FromAgent: "ghost", Reason: masc.ReasonExplicit, Goal: "g"})
	assert.True(t, masc.IsKind(err, masc.KindNotFound))

	join(t, s, "alice")
	_, err = s.HandoffCreate(ctx, HandoffCreateParams{FromAgent: "alice", Reason: "bad", Goal: "g"})
	assert.True(t, masc.IsKind(err, masc.KindInvalidArgument))

	_, err = s.HandoffClaim(ctx, "missing", "alice")
	assert.True(t, masc.IsKind(err, masc.KindNotFound))
}

func TestHandoffListByStatus(t *testing.T) {
	s, clock := testStore(t)
	ctx := context.Background()

	join(t, s, "alice")
	join(t, s, "bob")
	first := createHandoff(t, s, "alice")
	clock.Advance(time.Second) // distinct created_at
	second := createHandoff(t, s, "alice")
	_, err := s.HandoffClaim(ctx, first.ID, "bob")
	require.NoError(t, err)

	pending, err := s.Handoffs(ctx, masc.HandoffPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	all, err := s.Handoffs(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	// Newest first.
	assert.Equal(t, second.ID, all[0].ID)
}
