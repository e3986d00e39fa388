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
package bus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, sub *Subscription, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out after %d/%d events", len(out), n)
		}
	}
	return out
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New(DefaultOptions())
	defer b.Close()

	sub, err := b.Subscribe("s1", SubscribeOptions{SinceSeq: -1})
	require.NoError(t, err)

	b.Publish(Event{Seq: 1, Kind: "message", Room: "main"})
	b.Publish(Event{Seq: 2, Kind: "agent_joined", Room: "main"})

	evs := collect(t, sub, 2)
	assert.Equal(t, int64(1), evs[0].Seq)
	assert.Equal(t, "message", evs[0].Kind)
	assert.Equal(t, int64(2), evs[1].Seq)
}

func TestReplayFromSeq(t *testing.T) {
	b := New(DefaultOptions())
	defer b.Close()

	for i := int64(1); i <= 5; i++ {
		b.Publish(Event{Seq: i, Kind: "message", Room: "main"})
	}

	// Reconnect with Last-Event-ID: 3; events 4 and 5 replay.
	sub, err := b.Subscribe("s1", SubscribeOptions{SinceSeq: 3})
	require.NoError(t, err)

	evs := collect(t, sub, 2)
	assert.Equal(t, int64(4), evs[0].Seq)
	assert.Equal(t, int64(5), evs[1].Seq)

	b.Publish(Event{Seq: 6, Kind: "message", Room: "main"})
	evs = collect(t, sub, 1)
	assert.Equal(t, int64(6), evs[0].Seq)
}

func TestResumeGapBelowFloor(t *testing.T) {
	b := New(Options{RetainedCapacity: 4, SubscriberCapacity: 16})
	defer b.Close()

	// Publish 10 events into a 4-slot window: floor is seq 7.
	for i := int64(1); i <= 10; i++ {
		b.Publish(Event{Seq: i, Kind: "message"})
	}

	sub, err := b.Subscribe("s1", SubscribeOptions{SinceSeq: 2})
	require.NoError(t, err)

	evs := collect(t, sub, 5)
	require.Equal(t, KindResumeGap, evs[0].Kind)

	var gap map[string]int64
	require.NoError(t, json.Unmarshal(evs[0].Data, &gap))
	assert.Equal(t, int64(7), gap["floor"])
	assert.Equal(t, int64(2), gap["requested"])

	for i, ev := range evs[1:] {
		assert.Equal(t, int64(7+i), ev.Seq)
	}
}

func TestRoomAndKindFilters(t *testing.T) {
	b := New(DefaultOptions())
	defer b.Close()

	sub, err := b.Subscribe("s1", SubscribeOptions{
		Room:     "main",
		Kinds:    []string{"message"},
		SinceSeq: -1,
	})
	require.NoError(t, err)

	b.Publish(Event{Seq: 1, Kind: "message", Room: "other"})
	b.Publish(Event{Seq: 2, Kind: "agent_joined", Room: "main"})
	b.Publish(Event{Seq: 3, Kind: "message", Room: "main"})

	evs := collect(t, sub, 1)
	assert.Equal(t, int64(3), evs[0].Seq)
}

func TestSlowSubscriberLags(t *testing.T) {
	b := New(Options{RetainedCapacity: 1024, SubscriberCapacity: 4})
	defer b.Close()

	sub, err := b.Subscribe("slow", SubscribeOptions{SinceSeq: -1})
	require.NoError(t, err)

	// Give the ring no chance to drain: its own channel buffer plus the
	// 4-slot ring cannot hold 64 events.
	for i := int64(1); i <= 64; i++ {
		b.Publish(Event{Seq: i, Kind: "message"})
	}

	sawLag := false
	deadline := time.After(2 * time.Second)
	for !sawLag {
		select {
		case ev, ok := <-sub.Events():
			require.True(t, ok, "stream closed before lag event")
			if ev.Kind == KindLag {
				sawLag = true
			}
		case <-deadline:
			t.Fatal("no lag event observed")
		}
	}
}

func TestCloseEmitsShutdown(t *testing.T) {
	b := New(DefaultOptions())
	sub, err := b.Subscribe("s1", SubscribeOptions{SinceSeq: -1})
	require.NoError(t, err)

	b.Close()

	var last Event
	for ev := range sub.Events() {
		last = ev
	}
	assert.Equal(t, KindShutdown, last.Kind)
}

func TestUnsubscribeClosesStream(t *testing.T) {
	b := New(DefaultOptions())
	defer b.Close()

	sub, err := b.Subscribe("s1", SubscribeOptions{SinceSeq: -1})
	require.NoError(t, err)
	b.Unsubscribe("s1")

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close")
	}
}
