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
package fitness

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/masc/pkg/masc"
)

func TestScoreNeutralWithoutMetrics(t *testing.T) {
	assert.Equal(t, NeutralScore, Score(nil, DefaultWeights()))
	assert.Equal(t, NeutralScore, Score(&Metrics{AgentID: "a"}, DefaultWeights()))
}

func TestScoreBounds(t *testing.T) {
	cases := []*Metrics{
		{TasksTotal: 10, TasksCompleted: 10, Calls: 100, DurationSum: 50, DurationN: 10,
			HandoffsTotal: 4, HandoffsAcked: 4,
			Collaborators: map[string]struct{}{"b": {}, "c": {}, "d": {}, "e": {}, "f": {}, "g": {}}},
		{TasksTotal: 10, TasksCompleted: 0, Calls: 10, Errors: 10, DurationSum: 1e9, DurationN: 1},
		{TasksTotal: math.Inf(1), TasksCompleted: math.NaN(), Calls: 1},
		{TasksTotal: 1, TasksCompleted: 1, DurationSum: math.Inf(1), DurationN: 1},
		{TasksTotal: 1, Errors: math.NaN(), Calls: math.NaN()},
	}
	for i, m := range cases {
		s := Score(m, DefaultWeights())
		assert.False(t, math.IsNaN(s), "case %d produced NaN", i)
		assert.GreaterOrEqual(t, s, 0.0, "case %d", i)
		assert.LessOrEqual(t, s, 1.0, "case %d", i)
	}
}

func TestScoreOrdersByPerformance(t *testing.T) {
	strong := &Metrics{TasksTotal: 10, TasksCompleted: 10, Calls: 50, Errors: 1,
		DurationSum: 300, DurationN: 10}
	weak := &Metrics{TasksTotal: 10, TasksCompleted: 2, Calls: 50, Errors: 30,
		DurationSum: 5000, DurationN: 10}
	assert.Greater(t, Score(strong, DefaultWeights()), Score(weak, DefaultWeights()))
}

func TestAggregateCountsAndDecay(t *testing.T) {
	now := float64(1_700_000_000)
	day := 24 * time.Hour.Seconds()

	events := []masc.TelemetryEvent{
		{Timestamp: now - 10, Kind: masc.TelemetryTaskStarted, Fields: map[string]interface{}{"agent": "a"}},
		{Timestamp: now - 5, Kind: masc.TelemetryTaskCompleted, Fields: map[string]interface{}{"agent": "a", "duration_s": 30.0}},
		// A completion exactly one half-life old counts half.
		{Timestamp: now - 7*day, Kind: masc.TelemetryTaskStarted, Fields: map[string]interface{}{"agent": "a"}},
		// Outside the 7-day window entirely.
		{Timestamp: now - 30*day, Kind: masc.TelemetryTaskStarted, Fields: map[string]interface{}{"agent": "a"}},
		{Timestamp: now - 1, Kind: masc.TelemetryToolCalled, Fields: map[string]interface{}{"agent": "b", "success": false}},
	}

	ms := Aggregate(events, now, AggregateConfig{})
	require.Contains(t, ms, "a")
	require.Contains(t, ms, "b")

	// Fresh start (≈1.0) + half-life-old start (≈0.5); 30-day-old dropped.
	assert.InDelta(t, 1.5, ms["a"].TasksTotal, 0.01)
	assert.InDelta(t, 1.0, ms["a"].TasksCompleted, 0.01)
	assert.InDelta(t, 30.0, ms["a"].DurationSum/ms["a"].DurationN, 0.01)

	assert.InDelta(t, 1.0, ms["b"].Calls, 0.01)
	assert.InDelta(t, 1.0, ms["b"].Errors, 0.01)
}

func TestAggregateHandoffs(t *testing.T) {
	now := float64(1_700_000_000)
	events := []masc.TelemetryEvent{
		{Timestamp: now, Kind: masc.TelemetryHandoffTriggered,
			Fields: map[string]interface{}{"from_agent": "a", "handoff": "h1"}},
		{Timestamp: now, Kind: masc.TelemetryHandoffTriggered,
			Fields: map[string]interface{}{"from_agent": "a", "to_agent": "b", "handoff": "h1", "acked": true, "success": true}},
	}
	ms := Aggregate(events, now, AggregateConfig{})
	require.Contains(t, ms, "a")
	assert.InDelta(t, 1.0, ms["a"].HandoffsTotal, 0.01)
	assert.InDelta(t, 1.0, ms["a"].HandoffsAcked, 0.01)
	assert.Contains(t, ms["a"].Collaborators, "b")
	assert.Contains(t, ms["b"].Collaborators, "a")
}

func TestAggregateHandoffDecaySymmetry(t *testing.T) {
	now := float64(1_700_000_000)
	day := 24 * time.Hour.Seconds()

	// h1 was created a half-life ago and acked just now; h2 is the same
	// age and was never acked.
	events := []masc.TelemetryEvent{
		{Timestamp: now - 7*day, Kind: masc.TelemetryHandoffTriggered,
			Fields: map[string]interface{}{"from_agent": "a", "handoff": "h1"}},
		{Timestamp: now, Kind: masc.TelemetryHandoffTriggered,
			Fields: map[string]interface{}{"from_agent": "a", "to_agent": "b", "handoff": "h1", "acked": true, "success": true}},
		{Timestamp: now - 7*day, Kind: masc.TelemetryHandoffTriggered,
			Fields: map[string]interface{}{"from_agent": "a", "handoff": "h2"}},
	}
	ms := Aggregate(events, now, AggregateConfig{})
	require.Contains(t, ms, "a")

	// The acked capsule counts once, at the ack's weight, in both the
	// numerator and the denominator; the ratio can never exceed 1.
	assert.InDelta(t, 1.5, ms["a"].HandoffsTotal, 0.01)
	assert.InDelta(t, 1.0, ms["a"].HandoffsAcked, 0.01)
	assert.LessOrEqual(t, ms["a"].HandoffsAcked, ms["a"].HandoffsTotal)
}

func TestSelectRoulettePrefersHighScores(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cands := []Candidate{
		{AgentID: "strong", Score: 0.9},
		{AgentID: "weak", Score: 0.1},
	}
	counts := map[string]int{}
	for i := 0; i < 2000; i++ {
		counts[Select(rng, Roulette, cands, nil, 0)]++
	}
	assert.Greater(t, counts["strong"], counts["weak"]*3)
	assert.Greater(t, counts["weak"], 0)
}

func TestSelectElite(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cands := []Candidate{
		{AgentID: "a", Score: 0.9},
		{AgentID: "b", Score: 0.8},
		{AgentID: "c", Score: 0.01},
	}
	for i := 0; i < 500; i++ {
		got := Select(rng, Elite, cands, nil, 2)
		assert.NotEqual(t, "c", got)
	}
}

func TestSelectCapabilityFirst(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cands := []Candidate{
		{AgentID: "go-dev", Score: 0.2, Capabilities: []string{"go", "sql"}},
		{AgentID: "ts-dev", Score: 0.9, Capabilities: []string{"ts"}},
	}
	for i := 0; i < 100; i++ {
		assert.Equal(t, "go-dev", Select(rng, CapabilityFirst, cands, []string{"go"}, 0))
	}
	assert.Empty(t, Select(rng, CapabilityFirst, cands, []string{"rust"}, 0))
}

func TestSelectEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Empty(t, Select(rng, Roulette, nil, nil, 0))
	assert.Empty(t, Select(rng, Random, nil, nil, 0))
}

func TestSelectZeroScoresUniform(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	cands := []Candidate{{AgentID: "a"}, {AgentID: "b"}}
	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		counts[Select(rng, Roulette, cands, nil, 0)]++
	}
	assert.Greater(t, counts["a"], 300)
	assert.Greater(t, counts["b"], 300)
}
