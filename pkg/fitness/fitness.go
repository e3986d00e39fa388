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

// Package fitness scores agents from telemetry and selects among them.
// Scoring is a pure function over aggregated metrics; every component is
// clamped to [0,1] and guarded against NaN/Inf, so the final score is
// always in [0,1]. An agent with no history scores the neutral 0.5.
package fitness

import (
	"math"
	"strconv"
	"time"

	"github.com/teradata-labs/masc/pkg/masc"
)

// Weights blend the five score components. They should sum to 1.
type Weights struct {
	Completion     float64
	Reliability    float64
	Speed          float64
	HandoffSuccess float64
	Collaboration  float64
}

// DefaultWeights is the shipped blend.
func DefaultWeights() Weights {
	return Weights{
		Completion:     0.35,
		Reliability:    0.25,
		Speed:          0.15,
		HandoffSuccess: 0.15,
		Collaboration:  0.10,
	}
}

// TargetDuration is the task duration that earns a full speed component.
const TargetDuration = 60 * time.Second

// NeutralScore is assigned to agents without metrics.
const NeutralScore = 0.5

// Metrics is the decayed per-agent aggregate the score is computed from.
// Counts are fractional because each contributing event is weighted by
// recency before summing.
type Metrics struct {
	AgentID string

	TasksTotal     float64
	TasksCompleted float64

	Calls  float64
	Errors float64

	// DurationSum/DurationN give the decayed mean task duration in seconds.
	DurationSum float64
	DurationN   float64

	HandoffsTotal float64
	HandoffsAcked float64

	Collaborators map[string]struct{}
}

// Score computes the weighted fitness in [0,1]. A nil or empty Metrics
// yields NeutralScore.
func Score(m *Metrics, w Weights) float64 {
	if m == nil || (m.TasksTotal == 0 && m.Calls == 0 && m.HandoffsTotal == 0) {
		return NeutralScore
	}

	completion := component(m.TasksCompleted, m.TasksTotal)
	reliability := 1 - component(m.Errors, m.Calls)

	speed := NeutralScore
	if m.DurationN > 0 {
		avg := m.DurationSum / m.DurationN
		if avg > 0 {
			speed = clamp01(TargetDuration.Seconds() / avg)
		} else {
			speed = 1
		}
	}

	handoff := NeutralScore
	if m.HandoffsTotal > 0 {
		handoff = component(m.HandoffsAcked, m.HandoffsTotal)
	}

	collab := clamp01(float64(len(m.Collaborators)) / 5)

	total := w.Completion*completion +
		w.Reliability*reliability +
		w.Speed*speed +
		w.HandoffSuccess*handoff +
		w.Collaboration*collab

	wsum := w.Completion + w.Reliability + w.Speed + w.HandoffSuccess + w.Collaboration
	if wsum <= 0 {
		return NeutralScore
	}
	return clamp01(total / wsum)
}

// component is a guarded ratio: NaN, Inf and zero denominators all resolve
// to the neutral 0.5 rather than poisoning the sum.
func component(num, den float64) float64 {
	if den <= 0 || math.IsNaN(num) || math.IsInf(num, 0) ||
		math.IsNaN(den) || math.IsInf(den, 0) {
		return NeutralScore
	}
	return clamp01(num / den)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return NeutralScore
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// AggregateConfig bounds the telemetry window feeding the metrics.
type AggregateConfig struct {
	// Window drops events older than this; default 7 days.
	Window time.Duration
	// HalfLife of the exponential recency decay; default 7 days.
	HalfLife time.Duration
}

func (c AggregateConfig) withDefaults() AggregateConfig {
	if c.Window <= 0 {
		c.Window = 7 * 24 * time.Hour
	}
	if c.HalfLife <= 0 {
		c.HalfLife = 7 * 24 * time.Hour
	}
	return c
}

// handoffAgg pairs a capsule's creation and ack events so the handoff
// ratio is weighted once per capsule, at the age of its latest event.
// Weighting the ack at its own age while the total kept the older
// creation weight let decay push acked above total.
type handoffAgg struct {
	from          string
	createdWeight float64
	acked         bool
	ackWeight     float64
	success       bool
}

// Aggregate folds telemetry events into per-agent metrics. Events outside
// the window are ignored; the rest contribute with weight 0.5^(age/half).
func Aggregate(events []masc.TelemetryEvent, now float64, cfg AggregateConfig) map[string]*Metrics {
	cfg = cfg.withDefaults()
	out := make(map[string]*Metrics)
	handoffs := make(map[string]*handoffAgg)

	get := func(agent string) *Metrics {
		if agent == "" {
			return nil
		}
		m, ok := out[agent]
		if !ok {
			m = &Metrics{AgentID: agent, Collaborators: make(map[string]struct{})}
			out[agent] = m
		}
		return m
	}

	for _, ev := range events {
		age := now - ev.Timestamp
		if age < 0 {
			age = 0
		}
		if age > cfg.Window.Seconds() {
			continue
		}
		weight := math.Exp2(-age / cfg.HalfLife.Seconds())

		switch ev.Kind {
		case masc.TelemetryTaskStarted:
			if m := get(str(ev.Fields, "agent")); m != nil {
				m.TasksTotal += weight
			}

		case masc.TelemetryTaskCompleted:
			if m := get(str(ev.Fields, "agent")); m != nil {
				m.TasksCompleted += weight
				if d, ok := ev.Fields["duration_s"].(float64); ok && d >= 0 &&
					!math.IsNaN(d) && !math.IsInf(d, 0) {
					m.DurationSum += d * weight
					m.DurationN += weight
				}
			}

		case masc.TelemetryToolCalled:
			if m := get(str(ev.Fields, "agent")); m != nil {
				m.Calls += weight
				if ok, has := ev.Fields["success"].(bool); has && !ok {
					m.Errors += weight
				}
			}

		case masc.TelemetryError:
			if m := get(str(ev.Fields, "agent")); m != nil {
				m.Errors += weight
				m.Calls += weight
			}

		case masc.TelemetryHandoffTriggered:
			from := str(ev.Fields, "from_agent")
			to := str(ev.Fields, "to_agent")
			acked, _ := ev.Fields["acked"].(bool)
			if from != "" {
				id := str(ev.Fields, "handoff")
				if id == "" {
					id = from + "/" + strconv.FormatFloat(ev.Timestamp, 'f', -1, 64)
				}
				h, ok := handoffs[id]
				if !ok {
					h = &handoffAgg{from: from}
					handoffs[id] = h
				}
				if acked {
					h.acked = true
					h.ackWeight = weight
					h.success, _ = ev.Fields["success"].(bool)
				} else {
					h.createdWeight = weight
				}
			}
			if m := get(from); m != nil && to != "" {
				m.Collaborators[to] = struct{}{}
			}
			if m := get(to); m != nil && from != "" {
				m.Collaborators[from] = struct{}{}
			}
		}
	}

	for _, h := range handoffs {
		m := get(h.from)
		if m == nil {
			continue
		}
		if h.acked {
			m.HandoffsTotal += h.ackWeight
			if h.success {
				m.HandoffsAcked += h.ackWeight
			}
		} else {
			m.HandoffsTotal += h.createdWeight
		}
	}
	return out
}

func str(fields map[string]interface{}, key string) string {
	s, _ := fields[key].(string)
	return s
}
