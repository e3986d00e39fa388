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

// Package telemetry records the room's append-only event log and serves
// the reads that the fitness and Hebbian subsystems aggregate over.
// Recording is best-effort: a telemetry failure never fails the operation
// that produced it.
package telemetry

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/teradata-labs/masc/internal/log"
	"github.com/teradata-labs/masc/pkg/masc"
	"github.com/teradata-labs/masc/pkg/storage/backend"
)

// Recorder appends telemetry events for one room.
type Recorder struct {
	be     backend.Backend
	room   string
	clock  masc.Clock
	logger *zap.Logger
}

// NewRecorder builds a recorder writing to the room's telemetry log.
func NewRecorder(be backend.Backend, room string, clock masc.Clock) *Recorder {
	return &Recorder{
		be:     be,
		room:   room,
		clock:  clock,
		logger: log.Named("telemetry"),
	}
}

// Record appends one event. Failures are logged and swallowed; telemetry
// must never fail the operation being recorded.
func (r *Recorder) Record(ctx context.Context, kind masc.TelemetryKind, fields map[string]interface{}) {
	ev := masc.TelemetryEvent{
		Timestamp: r.clock.NowUnix(),
		Kind:      kind,
		Fields:    fields,
	}
	line, err := json.Marshal(ev)
	if err != nil {
		r.logger.Warn("marshal telemetry event", zap.Error(err))
		return
	}
	if err := r.be.Append(ctx, masc.TelemetryKey(r.room), string(line)); err != nil {
		r.logger.Warn("append telemetry event",
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

// Error records an error event with the failing operation and kind.
func (r *Recorder) Error(ctx context.Context, op string, err error) {
	r.Record(ctx, masc.TelemetryError, map[string]interface{}{
		"op":    op,
		"kind":  string(masc.KindOf(err)),
		"error": err.Error(),
	})
}

// ToolCalled records one dispatcher invocation.
func (r *Recorder) ToolCalled(ctx context.Context, tool, agent string, success bool, durationMS float64) {
	r.Record(ctx, masc.TelemetryToolCalled, map[string]interface{}{
		"tool":        tool,
		"agent":       agent,
		"success":     success,
		"duration_ms": durationMS,
	})
}

// Query filters a read of the log.
type Query struct {
	// Kinds restricts results to the listed kinds; empty means all.
	Kinds []masc.TelemetryKind
	// Since drops events with Timestamp < Since; 0 means no bound.
	Since float64
	// Agent restricts to events whose "agent" field matches; empty means all.
	Agent string
	// Limit bounds the result count; <= 0 means no bound.
	Limit int
}

// Read returns matching events, oldest first. Unparseable lines are
// skipped, not fatal: a rotated or hand-edited log should not poison
// the aggregates.
func (r *Recorder) Read(ctx context.Context, q Query) ([]masc.TelemetryEvent, error) {
	lines, err := r.be.ReadLog(ctx, masc.TelemetryKey(r.room), 0, 0)
	if err != nil {
		return nil, err
	}

	kinds := make(map[masc.TelemetryKind]struct{}, len(q.Kinds))
	for _, k := range q.Kinds {
		kinds[k] = struct{}{}
	}

	var out []masc.TelemetryEvent
	for _, line := range lines {
		var ev masc.TelemetryEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if q.Since > 0 && ev.Timestamp < q.Since {
			continue
		}
		if len(kinds) > 0 {
			if _, ok := kinds[ev.Kind]; !ok {
				continue
			}
		}
		if q.Agent != "" {
			if a, _ := ev.Fields["agent"].(string); a != q.Agent {
				continue
			}
		}
		out = append(out, ev)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}
