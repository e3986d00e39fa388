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
package telemetry

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/masc/pkg/masc"
	"github.com/teradata-labs/masc/pkg/storage/memory"
)

func testRecorder(t *testing.T) (*Recorder, *masc.VirtualClock, *memory.Store) {
	t.Helper()
	clock := masc.NewVirtualClock(time.Unix(1_700_000_000, 0))
	be := memory.New()
	return NewRecorder(be, "main", clock), clock, be
}

func TestRecordAndRead(t *testing.T) {
	r, clock, _ := testRecorder(t)
	ctx := context.Background()

	r.Record(ctx, masc.TelemetryAgentJoined, map[string]interface{}{"agent": "a"})
	clock.Advance(time.Second)
	r.Record(ctx, masc.TelemetryTaskCompleted, map[string]interface{}{"agent": "a", "task": "t1"})
	r.Record(ctx, masc.TelemetryTaskCompleted, map[string]interface{}{"agent": "b", "task": "t2"})

	all, err := r.Read(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, masc.TelemetryAgentJoined, all[0].Kind)

	completed, err := r.Read(ctx, Query{Kinds: []masc.TelemetryKind{masc.TelemetryTaskCompleted}})
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	mine, err := r.Read(ctx, Query{Agent: "b"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "t2", mine[0].Fields["task"])
}

func TestReadSinceAndLimit(t *testing.T) {
	r, clock, _ := testRecorder(t)
	ctx := context.Background()

	r.Record(ctx, masc.TelemetryToolCalled, nil)
	clock.Advance(time.Hour)
	cutoff := clock.NowUnix()
	r.Record(ctx, masc.TelemetryToolCalled, nil)
	r.Record(ctx, masc.TelemetryToolCalled, nil)

	recent, err := r.Read(ctx, Query{Since: cutoff})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	limited, err := r.Read(ctx, Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestReadSkipsCorruptLines(t *testing.T) {
	r, _, be := testRecorder(t)
	ctx := context.Background()

	r.Record(ctx, masc.TelemetryError, nil)
	require.NoError(t, be.Append(ctx, masc.TelemetryKey("main"), "not json"))
	r.Record(ctx, masc.TelemetryError, nil)

	all, err := r.Read(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRotate(t *testing.T) {
	r, clock, be := testRecorder(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		r.Record(ctx, masc.TelemetryToolCalled, map[string]interface{}{"n": i})
	}

	n, err := r.Rotate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	// Live log is empty again.
	after, err := r.Read(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, after)

	// Archive holds the original five lines, gzipped.
	stamp := clock.Now().UTC().Format("20060102")
	blob, err := be.Get(ctx, "rooms/main/archives/telemetry-"+stamp+".jsonl.gz")
	require.NoError(t, err)

	zr, err := gzip.NewReader(bytes.NewReader(blob))
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, 5, bytes.Count(raw, []byte("\n")))

	// Rotating an empty log is a no-op.
	n, err = r.Rotate(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
