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
	"fmt"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/teradata-labs/masc/pkg/masc"
	"github.com/teradata-labs/masc/pkg/storage/backend"
)

// Rotate archives the current telemetry log as a gzipped blob under
// rooms/{room}/archives/ and truncates the live log, all under the log's
// advisory lock so concurrent appends land either in the archive or in the
// fresh log, never lost. Returns the number of archived lines.
func (r *Recorder) Rotate(ctx context.Context) (int, error) {
	tr, ok := r.be.(backend.Truncater)
	if !ok {
		return 0, masc.BackendFatal("backend %T cannot truncate logs", r.be)
	}

	logKey := masc.TelemetryKey(r.room)
	unlock, err := r.be.Lock(ctx, "rotate:"+logKey)
	if err != nil {
		return 0, err
	}
	defer unlock()

	lines, err := r.be.ReadLog(ctx, logKey, 0, 0)
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(strings.Join(lines, "\n") + "\n")); err != nil {
		return 0, masc.BackendFatal("compress telemetry archive: %v", err)
	}
	if err := zw.Close(); err != nil {
		return 0, masc.BackendFatal("close telemetry archive: %v", err)
	}

	stamp := r.clock.Now().UTC().Format("20060102")
	archiveKey := fmt.Sprintf("rooms/%s/archives/telemetry-%s.jsonl.gz", r.room, stamp)
	if err := r.be.Set(ctx, archiveKey, buf.Bytes()); err != nil {
		return 0, err
	}
	if err := tr.TruncateLog(ctx, logKey, len(lines)); err != nil {
		return 0, err
	}

	r.logger.Info("rotated telemetry log",
		zap.String("archive", archiveKey),
		zap.Int("lines", len(lines)))
	return len(lines), nil
}
