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
package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teradata-labs/masc/pkg/masc"
)

// fastRetry keeps tests instant.
var fastRetry = RetryConfig{Attempts: 3, BaseDelay: 0, MaxDelay: 0}

func TestDoStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry, func() error {
		calls++
		if calls < 2 {
			return masc.BackendTransient("flaky")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoPassesThroughNonTransient(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry, func() error {
		calls++
		return masc.Conflict("cas lost")
	})
	assert.Equal(t, 1, calls, "non-transient errors must not retry")
	assert.True(t, masc.IsKind(err, masc.KindConflict))
}

func TestDoExhaustionBecomesFatal(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry, func() error {
		calls++
		return masc.BackendTransient("still down")
	})
	assert.Equal(t, 3, calls)
	assert.True(t, masc.IsKind(err, masc.KindBackendFatal),
		"exhausted retries surface as backend_fatal, got %v", err)
}

func TestDoRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, RetryConfig{Attempts: 3, BaseDelay: 1}, func() error {
		return masc.BackendTransient("down")
	})
	assert.True(t, masc.IsKind(err, masc.KindCancelled))
}

func TestValidateLine(t *testing.T) {
	assert.NoError(t, ValidateLine(`{"ok":true}`))
	assert.Error(t, ValidateLine("two\nlines"))
}
