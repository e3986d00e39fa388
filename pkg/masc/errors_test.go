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
package masc

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfUnwrapsChain(t *testing.T) {
	base := Conflict("task %s already claimed", "t1")
	wrapped := fmt.Errorf("claim: %w", fmt.Errorf("store: %w", base))

	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindConflict))
	assert.False(t, IsKind(wrapped, KindNotFound))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(fmt.Errorf("boom")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(BackendTransient("redis: connection reset")))
	assert.False(t, Retryable(BackendFatal("schema mismatch")))
	assert.False(t, Retryable(NotFound("no such task")))
}

func TestWithDetail(t *testing.T) {
	err := NotFound("task %q not found", "t9").WithDetail("task_id", "t9")
	assert.Equal(t, "t9", err.Details["task_id"])
	assert.Contains(t, err.Error(), "not_found")
	assert.Contains(t, err.Error(), `"t9"`)
}
