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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"simple", "simple"},
		{"src/main.ts", "src_main_ts"},
		{"has spaces & symbols!", "has_spaces___symbols_"},
		{"UPPER123", "UPPER123"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeKey(tt.in), tt.in)
	}

	long := strings.Repeat("x", 100)
	assert.Len(t, SanitizeKey(long), 64)
}

func TestKeySchema(t *testing.T) {
	assert.Equal(t, "rooms/main/agents/claude.json", AgentKey("main", "claude"))
	assert.Equal(t, "rooms/main/tasks/t1.json", TaskKey("main", "t1"))
	assert.Equal(t, "rooms/main/messages.jsonl", MessagesKey("main"))
	assert.Equal(t, "rooms/main/locks/src_main_ts.json", LockKey("main", "src/main.ts"))
	assert.Equal(t, "rooms/main/checkpoints/t1/c1.json", CheckpointKey("main", "t1", "c1"))
	assert.True(t, strings.HasPrefix(TaskKey("main", "t1"), TaskPrefix("main")))
	assert.True(t, strings.HasPrefix(CheckpointKey("main", "t1", "c1"), CheckpointPrefix("main", "t1")))
}

func TestIDFromKey(t *testing.T) {
	assert.Equal(t, "claude", IDFromKey(AgentKey("main", "claude")))
	assert.Equal(t, "t1", IDFromKey(TaskKey("main", "t1")))
	assert.Equal(t, "c1", IDFromKey(CheckpointKey("main", "t9", "c1")))
}
