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
package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeResolution(t *testing.T) {
	modes := BuiltinModes()

	all := modes.Categories("default")
	for _, c := range AllCategories() {
		assert.True(t, all[c], c)
	}

	minimal := modes.Categories("minimal")
	assert.True(t, minimal[CategoryCore])
	assert.False(t, minimal[CategoryVoting])

	// Unknown mode falls back to everything enabled.
	unknown := modes.Categories("no-such-mode")
	assert.True(t, unknown[CategoryVoting])
}

func TestLoadModesOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modes.yaml")
	yaml := "review:\n  - core\n  - interrupt\nminimal:\n  - core\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	modes, err := LoadModes(path)
	require.NoError(t, err)

	review := modes.Categories("review")
	assert.True(t, review[CategoryInterrupt])
	assert.False(t, review[CategoryComm])

	// Custom preset replaces the builtin of the same name.
	assert.Equal(t, []string{"core"}, modes["minimal"])

	// Missing file keeps the builtins.
	modes, err = LoadModes(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Contains(t, modes.Names(), "observer")
}

func TestRoomFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	rf, err := LoadRoomFile(path)
	require.NoError(t, err)
	assert.Empty(t, rf.Mode)

	rf.Mode = "focus"
	rf.Modes = Modes{"custom": {CategoryCore}}
	require.NoError(t, SaveRoomFile(path, rf))

	got, err := LoadRoomFile(path)
	require.NoError(t, err)
	assert.Equal(t, "focus", got.Mode)
	assert.Equal(t, []string{CategoryCore}, got.Modes["custom"])
}

func TestWatchRoomFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, SaveRoomFile(path, &RoomFile{Mode: "default"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *RoomFile, 4)
	require.NoError(t, WatchRoomFile(ctx, path, func(rf *RoomFile) {
		changes <- rf
	}))

	require.NoError(t, SaveRoomFile(path, &RoomFile{Mode: "minimal"}))

	select {
	case rf := <-changes:
		assert.Equal(t, "minimal", rf.Mode)
	case <-time.After(5 * time.Second):
		t.Fatal("no change observed")
	}
}
