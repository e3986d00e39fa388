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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Tool categories, in the order they are listed by masc_status.
const (
	CategoryCore      = "core"
	CategoryComm      = "comm"
	CategoryVoting    = "voting"
	CategoryPortal    = "portal"
	CategoryCellular  = "cellular"
	CategoryInterrupt = "interrupt"
	CategoryCache     = "cache"
	CategoryTempo     = "tempo"
	CategoryHealth    = "health"
	CategoryDiscovery = "discovery"
	CategoryCost      = "cost"
	CategoryDashboard = "dashboard"
)

// AllCategories returns every known tool category.
func AllCategories() []string {
	return []string{
		CategoryCore, CategoryComm, CategoryVoting, CategoryPortal,
		CategoryCellular, CategoryInterrupt, CategoryCache, CategoryTempo,
		CategoryHealth, CategoryDiscovery, CategoryCost, CategoryDashboard,
	}
}

// Modes maps a mode name to the tool categories it enables. The "default"
// mode always exists and enables everything; modes.yaml presets and the
// modes block of config.json are overlaid on the builtins.
type Modes map[string][]string

// BuiltinModes returns the preset modes shipped with the server. Narrower
// modes trade tool breadth for prompt-token economy.
func BuiltinModes() Modes {
	return Modes{
		"default": AllCategories(),
		// Enough to join, work tasks and talk. For swarms of small agents.
		"minimal": {CategoryCore, CategoryComm, CategoryHealth},
		// Read-mostly surface for monitoring agents.
		"observer": {CategoryHealth, CategoryDiscovery, CategoryCost, CategoryDashboard},
		// Full coordination minus the cost and dashboard extras.
		"focus": {
			CategoryCore, CategoryComm, CategoryVoting, CategoryPortal,
			CategoryCellular, CategoryInterrupt, CategoryCache, CategoryHealth,
		},
	}
}

// Categories resolves a mode name to its enabled category set. Unknown
// modes resolve to the default (all categories), never to an empty
// surface.
func (m Modes) Categories(mode string) map[string]bool {
	cats, ok := m[mode]
	if !ok {
		cats = AllCategories()
	}
	set := make(map[string]bool, len(cats))
	for _, c := range cats {
		set[c] = true
	}
	return set
}

// Names returns the defined mode names, sorted.
func (m Modes) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadModes merges the optional modes.yaml presets over the builtins. The
// file maps mode names to category lists:
//
//	review:
//	  - core
//	  - comm
//	  - interrupt
func LoadModes(path string) (Modes, error) {
	modes := BuiltinModes()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return modes, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var custom Modes
	if err := yaml.Unmarshal(data, &custom); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for name, cats := range custom {
		modes[name] = cats
	}
	return modes, nil
}

// RoomFile is the persisted room configuration at .masc/config.json. It
// survives restarts and is watched for live mode switches.
type RoomFile struct {
	Mode  string `json:"mode"`
	Modes Modes  `json:"modes,omitempty"`
}

// LoadRoomFile reads .masc/config.json. A missing file yields the zero
// value, not an error.
func LoadRoomFile(path string) (*RoomFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &RoomFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var rf RoomFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &rf, nil
}

// SaveRoomFile writes .masc/config.json atomically.
func SaveRoomFile(path string, rf *RoomFile) error {
	data, err := json.MarshalIndent(rf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal room config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write room config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace room config: %w", err)
	}
	return nil
}
