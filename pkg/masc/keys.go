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

import "strings"

// The canonical key schema shared by every backend. The filesystem backend
// maps keys directly onto paths under .masc/; the others treat them as flat
// identifiers. Keys use forward slashes regardless of platform.

// SanitizeKey flattens an arbitrary string into a safe key segment:
// non-alphanumeric runes become '_' and the result is capped at 64 chars.
func SanitizeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}

// RoomKey is the room's own metadata record.
func RoomKey(room string) string { return "rooms/" + room + "/room.json" }

func AgentKey(room, id string) string { return "rooms/" + room + "/agents/" + id + ".json" }

func AgentPrefix(room string) string { return "rooms/" + room + "/agents/" }

func TaskKey(room, id string) string { return "rooms/" + room + "/tasks/" + id + ".json" }

func TaskPrefix(room string) string { return "rooms/" + room + "/tasks/" }

// MessagesKey is the append-only message log.
func MessagesKey(room string) string { return "rooms/" + room + "/messages.jsonl" }

func LockKey(room, path string) string {
	return "rooms/" + room + "/locks/" + SanitizeKey(path) + ".json"
}

func LockPrefix(room string) string { return "rooms/" + room + "/locks/" }

func VoteKey(room, id string) string { return "rooms/" + room + "/votes/" + id + ".json" }

func VotePrefix(room string) string { return "rooms/" + room + "/votes/" }

func PortalKey(room, id string) string { return "rooms/" + room + "/portals/" + id + ".json" }

func PortalPrefix(room string) string { return "rooms/" + room + "/portals/" }

func HandoffKey(room, id string) string { return "rooms/" + room + "/handovers/" + id + ".json" }

func HandoffPrefix(room string) string { return "rooms/" + room + "/handovers/" }

func CheckpointKey(room, taskID, id string) string {
	return "rooms/" + room + "/checkpoints/" + taskID + "/" + id + ".json"
}

func CheckpointPrefix(room, taskID string) string {
	p := "rooms/" + room + "/checkpoints/"
	if taskID != "" {
		p += taskID + "/"
	}
	return p
}

func CacheKey(room, key string) string {
	return "rooms/" + room + "/cache/" + SanitizeKey(key) + ".json"
}

func CachePrefix(room string) string { return "rooms/" + room + "/cache/" }

// TelemetryKey is the append-only telemetry log.
func TelemetryKey(room string) string { return "rooms/" + room + "/telemetry.jsonl" }

// SynapsesKey holds the whole collaboration graph as one record.
func SynapsesKey(room string) string { return "rooms/" + room + "/synapses/graph.json" }

func CreditKey(room, agent string) string { return "rooms/" + room + "/credits/" + agent + ".json" }

func CreditPrefix(room string) string { return "rooms/" + room + "/credits/" }

// SeqKey holds the room's message sequence counter.
func SeqKey(room string) string { return "rooms/" + room + "/seq.json" }

// IDFromKey extracts the final path segment without the .json suffix, the
// inverse of the entity key builders.
func IDFromKey(key string) string {
	idx := strings.LastIndexByte(key, '/')
	seg := key[idx+1:]
	return strings.TrimSuffix(seg, ".json")
}
