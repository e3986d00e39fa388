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

// Package backend defines the Backend capability interface the coordination
// kernel persists through, and the factory that selects an implementation.
// The kernel never touches a concrete store directly; every invariant is
// enforced above this interface, every durability guarantee below it.
package backend

import (
	"context"
)

// Backend is the minimal capability set the Room Store needs. One Backend
// per server; all rooms share it. Implementations: memory, fsbackend,
// redisbackend, sqlstore (sqlite/postgres/mysql), boltstore.
//
// Required guarantees:
//   - each primitive is atomic as observed by concurrent callers in one
//     process;
//   - CAS is linearisable within a single backend instance;
//   - Append is atomic at line granularity.
//
// Redis and the relational dialects additionally coordinate across
// processes sharing the same store.
type Backend interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value at key unconditionally.
	Set(ctx context.Context, key string, value []byte) error

	// CAS writes next only if the current value equals expected. A nil
	// expected means "create if absent". Returns false (and no error) when
	// the comparison fails.
	CAS(ctx context.Context, key string, expected, next []byte) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys under prefix, sorted ascending.
	List(ctx context.Context, prefix string) ([]string, error)

	// Append atomically adds one line to the log at logKey. The line must
	// not contain a newline.
	Append(ctx context.Context, logKey string, line string) error

	// ReadLog returns up to limit lines starting at fromLine (0-based).
	// limit <= 0 means no bound.
	ReadLog(ctx context.Context, logKey string, fromLine, limit int) ([]string, error)

	// Lock acquires the advisory lock for scope and returns its release
	// function. Locks are not re-entrant; a second acquisition in the same
	// goroutine deadlocks or blocks until release.
	Lock(ctx context.Context, scope string) (func(), error)

	// Ping verifies the backend is reachable and healthy.
	Ping(ctx context.Context) error

	// Close releases all underlying resources.
	Close() error
}

// Truncater is an optional interface for log rotation: implementations
// that can atomically swap a log's contents expose it so telemetry
// rotation does not have to delete-and-recreate.
type Truncater interface {
	// TruncateLog removes the first n lines from the log at logKey.
	TruncateLog(ctx context.Context, logKey string, n int) error
}

// Typer is implemented by all backends for health/status reporting.
type Typer interface {
	// Type returns the factory name of the backend ("memory", "fs", ...).
	Type() string
}
