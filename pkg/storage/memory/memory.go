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

// Package memory implements the storage backend in process memory. It is
// the reference implementation for backend semantics and the default for
// tests and single-process deployments without durability needs.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/teradata-labs/masc/pkg/masc"
)

// Store keeps all state in maps guarded by one RWMutex. Advisory locks are
// per-scope binary semaphores so acquisition can respect context
// cancellation.
type Store struct {
	mu   sync.RWMutex
	kv   map[string][]byte
	logs map[string][]string

	lockMu sync.Mutex
	locks  map[string]chan struct{}

	closed bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		kv:    make(map[string][]byte),
		logs:  make(map[string][]string),
		locks: make(map[string]chan struct{}),
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.kv[key]
	if !ok {
		return nil, masc.NotFound("key %q not found", key)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.kv[key] = cp
	return nil
}

func (s *Store) CAS(ctx context.Context, key string, expected, next []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.kv[key]
	if expected == nil {
		if exists {
			return false, nil
		}
	} else {
		if !exists || !bytes.Equal(current, expected) {
			return false, nil
		}
	}

	cp := make([]byte, len(next))
	copy(cp, next)
	s.kv[key] = cp
	return true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.kv {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Append(ctx context.Context, logKey string, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[logKey] = append(s.logs[logKey], line)
	return nil
}

func (s *Store) ReadLog(ctx context.Context, logKey string, fromLine, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines := s.logs[logKey]
	if fromLine < 0 {
		fromLine = 0
	}
	if fromLine >= len(lines) {
		return nil, nil
	}
	rest := lines[fromLine:]
	if limit > 0 && limit < len(rest) {
		rest = rest[:limit]
	}
	out := make([]string, len(rest))
	copy(out, rest)
	return out, nil
}

// TruncateLog drops the first n lines, used by telemetry rotation.
func (s *Store) TruncateLog(ctx context.Context, logKey string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.logs[logKey]
	if n >= len(lines) {
		delete(s.logs, logKey)
		return nil
	}
	remaining := make([]string, len(lines)-n)
	copy(remaining, lines[n:])
	s.logs[logKey] = remaining
	return nil
}

func (s *Store) Lock(ctx context.Context, scope string) (func(), error) {
	s.lockMu.Lock()
	sem, ok := s.locks[scope]
	if !ok {
		sem = make(chan struct{}, 1)
		s.locks[scope] = sem
	}
	s.lockMu.Unlock()

	select {
	case sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-sem })
		}, nil
	case <-ctx.Done():
		return nil, masc.Cancelled("lock %q: %v", scope, ctx.Err())
	}
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return masc.BackendFatal("memory store closed")
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Type identifies this backend in health output.
func (s *Store) Type() string { return "memory" }
