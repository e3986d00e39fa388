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

// Package fsbackend implements the storage backend on a local directory
// tree (by convention .masc/). Keys map directly to file paths; JSON writes
// are tempfile+rename atomic; compare-and-set and appends take an advisory
// flock on a sidecar .lock file so multiple processes sharing the directory
// stay consistent.
package fsbackend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/teradata-labs/masc/pkg/masc"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// Store persists every key under root. The in-process mutex table serialises
// goroutines sharing this Store; the flock sidecars serialise processes.
type Store struct {
	root string

	lockMu sync.Mutex
	locks  map[string]chan struct{}
}

// New creates the root directory (owner-only) if needed and returns a store.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, masc.InvalidArgument("fs backend requires a root directory")
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, masc.BackendFatal("create root %s: %v", root, err)
	}
	return &Store{
		root:  root,
		locks: make(map[string]chan struct{}),
	}, nil
}

// Root returns the backing directory.
func (s *Store) Root() string { return s.root }

func (s *Store) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, masc.NotFound("key %q not found", key)
	}
	if err != nil {
		return nil, masc.BackendTransient("read %s: %v", key, err)
	}
	return data, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.writeAtomic(key, value)
}

// writeAtomic writes value to a temp file in the destination directory and
// renames it into place.
func (s *Store) writeAtomic(key string, value []byte) error {
	dst := s.path(key)
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return masc.BackendFatal("mkdir %s: %v", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return masc.BackendTransient("tempfile for %s: %v", key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return masc.BackendTransient("chmod %s: %v", key, err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return masc.BackendTransient("write %s: %v", key, err)
	}
	if err := tmp.Close(); err != nil {
		return masc.BackendTransient("close %s: %v", key, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return masc.BackendTransient("rename %s: %v", key, err)
	}
	return nil
}

func (s *Store) CAS(ctx context.Context, key string, expected, next []byte) (bool, error) {
	release, err := s.flock(ctx, key)
	if err != nil {
		return false, err
	}
	defer release()

	current, err := os.ReadFile(s.path(key))
	exists := true
	if errors.Is(err, fs.ErrNotExist) {
		exists = false
	} else if err != nil {
		return false, masc.BackendTransient("read %s: %v", key, err)
	}

	if expected == nil {
		if exists {
			return false, nil
		}
	} else {
		if !exists || !bytes.Equal(current, expected) {
			return false, nil
		}
	}

	if err := s.writeAtomic(key, next); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return masc.BackendTransient("delete %s: %v", key, err)
	}
	os.Remove(s.path(key) + ".lock")
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	// The prefix may end mid-segment; walk the deepest existing directory
	// and filter.
	dir := s.path(prefix)
	if !strings.HasSuffix(prefix, "/") {
		dir = filepath.Dir(dir)
	}

	var keys []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, ".lock") || strings.HasPrefix(name, ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, masc.BackendTransient("list %s: %v", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Append(ctx context.Context, logKey string, line string) error {
	release, err := s.flock(ctx, logKey)
	if err != nil {
		return err
	}
	defer release()

	dst := s.path(logKey)
	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return masc.BackendFatal("mkdir for %s: %v", logKey, err)
	}
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm)
	if err != nil {
		return masc.BackendTransient("open %s: %v", logKey, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, line); err != nil {
		return masc.BackendTransient("append %s: %v", logKey, err)
	}
	return nil
}

func (s *Store) ReadLog(ctx context.Context, logKey string, fromLine, limit int) ([]string, error) {
	data, err := os.ReadFile(s.path(logKey))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, masc.BackendTransient("read %s: %v", logKey, err)
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
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
	return rest, nil
}

// TruncateLog removes the first n lines under the log's flock, keeping the
// rewrite atomic for concurrent appenders.
func (s *Store) TruncateLog(ctx context.Context, logKey string, n int) error {
	release, err := s.flock(ctx, logKey)
	if err != nil {
		return err
	}
	defer release()

	lines, err := s.ReadLog(ctx, logKey, n, 0)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return s.writeAtomic(logKey, buf.Bytes())
}

// Lock serialises a named scope: first against goroutines in this process,
// then against other processes via the sidecar flock.
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
	case <-ctx.Done():
		return nil, masc.Cancelled("lock %q: %v", scope, ctx.Err())
	}

	releaseFlock, err := s.flock(ctx, "scopes/"+masc.SanitizeKey(scope))
	if err != nil {
		<-sem
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseFlock()
			<-sem
		})
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if _, err := os.Stat(s.root); err != nil {
		return masc.BackendFatal("root %s: %v", s.root, err)
	}
	return nil
}

func (s *Store) Close() error { return nil }

// Type identifies this backend in health output.
func (s *Store) Type() string { return "fs" }
