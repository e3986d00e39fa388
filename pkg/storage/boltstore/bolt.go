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

// Package boltstore implements the storage backend on a single bbolt file.
// bbolt's one-writer transaction model makes CAS and appends trivially
// atomic; the file lock it takes at open keeps a second process out, so
// advisory scope locks only need to serialise goroutines.
package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/teradata-labs/masc/pkg/masc"
)

var (
	bucketKV   = []byte("kv")
	bucketLogs = []byte("logs")
)

// Store is a Backend over one bbolt database file.
type Store struct {
	db *bolt.DB

	lockMu sync.Mutex
	locks  map[string]chan struct{}
}

// Open creates or opens the database file and its root buckets.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, masc.BackendFatal("open bolt %s: %v", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketKV); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketLogs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, masc.BackendFatal("init bolt buckets: %v", err)
	}
	return &Store{db: db, locks: make(map[string]chan struct{})}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketKV).Get([]byte(key))
		if v == nil {
			return masc.NotFound("key %q not found", key)
		}
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	return out, err
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), value)
	})
	if err != nil {
		return masc.BackendTransient("bolt set %s: %v", key, err)
	}
	return nil
}

func (s *Store) CAS(ctx context.Context, key string, expected, next []byte) (bool, error) {
	swapped := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKV)
		current := b.Get([]byte(key))

		if expected == nil {
			if current != nil {
				return nil
			}
		} else {
			if current == nil || !bytes.Equal(current, expected) {
				return nil
			}
		}
		swapped = true
		return b.Put([]byte(key), next)
	})
	if err != nil {
		return false, masc.BackendTransient("bolt cas %s: %v", key, err)
	}
	return swapped, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Delete([]byte(key))
	})
	if err != nil {
		return masc.BackendTransient("bolt delete %s: %v", key, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketKV).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, masc.BackendTransient("bolt list %s: %v", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Append(ctx context.Context, logKey string, line string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		lb, err := tx.Bucket(bucketLogs).CreateBucketIfNotExists([]byte(logKey))
		if err != nil {
			return err
		}
		seq, err := lb.NextSequence()
		if err != nil {
			return err
		}
		var k [8]byte
		binary.BigEndian.PutUint64(k[:], seq)
		return lb.Put(k[:], []byte(line))
	})
	if err != nil {
		return masc.BackendTransient("bolt append %s: %v", logKey, err)
	}
	return nil
}

func (s *Store) ReadLog(ctx context.Context, logKey string, fromLine, limit int) ([]string, error) {
	if fromLine < 0 {
		fromLine = 0
	}
	var lines []string
	err := s.db.View(func(tx *bolt.Tx) error {
		lb := tx.Bucket(bucketLogs).Bucket([]byte(logKey))
		if lb == nil {
			return nil
		}
		c := lb.Cursor()
		i := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if i < fromLine {
				i++
				continue
			}
			if limit > 0 && len(lines) >= limit {
				break
			}
			lines = append(lines, string(v))
			i++
		}
		return nil
	})
	if err != nil {
		return nil, masc.BackendTransient("bolt readlog %s: %v", logKey, err)
	}
	return lines, nil
}

// TruncateLog removes the first n entries of a log.
func (s *Store) TruncateLog(ctx context.Context, logKey string, n int) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		lb := tx.Bucket(bucketLogs).Bucket([]byte(logKey))
		if lb == nil {
			return nil
		}
		c := lb.Cursor()
		removed := 0
		for k, _ := c.First(); k != nil && removed < n; k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return masc.BackendTransient("bolt truncate %s: %v", logKey, err)
	}
	return nil
}

// Lock serialises goroutines on a per-scope semaphore. Cross-process
// exclusion already holds: bbolt locks the database file exclusively.
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
	return s.db.View(func(*bolt.Tx) error { return nil })
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Type identifies this backend in health output.
func (s *Store) Type() string { return "bolt" }
