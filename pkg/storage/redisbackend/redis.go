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

// Package redisbackend implements the storage backend on Redis, giving
// multiple server processes a shared, linearisable store. Values live in
// plain keys, logs in Redis lists, advisory locks in SET NX tokens with an
// expiry so a dead holder cannot wedge the cluster.
package redisbackend

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/teradata-labs/masc/pkg/masc"
)

const (
	kvPrefix   = "masc:kv:"
	logPrefix  = "masc:log:"
	lockPrefix = "masc:lock:"

	// lockExpiry bounds how long a crashed process can hold a scope lock.
	lockExpiry = 30 * time.Second
)

// releaseScript deletes a lock key only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// Store is a Backend over one Redis connection pool.
type Store struct {
	client *redis.Client
}

// New connects using a redis:// URL.
func New(url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, masc.BackendFatal("parse redis url: %v", err)
	}
	return &Store{client: redis.NewClient(opts)}, nil
}

// NewFromClient wraps an existing client, used by tests with miniature
// servers.
func NewFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, kvPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, masc.NotFound("key %q not found", key)
	}
	if err != nil {
		return nil, masc.BackendTransient("redis get %s: %v", key, err)
	}
	return val, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, kvPrefix+key, value, 0).Err(); err != nil {
		return masc.BackendTransient("redis set %s: %v", key, err)
	}
	return nil
}

// CAS runs a WATCH/MULTI transaction; a concurrent writer aborts the txn,
// which surfaces as a lost comparison rather than an error.
func (s *Store) CAS(ctx context.Context, key string, expected, next []byte) (bool, error) {
	full := kvPrefix + key
	swapped := false

	txn := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, full).Bytes()
		exists := true
		if errors.Is(err, redis.Nil) {
			exists = false
		} else if err != nil {
			return err
		}

		if expected == nil {
			if exists {
				return nil
			}
		} else {
			if !exists || string(current) != string(expected) {
				return nil
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, full, next, 0)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}

	err := s.client.Watch(ctx, txn, full)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, masc.BackendTransient("redis cas %s: %v", key, err)
	}
	return swapped, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, kvPrefix+key).Err(); err != nil {
		return masc.BackendTransient("redis del %s: %v", key, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, kvPrefix+prefix+"*", 512).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), kvPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, masc.BackendTransient("redis scan %s: %v", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Append(ctx context.Context, logKey string, line string) error {
	if err := s.client.RPush(ctx, logPrefix+logKey, line).Err(); err != nil {
		return masc.BackendTransient("redis rpush %s: %v", logKey, err)
	}
	return nil
}

func (s *Store) ReadLog(ctx context.Context, logKey string, fromLine, limit int) ([]string, error) {
	if fromLine < 0 {
		fromLine = 0
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(fromLine + limit - 1)
	}
	lines, err := s.client.LRange(ctx, logPrefix+logKey, int64(fromLine), stop).Result()
	if err != nil {
		return nil, masc.BackendTransient("redis lrange %s: %v", logKey, err)
	}
	return lines, nil
}

// TruncateLog drops the first n entries via LTRIM.
func (s *Store) TruncateLog(ctx context.Context, logKey string, n int) error {
	if err := s.client.LTrim(ctx, logPrefix+logKey, int64(n), -1).Err(); err != nil {
		return masc.BackendTransient("redis ltrim %s: %v", logKey, err)
	}
	return nil
}

// Lock acquires scope with SET NX and a unique token, polling until the
// context expires. Release is token-checked so an expired-then-reacquired
// lock is never deleted by the old holder.
func (s *Store) Lock(ctx context.Context, scope string) (func(), error) {
	key := lockPrefix + scope
	token := uuid.NewString()

	for {
		ok, err := s.client.SetNX(ctx, key, token, lockExpiry).Result()
		if err != nil {
			return nil, masc.BackendTransient("redis lock %s: %v", scope, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, masc.Cancelled("lock %q: %v", scope, ctx.Err())
		case <-time.After(5 * time.Millisecond):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			releaseScript.Run(rctx, s.client, []string{key}, token)
		})
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return masc.BackendTransient("redis ping: %v", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Type identifies this backend in health output.
func (s *Store) Type() string { return "redis" }
