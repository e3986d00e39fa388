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
package room

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/masc/pkg/masc"
)

// Cache values are sealed at rest when encryption is enabled. The key is
// stored sanitised (non-alphanumeric → underscore, 64 char cap) and the
// sanitised form is what Get/Delete match on.

// CacheSet stores a value with an optional TTL (0 = never expires).
func (s *Store) CacheSet(ctx context.Context, key, value string, ttl time.Duration, tags []string) (*masc.CacheEntry, error) {
	if key == "" {
		return nil, masc.InvalidArgument("cache_set requires key")
	}
	if err := s.checkWritable(ctx); err != nil {
		return nil, err
	}

	sealed, err := s.sealer.Seal(value)
	if err != nil {
		return nil, err
	}
	now := s.clock.NowUnix()
	entry := masc.CacheEntry{
		Key:       masc.SanitizeKey(key),
		Value:     sealed,
		CreatedAt: now,
		Tags:      tags,
	}
	if ttl > 0 {
		entry.ExpiresAt = now + ttl.Seconds()
	}
	if err := s.setJSON(ctx, masc.CacheKey(s.cfg.Room, key), &entry); err != nil {
		return nil, err
	}
	entry.Value = value
	return &entry, nil
}

// CacheGet returns the entry, lazily deleting it when expired.
func (s *Store) CacheGet(ctx context.Context, key string) (*masc.CacheEntry, error) {
	if key == "" {
		return nil, masc.InvalidArgument("cache_get requires key")
	}
	var entry masc.CacheEntry
	if err := s.getJSON(ctx, masc.CacheKey(s.cfg.Room, key), &entry); err != nil {
		if masc.IsKind(err, masc.KindNotFound) {
			return nil, masc.NotFound("cache key %q not found", key)
		}
		return nil, err
	}
	if entry.Expired(s.clock.NowUnix()) {
		if err := s.be.Delete(ctx, masc.CacheKey(s.cfg.Room, key)); err != nil && !masc.IsKind(err, masc.KindNotFound) {
			s.logger.Warn("lazy cache expiry", zap.String("key", key), zap.Error(err))
		}
		return nil, masc.NotFound("cache key %q has expired", key)
	}
	value, err := s.sealer.Open(entry.Value)
	if err != nil {
		return nil, err
	}
	entry.Value = value
	return &entry, nil
}

// CacheDelete removes an entry; deleting an absent key is not_found.
func (s *Store) CacheDelete(ctx context.Context, key string) error {
	if key == "" {
		return masc.InvalidArgument("cache_delete requires key")
	}
	if err := s.checkWritable(ctx); err != nil {
		return err
	}
	err := s.be.Delete(ctx, masc.CacheKey(s.cfg.Room, key))
	if masc.IsKind(err, masc.KindNotFound) {
		return masc.NotFound("cache key %q not found", key)
	}
	return err
}

// CacheList returns live entries, optionally filtered by tag, sorted by
// key. Values stay sealed out of the listing; use CacheGet to read one.
func (s *Store) CacheList(ctx context.Context, tag string) ([]masc.CacheEntry, error) {
	keys, err := s.be.List(ctx, masc.CachePrefix(s.cfg.Room))
	if err != nil {
		return nil, err
	}
	now := s.clock.NowUnix()
	out := make([]masc.CacheEntry, 0, len(keys))
	for _, key := range keys {
		var entry masc.CacheEntry
		if err := s.getJSON(ctx, key, &entry); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				continue
			}
			return nil, err
		}
		if entry.Expired(now) {
			continue
		}
		if tag != "" && !containsString(entry.Tags, tag) {
			continue
		}
		entry.Value = ""
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
