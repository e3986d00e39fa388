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
	"encoding/json"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/masc/pkg/masc"
)

// normalizePath collapses a client-supplied file path into the canonical
// form locks are keyed by: forward slashes, cleaned, no leading "./".
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "./")
	return p
}

// LockPath acquires the advisory file lock for path. Re-locking by the
// holder is idempotent and extends the expiry; a lock held by another
// agent is a conflict. An expired lock is claimable immediately.
func (s *Store) LockPath(ctx context.Context, agentID, filePath string) (*masc.Lock, error) {
	if agentID == "" || filePath == "" {
		return nil, masc.InvalidArgument("lock requires agent_id and file_path")
	}
	if err := s.checkWritable(ctx); err != nil {
		return nil, err
	}
	filePath = normalizePath(filePath)
	key := masc.LockKey(s.cfg.Room, filePath)
	now := s.clock.NowUnix()

	lock := masc.Lock{
		FilePath:   filePath,
		Holder:     agentID,
		AcquiredAt: now,
	}
	if agent, err := s.Agent(ctx, agentID); err == nil {
		lock.TaskID = agent.CurrentTaskID
	}
	if s.cfg.LockTTL > 0 {
		lock.ExpiresAt = now + s.cfg.LockTTL.Seconds()
	}

	err := s.withLock(ctx, "lock:"+filePath, func() error {
		raw, err := s.getRaw(ctx, key)
		switch {
		case masc.IsKind(err, masc.KindNotFound):
			ok, casErr := s.casJSON(ctx, key, nil, &lock)
			if casErr != nil {
				return casErr
			}
			if !ok {
				return masc.Conflict("lock on %q was acquired concurrently", filePath)
			}
			return nil

		case err != nil:
			return err
		}

		var current masc.Lock
		if err := json.Unmarshal(raw, &current); err != nil {
			return masc.BackendFatal("corrupt lock %s: %v", filePath, err)
		}
		expired := current.ExpiresAt > 0 && now >= current.ExpiresAt
		if current.Holder != agentID && !expired {
			return masc.Conflict("file %q is locked by %q", filePath, current.Holder)
		}
		if current.Holder == agentID {
			lock.AcquiredAt = current.AcquiredAt // re-lock extends expiry only
		}
		ok, casErr := s.casJSON(ctx, key, raw, &lock)
		if casErr != nil {
			return casErr
		}
		if !ok {
			return masc.Conflict("lock on %q changed concurrently", filePath)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("lock acquired", zap.String("path", filePath), zap.String("holder", agentID))
	return &lock, nil
}

// UnlockPath releases a lock. Only the holder may release; anyone else is
// forbidden. Unlocking an absent lock is not_found.
func (s *Store) UnlockPath(ctx context.Context, agentID, filePath string) error {
	if agentID == "" || filePath == "" {
		return masc.InvalidArgument("unlock requires agent_id and file_path")
	}
	filePath = normalizePath(filePath)
	key := masc.LockKey(s.cfg.Room, filePath)

	return s.withLock(ctx, "lock:"+filePath, func() error {
		var current masc.Lock
		if err := s.getJSON(ctx, key, &current); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				return masc.NotFound("no lock on %q", filePath)
			}
			return err
		}
		if current.Holder != agentID {
			return masc.Forbidden("lock on %q is held by %q, not %q", filePath, current.Holder, agentID)
		}
		return s.be.Delete(ctx, key)
	})
}

// Locks lists the room's live file locks, sorted by path. Expired locks
// are skipped (the supervisor deletes them).
func (s *Store) Locks(ctx context.Context) ([]masc.Lock, error) {
	keys, err := s.be.List(ctx, masc.LockPrefix(s.cfg.Room))
	if err != nil {
		return nil, err
	}
	now := s.clock.NowUnix()
	out := make([]masc.Lock, 0, len(keys))
	for _, key := range keys {
		var lock masc.Lock
		if err := s.getJSON(ctx, key, &lock); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				continue
			}
			return nil, err
		}
		if lock.ExpiresAt > 0 && now >= lock.ExpiresAt {
			continue
		}
		out = append(out, lock)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out, nil
}
