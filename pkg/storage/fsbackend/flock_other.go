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

//go:build !unix

package fsbackend

import "context"

// flock on non-unix platforms degrades to in-process locking only: the
// per-key mutex table already serialises goroutines, and single-process use
// stays correct. Sharing one .masc/ directory between processes needs a
// unix filesystem.
func (s *Store) flock(ctx context.Context, key string) (func(), error) {
	s.lockMu.Lock()
	sem, ok := s.locks["flock:"+key]
	if !ok {
		sem = make(chan struct{}, 1)
		s.locks["flock:"+key] = sem
	}
	s.lockMu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
