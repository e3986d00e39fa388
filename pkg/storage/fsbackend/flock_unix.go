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

//go:build unix

package fsbackend

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/teradata-labs/masc/pkg/masc"
)

// flock takes an exclusive advisory lock on the sidecar <key>.lock file.
// The kernel releases it automatically if the process dies, so crashed
// writers never leave the directory wedged. Acquisition polls with LOCK_NB
// so it can honour context cancellation.
func (s *Store) flock(ctx context.Context, key string) (func(), error) {
	sidecar := s.path(key) + ".lock"
	if err := os.MkdirAll(filepath.Dir(sidecar), dirPerm); err != nil {
		return nil, masc.BackendFatal("mkdir for %s: %v", sidecar, err)
	}
	f, err := os.OpenFile(sidecar, os.O_CREATE|os.O_RDWR, filePerm)
	if err != nil {
		return nil, masc.BackendTransient("open lock %s: %v", sidecar, err)
	}

	for {
		err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return func() {
				syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
				f.Close()
			}, nil
		}
		if err != syscall.EWOULDBLOCK {
			f.Close()
			return nil, masc.BackendTransient("flock %s: %v", sidecar, err)
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, masc.Cancelled("flock %s: %v", sidecar, ctx.Err())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
