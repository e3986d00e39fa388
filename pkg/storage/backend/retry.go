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
package backend

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/teradata-labs/masc/pkg/masc"
)

// RetryConfig bounds the retry loop around transient backend failures.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// BaseDelay is the delay before the first retry; each subsequent retry
	// doubles it, with up to 50% random jitter added.
	BaseDelay time.Duration
	// MaxDelay caps the per-retry delay.
	MaxDelay time.Duration
}

// DefaultRetry is the kernel-wide policy: 3 attempts, 100 ms base, 1 s cap.
var DefaultRetry = RetryConfig{Attempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

// Do runs fn, retrying transient errors per cfg. Non-transient errors
// return immediately. When attempts are exhausted the last transient error
// is re-classified as backend_fatal so callers never loop on it again.
func Do(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	delay := cfg.BaseDelay

	var err error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		err = fn()
		if err == nil || !masc.Retryable(err) {
			return err
		}
		if attempt == cfg.Attempts {
			break
		}

		d := delay
		if d > 0 {
			d += time.Duration(rand.Int63n(int64(d)/2 + 1))
		}
		if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
			d = cfg.MaxDelay
		}
		select {
		case <-ctx.Done():
			return masc.Cancelled("retry aborted: %v", ctx.Err())
		case <-time.After(d):
		}
		delay *= 2
	}
	return masc.BackendFatal("retries exhausted: %v", err).WithDetail("attempts", cfg.Attempts)
}

// IsNotFound reports whether err carries the not_found kind.
func IsNotFound(err error) bool {
	return masc.IsKind(err, masc.KindNotFound)
}

// NotFoundErr builds the canonical absent-key error used by every
// implementation, so messages stay uniform across backends.
func NotFoundErr(key string) error {
	return masc.NotFound("key %q not found", key)
}

// Transient wraps a driver error as retryable.
func Transient(op string, err error) error {
	return masc.BackendTransient("%s: %v", op, err)
}

// Fatal wraps a driver error as non-retryable.
func Fatal(op string, err error) error {
	return masc.BackendFatal("%s: %v", op, err)
}

// ValidateLine rejects log lines containing newlines, which would corrupt
// line-granular appends.
func ValidateLine(line string) error {
	for i := 0; i < len(line); i++ {
		if line[i] == '\n' {
			return masc.InvalidArgument("log line contains newline at byte %d", i)
		}
	}
	return nil
}

// String renders the config for debug logs.
func (c RetryConfig) String() string {
	return fmt.Sprintf("retry{attempts=%d base=%s cap=%s}", c.Attempts, c.BaseDelay, c.MaxDelay)
}
