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

// Package ratelimit provides per-client token buckets for the tool
// dispatcher. The key is the bearer token when auth is enabled, otherwise
// the client IP.
package ratelimit

import (
	"golang.org/x/time/rate"

	"github.com/teradata-labs/masc/internal/csync"
	"github.com/teradata-labs/masc/pkg/masc"
)

// Config sizes the buckets. Zero values fall back to the defaults: a
// burst of 120 requests refilling at 2 per second.
type Config struct {
	Capacity        int
	RefillPerSecond float64
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 120
	}
	if c.RefillPerSecond <= 0 {
		c.RefillPerSecond = 2
	}
	return c
}

// Limiter owns one token bucket per client key. Buckets are created on
// first sight and live for the process; the key space is bounded by the
// set of issued tokens plus connecting IPs.
type Limiter struct {
	cfg     Config
	buckets *csync.Map[string, *rate.Limiter]
}

// New creates a limiter.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg.withDefaults(),
		buckets: csync.NewMap[string, *rate.Limiter](),
	}
}

// Allow consumes one token for key, returning rate_limited when the
// bucket is empty.
func (l *Limiter) Allow(key string) error {
	b, ok := l.buckets.Get(key)
	if !ok {
		fresh := rate.NewLimiter(rate.Limit(l.cfg.RefillPerSecond), l.cfg.Capacity)
		b, _ = l.buckets.GetOrSet(key, fresh)
	}
	if !b.Allow() {
		return masc.RateLimited("rate limit exceeded for client")
	}
	return nil
}

// Forget drops a client's bucket, e.g. when its token is revoked.
func (l *Limiter) Forget(key string) { l.buckets.Delete(key) }
