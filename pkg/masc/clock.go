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
package masc

import (
	"sync"
	"time"
)

// Clock abstracts time so stores and supervisors are deterministic under
// test. All time reads inside the kernel go through a Clock.
type Clock interface {
	Now() time.Time
	// NowUnix returns seconds since epoch as float64, the wire and storage
	// representation of every timestamp.
	NowUnix() float64
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NowUnix() float64 { return ToUnix(time.Now()) }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// ToUnix converts a time.Time to float64 epoch seconds.
func ToUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromUnix converts float64 epoch seconds back to time.Time.
func FromUnix(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second)))
}

// VirtualClock is a Clock that only moves when advanced explicitly. Tests
// inject it to exercise TTL and sweep behaviour without sleeping.
type VirtualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewVirtualClock starts a virtual clock at the given instant.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *VirtualClock) NowUnix() float64 {
	return ToUnix(c.Now())
}

// Advance moves the clock forward by d.
func (c *VirtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SetNow pins the clock to an absolute instant.
func (c *VirtualClock) SetNow(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
