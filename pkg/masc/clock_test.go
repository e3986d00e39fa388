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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVirtualClockAdvance(t *testing.T) {
	start := time.Unix(1000, 0)
	clk := NewVirtualClock(start)

	assert.Equal(t, start, clk.Now())

	clk.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), clk.Now())
	assert.InDelta(t, 1090.0, clk.NowUnix(), 1e-9)
}

func TestUnixRoundTrip(t *testing.T) {
	orig := time.Unix(1700000000, 250_000_000)
	sec := ToUnix(orig)
	back := FromUnix(sec)
	assert.WithinDuration(t, orig, back, time.Microsecond)
}

func TestSeededIDsDeterministic(t *testing.T) {
	g1 := SeededIDs(42)
	g2 := SeededIDs(42)

	for i := 0; i < 5; i++ {
		assert.Equal(t, g1.NewID(), g2.NewID())
	}

	id := SeededIDs(7).NewID()
	assert.Len(t, id, 36)
	assert.Equal(t, byte('4'), id[14], "uuid version nibble")
}
