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
package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/masc/pkg/masc"
)

func TestAllowExhaustsBucket(t *testing.T) {
	l := New(Config{Capacity: 3, RefillPerSecond: 0.001})

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Allow("client-a"))
	}
	err := l.Allow("client-a")
	require.Error(t, err)
	assert.True(t, masc.IsKind(err, masc.KindRateLimited))

	// Buckets are independent per key.
	assert.NoError(t, l.Allow("client-b"))

	// Forget resets the client.
	l.Forget("client-a")
	assert.NoError(t, l.Allow("client-a"))
}

func TestDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 120, cfg.Capacity)
	assert.Equal(t, 2.0, cfg.RefillPerSecond)
}
