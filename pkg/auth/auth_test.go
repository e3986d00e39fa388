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
package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/masc/pkg/masc"
)

func TestVerifyDisabled(t *testing.T) {
	v := NewVerifier(nil)
	assert.False(t, v.Enabled())

	r := httptest.NewRequest("POST", "/mcp", nil)
	token, err := v.Verify(r)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestVerifyBearer(t *testing.T) {
	v := NewVerifier([]string{"secret-1", "secret-2", "  "})
	assert.True(t, v.Enabled())

	r := httptest.NewRequest("POST", "/mcp", nil)
	_, err := v.Verify(r)
	assert.True(t, masc.IsKind(err, masc.KindUnauthorized))

	r.Header.Set("Authorization", "Basic secret-1")
	_, err = v.Verify(r)
	assert.True(t, masc.IsKind(err, masc.KindUnauthorized))

	r.Header.Set("Authorization", "Bearer secret-2")
	token, err := v.Verify(r)
	require.NoError(t, err)
	assert.Equal(t, "secret-2", token)

	r.Header.Set("Authorization", "Bearer wrong")
	_, err = v.Verify(r)
	assert.True(t, masc.IsKind(err, masc.KindUnauthorized))
}

func TestRevoke(t *testing.T) {
	v := NewVerifier([]string{"secret"})
	r := httptest.NewRequest("POST", "/mcp", nil)
	r.Header.Set("Authorization", "Bearer secret")

	_, err := v.Verify(r)
	require.NoError(t, err)

	v.Revoke("secret")
	_, err = v.Verify(r)
	assert.True(t, masc.IsKind(err, masc.KindUnauthorized))
}
