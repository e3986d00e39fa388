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
package crypt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/masc/pkg/masc"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSealRoundTrip(t *testing.T) {
	s, err := New(testKey)
	require.NoError(t, err)

	sealed, err := s.Seal(`{"goal":"finish the parser"}`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, Prefix))
	assert.NotContains(t, sealed, "parser")

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"goal":"finish the parser"}`, opened)
}

func TestNonceIsPerRecord(t *testing.T) {
	s, err := New(testKey)
	require.NoError(t, err)

	a, err := s.Seal("same input")
	require.NoError(t, err)
	b, err := s.Seal("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNilSealerPassesThrough(t *testing.T) {
	var s *Sealer
	sealed, err := s.Seal("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", sealed)

	opened, err := s.Open("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", opened)
}

func TestOpenPlaintextWithKey(t *testing.T) {
	s, err := New(testKey)
	require.NoError(t, err)

	// Records written before encryption was enabled.
	opened, err := s.Open("legacy plaintext")
	require.NoError(t, err)
	assert.Equal(t, "legacy plaintext", opened)
}

func TestSealedValueWithoutKeyFails(t *testing.T) {
	s, err := New(testKey)
	require.NoError(t, err)
	sealed, err := s.Seal("secret")
	require.NoError(t, err)

	var noKey *Sealer
	_, err = noKey.Open(sealed)
	require.Error(t, err)
	assert.Equal(t, masc.KindForbidden, masc.KindOf(err))
}

func TestBadKeys(t *testing.T) {
	_, err := New("not-hex")
	assert.Equal(t, masc.KindInvalidArgument, masc.KindOf(err))

	_, err = New("abcd")
	assert.Equal(t, masc.KindInvalidArgument, masc.KindOf(err))
}

func TestTamperedCiphertext(t *testing.T) {
	s, err := New(testKey)
	require.NoError(t, err)
	sealed, err := s.Seal("secret")
	require.NoError(t, err)

	tampered := sealed[:len(sealed)-2] + "AA"
	_, err = s.Open(tampered)
	require.Error(t, err)
}
