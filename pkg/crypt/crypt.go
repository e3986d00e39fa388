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

// Package crypt seals sensitive values at rest with AES-256-GCM. Sealed
// values carry a versioned prefix so plaintext written before encryption
// was enabled still reads back unchanged.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/teradata-labs/masc/pkg/masc"
)

// Prefix marks a sealed value. Everything after it is base64(nonce||ct).
const Prefix = "masc:enc:v1:"

// Sealer encrypts and decrypts strings. The zero-value (nil) Sealer passes
// values through untouched, so call sites never branch on whether
// encryption is configured.
type Sealer struct {
	aead cipher.AEAD
}

// New builds a Sealer from a 64-hex-char (32-byte) key, the format of
// MASC_ENCRYPTION_KEY. An empty key returns a nil pass-through Sealer.
func New(hexKey string) (*Sealer, error) {
	if hexKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, masc.InvalidArgument("encryption key is not hex: %v", err)
	}
	if len(key) != 32 {
		return nil, masc.InvalidArgument("encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, masc.InvalidArgument("build cipher: %v", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, masc.InvalidArgument("build GCM: %v", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext with a fresh per-record nonce. Nil Sealer returns
// the input unchanged.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if s == nil {
		return plaintext, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", masc.BackendFatal("nonce: %v", err)
	}
	ct := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + base64.StdEncoding.EncodeToString(ct), nil
}

// Open decrypts a sealed value. Unsealed input passes through so data
// written before encryption was enabled stays readable. A sealed value on
// a nil Sealer is an error: the key was removed while encrypted records
// remain.
func (s *Sealer) Open(value string) (string, error) {
	if !strings.HasPrefix(value, Prefix) {
		return value, nil
	}
	if s == nil {
		return "", masc.Forbidden("value is encrypted but no encryption key is configured")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", masc.InvalidArgument("sealed value is not base64: %v", err)
	}
	ns := s.aead.NonceSize()
	if len(raw) < ns {
		return "", masc.InvalidArgument("sealed value too short")
	}
	pt, err := s.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", masc.Forbidden("decrypt: %v", err)
	}
	return string(pt), nil
}
