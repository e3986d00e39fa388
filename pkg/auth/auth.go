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

// Package auth verifies bearer tokens on incoming requests and stores
// the client-side token in the system keyring.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/teradata-labs/masc/internal/csync"
	"github.com/teradata-labs/masc/pkg/masc"
)

// Verifier checks bearer tokens against a configured allow list. An
// empty token list disables auth entirely: every request passes and the
// rate limiter falls back to keying by client IP.
type Verifier struct {
	tokens  []string
	revoked *csync.Map[string, struct{}]
}

// NewVerifier creates a verifier for the given tokens.
func NewVerifier(tokens []string) *Verifier {
	valid := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			valid = append(valid, t)
		}
	}
	return &Verifier{
		tokens:  valid,
		revoked: csync.NewMap[string, struct{}](),
	}
}

// Enabled reports whether any tokens are configured.
func (v *Verifier) Enabled() bool { return len(v.tokens) > 0 }

// Verify extracts and checks the bearer token from an HTTP request.
// It returns the matched token (for rate-limit keying) or an
// unauthorized error. When auth is disabled it returns "".
func (v *Verifier) Verify(r *http.Request) (string, error) {
	if !v.Enabled() {
		return "", nil
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", masc.Unauthorized("missing Authorization header")
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", masc.Unauthorized("Authorization header must use the Bearer scheme")
	}
	if _, gone := v.revoked.Get(token); gone {
		return "", masc.Unauthorized("token has been revoked")
	}
	for _, want := range v.tokens {
		if subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 1 {
			return token, nil
		}
	}
	return "", masc.Unauthorized("invalid token")
}

// Revoke marks a token invalid for the rest of the process lifetime.
func (v *Verifier) Revoke(token string) {
	v.revoked.Set(token, struct{}{})
}

// ServiceName identifies masc entries in the system keyring.
const ServiceName = "masc"

// keyringUser is the account slot the server token lives under.
const keyringUser = "server-token"

// SaveToken stores the client token in the system keyring.
func SaveToken(token string) error {
	return keyring.Set(ServiceName, keyringUser, token)
}

// LoadToken retrieves the client token from the system keyring.
func LoadToken() (string, error) {
	return keyring.Get(ServiceName, keyringUser)
}

// ClearToken removes the client token from the system keyring.
func ClearToken() error {
	return keyring.Delete(ServiceName, keyringUser)
}
