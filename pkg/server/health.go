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
package server

import (
	"net/http"
	"time"

	"github.com/teradata-labs/masc/pkg/config"
)

// handleHealth reports liveness; it flips to 503 while draining so load
// balancers stop routing before in-flight work finishes.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.draining.Load() {
		s.setRetryAfter(w)
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "draining",
			"version": serviceVersion(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"version":  serviceVersion(),
		"backend":  s.backendType,
		"uptime_s": int64(time.Since(s.started).Seconds()),
	})
}

// handleAgentCard serves the discovery document other agent runtimes use
// to find this room's capabilities and bindings.
func (s *Server) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	card := map[string]interface{}{
		"name":        "masc",
		"description": "Multi-agent streaming coordination room",
		"version":     serviceVersion(),
		"capabilities": map[string]interface{}{
			"streaming":  true,
			"resumable":  true,
			"encryption": "aes-256-gcm at rest",
		},
		"bindings": []map[string]string{
			{"protocol": "jsonrpc-2.0", "path": "/mcp"},
			{"protocol": "sse", "path": "/sse"},
			{"protocol": "rest", "path": "/api/v1"},
		},
		"skills": config.AllCategories(),
	}
	writeJSON(w, http.StatusOK, card)
}
