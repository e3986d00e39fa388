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
	"strconv"
	"strings"

	"github.com/teradata-labs/masc/pkg/masc"
	"github.com/teradata-labs/masc/pkg/metrics"
	"github.com/teradata-labs/masc/pkg/protocol"
)

// handleREST serves the read-only JSON API under /api/v1/.
func (s *Server) handleREST(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	token, err := s.verifier.Verify(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, protocol.NewErrorResponse(nil, protocol.ErrorFrom(err)))
		return
	}
	if err := s.limiter.Allow(clientKey(r, token)); err != nil {
		metrics.RateLimitedTotal.Inc()
		writeJSON(w, http.StatusTooManyRequests, protocol.NewErrorResponse(nil, protocol.ErrorFrom(err)))
		return
	}

	ctx := r.Context()
	q := r.URL.Query()
	resource := strings.TrimPrefix(r.URL.Path, "/api/v1/")

	switch resource {
	case "status":
		status, err := s.store.Status(ctx)
		if err != nil {
			s.writeRESTError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)

	case "tasks":
		tasks, err := s.store.Tasks(ctx, masc.TaskStatus(q.Get("status")))
		if err != nil {
			s.writeRESTError(w, err)
			return
		}
		tasks = page(tasks, q)
		writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})

	case "agents":
		agents, err := s.store.Agents(ctx)
		if err != nil {
			s.writeRESTError(w, err)
			return
		}
		if status := q.Get("status"); status != "" {
			filtered := agents[:0]
			for _, a := range agents {
				if string(a.Status) == status {
					filtered = append(filtered, a)
				}
			}
			agents = filtered
		}
		agents = page(agents, q)
		writeJSON(w, http.StatusOK, map[string]interface{}{"agents": agents})

	case "messages":
		sinceSeq, _ := strconv.ParseInt(q.Get("since_seq"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))
		msgs, err := s.store.Messages(ctx, sinceSeq, limit)
		if err != nil {
			s.writeRESTError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})

	case "credits":
		if agent := q.Get("agent"); agent != "" {
			credit, err := s.store.Credit(ctx, agent)
			if err != nil {
				s.writeRESTError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, credit)
			return
		}
		credits, err := s.store.Credits(ctx)
		if err != nil {
			s.writeRESTError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"credits": credits})

	default:
		http.NotFound(w, r)
	}
}

// page applies limit/offset query parameters to a slice.
func page[T any](items []T, q map[string][]string) []T {
	offset := 0
	if v, ok := q["offset"]; ok && len(v) > 0 {
		offset, _ = strconv.Atoi(v[0])
	}
	limit := 0
	if v, ok := q["limit"]; ok && len(v) > 0 {
		limit, _ = strconv.Atoi(v[0])
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (s *Server) writeRESTError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), map[string]interface{}{
		"error": err.Error(),
		"kind":  masc.KindOf(err),
	})
}
