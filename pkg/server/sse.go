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
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/masc/pkg/bus"
	"github.com/teradata-labs/masc/pkg/metrics"
	"github.com/teradata-labs/masc/pkg/protocol"
)

// handleSSE is the notification stream. Clients resume with the standard
// Last-Event-ID header (or last_event_id query parameter); a resume
// target that fell off the retained window yields a resume_gap frame
// telling the client to refetch state over REST.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		s.setRetryAfter(w)
		http.Error(w, "draining", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	// The EventSource API cannot set headers, so the token may arrive as
	// a query parameter.
	if t := r.URL.Query().Get("token"); t != "" && r.Header.Get("Authorization") == "" {
		r.Header.Set("Authorization", "Bearer "+t)
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

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sinceSeq := int64(-1) // live only unless the client resumes
	lastID := r.Header.Get("Last-Event-ID")
	if lastID == "" {
		lastID = r.URL.Query().Get("last_event_id")
	}
	if lastID != "" {
		n, err := strconv.ParseInt(lastID, 10, 64)
		if err != nil {
			http.Error(w, "Last-Event-ID must be a seq number", http.StatusBadRequest)
			return
		}
		sinceSeq = n
	}

	agent := r.URL.Query().Get("agent")
	subID := agent
	if subID == "" {
		subID = "sse-" + r.RemoteAddr
	}

	sub, err := s.bus.Subscribe(subID+"-"+strconv.FormatInt(time.Now().UnixNano(), 10), bus.SubscribeOptions{
		Room:     s.store.Room(),
		SinceSeq: sinceSeq,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer s.bus.Unsubscribe(sub.ID())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	metrics.SSEClients.Inc()
	defer metrics.SSEClients.Dec()
	s.logger.Debug("sse subscriber connected",
		zap.String("agent", agent),
		zap.Int64("since_seq", sinceSeq))

	keepalive := time.NewTicker(s.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()

		case ev, ok := <-sub.Events():
			if !ok {
				// Bus closed without a shutdown frame; just end the stream.
				return
			}
			if err := writeSSEEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
			if ev.Kind == bus.KindShutdown {
				return
			}
		}
	}
}

// writeSSEEvent frames one bus event. Synthetic events (lag, resume_gap,
// shutdown) carry no id; committed notifications use their seq so the
// client's Last-Event-ID resumes exactly.
func writeSSEEvent(w http.ResponseWriter, ev bus.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if ev.Seq > 0 {
		_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Kind, data)
	} else {
		_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	}
	return err
}
