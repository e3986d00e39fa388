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

// Package metrics exposes the server's Prometheus instrumentation under
// the masc_ namespace.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP surface
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "masc_requests_total",
			Help: "Total number of HTTP requests by path and status",
		},
		[]string{"path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "masc_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	// Tool dispatch
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "masc_tool_calls_total",
			Help: "Total number of tool invocations by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	ToolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "masc_tool_call_duration_seconds",
			Help:    "Tool handler duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "masc_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	// Room state, refreshed by the supervisor each tempo tick
	ActiveAgents = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "masc_agents",
			Help: "Number of agents by status",
		},
		[]string{"status"},
	)

	Tasks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "masc_tasks",
			Help: "Number of tasks by status",
		},
		[]string{"status"},
	)

	LastSeq = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "masc_last_seq",
			Help: "Highest committed message sequence number",
		},
	)

	RoomLoad = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "masc_room_load",
			Help: "Active tasks over the concurrency target",
		},
	)

	// Notification fan-out
	SSEClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "masc_sse_clients",
			Help: "Number of connected SSE subscribers",
		},
	)

	BusDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "masc_bus_drops_total",
			Help: "Total notifications dropped on slow subscriber channels",
		},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ToolCallsTotal)
	prometheus.MustRegister(ToolCallDuration)
	prometheus.MustRegister(RateLimitedTotal)
	prometheus.MustRegister(ActiveAgents)
	prometheus.MustRegister(Tasks)
	prometheus.MustRegister(LastSeq)
	prometheus.MustRegister(RoomLoad)
	prometheus.MustRegister(SSEClients)
	prometheus.MustRegister(BusDropsTotal)
}

// Handler serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
