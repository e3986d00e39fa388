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
package tools

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/teradata-labs/masc/pkg/fitness"
	"github.com/teradata-labs/masc/pkg/masc"
	"github.com/teradata-labs/masc/pkg/telemetry"
)

// agentScore pairs an agent with its fitness score for listing.
type agentScore struct {
	AgentID string           `json:"agent_id"`
	Score   float64          `json:"score"`
	Metrics *fitness.Metrics `json:"metrics,omitempty"`
}

// scores aggregates the telemetry log into per-agent fitness scores.
func (r *Registry) scores(ctx context.Context) (map[string]float64, map[string]*fitness.Metrics, error) {
	events, err := r.deps.Store.Telemetry().Read(ctx, telemetry.Query{})
	if err != nil {
		return nil, nil, err
	}
	metrics := fitness.Aggregate(events, r.deps.Store.Clock().NowUnix(), fitness.AggregateConfig{})
	weights := fitness.DefaultWeights()
	out := make(map[string]float64, len(metrics))
	for id, m := range metrics {
		out[id] = fitness.Score(m, weights)
	}
	return out, metrics, nil
}

func (r *Registry) registerDiscovery() {
	s := r.deps.Store

	r.register(Tool{
		Name:        "masc_fitness",
		Description: "Score agents from the telemetry log. Scores are in [0,1].",
		Category:    "discovery",
		InputSchema: objectSchema(
			prop("agent_id", "string", "Score just this agent"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				AgentID string `json:"agent_id"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			scores, metrics, err := r.scores(ctx)
			if err != nil {
				return nil, err
			}
			if p.AgentID != "" {
				score, ok := scores[p.AgentID]
				if !ok {
					return nil, masc.NotFound("no telemetry for agent %q", p.AgentID)
				}
				return agentScore{AgentID: p.AgentID, Score: score, Metrics: metrics[p.AgentID]}, nil
			}
			list := make([]agentScore, 0, len(scores))
			for id, score := range scores {
				list = append(list, agentScore{AgentID: id, Score: score})
			}
			sort.Slice(list, func(i, j int) bool {
				if list[i].Score != list[j].Score {
					return list[i].Score > list[j].Score
				}
				return list[i].AgentID < list[j].AgentID
			})
			return map[string]interface{}{"fitness": list}, nil
		},
	})

	r.register(Tool{
		Name:        "masc_synapses",
		Description: "Read the collaboration graph's weighted edges.",
		Category:    "discovery",
		InputSchema: objectSchema(
			prop("agent_id", "string", "Only edges leaving this agent"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				AgentID string `json:"agent_id"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			var (
				edges []masc.Synapse
				err   error
			)
			if p.AgentID != "" {
				edges, err = s.Synapses().Neighbors(ctx, p.AgentID)
			} else {
				edges, err = s.Synapses().Snapshot(ctx)
			}
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"synapses": edges}, nil
		},
	})

	r.register(Tool{
		Name:        "masc_select_agent",
		Description: "Pick an agent by fitness under a selection strategy.",
		Category:    "discovery",
		InputSchema: objectSchema(
			enumProp("strategy", "Selection policy", false,
				"roulette", "elite", "capability_first", "random"),
			arrayProp("required_capabilities", "string", "Capabilities the pick must hold"),
			prop("top_k", "integer", "Elite pool size; default 3"),
			prop("exclude", "string", "Agent to leave out, e.g. the requester"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				Strategy             string   `json:"strategy"`
				RequiredCapabilities []string `json:"required_capabilities"`
				TopK                 int      `json:"top_k"`
				Exclude              string   `json:"exclude"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			if p.TopK <= 0 {
				p.TopK = 3
			}

			agents, err := s.Agents(ctx)
			if err != nil {
				return nil, err
			}
			scores, _, err := r.scores(ctx)
			if err != nil {
				return nil, err
			}

			var candidates []fitness.Candidate
			for _, a := range agents {
				if a.Status == masc.AgentZombie || a.Status == masc.AgentLeft {
					continue
				}
				if a.ID == p.Exclude {
					continue
				}
				candidates = append(candidates, fitness.Candidate{
					AgentID:      a.ID,
					Score:        scores[a.ID],
					Capabilities: a.Capabilities,
				})
			}

			picked := fitness.Select(r.deps.Rng, fitness.Strategy(p.Strategy), candidates, p.RequiredCapabilities, p.TopK)
			if picked == "" {
				return nil, masc.NotFound("no agent matches the selection criteria")
			}
			return map[string]interface{}{
				"agent_id": picked,
				"score":    scores[picked],
				"strategy": p.Strategy,
			}, nil
		},
	})
}
