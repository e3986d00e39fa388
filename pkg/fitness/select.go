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
package fitness

import (
	"math/rand"
	"sort"

	"github.com/teradata-labs/masc/pkg/masc"
)

// Strategy names an agent-selection policy.
type Strategy string

const (
	Roulette        Strategy = "roulette"
	Elite           Strategy = "elite"
	CapabilityFirst Strategy = "capability_first"
	Random          Strategy = "random"
)

// Candidate is one selectable agent with its score.
type Candidate struct {
	AgentID      string   `json:"agent_id"`
	Score        float64  `json:"score"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Select picks one candidate under the named strategy. Returns "" when no
// candidate qualifies. rng must not be nil; callers seed it for tests.
func Select(rng *rand.Rand, strategy Strategy, candidates []Candidate, required []string, topK int) string {
	switch strategy {
	case Elite:
		return selectElite(rng, candidates, topK)
	case CapabilityFirst:
		return selectRoulette(rng, filterCapable(candidates, required))
	case Random:
		return selectRandom(rng, candidates)
	default:
		return selectRoulette(rng, candidates)
	}
}

// selectRoulette picks with probability proportional to score. All-zero
// scores degrade to a uniform pick.
func selectRoulette(rng *rand.Rand, candidates []Candidate) string {
	if len(candidates) == 0 {
		return ""
	}
	var total float64
	for _, c := range candidates {
		total += clamp01(c.Score)
	}
	if total <= 0 {
		return selectRandom(rng, candidates)
	}
	spin := rng.Float64() * total
	for _, c := range candidates {
		spin -= clamp01(c.Score)
		if spin < 0 {
			return c.AgentID
		}
	}
	return candidates[len(candidates)-1].AgentID
}

// selectElite restricts the roulette to the top-k by score.
func selectElite(rng *rand.Rand, candidates []Candidate, k int) string {
	if len(candidates) == 0 {
		return ""
	}
	if k <= 0 {
		k = 3
	}
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if k > len(sorted) {
		k = len(sorted)
	}
	return selectRoulette(rng, sorted[:k])
}

func selectRandom(rng *rand.Rand, candidates []Candidate) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[rng.Intn(len(candidates))].AgentID
}

// filterCapable keeps candidates whose capability set covers required.
func filterCapable(candidates []Candidate, required []string) []Candidate {
	if len(required) == 0 {
		return candidates
	}
	var out []Candidate
	for _, c := range candidates {
		a := masc.Agent{Capabilities: c.Capabilities}
		if a.HasCapabilities(required) {
			out = append(out, c)
		}
	}
	return out
}
