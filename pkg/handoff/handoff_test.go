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
package handoff

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teradata-labs/masc/pkg/masc"
)

func TestRenderPromptFull(t *testing.T) {
	h := &masc.Handoff{
		ID:               "h1",
		FromAgent:        "claude",
		TaskID:           "t1",
		Reason:           masc.ReasonContextLimit,
		ContextPct:       92,
		Goal:             "Ship the SSE resume path",
		ProgressSummary:  "Replay works; gap detection is stubbed.",
		CompletedSteps:   []string{"ring buffer", "replay from seq"},
		PendingSteps:     []string{"resume_gap event"},
		KeyDecisions:     []string{"events retained globally, filtered per subscriber"},
		Assumptions:      []string{"single room per server"},
		Warnings:         []string{"floor computation off-by-one was fixed once already"},
		UnresolvedErrors: []string{"flaky TestLag on CI"},
		ModifiedFiles:    []string{"pkg/bus/bus.go", "pkg/bus/subscription.go"},
	}

	out := RenderPrompt(h)
	assert.Contains(t, out, "# Handoff from claude")
	assert.Contains(t, out, "**Reason:** context_limit (context 92% used)")
	assert.Contains(t, out, "**Task:** t1")
	assert.Contains(t, out, "## Goal\n\nShip the SSE resume path")
	assert.Contains(t, out, "- [x] ring buffer")
	assert.Contains(t, out, "- [ ] resume_gap event")
	assert.Contains(t, out, "WARNING: floor computation")
	assert.Contains(t, out, "- `pkg/bus/bus.go`")
}

func TestRenderPromptMinimal(t *testing.T) {
	h := &masc.Handoff{
		ID:        "h2",
		FromAgent: "gemini",
		Reason:    masc.ReasonExplicit,
		Goal:      "Take over the review queue",
	}
	out := RenderPrompt(h)
	assert.Contains(t, out, "# Handoff from gemini")
	assert.Contains(t, out, "Take over the review queue")
	assert.NotContains(t, out, "## Completed steps")
	assert.NotContains(t, out, "## Warnings")
	assert.NotContains(t, out, "**Task:**")
	assert.NotContains(t, out, "context")
}

func TestEstimateTokens(t *testing.T) {
	assert.Zero(t, EstimateTokens(""))
	short := EstimateTokens("hello")
	assert.Greater(t, short, 0)
	long := EstimateTokens("The coordination kernel owns agents, tasks, messages, locks, votes, portals and handoffs.")
	assert.Greater(t, long, short)
}
