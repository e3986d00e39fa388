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

// Package handoff renders capsules into the resume prompt a successor
// agent reads, and estimates prompt token cost for the credits ledger.
package handoff

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/teradata-labs/masc/pkg/masc"
)

// RenderPrompt turns a capsule into the markdown brief handed to the
// claiming agent. Empty sections are omitted so short capsules stay short.
func RenderPrompt(h *masc.Handoff) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Handoff from %s\n\n", h.FromAgent)
	fmt.Fprintf(&b, "**Reason:** %s", h.Reason)
	if h.ContextPct > 0 {
		fmt.Fprintf(&b, " (context %.0f%% used)", h.ContextPct)
	}
	b.WriteString("\n\n")

	if h.TaskID != "" {
		fmt.Fprintf(&b, "**Task:** %s\n\n", h.TaskID)
	}

	fmt.Fprintf(&b, "## Goal\n\n%s\n", h.Goal)

	if h.ProgressSummary != "" {
		fmt.Fprintf(&b, "\n## Progress\n\n%s\n", h.ProgressSummary)
	}
	section(&b, "Completed steps", h.CompletedSteps, "- [x] %s\n")
	section(&b, "Pending steps", h.PendingSteps, "- [ ] %s\n")
	section(&b, "Key decisions", h.KeyDecisions, "- %s\n")
	section(&b, "Assumptions", h.Assumptions, "- %s\n")
	section(&b, "Warnings", h.Warnings, "- WARNING: %s\n")
	section(&b, "Unresolved errors", h.UnresolvedErrors, "- %s\n")
	section(&b, "Modified files", h.ModifiedFiles, "- `%s`\n")

	return b.String()
}

func section(b *strings.Builder, title string, items []string, format string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(b, format, item)
	}
}

var (
	encOnce sync.Once
	encoder *tiktoken.Tiktoken
)

// EstimateTokens counts cl100k_base tokens in the text, falling back to
// the len/4 heuristic when the encoding cannot be loaded (tiktoken fetches
// its vocabulary on first use).
func EstimateTokens(text string) int {
	encOnce.Do(func() {
		encoder, _ = tiktoken.GetEncoding("cl100k_base")
	})
	if encoder != nil {
		return len(encoder.Encode(text, nil, nil))
	}
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}
