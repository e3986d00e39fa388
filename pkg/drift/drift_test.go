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
package drift

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdenticalTextsVerify(t *testing.T) {
	r := Verify("Implement JWT auth", "Implement JWT auth", DefaultConfig())
	assert.True(t, r.Verified)
	assert.InDelta(t, 1.0, r.Similarity, 1e-9)
	assert.Empty(t, r.DriftType)
	assert.Empty(t, r.Diff)
}

func TestSemanticDrift(t *testing.T) {
	r := Verify("Implement JWT auth", "Implement session cookie auth", DefaultConfig())
	assert.False(t, r.Verified)
	assert.Less(t, r.Similarity, 0.85)
	assert.Equal(t, Semantic, r.DriftType)
	assert.Equal(t, Abstain, r.Action)
	assert.Contains(t, r.Diff, "session")
}

func TestFactualDrift(t *testing.T) {
	original := "Build the parser, wire the lexer into it, add error recovery, " +
		"then write golden tests for every production in the grammar"
	received := "Build the parser"
	r := Verify(original, received, DefaultConfig())
	assert.False(t, r.Verified)
	assert.Equal(t, Factual, r.DriftType)
	assert.Equal(t, RequestClarification, r.Action)
}

func TestStructuralDrift(t *testing.T) {
	// Same words reordered with mild noise: high-ish similarity, same
	// length class, below a tightened threshold.
	original := "acquire the file lock then claim the task then heartbeat"
	received := "heartbeat then claim the task then acquire the file lock now"
	r := Verify(original, received, Config{Threshold: 0.99, JaccardWeight: 0.5, CosineWeight: 0.5})
	assert.False(t, r.Verified)
	assert.Equal(t, Structural, r.DriftType)
	assert.Equal(t, PreferOriginal, r.Action)
}

func TestSimilaritySymmetry(t *testing.T) {
	pairs := [][2]string{
		{"Implement JWT auth", "Implement session cookie auth"},
		{"", "nonempty"},
		{"a b c", "c b a"},
		{"Grüße, Welt", "grüße welt"},
	}
	for _, p := range pairs {
		assert.InDelta(t, Similarity(p[0], p[1]), Similarity(p[1], p[0]), 1e-12)
	}
	assert.InDelta(t, 1.0, Similarity("same text", "same text"), 1e-12)
}

func TestEmptyInputs(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity("", ""), 1e-12)
	assert.InDelta(t, 0.0, Similarity("", "something"), 1e-12)

	r := Verify("", "", DefaultConfig())
	assert.True(t, r.Verified)
}

func TestUnicodeNormalisation(t *testing.T) {
	// Precomposed vs combining-mark spellings tokenize identically.
	assert.InDelta(t, 1.0, Similarity("café", "café"), 1e-12)
}

func TestConfigDefaults(t *testing.T) {
	r := Verify("one two three", "one two three", Config{})
	assert.True(t, r.Verified)

	// Custom weights shift the blend.
	jOnly := Verify("a b", "a c", Config{Threshold: 0.99, JaccardWeight: 1, CosineWeight: 1e-9})
	assert.InDelta(t, jOnly.Jaccard, jOnly.Similarity, 0.01)
}

func TestDiffMarksEdits(t *testing.T) {
	r := Verify("keep this part", "keep that part entirely rewritten beyond recognition", Config{Threshold: 0.99})
	if r.Verified {
		t.Skip("unexpectedly similar")
	}
	assert.True(t, strings.Contains(r.Diff, "+") || strings.Contains(r.Diff, "-"))
}
