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

// Package drift measures how far a received handoff context has wandered
// from the original. Similarity is a weighted blend of Jaccard and cosine
// over token bags; a verification below threshold is classified so the
// successor knows whether to prefer the original, ask for clarification,
// or abstain. Detection never auto-approves anything.
package drift

import (
	"math"
	"strings"
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/text/unicode/norm"
)

// DriftType classifies a below-threshold verification.
type DriftType string

const (
	// Factual: the received context lost a large share of the original.
	Factual DriftType = "factual"
	// Semantic: the meaning diverged (very low similarity) or the context
	// ballooned far past the original.
	Semantic DriftType = "semantic"
	// Structural: same material, rearranged.
	Structural DriftType = "structural"
)

// Action is the suggested response to a detected drift.
type Action string

const (
	PreferOriginal       Action = "prefer_original"
	RequestClarification Action = "request_clarification"
	Abstain              Action = "abstain"
)

// Config tunes the guard. Zero values fall back to defaults.
type Config struct {
	Threshold     float64 // flag drift below this combined similarity
	JaccardWeight float64
	CosineWeight  float64
}

// DefaultConfig is the shipped tuning: threshold 0.85, equal weights.
func DefaultConfig() Config {
	return Config{Threshold: 0.85, JaccardWeight: 0.5, CosineWeight: 0.5}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.JaccardWeight <= 0 && c.CosineWeight <= 0 {
		c.JaccardWeight, c.CosineWeight = d.JaccardWeight, d.CosineWeight
	}
	return c
}

// Report is the result of one verification.
type Report struct {
	Verified   bool      `json:"verified"`
	Similarity float64   `json:"similarity"`
	Jaccard    float64   `json:"jaccard"`
	Cosine     float64   `json:"cosine"`
	DriftType  DriftType `json:"drift_type,omitempty"`
	Action     Action    `json:"suggested_action,omitempty"`
	// Diff is a compact rendering of the edits from original to received.
	Diff string `json:"diff,omitempty"`
}

// Verify compares the received context against the original under cfg.
func Verify(original, received string, cfg Config) Report {
	cfg = cfg.withDefaults()

	a := tokenBag(original)
	b := tokenBag(received)

	j := jaccard(a, b)
	c := cosine(a, b)
	wsum := cfg.JaccardWeight + cfg.CosineWeight
	sim := (cfg.JaccardWeight*j + cfg.CosineWeight*c) / wsum

	r := Report{Similarity: sim, Jaccard: j, Cosine: c}
	if sim >= cfg.Threshold {
		r.Verified = true
		return r
	}

	r.DriftType = classify(sim, len(original), len(received))
	switch r.DriftType {
	case Structural:
		r.Action = PreferOriginal
	case Factual:
		r.Action = RequestClarification
	case Semantic:
		r.Action = Abstain
	}
	r.Diff = renderDiff(original, received)
	return r
}

// Similarity returns just the combined score under the default weights.
// Symmetric: Similarity(a, b) == Similarity(b, a); Similarity(a, a) == 1.
func Similarity(a, b string) float64 {
	ba, bb := tokenBag(a), tokenBag(b)
	return 0.5*jaccard(ba, bb) + 0.5*cosine(ba, bb)
}

func classify(sim float64, origLen, recvLen int) DriftType {
	ratio := math.Inf(1)
	if origLen > 0 {
		ratio = float64(recvLen) / float64(origLen)
	}
	switch {
	case ratio < 0.5:
		return Factual
	case ratio > 2.0 || sim < 0.7:
		return Semantic
	default:
		return Structural
	}
}

// tokenBag lowercases, NFKC-normalises and splits the text on anything
// that is not a letter or digit, returning token counts.
func tokenBag(s string) map[string]int {
	s = norm.NFKC.String(strings.ToLower(s))
	bag := make(map[string]int)
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		bag[tok]++
	}
	return bag
}

func jaccard(a, b map[string]int) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

func cosine(a, b map[string]int) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	for tok, ca := range a {
		na += float64(ca) * float64(ca)
		if cb, ok := b[tok]; ok {
			dot += float64(ca) * float64(cb)
		}
	}
	for _, cb := range b {
		nb += float64(cb) * float64(cb)
	}
	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// renderDiff produces a compact line-joined patch of the two texts for the
// report body.
func renderDiff(original, received string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(original, received, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		text := strings.TrimSpace(d.Text)
		if text == "" {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			b.WriteString("-" + text + "\n")
		case diffmatchpatch.DiffInsert:
			b.WriteString("+" + text + "\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}
