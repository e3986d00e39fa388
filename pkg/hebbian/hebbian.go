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

// Package hebbian maintains the collaboration graph: directed edges whose
// weights strengthen when two agents succeed together and fade when they
// fail or stop collaborating. The whole graph is one backend record,
// updated with a CAS loop so concurrent reinforcements merge cleanly.
package hebbian

import (
	"context"
	"encoding/json"
	"math"
	"sort"

	"github.com/teradata-labs/masc/pkg/masc"
	"github.com/teradata-labs/masc/pkg/storage/backend"
)

// Defaults for the learning dynamics.
const (
	DefaultAlpha      = 0.1               // learning rate
	DefaultTau        = 7 * 24 * 3600.0   // decay time constant, seconds
	DefaultPruneBelow = 0.05              // edges weaker than this are removed at consolidation
	casRetries        = 8
)

// Graph persists the room's synapse set.
type Graph struct {
	be    backend.Backend
	room  string
	clock masc.Clock

	Alpha      float64
	Tau        float64 // seconds
	PruneBelow float64
}

// New builds a graph over the given backend with default dynamics.
func New(be backend.Backend, room string, clock masc.Clock) *Graph {
	return &Graph{
		be:         be,
		room:       room,
		clock:      clock,
		Alpha:      DefaultAlpha,
		Tau:        DefaultTau,
		PruneBelow: DefaultPruneBelow,
	}
}

type graphRecord struct {
	Synapses map[string]*masc.Synapse `json:"synapses"` // keyed from|to
}

func edgeKey(from, to string) string { return from + "|" + to }

// Reinforce updates the from→to edge after a joint task: success pulls the
// weight toward 1, failure toward 0. New edges start from 0 (so the first
// success lands at alpha).
func (g *Graph) Reinforce(ctx context.Context, from, to string, success bool) (*masc.Synapse, error) {
	if from == "" || to == "" || from == to {
		return nil, masc.InvalidArgument("reinforce requires two distinct agents")
	}

	var updated *masc.Synapse
	err := g.update(ctx, func(rec *graphRecord) {
		key := edgeKey(from, to)
		syn, ok := rec.Synapses[key]
		if !ok {
			syn = &masc.Synapse{From: from, To: to}
			rec.Synapses[key] = syn
		}
		if success {
			syn.Weight = math.Min(1, syn.Weight+g.Alpha*(1-syn.Weight))
			syn.Successes++
		} else {
			syn.Weight = math.Max(0, syn.Weight-g.Alpha*syn.Weight)
			syn.Failures++
		}
		syn.UpdatedAt = g.clock.NowUnix()
		cp := *syn
		updated = &cp
	})
	return updated, err
}

// Consolidate applies exponential decay to every edge based on time since
// its last update, then prunes edges below the threshold. Returns the number
// of pruned edges.
func (g *Graph) Consolidate(ctx context.Context) (int, error) {
	now := g.clock.NowUnix()
	pruned := 0
	err := g.update(ctx, func(rec *graphRecord) {
		pruned = 0
		for key, syn := range rec.Synapses {
			age := now - syn.UpdatedAt
			if age > 0 {
				syn.Weight *= math.Exp(-age / g.Tau)
			}
			if syn.Weight < g.PruneBelow {
				delete(rec.Synapses, key)
				pruned++
			}
		}
	})
	return pruned, err
}

// Snapshot returns all edges sorted by descending weight.
func (g *Graph) Snapshot(ctx context.Context) ([]masc.Synapse, error) {
	rec, _, err := g.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]masc.Synapse, 0, len(rec.Synapses))
	for _, syn := range rec.Synapses {
		out = append(out, *syn)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return edgeKey(out[i].From, out[i].To) < edgeKey(out[j].From, out[j].To)
	})
	return out, nil
}

// Neighbors returns the outgoing edges of one agent, strongest first.
func (g *Graph) Neighbors(ctx context.Context, from string) ([]masc.Synapse, error) {
	all, err := g.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var out []masc.Synapse
	for _, syn := range all {
		if syn.From == from {
			out = append(out, syn)
		}
	}
	return out, nil
}

func (g *Graph) load(ctx context.Context) (*graphRecord, []byte, error) {
	raw, err := g.be.Get(ctx, masc.SynapsesKey(g.room))
	if err != nil {
		if masc.IsKind(err, masc.KindNotFound) {
			return &graphRecord{Synapses: make(map[string]*masc.Synapse)}, nil, nil
		}
		return nil, nil, err
	}
	var rec graphRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, nil, masc.BackendFatal("corrupt synapse graph: %v", err)
	}
	if rec.Synapses == nil {
		rec.Synapses = make(map[string]*masc.Synapse)
	}
	return &rec, raw, nil
}

// update runs mutate inside a bounded CAS loop.
func (g *Graph) update(ctx context.Context, mutate func(*graphRecord)) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		rec, expected, err := g.load(ctx)
		if err != nil {
			return err
		}
		mutate(rec)
		next, err := json.Marshal(rec)
		if err != nil {
			return masc.BackendFatal("marshal synapse graph: %v", err)
		}
		ok, err := g.be.CAS(ctx, masc.SynapsesKey(g.room), expected, next)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return masc.Conflict("synapse graph update lost %d races", casRetries)
}
