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
package room

import (
	"context"
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"github.com/teradata-labs/masc/pkg/handoff"
	"github.com/teradata-labs/masc/pkg/masc"
)

// Handoff capsules are stored sealed when encryption is enabled: the
// capsule JSON goes through the Sealer and the record on disk is the
// envelope {id, status, created_at, capsule}. Status fields stay in the
// clear so the supervisor can expire capsules without the key.

type handoffEnvelope struct {
	ID        string             `json:"id"`
	FromAgent string             `json:"from_agent"`
	ToAgent   string             `json:"to_agent,omitempty"`
	Status    masc.HandoffStatus `json:"status"`
	CreatedAt float64            `json:"created_at"`
	ClaimedAt float64            `json:"claimed_at,omitempty"`
	Capsule   string             `json:"capsule"`
}

func (s *Store) sealHandoff(h *masc.Handoff) (*handoffEnvelope, error) {
	raw, err := json.Marshal(h)
	if err != nil {
		return nil, masc.BackendFatal("marshal handoff: %v", err)
	}
	capsule, err := s.sealer.Seal(string(raw))
	if err != nil {
		return nil, err
	}
	return &handoffEnvelope{
		ID:        h.ID,
		FromAgent: h.FromAgent,
		ToAgent:   h.ToAgent,
		Status:    h.Status,
		CreatedAt: h.CreatedAt,
		Capsule:   capsule,
	}, nil
}

func (s *Store) openHandoff(env *handoffEnvelope) (*masc.Handoff, error) {
	capsule, err := s.sealer.Open(env.Capsule)
	if err != nil {
		return nil, err
	}
	var h masc.Handoff
	if err := json.Unmarshal([]byte(capsule), &h); err != nil {
		return nil, masc.BackendFatal("corrupt handoff capsule %s: %v", env.ID, err)
	}
	// Envelope fields are authoritative: the supervisor mutates them
	// without rewriting the sealed capsule.
	h.Status = env.Status
	h.ToAgent = env.ToAgent
	return &h, nil
}

// HandoffCreateParams are the capsule fields supplied by the yielding
// agent.
type HandoffCreateParams struct {
	FromAgent        string
	TaskID           string
	Reason           masc.HandoffReason
	ContextPct       float64
	Goal             string
	ProgressSummary  string
	CompletedSteps   []string
	PendingSteps     []string
	KeyDecisions     []string
	Assumptions      []string
	Warnings         []string
	UnresolvedErrors []string
	ModifiedFiles    []string
}

// HandoffCreate persists a pending capsule from an existing agent.
func (s *Store) HandoffCreate(ctx context.Context, p HandoffCreateParams) (*masc.Handoff, error) {
	if p.FromAgent == "" {
		return nil, masc.InvalidArgument("handoff requires from_agent")
	}
	if p.Goal == "" {
		return nil, masc.InvalidArgument("handoff requires a goal")
	}
	switch p.Reason {
	case masc.ReasonContextLimit, masc.ReasonTimeout, masc.ReasonExplicit,
		masc.ReasonFatalError, masc.ReasonTaskComplete:
	default:
		return nil, masc.InvalidArgument("unknown handoff reason %q", p.Reason)
	}
	if err := s.checkWritable(ctx); err != nil {
		return nil, err
	}
	if ok, err := s.agentExists(ctx, p.FromAgent); err != nil {
		return nil, err
	} else if !ok {
		return nil, masc.NotFound("agent %q not in room", p.FromAgent)
	}

	h := masc.Handoff{
		ID:               s.ids.NewID(),
		FromAgent:        p.FromAgent,
		TaskID:           p.TaskID,
		Reason:           p.Reason,
		ContextPct:       p.ContextPct,
		Goal:             p.Goal,
		ProgressSummary:  p.ProgressSummary,
		CompletedSteps:   p.CompletedSteps,
		PendingSteps:     p.PendingSteps,
		KeyDecisions:     p.KeyDecisions,
		Assumptions:      p.Assumptions,
		Warnings:         p.Warnings,
		UnresolvedErrors: p.UnresolvedErrors,
		ModifiedFiles:    p.ModifiedFiles,
		CreatedAt:        s.clock.NowUnix(),
		Status:           masc.HandoffPending,
	}

	env, err := s.sealHandoff(&h)
	if err != nil {
		return nil, err
	}
	if err := s.setJSON(ctx, masc.HandoffKey(s.cfg.Room, h.ID), env); err != nil {
		return nil, err
	}

	if _, err := s.notify(ctx, masc.MessageHandoffEvent, "handoff_created", p.FromAgent, map[string]interface{}{
		"handoff": h.ID,
		"from":    p.FromAgent,
		"task":    p.TaskID,
		"reason":  string(p.Reason),
	}); err != nil {
		s.logger.Warn("notify handoff_created", zap.Error(err))
	}
	s.rec.Record(ctx, masc.TelemetryHandoffTriggered, map[string]interface{}{
		"handoff":    h.ID,
		"from_agent": p.FromAgent,
		"task":       p.TaskID,
		"reason":     string(p.Reason),
	})
	return &h, nil
}

// HandoffClaim atomically moves a pending capsule to claimed for agentID.
// Exactly one concurrent claimer wins; the rest see conflict. An expired
// capsule is not_found.
func (s *Store) HandoffClaim(ctx context.Context, handoffID, agentID string) (*masc.Handoff, error) {
	if handoffID == "" || agentID == "" {
		return nil, masc.InvalidArgument("handoff_claim requires handoff_id and agent_id")
	}
	if err := s.checkWritable(ctx); err != nil {
		return nil, err
	}

	key := masc.HandoffKey(s.cfg.Room, handoffID)
	raw, err := s.getRaw(ctx, key)
	if err != nil {
		if masc.IsKind(err, masc.KindNotFound) {
			return nil, masc.NotFound("handoff %q not found", handoffID)
		}
		return nil, err
	}
	var env handoffEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, masc.BackendFatal("corrupt handoff %s: %v", handoffID, err)
	}

	switch env.Status {
	case masc.HandoffPending:
	case masc.HandoffExpired:
		return nil, masc.NotFound("handoff %q has expired", handoffID)
	default:
		return nil, masc.Conflict("handoff %q is %s (to_agent %q)", handoffID, env.Status, env.ToAgent)
	}
	if env.FromAgent == agentID {
		return nil, masc.Conflict("agent %q cannot claim its own handoff", agentID)
	}

	env.Status = masc.HandoffClaimed
	env.ToAgent = agentID
	env.ClaimedAt = s.clock.NowUnix()

	ok, err := s.casJSON(ctx, key, raw, &env)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, masc.Conflict("handoff %q was claimed concurrently", handoffID)
	}

	if _, err := s.notify(ctx, masc.MessageHandoffEvent, "handoff_claimed", agentID, map[string]interface{}{
		"handoff": handoffID,
		"to":      agentID,
	}); err != nil {
		s.logger.Warn("notify handoff_claimed", zap.Error(err))
	}
	return s.openHandoff(&env)
}

// HandoffView is a capsule plus its rendered resume prompt.
type HandoffView struct {
	Handoff masc.Handoff `json:"handoff"`
	Prompt  string       `json:"prompt"`
	Tokens  int          `json:"estimated_tokens"`
}

// HandoffGet returns the capsule and the markdown prompt a successor
// resumes from.
func (s *Store) HandoffGet(ctx context.Context, handoffID string) (*HandoffView, error) {
	env, err := s.handoffEnvelope(ctx, handoffID)
	if err != nil {
		return nil, err
	}
	h, err := s.openHandoff(env)
	if err != nil {
		return nil, err
	}
	prompt := handoff.RenderPrompt(h)
	return &HandoffView{
		Handoff: *h,
		Prompt:  prompt,
		Tokens:  handoff.EstimateTokens(prompt),
	}, nil
}

// HandoffAck marks a claimed capsule consumed. Only the claiming agent
// may ack; the success flag feeds the from-agent's handoff metrics.
func (s *Store) HandoffAck(ctx context.Context, handoffID, agentID string, success bool) (*masc.Handoff, error) {
	if handoffID == "" || agentID == "" {
		return nil, masc.InvalidArgument("handoff_ack requires handoff_id and agent_id")
	}

	key := masc.HandoffKey(s.cfg.Room, handoffID)
	var env handoffEnvelope
	err := s.withLock(ctx, "handoff:"+handoffID, func() error {
		if err := s.getJSON(ctx, key, &env); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				return masc.NotFound("handoff %q not found", handoffID)
			}
			return err
		}
		if env.Status != masc.HandoffClaimed {
			return masc.Conflict("handoff %q is %s, not claimed", handoffID, env.Status)
		}
		if env.ToAgent != agentID {
			return masc.Forbidden("handoff %q is claimed by %q, not %q", handoffID, env.ToAgent, agentID)
		}
		env.Status = masc.HandoffConsumed
		return s.setJSON(ctx, key, &env)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.notify(ctx, masc.MessageHandoffEvent, "handoff_consumed", agentID, map[string]interface{}{
		"handoff": handoffID,
		"success": success,
	}); err != nil {
		s.logger.Warn("notify handoff_consumed", zap.Error(err))
	}
	s.rec.Record(ctx, masc.TelemetryHandoffTriggered, map[string]interface{}{
		"handoff":    handoffID,
		"from_agent": env.FromAgent,
		"to_agent":   agentID,
		"acked":      true,
		"success":    success,
	})
	if _, err := s.graph.Reinforce(ctx, env.FromAgent, agentID, success); err != nil {
		s.logger.Warn("reinforce handoff edge", zap.Error(err))
	}
	return s.openHandoff(&env)
}

// Handoffs lists capsules, optionally filtered by status, newest first.
func (s *Store) Handoffs(ctx context.Context, status masc.HandoffStatus) ([]masc.Handoff, error) {
	keys, err := s.be.List(ctx, masc.HandoffPrefix(s.cfg.Room))
	if err != nil {
		return nil, err
	}
	out := make([]masc.Handoff, 0, len(keys))
	for _, key := range keys {
		var env handoffEnvelope
		if err := s.getJSON(ctx, key, &env); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				continue
			}
			return nil, err
		}
		if status != "" && env.Status != status {
			continue
		}
		h, err := s.openHandoff(&env)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) handoffEnvelope(ctx context.Context, handoffID string) (*handoffEnvelope, error) {
	var env handoffEnvelope
	if err := s.getJSON(ctx, masc.HandoffKey(s.cfg.Room, handoffID), &env); err != nil {
		if masc.IsKind(err, masc.KindNotFound) {
			return nil, masc.NotFound("handoff %q not found", handoffID)
		}
		return nil, err
	}
	return &env, nil
}
