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
	"sort"

	"github.com/teradata-labs/masc/pkg/handoff"
	"github.com/teradata-labs/masc/pkg/masc"
)

// CreditRecord charges one tool call to an agent's ledger, estimating
// token counts from the request and response text. The dispatcher calls
// this on every authenticated tool call; failures here never fail the
// call itself.
func (s *Store) CreditRecord(ctx context.Context, agentID, input, output string) (*masc.Credit, error) {
	if agentID == "" {
		return nil, masc.InvalidArgument("credit record requires agent_id")
	}
	return s.creditAdd(ctx, agentID, int64(handoff.EstimateTokens(input)), int64(handoff.EstimateTokens(output)))
}

// CreditAdd adds pre-counted token usage to an agent's ledger.
func (s *Store) CreditAdd(ctx context.Context, agentID string, tokensIn, tokensOut int64) (*masc.Credit, error) {
	if agentID == "" {
		return nil, masc.InvalidArgument("credit add requires agent_id")
	}
	if tokensIn < 0 || tokensOut < 0 {
		return nil, masc.InvalidArgument("token counts must be non-negative")
	}
	return s.creditAdd(ctx, agentID, tokensIn, tokensOut)
}

func (s *Store) creditAdd(ctx context.Context, agentID string, tokensIn, tokensOut int64) (*masc.Credit, error) {
	key := masc.CreditKey(s.cfg.Room, agentID)
	var credit masc.Credit
	err := s.withLock(ctx, "credits:"+agentID, func() error {
		if err := s.getJSON(ctx, key, &credit); err != nil {
			if !masc.IsKind(err, masc.KindNotFound) {
				return err
			}
			credit = masc.Credit{AgentID: agentID}
		}
		credit.TokensIn += tokensIn
		credit.TokensOut += tokensOut
		credit.Calls++
		credit.UpdatedAt = s.clock.NowUnix()
		return s.setJSON(ctx, key, &credit)
	})
	if err != nil {
		return nil, err
	}
	return &credit, nil
}

// Credit returns one agent's ledger; agents with no usage are not_found.
func (s *Store) Credit(ctx context.Context, agentID string) (*masc.Credit, error) {
	var credit masc.Credit
	if err := s.getJSON(ctx, masc.CreditKey(s.cfg.Room, agentID), &credit); err != nil {
		if masc.IsKind(err, masc.KindNotFound) {
			return nil, masc.NotFound("no credits recorded for agent %q", agentID)
		}
		return nil, err
	}
	return &credit, nil
}

// Credits lists every agent's ledger sorted by agent id.
func (s *Store) Credits(ctx context.Context) ([]masc.Credit, error) {
	keys, err := s.be.List(ctx, masc.CreditPrefix(s.cfg.Room))
	if err != nil {
		return nil, err
	}
	out := make([]masc.Credit, 0, len(keys))
	for _, key := range keys {
		var credit masc.Credit
		if err := s.getJSON(ctx, key, &credit); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, credit)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}
