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

	"github.com/teradata-labs/masc/pkg/masc"
)

func (r *Registry) registerVoting() {
	s := r.deps.Store

	r.register(Tool{
		Name:        "masc_vote_create",
		Description: "Open a vote on a topic with a fixed option list.",
		Category:    "voting",
		InputSchema: objectSchema(
			reqProp("topic", "string", "What is being decided"),
			reqArrayProp("options", "string", "Choices; at least two"),
			reqProp("agent_id", "string", "Creating agent"),
			prop("closes_in", "number", "Seconds until the vote auto-closes"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				Topic    string   `json:"topic"`
				Options  []string `json:"options"`
				AgentID  string   `json:"agent_id"`
				ClosesIn float64  `json:"closes_in"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			closesAt := 0.0
			if p.ClosesIn > 0 {
				closesAt = s.Clock().NowUnix() + p.ClosesIn
			}
			return s.VoteCreate(ctx, p.Topic, p.Options, p.AgentID, closesAt)
		},
	})

	r.register(Tool{
		Name:        "masc_vote_cast",
		Description: "Cast or change a ballot on an open vote.",
		Category:    "voting",
		InputSchema: objectSchema(
			reqProp("vote_id", "string", "Vote to ballot on"),
			reqProp("agent_id", "string", "Voting agent"),
			reqProp("option", "string", "One of the vote's options"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				VoteID  string `json:"vote_id"`
				AgentID string `json:"agent_id"`
				Option  string `json:"option"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.VoteCast(ctx, p.VoteID, p.AgentID, p.Option)
		},
	})

	r.register(Tool{
		Name:        "masc_vote_status",
		Description: "Tally an open or closed vote.",
		Category:    "voting",
		InputSchema: objectSchema(
			reqProp("vote_id", "string", "Vote to tally"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				VoteID string `json:"vote_id"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.VoteStatus(ctx, p.VoteID)
		},
	})

	r.register(Tool{
		Name:        "masc_vote_close",
		Description: "Close a vote and publish the final tally.",
		Category:    "voting",
		InputSchema: objectSchema(
			reqProp("vote_id", "string", "Vote to close"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				VoteID string `json:"vote_id"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.VoteClose(ctx, p.VoteID)
		},
	})
}
