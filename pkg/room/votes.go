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

	"go.uber.org/zap"

	"github.com/teradata-labs/masc/pkg/masc"
)

// VoteCreate opens a vote over at least two options.
func (s *Store) VoteCreate(ctx context.Context, topic string, options []string, createdBy string, closesAt float64) (*masc.Vote, error) {
	if topic == "" {
		return nil, masc.InvalidArgument("vote requires a topic")
	}
	if len(options) < 2 {
		return nil, masc.InvalidArgument("vote requires at least two options")
	}
	seen := make(map[string]struct{}, len(options))
	for _, opt := range options {
		if opt == "" {
			return nil, masc.InvalidArgument("vote options must be non-empty")
		}
		if _, dup := seen[opt]; dup {
			return nil, masc.InvalidArgument("duplicate option %q", opt)
		}
		seen[opt] = struct{}{}
	}
	if err := s.checkWritable(ctx); err != nil {
		return nil, err
	}

	vote := masc.Vote{
		ID:        s.ids.NewID(),
		Topic:     topic,
		Options:   options,
		CreatedBy: createdBy,
		OpenedAt:  s.clock.NowUnix(),
		ClosesAt:  closesAt,
		Status:    masc.VoteOpen,
		Ballots:   map[string]string{},
	}
	if err := s.setJSON(ctx, masc.VoteKey(s.cfg.Room, vote.ID), &vote); err != nil {
		return nil, err
	}

	if _, err := s.notify(ctx, masc.MessageSystem, "vote_created", createdBy, map[string]interface{}{
		"vote":    vote.ID,
		"topic":   topic,
		"options": options,
	}); err != nil {
		s.logger.Warn("notify vote_created", zap.Error(err))
	}
	return &vote, nil
}

// VoteCast records one ballot per agent, overwriting a re-cast. Casting on
// a closed vote or for an unknown option is a conflict/invalid_argument.
func (s *Store) VoteCast(ctx context.Context, voteID, agentID, option string) (*masc.Vote, error) {
	if voteID == "" || agentID == "" || option == "" {
		return nil, masc.InvalidArgument("vote_cast requires vote_id, agent_id and option")
	}

	key := masc.VoteKey(s.cfg.Room, voteID)
	var vote masc.Vote
	err := s.withLock(ctx, "vote:"+voteID, func() error {
		if err := s.getJSON(ctx, key, &vote); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				return masc.NotFound("vote %q not found", voteID)
			}
			return err
		}
		if vote.Status == masc.VoteClosed {
			return masc.Conflict("vote %q is closed", voteID)
		}
		valid := false
		for _, opt := range vote.Options {
			if opt == option {
				valid = true
				break
			}
		}
		if !valid {
			return masc.InvalidArgument("option %q is not on vote %q", option, voteID)
		}
		if vote.Ballots == nil {
			vote.Ballots = map[string]string{}
		}
		vote.Ballots[agentID] = option
		return s.setJSON(ctx, key, &vote)
	})
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

// VoteResult is the tallied state of a vote.
type VoteResult struct {
	Vote   masc.Vote      `json:"vote"`
	Counts map[string]int `json:"counts"`
	Leader string         `json:"leader"`
}

// VoteStatus tallies the current ballots.
func (s *Store) VoteStatus(ctx context.Context, voteID string) (*VoteResult, error) {
	var vote masc.Vote
	if err := s.getJSON(ctx, masc.VoteKey(s.cfg.Room, voteID), &vote); err != nil {
		if masc.IsKind(err, masc.KindNotFound) {
			return nil, masc.NotFound("vote %q not found", voteID)
		}
		return nil, err
	}
	counts, leader := vote.Tally()
	return &VoteResult{Vote: vote, Counts: counts, Leader: leader}, nil
}

// VoteClose freezes the ballots and returns the final tally. Closing an
// already-closed vote is a conflict.
func (s *Store) VoteClose(ctx context.Context, voteID string) (*VoteResult, error) {
	if voteID == "" {
		return nil, masc.InvalidArgument("vote_close requires a vote_id")
	}

	key := masc.VoteKey(s.cfg.Room, voteID)
	var vote masc.Vote
	err := s.withLock(ctx, "vote:"+voteID, func() error {
		if err := s.getJSON(ctx, key, &vote); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				return masc.NotFound("vote %q not found", voteID)
			}
			return err
		}
		if vote.Status == masc.VoteClosed {
			return masc.Conflict("vote %q is already closed", voteID)
		}
		vote.Status = masc.VoteClosed
		return s.setJSON(ctx, key, &vote)
	})
	if err != nil {
		return nil, err
	}

	counts, leader := vote.Tally()
	if _, err := s.notify(ctx, masc.MessageSystem, "vote_closed", "", map[string]interface{}{
		"vote":   voteID,
		"leader": leader,
		"counts": counts,
	}); err != nil {
		s.logger.Warn("notify vote_closed", zap.Error(err))
	}
	return &VoteResult{Vote: vote, Counts: counts, Leader: leader}, nil
}

// Votes lists the room's votes, open first, newest within each group.
func (s *Store) Votes(ctx context.Context) ([]masc.Vote, error) {
	keys, err := s.be.List(ctx, masc.VotePrefix(s.cfg.Room))
	if err != nil {
		return nil, err
	}
	out := make([]masc.Vote, 0, len(keys))
	for _, key := range keys {
		var vote masc.Vote
		if err := s.getJSON(ctx, key, &vote); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, vote)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status == masc.VoteOpen
		}
		return out[i].OpenedAt > out[j].OpenedAt
	})
	return out, nil
}
