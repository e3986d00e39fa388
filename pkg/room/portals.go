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

	"github.com/teradata-labs/masc/pkg/masc"
)

// PortalOpen creates a private channel between two agents, idempotent per
// unordered pair while a portal for that pair is open.
func (s *Store) PortalOpen(ctx context.Context, agentA, agentB string) (*masc.Portal, error) {
	if agentA == "" || agentB == "" || agentA == agentB {
		return nil, masc.InvalidArgument("portal requires two distinct agents")
	}
	if err := s.checkWritable(ctx); err != nil {
		return nil, err
	}
	for _, id := range []string{agentA, agentB} {
		if ok, err := s.agentExists(ctx, id); err != nil {
			return nil, err
		} else if !ok {
			return nil, masc.NotFound("agent %q not in room", id)
		}
	}

	// Pair order is normalised so a/b and b/a share one portal.
	if agentA > agentB {
		agentA, agentB = agentB, agentA
	}

	var portal masc.Portal
	err := s.withLock(ctx, "portal:"+agentA+"|"+agentB, func() error {
		existing, err := s.Portals(ctx)
		if err != nil {
			return err
		}
		for _, p := range existing {
			if p.Status == masc.PortalOpen && p.AgentA == agentA && p.AgentB == agentB {
				portal = p
				return nil
			}
		}
		portal = masc.Portal{
			ID:       s.ids.NewID(),
			AgentA:   agentA,
			AgentB:   agentB,
			OpenedAt: s.clock.NowUnix(),
			Status:   masc.PortalOpen,
		}
		return s.setJSON(ctx, masc.PortalKey(s.cfg.Room, portal.ID), &portal)
	})
	if err != nil {
		return nil, err
	}
	return &portal, nil
}

// PortalSend enqueues a payload to the peer's inbox. The inbox is bounded;
// overflow drops the oldest entry and emits an overflow notification.
func (s *Store) PortalSend(ctx context.Context, portalID, from string, payload json.RawMessage) error {
	if portalID == "" || from == "" {
		return masc.InvalidArgument("portal_send requires portal_id and from")
	}
	if len(payload) == 0 {
		return masc.InvalidArgument("portal_send requires a payload")
	}

	key := masc.PortalKey(s.cfg.Room, portalID)
	overflowed := false
	err := s.withLock(ctx, "portal:"+portalID, func() error {
		var portal masc.Portal
		if err := s.getJSON(ctx, key, &portal); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				return masc.NotFound("portal %q not found", portalID)
			}
			return err
		}
		if portal.Status != masc.PortalOpen {
			return masc.Conflict("portal %q is closed", portalID)
		}
		peer := portal.Peer(from)
		if peer == "" {
			return masc.Forbidden("agent %q is not a member of portal %q", from, portalID)
		}

		inbox := &portal.InboxA
		if peer == portal.AgentB {
			inbox = &portal.InboxB
		}
		*inbox = append(*inbox, payload)
		if len(*inbox) > s.cfg.PortalInboxCap {
			*inbox = (*inbox)[len(*inbox)-s.cfg.PortalInboxCap:]
			overflowed = true
		}
		return s.setJSON(ctx, key, &portal)
	})
	if err != nil {
		return err
	}

	if overflowed {
		if _, err := s.notify(ctx, masc.MessageSystem, "overflow", from, map[string]interface{}{
			"portal": portalID,
		}); err != nil {
			s.logger.Warn("notify portal overflow", zap.Error(err))
		}
	}
	return nil
}

// PortalRecv drains up to max payloads from the calling agent's inbox,
// oldest first.
func (s *Store) PortalRecv(ctx context.Context, portalID, agentID string, max int) ([]json.RawMessage, error) {
	if portalID == "" || agentID == "" {
		return nil, masc.InvalidArgument("portal_recv requires portal_id and agent_id")
	}
	if max <= 0 {
		max = s.cfg.PortalInboxCap
	}

	key := masc.PortalKey(s.cfg.Room, portalID)
	var drained []json.RawMessage
	err := s.withLock(ctx, "portal:"+portalID, func() error {
		var portal masc.Portal
		if err := s.getJSON(ctx, key, &portal); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				return masc.NotFound("portal %q not found", portalID)
			}
			return err
		}

		var inbox *[]json.RawMessage
		switch agentID {
		case portal.AgentA:
			inbox = &portal.InboxA
		case portal.AgentB:
			inbox = &portal.InboxB
		default:
			return masc.Forbidden("agent %q is not a member of portal %q", agentID, portalID)
		}

		n := len(*inbox)
		if n > max {
			n = max
		}
		drained = append(drained, (*inbox)[:n]...)
		*inbox = (*inbox)[n:]
		return s.setJSON(ctx, key, &portal)
	})
	if err != nil {
		return nil, err
	}
	return drained, nil
}

// PortalClose closes a portal; either member may close it.
func (s *Store) PortalClose(ctx context.Context, portalID, agentID string) error {
	if portalID == "" {
		return masc.InvalidArgument("portal_close requires a portal_id")
	}

	key := masc.PortalKey(s.cfg.Room, portalID)
	return s.withLock(ctx, "portal:"+portalID, func() error {
		var portal masc.Portal
		if err := s.getJSON(ctx, key, &portal); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				return masc.NotFound("portal %q not found", portalID)
			}
			return err
		}
		if agentID != "" && portal.Peer(agentID) == "" {
			return masc.Forbidden("agent %q is not a member of portal %q", agentID, portalID)
		}
		if portal.Status == masc.PortalClosed {
			return nil // idempotent
		}
		portal.Status = masc.PortalClosed
		return s.setJSON(ctx, key, &portal)
	})
}

// Portals lists all portals, open first, newest within each group.
func (s *Store) Portals(ctx context.Context) ([]masc.Portal, error) {
	keys, err := s.be.List(ctx, masc.PortalPrefix(s.cfg.Room))
	if err != nil {
		return nil, err
	}
	out := make([]masc.Portal, 0, len(keys))
	for _, key := range keys {
		var portal masc.Portal
		if err := s.getJSON(ctx, key, &portal); err != nil {
			if masc.IsKind(err, masc.KindNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, portal)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status == masc.PortalOpen
		}
		return out[i].OpenedAt > out[j].OpenedAt
	})
	return out, nil
}
