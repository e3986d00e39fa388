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
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/masc/pkg/masc"
)

// Pause stops mutating operations: subsequent writes fail with conflict
// until Resume. Leave and heartbeat stay allowed so agents can drain.
func (s *Store) Pause(ctx context.Context, reason string) (*masc.Room, error) {
	room, err := s.updateRoom(ctx, func(r *masc.Room) error {
		if r.Paused {
			return masc.Conflict("room is already paused: %s", r.PauseReason)
		}
		r.Paused = true
		r.PauseReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.notify(ctx, masc.MessageSystem, "room_paused", "", map[string]interface{}{
		"reason": reason,
	}); err != nil {
		s.logger.Warn("notify room_paused", zap.Error(err))
	}
	return room, nil
}

// Resume lifts a pause.
func (s *Store) Resume(ctx context.Context) (*masc.Room, error) {
	room, err := s.updateRoom(ctx, func(r *masc.Room) error {
		if !r.Paused {
			return masc.Conflict("room is not paused")
		}
		r.Paused = false
		r.PauseReason = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.notify(ctx, masc.MessageSystem, "room_resumed", "", nil); err != nil {
		s.logger.Warn("notify room_resumed", zap.Error(err))
	}
	return room, nil
}

// TempoGet returns the supervisor's current base interval.
func (s *Store) TempoGet(ctx context.Context) (time.Duration, error) {
	room, err := s.roomRecord(ctx)
	if err != nil {
		return 0, err
	}
	return time.Duration(room.Tempo * float64(time.Second)), nil
}

// TempoSet changes the supervisor's base interval.
func (s *Store) TempoSet(ctx context.Context, tempo time.Duration) (*masc.Room, error) {
	if tempo <= 0 {
		return nil, masc.InvalidArgument("tempo must be positive")
	}
	return s.updateRoom(ctx, func(r *masc.Room) error {
		r.Tempo = tempo.Seconds()
		return nil
	})
}

// ModeGet returns the room's active mode name.
func (s *Store) ModeGet(ctx context.Context) (string, error) {
	room, err := s.roomRecord(ctx)
	if err != nil {
		return "", err
	}
	return room.Mode, nil
}

// ModeSet switches the room's active mode. Which tool categories the mode
// enables is the dispatcher's concern; the store only records the name.
func (s *Store) ModeSet(ctx context.Context, mode string) (*masc.Room, error) {
	if mode == "" {
		return nil, masc.InvalidArgument("mode must not be empty")
	}
	room, err := s.updateRoom(ctx, func(r *masc.Room) error {
		r.Mode = mode
		return nil
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.notify(ctx, masc.MessageSystem, "mode_changed", "", map[string]interface{}{
		"mode": mode,
	}); err != nil {
		s.logger.Warn("notify mode_changed", zap.Error(err))
	}
	return room, nil
}

// Status is the room snapshot served by the status tool and REST surface.
type Status struct {
	Room            masc.Room      `json:"room"`
	Agents          map[string]int `json:"agents"` // by status
	Tasks           map[string]int `json:"tasks"`  // by status
	LastSeq         int64          `json:"last_seq"`
	Locks           int            `json:"locks"`
	OpenVotes       int            `json:"open_votes"`
	OpenPortals     int            `json:"open_portals"`
	PendingHandoffs int            `json:"pending_handoffs"`
}

// Status gathers the snapshot with plain reads; counts may trail
// concurrent writers by a moment.
func (s *Store) Status(ctx context.Context) (*Status, error) {
	room, err := s.roomRecord(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{
		Room:   *room,
		Agents: map[string]int{},
		Tasks:  map[string]int{},
	}

	agents, err := s.Agents(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range agents {
		st.Agents[string(a.Status)]++
	}

	tasks, err := s.Tasks(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		st.Tasks[string(t.Status)]++
	}

	if seq, err := s.lastSeq(ctx); err == nil {
		st.LastSeq = seq
	}

	locks, err := s.Locks(ctx)
	if err != nil {
		return nil, err
	}
	st.Locks = len(locks)

	votes, err := s.Votes(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range votes {
		if v.Status == masc.VoteOpen {
			st.OpenVotes++
		}
	}

	portals, err := s.Portals(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range portals {
		if p.Status == masc.PortalOpen {
			st.OpenPortals++
		}
	}

	handoffs, err := s.Handoffs(ctx, masc.HandoffPending)
	if err != nil {
		return nil, err
	}
	st.PendingHandoffs = len(handoffs)
	return st, nil
}

func (s *Store) roomRecord(ctx context.Context) (*masc.Room, error) {
	var room masc.Room
	if err := s.getJSON(ctx, masc.RoomKey(s.cfg.Room), &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Store) updateRoom(ctx context.Context, mutate func(*masc.Room) error) (*masc.Room, error) {
	var room masc.Room
	err := s.withLock(ctx, "room", func() error {
		if err := s.getJSON(ctx, masc.RoomKey(s.cfg.Room), &room); err != nil {
			return err
		}
		if err := mutate(&room); err != nil {
			return err
		}
		return s.setJSON(ctx, masc.RoomKey(s.cfg.Room), &room)
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}
