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
	"strconv"

	"go.uber.org/zap"

	"github.com/teradata-labs/masc/pkg/bus"
	"github.com/teradata-labs/masc/pkg/masc"
	"github.com/teradata-labs/masc/pkg/storage/backend"
)

// Every notification is also a message: state changes append to the room's
// message log under the "messages" lock, which assigns the next seq, and
// only then publish on the bus. Line i of the log carries seq i+1 with no
// gaps, so reads since a seq are direct log reads and the seq counter
// resumes correctly after a restart (a missing counter is re-derived from
// the log length).

// MaxMessageLimit bounds one Messages read.
const MaxMessageLimit = 1000

// appendMessage commits one message under the messages lock and returns it
// with its assigned seq.
func (s *Store) appendMessage(ctx context.Context, kind masc.MessageKind, sender string, priority masc.MessagePriority, payload json.RawMessage) (masc.Message, error) {
	var msg masc.Message
	err := s.withLock(ctx, "messages", func() error {
		seq, err := s.nextSeqLocked(ctx)
		if err != nil {
			return err
		}
		msg = masc.Message{
			Seq:       seq,
			Timestamp: s.clock.NowUnix(),
			Sender:    sender,
			Kind:      kind,
			Body:      payload,
			Priority:  priority,
		}
		line, err := json.Marshal(msg)
		if err != nil {
			return masc.BackendFatal("marshal message: %v", err)
		}
		return backend.Do(ctx, backend.DefaultRetry, func() error {
			return s.be.Append(ctx, masc.MessagesKey(s.cfg.Room), string(line))
		})
	})
	return msg, err
}

// nextSeqLocked advances the seq counter; the caller holds the messages
// lock.
func (s *Store) nextSeqLocked(ctx context.Context) (int64, error) {
	key := masc.SeqKey(s.cfg.Room)
	var seq int64
	raw, err := s.be.Get(ctx, key)
	switch {
	case err == nil:
		seq, err = strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, masc.BackendFatal("corrupt seq counter: %v", err)
		}
	case masc.IsKind(err, masc.KindNotFound):
		lines, readErr := s.be.ReadLog(ctx, masc.MessagesKey(s.cfg.Room), 0, 0)
		if readErr != nil {
			return 0, readErr
		}
		seq = int64(len(lines))
	default:
		return 0, err
	}

	seq++
	if err := s.be.Set(ctx, key, []byte(strconv.FormatInt(seq, 10))); err != nil {
		return 0, err
	}
	return seq, nil
}

// notify records a state change as a message and publishes the matching
// bus event. event is the fine-grained SSE kind ("task_claimed"); kind is
// the coarse classification persisted in the log.
func (s *Store) notify(ctx context.Context, kind masc.MessageKind, event, sender string, body interface{}) (int64, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, masc.BackendFatal("marshal message body: %v", err)
	}
	msg, err := s.appendMessage(ctx, kind, sender, masc.PriorityNormal, payload)
	if err != nil {
		return 0, err
	}

	s.bus.Publish(bus.Event{
		Seq:       msg.Seq,
		Kind:      event,
		Room:      s.cfg.Room,
		Timestamp: msg.Timestamp,
		Data:      payload,
	})
	return msg.Seq, nil
}

// Broadcast appends a message from sender to the room.
func (s *Store) Broadcast(ctx context.Context, sender string, body json.RawMessage, priority masc.MessagePriority) (*masc.Message, error) {
	if sender == "" {
		return nil, masc.InvalidArgument("broadcast requires a sender")
	}
	if len(body) == 0 {
		return nil, masc.InvalidArgument("broadcast requires a body")
	}
	if err := s.checkWritable(ctx); err != nil {
		return nil, err
	}
	switch priority {
	case "":
		priority = masc.PriorityNormal
	case masc.PriorityLow, masc.PriorityNormal, masc.PriorityHigh:
	default:
		return nil, masc.InvalidArgument("unknown priority %q", priority)
	}

	msg, err := s.appendMessage(ctx, masc.MessageBroadcast, sender, priority, body)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(bus.Event{
		Seq:       msg.Seq,
		Kind:      "message",
		Room:      s.cfg.Room,
		Timestamp: msg.Timestamp,
		Data:      msg.Body,
	})
	s.logger.Debug("broadcast", zap.String("sender", sender), zap.Int64("seq", msg.Seq))
	return &msg, nil
}

// lastSeq reads the current counter without advancing it.
func (s *Store) lastSeq(ctx context.Context) (int64, error) {
	raw, err := s.getRaw(ctx, masc.SeqKey(s.cfg.Room))
	if err != nil {
		if masc.IsKind(err, masc.KindNotFound) {
			return 0, nil
		}
		return 0, err
	}
	seq, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, masc.BackendFatal("corrupt seq counter: %v", err)
	}
	return seq, nil
}

// Messages returns messages with seq > sinceSeq, oldest first, at most
// limit (capped at MaxMessageLimit; <= 0 means the cap).
func (s *Store) Messages(ctx context.Context, sinceSeq int64, limit int) ([]masc.Message, error) {
	if sinceSeq < 0 {
		sinceSeq = 0
	}
	if limit <= 0 || limit > MaxMessageLimit {
		limit = MaxMessageLimit
	}

	// Line i holds seq i+1, so seq > sinceSeq starts at line sinceSeq.
	var lines []string
	err := backend.Do(ctx, backend.DefaultRetry, func() error {
		var readErr error
		lines, readErr = s.be.ReadLog(ctx, masc.MessagesKey(s.cfg.Room), int(sinceSeq), limit)
		return readErr
	})
	if err != nil {
		return nil, err
	}

	out := make([]masc.Message, 0, len(lines))
	for _, line := range lines {
		var msg masc.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return nil, masc.BackendFatal("corrupt message log: %v", err)
		}
		out = append(out, msg)
	}
	return out, nil
}
