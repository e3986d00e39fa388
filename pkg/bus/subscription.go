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
package bus

import (
	"encoding/json"
	"sync"
)

// Subscription is one subscriber's view of the bus: a bounded ring filled
// by publishers and drained by a pump goroutine into Events(). Consumers
// range over Events() until it closes.
type Subscription struct {
	id   string
	opts SubscribeOptions

	mu      sync.Mutex
	cond    *sync.Cond
	ring    []Event
	start   int
	size    int
	lagged  int64
	closing bool
	drain   bool

	out chan Event

	lastSeen int64
}

func newSubscription(id string, capacity int, opts SubscribeOptions) *Subscription {
	s := &Subscription{
		id:   id,
		opts: opts,
		ring: make([]Event, capacity),
		out:  make(chan Event, 16),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// ID returns the subscriber id.
func (s *Subscription) ID() string { return s.id }

// Events is the delivery channel. It closes when the subscription ends.
func (s *Subscription) Events() <-chan Event { return s.out }

// LastSeen returns the highest seq handed to the consumer so far.
func (s *Subscription) LastSeen() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// matches applies the room and kind filters. Synthetic bus events (seq 0)
// always pass so lag/resume_gap/shutdown reach every subscriber.
func (s *Subscription) matches(ev Event) bool {
	if ev.Seq == 0 {
		return true
	}
	if s.opts.Room != "" && ev.Room != "" && ev.Room != s.opts.Room {
		return false
	}
	if len(s.opts.Kinds) == 0 {
		return true
	}
	for _, k := range s.opts.Kinds {
		if k == ev.Kind {
			return true
		}
	}
	return false
}

// push enqueues the event, evicting the oldest on overflow. Returns false
// when an eviction happened; the loss is reported to the consumer as a lag
// event ahead of the next delivery.
func (s *Subscription) push(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}

	ok := true
	if s.size == len(s.ring) {
		s.start = (s.start + 1) % len(s.ring)
		s.size--
		s.lagged++
		ok = false
	}
	s.ring[(s.start+s.size)%len(s.ring)] = ev
	s.size++
	s.cond.Signal()
	return ok
}

// pump moves events from the ring to the outbound channel. It runs as one
// goroutine per subscription and exits when the subscription closes (after
// draining, if requested).
func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		for s.size == 0 && !s.closing {
			s.cond.Wait()
		}
		if s.size == 0 && s.closing {
			s.mu.Unlock()
			return
		}

		var pending []Event
		if s.lagged > 0 {
			data, _ := json.Marshal(map[string]int64{"dropped": s.lagged})
			pending = append(pending, Event{Kind: KindLag, Data: data})
			s.lagged = 0
		}
		ev := s.ring[s.start]
		s.start = (s.start + 1) % len(s.ring)
		s.size--
		closing, drain := s.closing, s.drain
		s.mu.Unlock()

		pending = append(pending, ev)
		for _, e := range pending {
			s.out <- e
			if e.Seq > 0 {
				s.mu.Lock()
				if e.Seq > s.lastSeen {
					s.lastSeen = e.Seq
				}
				s.mu.Unlock()
			}
		}

		if closing && !drain {
			return
		}
	}
}

// close stops the subscription immediately; undelivered events are lost.
func (s *Subscription) close() {
	s.mu.Lock()
	s.closing = true
	s.drain = false
	s.size = 0
	s.cond.Signal()
	s.mu.Unlock()
}

// closeAfterDrain stops the subscription once its ring has been delivered,
// used at shutdown so the final shutdown event reaches the consumer.
func (s *Subscription) closeAfterDrain() {
	s.mu.Lock()
	s.closing = true
	s.drain = true
	s.cond.Signal()
	s.mu.Unlock()
}
