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

// Package bus is the in-process notification fan-out between the Room Store
// and SSE subscribers. Every event carries the monotone seq assigned at
// commit time; the bus retains a bounded window of recent events so a
// reconnecting subscriber can replay from its Last-Event-ID, and each
// subscriber owns a bounded ring so one slow client never blocks a
// publisher.
package bus

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/masc/internal/log"
)

// Synthetic event kinds emitted by the bus itself.
const (
	// KindLag tells a subscriber its ring overflowed and events were lost.
	KindLag = "lag"
	// KindResumeGap tells a resuming subscriber the requested seq fell off
	// the retained window; it must refetch state.
	KindResumeGap = "resume_gap"
	// KindShutdown is the final event on every stream at drain time.
	KindShutdown = "shutdown"
)

// Event is one notification. Seq is 0 only on synthetic events.
type Event struct {
	Seq       int64           `json:"seq,omitempty"`
	Kind      string          `json:"kind"`
	Room      string          `json:"room,omitempty"`
	Timestamp float64         `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Options sizes the bus.
type Options struct {
	// RetainedCapacity bounds the replay window shared by all subscribers.
	RetainedCapacity int
	// SubscriberCapacity bounds each subscriber's ring.
	SubscriberCapacity int
}

// DefaultOptions match the documented defaults: 1024-event rings.
func DefaultOptions() Options {
	return Options{RetainedCapacity: 1024, SubscriberCapacity: 1024}
}

// Bus fans events out to subscribers. Safe for concurrent use.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*Subscription

	retained *retainedRing

	subCap int
	logger *zap.Logger

	totalPublished atomic.Int64
	totalDropped   atomic.Int64

	closed atomic.Bool
}

// New creates a bus with the given buffer sizes.
func New(opts Options) *Bus {
	if opts.RetainedCapacity <= 0 {
		opts.RetainedCapacity = 1024
	}
	if opts.SubscriberCapacity <= 0 {
		opts.SubscriberCapacity = 1024
	}
	return &Bus{
		subs:     make(map[string]*Subscription),
		retained: newRetainedRing(opts.RetainedCapacity),
		subCap:   opts.SubscriberCapacity,
		logger:   log.Named("bus"),
	}
}

// Publish retains the event and delivers it to every matching subscriber.
// Delivery never blocks: a full subscriber ring evicts its oldest event and
// the loss is reported to that subscriber as a lag event. Returns the
// number of subscribers reached and the number of evictions.
func (b *Bus) Publish(ev Event) (delivered, dropped int) {
	if b.closed.Load() {
		return 0, 0
	}
	if ev.Seq > 0 {
		b.retained.add(ev)
	}

	b.mu.RLock()
	for _, sub := range b.subs {
		if !sub.matches(ev) {
			continue
		}
		if sub.push(ev) {
			delivered++
		} else {
			dropped++
		}
	}
	b.mu.RUnlock()

	b.totalPublished.Add(1)
	b.totalDropped.Add(int64(dropped))

	b.logger.Debug("publish",
		zap.Int64("seq", ev.Seq),
		zap.String("kind", ev.Kind),
		zap.Int("delivered", delivered),
		zap.Int("dropped", dropped))
	return delivered, dropped
}

// SubscribeOptions filter and position a new subscription.
type SubscribeOptions struct {
	// Room restricts delivery to one room; empty means all.
	Room string
	// Kinds restricts delivery to the listed kinds; empty means all.
	// Synthetic bus events always pass.
	Kinds []string
	// SinceSeq replays retained events with seq > SinceSeq before live
	// delivery. Negative means "live only".
	SinceSeq int64
}

// Subscribe registers a subscriber and starts its delivery pump. When
// opts.SinceSeq names a seq already evicted from the retained window the
// first delivered event is a resume_gap.
func (b *Bus) Subscribe(id string, opts SubscribeOptions) (*Subscription, error) {
	if b.closed.Load() {
		return nil, fmt.Errorf("bus is closed")
	}
	if id == "" {
		id = fmt.Sprintf("sub-%d", time.Now().UnixNano())
	}

	sub := newSubscription(id, b.subCap, opts)

	if opts.SinceSeq >= 0 {
		events, gapped := b.retained.eventsAfter(opts.SinceSeq)
		if gapped {
			floor := b.retained.floor()
			data, _ := json.Marshal(map[string]int64{
				"floor":     floor,
				"requested": opts.SinceSeq,
			})
			sub.push(Event{Kind: KindResumeGap, Data: data})
		}
		for _, ev := range events {
			if sub.matches(ev) {
				sub.push(ev)
			}
		}
	}

	b.mu.Lock()
	if old, ok := b.subs[id]; ok {
		old.close()
	}
	b.subs[id] = sub
	b.mu.Unlock()

	go sub.pump()

	b.logger.Debug("subscribe",
		zap.String("id", id),
		zap.String("room", opts.Room),
		zap.Int64("since_seq", opts.SinceSeq))
	return sub, nil
}

// Unsubscribe stops a subscription and releases its buffers.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()
	if ok {
		sub.close()
	}
}

// Stats reports counters for the metrics endpoint.
func (b *Bus) Stats() (subscribers int, published, dropped int64) {
	b.mu.RLock()
	subscribers = len(b.subs)
	b.mu.RUnlock()
	return subscribers, b.totalPublished.Load(), b.totalDropped.Load()
}

// Close delivers a shutdown event to every subscriber and stops the bus.
func (b *Bus) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = make(map[string]*Subscription)
	b.mu.Unlock()

	for _, s := range subs {
		s.push(Event{Kind: KindShutdown})
		s.closeAfterDrain()
	}
}

// retainedRing is the shared replay window: a circular buffer of the most
// recent committed events, ordered by seq.
type retainedRing struct {
	mu    sync.RWMutex
	buf   []Event
	start int
	size  int
}

func newRetainedRing(capacity int) *retainedRing {
	return &retainedRing{buf: make([]Event, capacity)}
}

func (r *retainedRing) add(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = ev
		r.size++
		return
	}
	r.buf[r.start] = ev
	r.start = (r.start + 1) % len(r.buf)
}

// floor returns the lowest retained seq, or 0 when empty.
func (r *retainedRing) floor() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.size == 0 {
		return 0
	}
	return r.buf[r.start].Seq
}

// eventsAfter returns retained events with seq > since, and whether the
// request reaches below the retained floor.
func (r *retainedRing) eventsAfter(since int64) ([]Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.size == 0 {
		return nil, false
	}
	oldest := r.buf[r.start].Seq
	// since below (oldest-1) means events in (since, oldest) are gone.
	gapped := since < oldest-1

	var out []Event
	for i := 0; i < r.size; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.Seq > since {
			out = append(out, ev)
		}
	}
	return out, gapped
}
