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

// Package room implements the Room Store: the sole owner of every mutable
// coordination entity. Each exported method validates, takes the minimum
// backend locks, reads, checks invariants, writes (CAS where concurrent
// claims race), and publishes notifications carrying the commit-assigned
// seq. Every read handed out is a value copy; nothing shares memory with
// callers.
package room

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/masc/internal/log"
	"github.com/teradata-labs/masc/pkg/bus"
	"github.com/teradata-labs/masc/pkg/crypt"
	"github.com/teradata-labs/masc/pkg/hebbian"
	"github.com/teradata-labs/masc/pkg/masc"
	"github.com/teradata-labs/masc/pkg/storage/backend"
	"github.com/teradata-labs/masc/pkg/telemetry"
)

// Config carries the room's tunable intervals and bounds. Zero values fall
// back to the documented defaults.
type Config struct {
	Cluster string
	Room    string

	HeartbeatTTL      time.Duration // active agent must beat within this
	ZombieTTL         time.Duration // zombie is GCed after this
	HandoffTTL        time.Duration // pending capsule expiry
	HandoffConsumeTTL time.Duration // claimed-but-unconsumed return window
	InterruptTTL      time.Duration // interrupted checkpoint auto-reject
	LockTTL           time.Duration // 0 = locks never expire
	Tempo             time.Duration // base supervisor interval
	ConcurrencyTarget int           // active tasks per unit of tempo load
	PortalInboxCap    int
	Mode              string
}

func (c Config) withDefaults() Config {
	if c.Room == "" {
		c.Room = "main"
	}
	if c.HeartbeatTTL <= 0 {
		c.HeartbeatTTL = 120 * time.Second
	}
	if c.ZombieTTL <= 0 {
		c.ZombieTTL = 600 * time.Second
	}
	if c.HandoffTTL <= 0 {
		c.HandoffTTL = 1800 * time.Second
	}
	if c.HandoffConsumeTTL <= 0 {
		c.HandoffConsumeTTL = 600 * time.Second
	}
	if c.InterruptTTL <= 0 {
		c.InterruptTTL = 3600 * time.Second
	}
	if c.Tempo <= 0 {
		c.Tempo = 30 * time.Second
	}
	if c.ConcurrencyTarget <= 0 {
		c.ConcurrencyTarget = 8
	}
	if c.PortalInboxCap <= 0 {
		c.PortalInboxCap = 64
	}
	if c.Mode == "" {
		c.Mode = "default"
	}
	return c
}

// Store is the canonical state owner for one room.
type Store struct {
	be     backend.Backend
	bus    *bus.Bus
	rec    *telemetry.Recorder
	clock  masc.Clock
	ids    masc.IDGenerator
	sealer *crypt.Sealer
	graph  *hebbian.Graph
	logger *zap.Logger

	cfg Config
}

// Options wires a Store's collaborators. Backend and Bus are required;
// nil Clock, IDs and Sealer fall back to system clock, UUID v4 and
// pass-through.
type Options struct {
	Backend backend.Backend
	Bus     *bus.Bus
	Clock   masc.Clock
	IDs     masc.IDGenerator
	Sealer  *crypt.Sealer
	Config  Config
}

// New creates the store and ensures the room record exists.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Backend == nil {
		return nil, masc.InvalidArgument("room store requires a backend")
	}
	if opts.Bus == nil {
		return nil, masc.InvalidArgument("room store requires a bus")
	}
	if opts.Clock == nil {
		opts.Clock = masc.SystemClock()
	}
	if opts.IDs == nil {
		opts.IDs = masc.RandomIDs()
	}
	cfg := opts.Config.withDefaults()

	s := &Store{
		be:     opts.Backend,
		bus:    opts.Bus,
		rec:    telemetry.NewRecorder(opts.Backend, cfg.Room, opts.Clock),
		clock:  opts.Clock,
		ids:    opts.IDs,
		sealer: opts.Sealer,
		graph:  hebbian.New(opts.Backend, cfg.Room, opts.Clock),
		logger: log.Named("room").With(zap.String("room", cfg.Room)),
		cfg:    cfg,
	}
	if err := s.ensureRoom(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Room returns the room id the store owns.
func (s *Store) Room() string { return s.cfg.Room }

// Clock exposes the store's clock to collaborators (supervisor, server).
func (s *Store) Clock() masc.Clock { return s.clock }

// Telemetry exposes the recorder for the dispatcher's tool_called events.
func (s *Store) Telemetry() *telemetry.Recorder { return s.rec }

// Synapses exposes the Hebbian graph for the discovery tools.
func (s *Store) Synapses() *hebbian.Graph { return s.graph }

// Config returns the effective configuration.
func (s *Store) Config() Config { return s.cfg }

// ensureRoom creates the room record on first start.
func (s *Store) ensureRoom(ctx context.Context) error {
	key := masc.RoomKey(s.cfg.Room)
	_, err := s.be.Get(ctx, key)
	if err == nil {
		return nil
	}
	if !masc.IsKind(err, masc.KindNotFound) {
		return err
	}
	room := masc.Room{
		Cluster:   s.cfg.Cluster,
		RoomID:    s.cfg.Room,
		CreatedAt: s.clock.NowUnix(),
		Mode:      s.cfg.Mode,
		Tempo:     s.cfg.Tempo.Seconds(),
	}
	raw, err := json.Marshal(room)
	if err != nil {
		return masc.BackendFatal("marshal room: %v", err)
	}
	// Lost creation race means another process made it; that is fine.
	_, err = s.be.CAS(ctx, key, nil, raw)
	return err
}

// getJSON reads and decodes one entity, retrying transients.
func (s *Store) getJSON(ctx context.Context, key string, v interface{}) error {
	return backend.Do(ctx, backend.DefaultRetry, func() error {
		raw, err := s.be.Get(ctx, key)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return masc.BackendFatal("corrupt record at %s: %v", key, err)
		}
		return nil
	})
}

// setJSON encodes and writes one entity, retrying transients.
func (s *Store) setJSON(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return masc.BackendFatal("marshal %s: %v", key, err)
	}
	return backend.Do(ctx, backend.DefaultRetry, func() error {
		return s.be.Set(ctx, key, raw)
	})
}

// casJSON writes v only if the stored bytes still equal expected (nil =
// create). Reports false on a lost race.
func (s *Store) casJSON(ctx context.Context, key string, expected []byte, v interface{}) (bool, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return false, masc.BackendFatal("marshal %s: %v", key, err)
	}
	var ok bool
	err = backend.Do(ctx, backend.DefaultRetry, func() error {
		var casErr error
		ok, casErr = s.be.CAS(ctx, key, expected, raw)
		return casErr
	})
	return ok, err
}

// getRaw reads the raw bytes of one entity for a later CAS.
func (s *Store) getRaw(ctx context.Context, key string) ([]byte, error) {
	var raw []byte
	err := backend.Do(ctx, backend.DefaultRetry, func() error {
		var getErr error
		raw, getErr = s.be.Get(ctx, key)
		return getErr
	})
	return raw, err
}

// withLock runs fn under the backend advisory lock for scope.
func (s *Store) withLock(ctx context.Context, scope string, fn func() error) error {
	unlock, err := s.be.Lock(ctx, scope)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// checkWritable rejects mutations while the room is paused. Lifecycle
// operations (leave, heartbeat) stay exempt so a paused room can still
// drain cleanly.
func (s *Store) checkWritable(ctx context.Context) error {
	var room masc.Room
	if err := s.getJSON(ctx, masc.RoomKey(s.cfg.Room), &room); err != nil {
		if masc.IsKind(err, masc.KindNotFound) {
			return nil
		}
		return err
	}
	if room.Paused {
		return masc.Conflict("room is paused: %s", room.PauseReason)
	}
	return nil
}
