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

// Package supervisor runs the room's lifecycle loops: the adaptive sweep
// pass (zombies, expiries, cache, interrupts) and the scheduled
// maintenance jobs (telemetry rotation, Hebbian consolidation).
package supervisor

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/teradata-labs/masc/internal/log"
	"github.com/teradata-labs/masc/pkg/bus"
	"github.com/teradata-labs/masc/pkg/masc"
	"github.com/teradata-labs/masc/pkg/metrics"
	"github.com/teradata-labs/masc/pkg/room"
)

// Interval clamps for the adaptive tempo.
const (
	minInterval = 5 * time.Second
	maxInterval = 300 * time.Second
)

// Default cron schedules, overridable for tests.
const (
	defaultRotateSpec      = "0 3 * * *"
	defaultConsolidateSpec = "30 3 * * *"
)

// Options wires the supervisor's collaborators.
type Options struct {
	Store *room.Store
	Bus   *bus.Bus

	// RotateSpec and ConsolidateSpec are cron expressions for the
	// telemetry archive and synapse consolidation jobs.
	RotateSpec      string
	ConsolidateSpec string
}

// Supervisor owns the sweep loop and the cron scheduler.
type Supervisor struct {
	store  *room.Store
	bus    *bus.Bus
	cron   *cron.Cron
	logger *zap.Logger

	// lastDropped tracks the bus drop counter between passes so the
	// Prometheus counter only sees deltas.
	lastDropped int64
}

// New builds the supervisor and registers the cron jobs.
func New(opts Options) (*Supervisor, error) {
	s := &Supervisor{
		store:  opts.Store,
		bus:    opts.Bus,
		cron:   cron.New(),
		logger: log.Named("supervisor"),
	}

	rotateSpec := opts.RotateSpec
	if rotateSpec == "" {
		rotateSpec = defaultRotateSpec
	}
	consolidateSpec := opts.ConsolidateSpec
	if consolidateSpec == "" {
		consolidateSpec = defaultConsolidateSpec
	}

	if _, err := s.cron.AddFunc(rotateSpec, s.rotateTelemetry); err != nil {
		return nil, masc.InvalidArgument("rotate schedule %q: %v", rotateSpec, err)
	}
	if _, err := s.cron.AddFunc(consolidateSpec, s.consolidateSynapses); err != nil {
		return nil, masc.InvalidArgument("consolidate schedule %q: %v", consolidateSpec, err)
	}
	return s, nil
}

// Run drives sweep passes until ctx is cancelled. The first pass happens
// immediately so a restarted server converges without waiting a tempo.
func (s *Supervisor) Run(ctx context.Context) error {
	s.cron.Start()
	defer s.cron.Stop()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			s.Pass(ctx)
			timer.Reset(s.interval(ctx))
		}
	}
}

// Pass runs one sweep over every lifecycle concern and refreshes the
// room gauges. Individual sweep failures are logged, not fatal: a
// transient backend error must not stop the loop.
func (s *Supervisor) Pass(ctx context.Context) {
	sweeps := []struct {
		name string
		fn   func(context.Context) (int, error)
	}{
		{"zombies", s.store.SweepZombies},
		{"handoffs", s.store.ExpireHandoffs},
		{"votes", s.store.AutoCloseVotes},
		{"locks", s.store.ExpireLocks},
		{"cache", s.store.SweepCache},
		{"interrupts", s.store.TimeoutInterrupts},
	}
	for _, sweep := range sweeps {
		n, err := sweep.fn(ctx)
		if err != nil {
			s.logger.Warn("sweep failed", zap.String("sweep", sweep.name), zap.Error(err))
			continue
		}
		if n > 0 {
			s.logger.Info("sweep", zap.String("sweep", sweep.name), zap.Int("changed", n))
		}
	}
	s.refreshGauges(ctx)
}

// interval computes the next pass delay: base tempo scaled by load,
// clamped to [5s, 300s].
func (s *Supervisor) interval(ctx context.Context) time.Duration {
	base, err := s.store.TempoGet(ctx)
	if err != nil {
		s.logger.Warn("tempo read failed", zap.Error(err))
		return minInterval
	}
	load, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("load read failed", zap.Error(err))
		load = 0
	}

	next := time.Duration(float64(base) * (1 + load))
	if next < minInterval {
		next = minInterval
	}
	if next > maxInterval {
		next = maxInterval
	}
	return next
}

func (s *Supervisor) refreshGauges(ctx context.Context) {
	status, err := s.store.Status(ctx)
	if err != nil {
		s.logger.Warn("status read failed", zap.Error(err))
		return
	}

	// Set every known label so emptied statuses drop back to zero.
	for _, st := range []masc.AgentStatus{masc.AgentActive, masc.AgentIdle, masc.AgentBusy, masc.AgentZombie, masc.AgentLeft} {
		metrics.ActiveAgents.WithLabelValues(string(st)).Set(float64(status.Agents[string(st)]))
	}
	for _, st := range []masc.TaskStatus{masc.TaskPending, masc.TaskClaimed, masc.TaskInProgress, masc.TaskDone, masc.TaskCancelled} {
		metrics.Tasks.WithLabelValues(string(st)).Set(float64(status.Tasks[string(st)]))
	}
	metrics.LastSeq.Set(float64(status.LastSeq))

	if load, err := s.store.Load(ctx); err == nil {
		metrics.RoomLoad.Set(load)
	}
	if s.bus != nil {
		_, _, dropped := s.bus.Stats()
		if delta := dropped - s.lastDropped; delta > 0 {
			metrics.BusDropsTotal.Add(float64(delta))
		}
		s.lastDropped = dropped
	}
}

func (s *Supervisor) rotateTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := s.store.Telemetry().Rotate(ctx)
	if err != nil {
		s.logger.Warn("telemetry rotation failed", zap.Error(err))
		return
	}
	s.logger.Info("telemetry rotated", zap.Int("archived", n))
}

func (s *Supervisor) consolidateSynapses() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := s.store.Synapses().Consolidate(ctx)
	if err != nil {
		s.logger.Warn("synapse consolidation failed", zap.Error(err))
		return
	}
	s.logger.Info("synapses consolidated", zap.Int("pruned", n))
}
