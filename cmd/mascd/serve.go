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
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/masc/internal/log"
	"github.com/teradata-labs/masc/pkg/auth"
	"github.com/teradata-labs/masc/pkg/bus"
	"github.com/teradata-labs/masc/pkg/config"
	"github.com/teradata-labs/masc/pkg/crypt"
	"github.com/teradata-labs/masc/pkg/drift"
	"github.com/teradata-labs/masc/pkg/ratelimit"
	"github.com/teradata-labs/masc/pkg/room"
	"github.com/teradata-labs/masc/pkg/server"
	"github.com/teradata-labs/masc/pkg/storage/backend"
	"github.com/teradata-labs/masc/pkg/supervisor"
	"github.com/teradata-labs/masc/pkg/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MASC coordination server",
	Long: heredoc.Doc(`
		Start the coordination server for one room.

		The server exposes:
		- POST /mcp                        JSON-RPC 2.0 tool dispatcher
		- GET  /sse                        resumable notification stream
		- GET  /api/v1/...                 read-only REST mirror
		- GET  /health, /metrics           operational endpoints

		Storage, room identity, auth tokens and tuning all come from MASC_*
		environment variables. Press Ctrl+C to drain and shut down.`),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := log.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	logger := log.Named("mascd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := backend.New(ctx, backend.Options{
		Type:        cfg.StorageType,
		Root:        cfg.Root,
		RedisURL:    cfg.RedisURL,
		PostgresURL: cfg.PostgresURL,
		MySQLDSN:    cfg.MySQLDSN,
		SQLitePath:  cfg.SQLitePath,
		BoltPath:    cfg.BoltPath,
	})
	if err != nil {
		return err
	}
	defer be.Close()

	sealer, err := crypt.New(cfg.EncryptionKey)
	if err != nil {
		return err
	}

	b := bus.New(bus.DefaultOptions())

	store, err := room.New(ctx, room.Options{
		Backend: be,
		Bus:     b,
		Sealer:  sealer,
		Config: room.Config{
			Cluster:           cfg.ClusterName,
			Room:              cfg.Room,
			HeartbeatTTL:      seconds(cfg.HeartbeatTTL),
			ZombieTTL:         seconds(cfg.ZombieTTL),
			HandoffTTL:        seconds(cfg.HandoffTTL),
			HandoffConsumeTTL: seconds(cfg.HandoffConsumeTTL),
			InterruptTTL:      seconds(cfg.InterruptTTL),
			LockTTL:           seconds(cfg.LockTTL),
			Tempo:             seconds(cfg.Tempo),
			ConcurrencyTarget: cfg.ConcurrencyTarget,
			Mode:              cfg.Mode,
		},
	})
	if err != nil {
		return err
	}

	registry := tools.NewRegistry(tools.Deps{
		Store: store,
		Drift: drift.Config{
			Threshold:     cfg.DriftThreshold,
			JaccardWeight: cfg.DriftJaccardWeight,
			CosineWeight:  cfg.DriftCosineWeight,
		},
		Rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	})

	modes, err := config.LoadModes(cfg.ModesPath())
	if err != nil {
		return err
	}
	tokens, err := cfg.Tokens()
	if err != nil {
		return err
	}
	verifier := auth.NewVerifier(tokens)
	if !verifier.Enabled() {
		logger.Warn("no MASC_TOKEN configured, running without authentication")
	}

	srv := server.New(server.Options{
		Store:        store,
		Bus:          b,
		Registry:     registry,
		Verifier:     verifier,
		Limiter:      ratelimit.New(ratelimit.Config{Capacity: cfg.RateCapacity, RefillPerSecond: cfg.RateRefillPerSec}),
		Modes:        modes,
		BackendType:  cfg.StorageType,
		DrainTimeout: seconds(cfg.DrainTimeout),
	})

	// Apply the persisted room file, then keep watching it so mode flips
	// take effect without a restart.
	applyRoomFile := func(rf *config.RoomFile) {
		if len(rf.Modes) > 0 {
			merged := make(config.Modes, len(modes)+len(rf.Modes))
			for name, cats := range modes {
				merged[name] = cats
			}
			for name, cats := range rf.Modes {
				merged[name] = cats
			}
			srv.SetModes(merged)
		}
		if rf.Mode != "" {
			if _, err := store.ModeSet(ctx, rf.Mode); err != nil {
				logger.Warn("apply mode from room file", zap.Error(err))
			}
		}
	}
	if rf, err := config.LoadRoomFile(cfg.ConfigPath()); err == nil {
		applyRoomFile(rf)
	}
	if err := config.WatchRoomFile(ctx, cfg.ConfigPath(), applyRoomFile); err != nil {
		logger.Warn("room file watch unavailable", zap.Error(err))
	}

	sup, err := supervisor.New(supervisor.Options{Store: store, Bus: b})
	if err != nil {
		return err
	}
	go func() {
		if err := sup.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("supervisor stopped", zap.Error(err))
		}
	}()

	logger.Info("starting",
		zap.String("room", cfg.Room),
		zap.String("cluster", cfg.ClusterName),
		zap.String("storage", cfg.StorageType),
		zap.Int("port", cfg.Port))
	return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Port))
}

// seconds converts a float config value to a duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
