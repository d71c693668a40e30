// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command demo wires an Engine, a Replicator, a Mutator and the httpremote
// reference transport into a single running client, replacing the
// teacher's cmd/main.go (which wired a GraphQL/communicator server this
// module has no use for). It stands up its own backing MemoryService
// behind an httpremote.Server, then a Replicator+Mutator connecting to it
// as a normal client would connect to a real backend — a self-contained
// demonstration of the whole optimistic-replication path.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/replisync/pkg/config"
	"github.com/united-manufacturing-hub/replisync/pkg/engine"
	"github.com/united-manufacturing-hub/replisync/pkg/logging"
	"github.com/united-manufacturing-hub/replisync/pkg/mutator"
	"github.com/united-manufacturing-hub/replisync/pkg/persistence"
	"github.com/united-manufacturing-hub/replisync/pkg/query"
	"github.com/united-manufacturing-hub/replisync/pkg/record"
	"github.com/united-manufacturing-hub/replisync/pkg/remote"
	"github.com/united-manufacturing-hub/replisync/pkg/remote/httpremote"
	"github.com/united-manufacturing-hub/replisync/pkg/replicator"
	"github.com/united-manufacturing-hub/replisync/pkg/rerrors"
	"github.com/united-manufacturing-hub/replisync/pkg/store"
	"github.com/united-manufacturing-hub/replisync/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional, defaults are used otherwise)")
	listenAddr := flag.String("listen", ":8080", "address the demo backing remote listens on")
	flag.Parse()

	cfg := config.Default()

	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load config:", err)
			os.Exit(1)
		}

		cfg = loaded
	}

	log := logging.For(logging.ComponentDemo)

	if err := rerrors.InitSentry(cfg.Sentry.DSN, cfg.Sentry.Environment, cfg.Sentry.Release); err != nil {
		log.Warnw("sentry init failed, continuing without error reporting", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backing := remote.NewMemoryService()
	server := httpremote.NewServer(backing)

	httpSrv := &http.Server{Addr: *listenAddr, Handler: server.Handler()}

	go func() {
		log.Infow("backing remote listening", "addr", *listenAddr)

		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("backing remote stopped", "error", err)
		}
	}()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsSrv = telemetry.Serve(cfg.Metrics.Addr)
		log.Infow("metrics listening", "addr", cfg.Metrics.Addr)
	}

	client := httpremote.NewClient("http://127.0.0.1" + *listenAddr)
	defer client.Close()

	persist, err := newPersistence(cfg.Persistence)
	if err != nil {
		log.Fatalw("persistence init failed", "error", err)
	}

	eng, err := engine.New(engine.Config{
		Remote:       client,
		UseUUID:      true,
		UseUpdatedAt: true,
		Persistence:  persist,
		Logger:       logging.For(logging.ComponentEngine),
	})
	if err != nil {
		log.Fatalw("engine init failed", "error", err)
	}

	repl := replicator.New(replicator.Config{
		Engine:       eng,
		Remote:       client,
		BaseQuery:    cfg.Replicator.BaseQuery,
		UseUpdatedAt: cfg.Replicator.UseUpdatedAt,
		PageSize:     cfg.Replicator.PageSize,
		Logger:       logging.For(logging.ComponentReplicator),
	})

	mut, err := mutator.New(mutator.Config{
		Replicator:    repl,
		Timeout:       cfg.Mutator.Timeout(),
		MintShortUUID: cfg.Mutator.MintShortUUID,
		Logger:        logging.For(logging.ComponentMutator),
	})
	if err != nil {
		log.Fatalw("mutator init failed", "error", err)
	}

	initial, maxI, elapsed := cfg.Replicator.Reconnect.Durations()

	go func() {
		if err := repl.ReconnectLoop(ctx, nil, replicator.ReconnectConfig{
			InitialInterval: initial,
			MaxInterval:     maxI,
			MaxElapsedTime:  elapsed,
			MaxRetries:      cfg.Replicator.Reconnect.MaxRetries,
		}); err != nil {
			log.Errorw("reconnect loop exited", "error", err)
		}
	}()

	unsub := eng.OnEvents(func(records []record.Record, last store.Last) {
		log.Debugw("engine event", "action", last.Action, "records", len(records))
	})
	defer unsub()

	demoSeed(ctx, mut, log)

	<-ctx.Done()
	log.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("backing remote shutdown error", "error", err)
	}

	if metricsSrv != nil {
		if err := telemetry.Shutdown(shutdownCtx, metricsSrv); err != nil {
			log.Warnw("metrics shutdown error", "error", err)
		}
	}

	_ = logging.Sync()
}

func newPersistence(cfg config.PersistenceConfig) (persistence.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return persistence.NewSQLite(cfg.SQLitePath)
	default:
		return persistence.NewMemory(), nil
	}
}

// demoSeed exercises the Mutator once at startup so a fresh run has
// something to look at over /records and /metrics.
func demoSeed(ctx context.Context, mut *mutator.Mutator, log *zap.SugaredLogger) {
	created, err := mut.Create(ctx, record.Record{"name": "seed"}, query.Params{})
	if err != nil {
		log.Warnw("demo seed failed", "error", err)

		return
	}

	log.Infow("seeded demo record", "record", created)
}
