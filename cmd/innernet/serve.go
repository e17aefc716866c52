package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/innernet/server/internal/config"
	"github.com/innernet/server/internal/data"
	"github.com/innernet/server/internal/game"
	"github.com/innernet/server/internal/handler"
	"github.com/innernet/server/internal/metrics"
	gonet "github.com/innernet/server/internal/net"
	"github.com/innernet/server/internal/net/packet"
	"github.com/innernet/server/internal/persist"
	"github.com/innernet/server/internal/scripting"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	var cfgFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath(cfgFlag))
		},
	}
	cmd.Flags().StringVarP(&cfgFlag, "config", "c", "", "Config file (default $INNERNET_CONFIG or config/server.toml)")
	return cmd
}

func runServe(cfgPath string) error {
	// 1. Load config
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Server.StartTime = time.Now().Unix()

	// 2. Init logger
	log, closeLog, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closeLog()
	log = log.With(zap.Int("server", cfg.Server.ID))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// background workers finish before their resources are released
	var wg sync.WaitGroup
	var closers []func()
	defer func() {
		stop()
		wg.Wait()
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	// 3. Spawn table
	spawns, err := data.LoadSpawnTable(cfg.Game.SpawnTable)
	if err != nil {
		return fmt.Errorf("load spawn table: %w", err)
	}
	log.Info("spawn table loaded", zap.Int("templates", spawns.Len()))

	// 4. Collaborators
	var sinks game.Sinks
	hooks := game.Hooks{}

	if cfg.Database.DSN != "" {
		eventLog, closeDB, err := openEventLog(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		closers = append(closers, closeDB)
		sinks = append(sinks, eventLog)
		wg.Add(1)
		go func() {
			defer wg.Done()
			eventLog.Run(ctx)
		}()
	}

	if cfg.Scripting.Dir != "" {
		engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		closers = append(closers, engine.Close)
		sinks = append(sinks, engine)
		log.Info("lua hooks loaded", zap.String("dir", cfg.Scripting.Dir))
	}

	if len(sinks) > 0 {
		hooks.Scene = sinks
		hooks.Ready = sinks
		hooks.Rpc = sinks
		hooks.Options = sinks
	}

	var reg *prometheus.Registry
	if cfg.Metrics.ListenAddress != "" {
		reg = prometheus.NewRegistry()
		hooks.Metrics = metrics.New(reg)
	}

	// 5. Lobby and root message handlers
	games := game.NewManager(spawns, hooks, log)

	if reg != nil {
		metrics.RegisterGauge(reg, "games", "Live games.", func() float64 {
			return float64(games.Count())
		})
		collector := hooks.Metrics.(*metrics.Collector)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := collector.Serve(ctx, cfg.Metrics.ListenAddress, log); err != nil {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	pktReg := packet.NewRegistry(log)
	deps := &handler.Deps{
		Config: cfg,
		Games:  games,
		Log:    log,
	}
	handler.RegisterAll(pktReg, deps)

	// 6. Network server
	netServer, err := gonet.NewServer(
		cfg.Network.BindAddress,
		gonet.SessionOptions{
			OutQueueSize:     cfg.Network.OutQueueSize,
			PacketsPerSecond: cfg.Network.PacketsPerSecond,
			ReadTimeout:      cfg.Network.ReadTimeout,
			WriteTimeout:     cfg.Network.WriteTimeout,
			MaxFrameSize:     cfg.Network.MaxFrameSize,
		},
		handler.NewRouter(pktReg, deps),
		log,
	)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	go netServer.AcceptLoop()

	log.Info("server ready",
		zap.String("name", cfg.Server.Name),
		zap.Int("id", cfg.Server.ID),
		zap.String("addr", netServer.Addr().String()),
	)

	<-ctx.Done()
	log.Info("shutting down")
	netServer.Shutdown()
	return nil
}

func openEventLog(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*persist.EventLog, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	store, err := persist.Open(connectCtx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	version, err := store.Migrate(connectCtx)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	log.Info("event log ready", zap.Int64("schema_version", version))

	eventLog := persist.NewEventLog(persist.NewEventRepo(store), cfg.EventQueueSize, cfg.FlushInterval, log)
	return eventLog, store.Close, nil
}
