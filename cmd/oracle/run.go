package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm/logger"

	"github.com/oraclelog/oracle-go/internal/bus"
	"github.com/oraclelog/oracle-go/internal/config"
	"github.com/oraclelog/oracle-go/internal/delivery"
	"github.com/oraclelog/oracle-go/internal/gamedata"
	"github.com/oraclelog/oracle-go/internal/logfinder"
	"github.com/oraclelog/oracle-go/internal/service"
	"github.com/oraclelog/oracle-go/internal/store"
	"github.com/oraclelog/oracle-go/pkg/oracle"
)

var runLogPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline with the local API server",
	Long: `Run the complete pipeline: tail the game log, parse it into
events, derive map, session, inventory, stats and market state, persist
to SQLite and serve the live event feed over WebSocket plus a small
read-only HTTP API.

Examples:
  # Defaults plus ORACLE_* env vars
  oracle run

  # Explicit config file
  oracle run --config oracle.yaml

  # Override the log path
  oracle run --log /path/to/game.log`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runLogPath, "log", "",
		"Game log file to follow (overrides config)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if runLogPath != "" {
		cfg.LogPath = runLogPath
	}
	logPath, err := logfinder.FindLogFile(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("%w (set log_path, ORACLE_LOG_PATH or --log)", err)
	}
	cfg.LogPath = logPath
	log := newLogger(cfg.LogLevel)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(store.Config{
		Path:     cfg.DatabasePath(),
		LogLevel: logger.Silent,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	items, err := gamedata.NewItemDB(cfg.PriceTablePath(),
		gamedata.WithRemoteURL(cfg.PriceTableURL),
		gamedata.WithItemLogger(log))
	if err != nil {
		return err
	}
	priceSource := store.PriceSourceLocal
	if cfg.PriceTableURL != "" {
		if err := items.Refresh(ctx); err != nil {
			log.Warn("price table refresh failed, using local table", "error", err)
		} else {
			priceSource = store.PriceSourceRemote
		}
	}
	if err := seedItems(ctx, st, items, priceSource); err != nil {
		log.Warn("seeding item table failed", "error", err)
	}
	maps, err := gamedata.NewMapDB(cfg.MapTablePath(), log)
	if err != nil {
		return err
	}

	b := bus.New(bus.WithLogger(log))

	inv := service.NewInventoryService(b, st, log)
	mapSvc := service.NewMapService(b, st, items, maps, inv, log)
	session := service.NewSessionService(b, st, log)
	stats := service.NewStatsService(b, items, inv, log)
	market := service.NewMarketService(b, st, inv, log)

	registry := service.NewRegistry(log)
	registry.Register(inv, mapSvc, session, stats, market)
	if err := registry.Start(ctx); err != nil {
		return err
	}

	hub := delivery.NewHub(b, log)
	server := delivery.NewServer(cfg.ListenAddr, hub, st, log)

	pipeline, err := oracle.NewPipeline(cfg.LogPath,
		oracle.WithPollInterval(cfg.PollInterval),
		oracle.WithPositionPath(cfg.PositionPath()),
		oracle.WithFromStart(cfg.FromStart),
		oracle.WithItemLookup(items.Lookup),
		oracle.WithLogger(log),
		oracle.WithBus(b),
	)
	if err != nil {
		return err
	}

	events, errs, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}
	log.Info("pipeline running",
		"log", cfg.LogPath, "db", cfg.DatabasePath(), "listen", cfg.ListenAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error {
		// Events already reach the bus via WithBus; this loop only
		// keeps the pipeline's own channel drained and surfaces errors.
		for {
			select {
			case _, ok := <-events:
				if !ok {
					return nil
				}
			case err, ok := <-errs:
				if !ok {
					return nil
				}
				log.Warn("pipeline error", "error", err)
			case <-gctx.Done():
				return nil
			}
		}
	})

	err = g.Wait()

	// Let queued events reach the services before they shut down.
	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if derr := b.Drain(drainCtx); derr != nil {
		log.Warn("bus drain timed out", "error", derr)
	}
	if serr := registry.Shutdown(drainCtx); serr != nil {
		log.Warn("service shutdown", "error", serr)
	}
	hub.Close()
	b.Close()
	if cerr := pipeline.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// seedItems mirrors the loaded price table into the items table so
// queries against the store see names and prices without the table
// file. source records where this revision of the table came from.
func seedItems(ctx context.Context, st *store.Store, items *gamedata.ItemDB, source string) error {
	all := items.All()
	if len(all) == 0 {
		return nil
	}
	rows := make([]store.Item, 0, len(all))
	for id, info := range all {
		rows = append(rows, store.Item{
			ItemID:   id,
			Name:     info.Name,
			Category: info.Category,
			Price:    info.Price,
		})
	}
	return st.SeedItems(ctx, rows, source)
}
