// Package server initializes and runs the application: storage backend
// selection, upstream mode selection, the region gate, the sweep loop with
// its snapshot hook, and the HTTP server, with graceful shutdown on
// signals.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/lightningnetwork/lnd/ticker"

	"github.com/dmitrijs2005/typerank/internal/common"
	"github.com/dmitrijs2005/typerank/internal/logging"
	"github.com/dmitrijs2005/typerank/internal/server/config"
	"github.com/dmitrijs2005/typerank/internal/server/geo"
	"github.com/dmitrijs2005/typerank/internal/server/httpapi"
	"github.com/dmitrijs2005/typerank/internal/server/join"
	"github.com/dmitrijs2005/typerank/internal/server/snapshot"
	"github.com/dmitrijs2005/typerank/internal/server/store"
	"github.com/dmitrijs2005/typerank/internal/server/sweep"
	"github.com/dmitrijs2005/typerank/internal/server/upstream"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	manager store.RepositoryManager
	server  *httpapi.Server
	sweeper *sweep.Sweeper
}

// NewApp wires every component from the config. The storage backend is
// Postgres when a DSN is set, JSON files under StateDir otherwise; the
// upstream is the real API client unless demo mode is configured.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if cfg.SecretKey == "" {
		key, err := common.MakeRandHexString(32)
		if err != nil {
			return nil, fmt.Errorf("session secret generation error: %w", err)
		}
		cfg.SecretKey = key
		logger.Warn(ctx, "no secret_key configured, generated an ephemeral one; sessions will not survive restarts")
	}

	var (
		manager       store.RepositoryManager
		snapshotPaths [2]string
	)
	if cfg.DatabaseDSN != "" {
		pm, err := store.NewPostgresRepositoryManager(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		if err := pm.RunMigrations(ctx); err != nil {
			return nil, fmt.Errorf("migrations error: %w", err)
		}
		manager = pm
	} else {
		fm, err := store.NewFileRepositoryManager(cfg.StateDir)
		if err != nil {
			return nil, fmt.Errorf("state dir init error: %w", err)
		}
		snapshotPaths[0], snapshotPaths[1] = fm.DocumentPaths()
		manager = fm
	}

	var (
		validator upstream.Validator
		source    upstream.ResultSource
	)
	if cfg.UpstreamMode == config.UpstreamModeDemo {
		demo := upstream.NewDemoSource()
		validator, source = demo, demo
	} else {
		client := upstream.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamTimeout,
			cfg.TargetMode, cfg.TargetDuration, logger)
		validator, source = client, client
	}

	gate := geo.NewGate(
		[]geo.Provider{geo.NewIPAPIProvider(), geo.NewIPWhoProvider()},
		cfg.AdmittedCountry, cfg.GeoCacheSize, cfg.GeoCacheTTL, cfg.GeoTimeout,
		logger,
	)

	joinSvc := join.NewService(manager, validator, source, cfg.AdmittedCountry, logger)

	sweeper := sweep.NewSweeper(manager, validator, source,
		ticker.New(cfg.SweepInterval), cfg.SweepPacing, logger)
	if uploader := snapshot.NewUploader(cfg, snapshotPaths[0], snapshotPaths[1], logger); uploader != nil {
		sweeper.SetAfterSweep(func(ctx context.Context) {
			// Best effort; a failed snapshot retries after the next sweep.
			_ = uploader.Upload(ctx)
		})
	}

	httpSrv := httpapi.NewServer(cfg, manager, joinSvc, gate, sweeper, logger)

	return &App{
		config:  cfg,
		logger:  logger,
		manager: manager,
		server:  httpSrv,
		sweeper: sweeper,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the sweep loop and the HTTP server and blocks until the
// context is cancelled or the server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	app.sweeper.Start()
	defer app.sweeper.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server error", "error", err)
			cancelFunc()
		}
	}()
	wg.Wait()

	if err := app.manager.Close(); err != nil {
		app.logger.Error(ctx, "storage close error", "error", err)
	}

	app.logger.Info(ctx, "app stopped")
}
