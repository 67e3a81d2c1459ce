package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/modelbay/modelbay/internal/api"
	"github.com/modelbay/modelbay/internal/domain"
	"github.com/modelbay/modelbay/internal/health"
	"github.com/modelbay/modelbay/internal/infra/catalog"
	"github.com/modelbay/modelbay/internal/infra/hosts"
	"github.com/modelbay/modelbay/internal/infra/library"
	"github.com/modelbay/modelbay/internal/infra/resource"
	"github.com/modelbay/modelbay/internal/infra/sqlite"
	"github.com/modelbay/modelbay/internal/infra/transfer"
)

// Daemon is the core modelbay runtime. It wires together all services.
type Daemon struct {
	Config       Config
	Profile      domain.ResourceProfile
	DB           *sqlite.DB
	Catalog      *catalog.Service
	Scheduler    *transfer.Scheduler
	Library      *library.Manager
	Health       *health.Checker
	Server       *api.Server
	DownloadsDir string

	cancel context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	profile := resource.Capture()

	db, err := sqlite.Open(Home())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	downloadsDir := cfg.Downloads.Dir
	if downloadsDir == "" {
		downloadsDir = filepath.Join(Home(), "models")
	}

	// Catalog: one adapter per host, fanned out by the merger. Empty URLs
	// fall through to each adapter's production endpoint.
	hub := hosts.NewHubAdapter(cfg.Catalog.HubURL, cfg.Catalog.RequestInterval())
	registry := hosts.NewRegistryAdapter(cfg.Catalog.RegistryURL, cfg.Catalog.RequestInterval())
	merger := catalog.NewMerger(
		[]domain.HostAdapter{hub, registry},
		cfg.Catalog.Queries,
		cfg.Catalog.FanoutLimit,
	)
	cat := catalog.NewService(merger, catalog.NewStore())

	lib := library.NewManager(db, cat)

	sched, err := transfer.NewScheduler(transfer.Config{
		Dir:              downloadsDir,
		MaxConcurrent:    cfg.Downloads.MaxConcurrent,
		MaxRetries:       cfg.Downloads.MaxRetries,
		ProgressInterval: cfg.Downloads.ProgressInterval(),
	}, db, transfer.NewVerifier())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("start scheduler: %w", err)
	}

	// Verified artifacts move into the library off the scheduler's slot.
	sched.SetOnComplete(func(st domain.TransferState) {
		installCtx, installCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer installCancel()
		if err := lib.Install(installCtx, st); err != nil {
			log.Printf("[daemon] install %s: %v", st.Name, err)
		}
	})

	hc := health.NewChecker(db, downloadsDir, cat, sched)

	srv := api.NewServer(cat, sched, lib, hc, profile)
	if cfg.API.EnableMetrics {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:       cfg,
		Profile:      profile,
		DB:           db,
		Catalog:      cat,
		Scheduler:    sched,
		Library:      lib,
		Health:       hc,
		Server:       srv,
		DownloadsDir: downloadsDir,
	}, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     d.Server.Handler(),
		ReadTimeout: 30 * time.Second,
		// No write timeout: the download event stream stays open as long as
		// the client does.
		IdleTimeout: 2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		d.Scheduler.Close()
		_ = d.DB.Close()
	}()

	fmt.Printf("modelbay serving on http://%s\n", addr)
	fmt.Printf("  Models dir: %s\n", d.DownloadsDir)
	if d.Config.API.EnableMetrics {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Scheduler != nil {
		d.Scheduler.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
