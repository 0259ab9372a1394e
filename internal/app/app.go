package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"drivesafe/internal/assistant"
	"drivesafe/internal/config"
	"drivesafe/internal/events"
	"drivesafe/internal/httpapi"
	"drivesafe/internal/jobs"
	"drivesafe/internal/journal"
	"drivesafe/internal/notify"
	"drivesafe/internal/pipeline"
	"drivesafe/internal/reports"
	"drivesafe/internal/store"
	"drivesafe/internal/watch"
	"drivesafe/safetytips"
)

// App wires the service components together.
type App struct {
	cfg     config.Config
	tips    *safetytips.Generator
	journal *journal.Journal[reports.Entry]
	store   *store.Store
	bus     *events.Bus
	runner  *jobs.Runner
	watcher *watch.Watcher
	mux     *http.ServeMux
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	tips, err := LoadTips(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	j, err := journal.Open[reports.Entry](cfg.JournalPath)
	if err != nil {
		return nil, err
	}
	bus := events.NewBus()
	registry := pipeline.BuildRegistry(pipeline.Deps{
		Tips:     tips,
		Journal:  j,
		Notifier: notify.NewGroupMe(cfg, nil),
	})
	runner := jobs.NewRunner(cfg, registry, bus)
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open job history: %w", err)
	}
	if err := runner.UseHistory(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	helper, err := assistant.New(ctx, cfg, tips)
	if err != nil {
		db.Close()
		return nil, err
	}
	if !helper.Enabled() {
		log.Println("assistant: disabled (set GOOGLE_CLOUD_PROJECT to enable)")
	}
	mux := http.NewServeMux()
	httpapi.NewRouter(cfg, httpapi.Deps{
		Tips:      tips,
		Runner:    runner,
		Journal:   j,
		History:   db,
		Bus:       bus,
		Assistant: helper,
	}).Register(mux)
	return &App{
		cfg:     cfg,
		tips:    tips,
		journal: j,
		store:   db,
		bus:     bus,
		runner:  runner,
		watcher: watch.New(cfg, runner),
		mux:     mux,
	}, nil
}

// LoadTips builds a generator from the override file at path, or from the
// compiled-in catalog when path is empty.
func LoadTips(path string) (*safetytips.Generator, error) {
	if path == "" {
		return safetytips.Default(), nil
	}
	catalog, err := safetytips.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("tips catalog: %w", err)
	}
	log.Printf("tips: loaded catalog %s (%d categories)", path, len(catalog.Tips))
	return safetytips.New(catalog)
}

// Run starts workers, watcher, and HTTP server and blocks until ctx is done
// or one of them fails. The job history is closed on return.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()
	g, ctx := errgroup.WithContext(ctx)

	a.runner.Start(ctx)
	g.Go(func() error {
		<-ctx.Done()
		a.runner.Stop()
		return nil
	})
	g.Go(func() error { return a.watcher.Run(ctx) })

	srv := &http.Server{Addr: a.cfg.HTTPPort, Handler: a.mux, ReadHeaderTimeout: 10 * time.Second}
	g.Go(func() error {
		log.Printf("http listening on %s", a.cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Submit enqueues a report outside of HTTP, e.g. from tests or the CLI.
func (a *App) Submit(ctx context.Context, r reports.Report) (jobs.Job, error) {
	report, err := r.Normalize(config.Now())
	if err != nil {
		return jobs.Job{}, err
	}
	return a.runner.Enqueue(ctx, report)
}

// Close releases the job history database.
func (a *App) Close() error { return a.store.Close() }

func (a *App) Runner() *jobs.Runner                     { return a.runner }
func (a *App) Journal() *journal.Journal[reports.Entry] { return a.journal }
func (a *App) Mux() *http.ServeMux                      { return a.mux }
