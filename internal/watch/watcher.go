package watch

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"drivesafe/internal/config"
	"drivesafe/internal/jobs"
	"drivesafe/internal/reports"
)

// Enqueuer accepts parsed reports.
type Enqueuer interface {
	Enqueue(ctx context.Context, report reports.Report) (jobs.Job, error)
}

// DefaultSettle is how long a report file must stay unchanged before it is read.
const DefaultSettle = 500 * time.Millisecond

// Watcher monitors REPORTS_DIR for new report files and enqueues them.
type Watcher struct {
	cfg    config.Config
	runner Enqueuer
	settle time.Duration
	ready  chan struct{}

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func New(cfg config.Config, runner Enqueuer) *Watcher {
	return &Watcher{
		cfg:     cfg,
		runner:  runner,
		settle:  DefaultSettle,
		ready:   make(chan struct{}),
		pending: make(map[string]*time.Timer),
	}
}

// Run backfills existing files, then watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.cfg.EnableWatcher {
		log.Println("watcher: disabled")
		<-ctx.Done()
		return nil
	}
	if err := os.MkdirAll(w.cfg.ReportsDir, 0o755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(w.cfg.ReportsDir); err != nil {
		return err
	}
	defer w.stopPending()
	close(w.ready)
	if err := w.Backfill(ctx); err != nil {
		log.Printf("watcher: backfill: %v", err)
	}
	log.Printf("watcher: watching %s", w.cfg.ReportsDir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write) != 0 && reports.IsReportFile(evt.Name) {
				w.schedule(ctx, evt.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher: error: %v", err)
		}
	}
}

// schedule ingests path once it has seen no writes for the settle period, so
// a file still being written is read once, complete.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.settle)
		return
	}
	var t *time.Timer
	t = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if err := w.ingest(ctx, path); err != nil {
			log.Printf("watcher: %s: %v", filepath.Base(path), err)
		}
	})
	w.pending[path] = t
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// Backfill enqueues every report file already present in the inbox.
func (w *Watcher) Backfill(ctx context.Context) error {
	entries, err := filepath.Glob(filepath.Join(w.cfg.ReportsDir, "*"))
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, path := range entries {
		if !reports.IsReportFile(path) {
			continue
		}
		path := path
		g.Go(func() error {
			if err := w.ingest(ctx, path); err != nil {
				log.Printf("watcher: backfill %s: %v", filepath.Base(path), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (w *Watcher) ingest(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	report, err := reports.ParseFile(path, data, info.ModTime())
	if errors.Is(err, reports.ErrEmptyReport) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = w.runner.Enqueue(ctx, report)
	return err
}
