package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"drivesafe/internal/config"
	"drivesafe/internal/events"
	"drivesafe/internal/metrics"
	"drivesafe/internal/reports"
	"drivesafe/safetytips"
)

// Status values for jobs.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Stage represents pipeline phases.
type Stage string

const (
	StageClassify Stage = "CLASSIFY"
	StageRecord   Stage = "RECORD"
	StageNotify   Stage = "NOTIFY"
)

// Stages is the order every report job runs through.
var Stages = []Stage{StageClassify, StageRecord, StageNotify}

// ErrQueueFull is returned when the bounded queue cannot take another job.
var ErrQueueFull = errors.New("queue full")

// DefaultRetainedJobs bounds how many finished jobs stay in memory.
const DefaultRetainedJobs = 500

// Job tracks one report moving through the stages.
type Job struct {
	ID             int64              `json:"id"`
	ReportID       string             `json:"report_id"`
	Status         string             `json:"status"`
	IdempotencyKey string             `json:"idempotency_key"`
	Report         reports.Report     `json:"report"`
	Advice         *safetytips.Advice `json:"advice,omitempty"`
	LastStage      Stage              `json:"last_stage,omitempty"`
	LastError      string             `json:"last_error,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	StartedAt      *time.Time         `json:"started_at,omitempty"`
	FinishedAt     *time.Time         `json:"finished_at,omitempty"`
}

// ExecutionContext bundles dependencies for stage execution.
type ExecutionContext struct {
	Cfg  config.Config
	Logf func(jobID int64, msg string)
}

// StageFunc runs one stage against the job's working copy.
type StageFunc func(ctx context.Context, exec ExecutionContext, job *Job) error

// Registry maps stages to implementations.
type Registry map[Stage]StageFunc

// History persists job snapshots and log lines beyond the process lifetime.
type History interface {
	SaveJob(ctx context.Context, j Job) error
	FindJobByKey(ctx context.Context, key string) (Job, bool, error)
	AppendJobLog(ctx context.Context, id int64, line string, ts time.Time) error
	LastJobID(ctx context.Context) (int64, error)
}

// Runner executes report jobs on a small worker pool. Live jobs and the most
// recent finished ones are kept in memory; an optional History records every
// transition and makes duplicate detection survive restarts.
type Runner struct {
	cfg     config.Config
	reg     Registry
	bus     *events.Bus
	history History
	queue   chan int64
	wg      sync.WaitGroup
	cancel  context.CancelFunc

	mu     sync.Mutex
	retain int
	nextID int64
	jobs   map[int64]*Job
	byKey  map[string]int64

	logMu     sync.Mutex
	logBuffer map[int64][]string
}

// NewRunner constructs a runner. bus may be nil.
func NewRunner(cfg config.Config, reg Registry, bus *events.Bus) *Runner {
	return &Runner{
		cfg:       cfg,
		reg:       reg,
		bus:       bus,
		queue:     make(chan int64, cfg.QueueSize),
		retain:    DefaultRetainedJobs,
		jobs:      make(map[int64]*Job),
		byKey:     make(map[string]int64),
		logBuffer: make(map[int64][]string),
	}
}

// UseHistory attaches h and continues job numbering after its last ID so
// restarts never reuse an ID. Call before Start.
func (r *Runner) UseHistory(ctx context.Context, h History) error {
	last, err := h.LastJobID(ctx)
	if err != nil {
		return fmt.Errorf("job history: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = h
	if last > r.nextID {
		r.nextID = last
	}
	return nil
}

// Start spins worker pool.
func (r *Runner) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	for i := 0; i < r.cfg.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
}

// Stop waits for workers to finish.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Enqueue queues a report. Submitting the same report twice returns the first
// job, including one recorded in History by an earlier process.
func (r *Runner) Enqueue(ctx context.Context, report reports.Report) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	key := idempotencyKey(report)

	if existing, ok := r.jobByKey(key); ok {
		return existing, nil
	}
	if h := r.historySink(); h != nil {
		prior, found, err := h.FindJobByKey(ctx, key)
		if err != nil {
			return Job{}, fmt.Errorf("job history: %w", err)
		}
		if found {
			return prior, nil
		}
	}

	r.mu.Lock()
	if id, ok := r.byKey[key]; ok {
		existing := *r.jobs[id]
		r.mu.Unlock()
		return existing, nil
	}
	r.nextID++
	now := config.Now()
	job := &Job{
		ID:             r.nextID,
		ReportID:       report.ID,
		Status:         StatusQueued,
		IdempotencyKey: key,
		Report:         report,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	select {
	case r.queue <- job.ID:
	default:
		r.nextID--
		r.mu.Unlock()
		return Job{}, ErrQueueFull
	}
	r.jobs[job.ID] = job
	r.byKey[key] = job.ID
	snapshot := *job
	// Workers read the job under mu, so the queued row lands before any later state.
	r.persistTo(r.history, snapshot)
	r.mu.Unlock()

	r.publish(snapshot, "", "")
	return snapshot, nil
}

func (r *Runner) jobByKey(key string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key]
	if !ok {
		return Job{}, false
	}
	return *r.jobs[id], true
}

// Job returns a copy of the job with id.
func (r *Runner) Job(id int64) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// List returns up to limit jobs, newest first.
func (r *Runner) List(limit int) []Job {
	r.mu.Lock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, *j)
	}
	r.mu.Unlock()
	sort.Slice(out, func(a, b int) bool { return out[a].ID > out[b].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// QueueDepth reports queued-but-unclaimed jobs.
func (r *Runner) QueueDepth() int { return len(r.queue) }

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-r.queue:
			r.execute(ctx, id)
		}
	}
}

func (r *Runner) execute(ctx context.Context, id int64) {
	work, ok := r.Job(id)
	if !ok {
		return
	}
	started := config.Now()
	work.Status = StatusRunning
	work.StartedAt = &started
	r.save(work)
	r.publish(work, "", "")

	exec := ExecutionContext{Cfg: r.cfg, Logf: r.appendLog}
	for _, stage := range Stages {
		fn, ok := r.reg[stage]
		if !ok {
			continue
		}
		work.LastStage = stage
		if err := fn(ctx, exec, &work); err != nil {
			r.appendLog(work.ID, fmt.Sprintf("error: %s: %v", stage, err))
			r.finish(work, StatusFailed, err.Error())
			metrics.IncFailed()
			return
		}
		r.appendLog(work.ID, fmt.Sprintf("stage %s done", stage))
		r.save(work)
		r.publish(work, stage, "")
	}
	r.finish(work, StatusSucceeded, "")
	metrics.IncSucceeded()
}

func (r *Runner) finish(work Job, status, errMsg string) {
	done := config.Now()
	work.Status = status
	work.LastError = errMsg
	work.FinishedAt = &done
	r.save(work)
	r.publish(work, work.LastStage, errMsg)
	r.prune()
}

// prune drops the oldest finished jobs and their logs once more than retain
// jobs are tracked. Queued and running jobs are never dropped.
func (r *Runner) prune() {
	r.mu.Lock()
	excess := len(r.jobs) - r.retain
	if r.retain <= 0 || excess <= 0 {
		r.mu.Unlock()
		return
	}
	var done []int64
	for id, j := range r.jobs {
		if j.Status == StatusSucceeded || j.Status == StatusFailed {
			done = append(done, id)
		}
	}
	sort.Slice(done, func(a, b int) bool { return done[a] < done[b] })
	if len(done) > excess {
		done = done[:excess]
	}
	for _, id := range done {
		delete(r.byKey, r.jobs[id].IdempotencyKey)
		delete(r.jobs, id)
	}
	r.mu.Unlock()

	r.logMu.Lock()
	for _, id := range done {
		delete(r.logBuffer, id)
	}
	r.logMu.Unlock()
}

func (r *Runner) save(work Job) {
	work.UpdatedAt = config.Now()
	r.mu.Lock()
	r.jobs[work.ID] = &work
	r.mu.Unlock()
	r.persist(work)
}

func (r *Runner) persist(j Job) { r.persistTo(r.historySink(), j) }

// persistTo is best effort: a history failure never fails the job.
func (r *Runner) persistTo(h History, j Job) {
	if h == nil {
		return
	}
	if err := h.SaveJob(context.Background(), j); err != nil {
		log.Printf("job %d: history save: %v", j.ID, err)
	}
}

func (r *Runner) historySink() History {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history
}

func (r *Runner) publish(j Job, stage Stage, msg string) {
	r.bus.Publish(events.Event{
		Type:     "job",
		JobID:    j.ID,
		ReportID: j.ReportID,
		Stage:    string(stage),
		Status:   j.Status,
		Message:  msg,
		Time:     config.Now(),
	})
}

func (r *Runner) appendLog(jobID int64, msg string) {
	ts := config.Now()
	line := fmt.Sprintf("%s %s", ts.Format(time.RFC3339), msg)
	log.Printf("job %d: %s", jobID, msg)
	r.logMu.Lock()
	r.logBuffer[jobID] = append(r.logBuffer[jobID], line)
	if len(r.logBuffer[jobID]) > 200 {
		r.logBuffer[jobID] = r.logBuffer[jobID][len(r.logBuffer[jobID])-200:]
	}
	r.logMu.Unlock()
	if h := r.historySink(); h != nil {
		if err := h.AppendJobLog(context.Background(), jobID, line, ts); err != nil {
			log.Printf("job %d: history log: %v", jobID, err)
		}
	}
}

// Logs returns the in-memory log buffer for a job.
func (r *Runner) Logs(jobID int64) []string {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	return append([]string(nil), r.logBuffer[jobID]...)
}

// idempotencyKey identifies inbox reports by file alone, so a file re-read
// after more bytes arrive is still the same report. Other reports hash their
// content.
func idempotencyKey(report reports.Report) string {
	if strings.HasPrefix(report.Source, reports.InboxSourcePrefix) {
		return report.Source
	}
	h := sha256.Sum256([]byte(report.ID + "|" + report.Source + "|" + report.Description))
	return hex.EncodeToString(h[:])
}
