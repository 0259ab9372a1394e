package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"drivesafe/internal/config"
	"drivesafe/internal/events"
	"drivesafe/internal/reports"
)

func testConfig(workers, queue int) config.Config {
	return config.Config{WorkerCount: workers, QueueSize: queue, MaxTips: 3}
}

func report(t *testing.T, desc string) reports.Report {
	t.Helper()
	r, err := reports.Report{Description: desc}.Normalize(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func waitFor(t *testing.T, r *Runner, id int64, status string) Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if j, ok := r.Job(id); ok && j.Status == status {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	j, _ := r.Job(id)
	t.Fatalf("job %d never reached %s (last %+v)", id, status, j)
	return Job{}
}

func TestIdempotentEnqueue(t *testing.T) {
	runner := NewRunner(testConfig(0, 2), Registry{}, nil)
	ctx := context.Background()
	j1, err := runner.Enqueue(ctx, report(t, "sudden stop"))
	if err != nil {
		t.Fatalf("enqueue1: %v", err)
	}
	j2, err := runner.Enqueue(ctx, report(t, "sudden stop"))
	if err != nil {
		t.Fatalf("enqueue2: %v", err)
	}
	if j1.ID != j2.ID {
		t.Fatalf("expected idempotent job, got %d vs %d", j1.ID, j2.ID)
	}
	if runner.QueueDepth() != 1 {
		t.Fatalf("expected one queued job, got %d", runner.QueueDepth())
	}
}

func TestEnqueueQueueFull(t *testing.T) {
	runner := NewRunner(testConfig(0, 1), Registry{}, nil)
	ctx := context.Background()
	if _, err := runner.Enqueue(ctx, report(t, "first")); err != nil {
		t.Fatal(err)
	}
	if _, err := runner.Enqueue(ctx, report(t, "second")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if len(runner.List(0)) != 1 {
		t.Fatalf("rejected job should not be tracked")
	}
}

func TestRunnerExecutesStagesInOrder(t *testing.T) {
	var order []Stage
	record := func(stage Stage) StageFunc {
		return func(ctx context.Context, exec ExecutionContext, job *Job) error {
			order = append(order, stage)
			exec.Logf(job.ID, "ran "+string(stage))
			return nil
		}
	}
	reg := Registry{StageNotify: record(StageNotify), StageClassify: record(StageClassify), StageRecord: record(StageRecord)}
	bus := events.NewBus()
	sub := bus.Subscribe()
	runner := NewRunner(testConfig(1, 4), reg, bus)
	runner.Start(context.Background())
	defer runner.Stop()

	job, err := runner.Enqueue(context.Background(), report(t, "fast corner"))
	if err != nil {
		t.Fatal(err)
	}
	done := waitFor(t, runner, job.ID, StatusSucceeded)
	if done.FinishedAt == nil || done.StartedAt == nil {
		t.Fatalf("timestamps not set: %+v", done)
	}
	want := []Stage{StageClassify, StageRecord, StageNotify}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("stage order %v, want %v", order, want)
		}
	}
	if logs := runner.Logs(job.ID); len(logs) == 0 {
		t.Fatal("expected job logs")
	}
	first := <-sub
	if first.JobID != job.ID || first.Status != StatusQueued {
		t.Fatalf("unexpected first event %+v", first)
	}
}

func TestRunnerMarksFailure(t *testing.T) {
	reg := Registry{
		StageClassify: func(ctx context.Context, exec ExecutionContext, job *Job) error { return errors.New("boom") },
		StageRecord: func(ctx context.Context, exec ExecutionContext, job *Job) error {
			t.Error("record should not run after a failed stage")
			return nil
		},
	}
	runner := NewRunner(testConfig(1, 4), reg, nil)
	runner.Start(context.Background())
	defer runner.Stop()

	job, err := runner.Enqueue(context.Background(), report(t, "phone"))
	if err != nil {
		t.Fatal(err)
	}
	failed := waitFor(t, runner, job.ID, StatusFailed)
	if failed.LastStage != StageClassify || failed.LastError != "boom" {
		t.Fatalf("unexpected failure record %+v", failed)
	}
}

type memHistory struct {
	mu       sync.Mutex
	last     int64
	saved    map[int64]Job
	statuses map[int64][]string
	lines    int
}

func newMemHistory(last int64) *memHistory {
	return &memHistory{last: last, saved: map[int64]Job{}, statuses: map[int64][]string{}}
}

func (h *memHistory) SaveJob(ctx context.Context, j Job) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saved[j.ID] = j
	h.statuses[j.ID] = append(h.statuses[j.ID], j.Status)
	return nil
}

func (h *memHistory) FindJobByKey(ctx context.Context, key string) (Job, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, j := range h.saved {
		if j.IdempotencyKey == key {
			return j, true, nil
		}
	}
	return Job{}, false, nil
}

func (h *memHistory) AppendJobLog(ctx context.Context, id int64, line string, ts time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines++
	return nil
}

func (h *memHistory) LastJobID(ctx context.Context) (int64, error) { return h.last, nil }

func (h *memHistory) get(id int64) (Job, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.saved[id], h.lines
}

func TestRunnerWritesHistory(t *testing.T) {
	hist := newMemHistory(41)
	reg := Registry{StageClassify: func(ctx context.Context, exec ExecutionContext, job *Job) error { return nil }}
	runner := NewRunner(testConfig(1, 4), reg, nil)
	if err := runner.UseHistory(context.Background(), hist); err != nil {
		t.Fatal(err)
	}
	runner.Start(context.Background())
	defer runner.Stop()

	job, err := runner.Enqueue(context.Background(), report(t, "lane merge"))
	if err != nil {
		t.Fatal(err)
	}
	if job.ID != 42 {
		t.Fatalf("expected numbering to continue at 42, got %d", job.ID)
	}
	waitFor(t, runner, job.ID, StatusSucceeded)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if saved, lines := hist.get(job.ID); saved.Status == StatusSucceeded && lines > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	saved, lines := hist.get(job.ID)
	t.Fatalf("history not updated: %+v (%d log lines)", saved, lines)
}

func TestHistoryStatusOrder(t *testing.T) {
	hist := newMemHistory(0)
	reg := Registry{StageClassify: func(ctx context.Context, exec ExecutionContext, job *Job) error { return nil }}
	runner := NewRunner(testConfig(4, 16), reg, nil)
	if err := runner.UseHistory(context.Background(), hist); err != nil {
		t.Fatal(err)
	}
	runner.Start(context.Background())
	defer runner.Stop()

	var ids []int64
	for _, desc := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		job, err := runner.Enqueue(context.Background(), report(t, "sudden stop "+desc))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, job.ID)
	}
	for _, id := range ids {
		waitFor(t, runner, id, StatusSucceeded)
	}
	eventually(t, func() bool {
		hist.mu.Lock()
		defer hist.mu.Unlock()
		for _, id := range ids {
			seq := hist.statuses[id]
			if len(seq) == 0 || seq[len(seq)-1] != StatusSucceeded {
				return false
			}
		}
		return true
	})
	hist.mu.Lock()
	defer hist.mu.Unlock()
	for _, id := range ids {
		if seq := hist.statuses[id]; seq[0] != StatusQueued {
			t.Fatalf("job %d saved out of order: %v", id, seq)
		}
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEnqueueConsultsHistory(t *testing.T) {
	hist := newMemHistory(0)
	first := NewRunner(testConfig(0, 4), Registry{}, nil)
	if err := first.UseHistory(context.Background(), hist); err != nil {
		t.Fatal(err)
	}
	r := report(t, "texting at the light")
	job, err := first.Enqueue(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}

	// A fresh runner over the same history stands in for a restarted process.
	second := NewRunner(testConfig(0, 4), Registry{}, nil)
	if err := second.UseHistory(context.Background(), hist); err != nil {
		t.Fatal(err)
	}
	again, err := second.Enqueue(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != job.ID || second.QueueDepth() != 0 {
		t.Fatalf("expected the recorded job %d, got %d (queue %d)", job.ID, again.ID, second.QueueDepth())
	}
}

func TestInboxReportsKeyedByFile(t *testing.T) {
	runner := NewRunner(testConfig(0, 4), Registry{}, nil)
	partial, err := reports.ParseFile("/inbox/long.txt", []byte("Driver was texting"), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	full, err := reports.ParseFile("/inbox/long.txt", []byte("Driver was texting while merging"), time.Now().Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	j1, _ := runner.Enqueue(context.Background(), partial)
	j2, _ := runner.Enqueue(context.Background(), full)
	if j1.ID != j2.ID || runner.QueueDepth() != 1 {
		t.Fatalf("one inbox file should map to one job, got %d and %d", j1.ID, j2.ID)
	}
}

func TestRunnerPrunesFinishedJobs(t *testing.T) {
	reg := Registry{StageClassify: func(ctx context.Context, exec ExecutionContext, job *Job) error {
		exec.Logf(job.ID, "classified")
		return nil
	}}
	runner := NewRunner(testConfig(1, 8), reg, nil)
	runner.retain = 2
	runner.Start(context.Background())
	defer runner.Stop()

	var last Job
	for _, desc := range []string{"one", "two", "three", "four"} {
		job, err := runner.Enqueue(context.Background(), report(t, desc))
		if err != nil {
			t.Fatal(err)
		}
		last = waitFor(t, runner, job.ID, StatusSucceeded)
	}
	eventually(t, func() bool { return len(runner.List(0)) == 2 })
	if _, ok := runner.Job(1); ok {
		t.Fatal("oldest job should have been dropped")
	}
	if len(runner.Logs(1)) != 0 {
		t.Fatal("logs of dropped job should be gone")
	}
	if _, ok := runner.Job(last.ID); !ok {
		t.Fatal("newest job should be retained")
	}
}
