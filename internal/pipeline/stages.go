package pipeline

import (
	"context"
	"errors"
	"fmt"

	"drivesafe/internal/jobs"
	"drivesafe/internal/journal"
	"drivesafe/internal/metrics"
	"drivesafe/internal/notify"
	"drivesafe/internal/reports"
	"drivesafe/safetytips"
)

// Deps are the collaborators the report stages need.
type Deps struct {
	Tips     *safetytips.Generator
	Journal  *journal.Journal[reports.Entry]
	Notifier *notify.GroupMe
}

// BuildRegistry wires the report stages.
func BuildRegistry(deps Deps) jobs.Registry {
	return jobs.Registry{
		jobs.StageClassify: classifyStage(deps.Tips),
		jobs.StageRecord:   recordStage(deps.Journal),
		jobs.StageNotify:   notifyStage(deps.Notifier),
	}
}

func classifyStage(gen *safetytips.Generator) jobs.StageFunc {
	return func(ctx context.Context, exec jobs.ExecutionContext, job *jobs.Job) error {
		advice := gen.Analyze(job.Report.Description, exec.Cfg.MaxTips)
		job.Advice = &advice
		metrics.ObserveAdvice(advice.Fallback)
		exec.Logf(job.ID, fmt.Sprintf("classified %s: categories=%v tips=%d", job.ReportID, advice.Categories, len(advice.Tips)))
		return nil
	}
}

func recordStage(j *journal.Journal[reports.Entry]) jobs.StageFunc {
	return func(ctx context.Context, exec jobs.ExecutionContext, job *jobs.Job) error {
		if job.Advice == nil {
			return errors.New("report not classified")
		}
		n, err := j.Append(reports.NewEntry(job.Report, *job.Advice))
		if err != nil {
			return fmt.Errorf("journal append: %w", err)
		}
		metrics.IncReportsRecorded()
		exec.Logf(job.ID, fmt.Sprintf("recorded %s as entry %d in %s", job.ReportID, n, j.Path()))
		return nil
	}
}

func notifyStage(n *notify.GroupMe) jobs.StageFunc {
	return func(ctx context.Context, exec jobs.ExecutionContext, job *jobs.Job) error {
		if !n.Enabled() {
			exec.Logf(job.ID, "notify skipped: no bot configured")
			return nil
		}
		if job.Advice == nil {
			return errors.New("report not classified")
		}
		msg := notify.Message{Text: reports.BuildAlert(job.Report, *job.Advice)}
		if err := n.Send(ctx, msg); err != nil {
			return fmt.Errorf("groupme: %w", err)
		}
		metrics.IncAlertsSent()
		exec.Logf(job.ID, "alert posted")
		return nil
	}
}
