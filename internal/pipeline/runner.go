package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Stage is one named step of a run.
type Stage struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner executes stages one after another, stopping at the first failure.
// Each stage finishes writing its output before the next one starts.
type Runner struct {
	log zerolog.Logger
}

func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{log: log}
}

// newRunID returns a time-ordered id tagging every log line of one run.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Run executes stages in order and returns the final state of every stage.
// Stages after a failure are reported as skipped.
func (r *Runner) Run(ctx context.Context, stages ...Stage) ([]StageSnapshot, error) {
	rlog := r.log.With().Str("run", newRunID()).Logger()
	runs := make([]*StageRun, len(stages))
	for i, st := range stages {
		runs[i] = newStageRun(st.Name)
		rlog.Debug().Str("stage", st.Name).Str("status", string(StatusQueued)).Msg("stage queued")
	}

	var failed error
	for i, st := range stages {
		run := runs[i]
		if failed == nil {
			failed = ctx.Err()
		}
		if failed != nil {
			run.SetStatus(StatusSkipped)
			continue
		}

		log := rlog.With().Str("stage", st.Name).Logger()
		run.SetStatus(StatusRunning)
		log.Info().Str("status", string(StatusRunning)).Msg("stage started")

		if err := st.Run(ctx); err != nil {
			run.Fail(err)
			log.Error().Err(err).Str("status", string(StatusFailed)).
				Int64("duration_ms", run.Snapshot().DurationMs).Msg("stage failed")
			failed = fmt.Errorf("stage %s: %w", st.Name, err)
			continue
		}
		run.SetStatus(StatusCompleted)
		log.Info().Str("status", string(StatusCompleted)).
			Int64("duration_ms", run.Snapshot().DurationMs).Msg("stage completed")
	}

	out := make([]StageSnapshot, len(runs))
	for i, run := range runs {
		out[i] = run.Snapshot()
	}
	return out, failed
}
