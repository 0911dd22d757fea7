package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/schedkit/sched/pkg/core"
	"github.com/schedkit/sched/pkg/runner"
)

// RecorderOption configures a Recorder.
type RecorderOption interface {
	ApplyRecorder(*RecorderConfig)
}

type recorderOptionFunc func(*RecorderConfig)

func (f recorderOptionFunc) ApplyRecorder(c *RecorderConfig) { f(c) }

// RecorderConfig holds recorder configuration.
type RecorderConfig struct {
	Logger  *slog.Logger
	Timeout time.Duration
}

// WithRecorderLogger sets the logger used for storage failures.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return recorderOptionFunc(func(c *RecorderConfig) {
		if l != nil {
			c.Logger = l
		}
	})
}

// WithRecordTimeout bounds each Record call.
func WithRecordTimeout(d time.Duration) RecorderOption {
	return recorderOptionFunc(func(c *RecorderConfig) {
		if d > 0 {
			c.Timeout = d
		}
	})
}

// Recorder writes every finished run of the runners it is attached to
// into a store. Storage failures are logged and never affect the
// schedule itself.
type Recorder struct {
	store  *GormStore
	config RecorderConfig
}

// NewRecorder creates a recorder backed by the given store.
func NewRecorder(store *GormStore, opts ...RecorderOption) *Recorder {
	config := RecorderConfig{
		Logger:  slog.Default(),
		Timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt.ApplyRecorder(&config)
	}
	return &Recorder{store: store, config: config}
}

// Attach registers the recorder on the runner's run-ended hook.
func (rec *Recorder) Attach(r *runner.Runner) {
	r.OnRunEnd(func(report core.Report) {
		ctx, cancel := context.WithTimeout(context.Background(), rec.config.Timeout)
		defer cancel()

		if err := rec.store.Record(ctx, report); err != nil {
			rec.config.Logger.Error("failed to record run",
				"schedule", report.Schedule, "error", err)
		}
	})
}
