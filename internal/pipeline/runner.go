package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"biolabel/internal/config"
	"biolabel/internal/history"
	"biolabel/internal/logging"
	"biolabel/internal/pipeerr"
	"biolabel/internal/staging"
)

// Runner executes pipeline stages against one configuration.
type Runner struct {
	cfg     *config.Config
	logger  *slog.Logger
	history *history.Store
	lock    *flock.Flock
}

// Option customizes a Runner.
type Option func(*Runner)

// WithHistory records every invocation and stage unit in store.
func WithHistory(store *history.Store) Option {
	return func(r *Runner) {
		r.history = store
	}
}

// New builds a runner. A nil logger discards output.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		lock:   flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the runner's configuration.
func (r *Runner) Config() *config.Config { return r.cfg }

// Do runs fn as one invocation named command: it takes the exclusive
// state_dir lock, opens a history run when history is enabled, and finishes
// that run with fn's outcome. Overlapping invocations fail with
// pipeerr.ErrBusy.
func (r *Runner) Do(ctx context.Context, command string, fn func(context.Context) error) (err error) {
	if err := r.cfg.EnsureDirectories(); err != nil {
		return pipeerr.Wrap(pipeerr.ErrIO, command, "prepare directories", "", err)
	}
	ok, err := r.lock.TryLock()
	if err != nil {
		return pipeerr.Wrap(pipeerr.ErrIO, command, "acquire lock", r.cfg.LockPath(), err)
	}
	if !ok {
		return pipeerr.Wrap(pipeerr.ErrBusy, command, "acquire lock", fmt.Sprintf("another invocation holds %s", r.cfg.LockPath()), nil)
	}
	defer func() {
		if unlockErr := r.lock.Unlock(); unlockErr != nil {
			r.logger.Warn("failed to release pipeline lock", logging.Error(unlockErr))
		}
	}()

	// the lock is held, so every temp file left in the output dirs is from a crashed run
	staging.CleanStale(ctx, r.cfg.OutputDirs(), 0, r.logger)

	if r.history != nil {
		run, beginErr := r.history.BeginRun(ctx, command, r.cfg.Pipeline.Subject)
		if beginErr != nil {
			logging.WarnWithContext(r.logger, "run history unavailable", "history_begin_failed",
				logging.Error(beginErr),
				logging.String(logging.FieldImpact, "this invocation is not recorded in history"),
			)
		} else {
			ctx = logging.WithRunID(ctx, run.ID)
			defer func() {
				// a cancelled ctx must not prevent the outcome from being stored
				if finishErr := r.history.FinishRun(context.WithoutCancel(ctx), run.ID, err); finishErr != nil {
					r.logger.Warn("failed to record run outcome", logging.Error(finishErr))
				}
			}()
		}
	}

	logging.WithContext(ctx, r.logger).Info("invocation started",
		logging.String(logging.FieldEventType, "invocation_start"),
		logging.String("command", command),
		logging.String("subject", r.cfg.Pipeline.Subject),
	)
	return fn(ctx)
}

// stage wraps one stage with start/complete/failure logging and a
// cancellation check before any work starts.
func (r *Runner) stage(ctx context.Context, name string, fn func(context.Context, *slog.Logger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stageCtx := logging.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, r.logger)
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	started := time.Now()
	if err := fn(stageCtx, logger); err != nil {
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.String("error_kind", pipeerr.Kind(err)),
			logging.String(logging.FieldErrorHint, pipeerr.Hint(err)),
			logging.Error(err),
		)
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// record stores a stage unit when the invocation has a history run.
func (r *Runner) record(ctx context.Context, logger *slog.Logger, res history.StageResult) {
	if r.history == nil {
		return
	}
	id, ok := logging.RunIDFromContext(ctx)
	if !ok {
		return
	}
	res.RunID = id
	if err := r.history.RecordStage(context.WithoutCancel(ctx), res); err != nil {
		logger.Warn("failed to record stage result", logging.Error(err))
	}
}
