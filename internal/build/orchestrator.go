package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/draftlab/anvil/internal/image"
)

// Orchestrator runs one build to completion: attach, apply the enabled
// stages in canonical order, then detach with commit on success or discard
// on failure. Detach is guaranteed on every exit path once the image is
// attached, including cancellation.
type Orchestrator struct {
	Manager  *image.Manager
	Registry *Registry
	Logger   *slog.Logger
}

// Run executes one build of the image identified by handle under the given
// configuration. Events receives progress, output, and error notifications
// while the run executes and is closed when the run is terminal; a nil
// events is valid and discards all notifications.
//
// The returned Run always carries a terminal status. Stages mutate a shared
// attached tree, so they execute strictly one at a time; cancellation is
// honored between stages, never mid-stage.
func (o *Orchestrator) Run(ctx context.Context, handle image.ImageHandle, cfg *Config, events *Events) (*Run, error) {
	defer events.close()

	if o.Manager == nil {
		return nil, errors.New("mount manager is not configured")
	}
	if o.Registry == nil {
		return nil, errors.New("stage registry is not configured")
	}
	if cfg == nil {
		return nil, errors.New("build config is required")
	}

	run := &Run{
		ID:     uuid.NewString(),
		Handle: handle,
		Config: cfg,
		Status: StatusPending,
	}
	logger := o.logger().With("run", run.ID, "image", handle.Path, "index", handle.Index)

	o.transition(run, logger, StatusMounting)
	session, err := o.Manager.Attach(ctx, handle, "")
	if err != nil {
		// Nothing was mounted, so there is nothing to roll back.
		return o.fail(run, logger, events, err)
	}
	run.Session = session

	o.transition(run, logger, StatusRunning)
	enabled := cfg.Enabled()
	events.emitOutput(fmt.Sprintf("build %s: applying %d stage(s) at %s", run.ID, len(enabled), session.WorkingDir))

	stageErr := o.applyStages(ctx, run, logger, events, enabled)
	if stageErr != nil {
		return o.rollback(ctx, run, logger, events, stageErr)
	}

	if len(enabled) == 0 {
		// A no-op customization is not an error: report completion directly.
		events.emitProgress(ProgressUpdate{Percent: 100})
	}

	o.transition(run, logger, StatusCommitting)
	if err := o.Manager.Detach(ctx, session, true); err != nil {
		// All stages succeeded, but an uncommitted build is not a success.
		return o.fail(run, logger, events, err)
	}

	o.transition(run, logger, StatusSucceeded)
	events.emitOutput(fmt.Sprintf("build %s: committed", run.ID))
	return run, nil
}

// applyStages runs the enabled stages in order, recording each completion.
// It returns the first stage failure or the cancellation cause.
func (o *Orchestrator) applyStages(ctx context.Context, run *Run, logger *slog.Logger, events *Events, enabled []string) error {
	total := len(enabled)
	for i, name := range enabled {
		if err := ctx.Err(); err != nil {
			logger.Warn("build cancelled", "pending_stage", name)
			return err
		}

		stage, ok := o.Registry.Lookup(name)
		if !ok {
			return &StageError{Stage: name, Err: errors.New("no handler registered")}
		}

		events.emitProgress(ProgressUpdate{
			Stage:     name,
			Completed: i,
			Total:     total,
			Percent:   i * 100 / total,
		})
		events.emitOutput(fmt.Sprintf("applying stage %s (%d/%d)", name, i+1, total))
		logger.Info("applying stage", "stage", name, "position", i+1, "total", total)

		if err := stage.Apply(ctx, run.Session.WorkingDir, run.Config.Profile(name)); err != nil {
			return &StageError{Stage: name, Err: err}
		}
		run.CompletedStages = append(run.CompletedStages, name)
	}
	return nil
}

// rollback discards the attached session and ends the run as failed with the
// original cause. A detach failure during rollback is reported in addition
// to the cause, never instead of it: the working directory may still hold an
// attached image needing manual intervention.
func (o *Orchestrator) rollback(ctx context.Context, run *Run, logger *slog.Logger, events *Events, cause error) (*Run, error) {
	events.emitError(cause.Error())

	o.transition(run, logger, StatusDiscarding)
	// Cleanup must proceed even when the run was cancelled.
	detachCtx := context.WithoutCancel(ctx)
	if detachErr := o.Manager.Detach(detachCtx, run.Session, false); detachErr != nil {
		logger.Error("rollback detach failed, image may still be attached",
			"working_dir", run.Session.WorkingDir, "error", detachErr)
		events.emitError(fmt.Sprintf("rollback failed: %v", detachErr))
		cause = errors.Join(cause, detachErr)
	}

	run.Status = StatusFailed
	run.Err = cause
	logger.Error("build failed", "error", cause)
	return run, cause
}

// fail ends the run as failed for errors with no mounted state to unwind.
func (o *Orchestrator) fail(run *Run, logger *slog.Logger, events *Events, err error) (*Run, error) {
	events.emitError(err.Error())
	run.Status = StatusFailed
	run.Err = err
	logger.Error("build failed", "error", err)
	return run, err
}

func (o *Orchestrator) transition(run *Run, logger *slog.Logger, next Status) {
	run.Status = next
	logger.Debug("run status changed", "status", next)
}

func (o *Orchestrator) logger() *slog.Logger {
	if o != nil && o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
