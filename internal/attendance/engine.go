// Package attendance drives the clock-in and clock-out workflow: login,
// optional location selection, state detection and the single click.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/config"
	"github.com/xkilldash9x/kintai-cli/internal/poll"
	"github.com/xkilldash9x/kintai-cli/internal/resolver"
)

// releaseTimeout bounds closing the browser and capturing diagnostics after
// the run context may already be done.
const releaseTimeout = 15 * time.Second

// Outcome is the terminal record of one run.
type Outcome struct {
	RunID  string
	Action schemas.Action
	Result schemas.Result
	// Err explains a non-OK result.
	Err error
	// Diagnostic is where the diagnostic capture was written, if anywhere.
	Diagnostic string
	// Browser is set when the browser was left open (auto_close disabled).
	// The caller owns it and must Close it.
	Browser  schemas.BrowsingContext
	Duration time.Duration
}

// Engine runs attendance workflows. A run is synchronous; an Engine may be
// reused for consecutive runs.
type Engine struct {
	cfg      *config.Config
	launcher schemas.Launcher
	sink     schemas.DiagnosticSink
	logger   *zap.Logger
}

// NewEngine creates an engine. sink may be nil to skip diagnostic capture.
func NewEngine(cfg *config.Config, launcher schemas.Launcher, sink schemas.DiagnosticSink, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		launcher: launcher,
		sink:     sink,
		logger:   logger.Named("workflow"),
	}
}

// Run performs action once. location selects a work location tab first when
// non-empty. Run never panics and always returns an Outcome; the browser is
// released on every path unless auto_close is disabled.
func (e *Engine) Run(ctx context.Context, action schemas.Action, location string) (out Outcome) {
	start := time.Now()
	out = Outcome{RunID: uuid.New().String(), Action: action, Result: schemas.ResultFailed}
	logger := e.logger.With(zap.String("run_id", out.RunID), zap.Stringer("action", action))

	if !action.Valid() {
		out.Err = fmt.Errorf("invalid action %s", action)
		return out
	}

	logger.Info("Starting attendance run.")
	bc, err := e.launcher.Launch(ctx)
	if err != nil {
		out.Err = fmt.Errorf("launch browser: %w", err)
		logger.Error("Failed to acquire a browser.", zap.Error(err))
		return out
	}

	x := &Execution{
		RunID:   out.RunID,
		Action:  action,
		Config:  e.cfg,
		Browser: bc,
		Sink:    e.sink,
		Logger:  logger,
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered during attendance run.",
				zap.Any("panic_value", r),
				zap.Stack("stack"),
			)
			out.Result = schemas.ResultFailed
			out.Err = fmt.Errorf("%w: %v", ErrUnexpectedFault, r)
		}
		e.finish(ctx, x, &out)
		out.Duration = time.Since(start)
	}()

	out.Result, out.Err = e.execute(ctx, x, location)
	return out
}

// execute runs the phases after the browser is acquired.
func (e *Engine) execute(ctx context.Context, x *Execution, location string) (schemas.Result, error) {
	logger := x.Logger

	if err := Login(ctx, x); err != nil {
		if errors.Is(err, ErrLoginFailed) {
			return schemas.ResultLoginFailed, err
		}
		return schemas.ResultFailed, err
	}

	r := x.resolver()

	if location != "" {
		if _, err := SelectLocation(ctx, x, r, location); err != nil {
			return schemas.ResultFailed, err
		}
	}

	if x.Action.RequiresCheckIn() {
		state, determined, err := NewDetector(x.Browser, r, e.cfg.Buttons.CheckIn, logger).Detect(ctx)
		if err != nil {
			return schemas.ResultFailed, err
		}
		if !determined {
			logger.Warn("Check-in state unknown; treating as not checked in.")
		}
		if state == schemas.StateNotDone {
			return schemas.ResultNotCheckedIn, errors.New("check-out requested before check-in")
		}
	}

	spec := e.cfg.Buttons.For(x.Action)
	ctl, err := r.Resolve(ctx, spec)
	if err != nil {
		return schemas.ResultFailed, err
	}
	if ctl == nil {
		logger.Info("Falling back to identifier search.", zap.String("id", spec.ID))
		if ctl, err = r.ResolveByIdentifier(ctx, spec); err != nil {
			return schemas.ResultFailed, err
		}
	}
	if ctl == nil {
		return schemas.ResultFailed, fmt.Errorf("%w: %s", ErrControlNotFound, spec)
	}

	if isDisabled(ctx, x.Browser, ctl, logger) {
		logger.Info("Control is disabled; action already performed.", zap.String("element", ctl.Ref.Describe()))
		return x.Action.DisabledResult(), nil
	}

	err = resolver.Within(ctx, x.Browser, ctl, func(ctx context.Context, el schemas.ElementRef) error {
		return click(ctx, x.Browser, el, logger)
	})
	if err != nil {
		return schemas.ResultFailed, fmt.Errorf("click %s: %w", spec.Name, err)
	}
	logger.Info("Control clicked.", zap.String("element", ctl.Ref.Describe()), zap.String("strategy", ctl.Strategy))

	if err := poll.Sleep(ctx, e.cfg.Workflow.ClickSettle); err != nil {
		// The click already happened.
		logger.Warn("Interrupted while settling after the click.", zap.Error(err))
	}
	return x.Action.ClickedResult(), nil
}

// finish captures diagnostics for the outcome and releases the browser.
func (e *Engine) finish(ctx context.Context, x *Execution, out *Outcome) {
	logger := x.Logger
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if e.sink != nil && e.cfg.Diagnostics.Enabled {
		where, err := e.sink.Capture(cleanupCtx, x.Browser, x.Action, out.Result.Tag())
		if err != nil {
			logger.Warn("Diagnostic capture failed.", zap.Error(err))
		}
		out.Diagnostic = where
	}

	fields := []zap.Field{zap.Stringer("result", out.Result), zap.Int("exit_code", out.Result.ExitCode())}
	if out.Err != nil {
		fields = append(fields, zap.Error(out.Err))
	}
	if out.Result.OK() {
		logger.Info("Attendance run finished.", fields...)
	} else {
		logger.Error("Attendance run finished.", fields...)
	}

	if !e.cfg.Browser.AutoClose {
		logger.Info("Leaving the browser open (auto_close disabled).")
		out.Browser = x.Browser
		return
	}
	if err := x.Browser.Close(cleanupCtx); err != nil {
		logger.Warn("Failed to close the browser.", zap.Error(err))
	}
}
