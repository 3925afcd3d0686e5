package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/attendance"
	"github.com/xkilldash9x/kintai-cli/internal/browser"
	"github.com/xkilldash9x/kintai-cli/internal/config"
	"github.com/xkilldash9x/kintai-cli/internal/diagnostics"
	"github.com/xkilldash9x/kintai-cli/internal/observability"
)

type clockSpec struct {
	action  schemas.Action
	use     string
	aliases []string
	short   string
}

var (
	clockIn = clockSpec{
		action:  schemas.ActionCheckIn,
		use:     "in",
		aliases: []string{"出勤", "checkin", "check-in"},
		short:   "Clock in (出勤)",
	}
	clockOut = clockSpec{
		action:  schemas.ActionCheckOut,
		use:     "out",
		aliases: []string{"退勤", "checkout", "check-out"},
		short:   "Clock out (退勤)",
	}
)

var (
	// newLauncher is swapped in tests to avoid starting Chrome.
	newLauncher = func(cfg *config.Config, logger *zap.Logger) schemas.Launcher {
		return browser.NewManager(cfg.Browser, logger)
	}
	// waitForRelease blocks while a kept-open browser is in use.
	waitForRelease = func(ctx context.Context) { <-ctx.Done() }
)

const closeTimeout = 15 * time.Second

func newClockCmd(spec clockSpec) *cobra.Command {
	cmd := &cobra.Command{
		Use:     spec.use,
		Aliases: spec.aliases,
		Short:   spec.short,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			location := cfg.Target.Location
			if cmd.Flags().Changed("location") {
				location, _ = cmd.Flags().GetString("location")
			}

			engine := attendance.NewEngine(cfg, newLauncher(cfg, logger), diagnostics.NewRecorder(cfg.Diagnostics, logger), logger)
			out := engine.Run(ctx, spec.action, location)

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s: %s\n", spec.action, out.Result)
			if out.Diagnostic != "" {
				fmt.Fprintf(w, "diagnostics: %s\n", out.Diagnostic)
			}

			if out.Browser != nil {
				fmt.Fprintln(w, "Browser left open. Press Ctrl+C to close it.")
				waitForRelease(ctx)
				closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
				if err := out.Browser.Close(closeCtx); err != nil {
					logger.Warn("Failed to close the browser.", zap.Error(err))
				}
				cancel()
			}

			if out.Result.ExitCode() != 0 {
				if out.Err != nil {
					return fmt.Errorf("%w: %s: %w", ErrWorkflowFailed, out.Result, out.Err)
				}
				return fmt.Errorf("%w: %s", ErrWorkflowFailed, out.Result)
			}
			return nil
		},
	}
	cmd.Flags().StringP("location", "l", "", "work location tab to select first (overrides target.location)")
	return cmd
}
