package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rokkincat/trackload/internal/config"
	"github.com/rokkincat/trackload/internal/loadtest/engine"
	"github.com/rokkincat/trackload/internal/loadtest/executor"
	"github.com/rokkincat/trackload/internal/loadtest/output"
	"github.com/rokkincat/trackload/internal/tracker"
)

type runFlags struct {
	json       bool
	outputPath string
	quiet      bool
}

func newRunCmd(opts *options) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the point ingestion load test",
		Long: `Run the point ingestion load test. Each virtual user logs in and submits
one location point per iteration, and both steps are recorded as checks.

By default the load ramps to 10 VUs over 30s and holds for 5m.

Examples:
  trackload run --host https://tracking.example.com --email admin@example.com --password secret
  trackload run -c trackload.yaml --stages "1m:50,10m:50,1m:0"
  trackload run -c trackload.yaml --vus 20 --duration 2m --json -o result.json

The command exits non-zero when any threshold fails. SIGINT or SIGTERM
stops the run gracefully and still prints the summary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLoad(ctx, cmd, opts, flags)
		},
	}

	f := cmd.Flags()
	f.String(config.KeyName, "", "Test name shown in reports")
	f.String(config.KeyExecutor, "", fmt.Sprintf("Executor, one of %v", executor.GetSupportedExecutors()))
	f.String(config.KeyStages, "", "Ramping stages as 'duration:target,...' (e.g. 30s:10,5m:10)")
	f.Int(config.KeyVUs, 0, "Run a constant number of VUs instead of stages")
	f.String(config.KeyDuration, "", "Duration for --vus (default 30s)")
	f.String(config.KeyGracefulStop, "", "Time in-flight iterations get to finish (default 30s)")
	f.Bool(config.KeyReuseSession, false, "Keep one session per VU until its token expires")
	f.String(config.KeySessionTTL, "", "Lifetime of reused tokens without an exp claim")
	f.Bool(config.KeyContinueOnAuthFailure, false, "Send the point even when login fails")
	f.Bool(config.KeyNoConnectionReuse, false, "Give each VU its own connection pool")
	f.String(config.KeyMetricsAddr, "", "Serve Prometheus metrics on this address during the run")
	bindFlags(opts.viper, f, config.KeyName, config.KeyExecutor, config.KeyStages, config.KeyVUs,
		config.KeyDuration, config.KeyGracefulStop, config.KeyReuseSession, config.KeySessionTTL,
		config.KeyContinueOnAuthFailure, config.KeyNoConnectionReuse, config.KeyMetricsAddr)

	f.BoolVar(&flags.json, "json", false, "Write the result as JSON to stdout")
	f.StringVarP(&flags.outputPath, "output", "o", "", "Write the result as JSON to this file")
	f.BoolVarP(&flags.quiet, "quiet", "q", false, "Disable live progress, print only PASSED or FAILED")

	return cmd
}

func runLoad(ctx context.Context, cmd *cobra.Command, opts *options, flags *runFlags) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	scenario := tracker.NewLoadScenario(tracker.ScenarioConfigFrom(cfg))
	eng, err := engine.NewEngine(cfg, scenario, logger)
	if err != nil {
		return err
	}

	// JSON on stdout owns stdout; the console moves to stderr.
	var consoleOut io.Writer = cmd.OutOrStdout()
	if flags.json {
		consoleOut = cmd.ErrOrStderr()
	}

	console := output.NewConsoleOutput(output.ConsoleOutputConfig{
		TestName:      cfg.Name,
		Host:          cfg.Target.Host,
		ExecutorType:  cfg.Load.Executor,
		TotalDuration: cfg.Load.TotalDuration(),
		Writer:        consoleOut,
		Quiet:         flags.quiet,
	})
	console.PrintHeader()

	result, runErr := runWithProgress(ctx, eng, console, cfg)
	if result == nil {
		return runErr
	}
	if runErr != nil {
		logger.Error("run ended with an error", zap.Error(runErr))
	}

	console.PrintSummary(result)

	if flags.json {
		if err := output.WriteJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	}
	if flags.outputPath != "" {
		if err := output.WriteJSONFile(flags.outputPath, result); err != nil {
			return err
		}
		logger.Info("result written", zap.String("path", flags.outputPath))
	}

	switch {
	case runErr != nil:
		return runErr
	case !result.Passed:
		return ErrThresholdsFailed
	}
	return nil
}

// runWithProgress runs eng while refreshing the console once a second.
func runWithProgress(ctx context.Context, eng *engine.Engine, console *output.ConsoleOutput, cfg *config.Config) (*engine.TestResult, error) {
	type outcome struct {
		result *engine.TestResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := eng.Run(ctx)
		done <- outcome{result, err}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	totalDuration := cfg.Load.TotalDuration()
	targetVUs := cfg.Load.MaxVUs()

	for {
		select {
		case o := <-done:
			return o.result, o.err
		case <-ticker.C:
			if !eng.IsRunning() {
				continue
			}
			var current, total int
			if s := eng.GetStats(); s != nil {
				if s.TotalStages > 0 {
					current, total = s.CurrentStage+1, s.TotalStages
				}
				if s.TargetVUs > 0 {
					targetVUs = s.TargetVUs
				}
			}
			stats := output.StatsFromMetrics(eng.GetMetrics(), eng.GetProgress(), totalDuration, targetVUs, current, total)
			if console.IsTTY() {
				console.Update(stats)
			} else {
				console.PrintNonInteractiveUpdate(stats)
			}
		}
	}
}

// ExitCode maps a command error onto the process exit status: 1 for failed
// thresholds or checks, 2 for anything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrThresholdsFailed), errors.Is(err, ErrCheckFailed):
		return 1
	default:
		return 2
	}
}
