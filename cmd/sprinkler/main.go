// Package main is the sprinkler entry point. Each invocation performs one
// irrigation pass over a schedule file and exits; run it daily from cron.
//
//	sprinkler [-dry-run] [schedule-file]
//
// The schedule path defaults to SCHEDULE_PATH. Exit status is 0 when the pass
// completes (including rain-suppressed days and soft device failures), 1 on
// configuration or schedule errors or when interrupted, and 2 on usage errors.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/google/uuid"

	"sprinkler/internal/config"
	"sprinkler/internal/external"
	"sprinkler/internal/metrics"
	"sprinkler/internal/raingate"
	"sprinkler/internal/schedule"
	"sprinkler/internal/scheduler"
	"sprinkler/internal/types"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, scheduler.SystemClock{})
	cancel()
	os.Exit(code)
}

// run encapsulates one pass so that main() only maps it to an exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, clock scheduler.Clock) int {
	fs := flag.NewFlagSet("sprinkler", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dryRun := fs.Bool("dry-run", false, "log valve triggers instead of sending them")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage:\n  sprinkler [-dry-run] [schedule-file]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if *showVersion {
		fmt.Fprintf(stdout, "sprinkler %s\n", config.NewBuildInfo())
		return exitOK
	}
	if fs.NArg() > 1 {
		fmt.Fprintf(stderr, "error: expected at most one schedule file, got %d arguments\n\n", fs.NArg())
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.LoadConfig(secretProvider())
	if err != nil {
		fmt.Fprintf(stderr, "fatal: loading configuration: %v\n", err)
		return exitFatal
	}
	if *dryRun {
		cfg.Irrigation.DryRun = true
	}

	path := cfg.SchedulePath
	if fs.NArg() == 1 {
		path = fs.Arg(0)
	}
	if path == "" {
		fmt.Fprintf(stderr, "error: no schedule file given and SCHEDULE_PATH is not set\n\n")
		fs.Usage()
		return exitUsage
	}

	runID := uuid.NewString()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, stdout).With("run_id", runID)
	ctx = types.WithRunID(ctx, runID)
	ctx = types.WithLogger(ctx, logger)

	logger.InfoContext(ctx, "sprinkler starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"schedule", path,
		"dry_run", cfg.Irrigation.DryRun,
	)

	clock = scheduler.InLocation(clock, cfg.Location())

	sched, err := schedule.Load(path, clock.Now())
	if err != nil {
		return finish(ctx, logger, "cannot load schedule", err)
	}

	recorder := newRecorder(ctx, cfg, runID, logger)
	clients := external.NewClientRegistry(cfg, logger)

	gate := raingate.New(raingate.Config{
		Sensor:   clients.Sensor,
		Forecast: clients.Forecast,
		PopLimit: cfg.Forecast.PopLimit,
		Logger:   logger,
	})
	runner := scheduler.NewRunner(scheduler.RunnerConfig{
		Actuator:          clients.Valves,
		Clock:             clock,
		Metrics:           recorder,
		MaxSession:        cfg.Irrigation.MaxSessionDuration,
		InterSessionDelay: cfg.Irrigation.InterSessionDelay,
		Logger:            logger,
	})
	irrigator := scheduler.NewIrrigator(scheduler.IrrigatorConfig{
		Gate:    gate,
		Runner:  runner,
		Clock:   clock,
		Metrics: recorder,
		Logger:  logger,
	})

	_, err = irrigator.Run(ctx, sched)
	return finish(ctx, logger, "run aborted", err)
}

// exitStatus maps the error that ended a pass to the process exit status.
// Only fatal AppError codes and interruptions fail the process; a soft
// upstream error means the devices misbehaved, not the run.
func exitStatus(err error) int {
	if err == nil {
		return exitOK
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) && !appErr.Fatal() {
		return exitOK
	}
	return exitFatal
}

// finish logs err at a level matching its exit status and returns that status.
func finish(ctx context.Context, logger *slog.Logger, msg string, err error) int {
	code := exitStatus(err)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		logger.WarnContext(ctx, "run interrupted")
	case code == exitOK:
		logger.WarnContext(ctx, "run ended on an upstream failure", "error", err)
	default:
		logFatal(ctx, logger, msg, err)
	}
	return code
}

// secretProvider returns the SSM provider outside local development, where
// the loader skips secret resolution entirely. It reads the raw environment
// because the typed Config does not exist yet.
func secretProvider() config.SecretProvider {
	env := os.Getenv("APP_ENV")
	if env == "" || env == "local" {
		return nil
	}
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	return config.NewSSMProvider(region, os.Getenv("AWS_ENDPOINT_URL"), config.ParameterPrefix(env))
}

// newRecorder builds the configured metrics sink. Metrics never stop a run,
// so a sink that cannot be built degrades to metrics.Nop.
func newRecorder(ctx context.Context, cfg *config.Config, runID string, logger *slog.Logger) scheduler.MetricsRecorder {
	switch cfg.Metrics.Backend {
	case "cloudwatch":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			logger.WarnContext(ctx, "cloudwatch unavailable, metrics disabled", "error", err)
			return metrics.Nop{}
		}
		client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		return metrics.NewCloudWatchRecorder(client, cfg.Metrics.Namespace, logger)
	case "pushgateway":
		return metrics.NewPushRecorder(cfg.Metrics.PushgatewayURL, cfg.Metrics.Namespace, runID)
	default:
		return metrics.Nop{}
	}
}

func logFatal(ctx context.Context, logger *slog.Logger, msg string, err error) {
	attrs := []any{"error", err}
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		attrs = append(attrs, "code", appErr.Code)
		for k, v := range appErr.Details {
			attrs = append(attrs, k, v)
		}
	}
	logger.ErrorContext(ctx, msg, attrs...)
}

func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
