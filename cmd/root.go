// Package cmd defines the CLI commands for the monitor executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/eu-innovation-monitor/internal/config"
	"github.com/JakeFAU/eu-innovation-monitor/internal/logging"
	"github.com/JakeFAU/eu-innovation-monitor/internal/telemetry"
)

type runtimeKey struct{}

// runtime is what PersistentPreRunE hands to subcommands.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
	tracer *sdktrace.TracerProvider
}

// newRootCmd creates the root command. The config file flag is local to the
// returned command so tests can build independent trees.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Normalizes EU policy and finance pages into weekly NDJSON shards.",
		Long: `monitor fetches the pages listed by the discovery step, extracts and
classifies them, and appends one document.v2 record per page to the
ISO-week shard. "process" runs a batch; "serve" exposes the same pipeline
over HTTP.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.NewWithLevel(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			if cfgFile != "" && cfg.ConfigFile == "" {
				logger.Warn("config file not found; using defaults and environment", zap.String("path", cfgFile))
			}
			tp, err := telemetry.InitTracerProvider(cmd.Context(), telemetry.ServiceName, "")
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			rt := &runtime{cfg: cfg, logger: logger, tracer: tp}
			ctx := context.WithValue(cmd.Context(), runtimeKey{}, rt)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			rt, err := runtimeFrom(cmd.Context())
			if err != nil {
				return
			}
			if err := rt.tracer.Shutdown(context.Background()); err != nil {
				rt.logger.Warn("tracer shutdown failed", zap.Error(err))
			}
			_ = rt.logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); MONITOR_* env vars override it")

	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func runtimeFrom(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(runtimeKey{}).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("configuration not loaded")
	}
	return rt, nil
}

// Execute runs the root command until it finishes or a signal arrives.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "monitor: %v\n", err)
		stop()
		os.Exit(1)
	}
}
