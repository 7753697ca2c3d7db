package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/eu-innovation-monitor/internal/app"
	"github.com/JakeFAU/eu-innovation-monitor/internal/discovery"
	"github.com/JakeFAU/eu-innovation-monitor/internal/metrics"
	"github.com/JakeFAU/eu-innovation-monitor/internal/pipeline"
)

func newProcessCmd() *cobra.Command {
	var (
		from  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process the latest discovery aggregate into the weekly shard",
		Long: `Reads the discovery aggregate, processes at most --limit items in order and
prints a one-line JSON run summary to stdout. Per-item failures are skipped and the
command still exits 0; a missing or unreadable aggregate prints
{"processed": 0, "reason": ...}.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := runtimeFrom(cmd.Context())
			if err != nil {
				return err
			}
			if from == "" {
				from = rt.cfg.Pipeline.DiscoveryPath
			}
			if !cmd.Flags().Changed("limit") {
				limit = rt.cfg.Pipeline.Limit
			}
			if limit < 0 {
				return fmt.Errorf("--limit must be >= 0, got %d", limit)
			}
			return runProcess(cmd, rt, from, limit)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "discovery aggregate path (default pipeline.discovery_path)")
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum items to process")
	return cmd
}

func runProcess(cmd *cobra.Command, rt *runtime, from string, limit int) error {
	ctx := cmd.Context()
	logger := rt.logger

	agg, err := discovery.Load(from)
	if err != nil {
		logger.Warn("discovery aggregate unavailable", zap.String("path", from), zap.Error(err))
		return writeSummary(cmd.OutOrStdout(), pipeline.InputFailureFor(err))
	}

	services, err := app.New(ctx, rt.cfg, logger)
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}
	defer services.Close()

	runID, err := services.IDs.NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	summary := services.Driver.Run(ctx, runID, agg.Items(limit))

	if url := rt.cfg.Metrics.PushgatewayURL; url != "" {
		if err := metrics.Push(ctx, url, rt.cfg.Metrics.Job); err != nil {
			logger.Warn("push metrics failed", zap.String("url", url), zap.Error(err))
		}
	}
	return writeSummary(cmd.OutOrStdout(), summary)
}

func writeSummary(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
