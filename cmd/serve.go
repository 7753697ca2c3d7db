package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/eu-innovation-monitor/internal/api"
	"github.com/JakeFAU/eu-innovation-monitor/internal/app"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over HTTP until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := runtimeFrom(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				rt.cfg.Server.Port = port
			}
			return runServe(cmd.Context(), rt)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "listen port (default server.port)")
	return cmd
}

func runServe(ctx context.Context, rt *runtime) error {
	logger := rt.logger
	services, err := app.New(ctx, rt.cfg, logger)
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}
	defer services.Close()

	var index api.DocumentLookup
	if services.Index != nil {
		index = services.Index
	}
	server, err := api.NewServer(api.Options{
		Processor:     services.Processor,
		Runner:        services.Driver,
		RunIDs:        services.IDs,
		RequestIDs:    services.IDs,
		Index:         index,
		Ready:         services.Ready,
		DiscoveryPath: rt.cfg.Pipeline.DiscoveryPath,
		DefaultLimit:  rt.cfg.Pipeline.Limit,
		AuthEnabled:   rt.cfg.Auth.Enabled,
		APIKey:        rt.cfg.Auth.APIKey,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("init api server: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", rt.cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server started", zap.Int("port", rt.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.ShutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
