package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fieldtrack/internal/config"
	"fieldtrack/internal/control"
	"fieldtrack/internal/logging"
	"fieldtrack/internal/report"
	"fieldtrack/internal/track"
)

var (
	trackConfigPath string
	trackSchemaPath string
	trackPrintOnly  bool
	trackNoStart    bool
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Run the location tracking agent",
	Long:  "track starts the tracking agent: acquires a precise initial fix, registers a session with the collector, and streams position updates until stopped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(trackConfigPath, trackSchemaPath)
		if err != nil {
			return err
		}
		logger := logging.New(cfg.DeviceID)

		provider, closeProvider, err := newProvider(cfg)
		if err != nil {
			return err
		}
		defer closeProvider()

		archive, cleanup, err := newArchiveWriter(cfg, trackPrintOnly)
		if err != nil {
			return err
		}
		defer cleanup()

		reporter := report.NewClient(cfg.Collector.BaseURL, cfg.Collector.UserAgent)
		tracker := track.NewController(provider, reporter,
			track.WithDeviceID(cfg.DeviceID),
			track.WithRouteType(cfg.RouteType),
			track.WithArchive(archive),
			track.WithLogger(logger),
		)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		srv := control.NewServer(tracker, logger)
		go func() {
			logger.Info("control api listening", "addr", cfg.Control.Addr)
			if err := srv.Start(ctx, cfg.Control.Addr); err != nil && err != http.ErrServerClosed {
				logger.Error("control server failed", "error", err)
			}
		}()

		if !trackNoStart {
			if err := tracker.Start(ctx); err != nil {
				return fmt.Errorf("start tracking: %w", err)
			}
			logger.Info("tracking started", "session", tracker.Status().SessionID)
		}

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs

		if err := tracker.Stop(context.Background()); err != nil {
			logger.Warn("stop tracking", "error", err)
		}
		cancel()
		logger.Info("tracking agent stopped")
		return nil
	},
}

func init() {
	trackCmd.Flags().StringVar(&trackConfigPath, "config", "config/tracker.yaml", "Path to tracker configuration YAML")
	trackCmd.Flags().StringVar(&trackSchemaPath, "schema", "schemas/tracker.cue", "Path to CUE schema file")
	trackCmd.Flags().BoolVar(&trackPrintOnly, "print-only", false, "Print samples to STDOUT instead of writing to DB")
	trackCmd.Flags().BoolVar(&trackNoStart, "no-start", false, "Do not start tracking immediately; wait for the control API")
}
