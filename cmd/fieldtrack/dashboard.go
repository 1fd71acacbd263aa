package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fieldtrack/internal/alert"
	"fieldtrack/internal/config"
	"fieldtrack/internal/dashboard"
	"fieldtrack/internal/feed"
	"fieldtrack/internal/trail"
)

var (
	dashConfigPath string
	dashSchemaPath string
	dashInterval   time.Duration
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Run the live monitoring dashboard",
	Long:  "dashboard polls the collector's entity feed and renders live positions, movement trails and alerts in a terminal UI.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("dashboard requires a terminal")
		}

		cfg, err := config.Load(dashConfigPath, dashSchemaPath)
		if err != nil {
			return err
		}
		interval := time.Duration(cfg.Dashboard.PollInterval)
		if dashInterval > 0 {
			interval = dashInterval
		}

		ui := dashboard.New()
		defer ui.Close()

		alerts := alert.NewEngine()
		trails := trail.NewEngine(ui)
		client := feed.NewClient(cfg.Collector.BaseURL)

		poller := feed.NewPoller(client, interval, func(entities []feed.Entity) {
			ui.PushSnapshot(entities, feed.Summarize(entities, time.Now()))
			alerts.Evaluate(entities)
			ui.PushAlerts(alerts.Active())
			trails.Update(entities)
		}, ui.PushError)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go poller.Run(ctx)

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashConfigPath, "config", "config/tracker.yaml", "Path to tracker configuration YAML")
	dashboardCmd.Flags().StringVar(&dashSchemaPath, "schema", "schemas/tracker.cue", "Path to CUE schema file")
	dashboardCmd.Flags().DurationVar(&dashInterval, "interval", 0, "Feed poll interval (overrides config)")
}
