package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fieldtrack/internal/config"
	"fieldtrack/internal/sink"
)

var (
	replayConfigPath string
	replaySchemaPath string
	replayInput      string
	replaySpeed      float64
	replayPrintOnly  bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay an archived sample log",
	Long:  "replay feeds location samples from a JSONL archive back into GreptimeDB or STDOUT, preserving inter-sample timing.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		cfg, err := config.Load(replayConfigPath, replaySchemaPath)
		if err != nil {
			return err
		}
		// Never append the replayed stream back into the source log.
		cfg.Archive.LogFile = ""
		writer, cleanup, err := newArchiveWriter(cfg, replayPrintOnly)
		if err != nil {
			return err
		}
		defer cleanup()
		return sink.ReplayFile(replayInput, writer, replaySpeed)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayConfigPath, "config", "config/tracker.yaml", "Path to tracker configuration YAML")
	replayCmd.Flags().StringVar(&replaySchemaPath, "schema", "schemas/tracker.cue", "Path to CUE schema file")
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to sample log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print samples to STDOUT instead of writing to DB")
	replayCmd.MarkFlagRequired("input")
}
