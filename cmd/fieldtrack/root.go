package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fieldtrack",
	Short: "Field location tracking toolkit",
	Long:  "Fieldtrack runs a live location tracking agent, a monitoring dashboard, sample replay, and visit route planning.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(planCmd)
}
