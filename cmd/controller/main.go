package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// #region root

var rootCmd = &cobra.Command{
	Use:   "controller",
	Short: "Dialogue policy engine",
	Long: `Runs the per-turn dialogue policy: classification, anchor gating, lane routing,
stall detection, pressure bounding, optional generation and a single frozen decision.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file (defaults when empty)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// #endregion root
