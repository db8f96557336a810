package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Fix the commitment anchor of a conversation",
	Long:  `Explicit confirmation path: sets the anchor as fixed under the given key. Fails if the anchor is already fixed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, _ := cmd.Flags().GetString("conversation")
		key, _ := cmd.Flags().GetString("key")
		if conv == "" || key == "" {
			return errors.New("--conversation and --key are required")
		}

		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.shutdown()

		snap, err := rt.engine.CommitAnchor(cmd.Context(), conv, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "anchor fixed for %s (version %s)\n", conv, snap.VersionID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commitCmd)
	commitCmd.Flags().String("conversation", "", "conversation id")
	commitCmd.Flags().String("key", "", "anchor key to fix")
}
