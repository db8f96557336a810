package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/config"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/ledger"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/state"
)

// #region root

var rootCmd = &cobra.Command{
	Use:          "inspect",
	Short:        "Inspect persisted conversation state, ledger and version history",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("db", "", "sqlite path (overrides config)")
	rootCmd.PersistentFlags().String("conversation", "", "conversation id")
	rootCmd.AddCommand(stateCmd, ledgerCmd, versionsCmd, rollbackCmd)

	ledgerCmd.Flags().Int("last", 0, "only the N most recent events (all when 0)")
	versionsCmd.Flags().Int("last", 20, "show N most recent versions")
	versionsCmd.Flags().Bool("json", false, "output as JSON instead of a table")
	rollbackCmd.Flags().String("version", "", "version id to make active")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// #endregion root

// #region store

// opened holds the persistence handle. sqlite is nil for non-sqlite drivers.
type opened struct {
	store  state.Persistence
	sqlite *state.Store
	close  func() error
}

func open(cmd *cobra.Command) (*opened, string, error) {
	conv, _ := cmd.Flags().GetString("conversation")
	if conv == "" {
		return nil, "", errors.New("--conversation is required")
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		return nil, "", err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Storage.Driver = "sqlite"
		cfg.Storage.Path = db
	}

	switch cfg.Storage.Driver {
	case "sqlite":
		s, err := state.NewStore(cfg.Storage.Path)
		if err != nil {
			return nil, "", fmt.Errorf("open db: %w", err)
		}
		return &opened{store: s, sqlite: s, close: s.Close}, conv, nil
	case "redis":
		s := state.NewRedisStore(cfg.Storage.RedisAddr, cfg.Storage.RedisPass, cfg.Storage.RedisDB,
			state.WithPrefix(cfg.Storage.RedisPrefix))
		return &opened{store: s, close: s.Close}, conv, nil
	default:
		return nil, "", fmt.Errorf("storage driver %q has nothing to inspect", cfg.Storage.Driver)
	}
}

// #endregion store

// #region state-ledger

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the active snapshot as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, conv, err := open(cmd)
		if err != nil {
			return err
		}
		defer o.close()

		snap, err := o.store.GetState(cmd.Context(), conv)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), snap)
	},
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Print the continuity ledger as NDJSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, conv, err := open(cmd)
		if err != nil {
			return err
		}
		defer o.close()

		last, _ := cmd.Flags().GetInt("last")
		events, err := o.store.Events(cmd.Context(), conv, last)
		if err != nil {
			return err
		}
		return ledger.Encode(cmd.OutOrStdout(), events)
	},
}

// #endregion state-ledger

// #region versions

type listRow struct {
	VersionID string   `json:"version_id"`
	ParentID  string   `json:"parent_id,omitempty"`
	TurnID    string   `json:"turn_id,omitempty"`
	Act       string   `json:"act"`
	Reasons   string   `json:"reasons,omitempty"`
	Coord     string   `json:"coordinate"`
	Fixed     bool     `json:"anchor_fixed"`
	FlowTape  []string `json:"flow_tape"`
	UpdatedAt string   `json:"updated_at"`
}

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List recent state versions with their provenance (sqlite only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, conv, err := open(cmd)
		if err != nil {
			return err
		}
		defer o.close()
		if o.sqlite == nil {
			return errors.New("version history needs the sqlite store")
		}

		last, _ := cmd.Flags().GetInt("last")
		jsonOut, _ := cmd.Flags().GetBool("json")
		versions, err := o.sqlite.ListVersions(cmd.Context(), conv, last)
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			fmt.Fprintln(os.Stderr, "no versions found")
			return nil
		}

		// Store returns newest first; print chronologically.
		rows := make([]listRow, len(versions))
		for i, v := range versions {
			rows[len(versions)-1-i] = listRow{
				VersionID: v.VersionID,
				ParentID:  v.ParentID,
				TurnID:    v.TurnID,
				Act:       v.Act,
				Reasons:   v.Reasons,
				Coord:     v.Coordinate.String(),
				Fixed:     v.Anchor.Fixed,
				FlowTape:  v.FlowTape,
				UpdatedAt: v.UpdatedAt.Format("2006-01-02T15:04:05Z"),
			}
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), rows)
		}
		printListTable(cmd.OutOrStdout(), rows)
		return nil
	},
}

func printListTable(w io.Writer, rows []listRow) {
	fmt.Fprintf(w, "%-12s  %-10s  %-8s  %-12s  %-5s  %s\n", "Version", "Turn", "Act", "Coordinate", "Fixed", "Time")
	fmt.Fprintf(w, "%-12s+-%-10s+-%-8s+-%-12s+-%-5s+-%s\n",
		"------------", "----------", "--------", "------------", "-----", "--------------------")
	for _, r := range rows {
		act := r.Act
		if act == "" {
			act = "—"
		}
		fmt.Fprintf(w, "%-12s  %-10s  %-8s  %-12s  %-5t  %s\n",
			shortID(r.VersionID), shortID(r.TurnID), act, r.Coord, r.Fixed, r.UpdatedAt)
	}
	latest := rows[len(rows)-1]
	fmt.Fprintf(w, "\nFlow tape (latest): %s\n", strings.Join(latest.FlowTape, " → "))
}

// #endregion versions

// #region rollback

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Point the active state back at an earlier version (sqlite only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetString("version")
		if version == "" {
			return errors.New("--version is required")
		}
		o, conv, err := open(cmd)
		if err != nil {
			return err
		}
		defer o.close()
		if o.sqlite == nil {
			return errors.New("rollback needs the sqlite store")
		}
		if err := o.sqlite.Rollback(cmd.Context(), conv, version); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active version for %s is now %s\n", conv, version)
		return nil
	},
}

// #endregion rollback

// #region helpers

func shortID(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers
