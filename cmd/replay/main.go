package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/replay"
)

// #region main

var errDiverged = errors.New("replay diverged")

var rootCmd = &cobra.Command{
	Use:   "replay [fixture.json ...]",
	Short: "Replay recorded conversations through the policy engine",
	Long: `Each fixture is one conversation replayed against in-memory persistence with a
scripted generator. Conversations run in parallel; turns within one run in order.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		parallel, _ := cmd.Flags().GetInt("parallel")

		fixtures, err := load(dir, args)
		if err != nil {
			return err
		}
		if len(fixtures) == 0 {
			return errors.New("no fixtures given (pass paths or --dir)")
		}
		return run(cmd.Context(), fixtures, parallel, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.Flags().String("dir", "", "replay every *.json fixture in this directory")
	rootCmd.Flags().Int("parallel", 4, "conversations replayed concurrently")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errDiverged) {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// #endregion main

// #region run

func load(dir string, paths []string) ([]*replay.Fixture, error) {
	var out []*replay.Fixture
	if dir != "" {
		fs, err := replay.LoadDir(dir)
		if err != nil {
			return nil, err
		}
		out = append(out, fs...)
	}
	for _, p := range paths {
		f, err := replay.LoadFixture(p)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

type outcome struct {
	results    []replay.ReplayResult
	mismatches []replay.Mismatch
}

func run(ctx context.Context, fixtures []*replay.Fixture, parallel int, w io.Writer) error {
	outcomes := make([]outcome, len(fixtures))

	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, f := range fixtures {
		i, f := i, f
		g.Go(func() error {
			results, err := replay.Replay(ctx, f)
			if err != nil {
				return err
			}
			outcomes[i] = outcome{results: results, mismatches: replay.Compare(results, f.ExpectedResults)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	diverged := 0
	for i, f := range fixtures {
		o := outcomes[i]
		printComparison(w, f, o)
		diverged += len(o.mismatches)
	}
	if diverged > 0 {
		return fmt.Errorf("%w: %d fields", errDiverged, diverged)
	}
	return nil
}

// #endregion run

// #region output

// printComparison outputs one fixture's comparison table and summary.
func printComparison(w io.Writer, f *replay.Fixture, o outcome) {
	fmt.Fprintf(w, "== %s", f.ConversationID)
	if f.Description != "" {
		fmt.Fprintf(w, " (%s)", f.Description)
	}
	fmt.Fprintln(w)

	expected := make(map[string]string, len(f.ExpectedResults))
	for _, e := range f.ExpectedResults {
		expected[e.TurnID] = e.Act
	}
	diffs := make(map[string][]string)
	for _, m := range o.mismatches {
		diffs[m.TurnID] = append(diffs[m.TurnID], m.Field)
	}

	fmt.Fprintf(w, "%-12s| %-9s| %-9s| %-6s| %-5s| %s\n", "Turn", "Expected", "Replayed", "Stall", "Str", "Match")
	fmt.Fprintf(w, "%-12s+%-10s+%-10s+%-7s+%-6s+%s\n",
		"------------", "----------", "----------", "-------", "------", "------")
	for _, r := range o.results {
		exp := expected[r.TurnID]
		if exp == "" {
			exp = "—"
		}
		match := "OK"
		if fields := diffs[r.TurnID]; len(fields) > 0 {
			match = "DIFF " + strings.Join(fields, ",")
		}
		fmt.Fprintf(w, "%-12s| %-9s| %-9s| %-6s| %-5d| %s\n", r.TurnID, exp, r.Act, r.Severity, r.Strength, match)
	}

	s := replay.Summarize(o.results, o.mismatches)
	fmt.Fprintf(w, "\nSummary: %d turns, %d persisted, %d stalled, %d mismatched fields\n\n",
		s.TotalTurns, s.Persisted, s.Stalls, s.Mismatches)
}

// #endregion output
