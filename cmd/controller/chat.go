package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/turn"
)

// #region chat-command

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive REPL against the policy engine",
	Long: `Reads one user line per turn from stdin. Lines starting with '/' are commands:
  /choice ID   attach a choice id to the next turn
  /action ID   attach an action id to the next turn
  /commit KEY  fix the anchor for this conversation
  /quit        exit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.shutdown()

		conv, _ := cmd.Flags().GetString("conversation")
		if conv == "" {
			conv = uuid.NewString()
		}
		return runChat(cmd.Context(), rt, conv, os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("conversation", "", "conversation id (random when empty)")
}

// #endregion chat-command

// #region chat-loop

func runChat(ctx context.Context, rt *runtime, conv string, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "conversation %s (storage %s, generation %s)\n", conv, rt.cfg.Storage.Driver, rt.cfg.Generation.Backend)

	var history []turn.Message
	var choiceID, actionID string
	scanner := bufio.NewScanner(in)
	n := 0
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			verb, arg, _ := strings.Cut(line[1:], " ")
			arg = strings.TrimSpace(arg)
			switch verb {
			case "quit", "exit":
				return nil
			case "choice":
				choiceID = arg
			case "action":
				actionID = arg
			case "commit":
				snap, err := rt.engine.CommitAnchor(ctx, conv, arg)
				if err != nil {
					fmt.Fprintf(out, "commit failed: %v\n", err)
					continue
				}
				fmt.Fprintf(out, "anchor fixed (version %s)\n", snap.VersionID)
			default:
				fmt.Fprintf(out, "unknown command %q\n", verb)
			}
			continue
		}

		n++
		tc := turn.Context{
			Version:        turn.Version,
			ConversationID: conv,
			TurnID:         fmt.Sprintf("turn-%d", n),
			Text:           line,
			ChoiceID:       choiceID,
			ActionID:       actionID,
		}.WithHistory(history)
		choiceID, actionID = "", ""

		res, err := rt.engine.ProcessTurn(ctx, tc)
		if err != nil {
			return err
		}
		history = append(history, turn.Message{Role: turn.RoleUser, Text: line, TurnID: tc.TurnID})

		d := res.Decision
		if d.ShouldDisplay() {
			fmt.Fprintln(out, d.Text())
			history = append(history, turn.Message{Role: turn.RoleAssistant, Text: d.Text(), TurnID: tc.TurnID})
		}
		fmt.Fprintf(out, "  [%s | %s | lane %s | stall %s | strength %d]\n",
			d.Act(), res.Coordinate, res.Route.Lane, res.Stall.Severity, res.Allow.Strength)
	}
}

// #endregion chat-loop
