package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/turnloop/pkg/tokens"
	"github.com/go-go-golems/turnloop/pkg/turns"
	"github.com/go-go-golems/turnloop/pkg/turns/serde"
	"github.com/go-go-golems/turnloop/pkg/turns/store"
)

func newTranscriptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Inspect saved transcripts",
	}

	show := &cobra.Command{
		Use:   "show FILE",
		Short: "Print a saved transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := serde.LoadTranscriptYAML(args[0])
			if err != nil {
				return err
			}
			// replaying checks that tool results answer their requests
			if _, err := serde.Replay(doc); err != nil {
				return err
			}
			ids, _ := cmd.Flags().GetBool("ids")
			maxLines, _ := cmd.Flags().GetInt("max-lines")
			indent, _ := cmd.Flags().GetInt("indent")
			pp := turns.NewPrettyPrinter(
				turns.WithIDs(ids),
				turns.WithIndent(indent),
				turns.WithToolDetail(true),
				turns.WithMaxTextLines(maxLines),
			)
			pp.FprintTurns(cmd.OutOrStdout(), doc.Turns)
			return nil
		},
	}
	show.Flags().Bool("ids", false, "Print turn ids")
	show.Flags().Int("indent", 0, "Indent printed turns by this many spaces")
	show.Flags().Int("max-lines", 0, "Truncate turn content to this many lines (0 for no limit)")

	stats := &cobra.Command{
		Use:   "stats FILE",
		Short: "Count turns and tokens of a saved transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := serde.LoadTranscriptYAML(args[0])
			if err != nil {
				return err
			}
			model, _ := cmd.Flags().GetString("model")
			counter, err := tokens.NewCounter(model)
			if err != nil {
				return err
			}
			s, err := counter.CountTurns(doc.Turns)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "session: %s\nturns: %d\ntokens: %d\n", doc.SessionID, s.Turns, s.TotalTokens)
			for _, r := range []turns.Role{turns.RoleUser, turns.RoleAssistant, turns.RoleTool} {
				_, _ = fmt.Fprintf(w, "  %-9s %3d turns %5d tokens\n", r, s.TurnsByRole[r], s.TokensByRole[r])
			}
			ids := make([]string, 0, len(s.ToolCallsByID))
			for id := range s.ToolCallsByID {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				_, _ = fmt.Fprintf(w, "  call %s -> %s\n", id, s.ToolCallsByID[id])
			}
			return nil
		},
	}
	stats.Flags().String("model", "", "Model whose tokenizer to use (default cl100k_base)")

	sessions := &cobra.Command{
		Use:   "sessions DB",
		Short: "List the sessions stored in a SQLite database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(args[0])
			if err != nil {
				return err
			}
			defer func() {
				_ = st.Close()
			}()
			infos, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, i := range infos {
				_, _ = fmt.Fprintf(w, "%s  %-8s %3d turns  %s\n", i.ID, i.Agent, i.Turns, i.UpdatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	export := &cobra.Command{
		Use:   "export DB SESSION_ID",
		Short: "Print a stored session as transcript YAML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(args[0])
			if err != nil {
				return err
			}
			defer func() {
				_ = st.Close()
			}()
			doc, err := st.Load(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			b, err := serde.ToYAML(*doc)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}

	cmd.AddCommand(show, stats, sessions, export)
	return cmd
}
