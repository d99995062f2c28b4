package main

import (
	"os"
	"os/signal"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/turnloop/pkg/cmds"
	"github.com/go-go-golems/turnloop/pkg/events"
	"github.com/go-go-golems/turnloop/pkg/menu"
)

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("show-tools", false, "Print tool turns and tool execution events")
	cmd.Flags().Bool("markdown", false, "Render assistant answers as markdown (default when stdout is a terminal)")
	cmd.Flags().String("events-file", "", "Write every event as NDJSON to this file")
	cmd.Flags().String("save-transcript", "", "Save the final transcript as YAML")
	cmd.Flags().String("store", "", "Save the final transcript to this SQLite database")
	cmd.Flags().String("resume", "", "Continue the conversation saved in this transcript YAML file")
	cmd.Flags().Bool("print-raw-events", false, "Print every event as JSON on stderr")
	cmd.Flags().Bool("verbose", false, "Log event router activity")
}

func newHostAgent(cmd *cobra.Command) (*cmds.HostAgent, error) {
	s, err := cmds.LoadSettings(appName, cmd)
	if err != nil {
		return nil, err
	}
	if !cmd.Flags().Changed("log-level") {
		if lvl, err := zerolog.ParseLevel(s.Log.Level); err == nil {
			zerolog.SetGlobalLevel(lvl)
		}
	}
	showTools, _ := cmd.Flags().GetBool("show-tools")
	markdown, _ := cmd.Flags().GetBool("markdown")
	if !cmd.Flags().Changed("markdown") {
		markdown = isatty.IsTerminal(os.Stdout.Fd())
	}
	eventsFile, _ := cmd.Flags().GetString("events-file")
	saveTranscript, _ := cmd.Flags().GetString("save-transcript")
	verbose, _ := cmd.Flags().GetBool("verbose")
	storePath, _ := cmd.Flags().GetString("store")
	resume, _ := cmd.Flags().GetString("resume")
	printRaw, _ := cmd.Flags().GetBool("print-raw-events")

	h := &cmds.HostAgent{
		Settings: s,
		Printer: events.PrinterOptions{
			ShowDeltas:    s.Chat.Stream,
			ShowToolCalls: showTools,
			Markdown:      markdown && !s.Chat.Stream,
		},
		EventsFile:     eventsFile,
		SaveTranscript: saveTranscript,
		Store:          storePath,
		Resume:         resume,
		Verbose:        verbose,
	}
	if printRaw {
		h.RawEvents = cmd.ErrOrStderr()
	}
	return h, nil
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [prompt...]",
		Short: "Run prompts through the host agent, one turn per argument",
		Long: "Run prompts through the host agent. Without arguments, the default menu " +
			"conversation is run:\n\n  " + strings.Join(menu.DefaultInputs, "\n  "),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHostAgent(cmd)
			if err != nil {
				return err
			}
			inputs := args
			if len(inputs) == 0 {
				inputs = menu.DefaultInputs
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return h.Run(ctx, cmd.OutOrStdout(), cmds.Inputs(inputs...))
		},
	}
	cmds.AddSettingsFlags(cmd)
	addOutputFlags(cmd)
	return cmd
}
