package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/turnloop/pkg/cmds"
)

func newChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the host agent interactively (type exit to leave)",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHostAgent(cmd)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "%s is ready. Ask about the menu.\n", h.Settings.Agent.Name)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			prompter := cmds.NewPrompter(cmd.InOrStdin(), w)
			return h.Run(ctx, w, cmds.Interactive(prompter))
		},
	}
	cmds.AddSettingsFlags(cmd)
	addOutputFlags(cmd)
	return cmd
}
