package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/go-go-golems/turnloop/pkg/cmds"
)

const appName = "turnloop"

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "turnloop runs a tool-calling host agent over a restaurant menu",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			file, _ := cmd.Flags().GetString("log-file")
			return initLogger(level, file)
		},
	}
	rootCmd.PersistentFlags().String("config", "", "Config file (default $HOME/.turnloop/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this rotated file")

	rootCmd.AddCommand(newRunCommand(), newChatCommand(), newTranscriptCommand())
	return rootCmd
}

func initLogger(level string, file string) error {
	if err := cmds.InitLogger(level); err != nil {
		return err
	}
	if file == "" {
		return nil
	}
	var w io.Writer = io.MultiWriter(
		zerolog.ConsoleWriter{Out: os.Stderr},
		zerolog.ConsoleWriter{
			NoColor: true,
			Out: &lumberjack.Logger{
				Filename:   file,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			},
		},
	)
	log.Logger = log.Output(w)
	return nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("turnloop failed")
		os.Exit(1)
	}
}
