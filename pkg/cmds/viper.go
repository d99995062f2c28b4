package cmds

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/turnloop/pkg/steps/ai/settings"
)

// InitViper returns a viper instance with the settings defaults, the
// TURNLOOP_ environment and the config file named by --config or found at
// $HOME/.<appName>/config.yaml.
func InitViper(appName string, cmd *cobra.Command) (*viper.Viper, error) {
	v := settings.NewViper()

	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+appName))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "could not read config")
		}
	} else {
		log.Debug().Str("config", v.ConfigFileUsed()).Msg("cmds: loaded config")
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, errors.Wrap(err, "could not bind flags")
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil {
		if err := v.BindPFlag("log.level", f); err != nil {
			return nil, errors.Wrap(err, "could not bind log level")
		}
	}
	return v, nil
}

// AddSettingsFlags registers the flags overriding the most used settings.
// Flag names are the dotted setting keys.
func AddSettingsFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.String("chat.provider", "", "Provider: openai, ollama or scripted")
	fs.String("chat.model", "", "Model name")
	fs.Bool("chat.stream", false, "Stream the completion")
	fs.String("client.base_url", "", "Base URL of the OpenAI-compatible API")
	fs.String("client.cassette", "", "Record or replay provider HTTP traffic with this cassette")
	fs.Bool("client.record", false, "Record the cassette instead of replaying it")
	fs.Int("loop.max_tool_rounds", 0, "Maximum tool-call rounds per turn")
	fs.StringSlice("loop.allowed_tools", nil, "Glob patterns of tools offered to the provider")
	fs.String("loop.tool_error_handling", "", "abort or continue")
	fs.String("scripted.file", "", "YAML script for the scripted provider")
}

// LoadSettings builds the viper instance for cmd and decodes the settings.
func LoadSettings(appName string, cmd *cobra.Command) (*settings.Settings, error) {
	v, err := InitViper(appName, cmd)
	if err != nil {
		return nil, err
	}
	return settings.NewSettingsFromViper(v)
}

// InitLogger sets the global zerolog level and writes human-readable logs to stderr.
func InitLogger(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	return nil
}
