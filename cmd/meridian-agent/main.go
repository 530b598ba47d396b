package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/haowjy/meridian-agent-go/config"
)

// Version set via ldflags during build
var version = "dev"

var rootFlags struct {
	debug     bool
	envFile   string
	logFormat string
}

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

func main() {
	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "meridian-agent",
	Short: "Run tool-using assistant exchanges against a language model",
	Long: `meridian-agent runs one assistant exchange at a time: it streams the model's
reasoning and answer, executes the tools the model asks for, feeds the results
back, and repeats until the model is done.

Configuration is read from ~/.config/meridian-agent/meridian-agent.yml,
./meridian-agent.yml, .env and MERIDIAN_* environment variables.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&rootFlags.debug, "debug", false, "Enable debug logs")
	rootCmd.PersistentFlags().StringVar(&rootFlags.envFile, "env-file", ".env", "Load environment variables from this file if it exists")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logFormat, "log-format", "", "Log format: json or terminal (default depends on stderr)")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(featuresCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(configCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnv(rootFlags.envFile); err != nil {
		return err
	}
	loaded, err := config.Load()
	if err != nil {
		return err
	}
	if rootFlags.logFormat != "" {
		loaded.LogFormat = rootFlags.logFormat
	}
	if rootFlags.debug {
		loaded.LogLevel = "debug"
	}
	cfg = loaded

	format := log.FormatJSON
	switch cfg.LogFormat {
	case "terminal":
		format = log.FormatTerminal
	case "":
		if log.IsTerminal() {
			format = log.FormatTerminal
		}
	}
	ctx := log.Context(cmd.Context(), log.WithFormat(format), log.WithOutput(os.Stderr))
	if cfg.LogLevel == "debug" {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}
	cmd.SetContext(ctx)
	return nil
}
