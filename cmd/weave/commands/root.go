// Package commands implements the weave CLI commands.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/go-drift/weave/pkg/config"
	"github.com/go-drift/weave/pkg/errors"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	trace      bool
}

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	return newRootCommand(version, commit, buildDate).ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "weave",
		Short: "weave - a concurrent declarative UI runtime",
		Long: `weave reconciles widget trees into render objects on one sync lane and
several async lanes, then lays out, paints and composites the result.

Use "weave <command> --help" for more information about a command.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", config.FileName, "config file path")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override the configured log level")
	rootCmd.PersistentFlags().BoolVar(&flags.trace, "trace", false, "export frame spans to stderr")

	rootCmd.AddCommand(newDemoCommand(flags))
	rootCmd.AddCommand(newConfigCommand(flags))
	rootCmd.AddCommand(newServeCommand(flags))

	return rootCmd
}

// load reads the configuration named by the global flags and builds the
// logger it describes. A missing default file yields the defaults.
func (f *globalFlags) load(stderr io.Writer) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadOptional(f.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if f.trace {
		cfg.Tracing.Enabled = true
	}
	level := cfg.Logging.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	if f.logLevel != "" {
		level = f.logLevel
	}
	logger, err := newLogger(stderr, cfg.Logging.Format, level)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	errors.SetHandler(errors.NewLogHandler(logger))
	return cfg, logger, nil
}

func newLogger(w io.Writer, format, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
