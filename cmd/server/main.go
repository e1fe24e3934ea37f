package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/JonMunkholm/moodlelogsmart/internal/clean"
	"github.com/JonMunkholm/moodlelogsmart/internal/config"
	"github.com/JonMunkholm/moodlelogsmart/internal/logging"
	"github.com/JonMunkholm/moodlelogsmart/internal/pipeline"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs once PersistentPreRunE has run.
type app struct {
	cfg       *config.Config
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "moodlelogsmart",
		Short: "Classify Moodle activity logs by activity type and Bloom level",
		Long: `moodlelogsmart reads Moodle log exports, detects their encoding, delimiter,
columns and timestamp format, filters non-student activity and classifies
every event with a priority-ordered rule set based on Bloom's taxonomy.

Without a subcommand it starts the HTTP server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logCloser != nil {
				a.logCloser.Close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a.cfg)
		},
	}

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newProcessCmd(a))
	root.AddCommand(newRulesCmd(a))
	return root
}

// setup loads .env, the configuration and the logger.
func (a *app) setup() error {
	// Load .env file if it exists (Overload overwrites existing env vars)
	envLoaded := godotenv.Overload() == nil

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	a.cfg = cfg

	_, a.logCloser = logging.Setup(cfg.Logging)
	slog.Debug("configuration loaded", "config", cfg.String(), "dotenv", envLoaded)
	return nil
}

// pipelineConfig translates the service configuration for the pipeline.
func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		Clean: clean.Config{
			StudentRoleID:    cfg.Pipeline.StudentRoleID,
			NonStudentEvents: cfg.Pipeline.NonStudentEvents,
		},
		RulesPath: cfg.Pipeline.RulesPath,
		RolesFile: cfg.Pipeline.RolesFile,
		XES:       cfg.Pipeline.ExportXES,
	}
}
