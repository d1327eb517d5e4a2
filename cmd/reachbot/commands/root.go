// Package commands defines all Cobra CLI commands for the reachbot binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/reachhk/reachbot-go/internal/audit"
	"github.com/reachhk/reachbot-go/internal/config"
	"github.com/reachhk/reachbot-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reachbot",
		Short: "ReachBot — the donation platform's knowledge-base assistant",
		Long: `ReachBot answers natural language questions about the donation platform:
campaigns, community champions, donations, posts, regions, and leaderboards.

Answers are grounded in the platform's own data. The ingest command embeds
the source tables into a Qdrant vector store; the serve command exposes the
question-answering endpoint at POST /api/bot.

Settings come from environment variables or a YAML config file
(~/.reachbot/config.yaml). See 'reachbot --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A local .env is optional; absence is not an error.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.reachbot/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewQuestionsCmd(),
		NewVersionCmd(),
	)

	return root
}
