package commands

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/reachhk/reachbot-go/internal/logging"
)

// NewAskCmd constructs the `reachbot ask` command, which answers a single
// question from the command line and prints the answer to stdout.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the bot a single question",
		Long: `Ask ReachBot a natural language question about the platform data.

The question runs through the same pipeline as POST /api/bot: it is embedded,
matched against the knowledge base, and answered from the matching documents.

Examples:
  reachbot ask "what campaigns are running?"
  reachbot ask "what is the fundraising goal of Region X?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			bot, store, err := buildPipeline(ctx, log, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer store.Close()

			answer, err := bot.Answer(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}

	return cmd
}
