package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reachhk/reachbot-go/internal/store"
)

// NewQuestionsCmd constructs the `reachbot questions` command, which prints
// the most recently answered questions from the question log.
func NewQuestionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Show recently answered questions",
		Long: `Print the most recent entries from the question log, newest first.

The log is written by the serve command (REACHBOT_QUESTION_DB overrides the
default path, "disabled" turns it off).

Examples:
  reachbot questions
  reachbot questions --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := os.Getenv("REACHBOT_QUESTION_DB")
			if dbPath == "" || dbPath == "disabled" {
				var err error
				dbPath, err = store.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("questions: %w", err)
				}
			}

			ql, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("questions: %w", err)
			}
			defer ql.Close()

			entries, err := ql.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("questions: %w", err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no questions recorded yet")
				return nil
			}

			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  [%s, %s]\n  Q: %s\n  A: %s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.Outcome, e.Latency, e.Question, e.Answer)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to show")

	return cmd
}
