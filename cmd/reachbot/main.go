// Command reachbot is the entry point for the donation platform's
// question-answering bot. It provides a CLI (via Cobra) with an HTTP server
// for the /api/bot endpoint and an offline knowledge-base ingestion job.
package main

import (
	"fmt"
	"os"

	"github.com/reachhk/reachbot-go/cmd/reachbot/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
