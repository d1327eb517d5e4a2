package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/reachhk/reachbot-go/internal/logging"
	"github.com/reachhk/reachbot-go/internal/server"
	"github.com/reachhk/reachbot-go/internal/store"
)

// NewServeCmd constructs the `reachbot serve` command, which starts the HTTP
// server exposing the question-answering endpoint.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ReachBot HTTP server",
		Long: `Start the ReachBot HTTP server.

The server exposes POST /api/bot for questions, GET /api/health and
GET /api/ready for probes, and GET /metrics for Prometheus scraping.

Examples:
  reachbot serve
  reachbot serve --port 9090
  REACHBOT_API_KEY=s3cret reachbot serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Env/YAML values apply unless the flag was given explicitly.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("SERVER_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("SERVER_PORT", port)
			}

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting",
				slog.String("embedding_provider", getEnvOrDefault("EMBEDDING_PROVIDER", "hf")))

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			bot, qdrantStore, err := buildPipeline(ctx, log, registry)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer qdrantStore.Close()

			// Open the question log. REACHBOT_QUESTION_DB overrides the
			// default path (~/.reachbot/questions.db). Set to "disabled" to disable.
			var questionLog store.QuestionLog
			dbPath := os.Getenv("REACHBOT_QUESTION_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = store.DefaultDBPath()
					if err != nil {
						log.Warn("question log: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					ql, qlErr := store.Open(dbPath)
					if qlErr != nil {
						log.Warn("question log: failed to open, disabling", slog.Any("error", qlErr))
					} else {
						questionLog = ql
						defer func() { _ = ql.Close() }()
						log.Info("question log: opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("question log: disabled via REACHBOT_QUESTION_DB=disabled")
			}

			pingers := []server.Pinger{
				server.NewQdrantPinger(qdrantStore.Client()),
				server.NewHTTPPinger("huggingface",
					getEnvOrDefault("EMBEDDING_ENDPOINT", "https://api-inference.huggingface.co")),
			}

			srv, err := server.New(bot, &server.Config{
				Host:        host,
				Port:        port,
				Logger:      log,
				Pingers:     pingers,
				APIKey:      os.Getenv("REACHBOT_API_KEY"),
				RateLimit:   getEnvFloat("SERVER_RATE_LIMIT", 0),
				RateBurst:   getEnvInt("SERVER_RATE_BURST", 0),
				QuestionLog: questionLog,
				Registry:    registry,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
