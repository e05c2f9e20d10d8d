package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/noah-isme/projtrack-api/pkg/notifyclient"
)

func main() {
	_ = godotenv.Load()

	baseURL := flag.String("url", envOr("PROJTRACK_API_URL", "http://localhost:8080"), "API base URL")
	token := flag.String("token", os.Getenv("PROJTRACK_TOKEN"), "bearer token of the watching user")
	interval := flag.Duration("interval", 15*time.Second, "polling interval while the stream is down")
	maxBackoff := flag.Duration("max-backoff", 2*time.Minute, "upper bound for polling backoff")
	reconnect := flag.Duration("reconnect", time.Minute, "how long to poll before retrying the stream")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).Level(level).With().Timestamp().Logger()

	client, err := notifyclient.New(notifyclient.Config{
		BaseURL:           *baseURL,
		Token:             *token,
		PollInterval:      *interval,
		MaxBackoff:        *maxBackoff,
		ReconnectInterval: *reconnect,
	}, printNotification, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid watcher configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("watcher stopped")
	}
}

func printNotification(n notifyclient.Notification) {
	fmt.Printf("[%s] #%d %s: %s\n", n.CreatedAt.Local().Format(time.DateTime), n.ID, n.Title, n.Message)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
