package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tweetwatch/tweetwatch/internal/accounts"
	"github.com/tweetwatch/tweetwatch/internal/archive"
	"github.com/tweetwatch/tweetwatch/internal/browser"
	"github.com/tweetwatch/tweetwatch/internal/config"
	"github.com/tweetwatch/tweetwatch/internal/detect"
	"github.com/tweetwatch/tweetwatch/internal/fetch"
	"github.com/tweetwatch/tweetwatch/internal/logging"
	"github.com/tweetwatch/tweetwatch/internal/monitor"
	"github.com/tweetwatch/tweetwatch/internal/notify"
	"github.com/tweetwatch/tweetwatch/internal/notify/smtp"
	"github.com/tweetwatch/tweetwatch/internal/observability/otelx"
)

func main() {
	configPath := flag.String("config", getenv("TWEETWATCH_CONFIG", "config.yaml"), "path to config document")
	flag.Parse()

	doc, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(doc.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := otelx.Init(ctx, logger)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}

	store := accounts.NewStore(doc.Monitor.AccountsFile, doc.Monitor.DataDir, logger)
	if err := store.Load(); err != nil {
		log.Fatalf("failed to load accounts: %v", err)
	}

	sender := smtp.NewSender(
		doc.SMTP.Host,
		doc.SMTP.Port,
		doc.SMTP.Sender,
		doc.SMTP.Password,
		doc.SMTP.TLSMode,
		doc.SMTP.InsecureSkipVerify,
	)
	notifier, err := notify.New(sender, doc.SMTP.Sender, doc.SMTP.Recipients, doc.Monitor.BaseURL, doc.NotifyFilter, logger)
	if err != nil {
		log.Fatalf("failed to build notifier: %v", err)
	}

	session := browser.NewManager(
		browser.Options{
			BaseURL:  doc.Monitor.BaseURL,
			Headless: *doc.Monitor.Headless,
		},
		browser.Credentials{
			Email:    doc.Login.Email,
			Username: doc.Login.Username,
			Password: doc.Login.Password,
		},
		logger,
	)
	defer session.Close()

	detector := detect.New(store, archive.New(doc.Monitor.DataDir), notifier, logger)
	fetcher := fetch.New(doc.Monitor.BaseURL, logger)

	cfg := monitor.DefaultConfig()
	cfg.BaseInterval = doc.Monitor.Interval.Std()

	m := monitor.New(cfg, store, session, fetcher, detector, logger)
	m.Run(ctx)

	if shutdownOtel != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOtel(shutdownCtx)
	}
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
