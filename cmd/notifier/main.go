// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command notifier is the entry point for the Midora notification worker.
//
// It consumes account-event messages from the send-email queue and delivers
// them through the configured SMTP provider. The worker is stateless and
// horizontally scalable: every replica joins the same consumer group, so
// each message is processed by exactly one replica (at-least-once overall).
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration and verify the notifier-specific keys.
//  3. Connect to Redis (message broker).
//  4. Wire the SMTP dispatcher and queue consumer.
//  5. Run the consumer until SIGTERM/SIGINT.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/midora/internal/messaging"
	"github.com/taibuivan/midora/internal/notification"
	"github.com/taibuivan/midora/internal/platform/config"
	redisstore "github.com/taibuivan/midora/internal/platform/redis"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	log := rawLog.With(slog.String("app", "midora-notifier"))
	slog.SetDefault(log)

	log.Info("[Midora] notifier_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")
	must(log, cfg.RequireNotifier(), "verify notifier configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "midora-notifier"))
		slog.SetDefault(log)
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. Redis (message broker) ─────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 4. Dispatcher & Consumer ──────────────────────────────────────────
	dispatcher, err := notification.NewSMTPDispatcher(notification.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPSender,
	}, log)
	must(log, err, "initialize smtp dispatcher")

	hostname, _ := os.Hostname()
	consumer := messaging.NewConsumer(rdb, messaging.ConsumerConfig{
		Queue: cfg.SendEmailQueue,
		Name:  hostname,
	}, notification.EmailHandler(dispatcher, log), log)

	// ── 5. Run Until Signalled ────────────────────────────────────────────
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		return consumer.Run(groupCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("notifier terminated with error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("notifier stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
