package main

import (
	"context"
	"errors"
	"os"
	"time"

	"usaha/internal/amqp"
	"usaha/internal/cli"
	"usaha/internal/log"
	"usaha/internal/notify"
	"usaha/internal/reminder"
	"usaha/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentNotify)
	logger.Info("Starting notify-worker")
	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for notify-worker")
		os.Exit(1)
	}

	backends := cli.InitBackend(context.Background(), logger, cfg)

	notifiers := notify.FromConfig(cfg, logger)
	if len(notifiers) == 0 {
		logger.Warn("No notification channel configured, reminders will be acknowledged unsent")
	}
	handler := worker.NewNotifyWorker(reminder.NewFanout(backends.Remote, logger, notifiers...), logger)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func() {
		_ = amqpClient.Close()
		if err := backends.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err.Error())
		}
	})

	if err := amqpClient.ConsumeReminders(ctx, handler.HandleReminderMessage); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}
