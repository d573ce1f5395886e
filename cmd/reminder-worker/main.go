package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"usaha/internal/amqp"
	"usaha/internal/cli"
	"usaha/internal/log"
	"usaha/internal/metrics"
	"usaha/internal/notify"
	"usaha/internal/reminder"
	"usaha/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentReminder)
	logger.Info("Starting reminder-worker")
	cfg := cli.LoadAndValidateConfig(logger)
	loc := cfg.Location()

	backends := cli.InitBackend(context.Background(), logger, cfg)

	// With a broker, due reminders are queued for notify-worker. Without
	// one they are sent from here.
	var sink reminder.Sink
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
			os.Exit(1)
		}
		sink = amqpClient
		logger.Info("Reminders will be queued", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		sink = reminder.NewFanout(backends.Remote, logger, notify.FromConfig(cfg, logger)...)
		logger.Info("AMQP disabled - reminders are sent directly")
	}

	reg := metrics.New()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = reg.NewServer(cfg.MetricsAddr)
		go func() {
			logger.Info("Metrics listener started", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics listener failed", log.FieldError, err.Error())
			}
		}()
	}

	dispatcher := reminder.NewDispatcher(backends.Remote, backends.Remote, sink, reminder.DispatcherConfig{
		LookaheadDays: cfg.ReminderLookaheadDays,
		Location:      loc,
	}, logger, reg)
	scheduler := worker.NewReminderScheduler(dispatcher, cfg.ReminderInterval, loc, logger)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func() {
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Metrics listener shutdown error", log.FieldError, err.Error())
			}
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := backends.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err.Error())
		}
	})

	if err := scheduler.Run(ctx); err != nil {
		logger.Error("Reminder scheduler failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}
