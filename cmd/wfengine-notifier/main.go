// Package main runs the notification consumer.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hydromis/wfengine/pkg/cmd"
	"github.com/hydromis/wfengine/pkg/log"
	"github.com/hydromis/wfengine/pkg/notifier"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("notifier")

	command := &cli.Command{
		Name:  "wfengine-notifier",
		Usage: "Deliver notification and webhook requests published by workflow actions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Push notifications to Redis lists at this URL instead of logging them",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix of the per-tenant notification lists",
				Value:   "wfengine:notifications",
				Sources: cli.EnvVars("REDIS_KEY_PREFIX"),
			},
			&cli.IntFlag{
				Name:    "webhook-attempts",
				Usage:   "Attempts per webhook request, retried on 5xx and transport errors",
				Value:   3,
				Sources: cli.EnvVars("WEBHOOK_ATTEMPTS"),
			},
			&cli.DurationFlag{
				Name:    "webhook-retry-delay",
				Usage:   "Delay between webhook attempts",
				Value:   time.Second,
				Sources: cli.EnvVars("WEBHOOK_RETRY_DELAY"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var sink notifier.Sink = notifier.NewLogSink(logger)

			if url := command.String("redis-url"); url != "" {
				client, err := notifier.NewRedisClient(ctx, url)
				if err != nil {
					return err
				}

				defer func() {
					if err := client.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close redis client", "error", err)
					}
				}()

				sink = notifier.NewRedisSink(client, notifier.WithKeyPrefix(command.String("redis-key-prefix")))
			}

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), "wfengine-notifier", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			if err := notifier.New(sink, logger).Register(eventBus); err != nil {
				return err
			}

			webhooks := notifier.NewWebhookSender(notifier.WebhookConfig{
				Attempts: int(command.Int("webhook-attempts")),
				Delay:    command.Duration("webhook-retry-delay"),
			}, logger)

			if err := webhooks.Register(eventBus); err != nil {
				return err
			}

			if err := eventBus.Subscribe(ctx); err != nil {
				return err
			}

			logger.InfoContext(ctx, "Notifier started")
			<-ctx.Done()
			logger.InfoContext(ctx, "Shutting down gracefully...")

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("wfengine-notifier failed", "error", err)
		os.Exit(1)
	}
}
