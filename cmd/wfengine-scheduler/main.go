// Package main runs scheduled system triggers.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hydromis/wfengine/pkg/cmd"
	"github.com/hydromis/wfengine/pkg/log"
	"github.com/hydromis/wfengine/pkg/scheduler"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("scheduler")

	command := &cli.Command{
		Name:  "wfengine-scheduler",
		Usage: "Fire system triggers on a cron schedule",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Persistence URL (postgres://... or a file path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "schedule-file",
				Usage:    "YAML or JSON file listing the scheduled jobs",
				Required: true,
				Sources:  cli.EnvVars("SCHEDULE_FILE"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
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

			config, err := scheduler.LoadConfig(command.String("schedule-file"))
			if err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(context.Background()); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), "wfengine-scheduler", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			eng, err := cmd.NewEngine(logger, persistence, eventBus, nil, nil)
			if err != nil {
				return err
			}

			s := scheduler.New(persistence.DefinitionRepository(), persistence.InstanceRepository(), eng, config.Jobs, logger)
			if err := s.Start(ctx); err != nil {
				return err
			}

			logger.InfoContext(ctx, "Scheduler started", "jobs", len(config.Jobs))
			<-ctx.Done()
			logger.InfoContext(ctx, "Shutting down gracefully...")

			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			return s.Stop(stopCtx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("wfengine-scheduler failed", "error", err)
		os.Exit(1)
	}
}
