package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/marketflow/pkg/cmd"
	"github.com/dukex/marketflow/pkg/dispatchers/email"
	"github.com/dukex/marketflow/pkg/dispatchers/sms"
	"github.com/dukex/marketflow/pkg/engine"
	"github.com/dukex/marketflow/pkg/eventbus"
	"github.com/dukex/marketflow/pkg/events"
	"github.com/dukex/marketflow/pkg/nodes/delay"
	"github.com/dukex/marketflow/pkg/otelhelper"
	"github.com/urfave/cli/v3"
)

const serviceName = "marketflow"

func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Persistence URL (memory://, file://path, postgres://...)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

func eventBusFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
	}
}

func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "checkpoint-store",
			Usage:   "Where long delays park traversals (database, redis)",
			Value:   "database",
			Sources: cli.EnvVars("CHECKPOINT_STORE"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for the redis checkpoint store",
			Value:   "redis://localhost:6379/0",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "channel-email-url",
			Usage:   "Email provider endpoint",
			Sources: cli.EnvVars("CHANNEL_EMAIL_URL"),
		},
		&cli.StringFlag{
			Name:    "channel-email-token",
			Usage:   "Email provider API token",
			Sources: cli.EnvVars("CHANNEL_EMAIL_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "channel-email-from",
			Usage:   "Email sender address",
			Sources: cli.EnvVars("CHANNEL_EMAIL_FROM"),
		},
		&cli.StringFlag{
			Name:    "channel-sms-url",
			Usage:   "SMS gateway endpoint, may contain {account}",
			Sources: cli.EnvVars("CHANNEL_SMS_URL"),
		},
		&cli.StringFlag{
			Name:    "channel-sms-account",
			Usage:   "SMS gateway account id",
			Sources: cli.EnvVars("CHANNEL_SMS_ACCOUNT"),
		},
		&cli.StringFlag{
			Name:    "channel-sms-token",
			Usage:   "SMS gateway auth token",
			Sources: cli.EnvVars("CHANNEL_SMS_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "channel-sms-from",
			Usage:   "SMS sender number",
			Sources: cli.EnvVars("CHANNEL_SMS_FROM"),
		},
		&cli.BoolFlag{
			Name:    "dry-run",
			Usage:   "Log messages instead of delivering them",
			Sources: cli.EnvVars("DRY_RUN"),
		},
		&cli.DurationFlag{
			Name:    "suppression-window",
			Usage:   "Skip a flow for a subject it already ran for within this window",
			Value:   engine.DefaultSuppressionWindow,
			Sources: cli.EnvVars("SUPPRESSION_WINDOW"),
		},
		&cli.DurationFlag{
			Name:    "short-delay-threshold",
			Usage:   "Delays shorter than this wait in memory, longer ones are checkpointed",
			Value:   delay.DefaultShortDelayThreshold,
			Sources: cli.EnvVars("SHORT_DELAY_THRESHOLD"),
		},
		&cli.StringFlag{
			Name:    "resume-schedule",
			Usage:   "Cron spec of the checkpoint resume sweep",
			Value:   engine.DefaultResumeSchedule,
			Sources: cli.EnvVars("RESUME_SCHEDULE"),
		},
		&cli.IntFlag{
			Name:    "max-concurrent",
			Usage:   "Maximum concurrent traversals",
			Value:   engine.DefaultMaxConcurrentTraversals,
			Sources: cli.EnvVars("MAX_CONCURRENT_TRAVERSALS"),
		},
		&cli.BoolFlag{
			Name:    "otel-enabled",
			Usage:   "Export traces over OTLP HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
	}
}

func flags(groups ...[]cli.Flag) []cli.Flag {
	var all []cli.Flag
	for _, group := range groups {
		all = append(all, group...)
	}

	return all
}

// runtime is everything a long running command needs, built from flags.
type runtime struct {
	stores   *cmd.Stores
	eventBus eventbus.EventBus
	engine   *engine.Engine
	closers  []func(context.Context) error
	logger   *slog.Logger
}

func newRuntime(ctx context.Context, command *cli.Command, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{logger: logger}

	err := rt.build(ctx, command)
	if err != nil {
		rt.close(ctx)

		return nil, err
	}

	return rt, nil
}

func (rt *runtime) build(ctx context.Context, command *cli.Command) error {
	stores, err := cmd.NewStores(ctx, command.String("database-url"), rt.logger)
	if err != nil {
		return fmt.Errorf("failed to open persistence: %w", err)
	}

	rt.stores = stores
	rt.closers = append(rt.closers, stores.Persistence.Close)

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), serviceName, rt.logger)
	if err != nil {
		return err
	}

	rt.eventBus = eventBus
	rt.closers = append(rt.closers, func(context.Context) error { return eventBus.Close() })

	checkpoints, closeCheckpoints, err := cmd.NewCheckpointStore(
		ctx,
		command.String("checkpoint-store"),
		command.String("redis-url"),
		stores.Persistence,
		rt.logger,
	)
	if err != nil {
		return err
	}

	rt.closers = append(rt.closers, func(context.Context) error { return closeCheckpoints() })

	dispatchers, err := cmd.NewDispatchers(cmd.DispatcherConfig{
		DryRun: command.Bool("dry-run"),
		Email: email.Config{
			URL:   command.String("channel-email-url"),
			Token: command.String("channel-email-token"),
			From:  command.String("channel-email-from"),
		},
		SMS: sms.Config{
			URL:       command.String("channel-sms-url"),
			AccountID: command.String("channel-sms-account"),
			Token:     command.String("channel-sms-token"),
			From:      command.String("channel-sms-from"),
		},
	}, rt.logger)
	if err != nil {
		return fmt.Errorf("failed to configure dispatchers: %w", err)
	}

	reg := cmd.NewRegistry(rt.logger, stores, dispatchers, command.Duration("short-delay-threshold"))

	tracer := otelhelper.DefaultTracer()

	if command.Bool("otel-enabled") {
		var shutdown func(context.Context) error

		tracer, shutdown, err = otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		rt.closers = append(rt.closers, shutdown)
	}

	config := engine.DefaultConfig()
	config.SuppressionWindow = command.Duration("suppression-window")
	config.ResumeSchedule = command.String("resume-schedule")
	config.MaxConcurrentTraversals = command.Int("max-concurrent")

	eng, err := engine.New(config, engine.Dependencies{
		Flows:       stores.Persistence,
		Logs:        stores.Persistence.ExecutionLogs(),
		Checkpoints: checkpoints,
		Registry:    reg,
		Publisher:   eventBus,
		Tracer:      tracer,
		Logger:      rt.logger,
	})
	if err != nil {
		return err
	}

	rt.engine = eng
	rt.closers = append(rt.closers, func(context.Context) error {
		eng.Close()

		return nil
	})

	return nil
}

// close releases resources in reverse order of acquisition.
func (rt *runtime) close(ctx context.Context) {
	var errs []error

	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i](ctx))
	}

	if err := errors.Join(errs...); err != nil {
		rt.logger.ErrorContext(ctx, "Failed to release resources", "error", err)
	}
}

// subscribe feeds domain events from the bus into the engine.
func (rt *runtime) subscribe(ctx context.Context) error {
	err := rt.eventBus.Handle(events.DomainEventType, rt.engine.HandleDomainEvent)
	if err != nil {
		return fmt.Errorf("failed to register domain event handler: %w", err)
	}

	return rt.eventBus.Subscribe(ctx)
}
