package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dukex/marketflow/pkg/log"
	"github.com/urfave/cli/v3"
)

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Consume domain events from the event bus and run flows",
		Flags:   flags(storageFlags(), eventBusFlags(), engineFlags()),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("marketflow-run")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.InfoContext(ctx, "Initializing marketflow engine")

			rt, err := newRuntime(ctx, command, logger)
			if err != nil {
				return err
			}

			defer rt.close(context.WithoutCancel(ctx))

			err = rt.subscribe(ctx)
			if err != nil {
				return err
			}

			err = rt.engine.Start()
			if err != nil {
				return fmt.Errorf("failed to start resume sweep: %w", err)
			}

			logger.InfoContext(ctx, "Engine running, waiting for events")

			<-ctx.Done()

			logger.InfoContext(ctx, "Shutting down", "in_flight", rt.engine.InFlight())

			return nil
		},
	}
}
