package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/marketflow/pkg/events"
	"github.com/dukex/marketflow/pkg/log"
	"github.com/dukex/marketflow/pkg/models"
	"github.com/urfave/cli/v3"
)

func EmitCommand() *cli.Command {
	return &cli.Command{
		Name:    "emit",
		Aliases: []string{"e"},
		Usage:   "Send a domain event, to the bus or straight into a local engine",
		Flags: flags(storageFlags(), eventBusFlags(), engineFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:     "event-type",
				Usage:    "Domain event type (order_created, cart_abandoned, ...)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "subject-id",
				Usage: "Account id of the customer",
			},
			&cli.StringFlag{
				Name:  "destination",
				Usage: "Destination address when the customer has no account",
			},
			&cli.StringFlag{
				Name:  "order-ref",
				Usage: "Order reference",
			},
			&cli.StringFlag{
				Name:  "data",
				Usage: "Event data as a JSON object",
				Value: "{}",
			},
			&cli.BoolFlag{
				Name:  "local",
				Usage: "Run matching flows in this process and print their outcome",
			},
		}),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("marketflow-emit")

			var data map[string]any

			err := json.Unmarshal([]byte(command.String("data")), &data)
			if err != nil {
				return fmt.Errorf("invalid --data: %w", err)
			}

			execCtx := models.ExecutionContext{
				SubjectID:          command.String("subject-id"),
				DestinationAddress: command.String("destination"),
				OrderRef:           command.String("order-ref"),
				EventData:          data,
			}

			if execCtx.SubjectKey() == "" {
				return errors.New("one of --subject-id or --destination is required")
			}

			rt, err := newRuntime(ctx, command, logger)
			if err != nil {
				return err
			}

			defer rt.close(context.WithoutCancel(ctx))

			eventType := command.String("event-type")

			if !command.Bool("local") {
				if command.String("event-bus") == "gochannel" {
					logger.WarnContext(ctx, "gochannel bus only reaches this process, use --local or --event-bus kafka")
				}

				event := events.NewDomainEvent(eventType, execCtx)

				err = rt.eventBus.Publish(ctx, execCtx.SubjectKey(), event)
				if err != nil {
					return fmt.Errorf("failed to publish event: %w", err)
				}

				logger.InfoContext(ctx, "Event published", "event_id", event.ID, "event_type", eventType)

				return nil
			}

			results, err := rt.engine.Dispatch(ctx, eventType, execCtx)
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Fprintln(command.Root().Writer, "no flow accepted the event")
			}

			for _, result := range results {
				line := fmt.Sprintf("%s: %s after %d nodes (last %s)", result.FlowID, result.Status, result.NodesExecuted, result.LastNodeID)
				if result.Err != nil {
					line += ": " + result.Err.Error()
				}

				fmt.Fprintln(command.Root().Writer, line)
			}

			return nil
		},
	}
}
