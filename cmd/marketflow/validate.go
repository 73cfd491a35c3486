package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dukex/marketflow/pkg/cmd"
	"github.com/dukex/marketflow/pkg/log"
	"github.com/dukex/marketflow/pkg/models"
	"github.com/urfave/cli/v3"
)

var ErrInvalidFlows = errors.New("invalid flows found")

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Check flow graphs before activating them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Persistence URL holding the flows to check",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringSliceFlag{
				Name:  "flow",
				Usage: "Flow definition JSON file to check, repeatable",
			},
			&cli.BoolFlag{
				Name:  "include-drafts",
				Usage: "Also check draft flows stored in the database",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("marketflow-validate")

			flows, err := loadFlowFiles(command.StringSlice("flow"))
			if err != nil {
				return err
			}

			if databaseURL := command.String("database-url"); databaseURL != "" {
				stores, err := cmd.NewStores(ctx, databaseURL, logger)
				if err != nil {
					return fmt.Errorf("failed to open persistence: %w", err)
				}

				defer func() {
					if err := stores.Persistence.Close(ctx); err != nil {
						logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
					}
				}()

				stored, err := stores.Persistence.Flows(ctx)
				if err != nil {
					return fmt.Errorf("failed to list flows: %w", err)
				}

				for _, flow := range stored {
					if flow.IsDraft && !command.Bool("include-drafts") {
						continue
					}

					flows = append(flows, flow)
				}
			}

			if len(flows) == 0 {
				return errors.New("nothing to validate: pass --flow or --database-url")
			}

			invalid := 0

			for _, flow := range flows {
				err := models.ValidateGraph(flow)

				var cfgErr *models.ConfigurationError
				if errors.As(err, &cfgErr) {
					invalid++

					fmt.Fprintf(command.Root().Writer, "✗ %s (%s)\n", flow.ID, flow.Name)

					for _, problem := range cfgErr.Problems {
						fmt.Fprintf(command.Root().Writer, "    - %s\n", problem)
					}

					continue
				}

				fmt.Fprintf(command.Root().Writer, "✓ %s (%s)\n", flow.ID, flow.Name)
			}

			if invalid > 0 {
				return fmt.Errorf("%w: %d of %d", ErrInvalidFlows, invalid, len(flows))
			}

			return nil
		},
	}
}

func loadFlowFiles(paths []string) ([]*models.Flow, error) {
	flows := make([]*models.Flow, 0, len(paths))

	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read flow file %s: %w", path, err)
		}

		var flow models.Flow

		err = json.Unmarshal(raw, &flow)
		if err != nil {
			return nil, fmt.Errorf("failed to parse flow file %s: %w", path, err)
		}

		if flow.ID == "" {
			flow.ID = path
		}

		flows = append(flows, &flow)
	}

	return flows, nil
}
