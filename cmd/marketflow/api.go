package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dukex/marketflow/pkg/engine"
	"github.com/dukex/marketflow/pkg/log"
	"github.com/dukex/marketflow/pkg/persistence"
	"github.com/dukex/marketflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/urfave/cli/v3"
)

const defaultPort = 9091

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	engine      *engine.Engine
	validate    *validator.Validate
}

func NewAPI(logger *slog.Logger, persistence persistence.Persistence, eng *engine.Engine) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		engine:      eng,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.engine, a.persistence, a.validate, web.DefaultEventSchemas(), a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("marketflow API")
	})

	handlers.Register(app)

	return app
}

func APICommand() *cli.Command {
	return &cli.Command{
		Name:    "api",
		Aliases: []string{"a"},
		Usage:   "Serve the HTTP API and run flows for the events it receives",
		Flags: flags(storageFlags(), eventBusFlags(), engineFlags(), []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		}),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("marketflow-api")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, command, logger)
			if err != nil {
				return err
			}

			defer rt.close(context.WithoutCancel(ctx))

			err = rt.engine.Start()
			if err != nil {
				return fmt.Errorf("failed to start resume sweep: %w", err)
			}

			app := NewAPI(logger, rt.stores.Persistence, rt.engine).App()

			go func() {
				<-ctx.Done()

				if err := app.Shutdown(); err != nil {
					logger.Error("Failed to shut down API", "error", err)
				}
			}()

			logger.InfoContext(ctx, "Initializing marketflow API", "port", command.Int("port"))

			err = app.Listen(":"+strconv.Itoa(command.Int("port")), fiber.ListenConfig{DisableStartupMessage: true})
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("failed to serve API: %w", err)
			}

			return nil
		},
	}
}
