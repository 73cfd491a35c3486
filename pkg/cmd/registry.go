// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"
	"time"

	"github.com/dukex/marketflow/pkg/dispatchers"
	"github.com/dukex/marketflow/pkg/dispatchers/email"
	"github.com/dukex/marketflow/pkg/dispatchers/logdispatch"
	"github.com/dukex/marketflow/pkg/dispatchers/sms"
	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/nodes/action"
	"github.com/dukex/marketflow/pkg/nodes/condition"
	"github.com/dukex/marketflow/pkg/nodes/delay"
	"github.com/dukex/marketflow/pkg/nodes/message"
	"github.com/dukex/marketflow/pkg/nodes/trigger"
	"github.com/dukex/marketflow/pkg/protocol"
	"github.com/dukex/marketflow/pkg/registry"
)

type DispatcherConfig struct {
	// DryRun logs messages instead of delivering them on every channel.
	DryRun bool
	Email  email.Config
	SMS    sms.Config
}

// NewDispatchers builds one dispatcher per channel. A channel without a
// provider URL falls back to the log dispatcher.
func NewDispatchers(config DispatcherConfig, logger *slog.Logger) ([]protocol.Dispatcher, error) {
	if config.DryRun {
		return []protocol.Dispatcher{
			logdispatch.New(models.ChannelEmail, logger),
			logdispatch.New(models.ChannelSMS, logger),
		}, nil
	}

	client := dispatchers.NewHTTPClient()
	result := make([]protocol.Dispatcher, 0, 2)

	if config.Email.URL != "" {
		dispatcher, err := email.New(config.Email, client, logger)
		if err != nil {
			return nil, err
		}

		result = append(result, dispatcher)
	} else {
		logger.Warn("no email provider configured, email messages will only be logged")
		result = append(result, logdispatch.New(models.ChannelEmail, logger))
	}

	if config.SMS.URL != "" {
		dispatcher, err := sms.New(config.SMS, client, logger)
		if err != nil {
			return nil, err
		}

		result = append(result, dispatcher)
	} else {
		logger.Warn("no sms provider configured, text messages will only be logged")
		result = append(result, logdispatch.New(models.ChannelSMS, logger))
	}

	return result, nil
}

func registerNativeNodes(
	reg *registry.Registry,
	stores *Stores,
	dispatchers []protocol.Dispatcher,
	shortDelayThreshold time.Duration,
	logger *slog.Logger,
) {
	reg.Register(trigger.NewExecutor())
	reg.Register(message.NewExecutor(dispatchers, stores.Templates, stores.Directory, logger))
	reg.Register(delay.NewExecutor(shortDelayThreshold, time.Now))
	reg.Register(condition.NewExecutor(stores.Directory, time.Now, logger))
	reg.Register(action.NewExecutor(stores.Promotions, logger))
}

// NewRegistry returns a registry holding an executor for every node type.
func NewRegistry(
	log *slog.Logger,
	stores *Stores,
	dispatchers []protocol.Dispatcher,
	shortDelayThreshold time.Duration,
) *registry.Registry {
	reg := registry.NewRegistry(log)

	registerNativeNodes(reg, stores, dispatchers, shortDelayThreshold, log)

	return reg
}
