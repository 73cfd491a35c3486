// Package logdispatch is a dry-run dispatcher: it logs and records messages
// instead of delivering them.
package logdispatch

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/protocol"
	"github.com/google/uuid"
)

type Dispatcher struct {
	channel models.Channel
	logger  *slog.Logger

	mu   sync.Mutex
	sent []protocol.Message
}

var _ protocol.Dispatcher = (*Dispatcher)(nil)

func New(channel models.Channel, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		channel: channel,
		logger:  logger.With("module", "log_dispatcher", "channel", channel),
	}
}

func (d *Dispatcher) Channel() models.Channel {
	return d.channel
}

func (d *Dispatcher) Send(ctx context.Context, msg protocol.Message) (protocol.DispatchResult, error) {
	id := "log-" + uuid.NewString()

	d.logger.InfoContext(ctx, "message dispatched",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
		"provider_message_id", id,
	)

	d.mu.Lock()
	d.sent = append(d.sent, msg)
	d.mu.Unlock()

	return protocol.DispatchResult{Success: true, ProviderMessageID: id}, nil
}

// Sent returns the messages dispatched so far, oldest first.
func (d *Dispatcher) Sent() []protocol.Message {
	d.mu.Lock()
	defer d.mu.Unlock()

	return slices.Clone(d.sent)
}
