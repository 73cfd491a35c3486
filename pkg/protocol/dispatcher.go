package protocol

import (
	"context"

	"github.com/dukex/marketflow/pkg/models"
)

// Message is a rendered message ready to be handed to a channel.
type Message struct {
	To       string
	Subject  string
	Body     string
	Metadata map[string]string
}

// DispatchResult is the provider's answer to a send attempt. A returned
// error means the attempt could not be made at all; Success=false means the
// provider refused it.
type DispatchResult struct {
	Success           bool
	ProviderMessageID string
	Error             string
}

// Dispatcher delivers messages over one channel. The engine calls Send once
// per message node per traversal and never deduplicates.
type Dispatcher interface {
	Channel() models.Channel
	Send(ctx context.Context, msg Message) (DispatchResult, error)
}
