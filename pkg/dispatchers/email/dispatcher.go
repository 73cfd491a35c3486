// Package email delivers flow messages through a transactional email HTTP API.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dukex/marketflow/pkg/dispatchers"
	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/protocol"
)

// Config points the dispatcher at the provider.
type Config struct {
	URL   string `validate:"required,url"`
	Token string
	From  string `validate:"required"`
}

type request struct {
	From     string            `json:"from"`
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type response struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Dispatcher posts one JSON request per message.
type Dispatcher struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

var _ protocol.Dispatcher = (*Dispatcher)(nil)

// New creates an email dispatcher. A nil client gets a default one.
func New(config Config, client *http.Client, logger *slog.Logger) (*Dispatcher, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("email dispatcher: %w", dispatchers.ErrMissingEndpoint)
	}

	err := dispatchers.ValidateConfig(config)
	if err != nil {
		return nil, fmt.Errorf("email dispatcher: %w", err)
	}

	if client == nil {
		client = dispatchers.NewHTTPClient()
	}

	return &Dispatcher{
		config: config,
		client: client,
		logger: logger.With("module", "email_dispatcher"),
	}, nil
}

func (d *Dispatcher) Channel() models.Channel {
	return models.ChannelEmail
}

func (d *Dispatcher) Send(ctx context.Context, msg protocol.Message) (protocol.DispatchResult, error) {
	headers := map[string]string{}
	if d.config.Token != "" {
		headers["Authorization"] = "Bearer " + d.config.Token
	}

	resp, err := dispatchers.PostJSON(ctx, d.client, d.config.URL, headers, request{
		From:     d.config.From,
		To:       msg.To,
		Subject:  msg.Subject,
		Text:     msg.Body,
		Metadata: msg.Metadata,
	})
	if err != nil {
		return protocol.DispatchResult{}, fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}

	var body response

	decodeErr := resp.Decode(&body)
	if decodeErr != nil {
		d.logger.WarnContext(ctx, "provider returned a non JSON body", "status", resp.StatusCode, "error", decodeErr)
	}

	if !resp.OK() {
		reason := body.Error
		if reason == "" {
			reason = body.Message
		}

		if reason == "" {
			reason = fmt.Sprintf("provider responded with status %d", resp.StatusCode)
		}

		return protocol.DispatchResult{Success: false, Error: reason}, nil
	}

	d.logger.DebugContext(ctx, "email accepted", "to", msg.To, "provider_message_id", body.ID)

	return protocol.DispatchResult{Success: true, ProviderMessageID: body.ID}, nil
}
