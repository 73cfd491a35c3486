// Package sms delivers flow messages through an SMS gateway HTTP API.
package sms

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukex/marketflow/pkg/dispatchers"
	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/protocol"
)

// Config points the dispatcher at the gateway. The URL may contain an
// {account} placeholder which is replaced with AccountID.
type Config struct {
	URL       string `validate:"required"`
	AccountID string
	Token     string
	From      string `validate:"required"`
}

type request struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type response struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Dispatcher sends text messages. Subjects are ignored.
type Dispatcher struct {
	config   Config
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

var _ protocol.Dispatcher = (*Dispatcher)(nil)

// New creates an SMS dispatcher. A nil client gets a default one.
func New(config Config, client *http.Client, logger *slog.Logger) (*Dispatcher, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("sms dispatcher: %w", dispatchers.ErrMissingEndpoint)
	}

	err := dispatchers.ValidateConfig(config)
	if err != nil {
		return nil, fmt.Errorf("sms dispatcher: %w", err)
	}

	if client == nil {
		client = dispatchers.NewHTTPClient()
	}

	return &Dispatcher{
		config:   config,
		endpoint: strings.ReplaceAll(config.URL, "{account}", config.AccountID),
		client:   client,
		logger:   logger.With("module", "sms_dispatcher"),
	}, nil
}

func (d *Dispatcher) Channel() models.Channel {
	return models.ChannelSMS
}

func (d *Dispatcher) Send(ctx context.Context, msg protocol.Message) (protocol.DispatchResult, error) {
	headers := map[string]string{}
	if d.config.AccountID != "" || d.config.Token != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(d.config.AccountID + ":" + d.config.Token))
		headers["Authorization"] = "Basic " + credentials
	}

	resp, err := dispatchers.PostJSON(ctx, d.client, d.endpoint, headers, request{
		From: d.config.From,
		To:   msg.To,
		Body: msg.Body,
	})
	if err != nil {
		return protocol.DispatchResult{}, fmt.Errorf("failed to send sms to %s: %w", msg.To, err)
	}

	var body response

	decodeErr := resp.Decode(&body)
	if decodeErr != nil {
		d.logger.WarnContext(ctx, "gateway returned a non JSON body", "status", resp.StatusCode, "error", decodeErr)
	}

	if !resp.OK() || body.Status == "failed" || body.Status == "undelivered" {
		reason := body.Message
		if reason == "" {
			reason = fmt.Sprintf("gateway responded with status %d", resp.StatusCode)
		}

		return protocol.DispatchResult{Success: false, ProviderMessageID: body.SID, Error: reason}, nil
	}

	return protocol.DispatchResult{Success: true, ProviderMessageID: body.SID}, nil
}
