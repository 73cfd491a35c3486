package sms_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/marketflow/pkg/dispatchers/sms"
	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_Send(t *testing.T) {
	t.Parallel()

	var received map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/AC1/messages", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC1", user)
		assert.Equal(t, "token", pass)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer server.Close()

	dispatcher, err := sms.New(sms.Config{
		URL:       server.URL + "/accounts/{account}/messages",
		AccountID: "AC1",
		Token:     "token",
		From:      "+15550000",
	}, server.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.Equal(t, models.ChannelSMS, dispatcher.Channel())

	result, err := dispatcher.Send(context.Background(), protocol.Message{
		To:      "+15551234",
		Subject: "ignored",
		Body:    "Your order is on the way",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "SM1", result.ProviderMessageID)
	assert.Equal(t, map[string]string{"from": "+15550000", "to": "+15551234", "body": "Your order is on the way"}, received)
}

func TestDispatcher_SendFailedStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"sid":"SM2","status":"failed","message":"unreachable handset"}`))
	}))
	defer server.Close()

	dispatcher, err := sms.New(sms.Config{URL: server.URL, From: "+15550000"}, server.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	result, err := dispatcher.Send(context.Background(), protocol.Message{To: "+15551234", Body: "hi"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "SM2", result.ProviderMessageID)
	assert.Equal(t, "unreachable handset", result.Error)
}

func TestNew_RequiresSender(t *testing.T) {
	t.Parallel()

	_, err := sms.New(sms.Config{URL: "https://sms.example.com/accounts/{account}/messages", AccountID: "AC1"}, nil, slog.Default())
	assert.ErrorContains(t, err, "invalid provider config")
}
