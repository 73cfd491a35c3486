// Package dispatchers holds the channel dispatchers that hand rendered
// messages to external delivery providers.
package dispatchers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	defaultTimeout = 30 * time.Second
	// MaxResponseSize caps how much of a provider reply is read.
	MaxResponseSize = 1 << 20
)

// ErrMissingEndpoint is returned when a dispatcher is built without a provider URL.
var ErrMissingEndpoint = errors.New("missing provider endpoint")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateConfig checks a provider config against its validate tags.
func ValidateConfig(config any) error {
	err := validate.Struct(config)
	if err != nil {
		return fmt.Errorf("invalid provider config: %w", err)
	}

	return nil
}

// Response is a provider reply.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the provider accepted the request.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v.
func (r Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}

	err := json.Unmarshal(r.Body, v)
	if err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}

	return nil
}

// NewHTTPClient returns the client dispatchers use when none is injected.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// PostJSON sends payload as a JSON body. A non-2xx status is not an error;
// callers inspect the Response. Bodies beyond MaxResponseSize are truncated.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response body: %w", err)
	}

	return Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}
