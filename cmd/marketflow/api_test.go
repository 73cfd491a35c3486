package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/marketflow/pkg/engine"
	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/persistence/memory"
	"github.com/dukex/marketflow/pkg/registry"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T, store *memory.Persistence) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	eng, err := engine.New(engine.DefaultConfig(), engine.Dependencies{
		Flows:    store,
		Logs:     store.ExecutionLogs(),
		Registry: registry.NewRegistry(logger),
		Logger:   logger,
	})
	require.NoError(t, err)

	t.Cleanup(eng.Close)

	return NewAPI(logger, store, eng).App()
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t, memory.NewPersistence())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "marketflow API", string(body))
}

func TestAPI_HealthCheck(t *testing.T) {
	app := setupTestApp(t, memory.NewPersistence())

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestAPI_GetFlows_WithData(t *testing.T) {
	store := memory.NewPersistence()

	for _, id := range []string{"welcome", "winback"} {
		require.NoError(t, store.SaveFlow(t.Context(), &models.Flow{
			ID:      id,
			Name:    "Flow " + id,
			Channel: models.ChannelEmail,
			IsDraft: true,
		}))
	}

	app := setupTestApp(t, store)

	req := httptest.NewRequest(http.MethodGet, "/flows", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var flows []models.Flow

	err = json.NewDecoder(resp.Body).Decode(&flows)
	require.NoError(t, err)
	require.Len(t, flows, 2)

	ids := []string{flows[0].ID, flows[1].ID}
	assert.Contains(t, ids, "welcome")
	assert.Contains(t, ids, "winback")
}

func TestAPI_GetFlow_NotFound(t *testing.T) {
	app := setupTestApp(t, memory.NewPersistence())

	req := httptest.NewRequest(http.MethodGet, "/flows/non-existent-flow", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CORS_Headers(t *testing.T) {
	app := setupTestApp(t, memory.NewPersistence())

	req := httptest.NewRequest(http.MethodOptions, "/flows", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
