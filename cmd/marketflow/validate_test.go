package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFlowFile(t *testing.T, flow *models.Flow) string {
	t.Helper()

	raw, err := json.Marshal(flow)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), flow.ID+".json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	return path
}

func validFlow() *models.Flow {
	return &models.Flow{
		ID:      "first-order",
		Name:    "First order thanks",
		Channel: models.ChannelEmail,
		Nodes: []*models.Node{
			models.NewTriggerNode("trigger", models.TriggerConfig{EventType: "order_created"}),
			models.NewMessageNode("thanks", models.MessageConfig{TemplateID: "thanks"}),
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trigger", Target: "thanks"},
		},
	}
}

func TestValidateCommand_ValidFlowFile(t *testing.T) {
	path := writeFlowFile(t, validFlow())

	var out bytes.Buffer

	command := ValidateCommand()
	command.Writer = &out

	err := command.Run(t.Context(), []string{"validate", "--flow", path})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✓ first-order")
}

func TestValidateCommand_ReportsProblems(t *testing.T) {
	flow := validFlow()
	flow.ID = "broken"
	flow.Edges = append(flow.Edges, &models.Edge{ID: "e2", Source: "thanks", Target: "ghost"})

	path := writeFlowFile(t, flow)

	var out bytes.Buffer

	command := ValidateCommand()
	command.Writer = &out

	err := command.Run(t.Context(), []string{"validate", "--flow", path})
	require.ErrorIs(t, err, ErrInvalidFlows)
	assert.Contains(t, out.String(), "✗ broken")
	assert.Contains(t, out.String(), `unknown target node "ghost"`)
}

func TestValidateCommand_NothingToValidate(t *testing.T) {
	command := ValidateCommand()
	command.Writer = &bytes.Buffer{}

	err := command.Run(t.Context(), []string{"validate"})
	assert.Error(t, err)
}

func TestLoadFlowFiles_RejectsBrokenJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := loadFlowFiles([]string{path})
	assert.Error(t, err)
}
