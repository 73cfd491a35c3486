package registry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct {
	nodeType models.NodeType
	branch   string
}

func (s *stubExecutor) Type() models.NodeType {
	return s.nodeType
}

func (s *stubExecutor) Execute(_ context.Context, _ *protocol.Step) (protocol.Outcome, error) {
	return protocol.Outcome{Branch: s.branch}, nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))

	r.Register(&stubExecutor{nodeType: models.NodeTypeTrigger})
	r.Register(&stubExecutor{nodeType: models.NodeTypeCondition, branch: "true"})

	executor, err := r.Executor(models.NodeTypeCondition)
	require.NoError(t, err)

	outcome, err := executor.Execute(context.Background(), &protocol.Step{})
	require.NoError(t, err)
	assert.Equal(t, "true", outcome.Branch)

	_, err = r.Executor(models.NodeTypeDelay)
	assert.ErrorIs(t, err, ErrExecutorNotRegistered)

	assert.Equal(t, []models.NodeType{models.NodeTypeCondition, models.NodeTypeTrigger}, r.Types())
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))

	r.Register(&stubExecutor{nodeType: models.NodeTypeCondition, branch: "true"})
	r.Register(&stubExecutor{nodeType: models.NodeTypeCondition, branch: "false"})

	executor, err := r.Executor(models.NodeTypeCondition)
	require.NoError(t, err)

	outcome, err := executor.Execute(context.Background(), &protocol.Step{})
	require.NoError(t, err)
	assert.Equal(t, "false", outcome.Branch)
	assert.Len(t, r.Types(), 1)
}
