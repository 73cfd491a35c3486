// Package registry maps node types to the executors that run them.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/protocol"
)

var ErrExecutorNotRegistered = errors.New("no executor registered for node type")

type Registry struct {
	logger    *slog.Logger
	executors map[models.NodeType]protocol.NodeExecutor
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log.With("module", "registry"),
		executors: make(map[models.NodeType]protocol.NodeExecutor),
	}
}

// Register adds an executor, replacing any executor previously registered
// for the same node type.
func (r *Registry) Register(executor protocol.NodeExecutor) {
	if _, exists := r.executors[executor.Type()]; exists {
		r.logger.Warn("replacing node executor", "type", executor.Type())
	}

	r.executors[executor.Type()] = executor
}

// Executor returns the executor for nodeType.
func (r *Registry) Executor(nodeType models.NodeType) (protocol.NodeExecutor, error) {
	executor, ok := r.executors[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrExecutorNotRegistered, nodeType)
	}

	return executor, nil
}

// Types returns the registered node types in sorted order.
func (r *Registry) Types() []models.NodeType {
	return slices.Sorted(maps.Keys(r.executors))
}
