// Package trigger provides the trigger node executor. Trigger matching
// happens before a traversal starts, so executing the node only records
// that the flow was entered.
package trigger

import (
	"context"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/protocol"
)

type Executor struct{}

var _ protocol.NodeExecutor = (*Executor)(nil)

func NewExecutor() *Executor {
	return &Executor{}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeTrigger
}

func (e *Executor) Execute(_ context.Context, _ *protocol.Step) (protocol.Outcome, error) {
	return protocol.Outcome{}, nil
}
