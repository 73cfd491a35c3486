// Package protocol defines the contracts between the flow engine, its node
// executors and the collaborators they call out to.
package protocol

import (
	"context"
	"time"

	"github.com/dukex/marketflow/pkg/models"
)

// Step is a single node execution inside a traversal. Executors may write
// into Context.EventData; later nodes of the same traversal observe it.
type Step struct {
	Flow      *models.Flow
	Node      *models.Node
	EventType string
	Context   *models.ExecutionContext
}

// Outcome is what an executor reports back to the walker.
type Outcome struct {
	// Branch selects the labeled edge to follow ("true"/"false"). Empty
	// means follow the first outgoing edge.
	Branch string

	// Stop ends the traversal after this node.
	Stop bool

	// Suspend parks the traversal until the given time. The walker writes a
	// checkpoint and a resume sweep continues from the next node.
	Suspend *time.Time

	ProviderMessageID string
}

// NodeExecutor runs one node type.
type NodeExecutor interface {
	Type() models.NodeType
	Execute(ctx context.Context, step *Step) (Outcome, error)
}
