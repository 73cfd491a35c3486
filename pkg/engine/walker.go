package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/otelhelper"
	"github.com/dukex/marketflow/pkg/persistence"
	"github.com/dukex/marketflow/pkg/protocol"
	"github.com/dukex/marketflow/pkg/registry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type TraversalStatus string

const (
	StatusCompleted TraversalStatus = "completed"
	StatusFailed    TraversalStatus = "failed"
	StatusSuspended TraversalStatus = "suspended"
	StatusCancelled TraversalStatus = "cancelled"
)

// TraversalResult summarises one traversal of one flow for one subject.
type TraversalResult struct {
	FlowID        string
	SubjectKey    string
	EventType     string
	Status        TraversalStatus
	NodesExecuted int
	LastNodeID    string
	Err           error
}

// Walker drives a traversal node by node. Every executed node produces one
// execution log row before the walker moves on.
type Walker struct {
	registry    *registry.Registry
	logs        *ExecutionLogger
	checkpoints persistence.CheckpointRepository
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time
}

func NewWalker(
	reg *registry.Registry,
	logs *ExecutionLogger,
	checkpoints persistence.CheckpointRepository,
	tracer trace.Tracer,
	logger *slog.Logger,
	now func() time.Time,
) *Walker {
	if now == nil {
		now = time.Now
	}

	return &Walker{
		registry:    reg,
		logs:        logs,
		checkpoints: checkpoints,
		tracer:      tracer,
		logger:      logger.With("module", "walker"),
		now:         now,
	}
}

type traversal struct {
	flow      *models.Flow
	eventType string
	execCtx   *models.ExecutionContext
	visited   []string
	result    TraversalResult
}

func (t *traversal) seen(nodeID string) bool {
	return slices.Contains(t.visited, nodeID)
}

// Walk runs a flow from its trigger node.
func (w *Walker) Walk(ctx context.Context, flow *models.Flow, eventType string, execCtx models.ExecutionContext) TraversalResult {
	t := w.newTraversal(flow, eventType, execCtx, nil)

	trigger := flow.TriggerNode()
	if trigger == nil {
		err := fmt.Errorf("flow %s has no trigger node", flow.ID)
		w.fail(ctx, t, "", err)

		return t.result
	}

	return w.run(ctx, t, trigger)
}

// Resume continues a suspended traversal after the delay node that parked it.
func (w *Walker) Resume(ctx context.Context, flow *models.Flow, checkpoint *models.Checkpoint) TraversalResult {
	t := w.newTraversal(flow, checkpoint.EventType, checkpoint.Context, checkpoint.Visited)
	t.result.LastNodeID = checkpoint.NodeID

	next := w.next(ctx, flow, checkpoint.NodeID, "")
	if next == nil {
		t.result.Status = StatusCompleted

		return t.result
	}

	return w.run(ctx, t, next)
}

func (w *Walker) newTraversal(flow *models.Flow, eventType string, execCtx models.ExecutionContext, visited []string) *traversal {
	cloned := execCtx.Clone()

	return &traversal{
		flow:      flow,
		eventType: eventType,
		execCtx:   &cloned,
		visited:   slices.Clone(visited),
		result: TraversalResult{
			FlowID:     flow.ID,
			SubjectKey: execCtx.SubjectKey(),
			EventType:  eventType,
		},
	}
}

func (w *Walker) run(ctx context.Context, t *traversal, start *models.Node) TraversalResult {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "flow.traversal",
		attribute.String(otelhelper.FlowIDKey, t.flow.ID),
		attribute.String(otelhelper.SubjectKeyKey, t.result.SubjectKey),
		attribute.String(otelhelper.EventTypeKey, t.eventType),
	)
	defer span.End()

	logger := w.logger.With("flow_id", t.flow.ID, "subject_key", t.result.SubjectKey)

	for current := start; current != nil; {
		if ctx.Err() != nil {
			w.cancel(ctx, t, current.ID)

			return t.result
		}

		if t.seen(current.ID) {
			logger.WarnContext(ctx, "cycle detected, ending traversal", "node_id", current.ID)

			break
		}

		t.visited = append(t.visited, current.ID)

		outcome, err := w.execute(ctx, t, current)
		if err != nil {
			if ctx.Err() != nil {
				w.cancel(ctx, t, current.ID)
			} else {
				w.fail(ctx, t, current.ID, &NodeExecutionError{FlowID: t.flow.ID, NodeID: current.ID, Err: err})
			}

			otelhelper.SetError(span, err, attribute.String(otelhelper.NodeIDKey, current.ID))

			return t.result
		}

		if outcome.Suspend != nil {
			err = w.suspend(ctx, t, current, *outcome.Suspend)
			if err != nil {
				w.fail(ctx, t, current.ID, err)
				otelhelper.SetError(span, err)

				return t.result
			}
		}

		err = w.logs.Record(ctx, &models.ExecutionLog{
			FlowID:            t.flow.ID,
			NodeID:            current.ID,
			SubjectKey:        t.result.SubjectKey,
			EventType:         t.eventType,
			Status:            models.LogStatusSuccess,
			ProviderMessageID: outcome.ProviderMessageID,
		})
		if err != nil {
			t.result.Status = StatusFailed
			t.result.Err = err
			logger.ErrorContext(ctx, "failed to record node execution", "node_id", current.ID, "error", err)

			return t.result
		}

		t.result.NodesExecuted++
		t.result.LastNodeID = current.ID

		if outcome.Suspend != nil {
			t.result.Status = StatusSuspended
			logger.InfoContext(ctx, "traversal suspended", "node_id", current.ID, "resume_at", *outcome.Suspend)

			return t.result
		}

		if outcome.Stop {
			break
		}

		current = w.next(ctx, t.flow, current.ID, outcome.Branch)
	}

	t.result.Status = StatusCompleted

	return t.result
}

func (w *Walker) execute(ctx context.Context, t *traversal, node *models.Node) (protocol.Outcome, error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "flow.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
	)
	defer span.End()

	executor, err := w.registry.Executor(node.Type)
	if err != nil {
		return protocol.Outcome{}, err
	}

	outcome, err := executor.Execute(ctx, &protocol.Step{
		Flow:      t.flow,
		Node:      node,
		EventType: t.eventType,
		Context:   t.execCtx,
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return protocol.Outcome{}, err
	}

	return outcome, nil
}

// next picks the edge to follow. A branch signal selects the edge carrying
// that label and ends the traversal when there is none; without a signal
// the first outgoing edge is taken.
func (w *Walker) next(ctx context.Context, flow *models.Flow, nodeID, branch string) *models.Node {
	edges := flow.OutgoingEdges(nodeID)

	var chosen *models.Edge

	if branch != "" {
		for _, edge := range edges {
			if edge.BranchLabel == branch {
				chosen = edge

				break
			}
		}
	} else if len(edges) > 0 {
		chosen = edges[0]
	}

	if chosen == nil {
		return nil
	}

	target, ok := flow.NodeByID(chosen.Target)
	if !ok {
		w.logger.WarnContext(ctx, "edge points to a missing node", "flow_id", flow.ID, "edge_id", chosen.ID, "target", chosen.Target)

		return nil
	}

	return target
}

func (w *Walker) suspend(ctx context.Context, t *traversal, node *models.Node, resumeAt time.Time) error {
	if w.checkpoints == nil {
		return errors.New("long delay requires a checkpoint store")
	}

	err := w.checkpoints.Save(context.WithoutCancel(ctx), &models.Checkpoint{
		ID:        uuid.New().String(),
		FlowID:    t.flow.ID,
		NodeID:    node.ID,
		EventType: t.eventType,
		Context:   t.execCtx.Clone(),
		Visited:   slices.Clone(t.visited),
		ResumeAt:  resumeAt.UTC(),
		CreatedAt: w.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return nil
}

func (w *Walker) fail(ctx context.Context, t *traversal, nodeID string, cause error) {
	t.result.Status = StatusFailed
	t.result.Err = cause

	message := cause.Error()

	var nodeErr *NodeExecutionError
	if errors.As(cause, &nodeErr) {
		message = nodeErr.Err.Error()
	}

	w.record(ctx, t, nodeID, message)
}

func (w *Walker) cancel(ctx context.Context, t *traversal, nodeID string) {
	t.result.Status = StatusCancelled
	t.result.Err = ErrTraversalCancelled

	w.record(ctx, t, nodeID, ErrTraversalCancelled.Error())
}

func (w *Walker) record(ctx context.Context, t *traversal, nodeID, message string) {
	if nodeID != "" {
		t.result.LastNodeID = nodeID
	}

	err := w.logs.Record(ctx, &models.ExecutionLog{
		FlowID:       t.flow.ID,
		NodeID:       nodeID,
		SubjectKey:   t.result.SubjectKey,
		EventType:    t.eventType,
		Status:       models.LogStatusFailure,
		ErrorMessage: message,
	})
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to record traversal failure", "flow_id", t.flow.ID, "node_id", nodeID, "error", err)
	}
}
