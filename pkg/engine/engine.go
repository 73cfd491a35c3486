// Package engine runs marketing automation flows: it matches domain events
// to flows, admits at most one traversal per flow and subject, walks the
// flow graph and resumes traversals parked on long delays.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/marketflow/pkg/eventbus"
	"github.com/dukex/marketflow/pkg/events"
	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/otelhelper"
	"github.com/dukex/marketflow/pkg/persistence"
	"github.com/dukex/marketflow/pkg/registry"
	"github.com/go-playground/validator/v10"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultSuppressionWindow       = 24 * time.Hour
	DefaultMaxConcurrentTraversals = 256
	DefaultResumeSchedule          = "@every 30s"
	DefaultResumeBatchSize         = 100
)

type Config struct {
	// SuppressionWindow skips a flow for a subject that completed a node of
	// it for the same event type within the window. Zero disables it.
	SuppressionWindow       time.Duration `validate:"gte=0"`
	MaxConcurrentTraversals int           `validate:"gte=1"`
	ResumeSchedule          string        `validate:"required"`
	ResumeBatchSize         int           `validate:"gte=1"`

	// Now is the engine clock; tests replace it.
	Now func() time.Time `validate:"-"`
}

func DefaultConfig() Config {
	return Config{
		SuppressionWindow:       DefaultSuppressionWindow,
		MaxConcurrentTraversals: DefaultMaxConcurrentTraversals,
		ResumeSchedule:          DefaultResumeSchedule,
		ResumeBatchSize:         DefaultResumeBatchSize,
		Now:                     time.Now,
	}
}

// Dependencies are the collaborators the engine runs against. Publisher and
// Tracer are optional.
type Dependencies struct {
	Flows       persistence.FlowRepository
	Logs        persistence.ExecutionLogRepository
	Checkpoints persistence.CheckpointRepository
	Registry    *registry.Registry
	Publisher   eventbus.EventPublisher
	Tracer      trace.Tracer
	Logger      *slog.Logger
}

type Engine struct {
	config    Config
	flows     persistence.FlowRepository
	logs      *ExecutionLogger
	guard     *Guard
	walker    *Walker
	resumer   *Resumer
	publisher eventbus.EventPublisher
	pool      *ants.Pool
	logger    *slog.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

func New(config Config, deps Dependencies) (*Engine, error) {
	err := validator.New().Struct(config)
	if err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	if deps.Flows == nil || deps.Logs == nil || deps.Registry == nil {
		return nil, errors.New("engine requires a flow store, an execution log and a registry")
	}

	if config.Now == nil {
		config.Now = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := deps.Tracer
	if tracer == nil {
		tracer = otelhelper.DefaultTracer()
	}

	pool, err := ants.NewPool(config.MaxConcurrentTraversals)
	if err != nil {
		return nil, fmt.Errorf("failed to create traversal pool: %w", err)
	}

	baseCtx, stop := context.WithCancel(context.Background())

	e := &Engine{
		config:    config,
		flows:     deps.Flows,
		logs:      NewExecutionLogger(deps.Logs, deps.Publisher, logger, config.Now),
		guard:     NewGuard(),
		publisher: deps.Publisher,
		pool:      pool,
		logger:    logger.With("module", "engine"),
		baseCtx:   baseCtx,
		stop:      stop,
	}

	e.walker = NewWalker(deps.Registry, e.logs, deps.Checkpoints, tracer, logger, config.Now)

	if deps.Checkpoints != nil {
		e.resumer = NewResumer(e, deps.Checkpoints, config.ResumeSchedule, config.ResumeBatchSize, logger)
	}

	return e, nil
}

type admission struct {
	flow    *models.Flow
	ctx     context.Context
	release func()
}

// TriggerEvent starts every flow the event admits and returns without
// waiting for the traversals. They run on the engine's context, so they
// outlive ctx; Close or Cancel ends them.
func (e *Engine) TriggerEvent(ctx context.Context, eventType string, execCtx models.ExecutionContext) error {
	admitted, err := e.admit(ctx, e.baseCtx, eventType, execCtx)
	if err != nil {
		return err
	}

	for i, a := range admitted {
		err := e.submit(a, func(ctx context.Context) TraversalResult {
			return e.walker.Walk(ctx, a.flow, eventType, execCtx)
		}, nil)
		if err != nil {
			for _, rest := range admitted[i+1:] {
				rest.release()
			}

			return err
		}
	}

	return nil
}

// Dispatch is TriggerEvent that waits for the traversals it started and
// returns their results. Traversals end when ctx does.
func (e *Engine) Dispatch(ctx context.Context, eventType string, execCtx models.ExecutionContext) ([]TraversalResult, error) {
	admitted, err := e.admit(ctx, ctx, eventType, execCtx)
	if err != nil {
		return nil, err
	}

	var (
		wg      sync.WaitGroup
		results = make([]TraversalResult, len(admitted))
		errs    []error
	)

	for i, a := range admitted {
		wg.Add(1)

		err := e.submit(a, func(ctx context.Context) TraversalResult {
			return e.walker.Walk(ctx, a.flow, eventType, execCtx)
		}, func(result TraversalResult) {
			results[i] = result
			wg.Done()
		})
		if err != nil {
			wg.Done()

			results[i] = TraversalResult{FlowID: a.flow.ID, SubjectKey: execCtx.SubjectKey(), EventType: eventType, Status: StatusFailed, Err: err}
			errs = append(errs, err)
		}
	}

	wg.Wait()

	return results, errors.Join(errs...)
}

// admit selects the flows to run and holds the guard for each of them.
// Traversal contexts derive from parent.
func (e *Engine) admit(ctx, parent context.Context, eventType string, execCtx models.ExecutionContext) ([]*admission, error) {
	if e.baseCtx.Err() != nil {
		return nil, ErrEngineClosed
	}

	subjectKey := execCtx.SubjectKey()
	if subjectKey == "" {
		return nil, ErrMissingSubject
	}

	flows, err := e.flows.ActiveFlows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active flows: %w", err)
	}

	logger := e.logger.With("event_type", eventType, "subject_key", subjectKey)

	var admitted []*admission

	for _, match := range MatchFlows(eventType, execCtx, flows) {
		flow := match.Flow

		err := e.checkRecent(ctx, flow.ID, subjectKey, eventType)
		if errors.Is(err, ErrDuplicateSuppressed) {
			logger.DebugContext(ctx, "flow skipped", "flow_id", flow.ID, "reason", err)

			continue
		}

		if err != nil {
			logger.ErrorContext(ctx, "failed to check recent executions", "flow_id", flow.ID, "error", err)

			for _, a := range admitted {
				a.release()
			}

			return nil, err
		}

		traversalCtx, release, ok := e.guard.Acquire(parent, flow.ID, subjectKey)
		if !ok {
			logger.DebugContext(ctx, "flow skipped", "flow_id", flow.ID, "reason", ErrDuplicateSuppressed)

			continue
		}

		admitted = append(admitted, &admission{flow: flow, ctx: traversalCtx, release: release})
	}

	logger.InfoContext(ctx, "event processed", "active_flows", len(flows), "admitted", len(admitted))

	return admitted, nil
}

func (e *Engine) checkRecent(ctx context.Context, flowID, subjectKey, eventType string) error {
	if e.config.SuppressionWindow <= 0 {
		return nil
	}

	since := e.config.Now().Add(-e.config.SuppressionWindow)

	found, err := e.logs.logs.HasRecentSuccess(ctx, flowID, subjectKey, eventType, since)
	if err != nil {
		return fmt.Errorf("failed to check recent executions: %w", err)
	}

	if found {
		return ErrDuplicateSuppressed
	}

	return nil
}

// submit runs a traversal on the pool. The admission's guard is released
// when the traversal ends, and also when submission fails.
func (e *Engine) submit(a *admission, walk func(context.Context) TraversalResult, done func(TraversalResult)) error {
	e.wg.Add(1)

	err := e.pool.Submit(func() {
		defer e.wg.Done()
		defer a.release()

		result := walk(a.ctx)
		e.finish(a.ctx, result)

		if done != nil {
			done(result)
		}
	})
	if err != nil {
		e.wg.Done()
		a.release()

		return fmt.Errorf("failed to start traversal of flow %s: %w", a.flow.ID, err)
	}

	return nil
}

func (e *Engine) finish(ctx context.Context, result TraversalResult) {
	attrs := []any{
		"flow_id", result.FlowID,
		"subject_key", result.SubjectKey,
		"status", result.Status,
		"nodes_executed", result.NodesExecuted,
		"last_node_id", result.LastNodeID,
	}

	if result.Err != nil {
		e.logger.WarnContext(ctx, "traversal ended", append(attrs, "error", result.Err)...)
	} else {
		e.logger.InfoContext(ctx, "traversal ended", attrs...)
	}

	if e.publisher == nil {
		return
	}

	event := events.NewTraversalFinished(result.FlowID, result.SubjectKey, result.EventType, string(result.Status))
	event.NodesExecuted = result.NodesExecuted
	event.LastNodeID = result.LastNodeID

	if result.Err != nil {
		event.Error = result.Err.Error()
	}

	err := e.publisher.Publish(context.WithoutCancel(ctx), result.FlowID, event)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to publish traversal finished event", "flow_id", result.FlowID, "error", err)
	}
}

// HandleDomainEvent adapts TriggerEvent to an event bus handler. Errors
// other than a missing subject are returned so the bus redelivers the event.
func (e *Engine) HandleDomainEvent(ctx context.Context, event any) error {
	domainEvent, ok := event.(*events.DomainEvent)
	if !ok {
		e.logger.ErrorContext(ctx, "unexpected event on the domain topic", "event", fmt.Sprintf("%T", event))

		return nil
	}

	err := e.TriggerEvent(ctx, domainEvent.EventType, domainEvent.ExecutionContext())
	if errors.Is(err, ErrMissingSubject) {
		// Redelivery cannot fix it.
		e.logger.ErrorContext(ctx, "dropping domain event", "event_id", domainEvent.ID, "event_type", domainEvent.EventType, "error", err)

		return nil
	}

	return err
}

// Cancel ends the in-flight traversal of flowID for subjectKey.
func (e *Engine) Cancel(flowID, subjectKey string) bool {
	return e.guard.Cancel(flowID, subjectKey)
}

// InFlight returns the number of running traversals.
func (e *Engine) InFlight() int {
	return e.guard.InFlight()
}

// Stats returns a flow's aggregate execution counters.
func (e *Engine) Stats(ctx context.Context, flowID string) (models.FlowStats, error) {
	return e.logs.Stats(ctx, flowID)
}

// Activate validates a flow's graph and marks it runnable. An invalid graph
// returns a *models.ConfigurationError and leaves the flow untouched.
func (e *Engine) Activate(ctx context.Context, flowID string) (*models.Flow, error) {
	flow, err := e.flows.FlowByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	err = models.ValidateGraph(flow)
	if err != nil {
		return nil, err
	}

	now := e.config.Now().UTC()
	flow.IsActive = true
	flow.IsDraft = false
	flow.ActivatedAt = &now
	flow.UpdatedAt = now

	err = e.flows.SaveFlow(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to activate flow %s: %w", flowID, err)
	}

	e.publish(ctx, flowID, events.NewFlowActivated(flowID))
	e.logger.InfoContext(ctx, "flow activated", "flow_id", flowID)

	return flow, nil
}

// Deactivate stops new traversals of a flow. Running traversals and parked
// checkpoints are not touched; checkpoints are dropped when they come due.
func (e *Engine) Deactivate(ctx context.Context, flowID string) (*models.Flow, error) {
	flow, err := e.flows.FlowByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	flow.IsActive = false
	flow.UpdatedAt = e.config.Now().UTC()

	err = e.flows.SaveFlow(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate flow %s: %w", flowID, err)
	}

	e.publish(ctx, flowID, events.NewFlowDeactivated(flowID))
	e.logger.InfoContext(ctx, "flow deactivated", "flow_id", flowID)

	return flow, nil
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	err := e.publisher.Publish(ctx, key, event)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

// Start schedules the resume sweep. Without a checkpoint store it is a no-op.
func (e *Engine) Start() error {
	if e.resumer == nil {
		return nil
	}

	return e.resumer.Start()
}

// ResumeDue runs one resume sweep immediately and returns how many
// traversals it started.
func (e *Engine) ResumeDue(ctx context.Context) (int, error) {
	if e.resumer == nil {
		return 0, nil
	}

	return e.resumer.Sweep(ctx)
}

// Wait blocks until every submitted traversal has ended.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close stops the resume sweep, cancels running traversals and waits for
// them to record their outcome.
func (e *Engine) Close() {
	if e.resumer != nil {
		<-e.resumer.Stop().Done()
	}

	e.stop()
	e.wg.Wait()
	e.pool.Release()
}
