package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/persistence"
	"github.com/robfig/cron/v3"
)

// Resumer periodically claims due checkpoints and continues their
// traversals on the engine's pool.
type Resumer struct {
	engine      *Engine
	checkpoints persistence.CheckpointRepository
	schedule    string
	batchSize   int
	logger      *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func NewResumer(
	engine *Engine,
	checkpoints persistence.CheckpointRepository,
	schedule string,
	batchSize int,
	logger *slog.Logger,
) *Resumer {
	return &Resumer{
		engine:      engine,
		checkpoints: checkpoints,
		schedule:    schedule,
		batchSize:   batchSize,
		logger:      logger.With("module", "resumer"),
	}
}

// Start schedules the sweep. Overlapping sweeps are skipped.
func (r *Resumer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return nil
	}

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := c.AddFunc(r.schedule, func() {
		ctx := r.engine.baseCtx

		started, err := r.Sweep(ctx)
		if err != nil {
			r.logger.ErrorContext(ctx, "resume sweep failed", "error", err)

			return
		}

		if started > 0 {
			r.logger.InfoContext(ctx, "resume sweep finished", "resumed", started)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid resume schedule %q: %w", r.schedule, err)
	}

	c.Start()
	r.cron = c

	r.logger.Info("resumer started", "schedule", r.schedule, "batch_size", r.batchSize)

	return nil
}

// Stop unschedules the sweep. The returned context is done once a running
// sweep has returned.
func (r *Resumer) Stop() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		return ctx
	}

	ctx := r.cron.Stop()
	r.cron = nil

	return ctx
}

// Sweep claims up to one batch of due checkpoints and starts their
// traversals. A checkpoint is claimed by deleting it, so a checkpoint seen
// by two sweeps resumes once.
func (r *Resumer) Sweep(ctx context.Context) (int, error) {
	if r.engine.baseCtx.Err() != nil {
		return 0, ErrEngineClosed
	}

	due, err := r.checkpoints.Due(ctx, r.engine.config.Now(), r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load due checkpoints: %w", err)
	}

	var (
		started int
		errs    []error
	)

	for _, checkpoint := range due {
		ok, err := r.resume(ctx, checkpoint)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		if ok {
			started++
		}
	}

	return started, errors.Join(errs...)
}

func (r *Resumer) resume(ctx context.Context, checkpoint *models.Checkpoint) (bool, error) {
	logger := r.logger.With("checkpoint_id", checkpoint.ID, "flow_id", checkpoint.FlowID)

	claimed, err := r.checkpoints.Delete(ctx, checkpoint.ID)
	if err != nil {
		return false, err
	}

	if !claimed {
		logger.DebugContext(ctx, "checkpoint already claimed")

		return false, nil
	}

	flow, err := r.engine.flows.FlowByID(ctx, checkpoint.FlowID)
	if persistence.IsFlowNotFound(err) {
		logger.InfoContext(ctx, "dropping checkpoint of a deleted flow")

		return false, nil
	}

	if err != nil {
		r.restore(ctx, checkpoint)

		return false, fmt.Errorf("failed to load flow of checkpoint %s: %w", checkpoint.ID, err)
	}

	if !flow.IsRunnable() {
		logger.InfoContext(ctx, "dropping checkpoint of an inactive flow")

		return false, nil
	}

	subjectKey := checkpoint.Context.SubjectKey()

	traversalCtx, release, ok := r.engine.guard.Acquire(r.engine.baseCtx, flow.ID, subjectKey)
	if !ok {
		logger.InfoContext(ctx, "subject busy, deferring checkpoint", "subject_key", subjectKey)
		r.restore(ctx, checkpoint)

		return false, nil
	}

	a := &admission{flow: flow, ctx: traversalCtx, release: release}

	err = r.engine.submit(a, func(ctx context.Context) TraversalResult {
		return r.engine.walker.Resume(ctx, flow, checkpoint)
	}, nil)
	if err != nil {
		r.restore(ctx, checkpoint)

		return false, err
	}

	logger.InfoContext(ctx, "traversal resumed", "subject_key", subjectKey, "node_id", checkpoint.NodeID)

	return true, nil
}

// restore puts a claimed checkpoint back so a later sweep picks it up.
func (r *Resumer) restore(ctx context.Context, checkpoint *models.Checkpoint) {
	err := r.checkpoints.Save(context.WithoutCancel(ctx), checkpoint)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to restore checkpoint", "checkpoint_id", checkpoint.ID, "error", err)
	}
}
