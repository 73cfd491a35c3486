// Package memory provides an in-process persistence implementation used by tests and the memory:// URL.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/persistence"
)

// Persistence keeps flows, logs and checkpoints in maps behind one lock.
type Persistence struct {
	mu          sync.RWMutex
	flows       map[string]*models.Flow
	logs        []*models.ExecutionLog
	stats       map[string]models.FlowStats
	checkpoints map[string]*models.Checkpoint
}

// NewPersistence returns an empty store.
func NewPersistence() *Persistence {
	return &Persistence{
		flows:       make(map[string]*models.Flow),
		stats:       make(map[string]models.FlowStats),
		checkpoints: make(map[string]*models.Checkpoint),
	}
}

func (p *Persistence) ExecutionLogs() persistence.ExecutionLogRepository {
	return p
}

func (p *Persistence) Checkpoints() persistence.CheckpointRepository {
	return &checkpointRepository{p}
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) Flows(_ context.Context) ([]*models.Flow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	flows := make([]*models.Flow, 0, len(p.flows))
	for _, flow := range p.flows {
		flows = append(flows, p.snapshot(flow))
	}

	sortFlows(flows)

	return flows, nil
}

func (p *Persistence) ActiveFlows(ctx context.Context) ([]*models.Flow, error) {
	flows, err := p.Flows(ctx)
	if err != nil {
		return nil, err
	}

	return slices.DeleteFunc(flows, func(f *models.Flow) bool { return !f.IsRunnable() }), nil
}

func (p *Persistence) FlowByID(_ context.Context, id string) (*models.Flow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	flow, ok := p.flows[id]
	if !ok {
		return nil, persistence.NewFlowError("FlowByID", id, persistence.ErrFlowNotFound)
	}

	return p.snapshot(flow), nil
}

func (p *Persistence) SaveFlow(_ context.Context, flow *models.Flow) error {
	if flow.ID == "" {
		return persistence.NewFlowError("SaveFlow", flow.ID, persistence.ErrInvalidID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now().UTC()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	stored := *flow
	p.flows[flow.ID] = &stored

	return nil
}

func (p *Persistence) DeleteFlow(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.flows, id)

	return nil
}

func (p *Persistence) Append(_ context.Context, log *models.ExecutionLog) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := *log
	p.logs = append(p.logs, &stored)

	stats := p.stats[log.FlowID]
	stats.Apply(log)
	p.stats[log.FlowID] = stats

	return nil
}

func (p *Persistence) HasRecentSuccess(_ context.Context, flowID, subjectKey, eventType string, since time.Time) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, log := range p.logs {
		if log.FlowID == flowID &&
			log.SubjectKey == subjectKey &&
			log.EventType == eventType &&
			log.Status == models.LogStatusSuccess &&
			!log.ExecutedAt.Before(since) {
			return true, nil
		}
	}

	return false, nil
}

func (p *Persistence) Stats(_ context.Context, flowID string) (models.FlowStats, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.stats[flowID], nil
}

func (p *Persistence) LogsByFlow(_ context.Context, flowID string, limit int) ([]*models.ExecutionLog, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var logs []*models.ExecutionLog

	for i := len(p.logs) - 1; i >= 0; i-- {
		if p.logs[i].FlowID != flowID {
			continue
		}

		copied := *p.logs[i]
		logs = append(logs, &copied)

		if limit > 0 && len(logs) == limit {
			break
		}
	}

	return logs, nil
}

// snapshot copies a stored flow and attaches its current stats. Callers hold the lock.
func (p *Persistence) snapshot(flow *models.Flow) *models.Flow {
	copied := *flow
	copied.Stats = p.stats[flow.ID]

	return &copied
}

func sortFlows(flows []*models.Flow) {
	slices.SortFunc(flows, func(a, b *models.Flow) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})
}

type checkpointRepository struct {
	p *Persistence
}

func (r *checkpointRepository) Save(_ context.Context, checkpoint *models.Checkpoint) error {
	if checkpoint.ID == "" {
		return persistence.ErrInvalidID
	}

	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	stored := *checkpoint
	stored.Context = checkpoint.Context.Clone()
	stored.Visited = slices.Clone(checkpoint.Visited)
	r.p.checkpoints[checkpoint.ID] = &stored

	return nil
}

func (r *checkpointRepository) Due(_ context.Context, now time.Time, limit int) ([]*models.Checkpoint, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	var due []*models.Checkpoint

	for _, checkpoint := range r.p.checkpoints {
		if checkpoint.IsDue(now) {
			copied := *checkpoint
			due = append(due, &copied)
		}
	}

	slices.SortFunc(due, func(a, b *models.Checkpoint) int {
		return a.ResumeAt.Compare(b.ResumeAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (r *checkpointRepository) Delete(_ context.Context, id string) (bool, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	_, ok := r.p.checkpoints[id]
	delete(r.p.checkpoints, id)

	return ok, nil
}
