// Package delay provides the delay node executor.
//
// Short delays are waited out in process. Anything at or above the
// threshold suspends the traversal: the walker persists a checkpoint and the
// resume sweep picks it up once it is due.
package delay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/protocol"
)

// DefaultShortDelayThreshold is the longest delay held in memory.
const DefaultShortDelayThreshold = 5 * time.Minute

var ErrMissingConfig = errors.New("delay node has no configuration")

type Executor struct {
	threshold time.Duration
	now       func() time.Time
}

var _ protocol.NodeExecutor = (*Executor)(nil)

// NewExecutor builds a delay executor. A zero threshold means every delay
// is waited in process; a nil clock uses time.Now.
func NewExecutor(threshold time.Duration, now func() time.Time) *Executor {
	if now == nil {
		now = time.Now
	}

	return &Executor{threshold: threshold, now: now}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeDelay
}

func (e *Executor) Execute(ctx context.Context, step *protocol.Step) (protocol.Outcome, error) {
	cfg := step.Node.Delay
	if cfg == nil {
		return protocol.Outcome{}, ErrMissingConfig
	}

	duration, err := cfg.Duration()
	if err != nil {
		return protocol.Outcome{}, fmt.Errorf("invalid delay: %w", err)
	}

	if duration <= 0 {
		return protocol.Outcome{}, nil
	}

	if e.threshold > 0 && duration >= e.threshold {
		resumeAt := e.now().Add(duration)

		return protocol.Outcome{Suspend: &resumeAt}, nil
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return protocol.Outcome{}, nil
	case <-ctx.Done():
		return protocol.Outcome{}, fmt.Errorf("delay interrupted: %w", ctx.Err())
	}
}
