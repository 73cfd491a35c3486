package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dukex/marketflow/pkg/models"
)

const checkpointsDir = "checkpoints"

type checkpointRepository struct {
	fp *Persistence
}

func (r *checkpointRepository) Save(_ context.Context, checkpoint *models.Checkpoint) error {
	err := validateID(checkpoint.ID)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	return r.fp.writeJSON(checkpointsDir, checkpoint.ID, checkpoint)
}

func (r *checkpointRepository) Due(_ context.Context, now time.Time, limit int) ([]*models.Checkpoint, error) {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	ids, err := r.fp.ids(checkpointsDir)
	if err != nil {
		return nil, err
	}

	var due []*models.Checkpoint

	for _, id := range ids {
		var checkpoint models.Checkpoint

		err := r.fp.readJSON(checkpointsDir, id, &checkpoint)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err != nil {
			return nil, err
		}

		if checkpoint.IsDue(now) {
			due = append(due, &checkpoint)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ResumeAt.Before(due[j].ResumeAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (r *checkpointRepository) Delete(_ context.Context, id string) (bool, error) {
	err := validateID(id)
	if err != nil {
		return false, err
	}

	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	err = os.Remove(r.fp.path(checkpointsDir, id, ".json"))
	if os.IsNotExist(err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to delete checkpoint %s: %w", id, err)
	}

	return true, nil
}
