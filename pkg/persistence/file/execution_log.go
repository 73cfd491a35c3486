package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dukex/marketflow/pkg/models"
)

const (
	logsDir  = "logs"
	statsDir = "stats"
)

// executionLogRepository appends logs as JSON lines in logs/<flow>.jsonl and
// keeps the flow's counters in stats/<flow>.json.
type executionLogRepository struct {
	fp *Persistence
}

func (r *executionLogRepository) Append(_ context.Context, log *models.ExecutionLog) error {
	err := validateID(log.FlowID)
	if err != nil {
		return fmt.Errorf("failed to append execution log: %w", err)
	}

	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	err = os.MkdirAll(r.fp.dir(logsDir), 0750)
	if err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	line, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to marshal execution log %s: %w", log.ID, err)
	}

	file, err := os.OpenFile(r.fp.path(logsDir, log.FlowID, ".jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open execution log for flow %s: %w", log.FlowID, err)
	}

	_, err = file.Write(append(line, '\n'))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("failed to write execution log %s: %w", log.ID, err)
	}

	stats, err := r.readStats(log.FlowID)
	if err != nil {
		return err
	}

	stats.Apply(log)

	return r.fp.writeJSON(statsDir, log.FlowID, stats)
}

func (r *executionLogRepository) HasRecentSuccess(_ context.Context, flowID, subjectKey, eventType string, since time.Time) (bool, error) {
	found := false

	err := r.scan(flowID, func(log *models.ExecutionLog) bool {
		if log.SubjectKey == subjectKey &&
			log.EventType == eventType &&
			log.Status == models.LogStatusSuccess &&
			!log.ExecutedAt.Before(since) {
			found = true

			return false
		}

		return true
	})

	return found, err
}

func (r *executionLogRepository) Stats(_ context.Context, flowID string) (models.FlowStats, error) {
	err := validateID(flowID)
	if err != nil {
		return models.FlowStats{}, err
	}

	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	return r.readStats(flowID)
}

func (r *executionLogRepository) LogsByFlow(_ context.Context, flowID string, limit int) ([]*models.ExecutionLog, error) {
	var logs []*models.ExecutionLog

	err := r.scan(flowID, func(log *models.ExecutionLog) bool {
		logs = append(logs, log)

		return true
	})
	if err != nil {
		return nil, err
	}

	slices.Reverse(logs)

	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}

	return logs, nil
}

// readStats loads the counters of a flow. Callers hold the lock.
func (r *executionLogRepository) readStats(flowID string) (models.FlowStats, error) {
	var stats models.FlowStats

	err := r.fp.readJSON(statsDir, flowID, &stats)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return models.FlowStats{}, fmt.Errorf("failed to read stats for flow %s: %w", flowID, err)
	}

	return stats, nil
}

// scan calls fn for every log of the flow in append order until fn returns false.
func (r *executionLogRepository) scan(flowID string, fn func(*models.ExecutionLog) bool) error {
	err := validateID(flowID)
	if err != nil {
		return err
	}

	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	file, err := os.Open(filepath.Clean(r.fp.path(logsDir, flowID, ".jsonl")))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to open execution log for flow %s: %w", flowID, err)
	}

	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var log models.ExecutionLog

		err := json.Unmarshal(scanner.Bytes(), &log)
		if err != nil {
			return fmt.Errorf("failed to decode execution log for flow %s: %w", flowID, err)
		}

		if !fn(&log) {
			return nil
		}
	}

	return scanner.Err()
}
