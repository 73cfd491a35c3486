// Package redis provides a Redis-backed checkpoint queue for traversals parked on long delays.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/persistence"
	rd "github.com/redis/go-redis/v9"
)

const defaultNamespace = "marketflow"

// CheckpointStore keeps checkpoint ids in a sorted set scored by their
// resume time in milliseconds, and each checkpoint body under its own key.
// Removing the id from the sorted set is the claim.
type CheckpointStore struct {
	client    rd.UniversalClient
	namespace string
	logger    *slog.Logger
}

var _ persistence.CheckpointRepository = (*CheckpointStore)(nil)

// NewCheckpointStore wraps an existing client.
func NewCheckpointStore(client rd.UniversalClient, namespace string, logger *slog.Logger) *CheckpointStore {
	if namespace == "" {
		namespace = defaultNamespace
	}

	return &CheckpointStore{
		client:    client,
		namespace: namespace,
		logger:    logger.With("module", "redis_checkpoints"),
	}
}

// NewCheckpointStoreFromURL connects to the redis server at url (redis://host:port/db).
func NewCheckpointStoreFromURL(ctx context.Context, url string, logger *slog.Logger) (*CheckpointStore, error) {
	options, err := rd.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := rd.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewCheckpointStore(client, defaultNamespace, logger), nil
}

func (s *CheckpointStore) key(args ...string) string {
	return fmt.Sprintf("%s:%s", s.namespace, strings.Join(args, ":"))
}

func (s *CheckpointStore) queueKey() string {
	return s.key("checkpoints")
}

func (s *CheckpointStore) Save(ctx context.Context, checkpoint *models.Checkpoint) error {
	body, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint %s: %w", checkpoint.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key("checkpoint", checkpoint.ID), body, 0)
	pipe.ZAdd(ctx, s.queueKey(), rd.Z{
		Score:  float64(checkpoint.ResumeAt.UnixMilli()),
		Member: checkpoint.ID,
	})

	_, err = pipe.Exec(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "error while pushing checkpoint", "checkpoint_id", checkpoint.ID, "error", err)

		return fmt.Errorf("failed to save checkpoint %s: %w", checkpoint.ID, err)
	}

	return nil
}

func (s *CheckpointStore) Due(ctx context.Context, now time.Time, limit int) ([]*models.Checkpoint, error) {
	opt := &rd.ZRangeBy{
		Min: strconv.Itoa(0),
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}

	ids, err := s.client.ZRangeByScore(ctx, s.queueKey(), opt).Result()
	if err != nil && !errors.Is(err, rd.Nil) {
		return nil, fmt.Errorf("failed to read due checkpoints: %w", err)
	}

	if len(ids) == 0 {
		return []*models.Checkpoint{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key("checkpoint", id)
	}

	bodies, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoints: %w", err)
	}

	checkpoints := make([]*models.Checkpoint, 0, len(bodies))

	for i, body := range bodies {
		raw, ok := body.(string)
		if !ok {
			// Claimed by another sweep between the range and the read.
			s.logger.DebugContext(ctx, "checkpoint body missing", "checkpoint_id", ids[i])

			continue
		}

		var checkpoint models.Checkpoint

		err := json.Unmarshal([]byte(raw), &checkpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint %s: %w", ids[i], err)
		}

		checkpoints = append(checkpoints, &checkpoint)
	}

	return checkpoints, nil
}

func (s *CheckpointStore) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := s.client.ZRem(ctx, s.queueKey(), id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim checkpoint %s: %w", id, err)
	}

	err = s.client.Del(ctx, s.key("checkpoint", id)).Err()
	if err != nil {
		s.logger.WarnContext(ctx, "failed to delete checkpoint body", "checkpoint_id", id, "error", err)
	}

	return removed > 0, nil
}

// Close closes the underlying client.
func (s *CheckpointStore) Close() error {
	return s.client.Close()
}
