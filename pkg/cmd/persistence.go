package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/marketflow/pkg/persistence"
	"github.com/dukex/marketflow/pkg/persistence/file"
	"github.com/dukex/marketflow/pkg/persistence/memory"
	"github.com/dukex/marketflow/pkg/persistence/postgresql"
	"github.com/dukex/marketflow/pkg/persistence/redis"
	"github.com/dukex/marketflow/pkg/protocol"
)

var supportedPersistenceProviders = []string{"memory", "file", "postgres", "postgresql"}

// Stores bundles a storage back-end with the platform collaborators it can
// serve. Directory and Promotions are nil for back-ends without customer data.
type Stores struct {
	Persistence persistence.Persistence
	Directory   protocol.Directory
	Promotions  protocol.Promotions
	Templates   protocol.TemplateStore
}

// NewStores opens the back-end named by databaseURL's scheme. A URL without
// a known scheme is treated as a file persistence root.
func NewStores(ctx context.Context, databaseURL string, logger *slog.Logger) (*Stores, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "memory":
		directory := memory.NewDirectory()

		return &Stores{
			Persistence: memory.NewPersistence(),
			Directory:   directory,
			Promotions:  directory,
			Templates:   directory,
		}, nil
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return &Stores{
			Persistence: p,
			Directory:   p.Directory(),
			Promotions:  p.Directory(),
			Templates:   p.Directory(),
		}, nil
	default:
		fp := file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))

		return &Stores{Persistence: fp, Templates: fp}, nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}

// NewCheckpointStore returns the checkpoint queue: the persistence's own
// ("database") or a Redis sorted set ("redis"). The returned close function
// releases what this call opened.
func NewCheckpointStore(
	ctx context.Context,
	kind, redisURL string,
	p persistence.Persistence,
	logger *slog.Logger,
) (persistence.CheckpointRepository, func() error, error) {
	switch kind {
	case "", "database":
		return p.Checkpoints(), func() error { return nil }, nil
	case "redis":
		store, err := redis.NewCheckpointStoreFromURL(ctx, redisURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open redis checkpoint store: %w", err)
		}

		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported checkpoint store %q", kind)
	}
}
