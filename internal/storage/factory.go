// Package storage selects and constructs the persistence backend.
package storage

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/storage/postgres"
	"github.com/bobmcallan/tally/internal/storage/surrealdb"
)

// NewManager creates the storage manager for the configured backend.
// Supported backends: "postgres" (default), "surrealdb".
func NewManager(ctx context.Context, logger arbor.ILogger, config *common.StorageConfig) (interfaces.StorageManager, error) {
	backend := config.Backend
	if backend == "" {
		backend = common.BackendPostgres
	}

	switch backend {
	case common.BackendPostgres:
		m, err := postgres.NewManager(ctx, logger, &config.Postgres)
		if err != nil {
			return nil, err
		}
		return m, nil

	case common.BackendSurrealDB:
		m, err := surrealdb.NewManager(ctx, logger, &config.SurrealDB)
		if err != nil {
			return nil, err
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: postgres, surrealdb)", backend)
	}
}
