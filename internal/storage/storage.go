package storage

import (
	"context"

	"sushiBar/internal/model"
)

// Storage defines a sink for log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// StateStore persists vault snapshots between runs.
type StateStore interface {
	Load(ctx context.Context) (model.Snapshot, bool, error)
	Save(ctx context.Context, snap model.Snapshot) error
	Close() error
}
