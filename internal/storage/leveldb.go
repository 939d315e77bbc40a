package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"

	"sushiBar/internal/model"
)

var snapshotKey = []byte("sushibar/snapshot")

// LevelStateStore keeps the snapshot in a LevelDB database.
type LevelStateStore struct {
	db *leveldb.DB
}

// NewLevelStateStore opens or creates a LevelDB database at path.
func NewLevelStateStore(path string) (*LevelStateStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &LevelStateStore{db: db}, nil
}

// NewMemLevelStateStore returns a store backed by in-memory LevelDB storage.
func NewMemLevelStateStore() (*LevelStateStore, error) {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &LevelStateStore{db: db}, nil
}

func (s *LevelStateStore) Load(ctx context.Context) (model.Snapshot, bool, error) {
	data, err := s.db.Get(snapshotKey, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, fmt.Errorf("read state: %w", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("parse state: %w", err)
	}
	return snap, true, nil
}

func (s *LevelStateStore) Save(ctx context.Context, snap model.Snapshot) error {
	snap.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.db.Put(snapshotKey, data, nil); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

func (s *LevelStateStore) Close() error {
	return s.db.Close()
}
