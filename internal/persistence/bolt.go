package persistence

import (
	"context"
	"errors"
	"time"

	bolt "github.com/boltdb/bolt"
	"go.uber.org/zap"

	"github.com/spec-kit/display-support/internal/config"
)

// Bolt wraps an embedded BoltDB file used when no postgres DSN is configured.
type Bolt struct {
	DB *bolt.DB
}

// NewBolt opens (or creates) the database file. The file lock is held until Close.
func NewBolt(cfg config.StoreConfig, logger *zap.Logger) (*Bolt, error) {
	db, err := bolt.Open(cfg.BoltPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	logger.Info("opened bolt store", zap.String("path", cfg.BoltPath))
	return &Bolt{DB: db}, nil
}

// Close releases the database file lock.
func (b *Bolt) Close() {
	if b != nil && b.DB != nil {
		_ = b.DB.Close()
	}
}

// Ping runs an empty read transaction.
func (b *Bolt) Ping(_ context.Context) error {
	if b == nil || b.DB == nil {
		return errors.New("bolt store not open")
	}
	return b.DB.View(func(*bolt.Tx) error { return nil })
}
