package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus88/Simple-PFT-Node/internal/config"
	"github.com/prometheus88/Simple-PFT-Node/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a record does not exist in the store.
var ErrNotFound = errors.New("dedup record not found")

// Store is the response ledger. A signature present in the store has been
// answered and must never be answered again. The monitor loop is the only
// writer during live operation; the history rebuild writes at startup.
type Store interface {
	// AlreadyAnswered reports whether a response was ever sent for the
	// given incoming transaction signature.
	AlreadyAnswered(ctx context.Context, signature string) (bool, error)

	// Record marks an incoming transaction as answered. Recording the
	// same signature twice overwrites and is not an error.
	Record(ctx context.Context, rec *models.ResponseRecord) error

	// Len returns the number of recorded responses.
	Len(ctx context.Context) (int, error)

	Close() error
}

// Open builds the dedup store named by cfg.DedupBackend.
func Open(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (Store, error) {
	if logger == nil {
		logger = logrus.New()
	}

	switch cfg.DedupBackend {
	case "memory":
		logger.Warn("using in-memory dedup store; responses may repeat after a restart")
		return NewMemoryStore(), nil

	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("dedup redis ping: %w", err)
		}
		store, err := NewRedisStore(client)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		store.closer = client
		logger.WithField("addr", cfg.RedisAddr).Info("dedup store: redis")
		return store, nil

	case "pebble":
		store, err := NewPebbleStore(cfg.DedupDir)
		if err != nil {
			return nil, err
		}
		logger.WithField("dir", cfg.DedupDir).Info("dedup store: pebble")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown dedup backend %q", cfg.DedupBackend)
	}
}
