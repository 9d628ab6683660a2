package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus88/Simple-PFT-Node/internal/constants"
	"github.com/prometheus88/Simple-PFT-Node/internal/models"

	"github.com/redis/go-redis/v9"
)

const indexKey = constants.RedisKeyDedupPrefix + "index"

// RedisStore persists the response ledger in redis. Records live under
// dedup:<signature> with a set index for membership checks.
type RedisStore struct {
	client redis.Cmdable
	closer io.Closer
}

func NewRedisStore(client redis.Cmdable) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) AlreadyAnswered(ctx context.Context, signature string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, indexKey, signature).Result()
	if err != nil {
		return false, fmt.Errorf("dedup membership check: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Record(ctx context.Context, rec *models.ResponseRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal response record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, recordKey(rec.RequestSignature), b, 0)
	pipe.SAdd(ctx, indexKey, rec.RequestSignature)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record response: %w", err)
	}

	return nil
}

// GetRecord returns the stored record for an answered signature.
func (s *RedisStore) GetRecord(ctx context.Context, signature string) (*models.ResponseRecord, error) {
	val, err := s.client.Get(ctx, recordKey(signature)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get response record: %w", err)
	}

	var rec models.ResponseRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal response record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("dedup index size: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func recordKey(signature string) string {
	return constants.RedisKeyDedupPrefix + signature
}
