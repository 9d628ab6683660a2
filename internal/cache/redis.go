package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus88/Simple-PFT-Node/internal/constants"
	"github.com/prometheus88/Simple-PFT-Node/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Cache keeps a rolling list of recent responses and the live node status
// in redis so the HTTP API can serve them from any process.
type Cache struct {
	client redis.Cmdable
	closer io.Closer
	logger *logrus.Logger
}

// NewCache connects to redis at the given address.
func NewCache(ctx context.Context, addr string, logger *logrus.Logger) (*Cache, error) {
	if logger == nil {
		logger = logrus.New()
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache redis ping: %w", err)
	}

	logger.WithField("addr", addr).Info("connected to redis cache")
	return &Cache{client: client, closer: client, logger: logger}, nil
}

// NewCacheFromClient wraps an existing redis client.
func NewCacheFromClient(client redis.Cmdable) (*Cache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Cache{client: client, logger: logrus.New()}, nil
}

// AddRecentResponse pushes a response onto the recent list, trimming it to
// the configured window.
func (c *Cache) AddRecentResponse(ctx context.Context, rec *models.ResponseRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal response record: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, constants.RedisKeyRecentResponses, b)
	pipe.LTrim(ctx, constants.RedisKeyRecentResponses, 0, constants.MaxRecentResponses-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push recent response: %w", err)
	}

	return nil
}

// GetRecentResponses returns up to limit responses, newest first.
func (c *Cache) GetRecentResponses(ctx context.Context, limit int) ([]*models.ResponseRecord, error) {
	if limit <= 0 || limit > constants.MaxRecentResponses {
		limit = constants.MaxRecentResponses
	}

	vals, err := c.client.LRange(ctx, constants.RedisKeyRecentResponses, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent responses: %w", err)
	}

	out := make([]*models.ResponseRecord, 0, len(vals))
	for _, v := range vals {
		var rec models.ResponseRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			c.logger.WithError(err).Warn("skipping malformed cached response")
			continue
		}
		out = append(out, &rec)
	}

	return out, nil
}

// SetNodeStatus stores the live status snapshot.
func (c *Cache) SetNodeStatus(ctx context.Context, status *models.NodeStatus) error {
	b, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal node status: %w", err)
	}

	if err := c.client.Set(ctx, constants.RedisKeyNodeStatus, b, 0).Err(); err != nil {
		return fmt.Errorf("set node status: %w", err)
	}
	return nil
}

// GetNodeStatus returns the last published status, or nil when the node has
// never written one.
func (c *Cache) GetNodeStatus(ctx context.Context) (*models.NodeStatus, error) {
	val, err := c.client.Get(ctx, constants.RedisKeyNodeStatus).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get node status: %w", err)
	}

	var status models.NodeStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return nil, fmt.Errorf("unmarshal node status: %w", err)
	}
	return &status, nil
}

func (c *Cache) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
