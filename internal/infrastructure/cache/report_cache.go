package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
	"github.com/davidleathers/workflow-insights-backend/internal/service/reporting"
)

// KeyPrefix namespaces report entries
const KeyPrefix = "report:"

// ReportCache stores serialized report documents under report:<account_id>
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ reporting.Cache = (*ReportCache)(nil)

// NewReportCache creates a report cache. A zero ttl keeps entries forever.
func NewReportCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) (*ReportCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("ttl cannot be negative")
	}
	return &ReportCache{client: client, ttl: ttl, logger: logger}, nil
}

// Key returns the cache key of an account's report
func Key(accountID uuid.UUID) string {
	return KeyPrefix + accountID.String()
}

// Get returns a not-found error on a miss
func (c *ReportCache) Get(ctx context.Context, accountID uuid.UUID) (*reporting.Document, error) {
	key := Key(accountID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, errors.NewNotFoundError("cached report")
	}
	if err != nil {
		c.logger.Error("redis get failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var doc reporting.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		c.logger.Error("json unmarshal failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("json unmarshal failed: %w", err)
	}
	return &doc, nil
}

// Set stores doc with the configured ttl
func (c *ReportCache) Set(ctx context.Context, doc *reporting.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}

	key := Key(doc.AccountID)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Error("redis set failed",
			zap.String("key", key),
			zap.Duration("ttl", c.ttl),
			zap.Error(err))
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate drops an account's cached report
func (c *ReportCache) Invalidate(ctx context.Context, accountID uuid.UUID) error {
	if err := c.client.Del(ctx, Key(accountID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Ping checks the connection
func (c *ReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (c *ReportCache) Close() error {
	if err := c.client.Close(); err != nil {
		c.logger.Error("redis close failed", zap.Error(err))
		return fmt.Errorf("redis close failed: %w", err)
	}
	return nil
}
