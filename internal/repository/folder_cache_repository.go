package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
)

const folderKeyPrefix = "ipcr:archive:folder:"

// FolderCacheRepository remembers resolved archive folder ids in Redis.
// A nil client turns every lookup into a miss.
type FolderCacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewFolderCacheRepository constructs a cache repository.
func NewFolderCacheRepository(client *redis.Client, logger *zap.Logger) *FolderCacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FolderCacheRepository{client: client, logger: logger}
}

// FolderKey builds the cache key for an owner's folder path.
func FolderKey(ownerID, path string) string {
	return folderKeyPrefix + ownerID + ":" + path
}

// Get returns the cached folder id or appErrors.ErrCacheMiss.
func (r *FolderCacheRepository) Get(ctx context.Context, key string) (string, error) {
	if r.client == nil {
		return "", appErrors.ErrCacheMiss
	}
	id, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", appErrors.ErrCacheMiss
		}
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return id, nil
}

// Set stores the folder id with the given TTL.
func (r *FolderCacheRepository) Set(ctx context.Context, key, folderID string, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Set(ctx, key, folderID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete evicts a cached folder id.
func (r *FolderCacheRepository) Delete(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *FolderCacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
