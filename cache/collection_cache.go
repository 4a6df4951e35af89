package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/carverlane/archivist/server/container"
	"github.com/carverlane/archivist/server/models"
	"github.com/redis/go-redis/v9"
)

type CollectionCache struct {
	container *container.Container
}

func NewCollectionCache(container *container.Container) *CollectionCache {
	return &CollectionCache{
		container: container,
	}
}

// Insert adds a collection to the Redis cache
func (c *CollectionCache) Insert(ctx context.Context, collection *models.Collection) error {
	// Store the collection hash
	hashKey := fmt.Sprintf("collection:%d", collection.ID)

	fields := collection.ToCacheFields()

	if err := c.container.Redis.Client.HSet(ctx, hashKey, fields).Err(); err != nil {
		return fmt.Errorf("failed to insert collection into redis: %w", err)
	}

	// Point the public identifier at the hash
	uuidKey := fmt.Sprintf("collection_uuid:%s", collection.UUID)

	if err := c.container.Redis.Client.Set(ctx, uuidKey, collection.ID, 0).Err(); err != nil {
		return fmt.Errorf("failed to insert collection uuid pointer into redis: %w", err)
	}

	return nil
}

// GetByUUID retrieves a collection by its public identifier. A cache miss
// returns nil without an error so callers can fall back to the database.
func (c *CollectionCache) GetByUUID(ctx context.Context, uuid string) (*models.Collection, error) {
	uuidKey := fmt.Sprintf("collection_uuid:%s", uuid)

	idStr, err := c.container.Redis.Client.Get(ctx, uuidKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve collection uuid from redis: %w", err)
	}

	hashKey := fmt.Sprintf("collection:%s", idStr)

	fields, err := c.container.Redis.Client.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get collection from redis: %w", err)
	}

	if len(fields) == 0 {
		// Stale pointer without a hash counts as a miss
		return nil, nil
	}

	return mapToCollection(fields)
}

// Delete removes a collection from the cache
func (c *CollectionCache) Delete(ctx context.Context, collection *models.Collection) error {
	hashKey := fmt.Sprintf("collection:%d", collection.ID)
	if err := c.container.Redis.Client.Del(ctx, hashKey).Err(); err != nil {
		return fmt.Errorf("failed to delete collection hash from redis: %w", err)
	}

	uuidKey := fmt.Sprintf("collection_uuid:%s", collection.UUID)
	if err := c.container.Redis.Client.Del(ctx, uuidKey).Err(); err != nil {
		return fmt.Errorf("failed to delete collection uuid pointer from redis: %w", err)
	}

	return nil
}

// Helper function to convert Redis hash map to Collection
func mapToCollection(fields map[string]string) (*models.Collection, error) {
	collection := &models.Collection{}

	// Parse required fields
	idStr, ok := fields["id"]
	if !ok {
		return nil, fmt.Errorf("missing id field in redis hash")
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid id value in redis hash: %w", err)
	}
	collection.ID = id

	collection.UUID = fields["uuid"]
	collection.Name = fields["name"]

	// Parse timestamps
	if createdAtStr, ok := fields["created_at"]; ok && createdAtStr != "" {
		createdAt, err := time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at value in redis hash: %w", err)
		}
		collection.CreatedAt = createdAt
	}

	if updatedAtStr, ok := fields["updated_at"]; ok && updatedAtStr != "" {
		updatedAt, err := time.Parse(time.RFC3339, updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("invalid updated_at value in redis hash: %w", err)
		}
		collection.UpdatedAt = updatedAt
	}

	return collection, nil
}
