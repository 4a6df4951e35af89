package container

import (
	"context"
	"fmt"

	"github.com/carverlane/archivist/server/config"
	"github.com/carverlane/archivist/server/elastic"
	"github.com/carverlane/archivist/server/storage"
	"github.com/carverlane/archivist/server/tasks"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Container struct {
	Config   *config.Config
	Postgres *storage.Postgres
	Elastic  *elastic.Elastic
	Redis    *storage.Redis
	S3       *storage.S3

	// Worker is attached after construction so services can enqueue
	// background jobs without importing the worker package.
	Worker tasks.Client
}

func NewContainer(cfg *config.Config) (*Container, error) {
	// Initialize postgres client
	postgresClient, err := storage.NewPostgres(cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	// Initialize elastic client
	elasticClient, err := elastic.NewElastic(elasticsearch.Config{
		Addresses:    []string{cfg.ElasticsearchURL},
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize elastic: %w", err)
	}

	// Initialize redis client
	redisClient, err := storage.NewRedis(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDatabase,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize s3 client
	s3Client, err := storage.NewS3(context.Background(), &storage.S3Config{
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		Region:          cfg.S3Region,
		SecretAccessKey: cfg.S3SecretAccessKey,
		UseSSL:          cfg.S3UseSSL,
		Bucket:          cfg.S3Bucket,
		CreateBucket:    cfg.S3CreateBucket,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize s3: %w", err)
	}

	return &Container{
		Config:   cfg,
		Postgres: postgresClient,
		Elastic:  elasticClient,
		Redis:    redisClient,
		S3:       s3Client,
	}, nil
}

// Migrate applies the relational schema and creates the search indexes.
func (c *Container) Migrate(ctx context.Context) error {
	if err := c.Postgres.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate postgres: %w", err)
	}

	if err := c.Elastic.Migrate(ctx, c.Config.ElasticsearchIndexPrefix); err != nil {
		return fmt.Errorf("failed to migrate elastic: %w", err)
	}

	return nil
}

// Close gracefully shuts down all container resources
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close redis connection")
		}
	}

	if c.Postgres != nil {
		c.Postgres.Close()
	}
}
