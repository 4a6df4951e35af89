package services

import (
	"context"
	"fmt"

	"github.com/carverlane/archivist/server/cache"
	"github.com/carverlane/archivist/server/container"
	"github.com/carverlane/archivist/server/models"
	"github.com/carverlane/archivist/server/repositories"
	"github.com/rs/zerolog/log"
)

type CollectionService struct {
	container *container.Container
	repo      *repositories.CollectionRepository
	documents *repositories.DocumentRepository
	cache     *cache.CollectionCache
}

func NewCollectionService(container *container.Container) *CollectionService {
	return &CollectionService{
		container: container,
		repo:      repositories.NewCollectionRepository(container),
		documents: repositories.NewDocumentRepository(container),
		cache:     cache.NewCollectionCache(container),
	}
}

func (s *CollectionService) Get(ctx context.Context, uuid string) (*models.Collection, error) {
	return s.repo.GetByUUID(ctx, uuid)
}

func (s *CollectionService) GetAll(ctx context.Context) ([]*models.Collection, error) {
	return s.repo.GetAll(ctx)
}

func (s *CollectionService) Create(ctx context.Context, collection *models.Collection) error {
	if err := s.repo.Create(ctx, collection); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	if err := s.cache.Insert(ctx, collection); err != nil {
		log.Error().Err(err).Msgf("Failed to cache collection %s", collection.UUID)
	}

	return nil
}

// Update renames a collection. Every document in the collection carries the
// name in its search record, so the whole collection is queued for reindexing.
func (s *CollectionService) Update(ctx context.Context, collection *models.Collection) error {
	if err := s.repo.Update(ctx, collection); err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}

	if err := s.cache.Insert(ctx, collection); err != nil {
		log.Error().Err(err).Msgf("Failed to cache collection %s", collection.UUID)
	}

	if err := s.container.Worker.EnqueueReindexCollection(ctx, collection.ID); err != nil {
		log.Error().Err(err).Int64("id", collection.ID).Msg("Error queueing collection reindex after rename")
	}

	return nil
}

func (s *CollectionService) Delete(ctx context.Context, uuid string) error {
	collection, err := s.repo.GetByUUID(ctx, uuid)
	if err != nil {
		return err
	}

	// Capture the membership before the delete detaches it
	documentIDs, err := s.documents.FindIDsByCollectionID(ctx, collection.ID)
	if err != nil {
		log.Error().Err(err).Msgf("Error retrieving documents for collection %s", uuid)
	}

	if err := s.repo.Delete(ctx, uuid); err != nil {
		return err
	}

	if err := s.cache.Delete(ctx, collection); err != nil {
		log.Error().Err(err).Msgf("Error removing collection %s from cache", uuid)
	}

	// Detached documents still carry the collection in their search records
	for _, documentID := range documentIDs {
		if err := s.container.Worker.EnqueueReindexDocument(ctx, documentID); err != nil {
			log.Error().Err(err).Int64("id", documentID).Msg("Error reindexing document after collection deletion")
		}
	}

	return nil
}

// WarmCache loads every collection into the cache. Called once at startup so
// search scope checks rarely touch the database.
func (s *CollectionService) WarmCache(ctx context.Context) error {
	collections, err := s.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load collections: %w", err)
	}

	for _, collection := range collections {
		if err := s.cache.Insert(ctx, collection); err != nil {
			log.Error().Err(err).Msgf("Failed to cache collection %s", collection.UUID)
			continue
		}
	}

	return nil
}
