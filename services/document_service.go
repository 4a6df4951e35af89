package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/carverlane/archivist/server/cache"
	"github.com/carverlane/archivist/server/container"
	"github.com/carverlane/archivist/server/elastic/indexes"
	"github.com/carverlane/archivist/server/models"
	"github.com/carverlane/archivist/server/repositories"
	"github.com/carverlane/archivist/server/search"
	"github.com/carverlane/archivist/server/utils"
	"github.com/rs/zerolog/log"
)

type DocumentService struct {
	container       *container.Container
	repo            *repositories.DocumentRepository
	collections     *repositories.CollectionRepository
	collectionCache *cache.CollectionCache
	search          *search.DocumentSearch
}

func NewDocumentService(container *container.Container) *DocumentService {
	return &DocumentService{
		container:       container,
		repo:            repositories.NewDocumentRepository(container),
		collections:     repositories.NewCollectionRepository(container),
		collectionCache: cache.NewCollectionCache(container),
		search: search.NewDocumentSearch(container.Elastic.Client, search.Config{
			Index:           fmt.Sprintf("%s-%s", container.Config.ElasticsearchIndexPrefix, indexes.DocumentsIndex),
			DefaultPageSize: container.Config.SearchDefaultPageSize,
			MaxPageSize:     container.Config.SearchMaxPageSize,
			ExactCounts:     container.Config.SearchExactCounts,
			CursorKey:       container.Config.EncryptionKey,
		}),
	}
}

func (s *DocumentService) Get(ctx context.Context, uuid string) (*models.Document, error) {
	return s.repo.GetByUUID(ctx, uuid)
}

func (s *DocumentService) GetByInternalID(ctx context.Context, id int64) (*models.Document, error) {
	return s.repo.GetByInternalID(ctx, id)
}

func (s *DocumentService) Create(ctx context.Context, document *models.Document) error {
	if err := s.resolveCollection(ctx, document); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, document); err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	if err := s.search.Index(ctx, document.ToSearchRecord()); err != nil {
		log.Error().Err(err).Msgf("Failed to index document %s", document.UUID)
	}

	return nil
}

func (s *DocumentService) Update(ctx context.Context, document *models.Document) error {
	if err := s.resolveCollection(ctx, document); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, document); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	if err := s.search.Index(ctx, document.ToSearchRecord()); err != nil {
		log.Error().Err(err).Msgf("Failed to index document %s", document.UUID)
	}

	return nil
}

// Search answers one page of a cursor-paginated document query. A collection
// scope is checked before the engine is called so an unknown collection is
// reported as a filter problem rather than an empty page.
func (s *DocumentService) Search(ctx context.Context, options *search.DocumentSearchOptions) (*utils.PaginatedResult[*models.Document], error) {
	if options.Filter != nil && options.Filter.CollectionUUID != nil {
		exists, err := s.collectionExists(ctx, *options.Filter.CollectionUUID)
		if err != nil {
			return nil, fmt.Errorf("failed to check collection scope: %w", err)
		}
		if !exists {
			return nil, &search.InvalidFilterError{
				Field:  "collection",
				Reason: fmt.Sprintf("unknown collection %s", *options.Filter.CollectionUUID),
			}
		}
	}

	result, err := s.search.Search(ctx, options)
	if err != nil {
		return nil, fmt.Errorf("failed to search for documents: %w", err)
	}

	// The slice must be non-nil so an empty page serializes as [].
	data := make([]*models.Document, 0, len(result.Data))
	for _, record := range result.Data {
		data = append(data, record.ToModel())
	}

	return &utils.PaginatedResult[*models.Document]{
		Data:       data,
		HasMore:    result.HasMore,
		TotalCount: result.TotalCount,
		NextCursor: result.NextCursor,
	}, nil
}

func (s *DocumentService) Index(ctx context.Context, document *models.Document) error {
	return s.search.Index(ctx, document.ToSearchRecord())
}

func (s *DocumentService) IndexAll(ctx context.Context) error {
	// Retrieve all document IDs from the repository.
	documentIDs, err := s.repo.GetAllIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to get document IDs: %w", err)
	}

	// Iterate through IDs and index each document
	for _, id := range documentIDs {
		// Get the document by ID
		document, err := s.repo.GetByInternalID(ctx, id)
		if err != nil {
			// Log the error and continue to the next document
			log.Error().Err(err).Msgf("Error retrieving document for id %d", id)
			continue
		}

		if err := s.search.Index(ctx, document.ToSearchRecord()); err != nil {
			log.Error().Err(err).Msgf("Error reindexing document %s", document.UUID)
			continue
		}

		log.Info().Msgf("Reindexed document %s", document.UUID)
	}

	return nil
}

func (s *DocumentService) Delete(ctx context.Context, uuid string) error {
	document, err := s.repo.GetByUUID(ctx, uuid)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, uuid); err != nil {
		return err
	}

	// Now trigger external operations
	if err := s.search.Delete(ctx, uuid); err != nil {
		log.Error().Err(err).Msgf("Error deleting document %s from search index", uuid)
	}

	if document.OriginalKey != nil {
		if err := s.container.S3.Delete(ctx, *document.OriginalKey); err != nil {
			log.Error().Err(err).Msgf("Error deleting original file for document %s", uuid)
		}
	}

	return nil
}

// AttachOriginal stores the uploaded original file and records it against the
// document. The document is reindexed because its size participates in search
// ordering.
func (s *DocumentService) AttachOriginal(ctx context.Context, uuid string, contentType string, size int64, reader io.Reader) (*models.Document, error) {
	if _, err := s.repo.GetByUUID(ctx, uuid); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("originals/%s", uuid)

	if err := s.container.S3.Upload(ctx, key, reader, size, contentType); err != nil {
		return nil, fmt.Errorf("failed to upload original: %w", err)
	}

	if err := s.repo.UpdateOriginal(ctx, uuid, key, size, contentType); err != nil {
		return nil, fmt.Errorf("failed to record original: %w", err)
	}

	document, err := s.repo.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}

	if err := s.search.Index(ctx, document.ToSearchRecord()); err != nil {
		log.Error().Err(err).Msgf("Failed to index document %s", document.UUID)
	}

	return document, nil
}

// OriginalURL returns a time-limited download link for a document's stored
// original file.
func (s *DocumentService) OriginalURL(ctx context.Context, uuid string) (string, error) {
	document, err := s.repo.GetByUUID(ctx, uuid)
	if err != nil {
		return "", err
	}

	if document.OriginalKey == nil {
		return "", utils.ErrOriginalNotFound
	}

	url, err := s.container.S3.PresignedURL(ctx, *document.OriginalKey, document.Title, 15*time.Minute)
	if err != nil {
		return "", fmt.Errorf("failed to presign original: %w", err)
	}

	return url, nil
}

// resolveCollection maps the document's public collection identifier to the
// internal key, preferring the cache and falling back to the database.
func (s *DocumentService) resolveCollection(ctx context.Context, document *models.Document) error {
	if document.CollectionUUID == nil || document.CollectionID != nil {
		return nil
	}

	collection, err := s.collectionCache.GetByUUID(ctx, *document.CollectionUUID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read collection from cache")
	}

	if collection == nil {
		collection, err = s.collections.GetByUUID(ctx, *document.CollectionUUID)
		if err != nil {
			return err
		}

		if cacheErr := s.collectionCache.Insert(ctx, collection); cacheErr != nil {
			log.Error().Err(cacheErr).Msg("Failed to refresh collection cache")
		}
	}

	document.CollectionID = &collection.ID
	document.CollectionUUID = &collection.UUID
	document.CollectionName = &collection.Name

	return nil
}

func (s *DocumentService) collectionExists(ctx context.Context, uuid string) (bool, error) {
	collection, err := s.collectionCache.GetByUUID(ctx, uuid)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read collection from cache")
	}
	if collection != nil {
		return true, nil
	}

	collection, err = s.collections.GetByUUID(ctx, uuid)
	if err != nil {
		if errors.Is(err, utils.ErrCollectionNotFound) {
			return false, nil
		}
		return false, err
	}

	if cacheErr := s.collectionCache.Insert(ctx, collection); cacheErr != nil {
		log.Error().Err(cacheErr).Msg("Failed to refresh collection cache")
	}

	return true, nil
}
