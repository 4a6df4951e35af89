package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/carverlane/archivist/server/container"
	"github.com/carverlane/archivist/server/models"
	"github.com/carverlane/archivist/server/utils"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

type DocumentRepository struct {
	container *container.Container
}

func NewDocumentRepository(container *container.Container) *DocumentRepository {
	return &DocumentRepository{
		container: container,
	}
}

func (r *DocumentRepository) getByInternalIDTx(ctx context.Context, tx pgx.Tx, id int64) (*models.Document, error) {
	query := `
		SELECT d.id, d.uuid, d.title, d.text, d.collection_id, c.uuid, c.name,
			d.size_bytes, d.original_key, d.content_type, d.created_at, d.updated_at
		FROM documents d
		LEFT JOIN collections c ON c.id = d.collection_id
		WHERE d.id = $1
	`

	var document models.Document

	err := tx.QueryRow(ctx, query, id).Scan(
		&document.ID, &document.UUID, &document.Title, &document.Text,
		&document.CollectionID, &document.CollectionUUID, &document.CollectionName,
		&document.SizeBytes, &document.OriginalKey, &document.ContentType,
		&document.CreatedAt, &document.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("error fetching document: %w", err)
	}

	// Fetch all associations
	err = r.fetchDocumentFacets(ctx, tx, &document)
	if err != nil {
		return nil, err
	}

	return &document, nil
}

func (r *DocumentRepository) GetByInternalID(ctx context.Context, id int64) (*models.Document, error) {
	tx, err := r.container.Postgres.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	// Ensure we handle rollback errors
	defer func() {
		if tx != nil {
			rollbackErr := tx.Rollback(ctx)
			if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				// Just log the rollback error as there's not much we can do at this point
				log.Error().Err(rollbackErr).Msg("Failed to roll back transaction")
			}
		}
	}()

	document, err := r.getByInternalIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("error committing transaction: %w", err)
	}

	return document, nil
}

func (r *DocumentRepository) getByUUIDTx(ctx context.Context, tx pgx.Tx, uuid string) (*models.Document, error) {
	query := `
		SELECT d.id, d.uuid, d.title, d.text, d.collection_id, c.uuid, c.name,
			d.size_bytes, d.original_key, d.content_type, d.created_at, d.updated_at
		FROM documents d
		LEFT JOIN collections c ON c.id = d.collection_id
		WHERE d.uuid = $1
	`

	var document models.Document

	err := tx.QueryRow(ctx, query, uuid).Scan(
		&document.ID, &document.UUID, &document.Title, &document.Text,
		&document.CollectionID, &document.CollectionUUID, &document.CollectionName,
		&document.SizeBytes, &document.OriginalKey, &document.ContentType,
		&document.CreatedAt, &document.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("error fetching document: %w", err)
	}

	// Fetch all associations
	err = r.fetchDocumentFacets(ctx, tx, &document)
	if err != nil {
		return nil, err
	}

	return &document, nil
}

func (r *DocumentRepository) GetByUUID(ctx context.Context, uuid string) (*models.Document, error) {
	tx, err := r.container.Postgres.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	// Ensure we handle rollback errors
	defer func() {
		if tx != nil {
			rollbackErr := tx.Rollback(ctx)
			if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				// Just log the rollback error as there's not much we can do at this point
				log.Error().Err(rollbackErr).Msg("Failed to roll back transaction")
			}
		}
	}()

	document, err := r.getByUUIDTx(ctx, tx, uuid)
	if err != nil {
		return nil, err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("error committing transaction: %w", err)
	}

	return document, nil
}

// getByTitleTx finds a document by its exact title within a collection. The
// collection scope is part of the key, so the same title may exist in two
// different collections.
func (r *DocumentRepository) getByTitleTx(ctx context.Context, tx pgx.Tx, title string, collectionID *int64) (*models.Document, error) {
	query := `
        SELECT d.id, d.uuid, d.title, d.text, d.collection_id, c.uuid, c.name,
            d.size_bytes, d.original_key, d.content_type, d.created_at, d.updated_at
        FROM documents d
        LEFT JOIN collections c ON c.id = d.collection_id
        WHERE d.title = $1 AND d.collection_id IS NOT DISTINCT FROM $2
    `

	var document models.Document

	err := tx.QueryRow(ctx, query, title, collectionID).Scan(
		&document.ID, &document.UUID, &document.Title, &document.Text,
		&document.CollectionID, &document.CollectionUUID, &document.CollectionName,
		&document.SizeBytes, &document.OriginalKey, &document.ContentType,
		&document.CreatedAt, &document.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Return nil, nil when no matching document is found
		}
		return nil, fmt.Errorf("error fetching document by title: %w", err)
	}

	return &document, nil
}

// GetAllIDs retrieves all document IDs from the database.
func (r *DocumentRepository) GetAllIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.container.Postgres.Pool.Query(ctx, "SELECT id FROM documents ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("error querying document IDs: %w", err)
	}
	defer rows.Close()

	var documentIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning document ID: %w", err)
		}
		documentIDs = append(documentIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document IDs: %w", err)
	}

	return documentIDs, nil
}

// FindIDsByCollectionID retrieves the IDs of every document in a collection.
func (r *DocumentRepository) FindIDsByCollectionID(ctx context.Context, collectionID int64) ([]int64, error) {
	query := `
        SELECT id
        FROM documents
        WHERE collection_id = $1
        ORDER BY id
    `

	rows, err := r.container.Postgres.Pool.Query(ctx, query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("error querying documents by collection: %w", err)
	}
	defer rows.Close()

	var documentIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning document ID: %w", err)
		}
		documentIDs = append(documentIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document IDs: %w", err)
	}

	return documentIDs, nil
}

// Create inserts a new document record.
func (r *DocumentRepository) Create(ctx context.Context, document *models.Document) error {
	tx, err := r.container.Postgres.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	defer func() {
		if tx != nil {
			rollbackErr := tx.Rollback(ctx)
			if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				log.Error().Err(rollbackErr).Msg("Failed to roll back transaction")
			}
		}
	}()

	existingDocument, err := r.getByTitleTx(ctx, tx, document.Title, document.CollectionID)
	if err != nil {
		return fmt.Errorf("error checking for duplicate titles: %w", err)
	}

	if existingDocument != nil {
		return &utils.ConflictError{
			Message:      "A document with this title already exists in this collection",
			ConflictUUID: existingDocument.UUID,
		}
	}

	query := `
        INSERT INTO documents (title, text, collection_id, size_bytes, content_type)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, uuid, created_at, updated_at
    `

	err = tx.QueryRow(
		ctx, query,
		document.Title, document.Text, document.CollectionID,
		document.SizeBytes, document.ContentType,
	).Scan(
		&document.ID, &document.UUID,
		&document.CreatedAt, &document.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("error creating document: %w", err)
	}

	if err := r.syncFacets(ctx, tx, document, nil); err != nil {
		return fmt.Errorf("error syncing facets: %w", err)
	}

	if err := r.fetchCollectionTx(ctx, tx, document); err != nil {
		return fmt.Errorf("error resolving collection: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// Update updates an existing document record. The stored original file is
// managed separately through UpdateOriginal.
func (r *DocumentRepository) Update(ctx context.Context, document *models.Document) error {
	tx, err := r.container.Postgres.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	defer func() {
		if tx != nil {
			rollbackErr := tx.Rollback(ctx)
			if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				log.Error().Err(rollbackErr).Msg("Failed to roll back transaction")
			}
		}
	}()

	existingDocument, err := r.getByTitleTx(ctx, tx, document.Title, document.CollectionID)
	if err != nil {
		return fmt.Errorf("error checking for duplicate title: %w", err)
	}

	if existingDocument != nil && existingDocument.UUID != document.UUID {
		return &utils.ConflictError{
			Message:      "A document with this title already exists in this collection",
			ConflictUUID: existingDocument.UUID,
		}
	}

	if document.ID > 0 {
		existingDocument, err = r.getByInternalIDTx(ctx, tx, document.ID)
	} else {
		existingDocument, err = r.getByUUIDTx(ctx, tx, document.UUID)
	}

	if err != nil {
		return fmt.Errorf("error retrieving document: %w", err)
	}

	query := `
        UPDATE documents SET
            title = $1,
            text = $2,
            collection_id = $3,
            updated_at = NOW()
        WHERE id = $4
        RETURNING id, uuid, size_bytes, created_at, updated_at
    `

	err = tx.QueryRow(
		ctx, query,
		document.Title, document.Text, document.CollectionID,
		existingDocument.ID,
	).Scan(
		&document.ID, &document.UUID, &document.SizeBytes,
		&document.CreatedAt, &document.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("error updating document: %w", err)
	}

	if err := r.syncFacets(ctx, tx, document, existingDocument); err != nil {
		return fmt.Errorf("error syncing facets: %w", err)
	}

	if err := r.fetchCollectionTx(ctx, tx, document); err != nil {
		return fmt.Errorf("error resolving collection: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// UpdateOriginal records the stored original file for a document.
func (r *DocumentRepository) UpdateOriginal(ctx context.Context, uuid string, key string, sizeBytes int64, contentType string) error {
	tx, err := r.container.Postgres.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	defer func() {
		if tx != nil {
			rollbackErr := tx.Rollback(ctx)
			if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				log.Error().Err(rollbackErr).Msg("Failed to roll back transaction")
			}
		}
	}()

	query := `
        UPDATE documents SET
            original_key = $1,
            size_bytes = $2,
            content_type = $3,
            updated_at = NOW()
        WHERE uuid = $4
    `

	result, err := tx.Exec(ctx, query, key, sizeBytes, contentType, uuid)
	if err != nil {
		return fmt.Errorf("error updating document original: %w", err)
	}

	if result.RowsAffected() == 0 {
		return utils.ErrDocumentNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// fetchDocumentFacets retrieves all facet values associated with a document
func (r *DocumentRepository) fetchDocumentFacets(ctx context.Context, tx pgx.Tx, document *models.Document) error {
	query := `
		SELECT value
		FROM document_facets
		WHERE document_id = $1
		ORDER BY value;
	`

	rows, err := tx.Query(ctx, query, document.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	var facets []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return err
		}

		facets = append(facets, value)
	}

	if err := rows.Err(); err != nil {
		return err
	}

	document.Facets = facets
	return nil
}

// fetchCollectionTx fills the denormalized collection fields from the current
// collection row.
func (r *DocumentRepository) fetchCollectionTx(ctx context.Context, tx pgx.Tx, document *models.Document) error {
	if document.CollectionID == nil {
		document.CollectionUUID = nil
		document.CollectionName = nil
		return nil
	}

	query := `SELECT uuid, name FROM collections WHERE id = $1`

	var uuid, name string
	if err := tx.QueryRow(ctx, query, *document.CollectionID).Scan(&uuid, &name); err != nil {
		return fmt.Errorf("error fetching collection: %w", err)
	}

	document.CollectionUUID = &uuid
	document.CollectionName = &name

	return nil
}

// syncFacets synchronizes facet associations for a document
func (r *DocumentRepository) syncFacets(ctx context.Context, tx pgx.Tx, document *models.Document, existingDocument *models.Document) error {
	// Track the facet values already stored for this document
	existingValues := make(map[string]bool)

	if existingDocument != nil {
		for _, value := range existingDocument.Facets {
			existingValues[value] = true
		}
	}

	// Map to track facets we need to retain
	facetsToKeep := make(map[string]bool)

	// Process each facet in the input model
	updatedFacets := make([]string, 0, len(document.Facets))

	for _, value := range document.Facets {
		if value == "" || facetsToKeep[value] {
			continue
		}

		// Mark this facet value as one to keep
		facetsToKeep[value] = true
		updatedFacets = append(updatedFacets, value)

		if !existingValues[value] {
			// New facet - insert it
			query := `
                INSERT INTO document_facets (document_id, value)
                VALUES ($1, $2)
            `

			_, err := tx.Exec(ctx, query, document.ID, value)
			if err != nil {
				return fmt.Errorf("error creating facet: %w", err)
			}
		}
	}

	// Remove facets no longer present
	if existingDocument != nil {
		for _, value := range existingDocument.Facets {
			if !facetsToKeep[value] {
				query := `DELETE FROM document_facets WHERE document_id = $1 AND value = $2`
				_, err := tx.Exec(ctx, query, document.ID, value)
				if err != nil {
					return fmt.Errorf("error removing facet: %w", err)
				}
			}
		}
	}

	// Update the document's facet collection
	document.Facets = updatedFacets

	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, uuid string) error {
	tx, err := r.container.Postgres.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	defer func() {
		if tx != nil {
			rollbackErr := tx.Rollback(ctx)
			if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				log.Error().Err(rollbackErr).Msg("Failed to roll back transaction")
			}
		}
	}()

	result, err := tx.Exec(ctx, "DELETE FROM documents WHERE uuid = $1", uuid)
	if err != nil {
		return fmt.Errorf("error deleting document: %w", err)
	}

	if result.RowsAffected() == 0 {
		return utils.ErrDocumentNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing deletion: %w", err)
	}

	return nil
}
