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

type CollectionRepository struct {
	container *container.Container
}

func NewCollectionRepository(container *container.Container) *CollectionRepository {
	return &CollectionRepository{
		container: container,
	}
}

func (r *CollectionRepository) getByUUIDTx(ctx context.Context, tx pgx.Tx, uuid string) (*models.Collection, error) {
	query := `
		SELECT id, uuid, name, created_at, updated_at
		FROM collections
		WHERE uuid = $1
	`

	var collection models.Collection

	err := tx.QueryRow(ctx, query, uuid).Scan(
		&collection.ID, &collection.UUID, &collection.Name,
		&collection.CreatedAt, &collection.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.ErrCollectionNotFound
		}
		return nil, fmt.Errorf("error fetching collection: %w", err)
	}

	return &collection, nil
}

func (r *CollectionRepository) GetByUUID(ctx context.Context, uuid string) (*models.Collection, error) {
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

	collection, err := r.getByUUIDTx(ctx, tx, uuid)
	if err != nil {
		return nil, err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("error committing transaction: %w", err)
	}

	return collection, nil
}

// getByNameTx finds a collection by its exact name
func (r *CollectionRepository) getByNameTx(ctx context.Context, tx pgx.Tx, name string) (*models.Collection, error) {
	query := `
        SELECT id, uuid, name, created_at, updated_at
        FROM collections
        WHERE name = $1
    `

	var collection models.Collection

	err := tx.QueryRow(ctx, query, name).Scan(
		&collection.ID, &collection.UUID, &collection.Name,
		&collection.CreatedAt, &collection.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Return nil, nil when no matching collection is found
		}
		return nil, fmt.Errorf("error fetching collection by name: %w", err)
	}

	return &collection, nil
}

// GetAll retrieves every collection, ordered by name.
func (r *CollectionRepository) GetAll(ctx context.Context) ([]*models.Collection, error) {
	query := `
        SELECT id, uuid, name, created_at, updated_at
        FROM collections
        ORDER BY name
    `

	rows, err := r.container.Postgres.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying collections: %w", err)
	}
	defer rows.Close()

	// Non-nil so an empty listing serializes as [].
	collections := make([]*models.Collection, 0)
	for rows.Next() {
		var collection models.Collection
		if err := rows.Scan(
			&collection.ID, &collection.UUID, &collection.Name,
			&collection.CreatedAt, &collection.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning collection: %w", err)
		}
		collections = append(collections, &collection)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collections: %w", err)
	}

	return collections, nil
}

// Create inserts a new collection record.
func (r *CollectionRepository) Create(ctx context.Context, collection *models.Collection) error {
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

	existingCollection, err := r.getByNameTx(ctx, tx, collection.Name)
	if err != nil {
		return fmt.Errorf("error checking for duplicate names: %w", err)
	}

	if existingCollection != nil {
		return &utils.ConflictError{
			Message:      "A collection with this name already exists",
			ConflictUUID: existingCollection.UUID,
		}
	}

	query := `
        INSERT INTO collections (name)
        VALUES ($1)
        RETURNING id, uuid, created_at, updated_at
    `

	err = tx.QueryRow(ctx, query, collection.Name).Scan(
		&collection.ID, &collection.UUID,
		&collection.CreatedAt, &collection.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("error creating collection: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// Update updates an existing collection record.
func (r *CollectionRepository) Update(ctx context.Context, collection *models.Collection) error {
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

	existingCollection, err := r.getByNameTx(ctx, tx, collection.Name)
	if err != nil {
		return fmt.Errorf("error checking for duplicate name: %w", err)
	}

	if existingCollection != nil && existingCollection.UUID != collection.UUID {
		return &utils.ConflictError{
			Message:      "A collection with this name already exists",
			ConflictUUID: existingCollection.UUID,
		}
	}

	query := `
        UPDATE collections SET
            name = $1,
            updated_at = NOW()
        WHERE uuid = $2
        RETURNING id, uuid, created_at, updated_at
    `

	err = tx.QueryRow(ctx, query, collection.Name, collection.UUID).Scan(
		&collection.ID, &collection.UUID,
		&collection.CreatedAt, &collection.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return utils.ErrCollectionNotFound
		}
		return fmt.Errorf("error updating collection: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

func (r *CollectionRepository) Delete(ctx context.Context, uuid string) error {
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

	result, err := tx.Exec(ctx, "DELETE FROM collections WHERE uuid = $1", uuid)
	if err != nil {
		return fmt.Errorf("error deleting collection: %w", err)
	}

	if result.RowsAffected() == 0 {
		return utils.ErrCollectionNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing deletion: %w", err)
	}

	return nil
}
