package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/carverlane/archivist/server/api/v1/dtos"
	"github.com/carverlane/archivist/server/container"
	"github.com/carverlane/archivist/server/services"
	"github.com/carverlane/archivist/server/utils"
	"github.com/labstack/echo/v4"
)

type CollectionHandler struct {
	container *container.Container
	service   *services.CollectionService
}

func NewCollectionHandler(c *container.Container, svc *services.CollectionService) *CollectionHandler {
	return &CollectionHandler{
		container: c,
		service:   svc,
	}
}

func (h *CollectionHandler) CreateCollection(c echo.Context) error {
	ctx := c.Request().Context()

	var req dtos.CollectionCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid request data: %v", err))
	}
	if err := dtos.Validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
	}

	collection := req.ToModel()
	if err := h.service.Create(ctx, collection); err != nil {
		var conflictErr *utils.ConflictError
		if errors.As(err, &conflictErr) {
			return c.JSON(http.StatusConflict, map[string]any{
				"error":       conflictErr.Message,
				"conflict_id": conflictErr.ConflictUUID,
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error storing collection: %v", err))
	}

	return c.JSON(http.StatusCreated, collection)
}

func (h *CollectionHandler) ListCollections(c echo.Context) error {
	ctx := c.Request().Context()

	collections, err := h.service.GetAll(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to retrieve collections")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": collections,
	})
}

func (h *CollectionHandler) GetCollection(c echo.Context) error {
	ctx := c.Request().Context()
	uuid := c.Param("uuid")

	collection, err := h.service.Get(ctx, uuid)
	if err != nil {
		if errors.Is(err, utils.ErrCollectionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Collection not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to retrieve collection")
	}

	return c.JSON(http.StatusOK, collection)
}

func (h *CollectionHandler) UpdateCollection(c echo.Context) error {
	ctx := c.Request().Context()
	uuid := c.Param("uuid")

	existingCollection, err := h.service.Get(ctx, uuid)
	if err != nil {
		if errors.Is(err, utils.ErrCollectionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Collection not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve collection: %v", err))
	}

	var req dtos.CollectionUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid request data: %v", err))
	}
	if err := dtos.Validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
	}

	req.UpdateModel(existingCollection)
	if err := h.service.Update(ctx, existingCollection); err != nil {
		var conflictErr *utils.ConflictError
		if errors.As(err, &conflictErr) {
			return c.JSON(http.StatusConflict, map[string]any{
				"error":       conflictErr.Message,
				"conflict_id": conflictErr.ConflictUUID,
			})
		}
		if errors.Is(err, utils.ErrCollectionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Collection not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to update collection: %v", err))
	}

	return c.JSON(http.StatusOK, existingCollection)
}

func (h *CollectionHandler) DeleteCollection(c echo.Context) error {
	ctx := c.Request().Context()
	uuid := c.Param("uuid")

	if err := h.service.Delete(ctx, uuid); err != nil {
		if errors.Is(err, utils.ErrCollectionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Collection not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to delete collection: %v", err))
	}

	return c.NoContent(http.StatusNoContent)
}
