package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/carverlane/archivist/server/api/v1/dtos"
	"github.com/carverlane/archivist/server/container"
	"github.com/carverlane/archivist/server/search"
	"github.com/carverlane/archivist/server/services"
	"github.com/carverlane/archivist/server/utils"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type DocumentHandler struct {
	container *container.Container
	service   *services.DocumentService
}

func NewDocumentHandler(c *container.Container, svc *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		container: c,
		service:   svc,
	}
}

func (h *DocumentHandler) CreateDocument(c echo.Context) error {
	ctx := c.Request().Context()

	var req dtos.DocumentCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid request data: %v", err))
	}
	if err := dtos.Validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
	}

	document := req.ToModel()
	if err := h.service.Create(ctx, document); err != nil {
		var conflictErr *utils.ConflictError
		if errors.As(err, &conflictErr) {
			return c.JSON(http.StatusConflict, map[string]any{
				"error":       conflictErr.Message,
				"conflict_id": conflictErr.ConflictUUID,
			})
		}
		if errors.Is(err, utils.ErrCollectionNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "Collection not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error storing document: %v", err))
	}

	return c.JSON(http.StatusCreated, document)
}

func (h *DocumentHandler) ListDocuments(c echo.Context) error {
	ctx := c.Request().Context()

	var req dtos.DocumentListRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request parameters")
	}

	options := &search.DocumentSearchOptions{}
	if err := applyDocumentPaginationAndSorting(options, req.Limit, req.StartingAfter, req.SortBy, req.SortDirection); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if req.Collection != nil && *req.Collection != "" {
		options.Filter = &search.Filter{CollectionUUID: req.Collection}
	}

	documents, err := h.service.Search(ctx, options)
	if err != nil {
		return searchErrorToHTTP(err)
	}

	return c.JSON(http.StatusOK, documents)
}

func (h *DocumentHandler) GetDocument(c echo.Context) error {
	ctx := c.Request().Context()
	uuid := c.Param("uuid")

	document, err := h.service.Get(ctx, uuid)
	if err != nil {
		if errors.Is(err, utils.ErrDocumentNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Document not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to retrieve document")
	}

	return c.JSON(http.StatusOK, document)
}

func (h *DocumentHandler) UpdateDocument(c echo.Context) error {
	ctx := c.Request().Context()
	uuid := c.Param("uuid")

	existingDocument, err := h.service.Get(ctx, uuid)
	if err != nil {
		if errors.Is(err, utils.ErrDocumentNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Document not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve document: %v", err))
	}

	var req dtos.DocumentUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid request data: %v", err))
	}
	if err := dtos.Validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
	}

	req.UpdateModel(existingDocument)
	if err := h.service.Update(ctx, existingDocument); err != nil {
		var conflictErr *utils.ConflictError
		if errors.As(err, &conflictErr) {
			return c.JSON(http.StatusConflict, map[string]any{
				"error":       conflictErr.Message,
				"conflict_id": conflictErr.ConflictUUID,
			})
		}
		if errors.Is(err, utils.ErrCollectionNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "Collection not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to update document: %v", err))
	}

	return c.JSON(http.StatusOK, existingDocument)
}

func (h *DocumentHandler) DeleteDocument(c echo.Context) error {
	ctx := c.Request().Context()
	uuid := c.Param("uuid")

	if err := h.service.Delete(ctx, uuid); err != nil {
		if errors.Is(err, utils.ErrDocumentNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Document not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to delete document: %v", err))
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *DocumentHandler) SearchDocuments(c echo.Context) error {
	ctx := c.Request().Context()

	var req dtos.DocumentSearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request data")
	}
	if err := dtos.Validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
	}

	options := &search.DocumentSearchOptions{}

	if req.Limit != nil {
		options.Limit = *req.Limit
	}
	if req.StartingAfter != nil {
		options.StartingAfter = *req.StartingAfter
	}

	for _, clause := range req.Sort {
		field, err := documentSortField(clause.Field)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		options.Sort = append(options.Sort, search.SortClause{
			Field:     field,
			Direction: search.SortDirection(clause.Direction),
		})
	}

	filter := &search.Filter{}
	hasFilter := false

	if req.Term != nil && *req.Term != "" {
		filter.Term = *req.Term
		hasFilter = true
	}
	if len(req.Facets) > 0 {
		filter.Facets = req.Facets
		hasFilter = true
	}
	if req.FacetMode != nil {
		filter.FacetMode = search.FacetMode(*req.FacetMode)
	}
	if req.Collection != nil && *req.Collection != "" {
		filter.CollectionUUID = req.Collection
		hasFilter = true
	}

	if hasFilter {
		options.Filter = filter
	}

	documents, err := h.service.Search(ctx, options)
	if err != nil {
		return searchErrorToHTTP(err)
	}

	return c.JSON(http.StatusOK, documents)
}

func (h *DocumentHandler) UploadDocumentOriginal(c echo.Context) error {
	ctx := c.Request().Context()
	uuid := c.Param("uuid")

	// Ensure the request is multipart form data
	if !strings.Contains(c.Request().Header.Get("Content-Type"), "multipart/form-data") {
		return echo.NewHTTPError(http.StatusBadRequest, "Expected multipart form data")
	}

	// Parse form
	if err := c.Request().ParseMultipartForm(32 << 20); err != nil { // 32MB max
		return echo.NewHTTPError(http.StatusBadRequest, "Error parsing form: "+err.Error())
	}

	// Get the file
	file, _, err := c.Request().FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Error getting file: "+err.Error())
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error reading file content: "+err.Error())
	}

	if len(fileBytes) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Empty file")
	}

	// Detect content type from file contents, not extension
	buffer := fileBytes
	if len(buffer) > 512 {
		buffer = buffer[:512]
	}
	contentType := http.DetectContentType(buffer)

	document, err := h.service.AttachOriginal(ctx, uuid, contentType, int64(len(fileBytes)), bytes.NewReader(fileBytes))
	if err != nil {
		if errors.Is(err, utils.ErrDocumentNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Document not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to store original: %v", err))
	}

	return c.JSON(http.StatusOK, document)
}

func (h *DocumentHandler) GetDocumentOriginal(c echo.Context) error {
	ctx := c.Request().Context()
	uuid := c.Param("uuid")

	url, err := h.service.OriginalURL(ctx, uuid)
	if err != nil {
		if errors.Is(err, utils.ErrDocumentNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Document not found")
		}
		if errors.Is(err, utils.ErrOriginalNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Document has no stored original")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to resolve original")
	}

	return c.Redirect(http.StatusFound, url)
}

func applyDocumentPaginationAndSorting(options *search.DocumentSearchOptions, limit *int, startingAfter *string, sortBy *string, sortDirection *string) error {
	if limit != nil {
		options.Limit = *limit
	}

	if startingAfter != nil {
		options.StartingAfter = *startingAfter
	}

	if sortBy != nil || sortDirection != nil {
		field := search.DocumentSortByCreatedAt
		if sortBy != nil {
			parsed, err := documentSortField(*sortBy)
			if err != nil {
				return err
			}
			field = parsed
		}

		clause := search.SortClause{Field: field}
		if sortDirection != nil {
			switch *sortDirection {
			case "asc":
				clause.Direction = search.SortDirectionAsc
			case "desc":
				clause.Direction = search.SortDirectionDesc
			default:
				return fmt.Errorf("invalid sort_direction option: %s", *sortDirection)
			}
		}

		options.Sort = []search.SortClause{clause}
	}

	return nil
}

// documentSortField maps the public sort field names onto their index-side
// counterparts.
func documentSortField(field string) (search.DocumentSortBy, error) {
	switch field {
	case "relevance":
		return search.DocumentSortByRelevance, nil
	case "created_at":
		return search.DocumentSortByCreatedAt, nil
	case "updated_at":
		return search.DocumentSortByUpdatedAt, nil
	case "title":
		return search.DocumentSortByTitle, nil
	case "size":
		return search.DocumentSortBySize, nil
	case "id":
		return search.DocumentSortByID, nil
	default:
		return "", fmt.Errorf("invalid sort_by option: %s", field)
	}
}

// searchErrorToHTTP translates search failures onto the API surface. Caller
// mistakes come back as 400s, an unreachable engine as a 502.
func searchErrorToHTTP(err error) error {
	var malformedErr *search.MalformedCursorError
	if errors.As(err, &malformedErr) {
		return echo.NewHTTPError(http.StatusBadRequest, malformedErr.Error())
	}

	var incompatibleErr *search.IncompatibleCursorError
	if errors.As(err, &incompatibleErr) {
		return echo.NewHTTPError(http.StatusBadRequest, incompatibleErr.Error())
	}

	var filterErr *search.InvalidFilterError
	if errors.As(err, &filterErr) {
		return echo.NewHTTPError(http.StatusBadRequest, filterErr.Error())
	}

	var unavailableErr *search.SearchUnavailableError
	if errors.As(err, &unavailableErr) {
		log.Error().Err(err).Msg("Search engine unavailable")
		return echo.NewHTTPError(http.StatusBadGateway, "Search is temporarily unavailable")
	}

	log.Error().Err(err).Msg("Error searching documents")
	return echo.NewHTTPError(http.StatusInternalServerError, "Failed to search documents")
}
