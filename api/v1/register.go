package v1

import (
	"github.com/carverlane/archivist/server/api/v1/handlers"
	"github.com/carverlane/archivist/server/container"
	"github.com/carverlane/archivist/server/services"
	"github.com/labstack/echo/v4"
)

func registerDocumentRoutes(g *echo.Group, c *container.Container, svc *services.DocumentService) {
	handler := handlers.NewDocumentHandler(c, svc)

	documents := g.Group("/documents")

	documents.POST("", handler.CreateDocument)
	documents.GET("", handler.ListDocuments)
	documents.GET("/:uuid", handler.GetDocument)
	documents.PUT("/:uuid", handler.UpdateDocument)
	documents.DELETE("/:uuid", handler.DeleteDocument)
	documents.POST("/search", handler.SearchDocuments)
	documents.PUT("/:uuid/original", handler.UploadDocumentOriginal)
	documents.GET("/:uuid/original", handler.GetDocumentOriginal)
}

func registerCollectionRoutes(g *echo.Group, c *container.Container, svc *services.CollectionService) {
	handler := handlers.NewCollectionHandler(c, svc)

	collections := g.Group("/collections")

	collections.POST("", handler.CreateCollection)
	collections.GET("", handler.ListCollections)
	collections.GET("/:uuid", handler.GetCollection)
	collections.PUT("/:uuid", handler.UpdateCollection)
	collections.DELETE("/:uuid", handler.DeleteCollection)
}

func RegisterRoutes(e *echo.Echo, c *container.Container, documentService *services.DocumentService, collectionService *services.CollectionService) {
	group := e.Group("/v1")

	registerDocumentRoutes(group, c, documentService)
	registerCollectionRoutes(group, c, collectionService)
}
