package server

import (
	"github.com/storyweft/novelmap/internal/server/middleware"
	"github.com/storyweft/novelmap/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Document routes
	apiRoutes.GET("/documents", routes.GetDocumentsHandler)
	apiRoutes.GET("/documents/:id", routes.GetDocumentHandler)
	apiRoutes.POST("/documents", routes.CreateDocumentHandler, middleware.RequirePermission("document.create"))
	apiRoutes.PATCH("/documents/:id/settings", routes.EditDocumentSettingsHandler, middleware.RequirePermission("document.update"))
	apiRoutes.DELETE("/documents/:id", routes.DeleteDocumentHandler, middleware.RequirePermission("document.delete"))

	// Analysis routes
	apiRoutes.POST("/documents/:id/analyze", routes.StartAnalysisHandler, middleware.RequirePermission("document.analyze"))
	apiRoutes.POST("/documents/:id/analyze/stop", routes.StopAnalysisHandler, middleware.RequirePermission("document.analyze"))
	apiRoutes.POST("/documents/:id/chunks/:index/analyze", routes.AnalyzeChunkHandler, middleware.RequirePermission("document.analyze"))
	apiRoutes.POST("/documents/:id/outlines", routes.StartOutlineHandler, middleware.RequirePermission("document.outline"))

	// Read-only projections
	apiRoutes.GET("/documents/:id/graph", routes.GetDocumentGraphHandler)
	apiRoutes.GET("/documents/:id/progress", routes.GetDocumentProgressHandler)
}
