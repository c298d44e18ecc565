package routes

import (
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/storyweft/novelmap/internal/server/middleware"
	"github.com/storyweft/novelmap/internal/timing"
	"github.com/storyweft/novelmap/internal/util"
	"github.com/storyweft/novelmap/pkg/logger"
	"github.com/storyweft/novelmap/pkg/store"
	pgxstore "github.com/storyweft/novelmap/pkg/store/pgx"

	"github.com/labstack/echo/v4"
)

// GetDocumentProgressHandler reports how far the sequential analysis has
// advanced.
func GetDocumentProgressHandler(c echo.Context) error {
	type getProgressParams struct {
		ID string `param:"id" validate:"required"`
	}

	type getProgressResponse struct {
		Message       string                `json:"message"`
		Progress      util.AnalysisProgress `json:"progress"`
		AnalyzedCount int                   `json:"analyzed_count"`
		ChunkCount    int                   `json:"chunk_count"`
		EstimatedMs   int64                 `json:"estimated_ms,omitempty"`
	}

	params := new(getProgressParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getProgressResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getProgressResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ctx := c.Request().Context()
	conn := c.(*middleware.AppContext).App.DBConn
	docs := pgxstore.NewDocumentDBStorage(conn)

	doc, err := docs.GetDocument(ctx, params.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, getProgressResponse{
				Message: "Document not found",
			})
		}
		logger.Error("Failed to get document", "document_id", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, getProgressResponse{
			Message: "Internal server error",
		})
	}

	analyzed := doc.AnalyzedCount()

	var remainingChars int64
	for i := range doc.Chunks {
		if !doc.Chunks[i].Analyzed() {
			remainingChars += int64(utf8.RuneCountInString(doc.Chunks[i].Content))
		}
	}
	var estimatedMs int64
	if remainingChars > 0 {
		estimatedMs, err = timing.PredictAnalysisTime(ctx, conn, remainingChars, "analyze")
		if err != nil {
			logger.Warn("Failed to predict analysis time", "document_id", params.ID, "err", err)
			estimatedMs = 0
		}
	}

	return c.JSON(http.StatusOK, getProgressResponse{
		Message:       "OK",
		Progress:      util.BuildAnalysisProgress(analyzed, len(doc.Chunks)),
		AnalyzedCount: analyzed,
		ChunkCount:    len(doc.Chunks),
		EstimatedMs:   estimatedMs,
	})
}
