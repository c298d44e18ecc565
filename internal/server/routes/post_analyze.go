package routes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/storyweft/novelmap/internal/queue"
	"github.com/storyweft/novelmap/internal/server/middleware"
	"github.com/storyweft/novelmap/internal/util"
	"github.com/storyweft/novelmap/pkg/analysis"
	"github.com/storyweft/novelmap/pkg/common"
	"github.com/storyweft/novelmap/pkg/leaselock"
	"github.com/storyweft/novelmap/pkg/logger"
	"github.com/storyweft/novelmap/pkg/store"
	pgxstore "github.com/storyweft/novelmap/pkg/store/pgx"

	"github.com/labstack/echo/v4"
)

// StartAnalysisHandler queues a sequential analysis run over the document's
// unanalyzed chunks. The worker picks the run up where a previous run left
// off.
func StartAnalysisHandler(c echo.Context) error {
	type startAnalysisParams struct {
		ID string `param:"id" validate:"required"`
	}

	type startAnalysisResponse struct {
		Message  string                 `json:"message"`
		Progress *util.AnalysisProgress `json:"progress,omitempty"`
	}

	params := new(startAnalysisParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, startAnalysisResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, startAnalysisResponse{
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
			return c.JSON(http.StatusNotFound, startAnalysisResponse{
				Message: "Document not found",
			})
		}
		logger.Error("Failed to get document", "document_id", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, startAnalysisResponse{
			Message: "Internal server error",
		})
	}

	analyzed := doc.AnalyzedCount()
	if len(doc.Chunks) == 0 || analyzed == len(doc.Chunks) {
		progress := util.BuildAnalysisProgress(analyzed, len(doc.Chunks))
		return c.JSON(http.StatusOK, startAnalysisResponse{
			Message:  "Nothing to analyze",
			Progress: &progress,
		})
	}

	queueData := queue.QueueAnalyzeMsg{
		Message:    "Analyze document",
		DocumentID: doc.ID,
	}

	ch := c.(*middleware.AppContext).App.Queue
	err = queue.PublishFIFO(ch, queue.QueueAnalyze, []byte(util.ConvertStructToJson(queueData)))
	if err != nil {
		logger.Error("Failed to publish to analyze_queue", "err", err)
		return c.JSON(http.StatusInternalServerError, startAnalysisResponse{
			Message: "Internal server error",
		})
	}

	progress := util.BuildAnalysisProgress(analyzed, len(doc.Chunks))
	return c.JSON(http.StatusOK, startAnalysisResponse{
		Message:  "Analysis queued",
		Progress: &progress,
	})
}

// StopAnalysisHandler requests a stop of the active analysis run. The flag
// is picked up by the worker after the currently processing chunk is
// persisted; that chunk's result is kept.
func StopAnalysisHandler(c echo.Context) error {
	type stopAnalysisParams struct {
		ID string `param:"id" validate:"required"`
	}

	type stopAnalysisResponse struct {
		Message string `json:"message"`
	}

	params := new(stopAnalysisParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, stopAnalysisResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, stopAnalysisResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ctx := c.Request().Context()
	conn := c.(*middleware.AppContext).App.DBConn

	tag, err := conn.Exec(ctx, `UPDATE documents SET stop_requested = true WHERE id = $1`, params.ID)
	if err != nil {
		logger.Error("Failed to set stop flag", "document_id", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, stopAnalysisResponse{
			Message: "Internal server error",
		})
	}
	if tag.RowsAffected() == 0 {
		return c.JSON(http.StatusNotFound, stopAnalysisResponse{
			Message: "Document not found",
		})
	}

	return c.JSON(http.StatusOK, stopAnalysisResponse{
		Message: "Stop requested",
	})
}

// AnalyzeChunkHandler analyzes a single chunk in-process. The chunk must be
// the first chunk or have an analyzed predecessor, otherwise the rolling
// context chain would get a hole.
func AnalyzeChunkHandler(c echo.Context) error {
	type analyzeChunkParams struct {
		ID    string `param:"id" validate:"required"`
		Index int    `param:"index" validate:"numeric,min=0"`
	}

	type analyzeChunkResponse struct {
		Message string        `json:"message"`
		Chunk   *common.Chunk `json:"chunk,omitempty"`
	}

	params := new(analyzeChunkParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, analyzeChunkResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, analyzeChunkResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	docs := pgxstore.NewDocumentDBStorage(app.DBConn)
	locks := leaselock.New(app.DBConn)

	svc := analysis.NewAIService(analysis.NewAIServiceParams{Client: app.AiClient})
	controller := analysis.NewController(analysis.NewControllerParams{Service: svc})

	var analyzedChunk *common.Chunk
	err := locks.WithLease(ctx, leaselock.DocumentKey(params.ID), leaselock.Options{
		TTL:         2 * time.Minute,
		TokenPrefix: "chunk-",
	}, func(leaseCtx context.Context) error {
		doc, err := docs.GetDocument(leaseCtx, params.ID)
		if err != nil {
			return err
		}
		if params.Index >= len(doc.Chunks) {
			return echo.NewHTTPError(http.StatusNotFound, "Chunk not found")
		}

		if err := controller.AnalyzeOne(leaseCtx, doc, params.Index, docs.SaveDocument); err != nil {
			return err
		}
		analyzedChunk = &doc.Chunks[params.Index]
		return nil
	})
	if err != nil {
		var httpErr *echo.HTTPError
		switch {
		case errors.Is(err, store.ErrNotFound):
			return c.JSON(http.StatusNotFound, analyzeChunkResponse{
				Message: "Document not found",
			})
		case errors.As(err, &httpErr):
			return err
		case errors.Is(err, analysis.ErrSequentialLock):
			return c.JSON(http.StatusConflict, analyzeChunkResponse{
				Message: "Previous chunk is not analyzed yet",
			})
		case errors.Is(err, analysis.ErrRunActive), errors.Is(err, leaselock.ErrBusy):
			return c.JSON(http.StatusConflict, analyzeChunkResponse{
				Message: "An analysis run is active",
			})
		default:
			logger.Error("Failed to analyze chunk", "document_id", params.ID, "index", params.Index, "err", err)
			return c.JSON(http.StatusInternalServerError, analyzeChunkResponse{
				Message: "Internal server error",
			})
		}
	}

	return c.JSON(http.StatusOK, analyzeChunkResponse{
		Message: "Chunk analyzed successfully",
		Chunk:   analyzedChunk,
	})
}
