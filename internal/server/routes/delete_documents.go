package routes

import (
	"errors"
	"net/http"

	"github.com/storyweft/novelmap/internal/queue"
	"github.com/storyweft/novelmap/internal/server/middleware"
	"github.com/storyweft/novelmap/internal/util"
	"github.com/storyweft/novelmap/pkg/logger"
	"github.com/storyweft/novelmap/pkg/store"
	pgxstore "github.com/storyweft/novelmap/pkg/store/pgx"

	"github.com/labstack/echo/v4"
)

// DeleteDocumentHandler enqueues deletion of a document and its stored
// source files. The worker performs the delete under the document lease so
// an active analysis run finishes or loses its lease first.
func DeleteDocumentHandler(c echo.Context) error {
	type deleteDocumentParams struct {
		ID string `param:"id" validate:"required"`
	}

	type deleteDocumentResponse struct {
		Message string `json:"message"`
	}

	params := new(deleteDocumentParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, deleteDocumentResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, deleteDocumentResponse{
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
			return c.JSON(http.StatusNotFound, deleteDocumentResponse{
				Message: "Document not found",
			})
		}
		logger.Error("Failed to get document", "document_id", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteDocumentResponse{
			Message: "Internal server error",
		})
	}

	queueData := queue.QueueDeleteMsg{
		Message:    "Delete document",
		DocumentID: doc.ID,
		SourceKey:  doc.SourceKey,
	}

	ch := c.(*middleware.AppContext).App.Queue
	err = queue.PublishFIFO(ch, queue.QueueDelete, []byte(util.ConvertStructToJson(queueData)))
	if err != nil {
		logger.Error("Failed to publish to delete_queue", "err", err)
		return c.JSON(http.StatusInternalServerError, deleteDocumentResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, deleteDocumentResponse{
		Message: "Document deletion queued",
	})
}
