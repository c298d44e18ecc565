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

// StartOutlineHandler queues outline generation for every chunk that does
// not have chapter outlines yet.
func StartOutlineHandler(c echo.Context) error {
	type startOutlineParams struct {
		ID string `param:"id" validate:"required"`
	}

	type startOutlineResponse struct {
		Message string `json:"message"`
	}

	params := new(startOutlineParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, startOutlineResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, startOutlineResponse{
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
			return c.JSON(http.StatusNotFound, startOutlineResponse{
				Message: "Document not found",
			})
		}
		logger.Error("Failed to get document", "document_id", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, startOutlineResponse{
			Message: "Internal server error",
		})
	}

	queueData := queue.QueueOutlineMsg{
		Message:    "Outline document",
		DocumentID: doc.ID,
	}

	ch := c.(*middleware.AppContext).App.Queue
	err = queue.PublishFIFO(ch, queue.QueueOutline, []byte(util.ConvertStructToJson(queueData)))
	if err != nil {
		logger.Error("Failed to publish to outline_queue", "err", err)
		return c.JSON(http.StatusInternalServerError, startOutlineResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, startOutlineResponse{
		Message: "Outline generation queued",
	})
}
