package routes

import (
	"errors"
	"net/http"

	"github.com/storyweft/novelmap/internal/server/middleware"
	"github.com/storyweft/novelmap/pkg/common"
	"github.com/storyweft/novelmap/pkg/logger"
	"github.com/storyweft/novelmap/pkg/store"
	pgxstore "github.com/storyweft/novelmap/pkg/store/pgx"

	"github.com/labstack/echo/v4"
)

// GetDocumentGraphHandler returns the accumulated character graph.
func GetDocumentGraphHandler(c echo.Context) error {
	type getGraphParams struct {
		ID string `param:"id" validate:"required"`
	}

	type getGraphResponse struct {
		Message string        `json:"message"`
		Graph   *common.Graph `json:"graph,omitempty"`
	}

	params := new(getGraphParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getGraphResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getGraphResponse{
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
			return c.JSON(http.StatusNotFound, getGraphResponse{
				Message: "Document not found",
			})
		}
		logger.Error("Failed to get document", "document_id", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, getGraphResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getGraphResponse{
		Message: "OK",
		Graph:   &doc.Graph,
	})
}
