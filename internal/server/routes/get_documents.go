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

// GetDocumentsHandler lists document metadata, newest first. Bodies stay in
// the database; only the meta columns are read.
func GetDocumentsHandler(c echo.Context) error {
	type getDocumentsResponse struct {
		Message   string                `json:"message"`
		Documents []common.DocumentMeta `json:"documents"`
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ctx := c.Request().Context()
	conn := c.(*middleware.AppContext).App.DBConn
	docs := pgxstore.NewDocumentDBStorage(conn)

	metas, err := docs.ListDocuments(ctx)
	if err != nil {
		logger.Error("Failed to list documents", "err", err)
		return c.JSON(http.StatusInternalServerError, getDocumentsResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getDocumentsResponse{
		Message:   "OK",
		Documents: metas,
	})
}

// GetDocumentHandler returns a full document. The raw text is omitted unless
// include_text=true, chunk contents already carry the segmented text.
func GetDocumentHandler(c echo.Context) error {
	type getDocumentParams struct {
		ID string `param:"id" validate:"required"`
	}

	type getDocumentResponse struct {
		Message  string           `json:"message"`
		Document *common.Document `json:"document,omitempty"`
	}

	params := new(getDocumentParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getDocumentResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getDocumentResponse{
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
			return c.JSON(http.StatusNotFound, getDocumentResponse{
				Message: "Document not found",
			})
		}
		logger.Error("Failed to get document", "document_id", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, getDocumentResponse{
			Message: "Internal server error",
		})
	}

	if c.QueryParam("include_text") != "true" {
		doc.Text = ""
	}

	return c.JSON(http.StatusOK, getDocumentResponse{
		Message:  "OK",
		Document: doc,
	})
}
