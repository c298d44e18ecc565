package routes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/storyweft/novelmap/internal/server/middleware"
	"github.com/storyweft/novelmap/pkg/common"
	"github.com/storyweft/novelmap/pkg/leaselock"
	"github.com/storyweft/novelmap/pkg/logger"
	"github.com/storyweft/novelmap/pkg/segment"
	"github.com/storyweft/novelmap/pkg/store"
	pgxstore "github.com/storyweft/novelmap/pkg/store/pgx"

	"github.com/labstack/echo/v4"
)

// EditDocumentSettingsHandler updates a document's analysis settings. A
// chunk size change re-segments only the unanalyzed tail; chunks that
// already carry an analysis keep their boundaries so accumulated context
// stays valid. The update runs under the document lease so it cannot race
// an active analysis run.
func EditDocumentSettingsHandler(c echo.Context) error {
	type editSettingsBody struct {
		ID           string  `param:"id" validate:"required"`
		ChunkSize    *int    `json:"chunk_size"`
		CustomPrompt *string `json:"custom_prompt"`
		Provider     *string `json:"provider"`
		Model        *string `json:"model"`
		MaxTokens    *int    `json:"max_tokens"`
	}

	type editSettingsResponse struct {
		Message  string           `json:"message"`
		Document *common.Document `json:"document,omitempty"`
	}

	data := new(editSettingsBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, editSettingsResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, editSettingsResponse{
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
	locks := leaselock.New(conn)

	var updated *common.Document
	err := locks.WithLease(ctx, leaselock.DocumentKey(data.ID), leaselock.Options{
		TTL:         30 * time.Second,
		TokenPrefix: "settings-",
	}, func(leaseCtx context.Context) error {
		doc, err := docs.GetDocument(leaseCtx, data.ID)
		if err != nil {
			return err
		}

		settings := doc.Settings
		if data.ChunkSize != nil {
			settings.ChunkSize = *data.ChunkSize
		}
		if data.CustomPrompt != nil {
			settings.CustomPrompt = *data.CustomPrompt
		}
		if data.Provider != nil {
			settings.Provider = *data.Provider
		}
		if data.Model != nil {
			settings.Model = *data.Model
		}
		if data.MaxTokens != nil {
			settings.MaxTokens = *data.MaxTokens
		}
		settings = settings.Normalize()

		if settings.ChunkSize != doc.Settings.ChunkSize {
			chunks, err := segment.Resegment(doc.Text, doc.Chunks, settings.ChunkSize)
			if err != nil {
				return err
			}
			doc.Chunks = chunks
		}
		doc.Settings = settings

		if err := docs.SaveDocument(leaseCtx, doc); err != nil {
			return err
		}
		updated = doc
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, editSettingsResponse{
				Message: "Document not found",
			})
		}
		if errors.Is(err, leaselock.ErrBusy) {
			return c.JSON(http.StatusConflict, editSettingsResponse{
				Message: "Document is busy",
			})
		}
		logger.Error("Failed to update settings", "document_id", data.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, editSettingsResponse{
			Message: "Internal server error",
		})
	}

	updated.Text = ""
	return c.JSON(http.StatusOK, editSettingsResponse{
		Message:  "Settings updated successfully",
		Document: updated,
	})
}
