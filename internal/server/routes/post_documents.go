package routes

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/storyweft/novelmap/internal/server/middleware"
	"github.com/storyweft/novelmap/internal/storage"
	"github.com/storyweft/novelmap/internal/util"
	"github.com/storyweft/novelmap/pkg/common"
	"github.com/storyweft/novelmap/pkg/loader"
	docloader "github.com/storyweft/novelmap/pkg/loader/doc"
	s3loader "github.com/storyweft/novelmap/pkg/loader/s3"
	webloader "github.com/storyweft/novelmap/pkg/loader/web"
	"github.com/storyweft/novelmap/pkg/logger"
	"github.com/storyweft/novelmap/pkg/segment"
	pgxstore "github.com/storyweft/novelmap/pkg/store/pgx"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// CreateDocumentHandler creates a new document from multipart/form-data.
// The text comes from the "text" field, an uploaded "file" (plain text or
// docx, stored in S3), or a "url" pointing at a web page. The text is
// segmented into chunks immediately; analysis is started separately.
func CreateDocumentHandler(c echo.Context) error {
	type createDocumentBody struct {
		Title        string `form:"title" validate:"required"`
		Text         string `form:"text"`
		URL          string `form:"url"`
		ChunkSize    int    `form:"chunk_size"`
		CustomPrompt string `form:"custom_prompt"`
		Provider     string `form:"provider"`
		Model        string `form:"model"`
		MaxTokens    int    `form:"max_tokens"`
	}

	type createDocumentResponse struct {
		Message  string           `json:"message"`
		Document *common.Document `json:"document,omitempty"`
	}

	data := new(createDocumentBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createDocumentResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createDocumentResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, createDocumentResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	docID, err := gonanoid.New()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, createDocumentResponse{
			Message: "Internal server error",
		})
	}

	var (
		source    loader.NovelSource
		sourceKey string
	)
	switch {
	case data.Text != "":
		source = loader.NewTextSource(docID, data.Text)
	case data.URL != "":
		source = loader.NewWebSource(loader.NewNovelSourceParams{
			ID:       docID,
			Location: data.URL,
			Loader:   webloader.NewWebNovelLoader(),
		})
	default:
		upload, err := c.FormFile("file")
		if err != nil {
			return c.JSON(http.StatusBadRequest, createDocumentResponse{
				Message: "No text, url or file provided",
			})
		}
		src, err := upload.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, createDocumentResponse{
				Message: "Invalid request body",
			})
		}
		defer src.Close()

		key, err := storage.PutFile(
			ctx,
			app.S3,
			fmt.Sprintf("documents/%s/source", docID),
			upload.Filename,
			docID,
			src,
		)
		if err != nil {
			logger.Error("Failed to upload source file", "err", err)
			return c.JSON(http.StatusInternalServerError, createDocumentResponse{
				Message: "Internal server error",
			})
		}
		sourceKey = key

		bucket := util.GetEnv("AWS_BUCKET")
		var sourceLoader loader.NovelTextLoader = s3loader.NewS3NovelLoaderWithClient(bucket, app.S3)
		if strings.HasSuffix(strings.ToLower(upload.Filename), ".docx") {
			sourceLoader = docloader.NewDocNovelLoader(sourceLoader)
		}
		source = loader.NewDocumentSource(loader.NewNovelSourceParams{
			ID:       docID,
			Location: key,
			Loader:   sourceLoader,
		})
	}

	text, err := source.GetText(ctx)
	if err != nil {
		logger.Error("Failed to load document text", "document_id", docID, "err", err)
		return c.JSON(http.StatusBadRequest, createDocumentResponse{
			Message: "Could not load document text",
		})
	}
	if strings.TrimSpace(text) == "" {
		return c.JSON(http.StatusBadRequest, createDocumentResponse{
			Message: "Document text is empty",
		})
	}

	settings := common.Settings{
		ChunkSize:    data.ChunkSize,
		CustomPrompt: data.CustomPrompt,
		Provider:     data.Provider,
		Model:        data.Model,
		MaxTokens:    data.MaxTokens,
	}.Normalize()

	chunks, err := segment.Segment(text, settings.ChunkSize)
	if err != nil {
		logger.Error("Failed to segment document", "document_id", docID, "err", err)
		return c.JSON(http.StatusInternalServerError, createDocumentResponse{
			Message: "Internal server error",
		})
	}

	doc := &common.Document{
		ID:        docID,
		Title:     data.Title,
		Text:      text,
		SourceKey: sourceKey,
		Chunks:    chunks,
		Settings:  settings,
	}

	conn := app.DBConn
	docs := pgxstore.NewDocumentDBStorage(conn)
	if err := docs.SaveDocument(ctx, doc); err != nil {
		logger.Error("Failed to save document", "document_id", docID, "err", err)
		return c.JSON(http.StatusInternalServerError, createDocumentResponse{
			Message: "Internal server error",
		})
	}

	logger.Info("Document created", "document_id", docID, "chunks", len(chunks), "chars", utf8.RuneCountInString(text))

	doc.Text = ""
	return c.JSON(http.StatusOK, createDocumentResponse{
		Message:  "Document created successfully",
		Document: doc,
	})
}
