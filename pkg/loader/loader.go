package loader

import (
	"context"
)

type NovelSourceType string

const (
	NovelSourceTypeText     NovelSourceType = "text"
	NovelSourceTypeDocument NovelSourceType = "document"
	NovelSourceTypeWeb      NovelSourceType = "web"
)

// NovelSource describes where a document's full text comes from: pasted
// inline text, a stored document file (docx), or a web page. The actual
// bytes are retrieved via the associated NovelTextLoader.
type NovelSource struct {
	ID       string
	Location string
	Type     NovelSourceType
	Inline   string
	Loader   NovelTextLoader
}

// NewNovelSourceParams defines the input parameters for creating a
// NovelSource.
type NewNovelSourceParams struct {
	ID       string
	Location string
	Loader   NovelTextLoader
}

// NewTextSource creates a source carrying its text inline. It needs no
// loader.
func NewTextSource(id, text string) NovelSource {
	return NovelSource{
		ID:     id,
		Type:   NovelSourceTypeText,
		Inline: text,
	}
}

// NewDocumentSource creates a source backed by a stored document file.
func NewDocumentSource(params NewNovelSourceParams) NovelSource {
	return NovelSource{
		ID:       params.ID,
		Location: params.Location,
		Type:     NovelSourceTypeDocument,
		Loader:   params.Loader,
	}
}

// NewWebSource creates a source backed by a web page URL.
func NewWebSource(params NewNovelSourceParams) NovelSource {
	return NovelSource{
		ID:       params.ID,
		Location: params.Location,
		Type:     NovelSourceTypeWeb,
		Loader:   params.Loader,
	}
}

// GetText retrieves the full text of the source. Inline sources return
// their text directly; everything else goes through the Loader.
func (s *NovelSource) GetText(ctx context.Context) (string, error) {
	if s.Type == NovelSourceTypeText {
		return s.Inline, nil
	}
	text, err := s.Loader.GetSourceText(ctx, *s)
	if err != nil {
		return "", err
	}
	return string(text), nil
}

// NovelTextLoader defines the interface for loading the raw text of a
// NovelSource. Implementations may load from disk, object storage, or the
// web.
type NovelTextLoader interface {
	GetSourceText(ctx context.Context, source NovelSource) ([]byte, error)
}

// CacheKey generates a unique cache key for a source based on its ID and
// location.
func CacheKey(source NovelSource) string {
	return source.ID + ":" + source.Location
}
