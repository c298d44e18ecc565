package store

import (
	"context"
	"errors"

	"github.com/storyweft/novelmap/pkg/common"
)

// ErrNotFound is returned when the requested document does not exist.
var ErrNotFound = errors.New("document not found")

// DocumentStorage defines the interface for persisting documents: the full
// text, its chunks with analyses, the accumulated graph, and settings.
// SaveDocument is a full-document upsert with last-write-wins semantics; the
// sequential analysis controller calls it after every merged chunk so a
// restart resumes from the last persisted frontier.
type DocumentStorage interface {
	SaveDocument(ctx context.Context, doc *common.Document) error
	GetDocument(ctx context.Context, id string) (*common.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context) ([]common.DocumentMeta, error)
}
