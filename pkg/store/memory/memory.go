package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/storyweft/novelmap/pkg/common"
	"github.com/storyweft/novelmap/pkg/store"
)

type entry struct {
	data      []byte
	meta      common.DocumentMeta
	updatedAt time.Time
}

// DocumentMemStorage implements store.DocumentStorage in process memory.
// Documents are stored as serialized snapshots so callers never share state
// with the store. Intended for tests and single-process development.
type DocumentMemStorage struct {
	mu   sync.RWMutex
	docs map[string]entry
}

// NewDocumentMemStorage creates an empty in-memory document store.
func NewDocumentMemStorage() *DocumentMemStorage {
	return &DocumentMemStorage{docs: make(map[string]entry)}
}

func (s *DocumentMemStorage) SaveDocument(ctx context.Context, doc *common.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	progressIndex := len(doc.Chunks)
	for i := range doc.Chunks {
		if !doc.Chunks[i].Analyzed() {
			progressIndex = i
			break
		}
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = entry{
		data: data,
		meta: common.DocumentMeta{
			ID:            doc.ID,
			Title:         doc.Title,
			TotalChars:    len([]rune(doc.Text)),
			ChunkCount:    len(doc.Chunks),
			AnalyzedCount: doc.AnalyzedCount(),
			ProgressIndex: progressIndex,
			UpdatedAt:     now,
		},
		updatedAt: now,
	}
	return nil
}

func (s *DocumentMemStorage) GetDocument(ctx context.Context, id string) (*common.Document, error) {
	s.mu.RLock()
	e, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}

	var doc common.Document
	if err := json.Unmarshal(e.data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *DocumentMemStorage) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

func (s *DocumentMemStorage) ListDocuments(ctx context.Context) ([]common.DocumentMeta, error) {
	s.mu.RLock()
	metas := make([]common.DocumentMeta, 0, len(s.docs))
	for _, e := range s.docs {
		metas = append(metas, e.meta)
	}
	s.mu.RUnlock()

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}
