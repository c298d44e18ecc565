package doc

import (
	"context"
	"io"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/storyweft/novelmap/pkg/loader"
)

const docXMLMax = 50 << 20

// DocNovelLoader loads Word documents (.docx) and extracts their text
// content, preserving paragraph breaks so chapter headers stay on their own
// lines for the segmenter.
type DocNovelLoader struct {
	loader loader.NovelTextLoader

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewDocNovelLoader creates a document loader that extracts text directly
// from docx XML. The inner loader fetches the raw document bytes.
func NewDocNovelLoader(inner loader.NovelTextLoader) *DocNovelLoader {
	return &DocNovelLoader{
		loader: inner,
		cache:  make(map[string][]byte),
	}
}

// GetSourceText extracts text content from a Word document.
func (l *DocNovelLoader) GetSourceText(ctx context.Context, source loader.NovelSource) ([]byte, error) {
	key := loader.CacheKey(source)

	l.cacheMu.RLock()
	if cached, ok := l.cache[key]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(key, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[key]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		content, err := l.loader.GetSourceText(ctx, source)
		if err != nil {
			return nil, err
		}

		result, err := parseDocx(content)
		if err != nil {
			return nil, err
		}

		l.cacheMu.Lock()
		l.cache[key] = result
		l.cacheMu.Unlock()

		return result, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}

// GetSourceTextFromIO extracts text content from a Word document provided
// as an io.Reader.
func GetSourceTextFromIO(ctx context.Context, input io.Reader) ([]byte, error) {
	content, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}

	return parseDocx(content)
}
