package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"codeberg.org/readeck/go-readability/v2"
	"golang.org/x/sync/singleflight"

	"github.com/storyweft/novelmap/pkg/loader"
)

// WebNovelLoader loads novel text from web URLs. For HTML pages it uses
// readability to extract the main content, which strips navigation and
// boilerplate around serialized chapters.
type WebNovelLoader struct {
	fallback loader.NovelTextLoader

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewWebNovelLoader creates a new web loader without a fallback loader.
func NewWebNovelLoader() *WebNovelLoader {
	return &WebNovelLoader{
		cache: make(map[string][]byte),
	}
}

// NewWebNovelLoaderWithFallback creates a web loader with a fallback for
// non-HTML content.
func NewWebNovelLoaderWithFallback(fallback loader.NovelTextLoader) *WebNovelLoader {
	return &WebNovelLoader{
		fallback: fallback,
		cache:    make(map[string][]byte),
	}
}

// GetSourceText fetches a URL and extracts readable text content.
func (l *WebNovelLoader) GetSourceText(ctx context.Context, source loader.NovelSource) ([]byte, error) {
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

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.Location, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch url: %w", err)
		}
		defer resp.Body.Close()

		contentType := resp.Header.Get("Content-Type")
		if strings.Contains(contentType, "text/html") {
			pageURL, err := url.Parse(source.Location)
			if err != nil {
				return nil, fmt.Errorf("failed to parse url: %w", err)
			}
			article, err := readability.FromReader(resp.Body, pageURL)
			if err != nil {
				return nil, fmt.Errorf("failed to parse html: %w", err)
			}
			var builder strings.Builder
			if err := article.RenderText(&builder); err != nil {
				return nil, fmt.Errorf("failed to render article text: %w", err)
			}

			result := []byte(builder.String())

			l.cacheMu.Lock()
			l.cache[key] = result
			l.cacheMu.Unlock()

			return result, nil
		}

		if l.fallback != nil {
			return l.fallback.GetSourceText(ctx, source)
		}

		result, err := io.ReadAll(resp.Body)
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
