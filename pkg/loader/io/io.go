package io

import (
	"context"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/storyweft/novelmap/pkg/loader"
)

// IONovelLoader loads source files directly from the local filesystem with
// caching.
type IONovelLoader struct {
	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewIONovelLoader creates a new filesystem-based source loader.
func NewIONovelLoader() *IONovelLoader {
	return &IONovelLoader{
		cache: make(map[string][]byte),
	}
}

// GetSourceText reads the source content from the filesystem. Results are
// cached.
func (l *IONovelLoader) GetSourceText(ctx context.Context, source loader.NovelSource) ([]byte, error) {
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

		result, err := os.ReadFile(source.Location)
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
