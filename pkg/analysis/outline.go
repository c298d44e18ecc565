package analysis

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/storyweft/novelmap/internal/util"
	"github.com/storyweft/novelmap/pkg/common"
	"github.com/storyweft/novelmap/pkg/logger"
	"github.com/storyweft/novelmap/pkg/segment"
)

// maxConcurrentSummaries bounds the per-section summary fan-out within one
// chunk during outline generation.
const maxConcurrentSummaries = 3

// OutlineController generates per-chapter outlines for a document's chunks.
// Unlike sequential analysis, outlining carries no rolling context, so chunks
// with existing outlines are skipped and the sub-chapter summaries within one
// chunk may run concurrently. The controller is cancelable independently of
// any analysis run.
type OutlineController struct {
	svc Service

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewOutlineController creates an outline controller backed by svc.
func NewOutlineController(svc Service) *OutlineController {
	return &OutlineController{svc: svc}
}

// Running reports whether an outline run is active.
func (c *OutlineController) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Stop requests cancellation of the active outline run, if any.
func (c *OutlineController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Run fills in outlines for every chunk of doc that does not have them yet,
// persisting the document after each chunk. Chunks whose content contains at
// least two chapter headers are outlined by summarizing each sub-chapter
// individually; otherwise the whole chunk is outlined in a single call.
func (c *OutlineController) Run(ctx context.Context, doc *common.Document, persist PersistFunc) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrRunActive
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.mu.Unlock()
	}()

	settings := doc.Settings.Normalize()

	for i := range doc.Chunks {
		if runCtx.Err() != nil {
			return runCtx.Err()
		}

		chunk := &doc.Chunks[i]
		if chunk.Analysis != nil && len(chunk.Analysis.ChapterOutlines) > 0 {
			continue
		}

		outlines, err := c.outlineChunk(runCtx, chunk, settings)
		if err != nil {
			if runCtx.Err() != nil {
				return runCtx.Err()
			}
			logger.Error("[Outline] Chunk failed", "document_id", doc.ID, "chunk", i, "title", chunk.Title, "err", err)
			return &ChunkFailedError{Index: i, Title: chunk.Title, Err: err}
		}
		if len(outlines) == 0 {
			continue
		}

		if chunk.Analysis == nil {
			chunk.Analysis = &common.AnalysisResult{}
		}
		chunk.Analysis.ChapterOutlines = outlines

		if err := util.RetryErrWithContext(runCtx, 3, func(ctx context.Context) error {
			return persist(ctx, doc)
		}); err != nil {
			return err
		}

		logger.Debug("[Outline] Chunk outlined", "document_id", doc.ID, "chunk", i, "sections", len(outlines))
	}

	return nil
}

// outlineChunk splits the chunk at its internal chapter headers and
// summarizes each section with bounded concurrency. Chunks without at least
// two internal headers are outlined as a whole.
func (c *OutlineController) outlineChunk(
	ctx context.Context,
	chunk *common.Chunk,
	settings common.Settings,
) ([]common.ChapterOutline, error) {
	boundaries := segment.DetectBoundaries(chunk.Content)
	if len(boundaries) < 2 {
		return c.svc.OutlineChunk(ctx, chunk.Content, settings)
	}

	runes := []rune(chunk.Content)
	outlines := make([]common.ChapterOutline, len(boundaries))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentSummaries)

	for idx, boundary := range boundaries {
		end := len(runes)
		if idx < len(boundaries)-1 {
			end = boundaries[idx+1].Offset
		}
		section := string(runes[boundary.Offset:end])
		title := boundary.Title

		group.Go(func() error {
			summary, err := c.svc.SummarizeSection(groupCtx, title, section, settings)
			if err != nil {
				return err
			}
			outlines[idx] = common.ChapterOutline{Title: title, Summary: summary}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return outlines, nil
}
