package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/storyweft/novelmap/internal/util"
	"github.com/storyweft/novelmap/pkg/common"
	"github.com/storyweft/novelmap/pkg/graph"
	"github.com/storyweft/novelmap/pkg/logger"
)

// State is the controller lifecycle: Idle -> Running -> (Idle | Stopped).
// Stopped means the last run terminated at a failing chunk; a new run may
// still be started to resume from the frontier.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// PersistFunc saves the document (chunks, analyzed count, graph) after each
// successful per-chunk merge. The controller awaits it before moving to the
// next chunk.
type PersistFunc func(ctx context.Context, doc *common.Document) error

// Controller walks a document's chunks strictly in id order, carrying the
// rolling summary from each chunk's analysis into the next one's request.
// Each chunk's relations are merged into the document graph and the document
// is persisted before the next chunk starts.
//
// Cancellation is cooperative: Stop cancels the run context, which is
// polled at the top of each chunk iteration. A chunk already in flight runs
// to completion first. Only one run per controller may be active.
type Controller struct {
	svc Service

	pace          time.Duration
	retryCooldown time.Duration
	persistTries  int

	mu     sync.Mutex
	state  State
	busy   bool // single-chunk analysis in flight
	cancel context.CancelFunc
}

// NewControllerParams configures NewController. Zero values fall back to a
// 1s pacing delay, a 10s retry cooldown, and 3 persistence attempts.
type NewControllerParams struct {
	Service       Service
	Pace          time.Duration
	RetryCooldown time.Duration
	PersistTries  int
}

// NewController creates a sequential analysis controller.
func NewController(params NewControllerParams) *Controller {
	pace := params.Pace
	if pace <= 0 {
		pace = time.Second
	}
	cooldown := params.RetryCooldown
	if cooldown <= 0 {
		cooldown = 10 * time.Second
	}
	persistTries := params.PersistTries
	if persistTries <= 0 {
		persistTries = 3
	}
	return &Controller{
		svc:           params.Service,
		pace:          pace,
		retryCooldown: cooldown,
		persistTries:  persistTries,
	}
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stop requests cooperative cancellation of the active run, if any. It
// takes effect at the top of the next chunk iteration; the chunk in flight
// finishes first. Already-persisted results are not rolled back.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// CanAnalyze reports whether the chunk at index may be analyzed on demand:
// it must be the first chunk or its immediate predecessor must already have
// a completed analysis.
func CanAnalyze(chunks []common.Chunk, index int) bool {
	if index < 0 || index >= len(chunks) {
		return false
	}
	return index == 0 || chunks[index-1].Analyzed()
}

// resumePoint finds the first unanalyzed chunk and the rolling summary
// seeded from the last analyzed chunk before it.
func resumePoint(chunks []common.Chunk) (int, string) {
	summary := ""
	for i := range chunks {
		if !chunks[i].Analyzed() {
			return i, summary
		}
		summary = chunks[i].Analysis.Summary
	}
	return len(chunks), summary
}

// Run analyzes doc's unanalyzed chunks in order, mutating doc as it goes.
// It returns nil when all chunks are processed, ctx.Err() when canceled,
// ErrRunActive when a run is already in flight, and a ChunkFailedError when
// a chunk fails after its one extra retry (state -> Stopped; the run does
// not advance past the failing chunk).
func (c *Controller) Run(ctx context.Context, doc *common.Document, persist PersistFunc) error {
	c.mu.Lock()
	if c.state == StateRunning || c.busy {
		c.mu.Unlock()
		return ErrRunActive
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.state = StateRunning
	c.cancel = cancel
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.cancel = nil
		if c.state == StateRunning {
			c.state = StateIdle
		}
		c.mu.Unlock()
	}()

	start, summary := resumePoint(doc.Chunks)
	if start >= len(doc.Chunks) {
		return nil
	}

	settings := doc.Settings.Normalize()
	logger.Info("[Analysis] Starting run", "document_id", doc.ID, "start_chunk", start, "total_chunks", len(doc.Chunks))

	for i := start; i < len(doc.Chunks); i++ {
		if runCtx.Err() != nil {
			logger.Info("[Analysis] Run canceled", "document_id", doc.ID, "next_chunk", i)
			return runCtx.Err()
		}

		chunk := &doc.Chunks[i]
		res, err := c.analyzeWithRetry(runCtx, chunk, settings, summary)
		if err != nil {
			if runCtx.Err() != nil {
				logger.Info("[Analysis] Run canceled", "document_id", doc.ID, "next_chunk", i)
				return runCtx.Err()
			}
			c.mu.Lock()
			c.state = StateStopped
			c.mu.Unlock()
			logger.Error("[Analysis] Run stopped", "document_id", doc.ID, "chunk", i, "title", chunk.Title, "err", err)
			return &ChunkFailedError{Index: i, Title: chunk.Title, Err: err}
		}

		doc.Graph = graph.Merge(doc.Graph, res.Relationships)
		chunk.Analysis = res
		summary = res.Summary

		if err := util.RetryErrWithContext(runCtx, c.persistTries, func(ctx context.Context) error {
			return persist(ctx, doc)
		}); err != nil {
			if runCtx.Err() != nil {
				return runCtx.Err()
			}
			c.mu.Lock()
			c.state = StateStopped
			c.mu.Unlock()
			logger.Error("[Analysis] Persist failed, run stopped", "document_id", doc.ID, "chunk", i, "err", err)
			return &ChunkFailedError{Index: i, Title: chunk.Title, Err: err}
		}

		logger.Debug("[Analysis] Chunk analyzed", "document_id", doc.ID, "chunk", i, "title", chunk.Title)

		if i < len(doc.Chunks)-1 {
			if err := util.Sleep(runCtx, c.pace); err != nil {
				return err
			}
		}
	}

	logger.Info("[Analysis] Run completed", "document_id", doc.ID, "chunks", len(doc.Chunks))
	return nil
}

// analyzeWithRetry invokes the service once and, on failure, performs
// exactly one additional attempt after a longer cooldown. Transient-error
// backoff below this already lives inside the service.
func (c *Controller) analyzeWithRetry(
	ctx context.Context,
	chunk *common.Chunk,
	settings common.Settings,
	summary string,
) (*common.AnalysisResult, error) {
	res, err := c.svc.Analyze(ctx, chunk.Content, settings, summary)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	logger.Warn("[Analysis] Chunk failed, retrying after cooldown", "chunk", chunk.ID, "title", chunk.Title, "err", err)
	if sleepErr := util.Sleep(ctx, c.retryCooldown); sleepErr != nil {
		return nil, sleepErr
	}
	return c.svc.Analyze(ctx, chunk.Content, settings, summary)
}

// AnalyzeOne analyzes a single chunk on demand, guarded by the sequential
// lock: the chunk must be first or have an analyzed predecessor. The rolling
// summary is seeded from the predecessor's analysis. Failures are local to
// the chunk; nothing else in the document changes. The controller stays busy
// for the duration, so a Run started meanwhile is rejected.
func (c *Controller) AnalyzeOne(ctx context.Context, doc *common.Document, index int, persist PersistFunc) error {
	c.mu.Lock()
	if c.state == StateRunning || c.busy {
		c.mu.Unlock()
		return ErrRunActive
	}
	c.busy = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	if !CanAnalyze(doc.Chunks, index) {
		return ErrSequentialLock
	}

	summary := ""
	if index > 0 {
		summary = doc.Chunks[index-1].Analysis.Summary
	}

	chunk := &doc.Chunks[index]
	res, err := c.svc.Analyze(ctx, chunk.Content, doc.Settings.Normalize(), summary)
	if err != nil {
		return &ChunkFailedError{Index: index, Title: chunk.Title, Err: err}
	}

	doc.Graph = graph.Merge(doc.Graph, res.Relationships)
	chunk.Analysis = res

	return util.RetryErrWithContext(ctx, c.persistTries, func(ctx context.Context) error {
		return persist(ctx, doc)
	})
}
