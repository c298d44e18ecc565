package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storyweft/novelmap/internal/timing"
	"github.com/storyweft/novelmap/pkg/analysis"
	"github.com/storyweft/novelmap/pkg/common"
	"github.com/storyweft/novelmap/pkg/leaselock"
	"github.com/storyweft/novelmap/pkg/logger"
	"github.com/storyweft/novelmap/pkg/store"
)

// ProcessAnalyzeMessage runs the sequential analysis over a document's
// unanalyzed chunks. The document's lease keeps the run single-writer across
// worker replicas; the stop flag in the documents table is polled after each
// persisted chunk so an API stop request takes effect at the next chunk
// boundary.
func ProcessAnalyzeMessage(
	ctx context.Context,
	docs store.DocumentStorage,
	svc analysis.Service,
	locks *leaselock.Client,
	conn *pgxpool.Pool,
	msg string,
) error {
	data := new(QueueAnalyzeMsg)
	if err := json.Unmarshal([]byte(msg), &data); err != nil {
		return err
	}

	return locks.WithLease(ctx, leaselock.DocumentKey(data.DocumentID), leaselock.Options{
		TTL:         2 * time.Minute,
		TokenPrefix: "analyze-",
	}, func(leaseCtx context.Context) error {
		doc, err := docs.GetDocument(leaseCtx, data.DocumentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.Warn("[Queue] Document gone, dropping analyze message", "document_id", data.DocumentID)
				return nil
			}
			return err
		}
		if len(doc.Chunks) == 0 || doc.AnalyzedCount() == len(doc.Chunks) {
			logger.Info("[Queue] Nothing to analyze", "document_id", data.DocumentID)
			return nil
		}

		if err := clearStopFlag(leaseCtx, conn, data.DocumentID); err != nil {
			return err
		}

		analyzedBefore := doc.AnalyzedCount()
		startTime := time.Now()
		defer func() {
			recordAnalysisTime(leaseCtx, conn, doc, analyzedBefore, time.Since(startTime))
		}()

		controller := analysis.NewController(analysis.NewControllerParams{Service: svc})

		persist := func(ctx context.Context, d *common.Document) error {
			if err := docs.SaveDocument(ctx, d); err != nil {
				return err
			}
			stopped, err := stopRequested(ctx, conn, d.ID)
			if err != nil {
				logger.Warn("[Queue] Failed to read stop flag", "document_id", d.ID, "err", err)
				return nil
			}
			if stopped {
				logger.Info("[Queue] Stop requested, canceling run", "document_id", d.ID)
				controller.Stop()
			}
			return nil
		}

		err = controller.Run(leaseCtx, doc, persist)
		switch {
		case err == nil:
			logger.Info("[Queue] Analysis run completed", "document_id", doc.ID, "chunks", len(doc.Chunks))
			return nil
		case errors.Is(err, context.Canceled) && ctx.Err() == nil:
			// Stopped via the flag, not worker shutdown. The message is done.
			return clearStopFlag(context.WithoutCancel(leaseCtx), conn, doc.ID)
		default:
			return err
		}
	})
}

// recordAnalysisTime stores a timing sample covering the chunks this run
// analyzed. The samples drive duration predictions for queued runs.
func recordAnalysisTime(ctx context.Context, conn *pgxpool.Pool, doc *common.Document, analyzedBefore int, elapsed time.Duration) {
	var chars int64
	analyzed := 0
	for i := range doc.Chunks {
		if !doc.Chunks[i].Analyzed() {
			continue
		}
		analyzed++
		if analyzed > analyzedBefore {
			chars += int64(utf8.RuneCountInString(doc.Chunks[i].Content))
		}
	}
	if chars == 0 {
		return
	}

	err := timing.AddAnalysisTime(context.WithoutCancel(ctx), conn, doc.ID, chars, elapsed.Milliseconds(), "analyze")
	if err != nil {
		logger.Warn("[Queue] Failed to record analysis time", "document_id", doc.ID, "err", err)
	}
}

func stopRequested(ctx context.Context, conn *pgxpool.Pool, documentID string) (bool, error) {
	var stopped bool
	err := conn.QueryRow(ctx, `SELECT stop_requested FROM documents WHERE id = $1`, documentID).Scan(&stopped)
	if err != nil {
		return false, err
	}
	return stopped, nil
}

func clearStopFlag(ctx context.Context, conn *pgxpool.Pool, documentID string) error {
	_, err := conn.Exec(ctx, `UPDATE documents SET stop_requested = false WHERE id = $1`, documentID)
	return err
}
