package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/storyweft/novelmap/pkg/analysis"
	"github.com/storyweft/novelmap/pkg/leaselock"
	"github.com/storyweft/novelmap/pkg/logger"
	"github.com/storyweft/novelmap/pkg/store"
)

// ProcessOutlineMessage generates per-chapter outlines for every chunk of a
// document that does not have them yet. Outlining carries no rolling context
// between chunks, so an interrupted run resumes by skipping already-outlined
// chunks on redelivery.
func ProcessOutlineMessage(
	ctx context.Context,
	docs store.DocumentStorage,
	svc analysis.Service,
	locks *leaselock.Client,
	msg string,
) error {
	data := new(QueueOutlineMsg)
	if err := json.Unmarshal([]byte(msg), &data); err != nil {
		return err
	}

	return locks.WithLease(ctx, leaselock.DocumentKey(data.DocumentID), leaselock.Options{
		TTL:         2 * time.Minute,
		TokenPrefix: "outline-",
	}, func(leaseCtx context.Context) error {
		doc, err := docs.GetDocument(leaseCtx, data.DocumentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.Warn("[Queue] Document gone, dropping outline message", "document_id", data.DocumentID)
				return nil
			}
			return err
		}

		controller := analysis.NewOutlineController(svc)
		if err := controller.Run(leaseCtx, doc, docs.SaveDocument); err != nil {
			return err
		}

		logger.Info("[Queue] Outline run completed", "document_id", doc.ID, "chunks", len(doc.Chunks))
		return nil
	})
}
