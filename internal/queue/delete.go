package queue

import (
	"context"
	"encoding/json"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/storyweft/novelmap/internal/storage"
	"github.com/storyweft/novelmap/pkg/leaselock"
	"github.com/storyweft/novelmap/pkg/logger"
	"github.com/storyweft/novelmap/pkg/store"
)

// ProcessDeleteMessage removes a document and its stored source files. The
// lease guards against deleting a document mid-analysis; the delete wins
// once the active run's lease expires or is released.
func ProcessDeleteMessage(
	ctx context.Context,
	docs store.DocumentStorage,
	s3Client *awss3.Client,
	locks *leaselock.Client,
	msg string,
) error {
	data := new(QueueDeleteMsg)
	if err := json.Unmarshal([]byte(msg), &data); err != nil {
		return err
	}

	return locks.WithLease(ctx, leaselock.DocumentKey(data.DocumentID), leaselock.Options{
		TTL:         time.Minute,
		TokenPrefix: "delete-",
	}, func(leaseCtx context.Context) error {
		if err := docs.DeleteDocument(leaseCtx, data.DocumentID); err != nil {
			return err
		}

		if s3Client != nil {
			prefix := data.SourceKey
			if prefix == "" {
				prefix = "documents/" + data.DocumentID
			}
			if err := storage.DeleteFolder(leaseCtx, s3Client, prefix); err != nil {
				logger.Warn("[Queue] Failed to delete source files", "document_id", data.DocumentID, "prefix", prefix, "err", err)
			}
		}

		logger.Info("[Queue] Document deleted", "document_id", data.DocumentID)
		return nil
	})
}
