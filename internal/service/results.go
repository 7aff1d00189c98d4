package service

import (
	"context"
	"time"

	ierr "github.com/septivank/meter-reading-service/internal/errors"
	"github.com/septivank/meter-reading-service/internal/mq"
	"go.uber.org/zap"
)

// Record types carried in events and upload messages.
const (
	RecordTypeAccounts      = "accounts"
	RecordTypeMeterReadings = "meter_readings"
)

// PutResult is the outcome of a single-record call.
type PutResult struct {
	Success bool               `json:"success"`
	Errors  []ierr.RecordError `json:"errors,omitempty"`
}

// BatchResult is the outcome of a batch call. Accepted counts records
// written; Rejected counts records turned away by validation, duplicate
// keys, or unknown accounts.
type BatchResult struct {
	Accepted int                `json:"accepted"`
	Rejected int                `json:"rejected"`
	Errors   []ierr.RecordError `json:"errors"`
}

// UploadResult is the outcome of an upload. Failed includes lines that
// could not be parsed.
type UploadResult struct {
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Errors    []ierr.RecordError `json:"errors"`
}

// BatchMeta identifies where a batch came from.
type BatchMeta struct {
	UploadID string
	Source   string
}

// Publisher announces reconciled batches.
type Publisher interface {
	PublishBatchProcessed(ctx context.Context, event mq.BatchProcessedEvent) error
}

func toUploadResult(skipped int, parseErrors []ierr.RecordError, batch BatchResult) UploadResult {
	errs := make([]ierr.RecordError, 0, len(parseErrors)+len(batch.Errors))
	errs = append(errs, parseErrors...)
	errs = append(errs, batch.Errors...)
	return UploadResult{
		Succeeded: batch.Accepted,
		Failed:    batch.Rejected + skipped,
		Errors:    errs,
	}
}

func batchEvent(recordType string, meta BatchMeta, result BatchResult, now time.Time) mq.BatchProcessedEvent {
	return mq.BatchProcessedEvent{
		UploadID:    meta.UploadID,
		RecordType:  recordType,
		Source:      meta.Source,
		Accepted:    result.Accepted,
		Rejected:    result.Rejected,
		Errors:      result.Errors,
		ProcessedAt: now.UTC(),
	}
}

func publishBatch(ctx context.Context, publisher Publisher, recordType string, meta BatchMeta, result BatchResult, logger *zap.Logger) {
	event := batchEvent(recordType, meta, result, time.Now())
	if err := publisher.PublishBatchProcessed(ctx, event); err != nil {
		// the batch is already committed
		logger.Error("failed to publish event",
			zap.Error(err),
			zap.String("record_type", recordType),
			zap.String("upload_id", meta.UploadID))
	}
}
