package service

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	ierr "github.com/septivank/meter-reading-service/internal/errors"
	"github.com/septivank/meter-reading-service/internal/ingest"
	"github.com/septivank/meter-reading-service/internal/logging"
	"github.com/septivank/meter-reading-service/internal/mq"
	"go.uber.org/zap"
)

// UploadMessage represents an upload delivered through RabbitMQ
type UploadMessage struct {
	UploadID   string `json:"upload_id"`
	RecordType string `json:"record_type"`
	Delimiter  string `json:"delimiter,omitempty"`
	SkipLines  *int   `json:"skip_lines,omitempty"`
	Content    string `json:"content"`
}

// ProcessorService turns queued uploads into batches
type ProcessorService struct {
	accounts *AccountService
	readings *MeterReadingService
	defaults ingest.Options
	logger   *zap.Logger
}

// NewProcessorService creates a new processor service
func NewProcessorService(
	accounts *AccountService,
	readings *MeterReadingService,
	defaults ingest.Options,
	logger *zap.Logger,
) *ProcessorService {
	return &ProcessorService{
		accounts: accounts,
		readings: readings,
		defaults: defaults,
		logger:   logger,
	}
}

// ProcessMessage processes a queued upload. Bad records are reported in the
// published batch event and do not fail the message; a malformed message or
// a storage failure does, which dead-letters it.
func (s *ProcessorService) ProcessMessage(ctx context.Context, body []byte) error {
	var msg UploadMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return ierr.WithError(err).
			WithMessage("failed to unmarshal message").
			Mark(ierr.ErrInvalidMessage)
	}

	reqLogger := logging.WithUploadID(s.logger, msg.UploadID)
	reqLogger.Info("processing upload message",
		zap.String("record_type", msg.RecordType),
		zap.Int("content_size", len(msg.Content)),
	)

	opts, err := s.options(msg)
	if err != nil {
		reqLogger.Error("invalid upload options", zap.Error(err))
		return err
	}

	meta := BatchMeta{UploadID: msg.UploadID, Source: mq.SourceQueue}
	content := strings.NewReader(msg.Content)

	var result UploadResult
	switch msg.RecordType {
	case RecordTypeAccounts:
		result, err = s.accounts.UploadAccounts(ctx, content, opts, meta)
	case RecordTypeMeterReadings:
		result, err = s.readings.UploadMeterReadings(ctx, content, opts, meta)
	default:
		err = ierr.NewError("unknown record type " + msg.RecordType).
			WithHintf("record_type must be %q or %q", RecordTypeAccounts, RecordTypeMeterReadings).
			Mark(ierr.ErrInvalidMessage)
	}
	if err != nil {
		reqLogger.Error("failed to process upload", zap.Error(err))
		return err
	}

	reqLogger.Info("upload processed successfully",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	return nil
}

func (s *ProcessorService) options(msg UploadMessage) (ingest.Options, error) {
	opts := s.defaults
	if msg.Delimiter != "" {
		r, size := utf8.DecodeRuneInString(msg.Delimiter)
		if size != len(msg.Delimiter) || r == utf8.RuneError {
			return opts, ierr.NewError("delimiter must be a single character").
				WithHint("delimiter must be a single character").
				Mark(ierr.ErrInvalidMessage)
		}
		opts.Delimiter = r
	}
	if msg.SkipLines != nil {
		if *msg.SkipLines < 0 {
			return opts, ierr.NewError("skip_lines is negative").
				WithHint("skip_lines cannot be negative").
				Mark(ierr.ErrInvalidMessage)
		}
		opts.SkipLines = *msg.SkipLines
	}
	return opts, nil
}
