package service

import (
	"context"
	"io"
	"strings"

	"github.com/samber/lo"
	"github.com/septivank/meter-reading-service/internal/batch"
	"github.com/septivank/meter-reading-service/internal/db"
	"github.com/septivank/meter-reading-service/internal/domain"
	ierr "github.com/septivank/meter-reading-service/internal/errors"
	"github.com/septivank/meter-reading-service/internal/ingest"
	"github.com/septivank/meter-reading-service/internal/logging"
	"github.com/septivank/meter-reading-service/internal/mq"
	"github.com/septivank/meter-reading-service/internal/reconcile"
	"github.com/septivank/meter-reading-service/internal/repository"
	"github.com/septivank/meter-reading-service/internal/seed"
	"github.com/septivank/meter-reading-service/internal/validator"
	"go.uber.org/zap"
)

// MeterReadingService handles meter reading reads and writes
type MeterReadingService struct {
	store     repository.Store
	engine    *reconcile.Engine
	validator *validator.Validator
	seeder    *seed.Seeder
	publisher Publisher
	logger    *zap.Logger
}

// NewMeterReadingService creates a new meter reading service
func NewMeterReadingService(
	store repository.Store,
	engine *reconcile.Engine,
	validator *validator.Validator,
	seeder *seed.Seeder,
	publisher Publisher,
	logger *zap.Logger,
) *MeterReadingService {
	return &MeterReadingService{
		store:     store,
		engine:    engine,
		validator: validator,
		seeder:    seeder,
		publisher: publisher,
		logger:    logger,
	}
}

// GetMeterReadingsByAccountNumber returns an account's readings ordered by date
func (s *MeterReadingService) GetMeterReadingsByAccountNumber(ctx context.Context, accountNumber string) ([]domain.MeterReading, error) {
	if err := s.seeder.Seed(ctx); err != nil {
		return nil, err
	}

	if strings.TrimSpace(accountNumber) == "" {
		return nil, ierr.NewError("account number is blank").
			WithHint("accountNumber must have a value").
			Mark(ierr.ErrValidation)
	}

	readings, err := s.store.ListReadingsByAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	return lo.Map(readings, func(m db.MeterReading, _ int) domain.MeterReading { return m.ToDomain() }), nil
}

// PutMeterReading validates and upserts a single reading
func (s *MeterReadingService) PutMeterReading(ctx context.Context, reading domain.MeterReading) (PutResult, error) {
	if err := s.seeder.Seed(ctx); err != nil {
		return PutResult{}, err
	}

	validation := s.validator.ValidateMeterReading(reading)
	if !validation.Valid {
		key := reading.Key().String()
		return PutResult{
			Errors: lo.Map(validation.Errors, func(msg string, _ int) ierr.RecordError {
				return ierr.Validation(key, msg)
			}),
		}, nil
	}

	result, err := s.engine.UpsertMeterReading(ctx, reading)
	if err != nil {
		return PutResult{}, err
	}

	s.logger.Info("meter reading saved",
		zap.String("key", reading.Key().String()),
		zap.Bool("success", result.Success),
		zap.Bool("inserted", result.Inserted))
	return PutResult{Success: result.Success, Errors: result.Errors}, nil
}

// PutMeterReadings screens and reconciles a batch of readings
func (s *MeterReadingService) PutMeterReadings(ctx context.Context, readings []domain.MeterReading) (BatchResult, error) {
	return s.putMeterReadings(ctx, readings, BatchMeta{Source: mq.SourceAPI})
}

func (s *MeterReadingService) putMeterReadings(ctx context.Context, readings []domain.MeterReading, meta BatchMeta) (BatchResult, error) {
	if err := s.seeder.Seed(ctx); err != nil {
		return BatchResult{}, err
	}

	logger := logging.WithUploadID(s.logger, meta.UploadID)
	screened := batch.Screen(readings, batch.MeterReadingRules(func(m domain.MeterReading) []string {
		return s.validator.ValidateMeterReading(m).Errors
	}))

	result := BatchResult{
		Rejected: screened.Rejected,
		Errors:   screened.Errors,
	}

	if len(screened.Accepted) > 0 {
		bulk, err := s.engine.BulkUpsertMeterReadings(ctx, screened.Accepted)
		if err != nil {
			logger.Error("failed to reconcile meter readings", zap.Error(err))
			return BatchResult{}, err
		}
		result.Accepted = bulk.Written()
		result.Rejected += len(bulk.Errors)
		result.Errors = append(result.Errors, bulk.Errors...)
	}

	logger.Info("meter readings batch processed",
		zap.String("source", meta.Source),
		zap.Int("received", len(readings)),
		zap.Int("accepted", result.Accepted),
		zap.Int("rejected", result.Rejected))

	publishBatch(ctx, s.publisher, RecordTypeMeterReadings, meta, result, logger)
	return result, nil
}

// UploadMeterReadings parses delimited reading lines and reconciles them
func (s *MeterReadingService) UploadMeterReadings(ctx context.Context, r io.Reader, opts ingest.Options, meta BatchMeta) (UploadResult, error) {
	parsed, err := ingest.ParseLines(r, opts, ingest.MeterReadingColumns)
	if err != nil {
		return UploadResult{}, ierr.WithError(err).
			WithHint("The uploaded file could not be read").
			Mark(ierr.ErrParse)
	}

	if len(parsed.Records) == 0 {
		return toUploadResult(parsed.SkippedLines, parsed.Errors, BatchResult{}), nil
	}

	result, err := s.putMeterReadings(ctx, parsed.Records, meta)
	if err != nil {
		return UploadResult{}, err
	}
	return toUploadResult(parsed.SkippedLines, parsed.Errors, result), nil
}
