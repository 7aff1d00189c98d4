package service

import (
	"context"
	"io"

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

// AccountService handles account reads and writes
type AccountService struct {
	store     repository.Store
	engine    *reconcile.Engine
	validator *validator.Validator
	seeder    *seed.Seeder
	publisher Publisher
	logger    *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(
	store repository.Store,
	engine *reconcile.Engine,
	validator *validator.Validator,
	seeder *seed.Seeder,
	publisher Publisher,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		store:     store,
		engine:    engine,
		validator: validator,
		seeder:    seeder,
		publisher: publisher,
		logger:    logger,
	}
}

// PutAccount validates and upserts a single account
func (s *AccountService) PutAccount(ctx context.Context, account domain.Account) (PutResult, error) {
	if err := s.seeder.Seed(ctx); err != nil {
		return PutResult{}, err
	}

	validation := s.validator.ValidateAccount(account)
	if !validation.Valid {
		return PutResult{
			Errors: lo.Map(validation.Errors, func(msg string, _ int) ierr.RecordError {
				return ierr.Validation(account.Key(), msg)
			}),
		}, nil
	}

	result, err := s.engine.UpsertAccount(ctx, account)
	if err != nil {
		return PutResult{}, err
	}

	s.logger.Info("account saved",
		zap.String("account_number", account.AccountNumber),
		zap.Bool("inserted", result.Inserted))
	return PutResult{Success: result.Success, Errors: result.Errors}, nil
}

// PutAccounts screens and reconciles a batch of accounts
func (s *AccountService) PutAccounts(ctx context.Context, accounts []domain.Account) (BatchResult, error) {
	return s.putAccounts(ctx, accounts, BatchMeta{Source: mq.SourceAPI})
}

func (s *AccountService) putAccounts(ctx context.Context, accounts []domain.Account, meta BatchMeta) (BatchResult, error) {
	if err := s.seeder.Seed(ctx); err != nil {
		return BatchResult{}, err
	}

	logger := logging.WithUploadID(s.logger, meta.UploadID)
	screened := batch.Screen(accounts, batch.AccountRules(func(a domain.Account) []string {
		return s.validator.ValidateAccount(a).Errors
	}))

	result := BatchResult{
		Rejected: screened.Rejected,
		Errors:   screened.Errors,
	}

	if len(screened.Accepted) > 0 {
		bulk, err := s.engine.BulkUpsertAccounts(ctx, screened.Accepted)
		if err != nil {
			logger.Error("failed to reconcile accounts", zap.Error(err))
			return BatchResult{}, err
		}
		result.Accepted = bulk.Written()
		result.Rejected += len(bulk.Errors)
		result.Errors = append(result.Errors, bulk.Errors...)
	}

	logger.Info("accounts batch processed",
		zap.String("source", meta.Source),
		zap.Int("received", len(accounts)),
		zap.Int("accepted", result.Accepted),
		zap.Int("rejected", result.Rejected))

	publishBatch(ctx, s.publisher, RecordTypeAccounts, meta, result, logger)
	return result, nil
}

// UploadAccounts parses delimited account lines and reconciles them
func (s *AccountService) UploadAccounts(ctx context.Context, r io.Reader, opts ingest.Options, meta BatchMeta) (UploadResult, error) {
	parsed, err := ingest.ParseLines(r, opts, ingest.AccountColumns)
	if err != nil {
		return UploadResult{}, ierr.WithError(err).
			WithHint("The uploaded file could not be read").
			Mark(ierr.ErrParse)
	}

	if len(parsed.Records) == 0 {
		return toUploadResult(parsed.SkippedLines, parsed.Errors, BatchResult{}), nil
	}

	result, err := s.putAccounts(ctx, parsed.Records, meta)
	if err != nil {
		return UploadResult{}, err
	}
	return toUploadResult(parsed.SkippedLines, parsed.Errors, result), nil
}

// GetAllAccounts returns every account
func (s *AccountService) GetAllAccounts(ctx context.Context) ([]domain.Account, error) {
	if err := s.seeder.Seed(ctx); err != nil {
		return nil, err
	}

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(accounts, func(a db.Account, _ int) domain.Account { return a.ToDomain() }), nil
}

// GetAccountsByAccountNumbers returns the accounts that exist among numbers
func (s *AccountService) GetAccountsByAccountNumbers(ctx context.Context, numbers []string) ([]domain.Account, error) {
	if err := s.seeder.Seed(ctx); err != nil {
		return nil, err
	}

	var accounts []db.Account
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		accounts, err = tx.FindAccounts(ctx, lo.Uniq(numbers))
		return err
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(accounts, func(a db.Account, _ int) domain.Account { return a.ToDomain() }), nil
}
