package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/septivank/meter-reading-service/internal/db"
	"github.com/septivank/meter-reading-service/internal/domain"
	ierr "github.com/septivank/meter-reading-service/internal/errors"
	"github.com/septivank/meter-reading-service/internal/repository"
	"github.com/septivank/meter-reading-service/tools/timeparser"
	"go.uber.org/zap"
)

// UpsertResult is the outcome of reconciling a single record.
type UpsertResult struct {
	Success  bool
	Inserted bool
	Errors   []ierr.RecordError
}

// BulkResult is the outcome of reconciling a batch. Errors lists the
// records that could not be written; the rest of the batch was.
type BulkResult struct {
	Inserted int
	Updated  int
	Errors   []ierr.RecordError
}

// Written is the number of records inserted or updated.
func (r BulkResult) Written() int {
	return r.Inserted + r.Updated
}

// Engine decides, for each incoming record, whether it inserts a new row or
// updates the row with the same natural key, and commits each decision set
// in one transaction. Bulk calls cost a constant number of queries.
type Engine struct {
	store  repository.Store
	logger *zap.Logger
	newID  func() uuid.UUID
}

// NewEngine creates a reconciliation engine over store
func NewEngine(store repository.Store, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
		newID:  uuid.New,
	}
}

// UpsertAccount inserts the account or overwrites the names of the existing
// account with the same number.
func (e *Engine) UpsertAccount(ctx context.Context, account domain.Account) (UpsertResult, error) {
	var result UpsertResult

	err := e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		existing, err := tx.FindAccount(ctx, account.AccountNumber)
		if err != nil {
			return err
		}

		var changes repository.Changes
		if existing == nil {
			changes.InsertAccounts = append(changes.InsertAccounts, e.newAccount(account))
			result.Inserted = true
		} else {
			changes.UpdateAccounts = append(changes.UpdateAccounts, updatedAccount(*existing, account))
		}
		return tx.Apply(ctx, changes)
	})
	if err != nil {
		e.logger.Error("failed to upsert account",
			zap.String("account_number", account.AccountNumber),
			zap.Error(err))
		return UpsertResult{}, fmt.Errorf("failed to upsert account %s: %w", account.AccountNumber, err)
	}

	result.Success = true
	return result, nil
}

// BulkUpsertAccounts reconciles a batch whose account numbers are unique.
func (e *Engine) BulkUpsertAccounts(ctx context.Context, accounts []domain.Account) (BulkResult, error) {
	return e.bulkAccounts(ctx, accounts, true)
}

// InsertMissingAccounts inserts the accounts that do not exist yet and
// leaves existing ones untouched.
func (e *Engine) InsertMissingAccounts(ctx context.Context, accounts []domain.Account) (BulkResult, error) {
	return e.bulkAccounts(ctx, accounts, false)
}

func (e *Engine) bulkAccounts(ctx context.Context, accounts []domain.Account, overwrite bool) (BulkResult, error) {
	var result BulkResult
	if len(accounts) == 0 {
		return result, nil
	}

	err := e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		numbers := lo.Uniq(lo.Map(accounts, func(a domain.Account, _ int) string { return a.AccountNumber }))
		persisted, err := tx.FindAccounts(ctx, numbers)
		if err != nil {
			return err
		}
		byNumber := lo.KeyBy(persisted, func(a db.Account) string { return a.AccountNumber })

		var changes repository.Changes
		for _, account := range accounts {
			if existing, ok := byNumber[account.AccountNumber]; ok {
				if overwrite {
					changes.UpdateAccounts = append(changes.UpdateAccounts, updatedAccount(existing, account))
				}
				continue
			}
			changes.InsertAccounts = append(changes.InsertAccounts, e.newAccount(account))
		}

		if err := tx.Apply(ctx, changes); err != nil {
			return err
		}
		result.Inserted = len(changes.InsertAccounts)
		result.Updated = len(changes.UpdateAccounts)
		return nil
	})
	if err != nil {
		e.logger.Error("failed to bulk upsert accounts",
			zap.Int("batch_size", len(accounts)),
			zap.Error(err))
		return BulkResult{}, fmt.Errorf("failed to bulk upsert accounts: %w", err)
	}

	e.logger.Debug("accounts reconciled",
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated))
	return result, nil
}

// UpsertMeterReading inserts the reading or overwrites the value of the
// existing reading for the same account and day. A reading for an unknown
// account is reported in the result, not as an error.
func (e *Engine) UpsertMeterReading(ctx context.Context, reading domain.MeterReading) (UpsertResult, error) {
	var result UpsertResult

	err := e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		existing, err := tx.FindReading(ctx, reading.Key())
		if err != nil {
			return err
		}

		var changes repository.Changes
		if existing != nil {
			changes.UpdateReadings = append(changes.UpdateReadings, updatedReading(*existing, reading))
			return tx.Apply(ctx, changes)
		}

		account, err := tx.FindAccount(ctx, reading.AccountNumber)
		if err != nil {
			return err
		}
		if account == nil {
			result.Errors = append(result.Errors, unknownAccount(reading))
			return nil
		}

		changes.InsertReadings = append(changes.InsertReadings, e.newReading(reading, account.ID))
		result.Inserted = true
		return tx.Apply(ctx, changes)
	})
	if err != nil {
		e.logger.Error("failed to upsert meter reading",
			zap.String("key", reading.Key().String()),
			zap.Error(err))
		return UpsertResult{}, fmt.Errorf("failed to upsert meter reading %s: %w", reading.Key(), err)
	}

	result.Success = len(result.Errors) == 0
	return result, nil
}

// BulkUpsertMeterReadings reconciles a batch whose (account, date) keys are
// unique. Existing readings are found with one lookup; the accounts of new
// readings are resolved with one more. Readings whose account does not
// exist are reported and skipped without blocking the rest.
func (e *Engine) BulkUpsertMeterReadings(ctx context.Context, readings []domain.MeterReading) (BulkResult, error) {
	return e.bulkMeterReadings(ctx, readings, true)
}

// InsertMissingMeterReadings inserts the readings whose key is not stored yet
// and leaves existing values untouched.
func (e *Engine) InsertMissingMeterReadings(ctx context.Context, readings []domain.MeterReading) (BulkResult, error) {
	return e.bulkMeterReadings(ctx, readings, false)
}

func (e *Engine) bulkMeterReadings(ctx context.Context, readings []domain.MeterReading, overwrite bool) (BulkResult, error) {
	var result BulkResult
	if len(readings) == 0 {
		return result, nil
	}

	err := e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		result = BulkResult{}

		keys := lo.Uniq(lo.Map(readings, func(m domain.MeterReading, _ int) domain.ReadingKey { return m.Key() }))
		persisted, err := tx.FindReadings(ctx, keys)
		if err != nil {
			return err
		}
		byKey := lo.KeyBy(persisted, db.MeterReading.Key)

		var changes repository.Changes
		var inserts []domain.MeterReading
		for _, reading := range readings {
			if existing, ok := byKey[reading.Key()]; ok {
				if overwrite {
					changes.UpdateReadings = append(changes.UpdateReadings, updatedReading(existing, reading))
				}
				continue
			}
			inserts = append(inserts, reading)
		}

		if len(inserts) > 0 {
			numbers := lo.Uniq(lo.Map(inserts, func(m domain.MeterReading, _ int) string { return m.AccountNumber }))
			accounts, err := tx.FindAccounts(ctx, numbers)
			if err != nil {
				return err
			}
			accountIDs := lo.SliceToMap(accounts, func(a db.Account) (string, uuid.UUID) {
				return a.AccountNumber, a.ID
			})

			for _, reading := range inserts {
				accountID, ok := accountIDs[reading.AccountNumber]
				if !ok {
					result.Errors = append(result.Errors, unknownAccount(reading))
					continue
				}
				changes.InsertReadings = append(changes.InsertReadings, e.newReading(reading, accountID))
			}
		}

		if err := tx.Apply(ctx, changes); err != nil {
			return err
		}
		result.Inserted = len(changes.InsertReadings)
		result.Updated = len(changes.UpdateReadings)
		return nil
	})
	if err != nil {
		e.logger.Error("failed to bulk upsert meter readings",
			zap.Int("batch_size", len(readings)),
			zap.Error(err))
		return BulkResult{}, fmt.Errorf("failed to bulk upsert meter readings: %w", err)
	}

	e.logger.Debug("meter readings reconciled",
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("unresolved", len(result.Errors)))
	return result, nil
}

func (e *Engine) newAccount(account domain.Account) db.Account {
	return db.Account{
		ID:            e.newID(),
		AccountNumber: account.AccountNumber,
		FirstName:     account.FirstName,
		LastName:      account.LastName,
	}
}

func updatedAccount(existing db.Account, account domain.Account) db.Account {
	existing.FirstName = account.FirstName
	existing.LastName = account.LastName
	return existing
}

func (e *Engine) newReading(reading domain.MeterReading, accountID uuid.UUID) db.MeterReading {
	return db.MeterReading{
		ID:            e.newID(),
		AccountID:     accountID,
		AccountNumber: reading.AccountNumber,
		ReadingDate:   timeparser.DateOnly(reading.ReadingDateTime),
		Value:         reading.Value,
	}
}

func updatedReading(existing db.MeterReading, reading domain.MeterReading) db.MeterReading {
	existing.Value = reading.Value
	return existing
}

func unknownAccount(reading domain.MeterReading) ierr.RecordError {
	return ierr.Referential(reading.Key().String(),
		fmt.Sprintf("%s: No existing account number found.", reading.Describe()))
}
