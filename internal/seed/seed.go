package seed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/septivank/meter-reading-service/internal/domain"
	"github.com/septivank/meter-reading-service/internal/reconcile"
	"go.uber.org/zap"
)

// Accounts is the baseline set of accounts.
var Accounts = []domain.Account{
	{AccountNumber: "123", FirstName: "Sam", LastName: "McConnell"},
	{AccountNumber: "321", FirstName: "Test First Name 1", LastName: "Test Last Name 1"},
	{AccountNumber: "111", FirstName: "Test First Name 2", LastName: "Test Last Name 2"},
}

// MeterReadings is the baseline set of readings. Each references an
// account in Accounts.
var MeterReadings = []domain.MeterReading{
	{AccountNumber: "123", ReadingDateTime: date(2020, time.January, 1), Value: "12345"},
	{AccountNumber: "123", ReadingDateTime: date(2021, time.December, 31), Value: "54321"},
	{AccountNumber: "123", ReadingDateTime: date(2022, time.June, 6), Value: "99999"},
	{AccountNumber: "111", ReadingDateTime: date(2020, time.January, 1), Value: "00001"},
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Seeder populates baseline data at most once per process. A stage is only
// marked done after it succeeds, so a failed seed is retried by the next
// caller. Only rows missing from storage are inserted: data changed since
// an earlier seed is kept, and a seed racing another process either loses
// on the unique constraints and retries later or finds nothing to do.
type Seeder struct {
	engine *reconcile.Engine
	logger *zap.Logger

	// done is set once every stage succeeded; later calls skip the lock
	done atomic.Bool

	mu           sync.Mutex
	accountsDone bool
}

// NewSeeder returns a Seeder that writes through engine.
func NewSeeder(engine *reconcile.Engine, logger *zap.Logger) *Seeder {
	return &Seeder{engine: engine, logger: logger}
}

// Seed runs every stage.
func (s *Seeder) Seed(ctx context.Context) error {
	return s.SeedMeterReadings(ctx)
}

// SeedAccounts inserts the baseline accounts.
func (s *Seeder) SeedAccounts(ctx context.Context) error {
	if s.done.Load() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seedAccountsLocked(ctx)
}

// SeedMeterReadings inserts the baseline readings, seeding accounts first.
func (s *Seeder) SeedMeterReadings(ctx context.Context) error {
	if s.done.Load() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done.Load() {
		return nil
	}
	if err := s.seedAccountsLocked(ctx); err != nil {
		return err
	}

	result, err := s.engine.InsertMissingMeterReadings(ctx, MeterReadings)
	if err != nil {
		return fmt.Errorf("failed to seed meter readings: %w", err)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("failed to seed meter readings: %s", result.Errors[0].Message)
	}

	s.done.Store(true)
	s.logger.Info("meter readings seeded",
		zap.Int("inserted", result.Inserted),
		zap.Int("already_present", len(MeterReadings)-result.Inserted))
	return nil
}

func (s *Seeder) seedAccountsLocked(ctx context.Context) error {
	if s.accountsDone {
		return nil
	}

	result, err := s.engine.InsertMissingAccounts(ctx, Accounts)
	if err != nil {
		return fmt.Errorf("failed to seed accounts: %w", err)
	}

	s.accountsDone = true
	s.logger.Info("accounts seeded",
		zap.Int("inserted", result.Inserted),
		zap.Int("already_present", len(Accounts)-result.Inserted))
	return nil
}

// Done reports whether every stage has completed.
func (s *Seeder) Done() bool {
	return s.done.Load()
}
