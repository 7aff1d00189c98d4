package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/septivank/meter-reading-service/internal/db"
	"github.com/septivank/meter-reading-service/internal/domain"
	ierr "github.com/septivank/meter-reading-service/internal/errors"
)

// MemoryURL selects the in-memory store in place of a database URL.
const MemoryURL = "memory"

type readingIndexKey struct {
	accountID uuid.UUID
	date      string
}

// Memory is an in-process Store. Reads see committed state; writes staged
// through Apply are checked against the same unique constraints as the
// database and land all-or-nothing when the transaction commits.
type Memory struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]db.Account
	byNumber map[string]uuid.UUID
	readings map[uuid.UUID]db.MeterReading
	byKey    map[readingIndexKey]uuid.UUID
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[uuid.UUID]db.Account),
		byNumber: make(map[string]uuid.UUID),
		readings: make(map[uuid.UUID]db.MeterReading),
		byKey:    make(map[readingIndexKey]uuid.UUID),
	}
}

func indexKey(accountID uuid.UUID, m db.MeterReading) readingIndexKey {
	return readingIndexKey{accountID: accountID, date: m.ReadingDate.UTC().Format("2006-01-02")}
}

// WithTx runs fn and commits whatever it applied
func (s *Memory) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return classify(err, "failed to begin transaction")
	}

	tx := &memTx{store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return classify(err, "failed to commit transaction")
	}
	return s.commit(tx.staged)
}

func (s *Memory) commit(staged []Changes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(staged); err != nil {
		return err
	}

	for _, c := range staged {
		for _, a := range c.InsertAccounts {
			s.accounts[a.ID] = a
			s.byNumber[a.AccountNumber] = a.ID
		}
		for _, a := range c.UpdateAccounts {
			existing := s.accounts[a.ID]
			existing.FirstName = a.FirstName
			existing.LastName = a.LastName
			s.accounts[a.ID] = existing
		}
		for _, m := range c.InsertReadings {
			m.AccountNumber = s.accounts[m.AccountID].AccountNumber
			s.readings[m.ID] = m
			s.byKey[indexKey(m.AccountID, m)] = m.ID
		}
		for _, m := range c.UpdateReadings {
			existing := s.readings[m.ID]
			existing.Value = m.Value
			s.readings[m.ID] = existing
		}
	}
	return nil
}

// check enforces the unique and foreign key constraints on the staged
// writes against committed state and against each other.
func (s *Memory) check(staged []Changes) error {
	numbers := make(map[string]uuid.UUID)
	accountIDs := make(map[uuid.UUID]struct{})
	readingKeys := make(map[readingIndexKey]struct{})

	for _, c := range staged {
		for _, a := range c.InsertAccounts {
			if _, ok := s.byNumber[a.AccountNumber]; ok {
				return conflict("accounts_account_number_key", a.AccountNumber)
			}
			if _, ok := numbers[a.AccountNumber]; ok {
				return conflict("accounts_account_number_key", a.AccountNumber)
			}
			numbers[a.AccountNumber] = a.ID
			accountIDs[a.ID] = struct{}{}
		}
		for _, a := range c.UpdateAccounts {
			if _, ok := s.accounts[a.ID]; !ok {
				return missingRow("account", a.ID)
			}
		}
		for _, m := range c.InsertReadings {
			_, committed := s.accounts[m.AccountID]
			_, inBatch := accountIDs[m.AccountID]
			if !committed && !inBatch {
				return ierr.NewError(fmt.Sprintf("meter reading %s references unknown account %s", m.ID, m.AccountID)).
					WithHint("An unexpected database error occurred").
					Mark(ierr.ErrDatabase)
			}
			k := indexKey(m.AccountID, m)
			if _, ok := s.byKey[k]; ok {
				return conflict("meter_readings_account_id_reading_date_key", k.date)
			}
			if _, ok := readingKeys[k]; ok {
				return conflict("meter_readings_account_id_reading_date_key", k.date)
			}
			readingKeys[k] = struct{}{}
		}
		for _, m := range c.UpdateReadings {
			if _, ok := s.readings[m.ID]; !ok {
				return missingRow("meter reading", m.ID)
			}
		}
	}
	return nil
}

func conflict(constraint, value string) error {
	return ierr.NewError(fmt.Sprintf("duplicate key value %q violates unique constraint %q", value, constraint)).
		WithHintf("A record with the same key was written concurrently (%s)", constraint).
		Mark(ierr.ErrStorageConflict)
}

func missingRow(kind string, id uuid.UUID) error {
	return ierr.NewError(fmt.Sprintf("%s %s no longer exists", kind, id)).
		WithHint("The record was changed concurrently, please retry").
		Mark(ierr.ErrStorageConflict)
}

// ListAccounts returns every account ordered by account number
func (s *Memory) ListAccounts(ctx context.Context) ([]db.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]db.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountNumber < accounts[j].AccountNumber
	})
	return accounts, nil
}

// ListReadingsByAccount returns an account's readings ordered by date
func (s *Memory) ListReadingsByAccount(ctx context.Context, accountNumber string) ([]db.MeterReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byNumber[accountNumber]
	if !ok {
		return nil, nil
	}

	var readings []db.MeterReading
	for _, m := range s.readings {
		if m.AccountID == id {
			readings = append(readings, m)
		}
	}
	sort.Slice(readings, func(i, j int) bool {
		return readings[i].ReadingDate.Before(readings[j].ReadingDate)
	})
	return readings, nil
}

// Clear removes all data
func (s *Memory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = make(map[uuid.UUID]db.Account)
	s.byNumber = make(map[string]uuid.UUID)
	s.readings = make(map[uuid.UUID]db.MeterReading)
	s.byKey = make(map[readingIndexKey]uuid.UUID)
}

type memTx struct {
	store  *Memory
	staged []Changes
}

func (t *memTx) FindAccount(ctx context.Context, accountNumber string) (*db.Account, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	id, ok := t.store.byNumber[accountNumber]
	if !ok {
		return nil, nil
	}
	a := t.store.accounts[id]
	return &a, nil
}

func (t *memTx) FindAccounts(ctx context.Context, accountNumbers []string) ([]db.Account, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	var accounts []db.Account
	for _, n := range accountNumbers {
		if id, ok := t.store.byNumber[n]; ok {
			accounts = append(accounts, t.store.accounts[id])
		}
	}
	return accounts, nil
}

func (t *memTx) FindReading(ctx context.Context, key domain.ReadingKey) (*db.MeterReading, error) {
	readings, err := t.FindReadings(ctx, []domain.ReadingKey{key})
	if err != nil || len(readings) == 0 {
		return nil, err
	}
	return &readings[0], nil
}

func (t *memTx) FindReadings(ctx context.Context, keys []domain.ReadingKey) ([]db.MeterReading, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	var readings []db.MeterReading
	for _, k := range keys {
		accountID, ok := t.store.byNumber[k.AccountNumber]
		if !ok {
			continue
		}
		id, ok := t.store.byKey[readingIndexKey{accountID: accountID, date: k.Date.Format("2006-01-02")}]
		if !ok {
			continue
		}
		readings = append(readings, t.store.readings[id])
	}
	return readings, nil
}

func (t *memTx) Apply(ctx context.Context, changes Changes) error {
	if err := ctx.Err(); err != nil {
		return classify(err, "failed to apply batch")
	}
	t.staged = append(t.staged, changes)
	return nil
}
