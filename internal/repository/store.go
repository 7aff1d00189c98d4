package repository

import (
	"context"

	"github.com/septivank/meter-reading-service/internal/db"
	"github.com/septivank/meter-reading-service/internal/domain"
)

// Store is the persistence surface the reconciliation engine needs.
// WithTx runs fn in one transaction and commits only if fn returns nil.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	ListAccounts(ctx context.Context) ([]db.Account, error)
	ListReadingsByAccount(ctx context.Context, accountNumber string) ([]db.MeterReading, error)
}

// Tx reads committed state and stages writes for the enclosing transaction.
// Find* methods return a nil row, not an error, when nothing matches.
type Tx interface {
	FindAccount(ctx context.Context, accountNumber string) (*db.Account, error)
	FindAccounts(ctx context.Context, accountNumbers []string) ([]db.Account, error)
	FindReading(ctx context.Context, key domain.ReadingKey) (*db.MeterReading, error)
	FindReadings(ctx context.Context, keys []domain.ReadingKey) ([]db.MeterReading, error)
	Apply(ctx context.Context, changes Changes) error
}

// Changes is the set of writes decided for one batch.
type Changes struct {
	InsertAccounts []db.Account
	UpdateAccounts []db.Account
	InsertReadings []db.MeterReading
	UpdateReadings []db.MeterReading
}

// Empty reports whether there is nothing to write.
func (c Changes) Empty() bool {
	return len(c.InsertAccounts) == 0 && len(c.UpdateAccounts) == 0 &&
		len(c.InsertReadings) == 0 && len(c.UpdateReadings) == 0
}
