package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/septivank/meter-reading-service/internal/domain"
)

// Account represents an account row in the database
type Account struct {
	ID            uuid.UUID
	AccountNumber string
	FirstName     string
	LastName      string
}

// MeterReading represents a meter reading row in the database.
// AccountNumber is not stored on the row; it is joined from accounts.
type MeterReading struct {
	ID            uuid.UUID
	AccountID     uuid.UUID
	AccountNumber string
	ReadingDate   time.Time
	Value         string
}

func (a Account) ToDomain() domain.Account {
	return domain.Account{
		AccountNumber: a.AccountNumber,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
	}
}

func (m MeterReading) ToDomain() domain.MeterReading {
	return domain.MeterReading{
		AccountNumber:   m.AccountNumber,
		ReadingDateTime: m.ReadingDate,
		Value:           m.Value,
	}
}

// Key returns the natural key of the persisted reading.
func (m MeterReading) Key() domain.ReadingKey {
	return domain.NewReadingKey(m.AccountNumber, m.ReadingDate)
}
