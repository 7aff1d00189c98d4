package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/septivank/meter-reading-service/tools/timeparser"
)

// Account is a customer account identified by its account number.
type Account struct {
	AccountNumber string `json:"accountNumber"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
}

// Key returns the account's natural key.
func (a Account) Key() string {
	return a.AccountNumber
}

// Describe prefixes account-scoped messages.
func (a Account) Describe() string {
	return fmt.Sprintf("Account %s", a.AccountNumber)
}

// MeterReading is a single meter value for an account on a calendar day.
// Value is kept as written so leading zeros survive a round trip.
type MeterReading struct {
	AccountNumber   string    `json:"accountNumber"`
	ReadingDateTime time.Time `json:"meterReadingDateTime"`
	Value           string    `json:"meterValue"`
}

// UnmarshalJSON reads meterReadingDateTime in any layout upload files
// accept, so text without a zone is taken as UTC.
func (m *MeterReading) UnmarshalJSON(data []byte) error {
	var raw struct {
		AccountNumber   string  `json:"accountNumber"`
		ReadingDateTime *string `json:"meterReadingDateTime"`
		Value           string  `json:"meterValue"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.ReadingDateTime == nil {
		return errors.New("meterReadingDateTime is required")
	}

	readingTime, err := timeparser.ParseMeterTimestamp(*raw.ReadingDateTime)
	if err != nil {
		return err
	}

	*m = MeterReading{
		AccountNumber:   raw.AccountNumber,
		ReadingDateTime: readingTime,
		Value:           raw.Value,
	}
	return nil
}

// ReadingKey is the natural key of a meter reading. Date is always UTC
// midnight, so keys for the same account and day compare equal.
type ReadingKey struct {
	AccountNumber string
	Date          time.Time
}

// NewReadingKey builds the key for an account and any time on the day.
func NewReadingKey(accountNumber string, t time.Time) ReadingKey {
	return ReadingKey{AccountNumber: accountNumber, Date: timeparser.DateOnly(t)}
}

func (k ReadingKey) String() string {
	return fmt.Sprintf("%s %s", k.AccountNumber, k.Date.Format(time.DateOnly))
}

// Key returns the reading's natural key; the time of day is ignored.
func (m MeterReading) Key() ReadingKey {
	return NewReadingKey(m.AccountNumber, m.ReadingDateTime)
}

// Describe prefixes reading-scoped messages.
func (m MeterReading) Describe() string {
	return fmt.Sprintf("Meter reading account number & date %s %s", m.AccountNumber, timeparser.Format(m.ReadingDateTime))
}
