package batch

import (
	"fmt"

	"github.com/septivank/meter-reading-service/internal/domain"
	apperrors "github.com/septivank/meter-reading-service/internal/errors"
)

// Rules describes how to key, validate, and report duplicates for one record type.
type Rules[T any, K comparable] struct {
	Key       func(T) K
	KeyString func(T) string
	Validate  func(T) []string
	Duplicate func(T) string
}

// Screened is the part of a batch fit for reconciliation plus everything
// that was turned away.
type Screened[T any] struct {
	Accepted []T
	Rejected int
	Errors   []apperrors.RecordError
}

// Screen walks records once. A record is accepted only if it is valid and
// the first occurrence of its key. Every occurrence claims its key, so a
// later copy of an invalid record is still reported as a duplicate.
func Screen[T any, K comparable](records []T, rules Rules[T, K]) Screened[T] {
	var out Screened[T]
	seen := make(map[K]struct{}, len(records))

	for _, record := range records {
		key := rules.KeyString(record)

		var errs []apperrors.RecordError
		for _, msg := range rules.Validate(record) {
			errs = append(errs, apperrors.Validation(key, msg))
		}

		k := rules.Key(record)
		if _, dup := seen[k]; dup {
			errs = append(errs, apperrors.DuplicateKey(key, rules.Duplicate(record)))
		} else {
			seen[k] = struct{}{}
		}

		if len(errs) > 0 {
			out.Rejected++
			out.Errors = append(out.Errors, errs...)
			continue
		}
		out.Accepted = append(out.Accepted, record)
	}

	return out
}

// AccountRules keys accounts by account number.
func AccountRules(validate func(domain.Account) []string) Rules[domain.Account, string] {
	return Rules[domain.Account, string]{
		Key:       domain.Account.Key,
		KeyString: domain.Account.Key,
		Validate:  validate,
		Duplicate: func(a domain.Account) string {
			return fmt.Sprintf("%s: AccountNumber already in list to be uploaded. List must contain no duplicates", a.Describe())
		},
	}
}

// MeterReadingRules keys readings by account number and UTC date.
func MeterReadingRules(validate func(domain.MeterReading) []string) Rules[domain.MeterReading, domain.ReadingKey] {
	return Rules[domain.MeterReading, domain.ReadingKey]{
		Key: domain.MeterReading.Key,
		KeyString: func(m domain.MeterReading) string {
			return m.Key().String()
		},
		Validate: validate,
		Duplicate: func(m domain.MeterReading) string {
			return fmt.Sprintf("%s: Meter reading with the same account number and date is already in list to be uploaded. "+
				"List must contain no duplicates. Only the date part of the date time matters.", m.Describe())
		},
	}
}
