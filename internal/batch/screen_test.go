package batch_test

import (
	"testing"
	"time"

	"github.com/septivank/meter-reading-service/internal/batch"
	"github.com/septivank/meter-reading-service/internal/domain"
	apperrors "github.com/septivank/meter-reading-service/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noErrors[T any](T) []string { return nil }

func TestScreen_AccountDuplicates(t *testing.T) {
	accounts := []domain.Account{
		{AccountNumber: "1", FirstName: "A", LastName: "B"},
		{AccountNumber: "2", FirstName: "C", LastName: "D"},
		{AccountNumber: "1", FirstName: "E", LastName: "F"},
	}

	screened := batch.Screen(accounts, batch.AccountRules(noErrors[domain.Account]))

	assert.Equal(t, accounts[:2], screened.Accepted)
	assert.Equal(t, 1, screened.Rejected)
	require.Len(t, screened.Errors, 1)
	assert.Equal(t, apperrors.ErrCodeDuplicateKey, screened.Errors[0].Kind)
	assert.Equal(t, "1", screened.Errors[0].Key)
	assert.Equal(t, "Account 1: AccountNumber already in list to be uploaded. List must contain no duplicates", screened.Errors[0].Message)
}

func TestScreen_ReadingDuplicatesIgnoreTimeOfDay(t *testing.T) {
	readings := []domain.MeterReading{
		{AccountNumber: "123", ReadingDateTime: time.Date(2020, 1, 1, 8, 0, 0, 0, time.UTC), Value: "1"},
		{AccountNumber: "123", ReadingDateTime: time.Date(2020, 1, 1, 20, 0, 0, 0, time.UTC), Value: "2"},
		{AccountNumber: "123", ReadingDateTime: time.Date(2020, 1, 2, 8, 0, 0, 0, time.UTC), Value: "3"},
	}

	screened := batch.Screen(readings, batch.MeterReadingRules(noErrors[domain.MeterReading]))

	assert.Equal(t, []domain.MeterReading{readings[0], readings[2]}, screened.Accepted)
	assert.Equal(t, 1, screened.Rejected)
	require.Len(t, screened.Errors, 1)
	assert.Equal(t, "123 2020-01-01", screened.Errors[0].Key)
	assert.Contains(t, screened.Errors[0].Message, "Only the date part of the date time matters.")
}

func TestScreen_InvalidRecordStillClaimsKey(t *testing.T) {
	accounts := []domain.Account{
		{AccountNumber: "1"},
		{AccountNumber: "1", FirstName: "A", LastName: "B"},
	}
	validate := func(a domain.Account) []string {
		if a.FirstName == "" {
			return []string{"invalid"}
		}
		return nil
	}

	screened := batch.Screen(accounts, batch.AccountRules(validate))

	assert.Empty(t, screened.Accepted)
	assert.Equal(t, 2, screened.Rejected)
	require.Len(t, screened.Errors, 2)
	assert.Equal(t, apperrors.ErrCodeValidation, screened.Errors[0].Kind)
	assert.Equal(t, apperrors.ErrCodeDuplicateKey, screened.Errors[1].Kind)
}

func TestScreen_ValidationAndDuplicateOnSameRecord(t *testing.T) {
	accounts := []domain.Account{
		{AccountNumber: "1", FirstName: "A", LastName: "B"},
		{AccountNumber: "1"},
	}
	validate := func(a domain.Account) []string {
		if a.FirstName == "" {
			return []string{"first", "last"}
		}
		return nil
	}

	screened := batch.Screen(accounts, batch.AccountRules(validate))

	assert.Len(t, screened.Accepted, 1)
	assert.Equal(t, 1, screened.Rejected)
	assert.Len(t, screened.Errors, 3)
}

func TestScreen_Empty(t *testing.T) {
	screened := batch.Screen([]domain.Account(nil), batch.AccountRules(noErrors[domain.Account]))

	assert.Empty(t, screened.Accepted)
	assert.Zero(t, screened.Rejected)
	assert.Empty(t, screened.Errors)
}
