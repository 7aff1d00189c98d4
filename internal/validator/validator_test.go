package validator_test

import (
	"testing"
	"time"

	"github.com/septivank/meter-reading-service/internal/domain"
	"github.com/septivank/meter-reading-service/internal/validator"
	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestValidator() *validator.Validator {
	return validator.NewValidator(func() time.Time { return testNow })
}

func reading(value string, at time.Time) domain.MeterReading {
	return domain.MeterReading{AccountNumber: "123", ReadingDateTime: at, Value: value}
}

func TestValidateAccount_Valid(t *testing.T) {
	result := newTestValidator().ValidateAccount(domain.Account{AccountNumber: "123", FirstName: "Sam", LastName: "McConnell"})

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateAccount_BlankFields(t *testing.T) {
	result := newTestValidator().ValidateAccount(domain.Account{AccountNumber: " ", FirstName: "", LastName: "\t"})

	assert.False(t, result.Valid)
	assert.Equal(t, []string{
		"AccountNumber must have a value",
		"Account  : FirstName must have a value",
		"Account  : LastName must have a value",
	}, result.Errors)
}

func TestValidateAccount_MissingLastName(t *testing.T) {
	result := newTestValidator().ValidateAccount(domain.Account{AccountNumber: "9", FirstName: "A"})

	assert.Equal(t, []string{"Account 9: LastName must have a value"}, result.Errors)
}

func TestValidateMeterReading_Valid(t *testing.T) {
	v := newTestValidator()

	for _, value := range []string{"0", "00001", "12345", "99999"} {
		result := v.ValidateMeterReading(reading(value, testNow.Add(-24*time.Hour)))
		assert.True(t, result.Valid, "value %q: %v", value, result.Errors)
	}
}

func TestValidateMeterReading_TodayIsNotFuture(t *testing.T) {
	result := newTestValidator().ValidateMeterReading(reading("1", time.Date(2024, 6, 15, 23, 59, 0, 0, time.UTC)))

	assert.True(t, result.Valid)
}

func TestValidateMeterReading_TooLong(t *testing.T) {
	result := newTestValidator().ValidateMeterReading(reading("123456", testNow))

	assert.False(t, result.Valid)
	assert.Equal(t, []string{
		"Meter reading account number & date 123 2024-06-15 12:00:00Z: Value (123456) cannot have more than 5 digits",
	}, result.Errors)
}

func TestValidateMeterReading_NotANumber(t *testing.T) {
	result := newTestValidator().ValidateMeterReading(reading("VOID", testNow))

	assert.Equal(t, []string{
		"Meter reading account number & date 123 2024-06-15 12:00:00Z: Value (VOID) could not be parsed to a number",
	}, result.Errors)
}

func TestValidateMeterReading_Negative(t *testing.T) {
	result := newTestValidator().ValidateMeterReading(reading("-1", testNow))

	assert.Equal(t, []string{
		"Meter reading account number & date 123 2024-06-15 12:00:00Z: Value (-1) cannot be negative",
	}, result.Errors)
}

func TestValidateMeterReading_FutureDate(t *testing.T) {
	result := newTestValidator().ValidateMeterReading(reading("1", time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, []string{
		"Meter reading account number & date 123 2024-06-16 00:00:00Z: ReadingDateTime cannot be for a future date",
	}, result.Errors)
}

func TestValidateMeterReading_ReportsEveryRule(t *testing.T) {
	r := domain.MeterReading{ReadingDateTime: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}

	result := newTestValidator().ValidateMeterReading(r)

	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 4)
	assert.Equal(t, "AccountNumber must have a value", result.Errors[0])
	assert.Contains(t, result.Errors[1], "Value must have a value")
	assert.Contains(t, result.Errors[2], "could not be parsed to a number")
	assert.Contains(t, result.Errors[3], "cannot be for a future date")
}
