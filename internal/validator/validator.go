package validator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/septivank/meter-reading-service/internal/domain"
	"github.com/septivank/meter-reading-service/tools/timeparser"
)

// MaxValueLength is the maximum number of characters in a meter value.
const MaxValueLength = 5

// Result holds validation outcome. Errors lists every rule the record broke.
type Result struct {
	Valid  bool
	Errors []string
}

func newResult(errs []string) Result {
	return Result{Valid: len(errs) == 0, Errors: errs}
}

// Validator checks single records against structural and business rules.
type Validator struct {
	now func() time.Time
}

// NewValidator creates a validator reading the current time from now.
// A nil clock falls back to time.Now.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

// ValidateAccount validates a single account
func (v *Validator) ValidateAccount(account domain.Account) Result {
	var errs []string

	if isBlank(account.AccountNumber) {
		errs = append(errs, "AccountNumber must have a value")
	}
	if isBlank(account.FirstName) {
		errs = append(errs, fmt.Sprintf("%s: FirstName must have a value", account.Describe()))
	}
	if isBlank(account.LastName) {
		errs = append(errs, fmt.Sprintf("%s: LastName must have a value", account.Describe()))
	}

	return newResult(errs)
}

// ValidateMeterReading validates a single meter reading. All checks run;
// the future-date check compares UTC calendar days.
func (v *Validator) ValidateMeterReading(reading domain.MeterReading) Result {
	var errs []string
	prefix := reading.Describe()

	if isBlank(reading.AccountNumber) {
		errs = append(errs, "AccountNumber must have a value")
	}

	if isBlank(reading.Value) {
		errs = append(errs, fmt.Sprintf("%s: Value must have a value", prefix))
	}
	if len(reading.Value) > MaxValueLength {
		errs = append(errs, fmt.Sprintf("%s: Value (%s) cannot have more than %d digits", prefix, reading.Value, MaxValueLength))
	}
	parsed, err := strconv.Atoi(reading.Value)
	if err != nil {
		errs = append(errs, fmt.Sprintf("%s: Value (%s) could not be parsed to a number", prefix, reading.Value))
	} else if parsed < 0 {
		errs = append(errs, fmt.Sprintf("%s: Value (%s) cannot be negative", prefix, reading.Value))
	}

	if timeparser.IsFutureDate(reading.ReadingDateTime, v.now()) {
		errs = append(errs, fmt.Sprintf("%s: ReadingDateTime cannot be for a future date", prefix))
	}

	return newResult(errs)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
