package errors

import "fmt"

// RecordError describes why a single record was not persisted. It is a
// value carried in results, not a Go error: a bad record never fails the
// batch it arrived in.
type RecordError struct {
	Kind    string `json:"kind"`
	Key     string `json:"key,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (e RecordError) String() string {
	return e.Message
}

// LineError is why a line could not be mapped into a record. The parser
// attaches the line number with At.
type LineError struct {
	Kind   string
	Detail string
}

// At builds the RecordError for the line.
func (e LineError) At(line int) RecordError {
	return RecordError{
		Kind:    e.Kind,
		Line:    line,
		Message: fmt.Sprintf("Error parsing csv, line %d: %s", line, e.Detail),
	}
}

func BlankLine() LineError {
	return LineError{Kind: ErrCodeBlankLine, Detail: "Blank line"}
}

func ColumnCount(got, expected int) LineError {
	return LineError{
		Kind:   ErrCodeColumnCount,
		Detail: fmt.Sprintf("Number of line parts (%d) not equal to expected (%d)", got, expected),
	}
}

func InvalidDate(text string) LineError {
	return LineError{
		Kind:   ErrCodeInvalidDate,
		Detail: fmt.Sprintf("Could not parse value (%q) to date time", text),
	}
}

// IsParse reports whether the record was rejected before it could be mapped.
func (e RecordError) IsParse() bool {
	switch e.Kind {
	case ErrCodeBlankLine, ErrCodeColumnCount, ErrCodeInvalidDate:
		return true
	}
	return false
}

func Validation(key, message string) RecordError {
	return RecordError{Kind: ErrCodeValidation, Key: key, Message: message}
}

func DuplicateKey(key, message string) RecordError {
	return RecordError{Kind: ErrCodeDuplicateKey, Key: key, Message: message}
}

func Referential(key, message string) RecordError {
	return RecordError{Kind: ErrCodeReferential, Key: key, Message: message}
}

// Messages flattens record errors into their human-readable messages.
func Messages(errs []RecordError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Message)
	}
	return out
}
