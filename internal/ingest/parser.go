package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/septivank/meter-reading-service/internal/errors"
)

// ColumnMapper turns the delimited parts of one line into a record, or
// returns the reasons it could not.
type ColumnMapper[T any] func(parts []string) (T, []apperrors.LineError)

// ParseResult holds the outcome of parsing an upload.
type ParseResult[T any] struct {
	SkippedLines int
	Records      []T
	Errors       []apperrors.RecordError
}

// Options controls how an upload is split into records.
type Options struct {
	Delimiter rune
	// SkipLines is the number of header lines dropped before numbering starts.
	SkipLines int
}

// DefaultOptions matches the upload files: comma separated with one header row.
var DefaultOptions = Options{Delimiter: ',', SkipLines: 1}

// ParseLines reads r line by line and maps every line after the header into
// a record. Bad lines are counted and reported, never fatal; the returned
// error is reserved for failures reading r.
func ParseLines[T any](r io.Reader, opts Options, mapper ColumnMapper[T]) (ParseResult[T], error) {
	var result ParseResult[T]

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	skipped := 0
	lineNumber := 0
	for scanner.Scan() {
		if skipped < opts.SkipLines {
			skipped++
			continue
		}
		lineNumber++
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if strings.TrimSpace(line) == "" {
			result.SkippedLines++
			result.Errors = append(result.Errors, apperrors.BlankLine().At(lineNumber))
			continue
		}

		parts := strings.Split(line, string(opts.Delimiter))
		record, errs := mapper(parts)
		if len(errs) > 0 {
			result.SkippedLines++
			for _, e := range errs {
				result.Errors = append(result.Errors, e.At(lineNumber))
			}
			continue
		}
		result.Records = append(result.Records, record)
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("failed to read upload: %w", err)
	}

	return result, nil
}
