package ingest

import (
	"github.com/septivank/meter-reading-service/internal/domain"
	apperrors "github.com/septivank/meter-reading-service/internal/errors"
	"github.com/septivank/meter-reading-service/tools/timeparser"
)

const (
	accountColumns      = 3
	meterReadingColumns = 3
)

// AccountColumns maps accountNumber,firstName,lastName.
func AccountColumns(parts []string) (domain.Account, []apperrors.LineError) {
	if len(parts) != accountColumns {
		return domain.Account{}, []apperrors.LineError{apperrors.ColumnCount(len(parts), accountColumns)}
	}

	return domain.Account{
		AccountNumber: parts[0],
		FirstName:     parts[1],
		LastName:      parts[2],
	}, nil
}

// MeterReadingColumns maps accountNumber,readingDateTime,value. Meter
// exports often end every line with an empty cell, so trailing columns
// are ignored.
func MeterReadingColumns(parts []string) (domain.MeterReading, []apperrors.LineError) {
	if len(parts) < meterReadingColumns {
		return domain.MeterReading{}, []apperrors.LineError{apperrors.ColumnCount(len(parts), meterReadingColumns)}
	}

	readingTime, err := timeparser.ParseMeterTimestamp(parts[1])
	if err != nil {
		return domain.MeterReading{}, []apperrors.LineError{apperrors.InvalidDate(parts[1])}
	}

	return domain.MeterReading{
		AccountNumber:   parts[0],
		ReadingDateTime: readingTime,
		Value:           parts[2],
	}, nil
}
