package service

import (
	"encoding/json"

	ierr "github.com/septivank/meter-reading-service/internal/errors"
	"github.com/septivank/meter-reading-service/internal/ingest"
	"github.com/septivank/meter-reading-service/internal/mq"
	"go.uber.org/zap"
)

func (s *ServiceTestSuite) processor() *ProcessorService {
	return NewProcessorService(s.accounts, s.readings, ingest.DefaultOptions, zap.NewNop())
}

func (s *ServiceTestSuite) message(msg UploadMessage) []byte {
	body, err := json.Marshal(msg)
	s.Require().NoError(err)
	return body
}

func (s *ServiceTestSuite) TestProcessMessage_MeterReadings() {
	body := s.message(UploadMessage{
		UploadID:   "q-1",
		RecordType: RecordTypeMeterReadings,
		Content:    "AccountId,MeterReadingDateTime,MeterReadValue\n321,22/04/2019 09:24,00123\n",
	})

	s.Require().NoError(s.processor().ProcessMessage(s.ctx, body))

	readings, err := s.readings.GetMeterReadingsByAccountNumber(s.ctx, "321")
	s.Require().NoError(err)
	s.Require().Len(readings, 1)
	s.Equal("00123", readings[0].Value)

	s.Require().Len(s.publisher.events, 1)
	s.Equal("q-1", s.publisher.events[0].UploadID)
	s.Equal(mq.SourceQueue, s.publisher.events[0].Source)
}

func (s *ServiceTestSuite) TestProcessMessage_AccountsWithOptions() {
	skip := 0
	body := s.message(UploadMessage{
		UploadID:   "q-2",
		RecordType: RecordTypeAccounts,
		Delimiter:  "|",
		SkipLines:  &skip,
		Content:    "700|Ada|Lovelace\n",
	})

	s.Require().NoError(s.processor().ProcessMessage(s.ctx, body))

	accounts, err := s.accounts.GetAccountsByAccountNumbers(s.ctx, []string{"700"})
	s.Require().NoError(err)
	s.Len(accounts, 1)
}

func (s *ServiceTestSuite) TestProcessMessage_BadRecordsDoNotFailMessage() {
	body := s.message(UploadMessage{
		RecordType: RecordTypeAccounts,
		Content:    "header\nonly-one-column\n",
	})

	s.NoError(s.processor().ProcessMessage(s.ctx, body))
}

func (s *ServiceTestSuite) TestProcessMessage_Invalid() {
	negative := -1
	tests := []struct {
		name string
		body []byte
	}{
		{"not json", []byte("{")},
		{"unknown record type", s.message(UploadMessage{RecordType: "invoices"})},
		{"multi-character delimiter", s.message(UploadMessage{RecordType: RecordTypeAccounts, Delimiter: "::"})},
		{"negative skip lines", s.message(UploadMessage{RecordType: RecordTypeAccounts, SkipLines: &negative})},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			err := s.processor().ProcessMessage(s.ctx, tt.body)
			s.Require().Error(err)
			s.Equal(ierr.ErrCodeInvalidMessage, ierr.CodeFromErr(err))
			s.False(ierr.IsStorageTransient(err))
		})
	}
}
