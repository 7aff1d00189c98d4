package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/septivank/meter-reading-service/internal/api"
	"github.com/septivank/meter-reading-service/internal/domain"
	"github.com/septivank/meter-reading-service/internal/ingest"
	"github.com/septivank/meter-reading-service/internal/mq"
	"github.com/septivank/meter-reading-service/internal/reconcile"
	"github.com/septivank/meter-reading-service/internal/repository"
	"github.com/septivank/meter-reading-service/internal/seed"
	"github.com/septivank/meter-reading-service/internal/service"
	"github.com/septivank/meter-reading-service/internal/validator"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type APITestSuite struct {
	suite.Suite
	router *gin.Engine
}

func TestAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(APITestSuite))
}

func (s *APITestSuite) SetupTest() {
	logger := zap.NewNop()
	store := repository.NewMemory()
	engine := reconcile.NewEngine(store, logger)
	v := validator.NewValidator(func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) })
	seeder := seed.NewSeeder(engine, logger)
	publisher := mq.NoopPublisher{}

	accounts := service.NewAccountService(store, engine, v, seeder, publisher, logger)
	readings := service.NewMeterReadingService(store, engine, v, seeder, publisher, logger)

	s.router = api.NewRouter(api.Handlers{
		Accounts:      api.NewAccountHandler(accounts, ingest.DefaultOptions, 1<<20, logger),
		MeterReadings: api.NewMeterReadingHandler(readings, ingest.DefaultOptions, 1<<20, logger),
	}, logger)
}

func (s *APITestSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req.WithContext(context.Background()))
	return rec
}

func (s *APITestSuite) jsonRequest(method, path string, body any) *http.Request {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (s *APITestSuite) upload(path string, content []byte) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "upload.csv")
	s.Require().NoError(err)
	_, err = part.Write(content)
	s.Require().NoError(err)
	s.Require().NoError(w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func (s *APITestSuite) TestHealth() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *APITestSuite) TestGetAccounts() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/accounts", nil))

	s.Require().Equal(http.StatusOK, rec.Code)
	var accounts []domain.Account
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &accounts))
	s.Len(accounts, 3)
}

func (s *APITestSuite) TestPutAccount() {
	rec := s.do(s.jsonRequest(http.MethodPut, "/api/accounts", domain.Account{AccountNumber: "42", FirstName: "A", LastName: "B"}))
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(s.jsonRequest(http.MethodPut, "/api/accounts", domain.Account{AccountNumber: "43"}))
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	var messages []string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &messages))
	s.Equal([]string{"Account 43: FirstName must have a value", "Account 43: LastName must have a value"}, messages)
}

func (s *APITestSuite) TestPutAccount_MalformedJSON() {
	req := httptest.NewRequest(http.MethodPut, "/api/accounts", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")

	rec := s.do(req)

	s.Require().Equal(http.StatusBadRequest, rec.Code)
	var resp api.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("Invalid request format", resp.Error.Message)
}

func (s *APITestSuite) TestUploadAccounts() {
	rec := s.do(s.upload("/api/accounts", []byte("AccountId,FirstName,LastName\n2344,Tommy,Test\n2233,Barry\n")))

	s.Require().Equal(http.StatusOK, rec.Code)
	var result service.UploadResult
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	s.Equal(1, result.Succeeded)
	s.Equal(1, result.Failed)
}

func (s *APITestSuite) TestUploadMeterReadings() {
	rec := s.do(s.upload("/api/meter-reading-uploads", []byte("AccountId,MeterReadingDateTime,MeterReadValue,\n123,22/04/2019 09:24,01002,\n")))
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/meter-reading-uploads?accountNumber=123", nil))
	s.Require().Equal(http.StatusOK, rec.Code)
	var readings []domain.MeterReading
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &readings))
	s.Len(readings, 4)
}

func (s *APITestSuite) TestUpload_EmptyFile() {
	rec := s.do(s.upload("/api/accounts", nil))

	s.Require().Equal(http.StatusBadRequest, rec.Code)
	var resp api.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("File is empty", resp.Error.Message)
}

func (s *APITestSuite) TestUpload_BinaryFile() {
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

	rec := s.do(s.upload("/api/meter-reading-uploads", png))

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APITestSuite) TestUpload_MissingFile() {
	req := httptest.NewRequest(http.MethodPost, "/api/accounts", bytes.NewBufferString(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

	rec := s.do(req)

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APITestSuite) TestPutMeterReading() {
	reading := domain.MeterReading{AccountNumber: "404", ReadingDateTime: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Value: "1"}

	rec := s.do(s.jsonRequest(http.MethodPut, "/api/meter-reading-uploads", reading))

	s.Require().Equal(http.StatusBadRequest, rec.Code)
	var messages []string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &messages))
	s.Equal([]string{"Meter reading account number & date 404 2020-01-01 00:00:00Z: No existing account number found."}, messages)
}

func (s *APITestSuite) TestPutMeterReading_DateWithoutZone() {
	body := map[string]string{
		"accountNumber":        "123",
		"meterReadingDateTime": "2020-01-02T00:00:00",
		"meterValue":           "00042",
	}

	rec := s.do(s.jsonRequest(http.MethodPut, "/api/meter-reading-uploads", body))
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/meter-reading-uploads?accountNumber=123", nil))
	s.Require().Equal(http.StatusOK, rec.Code)
	var readings []domain.MeterReading
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &readings))
	s.Require().Len(readings, 4)
	s.Equal(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), readings[1].ReadingDateTime)
	s.Equal("00042", readings[1].Value)
}

func (s *APITestSuite) TestPutMeterReading_MissingDate() {
	body := map[string]string{"accountNumber": "123", "meterValue": "1"}

	rec := s.do(s.jsonRequest(http.MethodPut, "/api/meter-reading-uploads", body))

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APITestSuite) TestGetMeterReadings_MissingAccountNumber() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/meter-reading-uploads", nil))

	s.Require().Equal(http.StatusBadRequest, rec.Code)
	var resp api.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("accountNumber must have a value", resp.Error.Message)
}
