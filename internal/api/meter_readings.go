package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/septivank/meter-reading-service/internal/domain"
	ierr "github.com/septivank/meter-reading-service/internal/errors"
	"github.com/septivank/meter-reading-service/internal/ingest"
	"github.com/septivank/meter-reading-service/internal/mq"
	"github.com/septivank/meter-reading-service/internal/service"
	"go.uber.org/zap"
)

type MeterReadingHandler struct {
	service   *service.MeterReadingService
	ingest    ingest.Options
	maxUpload int64
	log       *zap.Logger
}

func NewMeterReadingHandler(service *service.MeterReadingService, opts ingest.Options, maxUpload int64, log *zap.Logger) *MeterReadingHandler {
	return &MeterReadingHandler{service: service, ingest: opts, maxUpload: maxUpload, log: log}
}

func (h *MeterReadingHandler) GetMeterReadings(c *gin.Context) {
	readings, err := h.service.GetMeterReadingsByAccountNumber(c.Request.Context(), c.Query("accountNumber"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, readings)
}

func (h *MeterReadingHandler) SaveMeterReading(c *gin.Context) {
	var reading domain.MeterReading
	if err := c.ShouldBindJSON(&reading); err != nil {
		h.log.Warn("failed to bind meter reading", zap.Error(err))
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	result, err := h.service.PutMeterReading(c.Request.Context(), reading)
	if err != nil {
		c.Error(err)
		return
	}
	if !result.Success {
		c.JSON(http.StatusBadRequest, ierr.Messages(result.Errors))
		return
	}
	c.JSON(http.StatusOK, reading)
}

func (h *MeterReadingHandler) UploadMeterReadingsFile(c *gin.Context) {
	reader, closeFile, err := openUpload(c, h.maxUpload)
	if err != nil {
		c.Error(err)
		return
	}
	defer closeFile()

	meta := service.BatchMeta{UploadID: uuid.NewString(), Source: mq.SourceUpload}
	result, err := h.service.UploadMeterReadings(c.Request.Context(), reader, h.ingest, meta)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
