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

type AccountHandler struct {
	service   *service.AccountService
	ingest    ingest.Options
	maxUpload int64
	log       *zap.Logger
}

func NewAccountHandler(service *service.AccountService, opts ingest.Options, maxUpload int64, log *zap.Logger) *AccountHandler {
	return &AccountHandler{service: service, ingest: opts, maxUpload: maxUpload, log: log}
}

func (h *AccountHandler) GetAllAccounts(c *gin.Context) {
	accounts, err := h.service.GetAllAccounts(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (h *AccountHandler) SaveAccount(c *gin.Context) {
	var account domain.Account
	if err := c.ShouldBindJSON(&account); err != nil {
		h.log.Warn("failed to bind account", zap.Error(err))
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	result, err := h.service.PutAccount(c.Request.Context(), account)
	if err != nil {
		c.Error(err)
		return
	}
	if !result.Success {
		c.JSON(http.StatusBadRequest, ierr.Messages(result.Errors))
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *AccountHandler) UploadAccountsFile(c *gin.Context) {
	reader, closeFile, err := openUpload(c, h.maxUpload)
	if err != nil {
		c.Error(err)
		return
	}
	defer closeFile()

	meta := service.BatchMeta{UploadID: uuid.NewString(), Source: mq.SourceUpload}
	result, err := h.service.UploadAccounts(c.Request.Context(), reader, h.ingest, meta)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
