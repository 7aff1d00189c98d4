package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers groups the API handlers
type Handlers struct {
	Accounts      *AccountHandler
	MeterReadings *MeterReadingHandler
}

// NewRouter builds the gin engine serving the API
func NewRouter(h Handlers, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger), ErrorHandler(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		accounts := api.Group("/accounts")
		accounts.GET("", h.Accounts.GetAllAccounts)
		accounts.PUT("", h.Accounts.SaveAccount)
		accounts.POST("", h.Accounts.UploadAccountsFile)

		readings := api.Group("/meter-reading-uploads")
		readings.GET("", h.MeterReadings.GetMeterReadings)
		readings.PUT("", h.MeterReadings.SaveMeterReading)
		readings.POST("", h.MeterReadings.UploadMeterReadingsFile)
	}

	return router
}
