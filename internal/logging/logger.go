package logging

import (
	"go.uber.org/zap"
)

// NewLogger creates a new structured logger
func NewLogger(serviceName string, level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		config.Level = lvl
	}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// WithUploadID returns a logger with upload_id field. Batches without an
// upload id keep the logger unchanged.
func WithUploadID(logger *zap.Logger, uploadID string) *zap.Logger {
	if uploadID == "" {
		return logger
	}
	return logger.With(zap.String("upload_id", uploadID))
}
