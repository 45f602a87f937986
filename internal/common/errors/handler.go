// internal/common/errors/handler.go
package errors

import (
	"time"
)

// ErrorHandler normalizes and logs stage failures at the pipeline boundary.
// Stages recover locally; this exists so every swallowed failure still leaves
// a structured trace.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleStageError normalizes err and logs it with stage context. It returns
// the normalized StandardError so callers can inspect code and retryability.
func (h *ErrorHandler) HandleStageError(stage, conversationID string, err error) *StandardError {
	stdErr := h.normalizeError(err)
	h.logger.Error("stage failed", map[string]interface{}{
		"stage":          stage,
		"conversationId": conversationID,
		"errorCode":      string(stdErr.Code),
		"message":        stdErr.Message,
		"details":        stdErr.Details,
		"retryable":      stdErr.Retryable,
		"retries":        GetRetryCount(stdErr.Code),
		"errorCategory":  GetErrorCategory(stdErr.Code),
	})
	return stdErr
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
