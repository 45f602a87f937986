// Package errors provides standardized error handling for the triage pipeline.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeLLMTimeout           ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMCallFailed        ErrorCode = "LLM_CALL_FAILED"
	ErrCodePayloadParsingFailed ErrorCode = "PAYLOAD_PARSING_FAILED"

	ErrCodeAnalysisFailed  ErrorCode = "ANALYSIS_FAILED"
	ErrCodeAnalysisTimeout ErrorCode = "ANALYSIS_TIMEOUT"

	ErrCodeRetrievalFailed  ErrorCode = "RETRIEVAL_FAILED"
	ErrCodeRetrievalTimeout ErrorCode = "RETRIEVAL_TIMEOUT"
	ErrCodeIndexNotFound    ErrorCode = "INDEX_NOT_FOUND"
	ErrCodeTenantMissing    ErrorCode = "TENANT_MISSING"

	ErrCodeGenerationFailed ErrorCode = "GENERATION_FAILED"
	ErrCodeSuggestionFailed ErrorCode = "SUGGESTION_FAILED"

	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"

	ErrCodeStatusUpdateFailed  ErrorCode = "STATUS_UPDATE_FAILED"
	ErrCodeConversationMissing ErrorCode = "CONVERSATION_MISSING"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewLLMTimeoutError creates a retryable language-model timeout error.
func NewLLMTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   "Language model call timeout",
		Details:   "call exceeded the configured deadline",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMCallFailedError creates a retryable language-model call error.
func NewLLMCallFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMCallFailed,
		Message:   "Language model call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPayloadParsingFailedError creates a non-retryable payload parsing error.
// Retrying the same response text can never succeed.
func NewPayloadParsingFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePayloadParsingFailed,
		Message:   "Model response contained no usable structured payload",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAnalysisFailedError creates a retryable analysis stage error.
func NewAnalysisFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnalysisFailed,
		Message:   "Query analysis failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRetrievalFailedError creates a retryable retrieval error.
func NewRetrievalFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRetrievalFailed,
		Message:   "Knowledge-base search failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRetrievalTimeoutError creates a retryable retrieval timeout error.
func NewRetrievalTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeRetrievalTimeout,
		Message:   "Knowledge-base search timeout",
		Details:   "search exceeded the configured deadline",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexNotFoundError creates a non-retryable index not found error.
func NewIndexNotFoundError(indexName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexNotFound,
		Message:   "Knowledge-base index not found",
		Details:   fmt.Sprintf("indexName: %s", indexName),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTenantMissingError creates a non-retryable validation error for a turn
// that arrived without a tenant identifier.
func NewTenantMissingError(conversationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTenantMissing,
		Message:   "Conversation turn has no tenant identifier",
		Details:   fmt.Sprintf("conversationId: %s", conversationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationFailedError creates a retryable response generation error.
func NewGenerationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationFailed,
		Message:   "Response generation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSuggestionFailedError creates a non-retryable suggestion error; the
// caller substitutes the static fallback suggestion instead.
func NewSuggestionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSuggestionFailed,
		Message:   "Suggestion generation failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError creates a non-retryable cache error; the pipeline
// proceeds without the cache.
func NewCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Response cache unavailable",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStatusUpdateFailedError creates a retryable persistence error.
func NewStatusUpdateFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStatusUpdateFailed,
		Message:   "Conversation status update failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConversationMissingError creates a non-retryable missing-row error.
func NewConversationMissingError(conversationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConversationMissing,
		Message:   "Conversation not found",
		Details:   fmt.Sprintf("conversationId: %s", conversationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Escalation notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Retry / Category Helpers
// ==========================

// retryCount maps error codes to in-stage retry budgets. Zero means the
// stage-local fallback applies immediately.
var retryCount = map[ErrorCode]int{
	ErrCodeLLMTimeout:             2,
	ErrCodeLLMCallFailed:          2,
	ErrCodeAnalysisFailed:         1,
	ErrCodeAnalysisTimeout:        1,
	ErrCodeRetrievalFailed:        1,
	ErrCodeRetrievalTimeout:       1,
	ErrCodeGenerationFailed:       1,
	ErrCodeStatusUpdateFailed:     1,
	ErrCodeNotificationSendFailed: 1,
}

// GetRetryCount returns the retry budget for an error code.
func GetRetryCount(code ErrorCode) int {
	return retryCount[code]
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeLLMTimeout, ErrCodeLLMCallFailed, ErrCodePayloadParsingFailed:
		return "language_model"
	case ErrCodeAnalysisFailed, ErrCodeAnalysisTimeout:
		return "analysis"
	case ErrCodeRetrievalFailed, ErrCodeRetrievalTimeout, ErrCodeIndexNotFound:
		return "retrieval"
	case ErrCodeGenerationFailed, ErrCodeSuggestionFailed:
		return "generation"
	case ErrCodeCacheUnavailable:
		return "cache"
	case ErrCodeStatusUpdateFailed, ErrCodeConversationMissing:
		return "persistence"
	case ErrCodeNotificationSendFailed:
		return "notification"
	case ErrCodeTenantMissing:
		return "validation"
	}
	return "unknown"
}

// IsRetryable reports whether an arbitrary error is a retryable StandardError.
func IsRetryable(err error) bool {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Retryable
	}
	return false
}
