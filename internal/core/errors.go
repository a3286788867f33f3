package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies ingestion failures for operator visibility and for
// the queue layer's redelivery decision.
type ErrorCode string

const (
	CodeConfiguration     ErrorCode = "CONFIGURATION_ERROR"
	CodeUnsupportedSource ErrorCode = "UNSUPPORTED_SOURCE_TYPE"
	CodePDFExtraction     ErrorCode = "PDF_TEXT_EXTRACTION_FAILED"
	CodeDocumentTooLarge  ErrorCode = "DOCUMENT_TOO_LARGE"
	CodeSearchNotReady    ErrorCode = "OPENSEARCH_NOT_READY"
	CodeTimeout           ErrorCode = "TIMEOUT"
	CodeEmbeddingProvider ErrorCode = "OPENAI_API_ERROR"
	CodeProcessing        ErrorCode = "PROCESSING_ERROR"
	CodeUnknown           ErrorCode = "UNKNOWN_ERROR"
)

// MaxErrorMessageLen bounds the human-readable message persisted on the
// document record.
const MaxErrorMessageLen = 500

// IngestError carries a classification code alongside the failure.
type IngestError struct {
	Code ErrorCode
	Err  error
}

func (e *IngestError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// NewError builds a classified error from a message.
func NewError(code ErrorCode, format string, args ...interface{}) *IngestError {
	return &IngestError{Code: code, Err: fmt.Errorf(format, args...)}
}

// WrapError attaches a classification to an underlying error. A nil err
// yields nil.
func WrapError(code ErrorCode, err error) *IngestError {
	if err == nil {
		return nil
	}
	return &IngestError{Code: code, Err: err}
}

// CodeOf returns the classification of err, or CodeUnknown when none is
// attached.
func CodeOf(err error) ErrorCode {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return CodeUnknown
}

// IsRetriable reports whether a redelivery of the triggering message could
// plausibly succeed. Input problems and oversized documents cannot be fixed
// by retrying.
func IsRetriable(err error) bool {
	switch CodeOf(err) {
	case CodeConfiguration, CodeUnsupportedSource, CodePDFExtraction, CodeDocumentTooLarge:
		return false
	default:
		return true
	}
}

// Classify assigns a code to an error that escaped the pipeline without one,
// inspecting message content the way operators would.
func Classify(err error) *IngestError {
	if err == nil {
		return nil
	}
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return &IngestError{Code: CodeTimeout, Err: err}
	case strings.Contains(msg, "openai") || strings.Contains(msg, "embedding"):
		return &IngestError{Code: CodeEmbeddingProvider, Err: err}
	default:
		return &IngestError{Code: CodeProcessing, Err: err}
	}
}

// TruncateMessage caps a persisted error message at MaxErrorMessageLen.
func TruncateMessage(msg string) string {
	if len(msg) <= MaxErrorMessageLen {
		return msg
	}
	return msg[:MaxErrorMessageLen]
}
