package errors

import (
	goerrors "errors"
	"fmt"
	"time"
)

/**
 * Error kinds for the document scan worker
 *
 * Extraction kinds (IMAGE_DECODE_FAILURE, OCR_FAILURE, INSUFFICIENT_DATA) abort a
 * single extraction and are reported back to the caller verbatim. They are never
 * retried. Infrastructure kinds may be retried by the queue.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Extraction errors
	ErrorImageDecodeFailure ErrorCode = "IMAGE_DECODE_FAILURE"
	ErrorOCRFailure         ErrorCode = "OCR_FAILURE"
	ErrorInsufficientData   ErrorCode = "INSUFFICIENT_DATA"

	// Request errors
	ErrorUnknownProfile ErrorCode = "UNKNOWN_PROFILE"
	ErrorFileTooLarge   ErrorCode = "FILE_TOO_LARGE"

	// Infrastructure errors
	ErrorDownloadFailed    ErrorCode = "DOWNLOAD_FAILED"
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorStorageFailed     ErrorCode = "STORAGE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// WithJob returns a copy of the error bound to a job
func (e *ProcessingError) WithJob(jobID string) *ProcessingError {
	clone := *e
	clone.JobID = jobID
	return &clone
}

// Factory functions for common errors

func NewImageDecodeError(cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorImageDecodeFailure,
		Message:   "Image bytes could not be decoded",
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewOCRFailedError(engine string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailure,
		Message:   fmt.Sprintf("OCR engine %s produced no output", engine),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"ocr_engine": engine,
		},
		Cause: cause,
	}
}

func NewInsufficientDataError(found int) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInsufficientData,
		Message:   "need exactly two semester GWA values",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"values_found": found,
		},
	}
}

func NewUnknownProfileError(jobID string, profile string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnknownProfile,
		Message:   fmt.Sprintf("Unknown document profile: %q", profile),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"profile": profile,
		},
	}
}

func NewFileTooLargeError(jobID string, size, limit int64) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorFileTooLarge,
		Message:   fmt.Sprintf("File size %d exceeds limit of %d bytes", size, limit),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"file_size": size,
			"max_size":  limit,
		},
	}
}

func NewDownloadFailedError(jobID string, url string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorDownloadFailed,
		Message:   "Failed to download file",
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"file_url": url,
		},
		Cause: cause,
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewStorageFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store processing results",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// As is errors.As, re-exported so callers need only this package
func As(err error, target interface{}) bool {
	return goerrors.As(err, target)
}

// Is is errors.Is
func Is(err, target error) bool {
	return goerrors.Is(err, target)
}

// CodeOf extracts the ErrorCode from anywhere in an error chain
func CodeOf(err error) (ErrorCode, bool) {
	var pe *ProcessingError
	if goerrors.As(err, &pe) {
		return pe.Code, true
	}
	return "", false
}

// IsExtractionFailure reports whether err is one of the three extraction kinds
func IsExtractionFailure(err error) bool {
	code, ok := CodeOf(err)
	if !ok {
		return false
	}
	switch code {
	case ErrorImageDecodeFailure, ErrorOCRFailure, ErrorInsufficientData:
		return true
	}
	return false
}

// IsRetryable reports whether a queue should try the job again.
// Unstructured errors are assumed transient.
func IsRetryable(err error) bool {
	code, ok := CodeOf(err)
	if !ok {
		return true
	}
	switch code {
	case ErrorDownloadFailed, ErrorProcessingTimeout, ErrorStorageFailed:
		return true
	}
	return false
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.JobID != "" {
		result["job_id"] = e.JobID
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
