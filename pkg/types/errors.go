package types

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaMismatch is returned when a payload does not match its schema exactly
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrUnsupportedFieldType is returned for field types the codec cannot encode
	ErrUnsupportedFieldType = errors.New("unsupported field type")

	// ErrInvalidKey is returned for malformed keys or keys that do not match the declared public key
	ErrInvalidKey = errors.New("invalid key")

	// ErrPollingFailed is returned once explorer polling exhausted its retries
	ErrPollingFailed = errors.New("polling failed")

	// ErrTimeout is returned when a transaction was not confirmed before the poll timeout
	ErrTimeout = errors.New("timed out waiting for confirmation")
)

// SubmissionFailedError reports a submission the ledger did not accept.
// StatusCode is zero when no response was received at all.
type SubmissionFailedError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SubmissionFailedError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("submission failed: %v", e.Err)
	}
	return fmt.Sprintf("submission failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *SubmissionFailedError) Unwrap() error {
	return e.Err
}

// RejectedError reports a transaction the ledger committed with a failing execution status
type RejectedError struct {
	Code   int
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("transaction rejected (code %d): %s", e.Code, e.Reason)
}
