package persistence

import "github.com/Layr-Labs/ledgertx-go/pkg/types"

// ISubmissionStore journals submitted transactions so that pending submissions
// can be resumed after a restart. All implementations must be thread-safe as
// submissions are tracked concurrently.
//
// Records are keyed by the lowercase hex content hash of the transaction.
type ISubmissionStore interface {
	// SaveSubmission inserts or replaces the record for record.TxHash.
	// Returns error only on storage failure (idempotent).
	SaveSubmission(record *SubmissionRecord) error

	// LoadSubmission retrieves a record by content hash.
	// Returns nil if the record doesn't exist, error only on storage failure.
	LoadSubmission(txHash types.Hash) (*SubmissionRecord, error)

	// ListSubmissions returns all records sorted by CreatedAt (ascending).
	// Returns empty slice if no records exist.
	ListSubmissions() ([]*SubmissionRecord, error)

	// ListPending returns the records still in the pending state, sorted by CreatedAt.
	ListPending() ([]*SubmissionRecord, error)

	// DeleteSubmission removes a record by content hash.
	// Idempotent - returns nil if the record doesn't exist.
	DeleteSubmission(txHash types.Hash) error

	// Close releases all resources. Calls after Close return an error.
	// Idempotent - safe to call multiple times.
	Close() error

	// HealthCheck verifies the backing store is operational.
	HealthCheck() error
}
