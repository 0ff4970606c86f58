package memory

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Layr-Labs/ledgertx-go/pkg/persistence"
	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

// MemoryStore is an in-memory implementation of ISubmissionStore.
//
// All data is lost when the process exits. Records are deep copied on the
// way in and out to prevent external mutation.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*persistence.SubmissionRecord
	closed  bool
}

// NewMemoryStore creates a new in-memory submission store.
// Logs a warning since pending submissions cannot be resumed after a restart.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger != nil {
		logger.Sugar().Warnw("Using in-memory submission store, pending submissions will be lost on restart",
			"hint", "set LEDGER_STORE_TYPE=badger for a durable journal")
	}
	return &MemoryStore{
		records: make(map[string]*persistence.SubmissionRecord),
	}
}

// SaveSubmission persists a submission record.
func (m *MemoryStore) SaveSubmission(record *persistence.SubmissionRecord) error {
	if err := persistence.ValidateRecord(record); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("submission store is closed")
	}

	m.records[record.Key()] = record.Clone()
	return nil
}

// LoadSubmission retrieves a submission record.
func (m *MemoryStore) LoadSubmission(txHash types.Hash) (*persistence.SubmissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("submission store is closed")
	}

	return m.records[txHash.Hex()].Clone(), nil
}

// ListSubmissions returns all records oldest first.
func (m *MemoryStore) ListSubmissions() ([]*persistence.SubmissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("submission store is closed")
	}

	records := make([]*persistence.SubmissionRecord, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, r.Clone())
	}
	persistence.SortByCreatedAt(records)
	return records, nil
}

// ListPending returns the pending records oldest first.
func (m *MemoryStore) ListPending() ([]*persistence.SubmissionRecord, error) {
	records, err := m.ListSubmissions()
	if err != nil {
		return nil, err
	}
	return persistence.FilterPending(records), nil
}

// DeleteSubmission removes a submission record.
func (m *MemoryStore) DeleteSubmission(txHash types.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("submission store is closed")
	}

	delete(m.records, txHash.Hex())
	return nil
}

// Close marks the store as closed and drops all records.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.records = nil
	return nil
}

// HealthCheck always succeeds until the store is closed.
func (m *MemoryStore) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("submission store is closed")
	}
	return nil
}
