// Package storeTest holds the behaviour every ISubmissionStore backend must share.
package storeTest

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/ledgertx-go/pkg/persistence"
	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

// NewRecord builds a pending record whose hash is the seed byte repeated.
func NewRecord(seed byte, createdAt time.Time) *persistence.SubmissionRecord {
	tx := &types.SignedTransaction{
		Schema:      &types.MessageSchema{Name: "Transfer", ServiceID: 128, MessageID: 0},
		ContentHash: types.Hash(bytes.Repeat([]byte{seed}, types.HashSize)),
	}
	r := persistence.NewSubmissionRecord(tx, []byte{seed})
	r.CreatedAt = createdAt.UTC()
	r.UpdatedAt = r.CreatedAt
	return r
}

// Run exercises a fresh store returned by newStore. The store must be empty.
func Run(t *testing.T, newStore func(t *testing.T) persistence.ISubmissionStore) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("SaveAndLoad", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		r := NewRecord(0x01, base)
		require.NoError(t, s.SaveSubmission(r))

		loaded, err := s.LoadSubmission(r.TxHash)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, r.RequestID, loaded.RequestID)
		assert.Equal(t, r.TxHash, loaded.TxHash)
		assert.Equal(t, r.SchemaName, loaded.SchemaName)
		assert.Equal(t, types.SubmissionStatePending, loaded.State)
		assert.Equal(t, r.Transaction, loaded.Transaction)
		assert.True(t, r.CreatedAt.Equal(loaded.CreatedAt))
	})

	t.Run("LoadNotFound", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		loaded, err := s.LoadSubmission(NewRecord(0x02, base).TxHash)
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SaveInvalid", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		err := s.SaveSubmission(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nil SubmissionRecord")

		bad := NewRecord(0x03, base)
		bad.TxHash = bad.TxHash[:8]
		assert.Error(t, s.SaveSubmission(bad))
	})

	t.Run("OverwriteState", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		r := NewRecord(0x04, base)
		require.NoError(t, s.SaveSubmission(r))
		r.Apply(&types.SubmissionResult{State: types.SubmissionStateRejected, Reason: "Insufficient currency amount"})
		require.NoError(t, s.SaveSubmission(r))

		loaded, err := s.LoadSubmission(r.TxHash)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, types.SubmissionStateRejected, loaded.State)
		assert.Equal(t, "Insufficient currency amount", loaded.Reason)

		all, err := s.ListSubmissions()
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("ListAndPending", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		all, err := s.ListSubmissions()
		require.NoError(t, err)
		assert.Empty(t, all)

		late := NewRecord(0x10, base.Add(2*time.Minute))
		early := NewRecord(0x11, base)
		done := NewRecord(0x12, base.Add(time.Minute))
		done.Apply(&types.SubmissionResult{State: types.SubmissionStateConfirmed, ConfirmationPayload: []byte(`{}`)})
		for _, r := range []*persistence.SubmissionRecord{late, early, done} {
			require.NoError(t, s.SaveSubmission(r))
		}

		all, err = s.ListSubmissions()
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, early.TxHash, all[0].TxHash)
		assert.Equal(t, done.TxHash, all[1].TxHash)
		assert.Equal(t, late.TxHash, all[2].TxHash)

		pending, err := s.ListPending()
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, early.TxHash, pending[0].TxHash)
		assert.Equal(t, late.TxHash, pending[1].TxHash)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		r := NewRecord(0x20, base)
		require.NoError(t, s.SaveSubmission(r))
		require.NoError(t, s.DeleteSubmission(r.TxHash))

		loaded, err := s.LoadSubmission(r.TxHash)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		// Idempotent
		require.NoError(t, s.DeleteSubmission(r.TxHash))

		all, err := s.ListSubmissions()
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("ConcurrentSaves", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(seed byte) {
				defer wg.Done()
				assert.NoError(t, s.SaveSubmission(NewRecord(seed, base.Add(time.Duration(seed)*time.Second))))
			}(byte(0x40 + i))
		}
		wg.Wait()

		all, err := s.ListSubmissions()
		require.NoError(t, err)
		assert.Len(t, all, 16)
	})

	t.Run("ClosedStore", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.HealthCheck())
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		r := NewRecord(0x30, base)
		assert.Error(t, s.SaveSubmission(r))
		_, err := s.LoadSubmission(r.TxHash)
		assert.Error(t, err)
		_, err = s.ListSubmissions()
		assert.Error(t, err)
		_, err = s.ListPending()
		assert.Error(t, err)
		assert.Error(t, s.DeleteSubmission(r.TxHash))
		assert.Error(t, s.HealthCheck())
	})
}
