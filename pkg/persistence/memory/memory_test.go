package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Layr-Labs/ledgertx-go/pkg/persistence"
	"github.com/Layr-Labs/ledgertx-go/pkg/persistence/storeTest"
)

var _ persistence.ISubmissionStore = (*MemoryStore)(nil)

func TestMemoryStore(t *testing.T) {
	storeTest.Run(t, func(t *testing.T) persistence.ISubmissionStore {
		return NewMemoryStore(zaptest.NewLogger(t))
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore(nil)
	defer func() { _ = s.Close() }()

	r := storeTest.NewRecord(0x01, time.Now())
	require.NoError(t, s.SaveSubmission(r))
	r.Reason = "mutated after save"

	loaded, err := s.LoadSubmission(r.TxHash)
	require.NoError(t, err)
	assert.Empty(t, loaded.Reason)

	loaded.TxHash[0] = 0xff
	again, err := s.LoadSubmission(r.TxHash)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, byte(0x01), again.TxHash[0])
}
