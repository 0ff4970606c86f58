package tracker

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Layr-Labs/ledgertx-go/pkg/clients/ledgerClient"
	"github.com/Layr-Labs/ledgertx-go/pkg/codec"
	"github.com/Layr-Labs/ledgertx-go/pkg/metrics"
	"github.com/Layr-Labs/ledgertx-go/pkg/persistence"
	"github.com/Layr-Labs/ledgertx-go/pkg/persistence/memory"
	"github.com/Layr-Labs/ledgertx-go/pkg/registry"
	"github.com/Layr-Labs/ledgertx-go/pkg/testutil"
	"github.com/Layr-Labs/ledgertx-go/pkg/transactionBuilder"
	"github.com/Layr-Labs/ledgertx-go/pkg/transport"
	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

var fastPoll = ledgerClient.PollOptions{Interval: 10 * time.Millisecond, Timeout: 5 * time.Second}

type fixture struct {
	ledger  *testutil.StubLedger
	store   *memory.MemoryStore
	metrics *metrics.Metrics
	tracker *Tracker
}

func newFixture(t *testing.T, stubCfg *testutil.StubLedgerConfig, withSchemas bool) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	ledger := testutil.NewStubLedger(t, stubCfg)
	client, err := ledgerClient.NewClient(&ledgerClient.ClientConfig{
		BaseURL: ledger.URL(),
		Retry: transport.RetryConfig{
			MaxAttempts:     2,
			InitialBackoff:  time.Millisecond,
			MaxBackoff:      5 * time.Millisecond,
			BackoffMultiple: 2,
		},
		Logger: logger,
	})
	require.NoError(t, err)

	store := memory.NewMemoryStore(logger)
	t.Cleanup(func() { _ = store.Close() })

	m := metrics.NewMetrics(prometheus.NewRegistry())
	cfg := &Config{
		LedgerClient: client,
		Store:        store,
		Metrics:      m,
		Logger:       logger,
	}
	if withSchemas {
		cfg.Schemas = registry.NewMiningPoolRegistry()
	}
	tr, err := NewTracker(cfg)
	require.NoError(t, err)

	return &fixture{ledger: ledger, store: store, metrics: m, tracker: tr}
}

func createAccountTx(t *testing.T, seed byte, name string) *types.SignedTransaction {
	t.Helper()
	kp := testutil.NewTestKeyPair(t, seed)
	tx, err := transactionBuilder.NewDefaultTransactionBuilder().Build(
		registry.CreateAccount(),
		types.Payload{"pub_key": kp.PublicKey, "name": name},
		kp.SecretKey,
	)
	require.NoError(t, err)
	return tx
}

func TestNewTracker_Validation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	store := memory.NewMemoryStore(logger)
	client, err := ledgerClient.NewClient(&ledgerClient.ClientConfig{BaseURL: "http://127.0.0.1:1", Logger: logger})
	require.NoError(t, err)

	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "nil config", cfg: nil},
		{name: "missing client", cfg: &Config{Store: store, Logger: logger}},
		{name: "missing store", cfg: &Config{LedgerClient: client, Logger: logger}},
		{name: "missing logger", cfg: &Config{LedgerClient: client, Store: store}},
		{name: "bad hash", cfg: &Config{LedgerClient: client, Store: store, Logger: logger, HashAlgorithm: "md5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTracker(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestTrack_Confirmed(t *testing.T) {
	f := newFixture(t, &testutil.StubLedgerConfig{PendingPolls: 2}, false)
	tx := createAccountTx(t, 1, "John Doe")

	res, err := f.tracker.Track(context.Background(), tx, fastPoll)
	require.NoError(t, err)
	assert.True(t, res.Confirmed)
	assert.Equal(t, tx.ContentHash, res.TxHash)

	record, err := f.store.LoadSubmission(tx.ContentHash)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, types.SubmissionStateConfirmed, record.State)
	assert.Equal(t, "CreateAccount", record.SchemaName)
	assert.Equal(t, registry.MiningPoolServiceID, record.ServiceID)
	assert.Equal(t, registry.CreateAccountMessageID, record.MessageID)
	assert.NotEmpty(t, record.ConfirmationPayload)
	assert.NotEmpty(t, record.Transaction)

	// Already terminal in the journal, so nothing is sent again
	again, err := f.tracker.Track(context.Background(), tx, fastPoll)
	require.NoError(t, err)
	assert.True(t, again.Confirmed)
	assert.Equal(t, 1, f.ledger.SubmitCount())

	assert.Equal(t, 1.0, promtestutil.ToFloat64(f.metrics.SubmissionsTotal.WithLabelValues("CreateAccount", "confirmed")))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(f.metrics.InFlight))
}

func TestTrack_Rejected(t *testing.T) {
	f := newFixture(t, nil, false)
	first := createAccountTx(t, 1, "alice")
	dup := createAccountTx(t, 1, "alice again")

	_, err := f.tracker.Track(context.Background(), first, fastPoll)
	require.NoError(t, err)

	res, err := f.tracker.Track(context.Background(), dup, fastPoll)
	var rejected *types.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, registry.ErrorCodeAccountAlreadyExists, rejected.Code)
	assert.Equal(t, types.SubmissionStateRejected, res.State)

	record, err := f.store.LoadSubmission(dup.ContentHash)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, types.SubmissionStateRejected, record.State)
	assert.Equal(t, "Account already exists", record.Reason)
}

func TestTrack_SubmitFailure(t *testing.T) {
	f := newFixture(t, nil, false)
	f.ledger.SetSubmitStatus(http.StatusServiceUnavailable)
	tx := createAccountTx(t, 1, "John Doe")

	res, err := f.tracker.Track(context.Background(), tx, fastPoll)
	var failed *types.SubmissionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, http.StatusServiceUnavailable, failed.StatusCode)
	assert.Equal(t, types.SubmissionStateFailed, res.State)

	record, err := f.store.LoadSubmission(tx.ContentHash)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, types.SubmissionStateFailed, record.State)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(f.metrics.SubmissionsTotal.WithLabelValues("CreateAccount", "failed")))

	pending, err := f.store.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestTrack_CancelLeavesPending(t *testing.T) {
	f := newFixture(t, &testutil.StubLedgerConfig{PendingPolls: 1000}, false)
	tx := createAccountTx(t, 1, "John Doe")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := f.tracker.Track(ctx, tx, fastPoll)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, types.SubmissionStatePending, res.State)

	pending, err := f.store.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, tx.ContentHash, pending[0].TxHash)
}

// journalOnly simulates a crash after the record was written but before it was sent
func journalOnly(t *testing.T, store persistence.ISubmissionStore, tx *types.SignedTransaction) {
	t.Helper()
	wire, err := codec.EncodeTransactionJSON(tx, codec.DefaultWireFormat)
	require.NoError(t, err)
	require.NoError(t, store.SaveSubmission(persistence.NewSubmissionRecord(tx, wire)))
}

func TestResume_ResendsJournaledTransactions(t *testing.T) {
	f := newFixture(t, nil, true)
	txs := []*types.SignedTransaction{
		createAccountTx(t, 1, "alice"),
		createAccountTx(t, 2, "bob"),
	}
	for _, tx := range txs {
		journalOnly(t, f.store, tx)
	}

	results, err := f.tracker.Resume(context.Background(), fastPoll)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.True(t, r.Result.Confirmed)
	}
	assert.Equal(t, 2, f.ledger.SubmitCount())
	assert.Equal(t, 2.0, promtestutil.ToFloat64(f.metrics.ResumedTotal))

	pending, err := f.store.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestResume_PollOnlyTimesOut(t *testing.T) {
	f := newFixture(t, nil, false)
	tx := createAccountTx(t, 1, "alice")
	journalOnly(t, f.store, tx)

	results, err := f.tracker.Resume(context.Background(), ledgerClient.PollOptions{
		Interval: 10 * time.Millisecond,
		Timeout:  100 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, types.ErrTimeout)
	assert.Equal(t, types.SubmissionStateTimedOut, results[0].Result.State)
	assert.Equal(t, 0, f.ledger.SubmitCount())

	record, err := f.store.LoadSubmission(tx.ContentHash)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, types.SubmissionStateTimedOut, record.State)
}

func TestResume_Nothing(t *testing.T) {
	f := newFixture(t, nil, true)
	results, err := f.tracker.Resume(context.Background(), fastPoll)
	require.NoError(t, err)
	assert.Empty(t, results)
}
