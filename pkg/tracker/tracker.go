// Package tracker journals submissions so that a client can crash between sending a
// transaction and learning its outcome without losing track of it.
package tracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Layr-Labs/ledgertx-go/pkg/clients/ledgerClient"
	"github.com/Layr-Labs/ledgertx-go/pkg/codec"
	"github.com/Layr-Labs/ledgertx-go/pkg/hashing"
	"github.com/Layr-Labs/ledgertx-go/pkg/metrics"
	"github.com/Layr-Labs/ledgertx-go/pkg/persistence"
	"github.com/Layr-Labs/ledgertx-go/pkg/transactionBuilder"
	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

const DefaultResumeConcurrency = 4

type Config struct {
	LedgerClient ledgerClient.ILedgerClient
	Store        persistence.ISubmissionStore
	WireFormat   codec.WireFormat

	// Schemas enables re-sending journaled transactions on Resume. When nil,
	// Resume only polls.
	Schemas       codec.ISchemaLookup
	HashAlgorithm hashing.Algorithm

	// ResumeConcurrency bounds concurrent polls during Resume
	ResumeConcurrency int

	// Metrics is optional
	Metrics *metrics.Metrics

	Logger *zap.Logger
}

// ResumeResult is the outcome of resuming one journaled submission
type ResumeResult struct {
	Record *persistence.SubmissionRecord
	Result *types.SubmissionResult
	Err    error
}

type Tracker struct {
	client      ledgerClient.ILedgerClient
	store       persistence.ISubmissionStore
	wireFormat  codec.WireFormat
	schemas     codec.ISchemaLookup
	hashAlgo    hashing.Algorithm
	concurrency int
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewTracker(cfg *Config) (*Tracker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.LedgerClient == nil {
		return nil, fmt.Errorf("ledger client is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("submission store is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	algo := cfg.HashAlgorithm
	if algo == "" {
		algo = hashing.DefaultAlgorithm
	}
	if _, err := hashing.ParseAlgorithm(string(algo)); err != nil {
		return nil, err
	}
	concurrency := cfg.ResumeConcurrency
	if concurrency <= 0 {
		concurrency = DefaultResumeConcurrency
	}

	return &Tracker{
		client:      cfg.LedgerClient,
		store:       cfg.Store,
		wireFormat:  cfg.WireFormat,
		schemas:     cfg.Schemas,
		hashAlgo:    algo,
		concurrency: concurrency,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}, nil
}

// Track journals tx as pending, submits it and polls until it reaches a terminal state,
// which is journaled before returning. A transaction whose journal entry is already
// terminal is not sent again. If ctx is cancelled while polling, the record stays
// pending so that Resume can pick it up later.
func (t *Tracker) Track(ctx context.Context, tx *types.SignedTransaction, opts ledgerClient.PollOptions) (*types.SubmissionResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction cannot be nil")
	}

	existing, err := t.store.LoadSubmission(tx.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("failed to load journal entry: %w", err)
	}
	if existing != nil && existing.State.IsTerminal() {
		t.logger.Sugar().Infow("Transaction already tracked to completion",
			"request_id", existing.RequestID.String(),
			"tx_hash", existing.Key(),
			"state", existing.State,
		)
		return existing.Result(), nil
	}

	record := existing
	if record == nil {
		wire, err := codec.EncodeTransactionJSON(tx, t.wireFormat)
		if err != nil {
			return nil, fmt.Errorf("failed to encode transaction: %w", err)
		}
		record = persistence.NewSubmissionRecord(tx, wire)
		if err := t.store.SaveSubmission(record); err != nil {
			return nil, fmt.Errorf("failed to journal submission: %w", err)
		}
	}

	log := t.logger.Sugar().With("request_id", record.RequestID.String(), "tx_hash", record.Key())
	log.Debugw("Tracking transaction", "schema", record.SchemaName)

	done := t.metrics.TrackStarted()
	defer done()

	if _, err := t.client.Submit(ctx, tx); err != nil {
		// A cancelled caller leaves the record pending
		if ctx.Err() != nil {
			return record.Result(), err
		}
		record.Apply(&types.SubmissionResult{State: types.SubmissionStateFailed, Reason: err.Error()})
		t.metrics.ObserveOutcome(record.SchemaName, record.State, time.Since(record.CreatedAt))
		if saveErr := t.store.SaveSubmission(record); saveErr != nil {
			log.Warnw("Failed to journal submission failure", "error", saveErr)
		}
		return record.Result(), err
	}

	return t.poll(ctx, record, opts)
}

// poll waits for record's outcome and journals it unless the caller cancelled
func (t *Tracker) poll(ctx context.Context, record *persistence.SubmissionRecord, opts ledgerClient.PollOptions) (*types.SubmissionResult, error) {
	log := t.logger.Sugar().With("request_id", record.RequestID.String(), "tx_hash", record.Key())

	result, pollErr := t.client.PollStatus(ctx, record.TxHash, opts)
	if ctx.Err() != nil {
		log.Infow("Stopped tracking transaction, left pending in journal", "error", ctx.Err())
		return record.Result(), ctx.Err()
	}
	if result == nil {
		return record.Result(), pollErr
	}

	record.Apply(result)
	t.metrics.ObserveOutcome(record.SchemaName, record.State, time.Since(record.CreatedAt))
	if err := t.store.SaveSubmission(record); err != nil {
		return result, errors.Join(pollErr, fmt.Errorf("failed to journal outcome: %w", err))
	}

	log.Infow("Transaction tracked", "state", result.State, "reason", result.Reason)
	return result, pollErr
}

// Resume polls every pending journal entry until it reaches a terminal state. When the
// tracker has schemas, each stored transaction is re-sent first in case the ledger never
// received it; the ledger treats a resubmission of a known transaction as a no-op.
// Results are returned oldest first.
func (t *Tracker) Resume(ctx context.Context, opts ledgerClient.PollOptions) ([]*ResumeResult, error) {
	pending, err := t.store.ListPending()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending submissions: %w", err)
	}

	t.logger.Sugar().Infow("Resuming pending submissions", "count", len(pending))
	t.metrics.Resumed(len(pending))

	results := make([]*ResumeResult, len(pending))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)

	for i, record := range pending {
		g.Go(func() error {
			res, err := t.resumeOne(gCtx, record, opts)
			results[i] = &ResumeResult{Record: record, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}

func (t *Tracker) resumeOne(ctx context.Context, record *persistence.SubmissionRecord, opts ledgerClient.PollOptions) (*types.SubmissionResult, error) {
	if t.schemas != nil && len(record.Transaction) > 0 {
		tx, err := transactionBuilder.Decode(record.Transaction, t.schemas, t.wireFormat, t.hashAlgo)
		if err != nil {
			t.logger.Sugar().Warnw("Cannot rebuild journaled transaction, polling only",
				"request_id", record.RequestID.String(),
				"tx_hash", record.Key(),
				"error", err,
			)
		} else if !bytes.Equal(tx.ContentHash, record.TxHash) {
			t.logger.Sugar().Warnw("Journaled transaction hashes differently, polling only",
				"request_id", record.RequestID.String(),
				"tx_hash", record.Key(),
				"hash_algorithm", t.hashAlgo,
			)
		} else if _, err := t.client.Submit(ctx, tx); err != nil {
			t.logger.Sugar().Warnw("Resubmission failed, polling anyway",
				"request_id", record.RequestID.String(),
				"tx_hash", record.Key(),
				"error", err,
			)
		}
	}
	return t.poll(ctx, record, opts)
}
