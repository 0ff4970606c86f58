package ledgerClient

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Layr-Labs/ledgertx-go/pkg/codec"
	"github.com/Layr-Labs/ledgertx-go/pkg/merkle"
	"github.com/Layr-Labs/ledgertx-go/pkg/registry"
	"github.com/Layr-Labs/ledgertx-go/pkg/transactionBuilder"
	"github.com/Layr-Labs/ledgertx-go/pkg/transport"
	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

// ExplorerQueryStyle selects how the transaction hash is passed to the explorer endpoint
type ExplorerQueryStyle string

const (
	// ExplorerQueryStylePath requests /api/explorer/v1/transactions/<hash>
	ExplorerQueryStylePath ExplorerQueryStyle = "path"
	// ExplorerQueryStyleQuery requests /api/explorer/v1/transactions?hash=<hash>
	ExplorerQueryStyleQuery ExplorerQueryStyle = "query"
)

const (
	explorerTransactionsPath = "/api/explorer/v1/transactions"

	DefaultPollInterval   = 1 * time.Second
	DefaultPollTimeout    = 30 * time.Second
	DefaultMaxConcurrency = 8
)

// ErrAccountNotFound is returned by GetAccount when the ledger has no account for the key
var ErrAccountNotFound = errors.New("account not found")

// ErrHistoryProof is returned by GetAccountInfo when the history does not match its root
var ErrHistoryProof = errors.New("account history proof invalid")

// PollOptions controls how long and how often the explorer is polled.
// A zero Timeout polls until the context is done.
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultPollOptions polls every second for up to thirty seconds
var DefaultPollOptions = PollOptions{
	Interval: DefaultPollInterval,
	Timeout:  DefaultPollTimeout,
}

// ILedgerClient submits signed transactions and observes their outcome
type ILedgerClient interface {
	// Submit sends a verified transaction to the ledger once and returns a Pending result
	Submit(ctx context.Context, tx *types.SignedTransaction) (*types.SubmissionResult, error)

	// PollStatus polls the explorer until the transaction reaches a terminal state
	PollStatus(ctx context.Context, txHash types.Hash, opts PollOptions) (*types.SubmissionResult, error)

	// SubmitAndConfirm submits tx and polls it to a terminal state
	SubmitAndConfirm(ctx context.Context, tx *types.SignedTransaction, opts PollOptions) (*types.SubmissionResult, error)

	// SubmitBatch submits independent transactions concurrently
	SubmitBatch(ctx context.Context, txs []*types.SignedTransaction, confirm *PollOptions) []*BatchResult

	// GetAccount returns the ledger's account record for pubKey
	GetAccount(ctx context.Context, pubKey []byte) (*types.Account, error)

	// GetAccountInfo returns the account with its verified transaction history
	GetAccountInfo(ctx context.Context, pubKey []byte) (*types.AccountInfo, error)
}

// ClientConfig holds the configuration for the ledger client
type ClientConfig struct {
	// BaseURL is the public API address of a ledger node, e.g. http://127.0.0.1:8200
	BaseURL string

	// ServiceName is the service segment of submission and account routes
	ServiceName string

	ExplorerQueryStyle ExplorerQueryStyle
	WireFormat         codec.WireFormat
	Retry              transport.RetryConfig

	// RequestsPerSecond limits outbound requests. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	// MaxConcurrency bounds SubmitBatch parallelism
	MaxConcurrency int

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// BatchResult is the outcome of one transaction of a SubmitBatch call
type BatchResult struct {
	Index  int
	Result *types.SubmissionResult
	Err    error
}

// Client talks to a ledger node's service and explorer APIs. It holds no per transaction
// state and is safe for concurrent use.
type Client struct {
	baseURL        string
	serviceName    string
	queryStyle     ExplorerQueryStyle
	wireFormat     codec.WireFormat
	maxConcurrency int
	transport      *transport.Client
	logger         *zap.Logger
}

var _ ILedgerClient = (*Client)(nil)

// NewClient creates a new ledger client
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.ParseRequestURI(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", config.BaseURL, err)
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	queryStyle := config.ExplorerQueryStyle
	switch queryStyle {
	case "":
		queryStyle = ExplorerQueryStylePath
	case ExplorerQueryStylePath, ExplorerQueryStyleQuery:
	default:
		return nil, fmt.Errorf("unsupported explorer query style: %s", queryStyle)
	}

	switch config.WireFormat.SignaturePlacement {
	case "", codec.SignatureInBody, codec.SignatureInEnvelope:
	default:
		return nil, fmt.Errorf("unsupported signature placement: %s", config.WireFormat.SignaturePlacement)
	}

	serviceName := config.ServiceName
	if serviceName == "" {
		serviceName = registry.MiningPoolServiceName
	}
	maxConcurrency := config.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}

	t, err := transport.NewClient(&transport.Config{
		HTTPClient:        config.HTTPClient,
		Retry:             config.Retry,
		RequestsPerSecond: config.RequestsPerSecond,
		Burst:             config.Burst,
		Logger:            config.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	return &Client{
		baseURL:        strings.TrimRight(config.BaseURL, "/"),
		serviceName:    serviceName,
		queryStyle:     queryStyle,
		wireFormat:     config.WireFormat,
		maxConcurrency: maxConcurrency,
		transport:      t,
		logger:         config.Logger,
	}, nil
}

func (c *Client) transactionURL() string {
	return fmt.Sprintf("%s/api/services/%s/v1/transaction", c.baseURL, c.serviceName)
}

func (c *Client) accountURL(pubKey []byte) string {
	return fmt.Sprintf("%s/api/services/%s/v1/accounts?pub_key=%s", c.baseURL, c.serviceName, hex.EncodeToString(pubKey))
}

func (c *Client) accountInfoURL(pubKey []byte) string {
	return fmt.Sprintf("%s/api/services/%s/v1/accounts/info?pub_key=%s", c.baseURL, c.serviceName, hex.EncodeToString(pubKey))
}

func (c *Client) explorerURL(txHash types.Hash) string {
	if c.queryStyle == ExplorerQueryStyleQuery {
		return fmt.Sprintf("%s%s?hash=%s", c.baseURL, explorerTransactionsPath, txHash.Hex())
	}
	return fmt.Sprintf("%s%s/%s", c.baseURL, explorerTransactionsPath, txHash.Hex())
}

// Submit re-verifies tx, then posts it to the ledger exactly once per received response.
// Requests that get no response are retried with backoff; any HTTP status outside 2xx is
// returned as a *types.SubmissionFailedError without retrying.
func (c *Client) Submit(ctx context.Context, tx *types.SignedTransaction) (*types.SubmissionResult, error) {
	if err := transactionBuilder.Verify(tx); err != nil {
		return nil, fmt.Errorf("refusing to submit unverified transaction: %w", err)
	}

	body, err := codec.EncodeTransactionJSON(tx, c.wireFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}

	c.logger.Sugar().Debugw("Submitting transaction",
		"schema", tx.Schema.Name,
		"tx_hash", tx.ContentHash.Hex(),
	)

	resp, err := c.transport.DoWithRetry(ctx, http.MethodPost, c.transactionURL(), body)
	if err != nil {
		return nil, &types.SubmissionFailedError{Err: err}
	}
	if !resp.IsSuccess() {
		c.logger.Sugar().Warnw("Ledger rejected submission",
			"tx_hash", tx.ContentHash.Hex(),
			"status", resp.StatusCode,
		)
		return nil, &types.SubmissionFailedError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var ack types.TransactionResponse
	if err := json.Unmarshal(resp.Body, &ack); err != nil {
		c.logger.Sugar().Warnw("Failed to parse submission response", "tx_hash", tx.ContentHash.Hex(), "error", err)
	} else if !strings.EqualFold(ack.TxHash, tx.ContentHash.Hex()) {
		c.logger.Sugar().Warnw("Ledger reported a different transaction hash",
			"local_hash", tx.ContentHash.Hex(),
			"remote_hash", ack.TxHash,
		)
	}

	c.logger.Sugar().Infow("Transaction submitted",
		"schema", tx.Schema.Name,
		"tx_hash", tx.ContentHash.Hex(),
	)
	return types.NewPendingResult(tx.ContentHash), nil
}

// PollStatus polls the explorer until the transaction is committed, the timeout elapses,
// polling fails more than the configured number of consecutive times, or ctx is done.
// The returned result always carries the final state, also alongside an error.
func (c *Client) PollStatus(ctx context.Context, txHash types.Hash, opts PollOptions) (*types.SubmissionResult, error) {
	result := types.NewPendingResult(txHash)
	if len(txHash) == 0 {
		result.State = types.SubmissionStateFailed
		return result, fmt.Errorf("transaction hash is required")
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	pollCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	finish := func() (*types.SubmissionResult, error) {
		if err := ctx.Err(); err != nil {
			result.State = types.SubmissionStateFailed
			result.Reason = err.Error()
			return result, err
		}
		result.State = types.SubmissionStateTimedOut
		result.Reason = fmt.Sprintf("not committed within %s", opts.Timeout)
		c.logger.Sugar().Warnw("Timed out waiting for transaction", "tx_hash", txHash.Hex(), "timeout", opts.Timeout)
		return result, fmt.Errorf("%w: transaction %s after %s", types.ErrTimeout, txHash.Hex(), opts.Timeout)
	}

	retryCfg := c.transport.RetryConfig()
	backoff := retryCfg.InitialBackoff
	failures := 0
	target := c.explorerURL(txHash)

	for {
		status, err := c.queryExplorer(pollCtx, target)
		if pollCtx.Err() != nil {
			return finish()
		}

		if err != nil {
			failures++
			c.logger.Sugar().Debugw("Explorer query failed",
				"tx_hash", txHash.Hex(),
				"consecutive_failures", failures,
				"error", err,
			)
			if failures > retryCfg.MaxAttempts {
				result.State = types.SubmissionStateFailed
				result.Reason = err.Error()
				return result, fmt.Errorf("%w: %d consecutive explorer failures: %v", types.ErrPollingFailed, failures, err)
			}
		} else {
			failures = 0
			backoff = retryCfg.InitialBackoff
			if status != nil && status.tx.Type == types.ExplorerTypeCommitted {
				return c.committed(result, status)
			}
		}

		wait := interval
		if err != nil {
			wait = max(interval, backoff)
			backoff = retryCfg.NextBackoff(backoff)
		}
		if err := transport.Sleep(pollCtx, wait); err != nil {
			return finish()
		}
	}
}

type explorerStatus struct {
	tx  types.ExplorerTransaction
	raw []byte
}

// queryExplorer returns nil status for transactions the explorer does not know about yet
func (c *Client) queryExplorer(ctx context.Context, target string) (*explorerStatus, error) {
	resp, err := c.transport.Do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("explorer returned status %d: %s", resp.StatusCode, string(resp.Body))
	}

	var tx types.ExplorerTransaction
	if err := json.Unmarshal(resp.Body, &tx); err != nil {
		return nil, fmt.Errorf("failed to decode explorer response: %w", err)
	}
	return &explorerStatus{tx: tx, raw: resp.Body}, nil
}

func (c *Client) committed(result *types.SubmissionResult, status *explorerStatus) (*types.SubmissionResult, error) {
	result.ConfirmationPayload = status.raw

	exec := status.tx.Status
	if exec == nil || exec.Type == types.ExecutionStatusSuccess {
		result.State = types.SubmissionStateConfirmed
		result.Confirmed = true
		c.logger.Sugar().Infow("Transaction confirmed", "tx_hash", result.TxHash.Hex())
		return result, nil
	}

	reason := exec.Description
	if reason == "" {
		reason = exec.Type
	}
	result.State = types.SubmissionStateRejected
	result.Reason = reason
	c.logger.Sugar().Warnw("Transaction rejected",
		"tx_hash", result.TxHash.Hex(),
		"status", exec.Type,
		"code", exec.Code,
		"reason", reason,
	)
	return result, &types.RejectedError{Code: exec.Code, Reason: reason}
}

// SubmitAndConfirm submits tx and polls it to a terminal state
func (c *Client) SubmitAndConfirm(ctx context.Context, tx *types.SignedTransaction, opts PollOptions) (*types.SubmissionResult, error) {
	if _, err := c.Submit(ctx, tx); err != nil {
		return nil, err
	}
	return c.PollStatus(ctx, tx.ContentHash, opts)
}

// SubmitBatch submits txs concurrently. Each transaction succeeds or fails on its own;
// results are returned in input order. When confirm is set every transaction is also polled.
func (c *Client) SubmitBatch(ctx context.Context, txs []*types.SignedTransaction, confirm *PollOptions) []*BatchResult {
	results := make([]*BatchResult, len(txs))

	g := new(errgroup.Group)
	g.SetLimit(c.maxConcurrency)
	for i, tx := range txs {
		g.Go(func() error {
			var res *types.SubmissionResult
			var err error
			if confirm != nil {
				res, err = c.SubmitAndConfirm(ctx, tx, *confirm)
			} else {
				res, err = c.Submit(ctx, tx)
			}
			results[i] = &BatchResult{Index: i, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// GetAccount returns the ledger's account record for pubKey
func (c *Client) GetAccount(ctx context.Context, pubKey []byte) (*types.Account, error) {
	if len(pubKey) == 0 {
		return nil, fmt.Errorf("public key is required")
	}

	resp, err := c.transport.DoWithRetry(ctx, http.MethodGet, c.accountURL(pubKey), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %x", ErrAccountNotFound, pubKey)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("account query returned status %d: %s", resp.StatusCode, string(resp.Body))
	}

	var account types.Account
	if err := json.Unmarshal(resp.Body, &account); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	return &account, nil
}

// GetAccountInfo returns the account for pubKey with its transaction history. Every history
// entry's merkle proof is checked against the history root, and the root against the
// account's history hash, before the info is returned.
func (c *Client) GetAccountInfo(ctx context.Context, pubKey []byte) (*types.AccountInfo, error) {
	if len(pubKey) == 0 {
		return nil, fmt.Errorf("public key is required")
	}

	resp, err := c.transport.DoWithRetry(ctx, http.MethodGet, c.accountInfoURL(pubKey), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query account info: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %x", ErrAccountNotFound, pubKey)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("account info query returned status %d: %s", resp.StatusCode, string(resp.Body))
	}

	var info types.AccountInfo
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode account info: %w", err)
	}
	if info.Account == nil {
		return nil, fmt.Errorf("account info for %x has no account", pubKey)
	}
	if err := verifyHistory(info.Account, info.History); err != nil {
		return nil, err
	}

	c.logger.Sugar().Debugw("Verified account history",
		"pub_key", info.Account.PubKey,
		"history_len", info.Account.HistoryLen,
	)
	return &info, nil
}

func verifyHistory(account *types.Account, history *types.AccountHistory) error {
	if history == nil {
		if account.HistoryLen == 0 {
			return nil
		}
		return fmt.Errorf("%w: account reports %d entries but no history was returned", ErrHistoryProof, account.HistoryLen)
	}
	if uint64(len(history.Entries)) != account.HistoryLen {
		return fmt.Errorf("%w: %d entries returned, account reports %d", ErrHistoryProof, len(history.Entries), account.HistoryLen)
	}
	if !strings.EqualFold(history.Root, account.HistoryHash) {
		return fmt.Errorf("%w: root %s does not match account history hash %s", ErrHistoryProof, history.Root, account.HistoryHash)
	}
	root, err := types.HashFromHex(history.Root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHistoryProof, err)
	}

	for i, entry := range history.Entries {
		if entry.Index != uint64(i) {
			return fmt.Errorf("%w: entry %d has index %d", ErrHistoryProof, i, entry.Index)
		}
		leaf, err := types.HashFromHex(entry.TxHash)
		if err != nil {
			return fmt.Errorf("%w: entry %d: %v", ErrHistoryProof, i, err)
		}
		siblings := make([][]byte, len(entry.Proof))
		for j, s := range entry.Proof {
			if siblings[j], err = hex.DecodeString(s); err != nil {
				return fmt.Errorf("%w: entry %d proof hash %d: %v", ErrHistoryProof, i, j, err)
			}
		}
		proof := &merkle.HistoryProof{LeafIndex: entry.Index, Leaf: leaf, Hashes: siblings}
		if !merkle.VerifyProof(proof, root) {
			return fmt.Errorf("%w: transaction %s at index %d", ErrHistoryProof, entry.TxHash, i)
		}
	}
	return nil
}
