package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"go.uber.org/zap"

	"github.com/Layr-Labs/ledgertx-go/pkg/codec"
	"github.com/Layr-Labs/ledgertx-go/pkg/hashing"
	"github.com/Layr-Labs/ledgertx-go/pkg/merkle"
	"github.com/Layr-Labs/ledgertx-go/pkg/registry"
	"github.com/Layr-Labs/ledgertx-go/pkg/transactionBuilder"
	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

const (
	// InitialBalance is credited to every new account
	InitialBalance uint64 = 100

	// DefaultJWTSecret signs access tokens issued on SignIn
	DefaultJWTSecret = "secretsecret"

	explorerPrefix = "/api/explorer/v1/transactions"
)

// StubLedgerConfig configures a StubLedger
type StubLedgerConfig struct {
	Registry      *registry.Registry
	ServiceName   string
	WireFormat    codec.WireFormat
	HashAlgorithm hashing.Algorithm

	// PendingPolls is how many explorer queries report a transaction in-pool before it commits
	PendingPolls int

	JWTSecret []byte
	Logger    *zap.Logger
}

// StubLedger is an in-process ledger node serving the submission, explorer and account APIs of
// the simple_mining_pool service. Transactions are decoded, verified and executed on commit.
type StubLedger struct {
	server      *httptest.Server
	registry    *registry.Registry
	serviceName string
	wireFormat  codec.WireFormat
	hashAlgo    hashing.Algorithm
	pending     int
	jwtSecret   []byte
	logger      *zap.Logger

	mu             sync.Mutex
	accounts       map[string]*stubAccount
	transactions   map[string]*stubTransaction
	tokens         map[string]string
	height         uint64
	submitStatus   int
	explorerStatus int
	submitCount    int
	explorerCount  int
}

type stubAccount struct {
	pubKey          []byte
	name            string
	balance         uint64
	history         []types.Hash
	accessTokenHash types.Hash
}

type stubTransaction struct {
	tx        *types.SignedTransaction
	content   json.RawMessage
	pollsLeft int
	committed bool
	height    uint64
	status    types.ExecutionStatus
}

// NewStubLedger starts a stub ledger that is shut down when the test finishes
func NewStubLedger(t testing.TB, cfg *StubLedgerConfig) *StubLedger {
	t.Helper()
	if cfg == nil {
		cfg = &StubLedgerConfig{}
	}
	l := &StubLedger{
		registry:     cfg.Registry,
		serviceName:  cfg.ServiceName,
		wireFormat:   cfg.WireFormat,
		hashAlgo:     cfg.HashAlgorithm,
		pending:      cfg.PendingPolls,
		jwtSecret:    cfg.JWTSecret,
		logger:       cfg.Logger,
		accounts:     make(map[string]*stubAccount),
		transactions: make(map[string]*stubTransaction),
		tokens:       make(map[string]string),
	}
	if l.registry == nil {
		l.registry = registry.NewMiningPoolRegistry()
	}
	if l.serviceName == "" {
		l.serviceName = registry.MiningPoolServiceName
	}
	if l.hashAlgo == "" {
		l.hashAlgo = hashing.DefaultAlgorithm
	}
	if l.jwtSecret == nil {
		l.jwtSecret = []byte(DefaultJWTSecret)
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("/api/services/%s/v1/transaction", l.serviceName), l.handleSubmit)
	mux.HandleFunc(fmt.Sprintf("/api/services/%s/v1/accounts", l.serviceName), l.handleAccount)
	mux.HandleFunc(fmt.Sprintf("/api/services/%s/v1/accounts/info", l.serviceName), l.handleAccountInfo)
	mux.HandleFunc(explorerPrefix, l.handleExplorer)
	mux.HandleFunc(explorerPrefix+"/", l.handleExplorer)

	l.server = httptest.NewServer(mux)
	t.Cleanup(l.server.Close)
	return l
}

// URL is the base URL of the stub ledger
func (l *StubLedger) URL() string {
	return l.server.URL
}

// Close shuts the server down; in-flight requests fail with transport errors afterwards
func (l *StubLedger) Close() {
	l.server.Close()
}

// SetSubmitStatus makes every submission answer with status. Zero restores normal handling.
func (l *StubLedger) SetSubmitStatus(status int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitStatus = status
}

// SetExplorerStatus makes every explorer query answer with status. Zero restores normal handling.
func (l *StubLedger) SetExplorerStatus(status int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.explorerStatus = status
}

func (l *StubLedger) SubmitCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.submitCount
}

func (l *StubLedger) ExplorerCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.explorerCount
}

// IssuedToken returns the last access token issued to pubKey by a SignIn
func (l *StubLedger) IssuedToken(pubKey []byte) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tok, ok := l.tokens[hex.EncodeToString(pubKey)]
	return tok, ok
}

// ParseAccessToken verifies an access token against the ledger's secret
func (l *StubLedger) ParseAccessToken(token string) (jwt.Token, error) {
	return jwt.Parse([]byte(token), jwt.WithKey(jwa.HS256(), l.jwtSecret), jwt.WithValidate(true))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (l *StubLedger) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	l.mu.Lock()
	l.submitCount++
	override := l.submitStatus
	l.mu.Unlock()
	if override != 0 {
		http.Error(w, "stub ledger failure", override)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := l.decode(data)
	if err != nil {
		l.logger.Sugar().Debugw("Stub ledger refused transaction", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := tx.ContentHash.Hex()
	l.mu.Lock()
	if _, ok := l.transactions[key]; !ok {
		l.transactions[key] = &stubTransaction{
			tx:        tx,
			content:   data,
			pollsLeft: l.pending,
		}
	}
	l.mu.Unlock()

	writeJSON(w, http.StatusOK, types.TransactionResponse{TxHash: key})
}

// decode parses and verifies a wire transaction the same way a node would before accepting it
func (l *StubLedger) decode(data []byte) (*types.SignedTransaction, error) {
	return transactionBuilder.Decode(data, l.registry, l.wireFormat, l.hashAlgo)
}

func (l *StubLedger) handleExplorer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hashHex := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, explorerPrefix), "/")
	if hashHex == "" {
		hashHex = r.URL.Query().Get("hash")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.explorerCount++

	if l.explorerStatus != 0 {
		http.Error(w, "stub explorer failure", l.explorerStatus)
		return
	}

	hash, err := types.HashFromHex(hashHex)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stx, ok := l.transactions[hash.Hex()]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"type": types.ExplorerTypeUnknown})
		return
	}

	if !stx.committed {
		if stx.pollsLeft > 0 {
			stx.pollsLeft--
			writeJSON(w, http.StatusOK, map[string]any{
				"type":    types.ExplorerTypeInPool,
				"content": stx.content,
			})
			return
		}
		l.height++
		stx.height = l.height
		stx.status = l.execute(stx.tx)
		stx.committed = true
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"type":    types.ExplorerTypeCommitted,
		"content": stx.content,
		"location": map[string]string{
			"block_height":      strconv.FormatUint(stx.height, 10),
			"position_in_block": "0",
		},
		"status": stx.status,
	})
}

func executionError(code int, description string) types.ExecutionStatus {
	return types.ExecutionStatus{Type: types.ExecutionStatusError, Code: code, Description: description}
}

// execute applies tx to the ledger state. Callers hold l.mu.
func (l *StubLedger) execute(tx *types.SignedTransaction) types.ExecutionStatus {
	p := tx.Payload
	hash := tx.ContentHash

	switch tx.Schema.MessageID {
	case registry.CreateAccountMessageID:
		pub := p["pub_key"].([]byte)
		key := hex.EncodeToString(pub)
		if _, ok := l.accounts[key]; ok {
			return executionError(registry.ErrorCodeAccountAlreadyExists, "Account already exists")
		}
		l.accounts[key] = &stubAccount{
			pubKey:  pub,
			name:    p["name"].(string),
			balance: InitialBalance,
			history: []types.Hash{hash},
		}

	case registry.IssueMessageID:
		acc, ok := l.accounts[hex.EncodeToString(p["pub_key"].([]byte))]
		if !ok {
			return executionError(registry.ErrorCodeReceiverNotFound, "Receiver doesn't exist")
		}
		acc.balance += p["amount"].(uint64)
		acc.history = append(acc.history, hash)

	case registry.TransferMessageID:
		sender, ok := l.accounts[hex.EncodeToString(p["from"].([]byte))]
		if !ok {
			return executionError(registry.ErrorCodeSenderNotFound, "Sender doesn't exist")
		}
		receiver, ok := l.accounts[hex.EncodeToString(p["to"].([]byte))]
		if !ok {
			return executionError(registry.ErrorCodeReceiverNotFound, "Receiver doesn't exist")
		}
		amount := p["amount"].(uint64)
		if sender.balance < amount {
			return executionError(registry.ErrorCodeInsufficientCurrencyAmount, "Insufficient currency amount")
		}
		sender.balance -= amount
		sender.history = append(sender.history, hash)
		receiver.balance += amount
		receiver.history = append(receiver.history, hash)

	case registry.SignInMessageID:
		pub := p["pub_key"].([]byte)
		key := hex.EncodeToString(pub)
		acc, ok := l.accounts[key]
		if !ok || acc.name != p["name"].(string) {
			return executionError(registry.ErrorCodeAuthenticationFailed, "Sign in failed")
		}
		token, err := l.issueToken(key, acc.name)
		if err != nil {
			return executionError(registry.ErrorCodeAuthenticationFailed, "Sign in failed")
		}
		sum := sha256.Sum256([]byte(token))
		acc.accessTokenHash = sum[:]
		acc.history = append(acc.history, hash)
		l.tokens[key] = token

	default:
		return types.ExecutionStatus{Type: types.ExecutionStatusPanic, Description: "unsupported transaction"}
	}

	return types.ExecutionStatus{Type: types.ExecutionStatusSuccess}
}

func (l *StubLedger) issueToken(subject, name string) (string, error) {
	tok, err := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(time.Now()).
		Claim("name", name).
		Claim("rank", true).
		Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), l.jwtSecret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

func (l *StubLedger) handleAccount(w http.ResponseWriter, r *http.Request) {
	l.serveAccountQuery(w, r, func(pub []byte) (any, bool, error) {
		return l.Account(pub)
	})
}

func (l *StubLedger) handleAccountInfo(w http.ResponseWriter, r *http.Request) {
	l.serveAccountQuery(w, r, func(pub []byte) (any, bool, error) {
		return l.AccountInfo(pub)
	})
}

func (l *StubLedger) serveAccountQuery(w http.ResponseWriter, r *http.Request, lookup func([]byte) (any, bool, error)) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	pub, err := hex.DecodeString(strings.TrimPrefix(r.URL.Query().Get("pub_key"), "0x"))
	if err != nil || len(pub) == 0 {
		http.Error(w, "invalid pub_key", http.StatusBadRequest)
		return
	}

	body, ok, err := lookup(pub)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// Account returns the current account record for pubKey as the accounts API serves it
func (l *StubLedger) Account(pubKey []byte) (*types.Account, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[hex.EncodeToString(pubKey)]
	if !ok {
		return nil, false, nil
	}
	tree, err := merkle.BuildHistoryTree(acc.history)
	if err != nil {
		return nil, false, err
	}
	return acc.record(tree), true, nil
}

// AccountInfo returns the account record for pubKey with its history, the committed
// transactions and a merkle proof for every history entry
func (l *StubLedger) AccountInfo(pubKey []byte) (*types.AccountInfo, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[hex.EncodeToString(pubKey)]
	if !ok {
		return nil, false, nil
	}
	tree, err := merkle.BuildHistoryTree(acc.history)
	if err != nil {
		return nil, false, err
	}

	history := &types.AccountHistory{
		Root:    tree.Root().Hex(),
		Entries: make([]types.HistoryEntry, 0, len(acc.history)),
	}
	for i, hash := range acc.history {
		proof, err := tree.GenerateProof(i)
		if err != nil {
			return nil, false, err
		}
		siblings := make([]string, len(proof.Hashes))
		for j, h := range proof.Hashes {
			siblings[j] = hex.EncodeToString(h)
		}
		entry := types.HistoryEntry{
			Index:  proof.LeafIndex,
			TxHash: hash.Hex(),
			Proof:  siblings,
		}
		if stx, ok := l.transactions[hash.Hex()]; ok {
			entry.Transaction = stx.content
		}
		history.Entries = append(history.Entries, entry)
	}

	return &types.AccountInfo{Account: acc.record(tree), History: history}, true, nil
}

func (acc *stubAccount) record(tree *merkle.HistoryTree) *types.Account {
	tokenHash := acc.accessTokenHash
	if tokenHash == nil {
		tokenHash = make(types.Hash, types.HashSize)
	}
	return &types.Account{
		PubKey:          hex.EncodeToString(acc.pubKey),
		Name:            acc.name,
		Balance:         acc.balance,
		HistoryLen:      uint64(len(acc.history)),
		HistoryHash:     tree.Root().Hex(),
		AccessTokenHash: tokenHash.Hex(),
	}
}
