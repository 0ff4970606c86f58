package types

import "encoding/json"

// Explorer transaction types as reported by the ledger
const (
	ExplorerTypeCommitted = "committed"
	ExplorerTypeInPool    = "in-pool"
	ExplorerTypeUnknown   = "unknown"
)

// Execution status types of a committed transaction
const (
	ExecutionStatusSuccess = "success"
	ExecutionStatusError   = "error"
	ExecutionStatusPanic   = "panic"
)

// TransactionResponse is returned by the service after a transaction was accepted
type TransactionResponse struct {
	TxHash string `json:"tx_hash"`
}

// ExecutionStatus is the outcome of executing a committed transaction
type ExecutionStatus struct {
	Type        string `json:"type"`
	Code        int    `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
}

// ExplorerTransaction is the explorer's view of a transaction
type ExplorerTransaction struct {
	Type     string           `json:"type"`
	Content  json.RawMessage  `json:"content,omitempty"`
	Location json.RawMessage  `json:"location,omitempty"`
	Status   *ExecutionStatus `json:"status,omitempty"`
}

// Account mirrors the ledger's account record
type Account struct {
	PubKey          string `json:"pub_key"`
	Name            string `json:"name"`
	Balance         uint64 `json:"balance,string"`
	HistoryLen      uint64 `json:"history_len,string"`
	HistoryHash     string `json:"history_hash"`
	AccessTokenHash string `json:"access_token_hash"`
}

// AccountInfo is an account together with its transaction history and the proofs that
// tie each history entry to the account's history root
type AccountInfo struct {
	Account *Account        `json:"account"`
	History *AccountHistory `json:"account_history,omitempty"`
}

// AccountHistory lists the transactions applied to an account, oldest first
type AccountHistory struct {
	Root    string         `json:"root"`
	Entries []HistoryEntry `json:"entries"`
}

// HistoryEntry is one transaction in an account history with its inclusion proof
type HistoryEntry struct {
	Index       uint64          `json:"index,string"`
	TxHash      string          `json:"tx_hash"`
	Proof       []string        `json:"proof"`
	Transaction json.RawMessage `json:"transaction,omitempty"`
}
