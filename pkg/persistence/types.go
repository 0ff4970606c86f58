package persistence

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

// SubmissionRecord is the journal entry for a single submitted transaction.
type SubmissionRecord struct {
	// RequestID correlates log lines and journal entries for one submission.
	RequestID uuid.UUID `json:"requestId"`

	TxHash     types.Hash `json:"txHash"`
	SchemaName string     `json:"schemaName"`
	ServiceID  uint16     `json:"serviceId"`
	MessageID  uint16     `json:"messageId"`

	State               types.SubmissionState `json:"state"`
	Reason              string                `json:"reason,omitempty"`
	ConfirmationPayload []byte                `json:"confirmationPayload,omitempty"`

	// Transaction holds the wire encoding of the signed transaction so a pending
	// submission can be re-sent if the ledger never saw it.
	Transaction []byte `json:"transaction,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSubmissionRecord creates a pending record for a signed transaction
func NewSubmissionRecord(tx *types.SignedTransaction, wire []byte) *SubmissionRecord {
	now := time.Now().UTC()
	return &SubmissionRecord{
		RequestID:   uuid.New(),
		TxHash:      append(types.Hash(nil), tx.ContentHash...),
		SchemaName:  tx.Schema.Name,
		ServiceID:   tx.Schema.ServiceID,
		MessageID:   tx.Schema.MessageID,
		State:       types.SubmissionStatePending,
		Transaction: append([]byte(nil), wire...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Key returns the storage key of the record
func (r *SubmissionRecord) Key() string {
	return r.TxHash.Hex()
}

// Apply copies the outcome of a submission into the record
func (r *SubmissionRecord) Apply(result *types.SubmissionResult) {
	if result == nil {
		return
	}
	r.State = result.State
	r.Reason = result.Reason
	r.ConfirmationPayload = append([]byte(nil), result.ConfirmationPayload...)
	r.UpdatedAt = time.Now().UTC()
}

// Result converts the record back into a submission result
func (r *SubmissionRecord) Result() *types.SubmissionResult {
	return &types.SubmissionResult{
		TxHash:              append(types.Hash(nil), r.TxHash...),
		State:               r.State,
		Confirmed:           r.State == types.SubmissionStateConfirmed,
		ConfirmationPayload: append([]byte(nil), r.ConfirmationPayload...),
		Reason:              r.Reason,
	}
}

// Clone returns a deep copy of the record
func (r *SubmissionRecord) Clone() *SubmissionRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.TxHash = append(types.Hash(nil), r.TxHash...)
	c.ConfirmationPayload = append([]byte(nil), r.ConfirmationPayload...)
	c.Transaction = append([]byte(nil), r.Transaction...)
	return &c
}

// ValidateRecord checks the fields every backend relies on
func ValidateRecord(r *SubmissionRecord) error {
	if r == nil {
		return fmt.Errorf("cannot save nil SubmissionRecord")
	}
	if len(r.TxHash) != types.HashSize {
		return fmt.Errorf("invalid tx hash length: %d", len(r.TxHash))
	}
	if r.State == "" {
		return fmt.Errorf("submission state is required")
	}
	return nil
}

// SortByCreatedAt orders records oldest first, breaking ties on the hash
func SortByCreatedAt(records []*SubmissionRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].Key() < records[j].Key()
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}

// FilterPending returns the records still awaiting a terminal state
func FilterPending(records []*SubmissionRecord) []*SubmissionRecord {
	pending := make([]*SubmissionRecord, 0, len(records))
	for _, r := range records {
		if !r.State.IsTerminal() {
			pending = append(pending, r)
		}
	}
	return pending
}
