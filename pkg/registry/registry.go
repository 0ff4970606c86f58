// Package registry holds the message schemas a client knows how to build and decode.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

const (
	// MiningPoolServiceID is the service id of the simple_mining_pool ledger service
	MiningPoolServiceID uint16 = 128

	// MiningPoolServiceName is the service name used in API routes
	MiningPoolServiceName = "simple_mining_pool"

	// DefaultProtocolVersion is the message protocol version the ledger accepts
	DefaultProtocolVersion uint8 = 0
)

const (
	TransferMessageID      uint16 = 0
	IssueMessageID         uint16 = 1
	CreateAccountMessageID uint16 = 2
	SignInMessageID        uint16 = 3
)

// Execution error codes reported by the simple_mining_pool service
const (
	ErrorCodeAccountAlreadyExists       = 0
	ErrorCodeSenderNotFound             = 1
	ErrorCodeReceiverNotFound           = 2
	ErrorCodeInsufficientCurrencyAmount = 3
	ErrorCodeAuthenticationFailed       = 4
)

// The simple_mining_pool schemas are built once and handed out by reference. They are
// shared by every caller and must be treated as read-only; take a Clone, or use
// Registry.Get, before changing one.
var (
	transferSchema = &types.MessageSchema{
		Name:            "Transfer",
		ProtocolVersion: DefaultProtocolVersion,
		ServiceID:       MiningPoolServiceID,
		MessageID:       TransferMessageID,
		Fields: []types.FieldSpec{
			{Name: "from", Type: types.FieldTypePublicKey},
			{Name: "to", Type: types.FieldTypePublicKey},
			{Name: "amount", Type: types.FieldTypeUInt64},
			{Name: "seed", Type: types.FieldTypeUInt64},
		},
		SignerField: "from",
	}

	issueSchema = &types.MessageSchema{
		Name:            "Issue",
		ProtocolVersion: DefaultProtocolVersion,
		ServiceID:       MiningPoolServiceID,
		MessageID:       IssueMessageID,
		Fields: []types.FieldSpec{
			{Name: "pub_key", Type: types.FieldTypePublicKey},
			{Name: "amount", Type: types.FieldTypeUInt64},
			{Name: "seed", Type: types.FieldTypeUInt64},
		},
	}

	createAccountSchema = &types.MessageSchema{
		Name:            "CreateAccount",
		ProtocolVersion: DefaultProtocolVersion,
		ServiceID:       MiningPoolServiceID,
		MessageID:       CreateAccountMessageID,
		Fields: []types.FieldSpec{
			{Name: "pub_key", Type: types.FieldTypePublicKey},
			{Name: "name", Type: types.FieldTypeString},
		},
	}

	signInSchema = &types.MessageSchema{
		Name:            "SignIn",
		ProtocolVersion: DefaultProtocolVersion,
		ServiceID:       MiningPoolServiceID,
		MessageID:       SignInMessageID,
		Fields: []types.FieldSpec{
			{Name: "pub_key", Type: types.FieldTypePublicKey},
			{Name: "name", Type: types.FieldTypeString},
		},
	}
)

// Transfer moves amount from one account to another. Signed by from.
func Transfer() *types.MessageSchema { return transferSchema }

// Issue credits amount to pub_key
func Issue() *types.MessageSchema { return issueSchema }

// CreateAccount registers a named account for pub_key
func CreateAccount() *types.MessageSchema { return createAccountSchema }

// SignIn authenticates name against pub_key and rotates the account's access token
func SignIn() *types.MessageSchema { return signInSchema }

type schemaKey struct {
	serviceID uint16
	messageID uint16
}

// Registry is a thread safe set of schemas addressable by name or by (service id, message id).
// Registered schemas are copied in and out so callers can never mutate a registered schema.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*types.MessageSchema
	byID   map[schemaKey]*types.MessageSchema
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*types.MessageSchema),
		byID:   make(map[schemaKey]*types.MessageSchema),
	}
}

// NewMiningPoolRegistry returns a registry holding the four simple_mining_pool transactions
func NewMiningPoolRegistry() *Registry {
	r := NewRegistry()
	for _, s := range []*types.MessageSchema{Transfer(), Issue(), CreateAccount(), SignIn()} {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds schema to the registry. Names and (service id, message id) pairs must be unique.
func (r *Registry) Register(schema *types.MessageSchema) error {
	if schema == nil {
		return fmt.Errorf("schema cannot be nil")
	}
	if schema.Name == "" {
		return fmt.Errorf("schema name is required")
	}
	if len(schema.Fields) == 0 {
		return fmt.Errorf("schema %s declares no fields", schema.Name)
	}
	seen := make(map[string]struct{}, len(schema.Fields))
	for _, f := range schema.Fields {
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("schema %s declares field %q twice", schema.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	if _, err := schema.SignerFieldSpec(); err != nil {
		return err
	}

	key := schemaKey{serviceID: schema.ServiceID, messageID: schema.MessageID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[schema.Name]; ok {
		return fmt.Errorf("schema %s is already registered", schema.Name)
	}
	if existing, ok := r.byID[key]; ok {
		return fmt.Errorf("service %d message %d is already registered as %s", key.serviceID, key.messageID, existing.Name)
	}

	stored := schema.Clone()
	r.byName[stored.Name] = stored
	r.byID[key] = stored
	return nil
}

// Get returns a copy of the schema registered under name
func (r *Registry) Get(name string) (*types.MessageSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Lookup returns a copy of the schema registered for the service and message ids
func (r *Registry) Lookup(serviceID, messageID uint16) (*types.MessageSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[schemaKey{serviceID: serviceID, messageID: messageID}]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Names lists the registered schema names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
