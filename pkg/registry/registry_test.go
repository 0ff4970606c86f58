package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/ledgertx-go/pkg/codec"
	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

var _ codec.ISchemaLookup = (*Registry)(nil)

func TestMiningPoolRegistry(t *testing.T) {
	r := NewMiningPoolRegistry()
	assert.Equal(t, []string{"CreateAccount", "Issue", "SignIn", "Transfer"}, r.Names())

	tests := []struct {
		name      string
		messageID uint16
		signer    string
	}{
		{name: "Transfer", messageID: TransferMessageID, signer: "from"},
		{name: "Issue", messageID: IssueMessageID, signer: "pub_key"},
		{name: "CreateAccount", messageID: CreateAccountMessageID, signer: "pub_key"},
		{name: "SignIn", messageID: SignInMessageID, signer: "pub_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := r.Lookup(MiningPoolServiceID, tt.messageID)
			require.True(t, ok)
			assert.Equal(t, tt.name, s.Name)

			byName, ok := r.Get(tt.name)
			require.True(t, ok)
			assert.Equal(t, s, byName)

			f, err := s.SignerFieldSpec()
			require.NoError(t, err)
			assert.Equal(t, tt.signer, f.Name)
		})
	}
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	r := NewMiningPoolRegistry()
	s, ok := r.Get("CreateAccount")
	require.True(t, ok)
	s.Fields[1].Type = types.FieldTypeUInt8
	s.Name = "Changed"

	again, ok := r.Get("CreateAccount")
	require.True(t, ok)
	assert.Equal(t, types.FieldTypeString, again.Fields[1].Type)
	assert.Equal(t, "CreateAccount", again.Name)
}

func TestMiningPoolSchemas_Shared(t *testing.T) {
	tests := []struct {
		name   string
		schema func() *types.MessageSchema
	}{
		{name: "Transfer", schema: Transfer},
		{name: "Issue", schema: Issue},
		{name: "CreateAccount", schema: CreateAccount},
		{name: "SignIn", schema: SignIn},
	}

	r := NewMiningPoolRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Same(t, tt.schema(), tt.schema())

			registered, ok := r.Get(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.schema(), registered)
			assert.NotSame(t, tt.schema(), registered)

			registered.Fields[0].Name = "changed"
			assert.NotEqual(t, "changed", tt.schema().Fields[0].Name)
		})
	}
}

func TestRegistry_RegisterErrors(t *testing.T) {
	tests := []struct {
		name   string
		schema *types.MessageSchema
	}{
		{name: "nil schema", schema: nil},
		{name: "missing name", schema: &types.MessageSchema{Fields: CreateAccount().Fields}},
		{name: "no fields", schema: &types.MessageSchema{Name: "Empty"}},
		{name: "duplicate name", schema: CreateAccount()},
		{
			name: "duplicate ids",
			schema: &types.MessageSchema{
				Name: "Other", ServiceID: MiningPoolServiceID, MessageID: IssueMessageID,
				Fields: CreateAccount().Fields,
			},
		},
		{
			name: "duplicate field",
			schema: &types.MessageSchema{
				Name: "Dup", MessageID: 40,
				Fields: []types.FieldSpec{{Name: "k", Type: types.FieldTypePublicKey}, {Name: "k", Type: types.FieldTypeString}},
			},
		},
		{
			name: "no key field",
			schema: &types.MessageSchema{
				Name: "NoKey", MessageID: 41,
				Fields: []types.FieldSpec{{Name: "n", Type: types.FieldTypeString}},
			},
		},
	}

	r := NewMiningPoolRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, r.Register(tt.schema))
		})
	}
}
