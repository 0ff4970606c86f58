package transactionBuilder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/ledgertx-go/pkg/codec"
	"github.com/Layr-Labs/ledgertx-go/pkg/hashing"
	"github.com/Layr-Labs/ledgertx-go/pkg/registry"
	"github.com/Layr-Labs/ledgertx-go/pkg/signer"
	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

func ed25519Key(t *testing.T, fill byte) (priv, pub []byte) {
	t.Helper()
	priv = bytes.Repeat([]byte{fill}, 32)
	pub, err := signer.NewEd25519Scheme().PublicKey(priv)
	require.NoError(t, err)
	return priv, pub
}

func TestBuild_CreateAccount(t *testing.T) {
	b := NewDefaultTransactionBuilder()
	priv, pub := ed25519Key(t, 1)
	payload := types.Payload{"pub_key": pub, "name": "John Doe"}

	tx, err := b.Build(registry.CreateAccount(), payload, priv)
	require.NoError(t, err)

	sum := sha256.Sum256(tx.CanonicalBytes)
	assert.Equal(t, types.Hash(sum[:]), tx.ContentHash)
	assert.Equal(t, "sha256", tx.HashAlgorithm)
	assert.Equal(t, "ed25519", tx.SignatureAlgo)
	assert.True(t, signer.NewEd25519Scheme().Verify(pub, tx.CanonicalBytes, tx.Signature))
	assert.NoError(t, Verify(tx))

	again, err := b.Build(registry.CreateAccount(), types.Payload{"name": "John Doe", "pub_key": pub}, priv)
	require.NoError(t, err)
	assert.Equal(t, tx.ContentHash, again.ContentHash)
	assert.Equal(t, tx.Signature, again.Signature)
}

func TestBuild_Errors(t *testing.T) {
	b := NewDefaultTransactionBuilder()
	priv, pub := ed25519Key(t, 1)
	_, otherPub := ed25519Key(t, 2)

	tests := []struct {
		name    string
		schema  *types.MessageSchema
		payload types.Payload
		key     []byte
		wantErr error
	}{
		{
			name:    "missing field",
			schema:  registry.CreateAccount(),
			payload: types.Payload{"pub_key": pub},
			key:     priv,
			wantErr: types.ErrSchemaMismatch,
		},
		{
			name:    "extra field",
			schema:  registry.CreateAccount(),
			payload: types.Payload{"pub_key": pub, "name": "a", "age": 3},
			key:     priv,
			wantErr: types.ErrSchemaMismatch,
		},
		{
			name:    "wrong type",
			schema:  registry.Issue(),
			payload: types.Payload{"pub_key": pub, "amount": "lots", "seed": 1},
			key:     priv,
			wantErr: types.ErrSchemaMismatch,
		},
		{
			name:    "malformed key",
			schema:  registry.CreateAccount(),
			payload: types.Payload{"pub_key": pub, "name": "a"},
			key:     []byte{1, 2, 3},
			wantErr: types.ErrInvalidKey,
		},
		{
			name:    "key does not match declared public key",
			schema:  registry.CreateAccount(),
			payload: types.Payload{"pub_key": otherPub, "name": "a"},
			key:     priv,
			wantErr: types.ErrInvalidKey,
		},
		{
			name:    "transfer signed by receiver",
			schema:  registry.Transfer(),
			payload: types.Payload{"from": otherPub, "to": pub, "amount": 5, "seed": 9},
			key:     priv,
			wantErr: types.ErrInvalidKey,
		},
		{
			name: "unsupported field type",
			schema: &types.MessageSchema{Name: "Odd", Fields: []types.FieldSpec{
				{Name: "pub_key", Type: types.FieldTypePublicKey},
				{Name: "blob", Type: "bytes"},
			}},
			payload: types.Payload{"pub_key": pub, "blob": []byte{1}},
			key:     priv,
			wantErr: types.ErrUnsupportedFieldType,
		},
		{
			name:    "nil schema",
			schema:  nil,
			payload: types.Payload{},
			key:     priv,
			wantErr: types.ErrSchemaMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := b.Build(tt.schema, tt.payload, tt.key)
			assert.Nil(t, tx)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuild_SchemeMustMatchSignerField(t *testing.T) {
	b, err := NewTransactionBuilder(&Config{Scheme: signer.NewSecp256k1Scheme()})
	require.NoError(t, err)
	_, pub := ed25519Key(t, 1)

	_, err = b.Build(registry.CreateAccount(), types.Payload{"pub_key": pub, "name": "a"}, bytes.Repeat([]byte{1}, 32))
	assert.ErrorIs(t, err, types.ErrSchemaMismatch)
}

func secp256k1Schema() *types.MessageSchema {
	return &types.MessageSchema{
		Name:      "Register",
		ServiceID: 200,
		MessageID: 1,
		Fields: []types.FieldSpec{
			{Name: "owner", Type: types.FieldTypeSecp256k1PublicKey},
			{Name: "nonce", Type: types.FieldTypeUInt32},
			{Name: "active", Type: types.FieldTypeBool},
		},
	}
}

func TestBuild_Secp256k1WithKeccak(t *testing.T) {
	scheme := signer.NewSecp256k1Scheme()
	b, err := NewTransactionBuilder(&Config{Scheme: scheme, HashAlgorithm: hashing.AlgorithmKeccak256})
	require.NoError(t, err)

	priv := bytes.Repeat([]byte{3}, 32)
	pub, err := scheme.PublicKey(priv)
	require.NoError(t, err)

	tx, err := b.Build(secp256k1Schema(), types.Payload{"owner": pub, "nonce": 7, "active": true}, priv)
	require.NoError(t, err)
	assert.Equal(t, "keccak256", tx.HashAlgorithm)

	expected, err := hashing.AlgorithmKeccak256.Sum(tx.CanonicalBytes)
	require.NoError(t, err)
	assert.Equal(t, types.Hash(expected), tx.ContentHash)
	assert.NoError(t, Verify(tx))
}

// localRemoteSigner stands in for a key manager in tests
type localRemoteSigner struct {
	scheme signer.ISignatureScheme
	key    []byte
	err    error
}

func (l *localRemoteSigner) Scheme() signer.ISignatureScheme { return l.scheme }

func (l *localRemoteSigner) PublicKey(context.Context) ([]byte, error) {
	return l.scheme.PublicKey(l.key)
}

func (l *localRemoteSigner) Sign(_ context.Context, msg []byte) ([]byte, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.scheme.Sign(l.key, msg)
}

func TestBuildWithSigner(t *testing.T) {
	b := NewDefaultTransactionBuilder()
	ctx := context.Background()
	remote := &localRemoteSigner{scheme: signer.NewSecp256k1Scheme(), key: bytes.Repeat([]byte{5}, 32)}
	pub, err := remote.PublicKey(ctx)
	require.NoError(t, err)

	tx, err := b.BuildWithSigner(ctx, secp256k1Schema(), types.Payload{"owner": pub, "nonce": 1, "active": false}, remote)
	require.NoError(t, err)
	assert.Equal(t, "secp256k1", tx.SignatureAlgo)
	assert.NoError(t, Verify(tx))

	remote.err = assert.AnError
	_, err = b.BuildWithSigner(ctx, secp256k1Schema(), types.Payload{"owner": pub, "nonce": 1, "active": false}, remote)
	assert.ErrorIs(t, err, assert.AnError)

	_, err = b.BuildWithSigner(ctx, secp256k1Schema(), types.Payload{}, nil)
	assert.Error(t, err)
}

func TestVerify_DetectsTampering(t *testing.T) {
	b := NewDefaultTransactionBuilder()
	priv, pub := ed25519Key(t, 1)

	tests := []struct {
		name   string
		mutate func(tx *types.SignedTransaction)
	}{
		{name: "payload changed", mutate: func(tx *types.SignedTransaction) { tx.Payload["name"] = "Jane Doe" }},
		{name: "signature changed", mutate: func(tx *types.SignedTransaction) { tx.Signature[0] ^= 0xff }},
		{name: "hash changed", mutate: func(tx *types.SignedTransaction) { tx.ContentHash[0] ^= 0xff }},
		{name: "unknown hash algorithm", mutate: func(tx *types.SignedTransaction) { tx.HashAlgorithm = "md5" }},
		{name: "no schema", mutate: func(tx *types.SignedTransaction) { tx.Schema = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := b.Build(registry.CreateAccount(), types.Payload{"pub_key": pub, "name": "John Doe"}, priv)
			require.NoError(t, err)
			tt.mutate(tx)
			assert.Error(t, Verify(tx))
		})
	}
}

func TestNewTransactionBuilder_InvalidHash(t *testing.T) {
	_, err := NewTransactionBuilder(&Config{HashAlgorithm: "md5"})
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	b := NewDefaultTransactionBuilder()
	priv, pub := ed25519Key(t, 1)
	tx, err := b.Build(registry.CreateAccount(), types.Payload{"pub_key": pub, "name": "John Doe"}, priv)
	require.NoError(t, err)

	reg := registry.NewMiningPoolRegistry()
	for _, placement := range []codec.SignaturePlacement{codec.SignatureInBody, codec.SignatureInEnvelope} {
		t.Run(string(placement), func(t *testing.T) {
			format := codec.WireFormat{SignaturePlacement: placement}
			wire, err := codec.EncodeTransactionJSON(tx, format)
			require.NoError(t, err)

			decoded, err := Decode(wire, reg, format, hashing.AlgorithmSHA256)
			require.NoError(t, err)
			assert.Equal(t, tx.ContentHash, decoded.ContentHash)
			assert.Equal(t, tx.CanonicalBytes, decoded.CanonicalBytes)
			assert.Equal(t, tx.Signature, decoded.Signature)
			assert.Equal(t, "ed25519", decoded.SignatureAlgo)
		})
	}

	tx.Signature[0] ^= 0xff
	wire, err := codec.EncodeTransactionJSON(tx, codec.DefaultWireFormat)
	require.NoError(t, err)
	_, err = Decode(wire, reg, codec.DefaultWireFormat, hashing.AlgorithmSHA256)
	assert.ErrorIs(t, err, types.ErrInvalidKey)
}
