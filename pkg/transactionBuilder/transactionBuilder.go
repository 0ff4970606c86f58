// Package transactionBuilder turns a schema and payload into a signed, verified, hashed
// transaction. Building is pure: it performs no network or disk I/O.
package transactionBuilder

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Layr-Labs/ledgertx-go/pkg/codec"
	"github.com/Layr-Labs/ledgertx-go/pkg/hashing"
	"github.com/Layr-Labs/ledgertx-go/pkg/signer"
	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

// ITransactionBuilder produces SignedTransactions
type ITransactionBuilder interface {
	// Build serializes payload, signs it with privateKey and verifies the signature
	// against the schema's signer field before hashing it
	Build(schema *types.MessageSchema, payload types.Payload, privateKey []byte) (*types.SignedTransaction, error)

	// BuildWithSigner is Build for keys held by a remote signer
	BuildWithSigner(ctx context.Context, schema *types.MessageSchema, payload types.Payload, remote signer.IRemoteSigner) (*types.SignedTransaction, error)
}

type Config struct {
	// Scheme signs transactions passed to Build. Defaults to ed25519.
	Scheme signer.ISignatureScheme

	// HashAlgorithm computes content hashes. Defaults to sha256.
	HashAlgorithm hashing.Algorithm
}

type TransactionBuilder struct {
	scheme   signer.ISignatureScheme
	hashAlgo hashing.Algorithm
	hash     hashing.HashFunc
}

var _ ITransactionBuilder = (*TransactionBuilder)(nil)

func NewTransactionBuilder(cfg *Config) (*TransactionBuilder, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	scheme := cfg.Scheme
	if scheme == nil {
		scheme = signer.NewEd25519Scheme()
	}
	algo, err := hashing.ParseAlgorithm(string(cfg.HashAlgorithm))
	if err != nil {
		return nil, err
	}
	hash, err := algo.Func()
	if err != nil {
		return nil, err
	}
	return &TransactionBuilder{
		scheme:   scheme,
		hashAlgo: algo,
		hash:     hash,
	}, nil
}

// NewDefaultTransactionBuilder returns a builder using ed25519 signatures and sha256 hashes
func NewDefaultTransactionBuilder() *TransactionBuilder {
	b, err := NewTransactionBuilder(nil)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *TransactionBuilder) Scheme() signer.ISignatureScheme {
	return b.scheme
}

func (b *TransactionBuilder) HashAlgorithm() hashing.Algorithm {
	return b.hashAlgo
}

func (b *TransactionBuilder) Build(schema *types.MessageSchema, payload types.Payload, privateKey []byte) (*types.SignedTransaction, error) {
	return b.build(schema, payload, b.scheme, func(canonical []byte) ([]byte, error) {
		return b.scheme.Sign(privateKey, canonical)
	})
}

func (b *TransactionBuilder) BuildWithSigner(ctx context.Context, schema *types.MessageSchema, payload types.Payload, remote signer.IRemoteSigner) (*types.SignedTransaction, error) {
	if remote == nil {
		return nil, fmt.Errorf("remote signer cannot be nil")
	}
	return b.build(schema, payload, remote.Scheme(), func(canonical []byte) ([]byte, error) {
		return remote.Sign(ctx, canonical)
	})
}

func (b *TransactionBuilder) build(
	schema *types.MessageSchema,
	payload types.Payload,
	scheme signer.ISignatureScheme,
	sign func(canonical []byte) ([]byte, error),
) (*types.SignedTransaction, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: schema cannot be nil", types.ErrSchemaMismatch)
	}

	normalized, err := codec.Normalize(schema, payload)
	if err != nil {
		return nil, err
	}
	signerField, err := signerFieldFor(schema, scheme)
	if err != nil {
		return nil, err
	}
	canonical, err := codec.Serialize(schema, normalized)
	if err != nil {
		return nil, err
	}

	signature, err := sign(canonical)
	if err != nil {
		return nil, err
	}

	publicKey := normalized[signerField.Name].([]byte)
	if !scheme.Verify(publicKey, canonical, signature) {
		return nil, fmt.Errorf("%w: signature does not verify against %s field %q",
			types.ErrInvalidKey, schema.Name, signerField.Name)
	}

	return &types.SignedTransaction{
		Schema:         schema.Clone(),
		Payload:        normalized,
		Signature:      signature,
		ContentHash:    b.hash(canonical),
		CanonicalBytes: canonical,
		HashAlgorithm:  string(b.hashAlgo),
		SignatureAlgo:  string(scheme.Name()),
	}, nil
}

// Verify re-checks every property a SignedTransaction is supposed to carry: the canonical bytes
// match the payload, the signature verifies against the signer field and the content hash matches.
func Verify(tx *types.SignedTransaction) error {
	if tx == nil || tx.Schema == nil {
		return fmt.Errorf("%w: transaction has no schema", types.ErrSchemaMismatch)
	}
	scheme, err := signer.NewScheme(tx.SignatureAlgo)
	if err != nil {
		return err
	}
	algo, err := hashing.ParseAlgorithm(tx.HashAlgorithm)
	if err != nil {
		return err
	}

	canonical, err := codec.Serialize(tx.Schema, tx.Payload)
	if err != nil {
		return err
	}
	if !bytes.Equal(canonical, tx.CanonicalBytes) {
		return fmt.Errorf("%w: canonical bytes do not match payload", types.ErrSchemaMismatch)
	}

	signerField, err := signerFieldFor(tx.Schema, scheme)
	if err != nil {
		return err
	}
	normalized, err := codec.Normalize(tx.Schema, tx.Payload)
	if err != nil {
		return err
	}
	if !scheme.Verify(normalized[signerField.Name].([]byte), canonical, tx.Signature) {
		return fmt.Errorf("%w: signature does not verify against field %q", types.ErrInvalidKey, signerField.Name)
	}

	sum, err := algo.Sum(canonical)
	if err != nil {
		return err
	}
	if !bytes.Equal(sum, tx.ContentHash) {
		return fmt.Errorf("content hash mismatch: have %x, computed %x", []byte(tx.ContentHash), sum)
	}
	return nil
}

// Decode rebuilds a SignedTransaction from its wire encoding and verifies it. The signature
// scheme follows the type of the schema's signer field.
func Decode(data []byte, lookup codec.ISchemaLookup, format codec.WireFormat, algo hashing.Algorithm) (*types.SignedTransaction, error) {
	decoded, err := codec.DecodeTransactionJSON(data, lookup, format)
	if err != nil {
		return nil, err
	}
	canonical, err := codec.Serialize(decoded.Schema, decoded.Payload)
	if err != nil {
		return nil, err
	}
	signerField, err := decoded.Schema.SignerFieldSpec()
	if err != nil {
		return nil, err
	}
	scheme := signer.SchemeEd25519
	if signerField.Type == types.FieldTypeSecp256k1PublicKey {
		scheme = signer.SchemeSecp256k1
	}
	hash, err := algo.Sum(canonical)
	if err != nil {
		return nil, err
	}

	tx := &types.SignedTransaction{
		Schema:         decoded.Schema,
		Payload:        decoded.Payload,
		Signature:      decoded.Signature,
		ContentHash:    hash,
		CanonicalBytes: canonical,
		HashAlgorithm:  string(algo),
		SignatureAlgo:  string(scheme),
	}
	if err := Verify(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func signerFieldFor(schema *types.MessageSchema, scheme signer.ISignatureScheme) (types.FieldSpec, error) {
	f, err := schema.SignerFieldSpec()
	if err != nil {
		return types.FieldSpec{}, err
	}
	if f.Type != scheme.PublicKeyFieldType() {
		return types.FieldSpec{}, fmt.Errorf("%w: signer field %q has type %s but scheme %s expects %s",
			types.ErrSchemaMismatch, f.Name, f.Type, scheme.Name(), scheme.PublicKeyFieldType())
	}
	return f, nil
}
