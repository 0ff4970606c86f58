package signer

import (
	"context"
	"fmt"
	"strings"

	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

type SchemeName string

const (
	SchemeEd25519   SchemeName = "ed25519"
	SchemeSecp256k1 SchemeName = "secp256k1"
)

// ISignatureScheme signs and verifies canonical message bytes with an explicit private key.
// Implementations are stateless: keys are never cached, stored or logged.
type ISignatureScheme interface {
	// Name returns the scheme identifier
	Name() SchemeName

	// PublicKeyFieldType is the schema field type carrying public keys of this scheme
	PublicKeyFieldType() types.FieldType

	// PublicKey derives the public key for privateKey
	PublicKey(privateKey []byte) ([]byte, error)

	// Sign produces a deterministic signature over message.
	// Returns an error wrapping types.ErrInvalidKey for malformed keys.
	Sign(privateKey, message []byte) ([]byte, error)

	// Verify checks signature over message against publicKey
	Verify(publicKey, message, signature []byte) bool
}

// IRemoteSigner signs with a key that never leaves an external key manager
type IRemoteSigner interface {
	// Scheme returns the scheme used to verify signatures produced by this signer
	Scheme() ISignatureScheme

	// PublicKey returns the public key of the remote signing key, in the scheme's field encoding
	PublicKey(ctx context.Context) ([]byte, error)

	// Sign signs message with the remote key
	Sign(ctx context.Context, message []byte) ([]byte, error)
}

// NewScheme returns the signature scheme registered under name
func NewScheme(name string) (ISignatureScheme, error) {
	switch SchemeName(strings.ToLower(strings.TrimSpace(name))) {
	case SchemeEd25519, "":
		return NewEd25519Scheme(), nil
	case SchemeSecp256k1:
		return NewSecp256k1Scheme(), nil
	default:
		return nil, fmt.Errorf("unsupported signature scheme: %s", name)
	}
}

func invalidKey(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrInvalidKey, fmt.Sprintf(format, args...))
}
