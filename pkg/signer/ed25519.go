package signer

import (
	"bytes"
	"crypto/ed25519"

	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

// Ed25519Scheme accepts either a 32 byte seed or a 64 byte seed||public key secret,
// which is how the ledger's tooling stores secret keys.
type Ed25519Scheme struct{}

func NewEd25519Scheme() *Ed25519Scheme {
	return &Ed25519Scheme{}
}

func (s *Ed25519Scheme) Name() SchemeName {
	return SchemeEd25519
}

func (s *Ed25519Scheme) PublicKeyFieldType() types.FieldType {
	return types.FieldTypePublicKey
}

func (s *Ed25519Scheme) privateKey(privateKey []byte) (ed25519.PrivateKey, error) {
	switch len(privateKey) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(privateKey), nil
	case ed25519.PrivateKeySize:
		expanded := ed25519.NewKeyFromSeed(privateKey[:ed25519.SeedSize])
		if !bytes.Equal(expanded[ed25519.SeedSize:], privateKey[ed25519.SeedSize:]) {
			return nil, invalidKey("ed25519 secret key public half does not match its seed")
		}
		return expanded, nil
	default:
		return nil, invalidKey("ed25519 private key must be %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(privateKey))
	}
}

func (s *Ed25519Scheme) PublicKey(privateKey []byte) ([]byte, error) {
	priv, err := s.privateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), priv.Public().(ed25519.PublicKey)...), nil
}

func (s *Ed25519Scheme) Sign(privateKey, message []byte) ([]byte, error) {
	priv, err := s.privateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(priv, message), nil
}

func (s *Ed25519Scheme) Verify(publicKey, message, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(publicKey, message, signature)
}
