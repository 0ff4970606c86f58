package signer

import (
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

// Secp256k1SignatureSize is the length of an r||s signature; the recovery byte is dropped
const Secp256k1SignatureSize = 64

// Secp256k1Scheme signs keccak256(message) with a 32 byte secp256k1 scalar.
// Signatures are 64 byte r||s with low S; public keys are 33 byte compressed points.
type Secp256k1Scheme struct{}

func NewSecp256k1Scheme() *Secp256k1Scheme {
	return &Secp256k1Scheme{}
}

func (s *Secp256k1Scheme) Name() SchemeName {
	return SchemeSecp256k1
}

func (s *Secp256k1Scheme) PublicKeyFieldType() types.FieldType {
	return types.FieldTypeSecp256k1PublicKey
}

func (s *Secp256k1Scheme) PublicKey(privateKey []byte) ([]byte, error) {
	if len(privateKey) != 32 {
		return nil, invalidKey("secp256k1 private key must be 32 bytes, got %d", len(privateKey))
	}
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, invalidKey("%v", err)
	}
	return crypto.CompressPubkey(&key.PublicKey), nil
}

func (s *Secp256k1Scheme) Sign(privateKey, message []byte) ([]byte, error) {
	if len(privateKey) != 32 {
		return nil, invalidKey("secp256k1 private key must be 32 bytes, got %d", len(privateKey))
	}
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, invalidKey("%v", err)
	}
	sig, err := crypto.Sign(crypto.Keccak256(message), key)
	if err != nil {
		return nil, err
	}
	return sig[:Secp256k1SignatureSize], nil
}

func (s *Secp256k1Scheme) Verify(publicKey, message, signature []byte) bool {
	if len(signature) != Secp256k1SignatureSize {
		return false
	}
	return crypto.VerifySignature(publicKey, crypto.Keccak256(message), signature)
}
