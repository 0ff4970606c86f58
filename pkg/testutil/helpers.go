package testutil

import (
	"bytes"
	"testing"

	"github.com/Layr-Labs/ledgertx-go/pkg/signer"
)

// TestKeyPair is an ed25519 key pair in the ledger's 64 byte secret key format
type TestKeyPair struct {
	SecretKey []byte
	PublicKey []byte
}

// NewTestKeyPair derives a deterministic key pair from a one byte seed pattern
func NewTestKeyPair(t testing.TB, seed byte) *TestKeyPair {
	t.Helper()
	s := bytes.Repeat([]byte{seed}, 32)
	pub, err := signer.NewEd25519Scheme().PublicKey(s)
	if err != nil {
		t.Fatalf("failed to derive test key: %v", err)
	}
	return &TestKeyPair{
		SecretKey: append(s, pub...),
		PublicKey: pub,
	}
}
