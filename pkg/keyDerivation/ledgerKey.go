package keyDerivation

import (
	"crypto/ed25519"
	"fmt"

	"github.com/anyproto/go-slip10"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

const (
	purposeBIP44 = 44
	// coinTypeLedger is the SLIP-44 "testnet, all coins" type used for ledger keys
	coinTypeLedger = 1
)

// LedgerKey is an Ed25519 key pair in the ledger's 64 byte secret key format
// (seed followed by public key).
type LedgerKey struct {
	Path      string
	SecretKey []byte
	PublicKey []byte
}

// DeriveLedgerKey derives the ledger key at m/44'/1'/account' with SLIP-10. Ed25519
// only supports hardened derivation, so every level is hardened.
func DeriveLedgerKey(seed []byte, account uint32) (*LedgerKey, error) {
	if account >= hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("account index %d out of range", account)
	}
	path := fmt.Sprintf("m/%d'/%d'/%d'", purposeBIP44, coinTypeLedger, account)

	priv, err := deriveEd25519(seed, path)
	if err != nil {
		return nil, err
	}

	return &LedgerKey{
		Path:      path,
		SecretKey: []byte(priv),
		PublicKey: []byte(priv.Public().(ed25519.PublicKey)),
	}, nil
}

// deriveEd25519 returns the SLIP-10 Ed25519 key at a fully hardened path such as m/44'/1'/0'
func deriveEd25519(seed []byte, path string) (ed25519.PrivateKey, error) {
	if len(seed) < hdkeychain.MinSeedBytes || len(seed) > hdkeychain.MaxSeedBytes {
		return nil, fmt.Errorf("seed length must be between %d and %d bytes", hdkeychain.MinSeedBytes, hdkeychain.MaxSeedBytes)
	}
	node, err := slip10.DeriveForPath(path, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to derive %s: %w", path, err)
	}
	return ed25519.NewKeyFromSeed(node.RawSeed()), nil
}
