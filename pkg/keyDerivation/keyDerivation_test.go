package keyDerivation

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/ledgertx-go/pkg/signer"
)

const (
	abandonMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	abandonSeedHex  = "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4"
)

func abandonSeed(t *testing.T) []byte {
	t.Helper()
	seed, err := MnemonicToSeed(abandonMnemonic, "")
	require.NoError(t, err)
	return seed
}

func TestMnemonicToSeed_Vector(t *testing.T) {
	assert.True(t, ValidateMnemonic(abandonMnemonic))
	assert.Equal(t, abandonSeedHex, hex.EncodeToString(abandonSeed(t)))

	// Extra whitespace is ignored
	seed, err := MnemonicToSeed("  "+strings.ReplaceAll(abandonMnemonic, " ", "  ")+"\n", "")
	require.NoError(t, err)
	assert.Equal(t, abandonSeedHex, hex.EncodeToString(seed))
}

func TestEntropyToMnemonic(t *testing.T) {
	mnemonic, err := EntropyToMnemonic(make([]byte, 16))
	require.NoError(t, err)
	assert.Equal(t, abandonMnemonic, mnemonic)

	_, err = EntropyToMnemonic(make([]byte, 15))
	assert.Error(t, err)
}

func TestNewMnemonic(t *testing.T) {
	tests := []struct {
		bits  int
		words int
		ok    bool
	}{
		{bits: 128, words: 12, ok: true},
		{bits: 256, words: 24, ok: true},
		{bits: 100},
		{bits: 512},
	}
	for _, tt := range tests {
		mnemonic, err := NewMnemonic(tt.bits)
		if !tt.ok {
			assert.Error(t, err, "bits=%d", tt.bits)
			continue
		}
		require.NoError(t, err)
		assert.Len(t, strings.Fields(mnemonic), tt.words)
		assert.True(t, ValidateMnemonic(mnemonic))
	}
}

func TestValidateMnemonic_Invalid(t *testing.T) {
	assert.False(t, ValidateMnemonic("hello world invalid mnemonic phrase designed to fail validation check"))
	// Valid words, bad checksum
	assert.False(t, ValidateMnemonic(strings.Repeat("abandon ", 12)))

	_, err := MnemonicToSeed("not a mnemonic", "")
	assert.Error(t, err)
}

func TestDeriveEd25519_Vector(t *testing.T) {
	seed, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)

	tests := []struct {
		path string
		key  string
	}{
		{path: "m/0'", key: "68e0fe46dfb67e368c75379acec591dad19df3cde26e63b93a8e704f1dade7a3"},
		{path: "m/0'/1'", key: "b1d0bad404bf35da785a64ca1ac54b2617211d2777696fbffaf208f746ae84f2"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			priv, err := deriveEd25519(seed, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.key, hex.EncodeToString(priv.Seed()))
		})
	}

	_, err = deriveEd25519(seed, "m/0")
	assert.Error(t, err)
	_, err = deriveEd25519(seed[:8], "m/0'")
	assert.Error(t, err)
}

func TestDeriveLedgerKey(t *testing.T) {
	seed := abandonSeed(t)

	first, err := DeriveLedgerKey(seed, 0)
	require.NoError(t, err)
	assert.Equal(t, "m/44'/1'/0'", first.Path)
	assert.Len(t, first.SecretKey, 64)
	assert.Len(t, first.PublicKey, 32)
	assert.Equal(t, first.PublicKey, first.SecretKey[32:])

	again, err := DeriveLedgerKey(seed, 0)
	require.NoError(t, err)
	assert.Equal(t, first.SecretKey, again.SecretKey)

	second, err := DeriveLedgerKey(seed, 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.PublicKey, second.PublicKey)

	// The secret key signs for its public key under the ledger's ed25519 scheme
	scheme := signer.NewEd25519Scheme()
	sig, err := scheme.Sign(first.SecretKey, []byte("payload"))
	require.NoError(t, err)
	assert.True(t, scheme.Verify(first.PublicKey, []byte("payload"), sig))

	_, err = DeriveLedgerKey(seed, hdkeychain.HardenedKeyStart)
	assert.Error(t, err)
}

func TestDeriveBitcoinAccount(t *testing.T) {
	account, err := DeriveBitcoinAccount(abandonSeed(t), &chaincfg.MainNetParams)
	require.NoError(t, err)
	assert.Equal(t, "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA", account.Address)
	assert.True(t, strings.HasPrefix(account.XPub, "xpub"))
	assert.Len(t, account.PublicKey, 33)

	testnet, err := DeriveBitcoinAccount(abandonSeed(t), &chaincfg.TestNet3Params)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(testnet.XPub, "tpub"))
	assert.NotEqual(t, account.Address, testnet.Address)

	_, err = DeriveBitcoinAccount([]byte{1, 2, 3}, nil)
	assert.Error(t, err)
}

func TestDeriveEthereumAddress(t *testing.T) {
	addr, err := DeriveEthereumAddress(abandonSeed(t))
	require.NoError(t, err)
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", addr)
}
