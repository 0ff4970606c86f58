package keyDerivation

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
)

const coinTypeEthereum = 60

// BitcoinAccount is the first BIP44 account of a seed on a bitcoin network
type BitcoinAccount struct {
	// XPub is the extended public key at m/44'/coin'/0'
	XPub string
	// Address is the P2PKH address of the first external key, 0/0 below XPub
	Address   string
	PublicKey []byte
}

// DeriveBitcoinAccount derives the account xpub and first receive address. The address
// is derived twice, once through the private chain and once from the xpub alone, and the
// two must agree.
func DeriveBitcoinAccount(seed []byte, net *chaincfg.Params) (*BitcoinAccount, error) {
	if net == nil {
		net = &chaincfg.MainNetParams
	}

	master, err := hdkeychain.NewMaster(seed, net)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}
	account, err := derivePath(master,
		purposeBIP44+hdkeychain.HardenedKeyStart,
		net.HDCoinType+hdkeychain.HardenedKeyStart,
		hdkeychain.HardenedKeyStart,
	)
	if err != nil {
		return nil, err
	}
	xpub, err := account.Neuter()
	if err != nil {
		return nil, fmt.Errorf("failed to neuter account key: %w", err)
	}

	fromPrivate, err := derivePath(account, 0, 0)
	if err != nil {
		return nil, err
	}
	fromPublic, err := derivePath(xpub, 0, 0)
	if err != nil {
		return nil, err
	}

	privAddr, err := fromPrivate.Address(net)
	if err != nil {
		return nil, fmt.Errorf("failed to derive address: %w", err)
	}
	pubAddr, err := fromPublic.Address(net)
	if err != nil {
		return nil, fmt.Errorf("failed to derive address from xpub: %w", err)
	}
	if privAddr.EncodeAddress() != pubAddr.EncodeAddress() {
		return nil, fmt.Errorf("xpub address %s does not match private derivation %s",
			pubAddr.EncodeAddress(), privAddr.EncodeAddress())
	}

	pub, err := fromPublic.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}

	return &BitcoinAccount{
		XPub:      xpub.String(),
		Address:   pubAddr.EncodeAddress(),
		PublicKey: pub.SerializeCompressed(),
	}, nil
}

// DeriveEthereumAddress returns the EIP-55 checksummed address at m/44'/60'/0'/0/0
func DeriveEthereumAddress(seed []byte) (string, error) {
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return "", fmt.Errorf("failed to create master key: %w", err)
	}
	leaf, err := derivePath(master,
		purposeBIP44+hdkeychain.HardenedKeyStart,
		coinTypeEthereum+hdkeychain.HardenedKeyStart,
		hdkeychain.HardenedKeyStart,
		0,
		0,
	)
	if err != nil {
		return "", err
	}

	priv, err := leaf.ECPrivKey()
	if err != nil {
		return "", fmt.Errorf("failed to read private key: %w", err)
	}
	return ethereumAddress(priv), nil
}

func ethereumAddress(priv *btcec.PrivateKey) string {
	return crypto.PubkeyToAddress(priv.ToECDSA().PublicKey).Hex()
}

func derivePath(key *hdkeychain.ExtendedKey, path ...uint32) (*hdkeychain.ExtendedKey, error) {
	var err error
	for _, index := range path {
		if key, err = key.Derive(index); err != nil {
			return nil, fmt.Errorf("failed to derive child %d: %w", index, err)
		}
	}
	return key, nil
}
