package awsKms

import (
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Layr-Labs/ledgertx-go/pkg/signer"
)

var (
	oidEcPublicKey = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1   = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

// fakeKMS signs locally with an in-memory key and returns KMS shaped DER responses
type fakeKMS struct {
	key           *ecdsa.PrivateKey
	highS         bool
	getPubCalls   int
	signErr       error
	lastSignInput *kms.SignInput
}

func (f *fakeKMS) GetPublicKey(_ context.Context, _ *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	f.getPubCalls++
	der, err := asn1.Marshal(asn1EcPublicKey{
		EcPublicKeyInfo: asn1EcPublicKeyInfo{Algorithm: oidEcPublicKey, Parameters: oidSecp256k1},
		PublicKey:       asn1.BitString{Bytes: crypto.FromECDSAPub(&f.key.PublicKey), BitLength: 65 * 8},
	})
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{PublicKey: der}, nil
}

func (f *fakeKMS) Sign(_ context.Context, in *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	f.lastSignInput = in
	if f.signErr != nil {
		return nil, f.signErr
	}
	sig, err := crypto.Sign(in.Message, f.key)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if f.highS {
		s = new(big.Int).Sub(secp256k1N, s)
	}
	der, err := asn1.Marshal(asn1EcSig{R: r, S: s})
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{Signature: der}, nil
}

func newTestSigner(t *testing.T, fake *fakeKMS) *AWSKMSSigner {
	t.Helper()
	s, err := NewAWSKMSSigner(fake, "alias/ledger-test", zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestAWSKMSSigner_PublicKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	fake := &fakeKMS{key: key}
	s := newTestSigner(t, fake)

	pub, err := s.PublicKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, crypto.CompressPubkey(&key.PublicKey), pub)

	_, err = s.PublicKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fake.getPubCalls, "public key should be fetched once")
}

func TestAWSKMSSigner_Sign(t *testing.T) {
	tests := []struct {
		name  string
		highS bool
	}{
		{name: "low s", highS: false},
		{name: "high s is normalized", highS: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := crypto.GenerateKey()
			require.NoError(t, err)
			fake := &fakeKMS{key: key, highS: tt.highS}
			s := newTestSigner(t, fake)
			ctx := context.Background()
			msg := []byte("canonical transaction bytes")

			sig, err := s.Sign(ctx, msg)
			require.NoError(t, err)
			require.Len(t, sig, signer.Secp256k1SignatureSize)
			assert.Equal(t, crypto.Keccak256(msg), fake.lastSignInput.Message)

			sVal := new(big.Int).SetBytes(sig[32:])
			assert.True(t, sVal.Cmp(secp256k1HalfN) <= 0)

			pub, err := s.PublicKey(ctx)
			require.NoError(t, err)
			assert.True(t, s.Scheme().Verify(pub, msg, sig))
		})
	}
}

func TestAWSKMSSigner_SignError(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s := newTestSigner(t, &fakeKMS{key: key, signErr: fmt.Errorf("throttled")})

	_, err = s.Sign(context.Background(), []byte("msg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestNewAWSKMSSigner_Validation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	_, err := NewAWSKMSSigner(nil, "key", logger)
	assert.Error(t, err)
	_, err = NewAWSKMSSigner(&fakeKMS{}, "", logger)
	assert.Error(t, err)
	_, err = NewAWSKMSSigner(&fakeKMS{}, "key", nil)
	assert.Error(t, err)
}

func TestDerToCompact_Invalid(t *testing.T) {
	_, err := derToCompact([]byte{0x01, 0x02})
	assert.Error(t, err)

	der, err := asn1.Marshal(asn1EcSig{R: big.NewInt(0), S: big.NewInt(1)})
	require.NoError(t, err)
	_, err = derToCompact(der)
	assert.Error(t, err)
}
