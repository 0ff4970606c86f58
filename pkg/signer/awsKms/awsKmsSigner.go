package awsKms

import (
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	internalAws "github.com/Layr-Labs/ledgertx-go/internal/aws"
	"github.com/Layr-Labs/ledgertx-go/pkg/signer"
)

// secp256k1 group order, used for low-S normalization
var (
	secp256k1N, _  = new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// IKMSClient is the subset of the AWS KMS API the signer needs
type IKMSClient interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

// AWSKMSSigner signs transactions with an ECC_SECG_P256K1 key held in AWS KMS.
// It produces the same signatures as signer.Secp256k1Scheme: r||s over keccak256(message).
type AWSKMSSigner struct {
	client IKMSClient
	keyId  string
	logger *zap.Logger
	scheme *signer.Secp256k1Scheme

	mu        sync.Mutex
	publicKey []byte
}

var _ signer.IRemoteSigner = (*AWSKMSSigner)(nil)

func NewAWSKMSSigner(client IKMSClient, keyId string, logger *zap.Logger) (*AWSKMSSigner, error) {
	if client == nil {
		return nil, fmt.Errorf("kms client is required")
	}
	if keyId == "" {
		return nil, fmt.Errorf("kms key id is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &AWSKMSSigner{
		client: client,
		keyId:  keyId,
		logger: logger,
		scheme: signer.NewSecp256k1Scheme(),
	}, nil
}

// NewAWSKMSSignerFromEnvironment loads the default AWS configuration and creates a signer for keyId
func NewAWSKMSSignerFromEnvironment(ctx context.Context, region string, keyId string, logger *zap.Logger) (*AWSKMSSigner, error) {
	awsCfg, err := internalAws.LoadAWSConfig(ctx, region)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load AWS config for region %s", region)
	}

	if identity, err := internalAws.GetCallerIdentity(ctx, awsCfg); err != nil {
		logger.Sugar().Warnw("Unable to resolve AWS caller identity", "error", err)
	} else {
		logger.Sugar().Infow("Using AWS KMS signer",
			"account", aws.ToString(identity.Account),
			"arn", aws.ToString(identity.Arn),
			"key_id", keyId,
		)
	}

	return NewAWSKMSSigner(kms.NewFromConfig(awsCfg), keyId, logger)
}

func (k *AWSKMSSigner) Scheme() signer.ISignatureScheme {
	return k.scheme
}

// PublicKey returns the compressed secp256k1 public key of the KMS key
func (k *AWSKMSSigner) PublicKey(ctx context.Context) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.publicKey != nil {
		return append([]byte(nil), k.publicKey...), nil
	}

	out, err := k.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(k.keyId)})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s", k.keyId)
	}

	pub, err := parseECDSAPublicKey(out.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for key %s", k.keyId)
	}

	k.publicKey = crypto.CompressPubkey(pub)
	return append([]byte(nil), k.publicKey...), nil
}

// Sign signs keccak256(message) in KMS and returns a low-S r||s signature
func (k *AWSKMSSigner) Sign(ctx context.Context, message []byte) ([]byte, error) {
	digest := crypto.Keccak256(message)

	out, err := k.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(k.keyId),
		Message:          digest,
		SigningAlgorithm: kmstypes.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      kmstypes.MessageTypeDigest,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign with key %s", k.keyId)
	}

	sig, err := derToCompact(out.Signature)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode signature from key %s", k.keyId)
	}

	k.logger.Sugar().Debugw("Signed message with AWS KMS", "key_id", k.keyId)
	return sig, nil
}

type asn1EcSig struct {
	R *big.Int
	S *big.Int
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

// parseECDSAPublicKey parses the DER SubjectPublicKeyInfo returned by KMS
func parseECDSAPublicKey(derBytes []byte) (*ecdsa.PublicKey, error) {
	var info asn1EcPublicKey
	if _, err := asn1.Unmarshal(derBytes, &info); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}
	return crypto.UnmarshalPubkey(info.PublicKey.Bytes)
}

// derToCompact converts a DER ECDSA signature into 64 byte r||s with S in the lower half order
func derToCompact(der []byte) ([]byte, error) {
	var sig asn1EcSig
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 signature: %w", err)
	}
	if sig.R == nil || sig.S == nil || sig.R.Sign() <= 0 || sig.S.Sign() <= 0 {
		return nil, fmt.Errorf("invalid signature values")
	}

	s := sig.S
	if s.Cmp(secp256k1HalfN) > 0 {
		s = new(big.Int).Sub(secp256k1N, s)
	}

	out := make([]byte, 64)
	sig.R.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out, nil
}
