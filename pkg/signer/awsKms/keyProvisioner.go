package awsKms

import (
	"context"
	"fmt"

	cryptoLibsEcdsa "github.com/Layr-Labs/crypto-libs/pkg/ecdsa"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	internalAws "github.com/Layr-Labs/ledgertx-go/internal/aws"
)

// IKMSKeyAdmin is the subset of the AWS KMS API needed to provision signing keys
type IKMSKeyAdmin interface {
	CreateKey(ctx context.Context, params *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	CreateAlias(ctx context.Context, params *kms.CreateAliasInput, optFns ...func(*kms.Options)) (*kms.CreateAliasOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

// ProvisionedKey describes a KMS key ready to sign ledger transactions
type ProvisionedKey struct {
	KeyId string
	Alias string
	// PublicKey is the compressed secp256k1 public key placed in the signer field
	PublicKey []byte
	// Address is the EIP-55 address of the same key
	Address string
}

type KeyProvisioner struct {
	client      IKMSKeyAdmin
	environment string
	logger      *zap.Logger
}

func NewKeyProvisioner(client IKMSKeyAdmin, environment string, logger *zap.Logger) (*KeyProvisioner, error) {
	if client == nil {
		return nil, fmt.Errorf("kms client is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &KeyProvisioner{
		client:      client,
		environment: environment,
		logger:      logger,
	}, nil
}

// NewKeyProvisionerFromEnvironment loads the default AWS configuration for region
func NewKeyProvisionerFromEnvironment(ctx context.Context, region string, environment string, logger *zap.Logger) (*KeyProvisioner, error) {
	awsCfg, err := internalAws.LoadAWSConfig(ctx, region)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load AWS config for region %s", region)
	}
	return NewKeyProvisioner(kms.NewFromConfig(awsCfg), environment, logger)
}

// CreateSigningKey creates a secp256k1 sign/verify key and points alias/<aliasName> at it
func (p *KeyProvisioner) CreateSigningKey(ctx context.Context, keyName string, aliasName string) (*ProvisionedKey, error) {
	if keyName == "" {
		return nil, fmt.Errorf("key name is required")
	}

	keyRes, err := p.createLedgerSigningKey(ctx, keyName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create signing key %s", keyName)
	}
	if keyRes.KeyMetadata == nil || keyRes.KeyMetadata.KeyId == nil {
		return nil, fmt.Errorf("kms returned no key metadata for %s", keyName)
	}
	keyId := aws.ToString(keyRes.KeyMetadata.KeyId)

	alias := ""
	if aliasName != "" {
		alias = fmt.Sprintf("alias/%s", aliasName)
		if err := p.createKeyAlias(ctx, keyId, alias); err != nil {
			return nil, errors.Wrapf(err, "failed to create alias %s for key %s", alias, keyId)
		}
	}

	key, err := p.GetSigningKey(ctx, keyId)
	if err != nil {
		return nil, err
	}
	key.Alias = alias

	p.logger.Sugar().Infow("Provisioned KMS signing key",
		"key_id", keyId,
		"alias", alias,
		"address", key.Address,
	)
	return key, nil
}

// GetSigningKey loads the public half of an existing KMS key
func (p *KeyProvisioner) GetSigningKey(ctx context.Context, keyId string) (*ProvisionedKey, error) {
	out, err := p.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyId)})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s", keyId)
	}
	pub, err := parseECDSAPublicKey(out.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for key %s", keyId)
	}

	pk := &cryptoLibsEcdsa.PublicKey{X: pub.X, Y: pub.Y}
	addr, err := pk.DeriveAddress()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to derive address for key %s", keyId)
	}

	return &ProvisionedKey{
		KeyId:     keyId,
		PublicKey: crypto.CompressPubkey(pub),
		Address:   addr.String(),
	}, nil
}

func (p *KeyProvisioner) createLedgerSigningKey(ctx context.Context, keyName string) (*kms.CreateKeyOutput, error) {
	tags := []kmstypes.Tag{
		{TagKey: aws.String("Name"), TagValue: aws.String(keyName)},
		{TagKey: aws.String("Purpose"), TagValue: aws.String("ledger-transaction-signing")},
		{TagKey: aws.String("KeyType"), TagValue: aws.String("ECDSA")},
		{TagKey: aws.String("Curve"), TagValue: aws.String("secp256k1")},
	}
	if p.environment != "" {
		tags = append(tags, kmstypes.Tag{TagKey: aws.String("Environment"), TagValue: aws.String(p.environment)})
	}

	result, err := p.client.CreateKey(ctx, &kms.CreateKeyInput{
		KeyUsage:    kmstypes.KeyUsageTypeSignVerify,
		KeySpec:     kmstypes.KeySpecEccSecgP256k1,
		Description: aws.String(fmt.Sprintf("secp256k1 key for ledger transaction signing - %s", keyName)),
		Tags:        tags,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create KMS key: %w", err)
	}
	return result, nil
}

func (p *KeyProvisioner) createKeyAlias(ctx context.Context, keyId, alias string) error {
	_, err := p.client.CreateAlias(ctx, &kms.CreateAliasInput{
		AliasName:   aws.String(alias),
		TargetKeyId: aws.String(keyId),
	})
	if err != nil {
		return fmt.Errorf("failed to create key alias: %w", err)
	}
	return nil
}
