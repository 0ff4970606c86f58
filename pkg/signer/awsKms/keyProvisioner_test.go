package awsKms

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeKMSAdmin struct {
	fakeKMS
	createErr   error
	aliasErr    error
	createInput *kms.CreateKeyInput
	aliasInput  *kms.CreateAliasInput
}

func (f *fakeKMSAdmin) CreateKey(_ context.Context, in *kms.CreateKeyInput, _ ...func(*kms.Options)) (*kms.CreateKeyOutput, error) {
	f.createInput = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &kms.CreateKeyOutput{KeyMetadata: &kmstypes.KeyMetadata{KeyId: aws.String("1234abcd-12ab-34cd-56ef-1234567890ab")}}, nil
}

func (f *fakeKMSAdmin) CreateAlias(_ context.Context, in *kms.CreateAliasInput, _ ...func(*kms.Options)) (*kms.CreateAliasOutput, error) {
	f.aliasInput = in
	if f.aliasErr != nil {
		return nil, f.aliasErr
	}
	return &kms.CreateAliasOutput{}, nil
}

func TestNewKeyProvisioner_Validation(t *testing.T) {
	_, err := NewKeyProvisioner(nil, "", zaptest.NewLogger(t))
	assert.Error(t, err)
	_, err = NewKeyProvisioner(&fakeKMSAdmin{}, "", nil)
	assert.Error(t, err)
}

func TestKeyProvisioner_CreateSigningKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	fake := &fakeKMSAdmin{fakeKMS: fakeKMS{key: key}}

	p, err := NewKeyProvisioner(fake, "staging", zaptest.NewLogger(t))
	require.NoError(t, err)

	provisioned, err := p.CreateSigningKey(context.Background(), "pool-operator", "ledger-pool-operator")
	require.NoError(t, err)

	assert.Equal(t, "1234abcd-12ab-34cd-56ef-1234567890ab", provisioned.KeyId)
	assert.Equal(t, "alias/ledger-pool-operator", provisioned.Alias)
	assert.Equal(t, crypto.CompressPubkey(&key.PublicKey), provisioned.PublicKey)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), provisioned.Address)

	require.NotNil(t, fake.createInput)
	assert.Equal(t, kmstypes.KeySpecEccSecgP256k1, fake.createInput.KeySpec)
	assert.Equal(t, kmstypes.KeyUsageTypeSignVerify, fake.createInput.KeyUsage)
	tags := map[string]string{}
	for _, tag := range fake.createInput.Tags {
		tags[aws.ToString(tag.TagKey)] = aws.ToString(tag.TagValue)
	}
	assert.Equal(t, "pool-operator", tags["Name"])
	assert.Equal(t, "staging", tags["Environment"])

	require.NotNil(t, fake.aliasInput)
	assert.Equal(t, "1234abcd-12ab-34cd-56ef-1234567890ab", aws.ToString(fake.aliasInput.TargetKeyId))
}

func TestKeyProvisioner_CreateSigningKeyErrors(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tests := []struct {
		name    string
		fake    *fakeKMSAdmin
		keyName string
		wantErr string
	}{
		{name: "missing name", fake: &fakeKMSAdmin{}, keyName: "", wantErr: "key name is required"},
		{name: "create fails", fake: &fakeKMSAdmin{createErr: fmt.Errorf("access denied")}, keyName: "k", wantErr: "access denied"},
		{name: "alias fails", fake: &fakeKMSAdmin{fakeKMS: fakeKMS{key: key}, aliasErr: fmt.Errorf("alias exists")}, keyName: "k", wantErr: "alias exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewKeyProvisioner(tt.fake, "", zaptest.NewLogger(t))
			require.NoError(t, err)
			_, err = p.CreateSigningKey(context.Background(), tt.keyName, "alias")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestKeyProvisioner_NoAlias(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	fake := &fakeKMSAdmin{fakeKMS: fakeKMS{key: key}}
	p, err := NewKeyProvisioner(fake, "", zaptest.NewLogger(t))
	require.NoError(t, err)

	provisioned, err := p.CreateSigningKey(context.Background(), "k", "")
	require.NoError(t, err)
	assert.Empty(t, provisioned.Alias)
	assert.Nil(t, fake.aliasInput)
}
