package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultClientConfigIsValid(t *testing.T) {
	require.NoError(t, NewDefaultClientConfig().Validate())
}

func TestClientConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *ClientConfig)
		wantField string
	}{
		{name: "missing base url", mutate: func(c *ClientConfig) { c.BaseURL = "" }, wantField: "baseUrl"},
		{name: "relative base url", mutate: func(c *ClientConfig) { c.BaseURL = "/api" }, wantField: "baseUrl"},
		{name: "missing service", mutate: func(c *ClientConfig) { c.ServiceName = "" }, wantField: "serviceName"},
		{name: "bad query style", mutate: func(c *ClientConfig) { c.ExplorerQueryStyle = "header" }, wantField: "explorerQueryStyle"},
		{name: "bad placement", mutate: func(c *ClientConfig) { c.SignaturePlacement = "trailer" }, wantField: "signaturePlacement"},
		{name: "bad scheme", mutate: func(c *ClientConfig) { c.SignatureScheme = "rsa" }, wantField: "signatureScheme"},
		{name: "bad hash", mutate: func(c *ClientConfig) { c.HashAlgorithm = "md5" }, wantField: "hashAlgorithm"},
		{name: "zero attempts", mutate: func(c *ClientConfig) { c.Retry.MaxAttempts = 0 }, wantField: "retry.maxAttempts"},
		{name: "max below initial", mutate: func(c *ClientConfig) { c.Retry.MaxBackoff = time.Millisecond }, wantField: "retry.maxBackoff"},
		{name: "zero interval", mutate: func(c *ClientConfig) { c.Poll.Interval = 0 }, wantField: "poll.interval"},
		{name: "negative rate", mutate: func(c *ClientConfig) { c.RequestsPerSecond = -1 }, wantField: "requestsPerSecond"},
		{name: "badger without path", mutate: func(c *ClientConfig) { c.Store = StoreConfig{Type: StoreTypeBadger} }, wantField: "store.path"},
		{name: "redis without address", mutate: func(c *ClientConfig) { c.Store = StoreConfig{Type: StoreTypeRedis} }, wantField: "store.redisAddress"},
		{name: "unknown store", mutate: func(c *ClientConfig) { c.Store.Type = "sqlite" }, wantField: "store.type"},
		{name: "kms without key", mutate: func(c *ClientConfig) {
			c.SignatureScheme = "secp256k1"
			c.AWSKMS = &AWSKMSConfig{}
		}, wantField: "awsKms.keyId"},
		{name: "kms with ed25519", mutate: func(c *ClientConfig) { c.AWSKMS = &AWSKMSConfig{KeyID: "alias/x"} }, wantField: "signatureScheme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultClientConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestLoadClientConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	contents := `
baseUrl: http://ledger.internal:8200
explorerQueryStyle: query
signatureScheme: secp256k1
hashAlgorithm: blake3
poll:
  interval: 250ms
  timeout: 1m
store:
  type: redis
  redisAddress: localhost:6379
  redisDB: 3
awsKms:
  keyId: alias/ledger
  region: us-east-1
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := LoadClientConfigFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://ledger.internal:8200", cfg.BaseURL)
	assert.Equal(t, DefaultServiceName, cfg.ServiceName)
	assert.Equal(t, "query", cfg.ExplorerQueryStyle)
	assert.Equal(t, 250*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, time.Minute, cfg.Poll.Timeout)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, StoreTypeRedis, cfg.Store.Type)
	assert.Equal(t, 3, cfg.Store.RedisDB)
	require.NotNil(t, cfg.AWSKMS)
	assert.Equal(t, "alias/ledger", cfg.AWSKMS.KeyID)

	_, err = LoadClientConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = ParseClientConfig([]byte("baseUrl: [unterminated"))
	assert.Error(t, err)
}
