package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for ledger client configuration
const (
	EnvLedgerURL                = "LEDGER_URL"
	EnvLedgerServiceName        = "LEDGER_SERVICE_NAME"
	EnvLedgerExplorerQueryStyle = "LEDGER_EXPLORER_QUERY_STYLE"
	EnvLedgerSignaturePlacement = "LEDGER_SIGNATURE_PLACEMENT"
	EnvLedgerSignatureScheme    = "LEDGER_SIGNATURE_SCHEME"
	EnvLedgerHashAlgorithm      = "LEDGER_HASH_ALGORITHM"
	EnvLedgerPollInterval       = "LEDGER_POLL_INTERVAL"
	EnvLedgerPollTimeout        = "LEDGER_POLL_TIMEOUT"
	EnvLedgerRequestsPerSecond  = "LEDGER_REQUESTS_PER_SECOND"
	EnvLedgerSecretKey          = "LEDGER_SECRET_KEY"
	EnvLedgerMnemonic           = "LEDGER_MNEMONIC"
	EnvLedgerSchemaFile         = "LEDGER_SCHEMA_FILE"
	EnvLedgerStoreType          = "LEDGER_STORE_TYPE"
	EnvLedgerStorePath          = "LEDGER_STORE_PATH"
	EnvLedgerRedisAddress       = "LEDGER_REDIS_ADDRESS"
	EnvLedgerRedisPassword      = "LEDGER_REDIS_PASSWORD"
	EnvLedgerRedisDB            = "LEDGER_REDIS_DB"
	EnvLedgerKMSKeyID           = "LEDGER_KMS_KEY_ID"
	EnvLedgerKMSRegion          = "LEDGER_KMS_REGION"
	EnvLedgerMetricsFile        = "LEDGER_METRICS_FILE"
	EnvLedgerVerbose            = "LEDGER_VERBOSE"
	EnvLedgerConfigFile         = "LEDGER_CONFIG_FILE"
)

type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeBadger StoreType = "badger"
	StoreTypeRedis  StoreType = "redis"
)

const (
	DefaultBaseURL            = "http://127.0.0.1:8200"
	DefaultServiceName        = "simple_mining_pool"
	DefaultExplorerQueryStyle = "path"
	DefaultSignaturePlacement = "body"
	DefaultSignatureScheme    = "ed25519"
	DefaultHashAlgorithm      = "sha256"
	DefaultStorePath          = ".ledgertx"
)

var (
	supportedQueryStyles = map[string]struct{}{"path": {}, "query": {}}
	supportedPlacements  = map[string]struct{}{"body": {}, "envelope": {}}
	supportedSchemes     = map[string]struct{}{"ed25519": {}, "secp256k1": {}}
	supportedHashes      = map[string]struct{}{"sha256": {}, "keccak256": {}, "blake2b": {}, "blake3": {}}
)

type RetryConfig struct {
	MaxAttempts     int           `json:"maxAttempts" yaml:"maxAttempts"`
	InitialBackoff  time.Duration `json:"initialBackoff" yaml:"initialBackoff"`
	MaxBackoff      time.Duration `json:"maxBackoff" yaml:"maxBackoff"`
	BackoffMultiple float64       `json:"backoffMultiple" yaml:"backoffMultiple"`
}

type PollConfig struct {
	Interval time.Duration `json:"interval" yaml:"interval"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

type StoreConfig struct {
	Type          StoreType `json:"type" yaml:"type"`
	Path          string    `json:"path" yaml:"path"`
	RedisAddress  string    `json:"redisAddress" yaml:"redisAddress"`
	RedisPassword string    `json:"redisPassword" yaml:"redisPassword"`
	RedisDB       int       `json:"redisDB" yaml:"redisDB"`
}

type AWSKMSConfig struct {
	KeyID  string `json:"keyId" yaml:"keyId"`
	Region string `json:"region" yaml:"region"`
}

// ClientConfig represents the complete configuration of the ledger client
type ClientConfig struct {
	BaseURL            string `json:"baseUrl" yaml:"baseUrl"`
	ServiceName        string `json:"serviceName" yaml:"serviceName"`
	ExplorerQueryStyle string `json:"explorerQueryStyle" yaml:"explorerQueryStyle"`
	SignaturePlacement string `json:"signaturePlacement" yaml:"signaturePlacement"`
	SignatureScheme    string `json:"signatureScheme" yaml:"signatureScheme"`
	HashAlgorithm      string `json:"hashAlgorithm" yaml:"hashAlgorithm"`

	// SchemaFile declares schemas registered next to the simple_mining_pool ones
	SchemaFile string `json:"schemaFile,omitempty" yaml:"schemaFile,omitempty"`

	Retry RetryConfig `json:"retry" yaml:"retry"`
	Poll  PollConfig  `json:"poll" yaml:"poll"`

	RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requestsPerSecond"`
	Burst             int     `json:"burst" yaml:"burst"`
	MaxConcurrency    int     `json:"maxConcurrency" yaml:"maxConcurrency"`

	Store  StoreConfig   `json:"store" yaml:"store"`
	AWSKMS *AWSKMSConfig `json:"awsKms,omitempty" yaml:"awsKms,omitempty"`

	// MetricsFile receives a prometheus textfile snapshot when a command exits
	MetricsFile string `json:"metricsFile,omitempty" yaml:"metricsFile,omitempty"`

	Debug bool `json:"debug" yaml:"debug"`
}

// NewDefaultClientConfig returns a configuration pointing at a local ledger node
func NewDefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:            DefaultBaseURL,
		ServiceName:        DefaultServiceName,
		ExplorerQueryStyle: DefaultExplorerQueryStyle,
		SignaturePlacement: DefaultSignaturePlacement,
		SignatureScheme:    DefaultSignatureScheme,
		HashAlgorithm:      DefaultHashAlgorithm,
		Retry: RetryConfig{
			MaxAttempts:     5,
			InitialBackoff:  100 * time.Millisecond,
			MaxBackoff:      5 * time.Second,
			BackoffMultiple: 2.0,
		},
		Poll: PollConfig{
			Interval: time.Second,
			Timeout:  30 * time.Second,
		},
		MaxConcurrency: 8,
		Store: StoreConfig{
			Type: StoreTypeMemory,
			Path: DefaultStorePath,
		},
	}
}

// LoadClientConfigFromFile reads a YAML configuration file on top of the defaults
func LoadClientConfigFromFile(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseClientConfig(data)
}

// ParseClientConfig parses YAML configuration on top of the defaults
func ParseClientConfig(data []byte) (*ClientConfig, error) {
	cfg := NewDefaultClientConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate validates the client configuration
func (c *ClientConfig) Validate() error {
	var allErrors field.ErrorList

	if c.BaseURL == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("baseUrl"), "baseUrl is required"))
	} else if u, err := url.ParseRequestURI(c.BaseURL); err != nil || u.Host == "" {
		allErrors = append(allErrors, field.Invalid(field.NewPath("baseUrl"), c.BaseURL, "must be an absolute URL"))
	}
	if c.ServiceName == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("serviceName"), "serviceName is required"))
	}

	allErrors = append(allErrors, validateOneOf(field.NewPath("explorerQueryStyle"), c.ExplorerQueryStyle, supportedQueryStyles)...)
	allErrors = append(allErrors, validateOneOf(field.NewPath("signaturePlacement"), c.SignaturePlacement, supportedPlacements)...)
	allErrors = append(allErrors, validateOneOf(field.NewPath("signatureScheme"), c.SignatureScheme, supportedSchemes)...)
	allErrors = append(allErrors, validateOneOf(field.NewPath("hashAlgorithm"), c.HashAlgorithm, supportedHashes)...)

	retryPath := field.NewPath("retry")
	if c.Retry.MaxAttempts < 1 {
		allErrors = append(allErrors, field.Invalid(retryPath.Child("maxAttempts"), c.Retry.MaxAttempts, "must be at least 1"))
	}
	if c.Retry.InitialBackoff <= 0 {
		allErrors = append(allErrors, field.Invalid(retryPath.Child("initialBackoff"), c.Retry.InitialBackoff.String(), "must be positive"))
	}
	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		allErrors = append(allErrors, field.Invalid(retryPath.Child("maxBackoff"), c.Retry.MaxBackoff.String(), "must not be less than initialBackoff"))
	}
	if c.Retry.BackoffMultiple < 1 {
		allErrors = append(allErrors, field.Invalid(retryPath.Child("backoffMultiple"), c.Retry.BackoffMultiple, "must be at least 1"))
	}

	pollPath := field.NewPath("poll")
	if c.Poll.Interval <= 0 {
		allErrors = append(allErrors, field.Invalid(pollPath.Child("interval"), c.Poll.Interval.String(), "must be positive"))
	}
	if c.Poll.Timeout < 0 {
		allErrors = append(allErrors, field.Invalid(pollPath.Child("timeout"), c.Poll.Timeout.String(), "cannot be negative"))
	}

	if c.RequestsPerSecond < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("requestsPerSecond"), c.RequestsPerSecond, "cannot be negative"))
	}
	if c.MaxConcurrency < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("maxConcurrency"), c.MaxConcurrency, "cannot be negative"))
	}

	storePath := field.NewPath("store")
	switch c.Store.Type {
	case StoreTypeMemory:
	case StoreTypeBadger:
		if c.Store.Path == "" {
			allErrors = append(allErrors, field.Required(storePath.Child("path"), "path is required for the badger store"))
		}
	case StoreTypeRedis:
		if c.Store.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(storePath.Child("redisAddress"), "redisAddress is required for the redis store"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(storePath.Child("type"), c.Store.Type,
			[]string{string(StoreTypeMemory), string(StoreTypeBadger), string(StoreTypeRedis)}))
	}

	if c.AWSKMS != nil {
		kmsPath := field.NewPath("awsKms")
		if c.AWSKMS.KeyID == "" {
			allErrors = append(allErrors, field.Required(kmsPath.Child("keyId"), "keyId is required"))
		}
		if c.SignatureScheme != "secp256k1" {
			allErrors = append(allErrors, field.Invalid(field.NewPath("signatureScheme"), c.SignatureScheme, "AWS KMS signing requires secp256k1"))
		}
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func validateOneOf(path *field.Path, value string, supported map[string]struct{}) field.ErrorList {
	if _, ok := supported[value]; ok {
		return nil
	}
	valid := make([]string, 0, len(supported))
	for k := range supported {
		valid = append(valid, k)
	}
	return field.ErrorList{field.NotSupported(path, value, valid)}
}
