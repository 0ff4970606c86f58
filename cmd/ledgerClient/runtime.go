package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/ledgertx-go/pkg/clients/ledgerClient"
	"github.com/Layr-Labs/ledgertx-go/pkg/codec"
	"github.com/Layr-Labs/ledgertx-go/pkg/config"
	"github.com/Layr-Labs/ledgertx-go/pkg/hashing"
	"github.com/Layr-Labs/ledgertx-go/pkg/keyDerivation"
	"github.com/Layr-Labs/ledgertx-go/pkg/logger"
	"github.com/Layr-Labs/ledgertx-go/pkg/metrics"
	"github.com/Layr-Labs/ledgertx-go/pkg/persistence"
	"github.com/Layr-Labs/ledgertx-go/pkg/persistence/badger"
	"github.com/Layr-Labs/ledgertx-go/pkg/persistence/memory"
	"github.com/Layr-Labs/ledgertx-go/pkg/persistence/redis"
	"github.com/Layr-Labs/ledgertx-go/pkg/registry"
	"github.com/Layr-Labs/ledgertx-go/pkg/signer"
	"github.com/Layr-Labs/ledgertx-go/pkg/signer/awsKms"
	"github.com/Layr-Labs/ledgertx-go/pkg/tracker"
	"github.com/Layr-Labs/ledgertx-go/pkg/transactionBuilder"
	"github.com/Layr-Labs/ledgertx-go/pkg/transport"
	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

// runtime holds everything a command needs to talk to the ledger
type runtime struct {
	cfg      *config.ClientConfig
	logger   *zap.Logger
	registry *registry.Registry
	client   *ledgerClient.Client
	builder  *transactionBuilder.TransactionBuilder
	store    persistence.ISubmissionStore
	tracker  *tracker.Tracker
	metrics  *prometheus.Registry
}

// loadConfig layers flags and environment variables over the config file and defaults
func loadConfig(c *cli.Context) (*config.ClientConfig, error) {
	cfg := config.NewDefaultClientConfig()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadClientConfigFromFile(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet("url") {
		cfg.BaseURL = c.String("url")
	}
	if c.IsSet("service") {
		cfg.ServiceName = c.String("service")
	}
	if c.IsSet("explorer-style") {
		cfg.ExplorerQueryStyle = c.String("explorer-style")
	}
	if c.IsSet("signature-placement") {
		cfg.SignaturePlacement = c.String("signature-placement")
	}
	if c.IsSet("scheme") {
		cfg.SignatureScheme = c.String("scheme")
	}
	if c.IsSet("hash-algorithm") {
		cfg.HashAlgorithm = c.String("hash-algorithm")
	}
	if c.IsSet("schema-file") {
		cfg.SchemaFile = c.String("schema-file")
	}
	if c.IsSet("poll-interval") {
		cfg.Poll.Interval = c.Duration("poll-interval")
	}
	if c.IsSet("poll-timeout") {
		cfg.Poll.Timeout = c.Duration("poll-timeout")
	}
	if c.IsSet("rps") {
		cfg.RequestsPerSecond = c.Float64("rps")
	}
	if c.IsSet("store") {
		cfg.Store.Type = config.StoreType(c.String("store"))
	}
	if c.IsSet("store-path") {
		cfg.Store.Path = c.String("store-path")
	}
	if c.IsSet("redis-address") {
		cfg.Store.RedisAddress = c.String("redis-address")
	}
	if c.IsSet("redis-password") {
		cfg.Store.RedisPassword = c.String("redis-password")
	}
	if c.IsSet("redis-db") {
		cfg.Store.RedisDB = c.Int("redis-db")
	}
	if c.IsSet("kms-key-id") {
		if cfg.AWSKMS == nil {
			cfg.AWSKMS = &config.AWSKMSConfig{}
		}
		cfg.AWSKMS.KeyID = c.String("kms-key-id")
	}
	// A region alone does not select KMS signing
	if c.IsSet("kms-region") && cfg.AWSKMS != nil {
		cfg.AWSKMS.Region = c.String("kms-region")
	}
	if c.IsSet("metrics-file") {
		cfg.MetricsFile = c.String("metrics-file")
	}
	if c.IsSet("verbose") {
		cfg.Debug = c.Bool("verbose")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newRuntime(c *cli.Context) (*runtime, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	reg := registry.NewMiningPoolRegistry()
	if cfg.SchemaFile != "" {
		if err := reg.RegisterFile(cfg.SchemaFile); err != nil {
			return nil, err
		}
	}

	scheme, err := signer.NewScheme(cfg.SignatureScheme)
	if err != nil {
		return nil, err
	}
	hashAlgo, err := hashing.ParseAlgorithm(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	builder, err := transactionBuilder.NewTransactionBuilder(&transactionBuilder.Config{
		Scheme:        scheme,
		HashAlgorithm: hashAlgo,
	})
	if err != nil {
		return nil, err
	}

	wireFormat := codec.WireFormat{SignaturePlacement: codec.SignaturePlacement(cfg.SignaturePlacement)}
	client, err := ledgerClient.NewClient(&ledgerClient.ClientConfig{
		BaseURL:            cfg.BaseURL,
		ServiceName:        cfg.ServiceName,
		ExplorerQueryStyle: ledgerClient.ExplorerQueryStyle(cfg.ExplorerQueryStyle),
		WireFormat:         wireFormat,
		Retry:              transportRetry(cfg.Retry),
		RequestsPerSecond:  cfg.RequestsPerSecond,
		Burst:              cfg.Burst,
		MaxConcurrency:     cfg.MaxConcurrency,
		Logger:             l,
	})
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg.Store, l)
	if err != nil {
		return nil, err
	}

	promRegistry := prometheus.NewRegistry()
	tr, err := tracker.NewTracker(&tracker.Config{
		LedgerClient:  client,
		Store:         store,
		WireFormat:    wireFormat,
		Schemas:       reg,
		HashAlgorithm: hashAlgo,
		Metrics:       metrics.NewMetrics(promRegistry),
		Logger:        l,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &runtime{
		cfg:      cfg,
		logger:   l,
		registry: reg,
		client:   client,
		builder:  builder,
		store:    store,
		tracker:  tr,
		metrics:  promRegistry,
	}, nil
}

func (r *runtime) Close() {
	if r.cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(r.cfg.MetricsFile, r.metrics); err != nil {
			r.logger.Sugar().Warnw("Failed to write metrics", "path", r.cfg.MetricsFile, "error", err)
		}
	}
	if err := r.store.Close(); err != nil {
		r.logger.Sugar().Warnw("Failed to close submission store", "error", err)
	}
	_ = r.logger.Sync()
}

func openStore(cfg config.StoreConfig, l *zap.Logger) (persistence.ISubmissionStore, error) {
	switch cfg.Type {
	case config.StoreTypeBadger:
		return badger.NewBadgerStore(cfg.Path, l)
	case config.StoreTypeRedis:
		return redis.NewRedisStore(&redis.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, l)
	default:
		return memory.NewMemoryStore(l), nil
	}
}

func (r *runtime) pollOptions() ledgerClient.PollOptions {
	return ledgerClient.PollOptions{Interval: r.cfg.Poll.Interval, Timeout: r.cfg.Poll.Timeout}
}

// signingKey is either a local secret or a remote signer, never both
type signingKey struct {
	secret []byte
	remote signer.IRemoteSigner
	public []byte
}

// resolveKey picks the signing key from KMS, a mnemonic or a raw secret key, in that order
func (r *runtime) resolveKey(ctx context.Context, c *cli.Context) (*signingKey, error) {
	if r.cfg.AWSKMS != nil {
		remote, err := awsKms.NewAWSKMSSignerFromEnvironment(ctx, r.cfg.AWSKMS.Region, r.cfg.AWSKMS.KeyID, r.logger)
		if err != nil {
			return nil, err
		}
		pub, err := remote.PublicKey(ctx)
		if err != nil {
			return nil, err
		}
		return &signingKey{remote: remote, public: pub}, nil
	}

	var secret []byte
	switch {
	case c.String("mnemonic") != "":
		if r.builder.Scheme().Name() != signer.SchemeEd25519 {
			return nil, fmt.Errorf("mnemonic derived keys are ed25519, configured scheme is %s", r.builder.Scheme().Name())
		}
		seed, err := keyDerivation.MnemonicToSeed(c.String("mnemonic"), c.String("passphrase"))
		if err != nil {
			return nil, err
		}
		key, err := keyDerivation.DeriveLedgerKey(seed, uint32(c.Uint("account")))
		if err != nil {
			return nil, err
		}
		secret = key.SecretKey
	case c.String("secret-key") != "":
		var err error
		if secret, err = hex.DecodeString(strings.TrimPrefix(c.String("secret-key"), "0x")); err != nil {
			return nil, fmt.Errorf("invalid secret key hex: %w", err)
		}
	default:
		return nil, fmt.Errorf("a signing key is required: set --secret-key, --mnemonic or --kms-key-id")
	}

	pub, err := r.builder.Scheme().PublicKey(secret)
	if err != nil {
		return nil, err
	}
	return &signingKey{secret: secret, public: pub}, nil
}

func (r *runtime) build(ctx context.Context, key *signingKey, schema *types.MessageSchema, payload types.Payload) (*types.SignedTransaction, error) {
	if key.remote != nil {
		return r.builder.BuildWithSigner(ctx, schema, payload, key.remote)
	}
	return r.builder.Build(schema, payload, key.secret)
}

func transportRetry(c config.RetryConfig) transport.RetryConfig {
	return transport.RetryConfig{
		MaxAttempts:     c.MaxAttempts,
		InitialBackoff:  c.InitialBackoff,
		MaxBackoff:      c.MaxBackoff,
		BackoffMultiple: c.BackoffMultiple,
	}
}
