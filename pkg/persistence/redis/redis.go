package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Layr-Labs/ledgertx-go/pkg/persistence"
	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

const (
	keyPrefixSubmission  = "ledgertx:submission:"
	keySchemaVersion     = "ledgertx:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Redis has no prefix iteration, so record keys are tracked in a set
	keySetSubmissions = "ledgertx:submissions:index"

	operationTimeout = 5 * time.Second
)

// RedisStore is a submission journal shared between client processes via Redis.
type RedisStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "tenant-a:" gives
	// "tenant-a:ledgertx:submission:<hash>".
	KeyPrefix string
}

// NewRedisStore connects to Redis and validates the schema version.
func NewRedisStore(cfg *RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rs := &RedisStore{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rs.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis submission store initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rs, nil
}

func (r *RedisStore) prefixKey(key string) string {
	return r.keyPrefix + key
}

func (r *RedisStore) submissionKey(hexHash string) string {
	return r.prefixKey(keyPrefixSubmission + hexHash)
}

// initSchema initializes or validates the schema version
func (r *RedisStore) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	// SetNX so concurrent first starts agree on the version
	if err := r.client.SetNX(ctx, schemaKey, currentSchemaVersion, 0).Err(); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// SaveSubmission persists a submission record
func (r *RedisStore) SaveSubmission(record *persistence.SubmissionRecord) error {
	if err := persistence.ValidateRecord(record); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("submission store is closed")
	}

	data, err := persistence.MarshalSubmissionRecord(record)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.submissionKey(record.Key()), data, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetSubmissions), record.Key())

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save SubmissionRecord: %w", err)
	}
	return nil
}

// LoadSubmission retrieves a submission record
func (r *RedisStore) LoadSubmission(txHash types.Hash) (*persistence.SubmissionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("submission store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.submissionKey(txHash.Hex())).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load SubmissionRecord: %w", err)
	}

	return persistence.UnmarshalSubmissionRecord(data)
}

// ListSubmissions returns all records oldest first
func (r *RedisStore) ListSubmissions() ([]*persistence.SubmissionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("submission store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	indexKey := r.prefixKey(keySetSubmissions)
	hashes, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list submission hashes: %w", err)
	}

	records := make([]*persistence.SubmissionRecord, 0, len(hashes))
	if len(hashes) == 0 {
		return records, nil
	}

	keys := make([]string, len(hashes))
	for i, h := range hashes {
		keys[i] = r.submissionKey(h)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch SubmissionRecords: %w", err)
	}

	for i, val := range values {
		if val == nil {
			// Key was in index but doesn't exist - clean up index
			r.client.SRem(ctx, indexKey, hashes[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for SubmissionRecord", "key", keys[i])
			continue
		}

		record, err := persistence.UnmarshalSubmissionRecord([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal SubmissionRecord, skipping",
				"key", keys[i], "error", err)
			continue
		}

		records = append(records, record)
	}

	persistence.SortByCreatedAt(records)
	return records, nil
}

// ListPending returns pending records oldest first
func (r *RedisStore) ListPending() ([]*persistence.SubmissionRecord, error) {
	records, err := r.ListSubmissions()
	if err != nil {
		return nil, err
	}
	return persistence.FilterPending(records), nil
}

// DeleteSubmission removes a submission record
func (r *RedisStore) DeleteSubmission(txHash types.Hash) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("submission store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.submissionKey(txHash.Hex()))
	pipe.SRem(ctx, r.prefixKey(keySetSubmissions), txHash.Hex())

	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the Redis client
func (r *RedisStore) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis submission store closed")
	return nil
}

// HealthCheck pings Redis and verifies the schema version key
func (r *RedisStore) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("submission store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}
