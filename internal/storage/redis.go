package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"resume-match-go/internal/config"
	"resume-match-go/internal/constants"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/types"
)

// ErrCacheMiss is returned when a cache lookup finds nothing.
var ErrCacheMiss = errors.New("cache miss")

// Redis wraps the cache client. It serves three concerns: raw-file dedup,
// JD embedding reuse, and short-lived ranking result caching.
type Redis struct {
	Client   *redis.Client
	dedupTTL time.Duration
}

// NewRedis connects, verifies the connection, and enables OTel tracing on
// every command.
func NewRedis(ctx context.Context, cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Address, err)
	}

	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Warn().Err(err).Msg("failed to instrument redis client with tracing")
	}

	dedupTTL := time.Duration(cfg.DedupTTLDays) * 24 * time.Hour
	if dedupTTL <= 0 {
		dedupTTL = 30 * 24 * time.Hour
	}

	logger.Info().Str("address", cfg.Address).Int("db", cfg.DB).Msg("Redis connection established")
	return &Redis{Client: client, dedupTTL: dedupTTL}, nil
}

func jdVectorKey(jdHash string) string {
	return fmt.Sprintf("%s:%s:%s:%s", constants.AppPrefix, constants.JDModulePrefix, constants.EntityVector, jdHash)
}

func rankResultKey(cacheKey string) string {
	return fmt.Sprintf("%s:%s:result:%s", constants.AppPrefix, constants.RankModulePrefix, cacheKey)
}

func rankLockKey(cacheKey string) string {
	return fmt.Sprintf("%s:%s:%s:%s", constants.AppPrefix, constants.RankModulePrefix, constants.EntityLock, cacheKey)
}

// IsFileUploaded reports whether a raw file with this MD5 was seen before.
func (r *Redis) IsFileUploaded(ctx context.Context, fileMD5 string) (bool, error) {
	return r.Client.SIsMember(ctx, constants.RawFileMD5SetKey, fileMD5).Result()
}

// MarkFileUploaded records a raw-file MD5 in the dedup set. The whole set
// expires on a rolling window; MySQL remains the source of truth.
func (r *Redis) MarkFileUploaded(ctx context.Context, fileMD5 string) error {
	if err := r.Client.SAdd(ctx, constants.RawFileMD5SetKey, fileMD5).Err(); err != nil {
		return err
	}
	return r.Client.Expire(ctx, constants.RawFileMD5SetKey, r.dedupTTL).Err()
}

// SetJobVector caches the embedding for a JD, keyed by the JD text hash.
// Repeated ranking calls for the same JD skip the embedding provider.
func (r *Redis) SetJobVector(ctx context.Context, jdHash string, vector []float64) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("marshal jd vector: %w", err)
	}
	return r.Client.Set(ctx, jdVectorKey(jdHash), data, constants.JDVectorTTL).Err()
}

// GetJobVector fetches a cached JD embedding, ErrCacheMiss when absent.
func (r *Redis) GetJobVector(ctx context.Context, jdHash string) ([]float64, error) {
	data, err := r.Client.Get(ctx, jdVectorKey(jdHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var vector []float64
	if err := json.Unmarshal(data, &vector); err != nil {
		return nil, fmt.Errorf("unmarshal jd vector: %w", err)
	}
	return vector, nil
}

// SetRankResult caches one full ranking response.
func (r *Redis) SetRankResult(ctx context.Context, cacheKey string, response *types.RankedResponse) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshal rank result: %w", err)
	}
	return r.Client.Set(ctx, rankResultKey(cacheKey), data, constants.RankCacheTTL).Err()
}

// GetRankResult fetches a cached ranking response, ErrCacheMiss when absent.
func (r *Redis) GetRankResult(ctx context.Context, cacheKey string) (*types.RankedResponse, error) {
	data, err := r.Client.Get(ctx, rankResultKey(cacheKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var response types.RankedResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("unmarshal rank result: %w", err)
	}
	return &response, nil
}

// InvalidateRankResults drops all cached ranking responses. Called after the
// index changes so stale orderings are not served.
func (r *Redis) InvalidateRankResults(ctx context.Context) error {
	pattern := rankResultKey("*")
	iter := r.Client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.Client.Del(ctx, keys...).Err()
}

// releaseLockScript deletes the lock only when still held by the caller.
var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// AcquireRankLock takes a short-lived lock so that concurrent identical
// ranking calls compute once. Returns false when another holder has it.
func (r *Redis) AcquireRankLock(ctx context.Context, cacheKey, token string) (bool, error) {
	return r.Client.SetNX(ctx, rankLockKey(cacheKey), token, constants.RankLockTTL).Result()
}

// ReleaseRankLock releases a lock previously taken with the same token.
func (r *Redis) ReleaseRankLock(ctx context.Context, cacheKey, token string) error {
	return releaseLockScript.Run(ctx, r.Client, []string{rankLockKey(cacheKey)}, token).Err()
}

// Close shuts the client down.
func (r *Redis) Close() error {
	return r.Client.Close()
}
