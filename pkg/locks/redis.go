package locks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotAcquired is returned when another run already holds the lock
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld is returned when releasing a lock that expired or was taken over
	ErrLockNotHeld = errors.New("lock not held")
)

// Config holds Redis connection configuration
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg Config, logger ectologger.Logger) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Infof("Connected to Redis at %s", addr)
	return rdb, nil
}

// Locker hands out exclusive locks by key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lock, error)
}

type Lock interface {
	Release(ctx context.Context) error
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker holds locks as SET NX keys with a TTL.
type RedisLocker struct {
	rdb       redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	logger    ectologger.Logger
}

func NewRedisLocker(rdb redis.UniversalClient, keyPrefix string, ttl time.Duration, logger ectologger.Logger) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = "lock:"
	}
	return &RedisLocker{
		rdb:       rdb,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Lock, error) {
	lockKey := l.keyPrefix + key
	lockValue := uuid.New().String()

	ok, err := l.rdb.SetNX(ctx, lockKey, lockValue, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	l.logger.WithContext(ctx).Debugf("Acquired lock: %s", lockKey)

	return &redisLock{
		rdb:    l.rdb,
		key:    lockKey,
		value:  lockValue,
		logger: l.logger,
	}, nil
}

type redisLock struct {
	rdb    redis.UniversalClient
	key    string
	value  string
	logger ectologger.Logger
}

// Release deletes the key only if this lock still owns it.
func (lock *redisLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, lock.rdb, []string{lock.key}, lock.value).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}

	lock.logger.WithContext(ctx).Debugf("Released lock: %s", lock.key)
	return nil
}

// NopLocker always grants the lock.
type NopLocker struct{}

func (NopLocker) Acquire(context.Context, string) (Lock, error) {
	return nopLock{}, nil
}

type nopLock struct{}

func (nopLock) Release(context.Context) error {
	return nil
}

// ImportKey is the lock key serializing imports into one municipality. The subject is
// trimmed and lowercased so every entry point derives the same key.
func ImportKey(municipality string) string {
	return "import:" + strings.ToLower(strings.TrimSpace(municipality))
}
