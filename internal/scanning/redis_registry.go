package scanning

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anstrom/portscope/internal/errors"
	"github.com/anstrom/portscope/internal/logging"
)

const (
	// DefaultRedisKeyPrefix namespaces registry keys.
	DefaultRedisKeyPrefix = "portscope:scan:"
	// DefaultRedisTTL expires entries left behind by a crashed process.
	DefaultRedisTTL = time.Hour

	flagRunning   = "0"
	flagCancelled = "1"
	scanBatchSize = 100
)

// RedisRegistry shares cancellation flags between processes through Redis,
// so a cancel request handled by one replica reaches a scan running on
// another.
type RedisRegistry struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *logging.Logger
}

// NewRedisRegistry creates a registry backed by client. A zero ttl selects
// DefaultRedisTTL.
func NewRedisRegistry(client redis.UniversalClient, ttl time.Duration) *RedisRegistry {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisRegistry{
		client: client,
		prefix: DefaultRedisKeyPrefix,
		ttl:    ttl,
		logger: logging.Default().WithComponent("registry"),
	}
}

// WithPrefix returns a copy of the registry using prefix for its keys.
func (r *RedisRegistry) WithPrefix(prefix string) *RedisRegistry {
	cp := *r
	cp.prefix = prefix
	return &cp
}

func (r *RedisRegistry) key(scanID string) string {
	return r.prefix + scanID
}

// Ping checks that Redis is reachable.
func (r *RedisRegistry) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Register implements Registry.
func (r *RedisRegistry) Register(ctx context.Context, scanID string) error {
	ok, err := r.client.SetNX(ctx, r.key(scanID), flagRunning, r.ttl).Result()
	if err != nil {
		return unavailable("register", err)
	}
	if !ok {
		return errors.ErrScanConflict(scanID)
	}
	return nil
}

// Cancel implements Registry. Only existing keys are updated.
func (r *RedisRegistry) Cancel(ctx context.Context, scanID string) error {
	err := r.client.SetArgs(ctx, r.key(scanID), flagCancelled, redis.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
	}).Err()
	if err != nil && !stderrors.Is(err, redis.Nil) {
		return unavailable("cancel", err)
	}
	return nil
}

// Cancelled implements Registry. Redis errors are logged and read as not
// cancelled, so an outage never stops a scan on its own.
func (r *RedisRegistry) Cancelled(ctx context.Context, scanID string) bool {
	val, err := r.client.Get(ctx, r.key(scanID)).Result()
	if err != nil {
		if !stderrors.Is(err, redis.Nil) && ctx.Err() == nil {
			r.logger.Warn("Failed to read cancellation flag",
				"scan_id", scanID,
				"error", err)
		}
		return false
	}
	return val == flagCancelled
}

// Remove implements Registry.
func (r *RedisRegistry) Remove(ctx context.Context, scanID string) error {
	if err := r.client.Del(ctx, r.key(scanID)).Err(); err != nil {
		return unavailable("remove", err)
	}
	return nil
}

// Active implements Registry.
func (r *RedisRegistry) Active(ctx context.Context) ([]string, error) {
	var ids []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func unavailable(op string, err error) error {
	return errors.WrapScanError(errors.CodeRegistryUnavailable,
		fmt.Sprintf("scan registry %s failed", op), err).WithOperation(op)
}
