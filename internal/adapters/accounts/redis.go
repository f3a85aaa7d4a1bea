package accounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisResolver reads the faction id stored under a per-account key.
type RedisResolver struct {
	client  stringGetter
	rdb     *redis.Client
	pattern string
}

// NewRedisResolver connects to redis. pattern must contain one %s for the account id.
func NewRedisResolver(addr, password string, db int, pattern string) (*RedisResolver, error) {
	if pattern == "" {
		pattern = DefaultKeyPattern
	}
	if strings.Count(pattern, "%s") != 1 {
		return nil, ErrBadKeyPattern
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisResolver{client: client, rdb: client, pattern: pattern}, nil
}

// Key returns the redis key holding the faction of accountID.
func (r *RedisResolver) Key(accountID string) string {
	return fmt.Sprintf(r.pattern, accountID)
}

// FactionOf implements cluster.Resolver. A missing key means no faction.
func (r *RedisResolver) FactionOf(ctx context.Context, accountID string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.Key(accountID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "faction of account %s", accountID)
	}
	if val = strings.TrimSpace(val); val == "" {
		return "", false, nil
	}
	return val, true, nil
}

// Ping checks the server answers.
func (r *RedisResolver) Ping(ctx context.Context) error {
	if r.rdb == nil {
		return nil
	}
	return errors.Wrap(r.rdb.Ping(ctx).Err(), "ping redis")
}

// Close releases the client.
func (r *RedisResolver) Close() error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
