package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"spedermath/internal/crypto"
	"spedermath/internal/model"
)

const (
	loginTokenKeyPrefix = "login_token:"
	loginTokenSeqKey    = "login_token:seq"
	// Redis keeps records this long past expiry so FindByToken can still
	// report a spent token shortly after the fact.
	loginTokenKeyGrace = time.Hour
)

// consumeScript checks and flips the used flag in one server-side step.
var consumeScript = redis.NewScript(`
local used = redis.call('HGET', KEYS[1], 'used')
if not used or used ~= '0' then
  return false
end
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_at'))
if not expires or expires <= tonumber(ARGV[1]) then
  return false
end
redis.call('HSET', KEYS[1], 'used', '1', 'used_at', ARGV[1])
return redis.call('HGET', KEYS[1], 'student_id')
`)

type RedisLoginTokens struct {
	client redis.UniversalClient
	now    Clock
}

func NewRedisLoginTokens(client redis.UniversalClient) *RedisLoginTokens {
	return &RedisLoginTokens{client: client, now: systemClock}
}

func (r *RedisLoginTokens) Create(ctx context.Context, studentID int64, ttl time.Duration) (string, error) {
	if ttl < 0 {
		ttl = 0
	}
	id, err := r.client.Incr(ctx, loginTokenSeqKey).Result()
	if err != nil {
		return "", err
	}
	token := crypto.NewLoginToken()
	now := r.now()
	expiresAt := now.Add(ttl)
	key := loginTokenKey(crypto.HashToken(token))

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"id":         id,
			"student_id": studentID,
			"expires_at": expiresAt.UnixMilli(),
			"used":       "0",
			"created_at": now.UnixMilli(),
		})
		pipe.PExpireAt(ctx, key, expiresAt.Add(loginTokenKeyGrace))
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (r *RedisLoginTokens) FindByToken(ctx context.Context, token string) (model.LoginToken, error) {
	hash := crypto.HashToken(token)
	values, err := r.client.HGetAll(ctx, loginTokenKey(hash)).Result()
	if err != nil {
		return model.LoginToken{}, err
	}
	if len(values) == 0 {
		return model.LoginToken{}, ErrNotFound
	}
	record := model.LoginToken{TokenHash: hash, Used: values["used"] == "1"}
	if record.ID, err = strconv.ParseInt(values["id"], 10, 64); err != nil {
		return model.LoginToken{}, fmt.Errorf("login token id: %w", err)
	}
	if record.StudentID, err = strconv.ParseInt(values["student_id"], 10, 64); err != nil {
		return model.LoginToken{}, fmt.Errorf("login token student_id: %w", err)
	}
	if record.ExpiresAt, err = parseMillis(values["expires_at"]); err != nil {
		return model.LoginToken{}, fmt.Errorf("login token expires_at: %w", err)
	}
	if record.CreatedAt, err = parseMillis(values["created_at"]); err != nil {
		return model.LoginToken{}, fmt.Errorf("login token created_at: %w", err)
	}
	if raw, ok := values["used_at"]; ok {
		usedAt, err := parseMillis(raw)
		if err != nil {
			return model.LoginToken{}, fmt.Errorf("login token used_at: %w", err)
		}
		record.UsedAt = &usedAt
	}
	return record, nil
}

func (r *RedisLoginTokens) Consume(ctx context.Context, token string) (int64, error) {
	key := loginTokenKey(crypto.HashToken(token))
	value, err := consumeScript.Run(ctx, r.client, []string{key}, r.now().UnixMilli()).Text()
	if errors.Is(err, redis.Nil) {
		return 0, ErrTokenInvalidOrExpired
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(value, 10, 64)
}

// DeleteExpired is a no-op: Redis drops token keys on its own once the
// grace period after expiry has passed.
func (r *RedisLoginTokens) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func loginTokenKey(hash string) string {
	return loginTokenKeyPrefix + hash
}

func parseMillis(value string) (time.Time, error) {
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
