package reset

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"campusmarket/internal/apperr"

	"github.com/redis/go-redis/v9"
)

// CodeStore keeps short-lived reset codes and tokens.
type CodeStore interface {
	SaveCode(ctx context.Context, phone, code string, ttl time.Duration) error
	// Code returns a NotFound error when no code is pending for phone.
	Code(ctx context.Context, phone string) (string, error)
	// DeleteCode removes the code together with its failed attempts.
	DeleteCode(ctx context.Context, phone string) error
	// FailAttempt counts a wrong guess for phone and returns the count so far.
	FailAttempt(ctx context.Context, phone string, ttl time.Duration) (int, error)
	SaveToken(ctx context.Context, token string, userID int, ttl time.Duration) error
	// ConsumeToken returns the user bound to token and removes it.
	ConsumeToken(ctx context.Context, token string) (int, error)
}

// RedisStore is a CodeStore backed by Redis keys with expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "campusmarket:reset:"}
}

func (s *RedisStore) codeKey(phone string) string  { return s.prefix + "code:" + phone }
func (s *RedisStore) tokenKey(token string) string { return s.prefix + "token:" + token }
func (s *RedisStore) attemptsKey(phone string) string {
	return s.prefix + "attempts:" + phone
}

// SaveCode stores a fresh code and resets the failed attempts for phone.
func (s *RedisStore) SaveCode(ctx context.Context, phone, code string, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.codeKey(phone), code, ttl)
		pipe.Del(ctx, s.attemptsKey(phone))
		return nil
	})
	if err != nil {
		return apperr.Internal("failed to store reset code", err)
	}
	return nil
}

func (s *RedisStore) Code(ctx context.Context, phone string) (string, error) {
	code, err := s.client.Get(ctx, s.codeKey(phone)).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperr.NotFound("reset code not found")
	}
	if err != nil {
		return "", apperr.Internal("failed to read reset code", err)
	}
	return code, nil
}

func (s *RedisStore) DeleteCode(ctx context.Context, phone string) error {
	if err := s.client.Del(ctx, s.codeKey(phone), s.attemptsKey(phone)).Err(); err != nil {
		return apperr.Internal("failed to delete reset code", err)
	}
	return nil
}

func (s *RedisStore) FailAttempt(ctx context.Context, phone string, ttl time.Duration) (int, error) {
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, s.attemptsKey(phone))
		pipe.ExpireNX(ctx, s.attemptsKey(phone), ttl)
		return nil
	})
	if err != nil {
		return 0, apperr.Internal("failed to count reset attempt", err)
	}
	return int(incr.Val()), nil
}

func (s *RedisStore) SaveToken(ctx context.Context, token string, userID int, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.tokenKey(token), userID, ttl).Err(); err != nil {
		return apperr.Internal("failed to store reset token", err)
	}
	return nil
}

func (s *RedisStore) ConsumeToken(ctx context.Context, token string) (int, error) {
	val, err := s.client.GetDel(ctx, s.tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, apperr.NotFound("reset token not found")
	}
	if err != nil {
		return 0, apperr.Internal("failed to read reset token", err)
	}
	userID, err := strconv.Atoi(val)
	if err != nil {
		return 0, apperr.Internal("corrupt reset token", fmt.Errorf("parse user id %q: %w", val, err))
	}
	return userID, nil
}
