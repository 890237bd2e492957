package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// maxTxRetries — число попыток оптимистичной транзакции при конфликте WATCH.
const maxTxRetries = 32

// RedisStore — хранилище в Redis. Ключи получают префикс prefix.
// Update реализован через WATCH/MULTI/EXEC с повтором при конфликте.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore создаёт хранилище поверх готового клиента.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisClient создаёт клиента go-redis.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

// Get читает значение ключа.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return data, nil
}

// Set записывает значение без TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

// Update — оптимистичная транзакция: WATCH ключа, чтение, fn, MULTI SET EXEC.
func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	full := s.key(key)

	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, full).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, full, next, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, full)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis UPDATE %s: превышено число попыток (%d)", key, maxTxRetries)
}

// Ping проверяет соединение с Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
