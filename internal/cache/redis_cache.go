package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DefaultKey — ключ Redis, под которым терминал хранит авторизацию.
const DefaultKey = "kassa:credentials"

// RedisTokenStore хранит авторизацию в Redis, чтобы пережить перезапуск терминала.
type RedisTokenStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisTokenStore подключается к Redis. ttl <= 0 означает хранение без срока.
func NewRedisTokenStore(addr, password string, db int, key string, ttl time.Duration) *RedisTokenStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if key == "" {
		key = DefaultKey
	}

	return &RedisTokenStore{client: client, key: key, ttl: ttl}
}

func (s *RedisTokenStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisTokenStore) Close() error {
	return s.client.Close()
}

func (s *RedisTokenStore) Load(ctx context.Context) (*Credentials, bool, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(val), &creds); err != nil {
		return nil, false, err
	}
	return &creds, true, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, creds *Credentials) error {
	if creds == nil {
		return nil
	}
	payload, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, payload, s.ttl).Err()
}

func (s *RedisTokenStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
