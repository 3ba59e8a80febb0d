package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionTTL bounds how long a session nonce may sit unused. Device key
// material is stored without expiry.
const SessionTTL time.Duration = 24 * time.Hour

// Should be safe to use in concurrency
type KeyStore interface {
	// Store the value under the given key. A ttl of zero means no expiry.
	// Should not return an error when the key already exists, it should
	// just overwrite in that case.
	Put(key string, value []byte, ttl time.Duration) error

	// Should retrieve the value for the given key and return an error in
	// any case where it fails to do so.
	Get(key string) ([]byte, error)

	// Should remove the value and return an error if it fails to do so.
	// The value not being there should also be considered an error.
	Delete(key string) error
}

// ------------------------------------------------------------------------------

type InMemoryKeyStore struct {
	values map[string][]byte
	mutex  sync.Mutex
}

func NewInMemoryKeyStore() *InMemoryKeyStore {
	return &InMemoryKeyStore{
		values: make(map[string][]byte),
	}
}

func (s *InMemoryKeyStore) Put(key string, value []byte, ttl time.Duration) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.values[key] = stored
	return nil
}

func (s *InMemoryKeyStore) Get(key string) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if value, ok := s.values[key]; ok {
		out := make([]byte, len(value))
		copy(out, value)
		return out, nil
	}
	return nil, fmt.Errorf("failed to find value for %s", key)
}

func (s *InMemoryKeyStore) Delete(key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		return nil
	}
	return fmt.Errorf("failed to remove value for %s, because it wasn't there", key)
}

// ------------------------------------------------------------------------------

type RedisKeyStore struct {
	client    *redis.Client
	namespace string
}

func NewRedisKeyStore(client *redis.Client, namespace string) *RedisKeyStore {
	return &RedisKeyStore{client: client, namespace: namespace}
}

func createKey(namespace, key string) string {
	return fmt.Sprintf("%s:store:%s", namespace, key)
}

func (s *RedisKeyStore) Put(key string, value []byte, ttl time.Duration) error {
	ctx := context.Background()
	return s.client.Set(ctx, createKey(s.namespace, key), value, ttl).Err()
}

func (s *RedisKeyStore) Get(key string) ([]byte, error) {
	ctx := context.Background()
	return s.client.Get(ctx, createKey(s.namespace, key)).Bytes()
}

func (s *RedisKeyStore) Delete(key string) error {
	ctx := context.Background()
	removed, err := s.client.Del(ctx, createKey(s.namespace, key)).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return fmt.Errorf("failed to remove value for %s, because it wasn't there", key)
	}
	return nil
}
