// repositories/token_repository.go
package repositories

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-redis/redis/v8"
	"gopkg.in/yaml.v3"
)

var ErrTokenNotFound = errors.New("token not found")

// TokenRepository persists the credentials issued at login under fixed keys
// (models.AccessTokenKey, models.RefreshTokenKey).
type TokenRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// MemoryTokenRepository keeps credentials for the lifetime of the process.
type MemoryTokenRepository struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{values: make(map[string]string)}
}

func (r *MemoryTokenRepository) Get(ctx context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.values[key]
	if !ok || value == "" {
		return "", ErrTokenNotFound
	}
	return value, nil
}

func (r *MemoryTokenRepository) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

func (r *MemoryTokenRepository) Delete(ctx context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		delete(r.values, key)
	}
	return nil
}

// RedisTokenRepository shares credentials between gateway replicas and CLI
// invocations. Keys are prefixed with a namespace per session.
type RedisTokenRepository struct {
	client    *redis.Client
	namespace string
}

func NewRedisTokenRepository(client *redis.Client, namespace string) *RedisTokenRepository {
	return &RedisTokenRepository{client: client, namespace: namespace}
}

func (r *RedisTokenRepository) key(name string) string {
	return "rescuelink:tokens:" + r.namespace + ":" + name
}

func (r *RedisTokenRepository) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *RedisTokenRepository) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *RedisTokenRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, key := range keys {
		full = append(full, r.key(key))
	}
	return r.client.Del(ctx, full...).Err()
}

// FileTokenRepository stores credentials in a YAML file readable only by the
// current user. It backs the CLI between invocations.
type FileTokenRepository struct {
	mu   sync.Mutex
	path string
}

func NewFileTokenRepository(path string) *FileTokenRepository {
	return &FileTokenRepository{path: path}
}

// DefaultCredentialsPath is ~/.rescuelink/credentials.yaml.
func DefaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".rescuelink", "credentials.yaml")
}

func (r *FileTokenRepository) load() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (r *FileTokenRepository) save(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(values)
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, data, 0o600)
}

func (r *FileTokenRepository) Get(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	values, err := r.load()
	if err != nil {
		return "", err
	}
	value, ok := values[key]
	if !ok || value == "" {
		return "", ErrTokenNotFound
	}
	return value, nil
}

func (r *FileTokenRepository) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	values, err := r.load()
	if err != nil {
		return err
	}
	values[key] = value
	return r.save(values)
}

func (r *FileTokenRepository) Delete(ctx context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	values, err := r.load()
	if err != nil {
		return err
	}
	for _, key := range keys {
		delete(values, key)
	}
	return r.save(values)
}
