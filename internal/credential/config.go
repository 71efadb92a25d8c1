package credential

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-redis/redis/v8"
	"github.com/ovaphlow/pitchfork/zippora-client-go/pkg/database"
)

// Backend names accepted by CREDENTIAL_BACKEND.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Backend string

	FilePath string
	KeyPath  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	Namespace string
	Database  database.Config
}

// ConfigFromEnv reads the credential store config from environment variables.
func ConfigFromEnv() Config {
	backend := os.Getenv("CREDENTIAL_BACKEND")
	if backend == "" {
		backend = BackendFile
	}
	dir := os.Getenv("CREDENTIAL_DIR")
	if dir == "" {
		if home, err := os.UserConfigDir(); err == nil {
			dir = filepath.Join(home, "zippora")
		} else {
			dir = ".zippora"
		}
	}
	addr := os.Getenv("CREDENTIAL_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	prefix := os.Getenv("CREDENTIAL_REDIS_PREFIX")
	if prefix == "" {
		prefix = "zippora:credential:"
	}
	return Config{
		Backend:       backend,
		FilePath:      filepath.Join(dir, "credentials.json"),
		KeyPath:       filepath.Join(dir, "credentials.key"),
		RedisAddr:     addr,
		RedisPassword: os.Getenv("CREDENTIAL_REDIS_PASSWORD"),
		RedisPrefix:   prefix,
		Namespace:     os.Getenv("CREDENTIAL_NAMESPACE"),
		Database:      database.ConfigFromEnv(),
	}
}

// Open builds the configured Store. The returned close func releases any
// connection the store holds and is never nil.
func Open(ctx context.Context, cfg Config) (Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(), noop, nil
	case BackendFile, "":
		fs, err := NewFileStore(cfg.FilePath, cfg.KeyPath)
		if err != nil {
			return nil, noop, err
		}
		return fs, noop, nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, noop, fmt.Errorf("ping redis: %w", err)
		}
		rs := NewRedisStore(client, cfg.RedisPrefix)
		return rs, rs.Close, nil
	case BackendPostgres:
		db, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		ss := NewSQLStore(db, cfg.Namespace)
		if err := ss.EnsureTable(ctx); err != nil {
			ss.Close()
			return nil, noop, fmt.Errorf("ensure credential table: %w", err)
		}
		return ss, ss.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown credential backend %q", cfg.Backend)
	}
}
