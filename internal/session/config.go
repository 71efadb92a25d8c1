package session

import (
	"os"
	"time"
)

const (
	DefaultLogoutTimeout  = 5 * time.Second
	DefaultReLoginTimeout = 30 * time.Second
)

type Config struct {
	// LogoutTimeout bounds the best-effort server logout.
	LogoutTimeout time.Duration
	// ReLoginTimeout bounds a shared re-login, independent of the caller
	// that triggered it.
	ReLoginTimeout time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		LogoutTimeout:  durationEnv("SESSION_LOGOUT_TIMEOUT", DefaultLogoutTimeout),
		ReLoginTimeout: durationEnv("SESSION_RELOGIN_TIMEOUT", DefaultReLoginTimeout),
	}
}

func durationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
