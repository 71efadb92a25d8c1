package gateway

import (
	"os"
	"time"
)

const (
	ProductionBaseURL = "https://apis.zipcodexpress.com/zpi/"
	TestBaseURL       = "http://zipcodexpress.unibox.com.cn/zpi/"

	DefaultTimeout = 20 * time.Second
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// NeedLoginMessage is the backend message that signals an expired token.
	NeedLoginMessage string
}

// ConfigFromEnv reads gateway settings from env vars.
func ConfigFromEnv() Config {
	base := os.Getenv("ZIPPORA_API_BASE_URL")
	if base == "" {
		if os.Getenv("ZIPPORA_API_TEST") == "1" {
			base = TestBaseURL
		} else {
			base = ProductionBaseURL
		}
	}
	timeout := DefaultTimeout
	if v := os.Getenv("ZIPPORA_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			timeout = d
		}
	}
	return Config{BaseURL: base, Timeout: timeout, NeedLoginMessage: "Need login!"}
}
