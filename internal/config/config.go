package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenAddr    string
	OpsListenAddr string
	BaseURL       string

	DB struct {
		DSN string
	}

	// ClientTimeout is the read timeout applied to a CalDAV connection until
	// the client sends its own Keep-Alive hint.
	ClientTimeout time.Duration

	Session struct {
		CacheTTL time.Duration
	}

	AuthLimit struct {
		Rate  float64
		Burst int
	}

	ConnLimit struct {
		Rate  float64
		Burst int
	}

	WireDebug         bool
	PrometheusEnabled bool
	TrustedProxies    []string
}

func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", ":1080")
	cfg.OpsListenAddr = getenvDefault("APP_OPS_LISTEN_ADDR", ":9090")
	cfg.BaseURL = getenvDefault("APP_BASE_URL", "http://localhost:1080")
	cfg.DB.DSN = os.Getenv("APP_DB_DSN")

	if cfg.DB.DSN == "" {
		host := os.Getenv("APP_DB_HOST")
		name := os.Getenv("APP_DB_NAME")
		user := os.Getenv("APP_DB_USER")
		password := os.Getenv("APP_DB_PASSWORD")
		port := getenvDefault("APP_DB_PORT", "5432")
		sslmode := getenvDefault("APP_DB_SSLMODE", "disable")

		var missing []string
		if host == "" {
			missing = append(missing, "APP_DB_HOST")
		}
		if name == "" {
			missing = append(missing, "APP_DB_NAME")
		}
		if user == "" {
			missing = append(missing, "APP_DB_USER")
		}
		if password == "" {
			missing = append(missing, "APP_DB_PASSWORD")
		}

		if len(missing) == 0 {
			cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
		}
	}

	var err error
	if cfg.ClientTimeout, err = getenvDuration("APP_CLIENT_TIMEOUT", 300*time.Second); err != nil {
		return nil, err
	}
	if cfg.Session.CacheTTL, err = getenvDuration("APP_SESSION_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AuthLimit.Rate, err = getenvFloat("APP_AUTH_FAILURE_RATE", 0.2); err != nil {
		return nil, err
	}
	if cfg.AuthLimit.Burst, err = getenvInt("APP_AUTH_FAILURE_BURST", 5); err != nil {
		return nil, err
	}
	if cfg.ConnLimit.Rate, err = getenvFloat("APP_CONN_RATE", 10); err != nil {
		return nil, err
	}
	if cfg.ConnLimit.Burst, err = getenvInt("APP_CONN_BURST", 20); err != nil {
		return nil, err
	}

	cfg.WireDebug = getenvBool("APP_WIRE_DEBUG", false)
	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("APP_TRUSTED_PROXIES")

	if cfg.DB.DSN == "" {
		return nil, errors.New("APP_DB_DSN is required (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")
	}
	if cfg.ClientTimeout < 0 {
		return nil, fmt.Errorf("APP_CLIENT_TIMEOUT must not be negative (got %s)", cfg.ClientTimeout)
	}
	if cfg.Session.CacheTTL <= 0 {
		return nil, fmt.Errorf("APP_SESSION_CACHE_TTL must be positive (got %s)", cfg.Session.CacheTTL)
	}

	if len(cfg.TrustedProxies) == 0 && cfg.PrometheusEnabled {
		fmt.Println("WARNING: No APP_TRUSTED_PROXIES configured. The ops endpoint will trust all proxies - Not recommended for public environments.")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return f, nil
}
