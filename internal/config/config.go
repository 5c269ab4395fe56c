// Package config loads startup configuration from YAML with env overrides.
// Record shapes are fixed structs; defaults are resolved once here, not
// scattered across read sites.
package config

import (
	"fmt"
	neturl "net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"

	defaultDBHost    = "127.0.0.1"
	defaultDBPort    = 3306
	defaultDBUser    = "root"
	defaultDBName    = "vibez"
	defaultDBCharset = "utf8mb4"
	defaultDBLoc     = "Local"

	defaultRedisHost = "localhost"
	defaultRedisPort = 6379

	defaultRelayTimeout   = 10 * time.Second
	defaultRelayFreshness = 5 * time.Minute

	defaultVerifyTTL      = 10 * time.Minute
	defaultResetTTL       = 30 * time.Minute
	defaultMaxAttempts    = 5
	defaultMaxDevices     = 10
)

// Load reads the YAML config at path, applies env overrides and defaults, and
// validates required secrets. A missing server or identity secret is a fatal
// configuration error, not a runtime-recoverable one.
func Load(configPath string) (*AppConfig, error) {
	var raw rawAppConfig
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	case os.IsNotExist(err):
		// Env-only deployments run without a config file.
	default:
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	cfg := &AppConfig{
		Port:           raw.Port,
		Env:            normalizeEnv(firstNonEmpty(raw.Env, raw.NodeEnv)),
		DSN:            strings.TrimSpace(firstNonEmpty(raw.DSN, raw.DatabaseURL)),
		RedisURL:       strings.TrimSpace(raw.RedisURL),
		Database:       raw.Database,
		Redis:          raw.Redis,
		AllowedOrigins: normalizeOrigins(raw.AllowedOrigins),
		Identity:       raw.Identity,
		Security:       raw.Security,
		Relay:          raw.Relay,
		Verification:   raw.Verification,
		Devices:        raw.Devices,
	}
	if cfg.Identity.Secret == "" {
		cfg.Identity.Secret = strings.TrimSpace(raw.IdentitySecret)
	}
	if cfg.Security.ServerSecret == "" {
		cfg.Security.ServerSecret = strings.TrimSpace(raw.ServerSecret)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if strings.TrimSpace(cfg.Security.ServerSecret) == "" {
		return nil, fmt.Errorf("config: security.server_secret is required")
	}
	if strings.TrimSpace(cfg.Identity.Secret) == "" {
		return nil, fmt.Errorf("config: identity.secret is required")
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("VIBEZ_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("VIBEZ_ENV")); v != "" {
		cfg.Env = normalizeEnv(v)
	}
	if v := strings.TrimSpace(os.Getenv("VIBEZ_DSN")); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("VIBEZ_REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("VIBEZ_IDENTITY_SECRET")); v != "" {
		cfg.Identity.Secret = v
	}
	if v := strings.TrimSpace(os.Getenv("VIBEZ_SERVER_SECRET")); v != "" {
		cfg.Security.ServerSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("VIBEZ_RELAY_ENDPOINT")); v != "" {
		cfg.Relay.Endpoint = v
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	if cfg.DSN == "" {
		cfg.DSN = cfg.Database.DSNValue()
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = cfg.Redis.URLValue()
	}
	if cfg.Relay.Timeout <= 0 {
		cfg.Relay.Timeout = defaultRelayTimeout
	}
	if cfg.Relay.Freshness <= 0 {
		cfg.Relay.Freshness = defaultRelayFreshness
	}
	if cfg.Verification.VerifyTTL <= 0 {
		cfg.Verification.VerifyTTL = defaultVerifyTTL
	}
	if cfg.Verification.ResetTTL <= 0 {
		cfg.Verification.ResetTTL = defaultResetTTL
	}
	if cfg.Verification.MaxAttempts <= 0 {
		cfg.Verification.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Devices.MaxPerUser <= 0 {
		cfg.Devices.MaxPerUser = defaultMaxDevices
	}
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool { return c.Env != "production" }

// DSNValue assembles a MySQL DSN from discrete fields when no full DSN is set.
func (c DatabaseRuntimeConfig) DSNValue() string {
	if v := strings.TrimSpace(c.DSN); v != "" {
		return v
	}
	if v := strings.TrimSpace(c.URL); v != "" {
		return v
	}

	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultDBHost
	}
	port := c.Port
	if port == 0 {
		port = defaultDBPort
	}
	user := firstNonEmpty(strings.TrimSpace(c.User), strings.TrimSpace(c.Username), defaultDBUser)
	name := firstNonEmpty(strings.TrimSpace(c.Name), strings.TrimSpace(c.DBName), defaultDBName)
	charset := firstNonEmpty(strings.TrimSpace(c.Charset), defaultDBCharset)
	loc := firstNonEmpty(strings.TrimSpace(c.Loc), defaultDBLoc)

	params := neturl.Values{}
	for key, value := range c.Params {
		k, v := strings.TrimSpace(key), strings.TrimSpace(value)
		if k != "" && v != "" {
			params.Set(k, v)
		}
	}
	params.Set("charset", charset)
	params.Set("parseTime", "True")
	params.Set("loc", loc)

	auth := user
	if pw := strings.TrimSpace(c.Password); pw != "" {
		auth = user + ":" + pw
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s", auth, host, port, name, params.Encode())
}

// URLValue assembles a redis URL from discrete fields when no full URL is set.
func (c RedisRuntimeConfig) URLValue() string {
	if v := strings.TrimSpace(c.URL); v != "" {
		return v
	}
	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultRedisHost
	}
	port := c.Port
	if port == 0 {
		port = defaultRedisPort
	}
	scheme := "redis"
	if c.TLS {
		scheme = "rediss"
	}
	u := neturl.URL{
		Scheme: scheme,
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + strconv.Itoa(c.DB),
	}
	if c.Username != "" || c.Password != "" {
		u.User = neturl.UserPassword(c.Username, c.Password)
	}
	return u.String()
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	env = strings.ToLower(strings.TrimSpace(env))
	if env == "prod" {
		return "production"
	}
	return env
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
