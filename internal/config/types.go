package config

import "time"

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	DSN            string                `yaml:"dsn"` // MySQL DSN
	RedisURL       string                `yaml:"redis_url"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	Identity       IdentityConfig        `yaml:"identity"`
	Security       SecurityConfig        `yaml:"security"`
	Relay          RelayConfig           `yaml:"relay"`
	Verification   VerificationConfig    `yaml:"verification"`
	Devices        DeviceConfig          `yaml:"devices"`
}

type DatabaseRuntimeConfig struct {
	DSN      string            `yaml:"dsn"`
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	User     string            `yaml:"user"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Name     string            `yaml:"name"`
	DBName   string            `yaml:"db_name"`
	Charset  string            `yaml:"charset"`
	Loc      string            `yaml:"loc"`
	Params   map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

// IdentityConfig points at the external identity provider. Secret is the
// shared token-verification secret and is required at startup.
type IdentityConfig struct {
	Secret string `yaml:"secret"`
}

// SecurityConfig holds the process-wide server secret that salts verification
// code digests and keys relay signatures. Required at startup.
type SecurityConfig struct {
	ServerSecret string `yaml:"server_secret"`
}

// RelayConfig describes the trusted email relay endpoint.
type RelayConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	Timeout   time.Duration `yaml:"timeout"`
	Freshness time.Duration `yaml:"freshness"`
}

// VerificationConfig tunes the one-time code lifecycle.
type VerificationConfig struct {
	VerifyTTL   time.Duration `yaml:"verify_ttl"`
	ResetTTL    time.Duration `yaml:"reset_ttl"`
	MaxAttempts int           `yaml:"max_attempts"`
	// BindIP rejects a code consumed from a different IP than the one that
	// requested it. Off by default.
	BindIP bool `yaml:"bind_ip"`
}

// DeviceConfig tunes the per-user device registry.
type DeviceConfig struct {
	MaxPerUser int `yaml:"max_per_user"`
}

type rawAppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"`
	NodeEnv        string                `yaml:"node_env"`
	DSN            string                `yaml:"dsn"`
	DatabaseURL    string                `yaml:"database_url"`
	RedisURL       string                `yaml:"redis_url"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	Identity       IdentityConfig        `yaml:"identity"`
	IdentitySecret string                `yaml:"identity_secret"`
	Security       SecurityConfig        `yaml:"security"`
	ServerSecret   string                `yaml:"server_secret"`
	Relay          RelayConfig           `yaml:"relay"`
	Verification   VerificationConfig    `yaml:"verification"`
	Devices        DeviceConfig          `yaml:"devices"`
}
