// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config is the daemon's environment configuration. A .env file is loaded
// by godotenv before this is decoded.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR,default=:8080"`

	// ServerID distinguishes this game server instance in tokens and URLs.
	ServerID   string `env:"SERVER_ID,default=1"`
	ServerAddr string `env:"SERVER_ADDR,default=127.0.0.1"`

	// URLTemplate is expanded into the page URL presented to clients. See
	// presenter.Expand for the recognized placeholders.
	URLTemplate string `env:"MOTD_URL,default=http://localhost:8000/{server_id}/{namespace}/{page_id}/{identity_id}/{auth_method}/{auth_token}/{session_id}/"`

	// ProcessSecretPath is where the process-wide token secret lives.
	ProcessSecretPath string `env:"PROCESS_SECRET_PATH,default=motdgate_secret.dat"`

	// Debug logs presented URLs instead of only delivering them.
	Debug bool `env:"MOTD_DEBUG,default=false"`

	// WebTokenExpire bounds the lifetime of WEB auth method JWTs.
	// 0 means they never expire.
	WebTokenExpire time.Duration `env:"TOKEN_EXPIRE_TIME,default=72h"`

	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig configures the rotating-secret store. When User is empty
// the daemon falls back to the in-memory store.
type PostgresConfig struct {
	User     string `env:"POSTGRES_USER"`
	Password string `env:"POSTGRES_PASSWORD"`
	Host     string `env:"PG_HOST,default=localhost"`
	Port     string `env:"PG_PORT,default=5432"`
	Database string `env:"PG_DATABASE,default=motdgate"`
}

// DSN builds the pgx connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		p.User, p.Password, p.Host, p.Port, p.Database)
}

// Enabled reports whether a Postgres store is configured.
func (p PostgresConfig) Enabled() bool { return p.User != "" }

// RedisConfig configures the optional session event queue. Empty Addr
// disables it.
type RedisConfig struct {
	Addr  string `env:"REDIS_ADDR"`
	DB    int    `env:"REDIS_DB,default=0"`
	Queue string `env:"EVENT_QUEUE_NAME"`
}

// Enabled reports whether event publishing is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// Load decodes the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode environment config: %w", err)
	}
	return &cfg, nil
}
