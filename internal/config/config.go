// Package config defines the top-level configuration for the kpimarkets
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by KPIM_* environment variables.
type Config struct {
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Polygonscan PolygonscanConfig `toml:"polygonscan"`
	Chain       ChainConfig       `toml:"chain"`
	Auth        AuthConfig        `toml:"auth"`
	Faucet      FaucetConfig      `toml:"faucet"`
	Archive     ArchiveConfig     `toml:"archive"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// SeriesTTL bounds how long a cached price series is served before the
	// chain is re-scanned.
	SeriesTTL duration `toml:"series_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PolygonscanConfig holds block-explorer API parameters.
type PolygonscanConfig struct {
	BaseURL      string   `toml:"base_url"`
	APIKey       string   `toml:"api_key"`
	Timeout      duration `toml:"timeout"`
	MaxRetries   int      `toml:"max_retries"`
	RetryBackoff duration `toml:"retry_backoff"`
}

// ChainConfig holds on-chain parameters shared by every market: the
// collateral token contract, the mint/burn null address, and the JSON-RPC
// endpoint used for faucet payouts.
type ChainConfig struct {
	RPCURL            string `toml:"rpc_url"`
	ChainID           int64  `toml:"chain_id"`
	CollateralAddress string `toml:"collateral_address"`
	NullAddress       string `toml:"null_address"`
}

// AuthConfig holds password-hashing and JWT signing parameters.
type AuthConfig struct {
	JWTSecret  string   `toml:"jwt_secret"`
	TokenTTL   duration `toml:"token_ttl"`
	BcryptCost int      `toml:"bcrypt_cost"`
}

// FaucetConfig holds the funding-wallet credentials and payout amount for the
// testnet MATIC faucet.
type FaucetConfig struct {
	PrivateKey   string   `toml:"private_key"`
	PayoutMatic  float64  `toml:"payout_matic"`
	GasLimit     uint64   `toml:"gas_limit"`
	PollInterval duration `toml:"poll_interval"`
}

// ArchiveConfig holds price-series archival parameters.
type ArchiveConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
	Prefix   string   `toml:"prefix"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	SMTPHost          string   `toml:"smtp_host"`
	SMTPPort          int      `toml:"smtp_port"`
	SMTPUser          string   `toml:"smtp_user"`
	SMTPPassword      string   `toml:"smtp_password"`
	FromAddress       string   `toml:"from_address"`
	AdminAddress      string   `toml:"admin_address"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "kpimarkets",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
			SeriesTTL:  duration{5 * time.Minute},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "kpimarkets-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Polygonscan: PolygonscanConfig{
			BaseURL:      "https://api.polygonscan.com/api",
			Timeout:      duration{15 * time.Second},
			MaxRetries:   3,
			RetryBackoff: duration{2 * time.Second},
		},
		Chain: ChainConfig{
			RPCURL:      "https://rpc-mumbai.maticvigil.com",
			ChainID:     80001,
			NullAddress: "0x0000000000000000000000000000000000000000",
		},
		Auth: AuthConfig{
			TokenTTL:   duration{24 * time.Hour},
			BcryptCost: 12,
		},
		Faucet: FaucetConfig{
			PayoutMatic:  0.4,
			GasLimit:     21000,
			PollInterval: duration{30 * time.Second},
		},
		Archive: ArchiveConfig{
			Enabled:  false,
			Interval: duration{6 * time.Hour},
			Prefix:   "price-series",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			SMTPPort: 587,
			Events:   []string{"access_requested", "faucet_paid", "faucet_failed", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"worker":  true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, worker, archive, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — only required when archival is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}

	// Polygonscan
	if c.Polygonscan.BaseURL == "" {
		errs = append(errs, "polygonscan: base_url must not be empty")
	}
	if c.Polygonscan.APIKey == "" {
		errs = append(errs, "polygonscan: api_key must not be empty")
	}
	if c.Polygonscan.Timeout.Duration <= 0 {
		errs = append(errs, "polygonscan: timeout must be > 0")
	}
	if c.Polygonscan.MaxRetries < 0 {
		errs = append(errs, "polygonscan: max_retries must be >= 0")
	}

	// Chain
	if c.Chain.CollateralAddress == "" {
		errs = append(errs, "chain: collateral_address must not be empty")
	}
	if c.Chain.NullAddress == "" {
		errs = append(errs, "chain: null_address must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, fmt.Sprintf("chain: chain_id must be positive, got %d", c.Chain.ChainID))
	}

	// Auth — server modes need a signing secret.
	needsAuth := c.Mode == "server" || c.Mode == "full"
	if needsAuth && c.Auth.JWTSecret == "" {
		errs = append(errs, "auth: jwt_secret must be set for mode "+c.Mode)
	}
	if c.Auth.TokenTTL.Duration <= 0 {
		errs = append(errs, "auth: token_ttl must be > 0")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Sprintf("auth: bcrypt_cost must be 4-31, got %d", c.Auth.BcryptCost))
	}

	// Faucet — worker modes need the funding wallet.
	needsFaucet := c.Mode == "worker" || c.Mode == "full"
	if needsFaucet {
		if c.Faucet.PrivateKey == "" {
			errs = append(errs, "faucet: private_key must be set for mode "+c.Mode)
		}
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url must be set for mode "+c.Mode)
		}
	}
	if c.Faucet.PayoutMatic <= 0 {
		errs = append(errs, "faucet: payout_matic must be > 0")
	}
	if c.Faucet.PollInterval.Duration <= 0 {
		errs = append(errs, "faucet: poll_interval must be > 0")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
