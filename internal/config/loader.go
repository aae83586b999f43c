package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies KPIM_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known KPIM_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "KPIM_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "KPIM_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "KPIM_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "KPIM_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "KPIM_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "KPIM_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "KPIM_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "KPIM_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "KPIM_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "KPIM_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "KPIM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "KPIM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "KPIM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "KPIM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "KPIM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "KPIM_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.SeriesTTL, "KPIM_REDIS_SERIES_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "KPIM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "KPIM_S3_REGION")
	setStr(&cfg.S3.Bucket, "KPIM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "KPIM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "KPIM_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "KPIM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "KPIM_S3_FORCE_PATH_STYLE")

	// ── Polygonscan ──
	setStr(&cfg.Polygonscan.BaseURL, "KPIM_POLYGONSCAN_BASE_URL")
	setStr(&cfg.Polygonscan.APIKey, "KPIM_POLYGONSCAN_API_KEY")
	setDuration(&cfg.Polygonscan.Timeout, "KPIM_POLYGONSCAN_TIMEOUT")
	setInt(&cfg.Polygonscan.MaxRetries, "KPIM_POLYGONSCAN_MAX_RETRIES")
	setDuration(&cfg.Polygonscan.RetryBackoff, "KPIM_POLYGONSCAN_RETRY_BACKOFF")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "KPIM_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "KPIM_CHAIN_CHAIN_ID")
	setStr(&cfg.Chain.CollateralAddress, "KPIM_CHAIN_COLLATERAL_ADDRESS")
	setStr(&cfg.Chain.NullAddress, "KPIM_CHAIN_NULL_ADDRESS")

	// ── Auth ──
	setStr(&cfg.Auth.JWTSecret, "KPIM_AUTH_JWT_SECRET")
	setDuration(&cfg.Auth.TokenTTL, "KPIM_AUTH_TOKEN_TTL")
	setInt(&cfg.Auth.BcryptCost, "KPIM_AUTH_BCRYPT_COST")

	// ── Faucet ──
	setStr(&cfg.Faucet.PrivateKey, "KPIM_FAUCET_PRIVATE_KEY")
	setFloat64(&cfg.Faucet.PayoutMatic, "KPIM_FAUCET_PAYOUT_MATIC")
	setUint64(&cfg.Faucet.GasLimit, "KPIM_FAUCET_GAS_LIMIT")
	setDuration(&cfg.Faucet.PollInterval, "KPIM_FAUCET_POLL_INTERVAL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "KPIM_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "KPIM_ARCHIVE_INTERVAL")
	setStr(&cfg.Archive.Prefix, "KPIM_ARCHIVE_PREFIX")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "KPIM_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "KPIM_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "KPIM_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.SMTPHost, "KPIM_NOTIFY_SMTP_HOST")
	setInt(&cfg.Notify.SMTPPort, "KPIM_NOTIFY_SMTP_PORT")
	setStr(&cfg.Notify.SMTPUser, "KPIM_NOTIFY_SMTP_USER")
	setStr(&cfg.Notify.SMTPPassword, "KPIM_NOTIFY_SMTP_PASSWORD")
	setStr(&cfg.Notify.FromAddress, "KPIM_NOTIFY_FROM_ADDRESS")
	setStr(&cfg.Notify.AdminAddress, "KPIM_NOTIFY_ADMIN_ADDRESS")
	setStr(&cfg.Notify.DiscordWebhookURL, "KPIM_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "KPIM_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "KPIM_MODE")
	setStr(&cfg.LogLevel, "KPIM_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
