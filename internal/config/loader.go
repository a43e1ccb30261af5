package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MARKETD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
//
// A missing config file is not an error: defaults plus environment
// overrides are enough to run against a local gateway.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MARKETD_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Registry ──
	setStr(&cfg.Registry.Dir, "MARKETD_REGISTRY_DIR")
	setStr(&cfg.Registry.Lock, "MARKETD_REGISTRY_LOCK")
	setDuration(&cfg.Registry.LockTTL, "MARKETD_REGISTRY_LOCK_TTL")

	// ── Gateway ──
	setStr(&cfg.Gateway.BaseURL, "MARKETD_GATEWAY_BASE_URL")
	setStr(&cfg.Gateway.WsURL, "MARKETD_GATEWAY_WS_URL")
	setDuration(&cfg.Gateway.Timeout, "MARKETD_GATEWAY_TIMEOUT")

	// ── Scanner ──
	setDuration(&cfg.Scanner.Interval, "MARKETD_SCANNER_INTERVAL")
	setStr(&cfg.Scanner.Resolver, "MARKETD_SCANNER_RESOLVER")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "MARKETD_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "MARKETD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARKETD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARKETD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MARKETD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MARKETD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MARKETD_REDIS_TLS_ENABLED")

	// ── Audit ──
	setBool(&cfg.Audit.Enabled, "MARKETD_AUDIT_ENABLED")
	setStr(&cfg.Audit.DSN, "MARKETD_AUDIT_DSN")
	setStr(&cfg.Audit.Host, "MARKETD_AUDIT_HOST")
	setInt(&cfg.Audit.Port, "MARKETD_AUDIT_PORT")
	setStr(&cfg.Audit.Database, "MARKETD_AUDIT_DATABASE")
	setStr(&cfg.Audit.User, "MARKETD_AUDIT_USER")
	setStr(&cfg.Audit.Password, "MARKETD_AUDIT_PASSWORD")
	setStr(&cfg.Audit.SSLMode, "MARKETD_AUDIT_SSL_MODE")
	setInt(&cfg.Audit.PoolMaxConns, "MARKETD_AUDIT_POOL_MAX_CONNS")
	setInt(&cfg.Audit.PoolMinConns, "MARKETD_AUDIT_POOL_MIN_CONNS")
	setBool(&cfg.Audit.RunMigrations, "MARKETD_AUDIT_RUN_MIGRATIONS")

	// ── Backup ──
	setBool(&cfg.Backup.Enabled, "MARKETD_BACKUP_ENABLED")
	setDuration(&cfg.Backup.Interval, "MARKETD_BACKUP_INTERVAL")
	setStr(&cfg.Backup.Prefix, "MARKETD_BACKUP_PREFIX")
	setStr(&cfg.Backup.S3.Endpoint, "MARKETD_BACKUP_S3_ENDPOINT")
	setStr(&cfg.Backup.S3.Region, "MARKETD_BACKUP_S3_REGION")
	setStr(&cfg.Backup.S3.Bucket, "MARKETD_BACKUP_S3_BUCKET")
	setStr(&cfg.Backup.S3.AccessKey, "MARKETD_BACKUP_S3_ACCESS_KEY")
	setStr(&cfg.Backup.S3.SecretKey, "MARKETD_BACKUP_S3_SECRET_KEY")
	setBool(&cfg.Backup.S3.UseSSL, "MARKETD_BACKUP_S3_USE_SSL")
	setBool(&cfg.Backup.S3.ForcePathStyle, "MARKETD_BACKUP_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MARKETD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MARKETD_SERVER_PORT")

	// ── Top-level ──
	setStr(&cfg.Mode, "MARKETD_MODE")
	setStr(&cfg.LogLevel, "MARKETD_LOG_LEVEL")
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
