// Package config defines the top-level configuration for the marketd agent
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/outcomelab/marketd/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by MARKETD_* environment
// variables.
type Config struct {
	Registry   RegistryConfig     `toml:"registry"`
	Gateway    GatewayConfig      `toml:"gateway"`
	Scanner    ScannerConfig      `toml:"scanner"`
	Collateral []CollateralConfig `toml:"collateral"`
	Redis      RedisConfig        `toml:"redis"`
	Audit      AuditConfig        `toml:"audit"`
	Backup     BackupConfig       `toml:"backup"`
	Server     ServerConfig       `toml:"server"`
	Mode       string             `toml:"mode"`
	LogLevel   string             `toml:"log_level"`
}

// RegistryConfig holds the local registry location and lock discipline.
type RegistryConfig struct {
	// Dir is the directory holding registry.json and the per-market records.
	Dir string `toml:"dir"`
	// Lock selects the serialization primitive for index writes:
	// "local" (in-process mutex) or "redis" (cross-instance SETNX lock).
	Lock    string   `toml:"lock"`
	LockTTL duration `toml:"lock_ttl"`
}

// GatewayConfig holds the chain gateway endpoints.
type GatewayConfig struct {
	// BaseURL is the REST root of the market SDK gateway daemon.
	BaseURL string `toml:"base_url"`
	// WsURL is the optional event-stream endpoint. Empty disables the stream.
	WsURL   string   `toml:"ws_url"`
	Timeout duration `toml:"timeout"`
}

// ScannerConfig holds the settlement scan loop parameters.
type ScannerConfig struct {
	Interval duration `toml:"interval"`
	// Resolver picks the judgment for due markets: "oracle" adopts on-chain
	// resolutions, "manual" leaves every market for the settle command.
	Resolver string `toml:"resolver"`
}

// CollateralConfig declares a known collateral token operators may create
// markets with by symbol.
type CollateralConfig struct {
	Symbol   string `toml:"symbol"`
	Address  string `toml:"address"`
	Decimals int    `toml:"decimals"`
}

// RedisConfig holds Redis connection parameters. Redis is required only when
// registry.lock = "redis" or price caching is wanted.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// AuditConfig holds PostgreSQL connection parameters for the optional audit
// trail.
type AuditConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// BackupConfig holds the registry snapshot backup parameters.
type BackupConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
	Prefix   string   `toml:"prefix"`
	S3       S3Config `toml:"s3"`
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

// ServerConfig holds the status HTTP server parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
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

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Registry: RegistryConfig{
			Dir:     "markets",
			Lock:    "local",
			LockTTL: duration{30 * time.Second},
		},
		Gateway: GatewayConfig{
			BaseURL: "http://localhost:8811",
			Timeout: duration{30 * time.Second},
		},
		Scanner: ScannerConfig{
			Interval: duration{time.Minute},
			Resolver: "oracle",
		},
		Collateral: []CollateralConfig{
			{Symbol: "USDC", Address: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", Decimals: 6},
			{Symbol: "DAI", Address: "0x8f3Cf7ad23Cd3CaDbD9735AFf958023239c6A063", Decimals: 18},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Audit: AuditConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "marketd",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Backup: BackupConfig{
			Enabled:  false,
			Interval: duration{time.Hour},
			Prefix:   "registry",
			S3: S3Config{
				Endpoint:       "http://localhost:9000",
				Region:         "us-east-1",
				Bucket:         "marketd-backups",
				UseSSL:         false,
				ForcePathStyle: true,
			},
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8700,
		},
		Mode:     "agent",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"agent": true,
	"scan":  true,
	"serve": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLocks enumerates the accepted values for Registry.Lock.
var validLocks = map[string]bool{
	"local": true,
	"redis": true,
}

// validResolvers enumerates the accepted values for Scanner.Resolver.
var validResolvers = map[string]bool{
	"oracle": true,
	"manual": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: agent, scan, serve)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Registry
	if c.Registry.Dir == "" {
		errs = append(errs, "registry: dir must not be empty")
	}
	if !validLocks[strings.ToLower(c.Registry.Lock)] {
		errs = append(errs, fmt.Sprintf("registry: unknown lock %q (valid: local, redis)", c.Registry.Lock))
	}
	if c.Registry.Lock == "redis" && !c.Redis.Enabled {
		errs = append(errs, "registry: lock = \"redis\" requires redis.enabled = true")
	}
	if c.Registry.LockTTL.Duration <= 0 {
		errs = append(errs, "registry: lock_ttl must be positive")
	}

	// Gateway
	if c.Gateway.BaseURL == "" {
		errs = append(errs, "gateway: base_url must not be empty")
	}
	if c.Gateway.Timeout.Duration <= 0 {
		errs = append(errs, "gateway: timeout must be positive")
	}

	// Scanner
	if c.Scanner.Interval.Duration <= 0 {
		errs = append(errs, "scanner: interval must be positive")
	}
	if !validResolvers[strings.ToLower(c.Scanner.Resolver)] {
		errs = append(errs, fmt.Sprintf("scanner: unknown resolver %q (valid: oracle, manual)", c.Scanner.Resolver))
	}

	// Collateral table
	seen := make(map[string]bool, len(c.Collateral))
	for i, t := range c.Collateral {
		if t.Symbol == "" {
			errs = append(errs, fmt.Sprintf("collateral[%d]: symbol must not be empty", i))
		}
		if seen[strings.ToUpper(t.Symbol)] {
			errs = append(errs, fmt.Sprintf("collateral[%d]: duplicate symbol %q", i, t.Symbol))
		}
		seen[strings.ToUpper(t.Symbol)] = true
		if !domain.ValidAddress(t.Address) {
			errs = append(errs, fmt.Sprintf("collateral[%d]: %q is not a hex address", i, t.Address))
		}
		if t.Decimals < 0 || t.Decimals > 36 {
			errs = append(errs, fmt.Sprintf("collateral[%d]: decimals must be 0-36, got %d", i, t.Decimals))
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Audit
	if c.Audit.Enabled {
		if strings.TrimSpace(c.Audit.DSN) == "" {
			if c.Audit.Host == "" {
				errs = append(errs, "audit: host must not be empty (or set audit.dsn)")
			}
			if c.Audit.Port <= 0 || c.Audit.Port > 65535 {
				errs = append(errs, fmt.Sprintf("audit: port must be 1-65535, got %d", c.Audit.Port))
			}
			if c.Audit.Database == "" {
				errs = append(errs, "audit: database must not be empty")
			}
		}
		if c.Audit.PoolMaxConns < 1 {
			errs = append(errs, "audit: pool_max_conns must be >= 1")
		}
		if c.Audit.PoolMinConns < 0 || c.Audit.PoolMinConns > c.Audit.PoolMaxConns {
			errs = append(errs, "audit: pool_min_conns must be 0..pool_max_conns")
		}
	}

	// Backup
	if c.Backup.Enabled {
		if c.Backup.S3.Endpoint == "" {
			errs = append(errs, "backup: s3.endpoint must not be empty")
		}
		if c.Backup.S3.Bucket == "" {
			errs = append(errs, "backup: s3.bucket must not be empty")
		}
		if c.Backup.Interval.Duration <= 0 {
			errs = append(errs, "backup: interval must be positive")
		}
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

// LookupCollateral resolves a symbol from the configured token table
// (case-insensitive). The second return is false for unknown symbols.
func (c *Config) LookupCollateral(symbol string) (domain.Collateral, bool) {
	for _, t := range c.Collateral {
		if strings.EqualFold(t.Symbol, symbol) {
			return domain.Collateral{Symbol: t.Symbol, Address: t.Address, Decimals: t.Decimals}, true
		}
	}
	return domain.Collateral{}, false
}
