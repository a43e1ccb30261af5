package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "banana"
	cfg.Registry.Dir = ""
	cfg.Scanner.Interval = duration{0}
	cfg.Collateral = append(cfg.Collateral, CollateralConfig{Symbol: "BAD", Address: "not-an-address"})

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted a broken config")
	}
	for _, want := range []string{"unknown mode", "dir must not be empty", "interval must be positive", "not a hex address"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestValidateRedisLockRequiresRedis(t *testing.T) {
	cfg := Defaults()
	cfg.Registry.Lock = "redis"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "redis.enabled") {
		t.Fatalf("err = %v, want redis.enabled complaint", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
mode = "scan"

[registry]
dir = "/var/lib/marketd"

[scanner]
interval = "5m"
resolver = "manual"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "scan" || cfg.Registry.Dir != "/var/lib/marketd" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Scanner.Interval.Duration != 5*time.Minute || cfg.Scanner.Resolver != "manual" {
		t.Errorf("scanner = %+v", cfg.Scanner)
	}
	// Untouched sections keep their defaults.
	if cfg.Gateway.BaseURL != "http://localhost:8811" {
		t.Errorf("gateway base_url = %q, want default", cfg.Gateway.BaseURL)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if cfg.Registry.Dir != "markets" {
		t.Errorf("dir = %q, want default", cfg.Registry.Dir)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MARKETD_MODE", "serve")
	t.Setenv("MARKETD_GATEWAY_BASE_URL", "http://gateway:9000")
	t.Setenv("MARKETD_SCANNER_INTERVAL", "30s")
	t.Setenv("MARKETD_SERVER_ENABLED", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "serve" || cfg.Gateway.BaseURL != "http://gateway:9000" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Scanner.Interval.Duration != 30*time.Second || cfg.Server.Enabled {
		t.Errorf("overrides not applied: %+v %+v", cfg.Scanner, cfg.Server)
	}
}

func TestLookupCollateral(t *testing.T) {
	cfg := Defaults()

	token, ok := cfg.LookupCollateral("usdc")
	if !ok || token.Symbol != "USDC" || token.Decimals != 6 {
		t.Errorf("LookupCollateral(usdc) = %+v, %v", token, ok)
	}
	if _, ok := cfg.LookupCollateral("DOGE"); ok {
		t.Error("LookupCollateral accepted unknown symbol")
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Password = "hunter2"
	cfg.Audit.Password = "hunter2"
	cfg.Backup.S3.SecretKey = "hunter2"

	red := RedactedConfig(&cfg)
	if red.Redis.Password != "***" || red.Audit.Password != "***" || red.Backup.S3.SecretKey != "***" {
		t.Errorf("secrets not redacted: %+v", red)
	}
	if cfg.Redis.Password != "hunter2" {
		t.Error("RedactedConfig mutated the original")
	}
}
