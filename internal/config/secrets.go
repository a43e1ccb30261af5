package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields
// replaced by the redaction placeholder "***". Use this when logging or
// printing the active configuration so secrets are never accidentally
// exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	out.Audit = cfg.Audit
	redact(&out.Audit.DSN)
	redact(&out.Audit.Password)

	out.Backup = cfg.Backup
	redact(&out.Backup.S3.AccessKey)
	redact(&out.Backup.S3.SecretKey)

	return out
}

func redact(s *string) {
	if *s != "" {
		*s = "***"
	}
}
