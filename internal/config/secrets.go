package config

import (
	"net/url"
)

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// redaction placeholder "***". Use this when logging or printing the active
// configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	redact(&out.Subgraph.APIKey)
	redact(&out.Server.AdminToken)
	redact(&out.Redis.Password)
	redact(&out.Postgres.Password)
	out.Postgres.DSN = redactDSN(cfg.Postgres.DSN)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Chains != nil {
		out.Chains = make([]ChainConfig, len(cfg.Chains))
		copy(out.Chains, cfg.Chains)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

// redactDSN keeps the host and database of a connection URL readable and
// hides the password. Unparseable DSNs are redacted entirely.
func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return redacted
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redacted)
	}
	return u.String()
}
