package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"
)

// minCodeSpace is the smallest acceptable number of distinct embed codes.
// Below this, collision retries stop being a rounding error.
const minCodeSpace = 1_000_000

func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535"))
	}
	if cfg.Server.PublicURL != "" {
		u, err := url.Parse(cfg.Server.PublicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("server.public_url is not a valid URL with scheme"))
		}
	}

	for i, origin := range cfg.Server.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("server.allowed_origins[%d] %q is not a valid URL with scheme", i, origin))
		}
	}

	switch cfg.Server.TLS.Mode {
	case "", "off":
	case "auto":
		if cfg.Server.TLS.Auto.Domain == "" {
			errs = append(errs, fmt.Errorf("server.tls.auto.domain is required when tls mode is auto"))
		}
		if cfg.Server.TLS.Auto.CacheDir == "" {
			errs = append(errs, fmt.Errorf("server.tls.auto.cache_dir is required when tls mode is auto"))
		}
	case "manual":
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, fmt.Errorf("server.tls.cert_file is required when tls mode is manual"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, fmt.Errorf("server.tls.key_file is required when tls mode is manual"))
		}
	default:
		errs = append(errs, fmt.Errorf("server.tls.mode must be off, auto, or manual"))
	}

	if cfg.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}

	if cfg.Redis.Addr == "" {
		errs = append(errs, fmt.Errorf("redis.addr is required"))
	}
	if cfg.Redis.Timeout < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("redis.timeout must be at least 100ms"))
	}

	if cfg.Embeds.CodeLength < 4 || cfg.Embeds.CodeLength > 64 {
		errs = append(errs, fmt.Errorf("embeds.code_length must be between 4 and 64"))
	}
	if len(cfg.Embeds.CodeAlphabet) < 2 {
		errs = append(errs, fmt.Errorf("embeds.code_alphabet needs at least 2 characters"))
	} else if hasDuplicateChars(cfg.Embeds.CodeAlphabet) {
		errs = append(errs, fmt.Errorf("embeds.code_alphabet contains duplicate characters"))
	} else if codeSpace(len(cfg.Embeds.CodeAlphabet), cfg.Embeds.CodeLength) < minCodeSpace {
		errs = append(errs, fmt.Errorf("embeds.code_alphabet/code_length give fewer than %d possible codes", minCodeSpace))
	}
	if cfg.Embeds.TTL < 0 {
		errs = append(errs, fmt.Errorf("embeds.ttl must not be negative"))
	}
	if cfg.Embeds.TTL > 0 && cfg.Embeds.SweepInterval < time.Minute {
		errs = append(errs, fmt.Errorf("embeds.sweep_interval must be at least 1m when embeds.ttl is set"))
	}

	if cfg.Cache.Enabled && cfg.Cache.TTL < time.Second {
		errs = append(errs, fmt.Errorf("cache.ttl must be at least 1s when the cache is enabled"))
	}

	if cfg.RateLimit.Enabled {
		for _, b := range []struct {
			name string
			rule BucketRule
		}{
			{"rate_limit.global", cfg.RateLimit.Global},
			{"rate_limit.generate", cfg.RateLimit.Generate},
			{"rate_limit.create", cfg.RateLimit.Create},
			{"rate_limit.edit", cfg.RateLimit.Edit},
			{"rate_limit.delete", cfg.RateLimit.Delete},
		} {
			if b.rule.Limit < 1 {
				errs = append(errs, fmt.Errorf("%s.limit must be at least 1", b.name))
			}
			if b.rule.Window < time.Second {
				errs = append(errs, fmt.Errorf("%s.window must be at least 1s", b.name))
			}
		}
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn, or error"))
	}
	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json"))
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		errs = append(errs, fmt.Errorf("telemetry.endpoint is required when telemetry is enabled"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func hasDuplicateChars(s string) bool {
	seen := make(map[rune]bool, len(s))
	for _, r := range s {
		if seen[r] {
			return true
		}
		seen[r] = true
	}
	return false
}

// codeSpace returns alphabet^length, saturating instead of overflowing.
func codeSpace(alphabet, length int) float64 {
	return math.Pow(float64(alphabet), float64(length))
}
