package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Load builds the configuration from, in increasing precedence:
// defaults, a YAML config file, OGEMBED_* environment variables, and
// CLI flags.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(defaultsProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
		}
	} else {
		for _, path := range []string{"config.yaml", "config.yml"} {
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
					return nil, fmt.Errorf("loading config file: %w", err)
				}
				break
			}
		}
	}

	if err := k.Load(env.Provider("OGEMBED_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "OGEMBED_")), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetupFlags defines the CLI flags recognized by the server binary.
func SetupFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("ogembed", pflag.ContinueOnError)
	flags.String("config", "", "path to config file")
	flags.String("server.host", "", "listen host")
	flags.Int("server.port", 0, "listen port")
	flags.String("server.public_url", "", "public base URL for embed links")
	flags.String("database.path", "", "sqlite database path")
	flags.String("redis.addr", "", "redis address (host:port)")
	flags.String("log.level", "", "log level (debug, info, warn, error)")
	flags.String("log.format", "", "log format (text, json)")
	return flags
}

type defaultsProviderStruct struct {
	defaults *Config
}

func defaultsProvider(defaults *Config) *defaultsProviderStruct {
	return &defaultsProviderStruct{defaults: defaults}
}

func (d *defaultsProviderStruct) ReadBytes() ([]byte, error) {
	return nil, nil
}

func (d *defaultsProviderStruct) Read() (map[string]interface{}, error) {
	bucket := func(r BucketRule) map[string]interface{} {
		return map[string]interface{}{
			"limit":  r.Limit,
			"window": r.Window.String(),
		}
	}
	return map[string]interface{}{
		"server": map[string]interface{}{
			"host":            d.defaults.Server.Host,
			"port":            d.defaults.Server.Port,
			"public_url":      d.defaults.Server.PublicURL,
			"allowed_origins": d.defaults.Server.AllowedOrigins,
			"tls": map[string]interface{}{
				"mode":      d.defaults.Server.TLS.Mode,
				"cert_file": d.defaults.Server.TLS.CertFile,
				"key_file":  d.defaults.Server.TLS.KeyFile,
				"auto": map[string]interface{}{
					"domain":    d.defaults.Server.TLS.Auto.Domain,
					"email":     d.defaults.Server.TLS.Auto.Email,
					"cache_dir": d.defaults.Server.TLS.Auto.CacheDir,
				},
			},
		},
		"database": map[string]interface{}{
			"path": d.defaults.Database.Path,
		},
		"redis": map[string]interface{}{
			"addr":     d.defaults.Redis.Addr,
			"password": d.defaults.Redis.Password,
			"db":       d.defaults.Redis.DB,
			"timeout":  d.defaults.Redis.Timeout.String(),
		},
		"embeds": map[string]interface{}{
			"code_length":    d.defaults.Embeds.CodeLength,
			"code_alphabet":  d.defaults.Embeds.CodeAlphabet,
			"ttl":            d.defaults.Embeds.TTL.String(),
			"sweep_interval": d.defaults.Embeds.SweepInterval.String(),
		},
		"cache": map[string]interface{}{
			"enabled": d.defaults.Cache.Enabled,
			"ttl":     d.defaults.Cache.TTL.String(),
		},
		"rate_limit": map[string]interface{}{
			"enabled":  d.defaults.RateLimit.Enabled,
			"global":   bucket(d.defaults.RateLimit.Global),
			"generate": bucket(d.defaults.RateLimit.Generate),
			"create":   bucket(d.defaults.RateLimit.Create),
			"edit":     bucket(d.defaults.RateLimit.Edit),
			"delete":   bucket(d.defaults.RateLimit.Delete),
		},
		"log": map[string]interface{}{
			"level":  d.defaults.Log.Level,
			"format": d.defaults.Log.Format,
		},
		"telemetry": map[string]interface{}{
			"enabled":      d.defaults.Telemetry.Enabled,
			"endpoint":     d.defaults.Telemetry.Endpoint,
			"service_name": d.defaults.Telemetry.ServiceName,
			"logs":         d.defaults.Telemetry.Logs,
		},
	}, nil
}
