package config

import "time"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Embeds    EmbedsConfig    `koanf:"embeds"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Host           string    `koanf:"host"`
	Port           int       `koanf:"port"`
	PublicURL      string    `koanf:"public_url"`
	AllowedOrigins []string  `koanf:"allowed_origins"`
	TLS            TLSConfig `koanf:"tls"`
}

type TLSConfig struct {
	Mode     string        `koanf:"mode"` // off, auto, manual
	CertFile string        `koanf:"cert_file"`
	KeyFile  string        `koanf:"key_file"`
	Auto     TLSAutoConfig `koanf:"auto"`
}

type TLSAutoConfig struct {
	Domain   string `koanf:"domain"`
	Email    string `koanf:"email"`
	CacheDir string `koanf:"cache_dir"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Timeout  time.Duration `koanf:"timeout"`
}

type EmbedsConfig struct {
	CodeLength    int           `koanf:"code_length"`
	CodeAlphabet  string        `koanf:"code_alphabet"`
	TTL           time.Duration `koanf:"ttl"`            // 0 = embeds never expire
	SweepInterval time.Duration `koanf:"sweep_interval"` // expiry sweep cadence
}

type CacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	TTL     time.Duration `koanf:"ttl"`
}

type RateLimitConfig struct {
	Enabled  bool       `koanf:"enabled"`
	Global   BucketRule `koanf:"global"`
	Generate BucketRule `koanf:"generate"`
	Create   BucketRule `koanf:"create"`
	Edit     BucketRule `koanf:"edit"`
	Delete   BucketRule `koanf:"delete"`
}

type BucketRule struct {
	Limit  int           `koanf:"limit"`
	Window time.Duration `koanf:"window"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"` // OTLP http endpoint, host:port
	ServiceName string `koanf:"service_name"`
	Logs        bool   `koanf:"logs"` // bridge slog through OTLP
}

// codeAlphabet avoids characters that read ambiguously in chat clients
// (0/o, 1/l/i).
const codeAlphabet = "23456789abcdefghjkmnpqrstuvwxyz"

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8080,
			PublicURL: "http://localhost:8080",
		},
		Database: DatabaseConfig{
			Path: "./data/ogembed.db",
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Timeout: 2 * time.Second,
		},
		Embeds: EmbedsConfig{
			CodeLength:    8,
			CodeAlphabet:  codeAlphabet,
			TTL:           0,
			SweepInterval: time.Hour,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Global:   BucketRule{Limit: 60, Window: 30 * time.Second},
			Generate: BucketRule{Limit: 30, Window: time.Minute},
			Create:   BucketRule{Limit: 10, Window: time.Minute},
			Edit:     BucketRule{Limit: 10, Window: time.Minute},
			Delete:   BucketRule{Limit: 15, Window: time.Minute},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "ogembed",
		},
	}
}
