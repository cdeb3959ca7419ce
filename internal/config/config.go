package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by the loader. Env values always
// win over the config file.
const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvPort         = "PORT"
	EnvDBConnection = "DB_CONNECTION"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"
	EnvRedisAddr    = "REDIS_ADDR"
	EnvBrevoAPIKey  = "BREVO_API_KEY"
	EnvBrevoSender  = "BREVO_SENDER_EMAIL"
	EnvGroqAPIKey   = "GROQ_API_KEY"
	EnvGroqModel    = "GROQ_MODEL"
	EnvMirrorAPIKey = "MIRROR_API_KEY"
)

// Defaults applied when neither file nor environment provides a value.
const (
	defaultPort      = 10000
	defaultJWTExpiry = 30 * 24 * time.Hour
	defaultOTPExpiry = 5 * time.Minute
	defaultOTPBurst  = 3
	defaultGroqModel = "openai/gpt-oss-120b"
)

// ErrMissingDatabaseDSN indicates no database DSN is present in the config
// file or environment.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds session token secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// RedisConfig holds the optional Redis backend settings. An empty Addr
// selects the in-memory OTP and rate-limit backends.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// BrevoConfig holds transactional email provider settings.
type BrevoConfig struct {
	APIKey      string `yaml:"api-key"`
	SenderEmail string `yaml:"sender-email"`
}

// GroqConfig holds LLM provider settings.
type GroqConfig struct {
	APIKey string `yaml:"api-key"`
	Model  string `yaml:"model"`
}

// MirrorConfig holds the optional identity-provider mirroring settings.
// Mirroring is best-effort and disabled when the endpoint is empty.
type MirrorConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api-key"`
}

// OTPConfig holds code expiry and issuance throttling settings.
type OTPConfig struct {
	Expiry          time.Duration `yaml:"expiry"`
	SendsPerMinute  int           `yaml:"sends-per-minute"`
	DisableThrottle bool          `yaml:"disable-throttle"`
}

// AssetsConfig points at static fallback assets.
type AssetsConfig struct {
	DefaultAvatar string `yaml:"default-avatar"`
}

// Config is the resolved application configuration.
type Config struct {
	ConfigPath string `yaml:"-"`

	Port        int    `yaml:"port"`
	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	JWT    JWTConfig    `yaml:"jwt"`
	Redis  RedisConfig  `yaml:"redis"`
	Brevo  BrevoConfig  `yaml:"brevo"`
	Groq   GroqConfig   `yaml:"groq"`
	Mirror MirrorConfig `yaml:"mirror"`
	OTP    OTPConfig    `yaml:"otp"`
	Assets AssetsConfig `yaml:"assets"`
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load reads the YAML config file, applies environment overrides, and fills
// defaults. A missing config file is not an error as long as the
// environment supplies the required values.
func Load(configPath string) (Config, error) {
	cfg := Config{ConfigPath: ResolveConfigPath(configPath)}

	data, errRead := os.ReadFile(cfg.ConfigPath)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

// DSN returns the database DSN, honoring both config spellings.
func (c Config) DSN() (string, error) {
	if dsn := strings.TrimSpace(c.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(c.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

func applyEnvOverrides(cfg *Config) {
	if portRaw := strings.TrimSpace(os.Getenv(EnvPort)); portRaw != "" {
		if port, errParse := strconv.Atoi(portRaw); errParse == nil && port > 0 {
			cfg.Port = port
		}
	}
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		cfg.JWT.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			cfg.JWT.Expiry = expiry
		}
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		cfg.Redis.Addr = addr
	}
	if key := strings.TrimSpace(os.Getenv(EnvBrevoAPIKey)); key != "" {
		cfg.Brevo.APIKey = key
	}
	if sender := strings.TrimSpace(os.Getenv(EnvBrevoSender)); sender != "" {
		cfg.Brevo.SenderEmail = sender
	}
	if key := strings.TrimSpace(os.Getenv(EnvGroqAPIKey)); key != "" {
		cfg.Groq.APIKey = key
	}
	if model := strings.TrimSpace(os.Getenv(EnvGroqModel)); model != "" {
		cfg.Groq.Model = model
	}
	if key := strings.TrimSpace(os.Getenv(EnvMirrorAPIKey)); key != "" {
		cfg.Mirror.APIKey = key
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = defaultPort
	}
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = defaultJWTExpiry
	}
	if cfg.OTP.Expiry <= 0 {
		cfg.OTP.Expiry = defaultOTPExpiry
	}
	if cfg.OTP.SendsPerMinute <= 0 {
		cfg.OTP.SendsPerMinute = defaultOTPBurst
	}
	if strings.TrimSpace(cfg.Groq.Model) == "" {
		cfg.Groq.Model = defaultGroqModel
	}
	if strings.TrimSpace(cfg.Redis.Prefix) == "" {
		cfg.Redis.Prefix = "companion"
	}
}
