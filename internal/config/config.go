package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by the loader. Environment values
// always win over the config file.
const (
	EnvConfigPath      = "CONFIG_PATH"
	EnvDBConnection    = "DB_CONNECTION"
	EnvJWTSecret       = "JWT_SECRET"
	EnvJWTExpiry       = "JWT_EXPIRY"
	EnvRequestsPerHour = "REQUESTS_PER_HOUR"
	EnvRequestsPerDay  = "REQUESTS_PER_DAY"
	EnvSkipCSRFInDev   = "SKIP_CSRF_IN_DEV"
	EnvDeployMode      = "DEPLOY_MODE"
	EnvProduction      = "PRODUCTION"
	EnvRedisAddr       = "REDIS_ADDR"
	EnvRedisPassword   = "REDIS_PASSWORD"
	EnvRedisDB         = "REDIS_DB"
	EnvRedisPrefix     = "REDIS_PREFIX"
)

// Deployment modes selecting the rate limiter backend.
const (
	// ModeLocal uses the in-process counter; valid for single-instance
	// deployments only.
	ModeLocal = "local"
	// ModeShared uses the database-backed window store.
	ModeShared = "shared"
	// ModeRedis uses the Redis-backed window counters.
	ModeRedis = "redis"
)

// Defaults applied when neither environment nor file provide a value.
const (
	// DefaultRequestsPerHour is the hourly chat quota per identity.
	DefaultRequestsPerHour = 20
	// DefaultRequestsPerDay is the advisory daily ceiling. It is parsed and
	// reported but not enforced by the gating path.
	DefaultRequestsPerDay = 100
	// DefaultRedisPrefix is the fallback Redis key prefix.
	DefaultRedisPrefix = "cg:rl"

	defaultJWTExpiry = 30 * 24 * time.Hour
)

// RedisConfig holds Redis connection settings for the shared limiter.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// JWTConfig holds session token secret and expiry settings.
type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// Config holds resolved gating configuration values.
type Config struct {
	ConfigPath string

	DatabaseDSN string

	// DeployMode selects the rate limiter backend at construction time.
	DeployMode string

	RequestsPerHour int
	RequestsPerDay  int

	// SkipCSRFInDev disables CSRF validation. Explicit, non-production
	// opt-in; never a silent default.
	SkipCSRFInDev bool
	Production    bool

	Redis RedisConfig
	JWT   JWTConfig
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

// fileConfig maps the YAML fields read from the config file. Durations
// are strings here; yaml.v3 has no native time.Duration decoding.
type fileConfig struct {
	DatabaseDSN     string        `yaml:"database-dsn"`
	DeployMode      string        `yaml:"deploy-mode"`
	RequestsPerHour *int          `yaml:"requests-per-hour"`
	RequestsPerDay  *int          `yaml:"requests-per-day"`
	SkipCSRFInDev   bool          `yaml:"skip-csrf-in-dev"`
	Production      bool          `yaml:"production"`
	Redis           RedisConfig   `yaml:"redis"`
	JWT             fileJWTConfig `yaml:"jwt"`
}

type fileJWTConfig struct {
	Secret string `yaml:"secret"`
	Expiry string `yaml:"expiry"`
}

// Load reads the config file when present and applies environment
// overrides, defaults, and validation.
func Load(configPath string) (Config, error) {
	configPath = ResolveConfigPath(configPath)

	cfg := Config{
		ConfigPath:      configPath,
		DeployMode:      ModeLocal,
		RequestsPerHour: DefaultRequestsPerHour,
		RequestsPerDay:  DefaultRequestsPerDay,
		Redis:           RedisConfig{Prefix: DefaultRedisPrefix},
		JWT:             JWTConfig{Expiry: defaultJWTExpiry},
	}

	if data, errRead := os.ReadFile(configPath); errRead == nil {
		var file fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &file); errUnmarshal != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", configPath, errUnmarshal)
		}
		applyFile(&cfg, file)
	}

	applyEnv(&cfg)

	if cfg.RequestsPerHour < 0 {
		cfg.RequestsPerHour = 0
	}
	if cfg.RequestsPerDay < 0 {
		cfg.RequestsPerDay = 0
	}
	if cfg.Redis.DB < 0 {
		cfg.Redis.DB = 0
	}
	if strings.TrimSpace(cfg.Redis.Prefix) == "" {
		cfg.Redis.Prefix = DefaultRedisPrefix
	}
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = defaultJWTExpiry
	}

	switch cfg.DeployMode {
	case ModeLocal, ModeShared, ModeRedis:
	default:
		return Config{}, fmt.Errorf("config: unknown deploy mode: %q", cfg.DeployMode)
	}
	return cfg, nil
}

func applyFile(cfg *Config, file fileConfig) {
	if dsn := strings.TrimSpace(file.DatabaseDSN); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if mode := strings.TrimSpace(file.DeployMode); mode != "" {
		cfg.DeployMode = mode
	}
	if file.RequestsPerHour != nil {
		cfg.RequestsPerHour = *file.RequestsPerHour
	}
	if file.RequestsPerDay != nil {
		cfg.RequestsPerDay = *file.RequestsPerDay
	}
	cfg.SkipCSRFInDev = file.SkipCSRFInDev
	cfg.Production = file.Production
	if addr := strings.TrimSpace(file.Redis.Addr); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := strings.TrimSpace(file.Redis.Password); password != "" {
		cfg.Redis.Password = password
	}
	if file.Redis.DB > 0 {
		cfg.Redis.DB = file.Redis.DB
	}
	if prefix := strings.TrimSpace(file.Redis.Prefix); prefix != "" {
		cfg.Redis.Prefix = prefix
	}
	if secret := strings.TrimSpace(file.JWT.Secret); secret != "" {
		cfg.JWT.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(file.JWT.Expiry); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			cfg.JWT.Expiry = expiry
		}
	}
}

func applyEnv(cfg *Config) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if mode := strings.TrimSpace(os.Getenv(EnvDeployMode)); mode != "" {
		cfg.DeployMode = mode
	}
	if v, ok := envInt(EnvRequestsPerHour); ok {
		cfg.RequestsPerHour = v
	}
	if v, ok := envInt(EnvRequestsPerDay); ok {
		cfg.RequestsPerDay = v
	}
	if v, ok := envBool(EnvSkipCSRFInDev); ok {
		cfg.SkipCSRFInDev = v
	}
	if v, ok := envBool(EnvProduction); ok {
		cfg.Production = v
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := strings.TrimSpace(os.Getenv(EnvRedisPassword)); password != "" {
		cfg.Redis.Password = password
	}
	if v, ok := envInt(EnvRedisDB); ok {
		cfg.Redis.DB = v
	}
	if prefix := strings.TrimSpace(os.Getenv(EnvRedisPrefix)); prefix != "" {
		cfg.Redis.Prefix = prefix
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		cfg.JWT.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			cfg.JWT.Expiry = expiry
		}
	}
}

func envInt(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	v, errParse := strconv.Atoi(raw)
	if errParse != nil {
		return 0, false
	}
	return v, true
}

func envBool(name string) (bool, bool) {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	if raw == "" {
		return false, false
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
