package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment names read by Load.
const (
	EnvPrefix  = "FIGHTLENS_"
	EnvConfig  = "FIGHTLENS_CONFIG"
	EnvDotFile = "FIGHTLENS_ENV_FILE"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if FIGHTLENS_CONFIG is set
//  3. env (prefix FIGHTLENS_), after loading .env into the process
//     environment without overriding variables already set
func Load(_ context.Context) (*Config, error) {
	base := New()

	dotFile := os.Getenv(EnvDotFile)
	if dotFile == "" {
		dotFile = ".env"
	}
	if err := godotenv.Load(dotFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, dotFile, err)
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// FIGHTLENS_MONGO_URL -> mongo_url (flat keys, underscores preserved)
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// The file path and dotenv location are loader inputs, not settings.
	k.Delete("config")
	k.Delete("env_file")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	if c.Addr == "" {
		add("addr must not be empty")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		add("log_format must be text or json, got %q", c.LogFormat)
	}

	switch c.StorageBackend {
	case BackendMongo:
		if c.MongoURL == "" || c.MongoDatabase == "" {
			add("mongo_url and mongo_database are required for the mongo backend")
		}
	case BackendMemory:
	default:
		add("storage_backend must be mongo or memory, got %q", c.StorageBackend)
	}

	switch c.AccountBackend {
	case BackendMongo:
		if c.StorageBackend != BackendMongo {
			add("account_backend mongo needs storage_backend mongo")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			add("redis_addr is required for the redis account backend")
		}
		if strings.Count(c.RedisKeyPattern, "%s") != 1 {
			add("redis_key_pattern must contain one %%s")
		}
	case BackendStatic:
	default:
		add("account_backend must be mongo, redis or static, got %q", c.AccountBackend)
	}

	if c.AnticheatSchedule == "" || c.FactionSchedule == "" {
		add("schedules must not be empty")
	}
	if c.FactionDelayMS < 0 {
		add("faction_delay_ms must not be negative")
	}
	if c.MinEvents < 0 {
		add("min_events must not be negative")
	}
	if c.ClusterGapMinutes <= 0 || c.ClusterMinMembers <= 0 || c.ClusterRecentLimit <= 0 || c.ClusterMaxAttempts <= 0 {
		add("cluster settings must be positive")
	}
	for i := 1; i < len(c.MetricsBucketsMS); i++ {
		if c.MetricsBucketsMS[i] <= c.MetricsBucketsMS[i-1] {
			add("metrics_buckets_ms must be strictly increasing")
			break
		}
	}
	if _, err := c.WeaponTable(); err != nil {
		add("%v", err)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
