// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat and match the koanf tags on Config.
// - Domain packages never import config; the accessors here translate it.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/okian/fightlens/internal/domain/aggregate"
	"github.com/okian/fightlens/internal/domain/cluster"
	"github.com/okian/fightlens/internal/domain/magic"
	"github.com/okian/fightlens/internal/domain/weapons"
	"github.com/okian/fightlens/pkg/metrics"
)

// Backend names.
const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendStatic = "static"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address for health and metrics.
	Addr string `koanf:"addr"`

	// StorageBackend is mongo or memory.
	StorageBackend string `koanf:"storage_backend"`
	MongoURL       string `koanf:"mongo_url"`
	MongoDatabase  string `koanf:"mongo_database"`
	MongoTimeoutMS int    `koanf:"mongo_timeout_ms"`

	// AccountBackend is mongo, redis or static.
	AccountBackend  string            `koanf:"account_backend"`
	RedisAddr       string            `koanf:"redis_addr"`
	RedisPassword   string            `koanf:"redis_password"`
	RedisDB         int               `koanf:"redis_db"`
	RedisKeyPattern string            `koanf:"redis_key_pattern"`
	AccountFactions map[string]string `koanf:"account_factions"`

	AlertAPIBase   string `koanf:"alert_api_base"`
	AlertAPIKey    string `koanf:"alert_api_key"`
	AlertTimeoutMS int    `koanf:"alert_timeout_ms"`
	AlertRetries   int    `koanf:"alert_retries"`

	// SentryDSN enables error reporting when set.
	SentryDSN string `koanf:"sentry_dsn"`

	MetricsEnabled   bool              `koanf:"metrics_enabled"`
	MetricsNamespace string            `koanf:"metrics_namespace"`
	MetricsSubsystem string            `koanf:"metrics_subsystem"`
	MetricsLabels    map[string]string `koanf:"metrics_labels"`
	// MetricsBucketsMS are the duration histogram buckets, strictly increasing.
	MetricsBucketsMS []float64 `koanf:"metrics_buckets_ms"`

	AnticheatSchedule string `koanf:"anticheat_schedule"`
	FactionSchedule   string `koanf:"faction_schedule"`
	FactionDelayMS    int    `koanf:"faction_delay_ms"`

	MinEvents                   int     `koanf:"min_events"`
	DistThreshold               float64 `koanf:"dist_threshold"`
	AngleThreshold              float64 `koanf:"angle_threshold"`
	BoneCenterThreshold         float64 `koanf:"bone_center_threshold"`
	AlignmentThreshold          float64 `koanf:"alignment_threshold"`
	MovingHitRateLimit          float64 `koanf:"moving_hit_rate_limit"`
	MovementDropLimit           float64 `koanf:"movement_drop_limit"`
	DamageStdDevLimit           float64 `koanf:"damage_stddev_limit"`
	DamageConsistencyMinSamples int     `koanf:"damage_consistency_min_samples"`

	MagicPairWindowMS    int64   `koanf:"magic_pair_window_ms"`
	MagicMinRun          int     `koanf:"magic_min_run"`
	MagicDamageTolerance float64 `koanf:"magic_damage_tolerance"`
	MagicMinDistanceSpan float64 `koanf:"magic_min_distance_span"`

	ClusterGapMinutes  int `koanf:"cluster_gap_minutes"`
	ClusterMinMembers  int `koanf:"cluster_min_members"`
	ClusterRecentLimit int `koanf:"cluster_recent_limit"`
	ClusterMaxAttempts int `koanf:"cluster_max_attempts"`

	// Alert thresholds for a single encounter.
	AlertHitRate       float64 `koanf:"alert_hit_rate"`
	AlertServerHitRate float64 `koanf:"alert_server_hit_rate"`
	AlertFlagCount     int     `koanf:"alert_flag_count"`

	// WeaponMaxDamage maps weapon hashes (as decimal strings) to max damage per hit.
	WeaponMaxDamage map[string]float64 `koanf:"weapon_max_damage"`
}

// New creates a Config with defaults.
func New() *Config {
	defaults := weapons.DefaultMaxDamage()
	table := make(map[string]float64, len(defaults))
	for hash, dmg := range defaults {
		table[strconv.FormatInt(hash, 10)] = dmg
	}
	magicDefaults := magic.DefaultParams()

	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":9080",

		StorageBackend: BackendMongo,
		MongoURL:       "mongodb://localhost:27017",
		MongoDatabase:  "fightlens",
		MongoTimeoutMS: 30_000,

		AccountBackend:  BackendMongo,
		RedisAddr:       "localhost:6379",
		RedisKeyPattern: "account:%s:faction",

		AlertTimeoutMS: 3_000,
		AlertRetries:   3,

		MetricsEnabled:   true,
		MetricsNamespace: "fightlens",
		MetricsSubsystem: "analyzer",

		AnticheatSchedule: "*/1 * * * *",
		FactionSchedule:   "*/1 * * * *",
		FactionDelayMS:    30_000,

		MinEvents:                   aggregate.DefaultMinEvents,
		DistThreshold:               aggregate.DefaultDistThreshold,
		AngleThreshold:              aggregate.DefaultAngleThreshold,
		BoneCenterThreshold:         aggregate.DefaultBoneCenterThreshold,
		AlignmentThreshold:          aggregate.DefaultAlignmentThreshold,
		MovingHitRateLimit:          aggregate.DefaultMovingHitRateLimit,
		MovementDropLimit:           aggregate.DefaultMovementDropLimit,
		DamageStdDevLimit:           aggregate.DefaultDamageStdDevLimit,
		DamageConsistencyMinSamples: aggregate.DefaultConsistencySamples,

		MagicPairWindowMS:    magicDefaults.PairWindowMS,
		MagicMinRun:          magicDefaults.MinRun,
		MagicDamageTolerance: magicDefaults.DamageTolerance,
		MagicMinDistanceSpan: magicDefaults.MinDistanceSpan,

		ClusterGapMinutes:  int(cluster.DefaultGap / time.Minute),
		ClusterMinMembers:  cluster.DefaultMinMembers,
		ClusterRecentLimit: cluster.DefaultRecentLimit,
		ClusterMaxAttempts: cluster.DefaultMaxAttempts,

		AlertHitRate:       0.35,
		AlertServerHitRate: 0.4,
		AlertFlagCount:     60,

		WeaponMaxDamage: table,
	}
}

// Thresholds returns the aggregator thresholds.
func (c *Config) Thresholds() aggregate.Thresholds {
	t := aggregate.DefaultThresholds()
	t.MinEvents = c.MinEvents
	t.DistThreshold = c.DistThreshold
	t.AngleThreshold = c.AngleThreshold
	t.BoneCenterThreshold = c.BoneCenterThreshold
	t.AlignmentThreshold = c.AlignmentThreshold
	t.MovingHitRateLimit = c.MovingHitRateLimit
	t.MovementDropLimit = c.MovementDropLimit
	t.DamageStdDevLimit = c.DamageStdDevLimit
	t.ConsistencySamples = c.DamageConsistencyMinSamples
	return t
}

// MagicParams returns the magic damage detector parameters.
func (c *Config) MagicParams() magic.Params {
	return magic.Params{
		PairWindowMS:    c.MagicPairWindowMS,
		MinRun:          c.MagicMinRun,
		DamageTolerance: c.MagicDamageTolerance,
		MinDistanceSpan: c.MagicMinDistanceSpan,
	}
}

// ClusterOptions returns the clusterer options.
func (c *Config) ClusterOptions() []cluster.Option {
	return []cluster.Option{
		cluster.WithGap(time.Duration(c.ClusterGapMinutes) * time.Minute),
		cluster.WithMinMembers(c.ClusterMinMembers),
		cluster.WithRecentLimit(c.ClusterRecentLimit),
		cluster.WithMaxAttempts(c.ClusterMaxAttempts),
	}
}

// WeaponTable parses the weapon damage table keys into weapon hashes.
func (c *Config) WeaponTable() (map[int64]float64, error) {
	out := make(map[int64]float64, len(c.WeaponMaxDamage))
	for key, dmg := range c.WeaponMaxDamage {
		hash, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("weapon_max_damage key %q is not a weapon hash: %w", key, err)
		}
		out[hash] = dmg
	}
	return out, nil
}

// MetricsOptions returns the options for metrics.Configure.
func (c *Config) MetricsOptions() []metrics.Option {
	return []metrics.Option{
		metrics.WithMetricsEnabled(c.MetricsEnabled),
		metrics.WithNamespace(c.MetricsNamespace),
		metrics.WithSubsystem(c.MetricsSubsystem),
		metrics.WithConstLabels(c.MetricsLabels),
		metrics.WithDurationBuckets(c.MetricsBucketsMS),
	}
}

// MongoTimeout bounds each store operation.
func (c *Config) MongoTimeout() time.Duration {
	return time.Duration(c.MongoTimeoutMS) * time.Millisecond
}

// AlertTimeout bounds each alert request.
func (c *Config) AlertTimeout() time.Duration {
	return time.Duration(c.AlertTimeoutMS) * time.Millisecond
}

// FactionDelay is waited after each faction tick.
func (c *Config) FactionDelay() time.Duration {
	return time.Duration(c.FactionDelayMS) * time.Millisecond
}
