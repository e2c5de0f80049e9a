package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates every tunable of the scheduling core.
type Config struct {
	Scheduler SchedulerConfig
	Redis     RedisConfig
	Metrics   MetricsConfig
	LogLevel  string
}

// SchedulerConfig mirrors spec.md §3 "Configuration".
type SchedulerConfig struct {
	WorkerStackSize  int // metadata only; Go goroutine stacks are runtime-managed
	WorkerLimit      int
	QueueLimit       int
	TimerResolution  time.Duration
	SpecializedPools []PoolSpec
}

// PoolSpec describes one specialized-pool entry, out of scope for the
// main core per spec.md §3; coresched.New builds one single-worker pool
// per entry and routes tasks to it by type tag.
type PoolSpec struct {
	TaskTypeTag string
	StackSize   int
}

// RedisConfig configures the optional Restorable backing store used by
// TaskPool.Restore / ThrottledTaskPool (see internal/poolstore).
// Disabled by default: a standalone run of the core has nothing worth
// persisting across a restart unless a driving application opts in.
type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Validate enforces the worker/queue limit invariant from spec.md §3 and §8:
// "queue_limit < worker_limit: configuration rejected."
func (c SchedulerConfig) Validate() error {
	if c.WorkerLimit <= 0 {
		return fmt.Errorf("config: worker_limit must be positive, got %d", c.WorkerLimit)
	}
	if c.QueueLimit < c.WorkerLimit {
		return fmt.Errorf("config: queue_limit (%d) must be >= worker_limit (%d)", c.QueueLimit, c.WorkerLimit)
	}
	return nil
}

// Load reads configuration from ./config.yaml (or /etc/corosched), falling
// back to defaults, with CORE_-prefixed environment variable overrides.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/corosched")

	setDefaults()

	viper.SetEnvPrefix("CORE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Scheduler.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("scheduler.workerstacksize", 102400)
	viper.SetDefault("scheduler.workerlimit", 5)
	viper.SetDefault("scheduler.queuelimit", 10)
	viper.SetDefault("scheduler.timerresolution", time.Millisecond)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolsize", 20)
	viper.SetDefault("redis.minidleconns", 2)
	viper.SetDefault("redis.maxretries", 3)
	viper.SetDefault("redis.dialtimeout", 5*time.Second)
	viper.SetDefault("redis.readtimeout", 3*time.Second)
	viper.SetDefault("redis.writetimeout", 3*time.Second)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("loglevel", "info")
}
