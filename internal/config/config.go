// Package config provides the core's typed, immutable configuration,
// parsed once from an optional YAML file plus environment-variable
// overrides. A reload, if ever required, replaces the whole *CoreConfig
// atomically rather than mutating fields in place.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AnalysisConfig controls the orchestrator (C12).
type AnalysisConfig struct {
	MaxFileSize           int64         `yaml:"max_file_size" env:"ANALYSIS_MAX_FILE_SIZE"`
	AnalysisTimeout       time.Duration `yaml:"analysis_timeout" env:"ANALYSIS_TIMEOUT"`
	MaxConcurrentAnalyses int           `yaml:"max_concurrent_analyses" env:"ANALYSIS_MAX_CONCURRENT"`
	EnableParallelAnalysis bool         `yaml:"enable_parallel_analysis" env:"ANALYSIS_ENABLE_PARALLEL"`
}

// CacheConfig controls the result cache (C2).
type CacheConfig struct {
	LocalCacheEnabled bool          `yaml:"local_cache_enabled" env:"CACHE_LOCAL_ENABLED"`
	CacheTTL          time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// ReputationConfig controls the reputation query layer (C3/C4/C5).
type ReputationConfig struct {
	RateLimitPerMinute      int           `yaml:"rate_limit_per_minute" env:"REPUTATION_RATE_LIMIT_PER_MINUTE"`
	CircuitBreakerThreshold int           `yaml:"circuit_breaker_threshold" env:"REPUTATION_CB_THRESHOLD"`
	CircuitBreakerTimeout   time.Duration `yaml:"circuit_breaker_timeout" env:"REPUTATION_CB_TIMEOUT"`
	RetryAttempts           int           `yaml:"retry_attempts" env:"REPUTATION_RETRY_ATTEMPTS"`
	RetryDelay              time.Duration `yaml:"retry_delay" env:"REPUTATION_RETRY_DELAY"`
	MaxConcurrentRequests   int           `yaml:"max_concurrent_requests" env:"REPUTATION_MAX_CONCURRENT"`
}

// StaticConfig controls the static engine (C6).
type StaticConfig struct {
	EntropyThreshold float64 `yaml:"entropy_threshold" env:"STATIC_ENTROPY_THRESHOLD"`
	MaxStringLength  int     `yaml:"max_string_length" env:"STATIC_MAX_STRING_LENGTH"`
	MinStringLength  int     `yaml:"min_string_length" env:"STATIC_MIN_STRING_LENGTH"`
}

// YaraConfig controls the YARA-style engine (C8).
type YaraConfig struct {
	RulesDirectory    string        `yaml:"rules_directory" env:"YARA_RULES_DIRECTORY"`
	TimeoutSeconds    time.Duration `yaml:"timeout_seconds" env:"YARA_TIMEOUT_SECONDS"`
	MaxMatchesPerRule int           `yaml:"max_matches_per_rule" env:"YARA_MAX_MATCHES_PER_RULE"`
}

// SchedulerConfig controls the scheduler/queue (C14).
type SchedulerConfig struct {
	Strategy           string        `yaml:"strategy" env:"SCHEDULER_STRATEGY"`
	MaxConcurrentJobs  int           `yaml:"max_concurrent_jobs" env:"SCHEDULER_MAX_CONCURRENT_JOBS"`
	JobTimeoutSeconds  time.Duration `yaml:"job_timeout_seconds" env:"SCHEDULER_JOB_TIMEOUT_SECONDS"`
	RetryDelaySeconds  time.Duration `yaml:"retry_delay_seconds" env:"SCHEDULER_RETRY_DELAY_SECONDS"`
	BatchSize          int           `yaml:"batch_size" env:"SCHEDULER_BATCH_SIZE"`
}

// LoggingConfig controls the ambient logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// CoreConfig is the top-level, immutable configuration for the analysis
// core (spec §6).
type CoreConfig struct {
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Cache      CacheConfig      `yaml:"cache"`
	Reputation ReputationConfig `yaml:"reputation"`
	Static     StaticConfig     `yaml:"static"`
	Yara       YaraConfig       `yaml:"yara"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Defaults returns a CoreConfig populated with the defaults named
// throughout spec §4/§6.
func Defaults() *CoreConfig {
	return &CoreConfig{
		Analysis: AnalysisConfig{
			MaxFileSize:            100 << 20, // 100 MiB
			AnalysisTimeout:        30 * time.Second,
			MaxConcurrentAnalyses:  10,
			EnableParallelAnalysis: true,
		},
		Cache: CacheConfig{
			LocalCacheEnabled: true,
			CacheTTL:          60 * time.Minute,
		},
		Reputation: ReputationConfig{
			RateLimitPerMinute:      60,
			CircuitBreakerThreshold: 5,
			CircuitBreakerTimeout:   300 * time.Second,
			RetryAttempts:           3,
			RetryDelay:              1 * time.Second,
			MaxConcurrentRequests:   10,
		},
		Static: StaticConfig{
			EntropyThreshold: 7.0,
			MaxStringLength:  256,
			MinStringLength:  4,
		},
		Yara: YaraConfig{
			RulesDirectory:    "rules",
			TimeoutSeconds:    5 * time.Second,
			MaxMatchesPerRule: 100,
		},
		Scheduler: SchedulerConfig{
			Strategy:          "weighted_priority",
			MaxConcurrentJobs: 10,
			JobTimeoutSeconds: 120 * time.Second,
			RetryDelaySeconds: 5 * time.Second,
			BatchSize:         50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads a CoreConfig: defaults, then an optional YAML file (path
// from CONFIG_FILE or "configs/config.yaml"), then environment overrides
// via envdecode. A reload calls Load again and swaps the returned
// pointer atomically at the call site; this package never mutates a
// *CoreConfig in place after Load returns.
func Load() (*CoreConfig, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		path = "configs/config.yaml"
	}
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *CoreConfig) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
