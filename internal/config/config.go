// Package config provides typed, viper-backed configuration for the
// Mirror Dissonance Oracle. Grounded on the teacher's internal/config
// package: a single Config struct bound via mapstructure tags, defaults
// set before unmarshal, and a Validate() gate before the config is
// handed to the rest of the process.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// Config is the Oracle's top-level configuration.
type Config struct {
	Provider Provider `mapstructure:"provider"`

	Cloud      CloudConfig      `mapstructure:"cloud"`
	Local      LocalConfig      `mapstructure:"local"`
	Decision   DecisionConfig   `mapstructure:"decision"`
	Nonce      NonceConfig      `mapstructure:"nonce"`
	Calibration CalibrationConfig `mapstructure:"calibration"`
	Evaluator  EvaluatorConfig  `mapstructure:"evaluator"`
	Reputation ReputationConfig `mapstructure:"reputation"`
	Redaction  RedactionConfig  `mapstructure:"redaction"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	App        AppConfig        `mapstructure:"app"`
}

// RedactionPatternConfig is one find/replace rule, bound from YAML/env.
type RedactionPatternConfig struct {
	Pattern     string `mapstructure:"pattern"`
	Replacement string `mapstructure:"replacement"`
}

// RedactionConfig holds the evidence-snippet redaction rules applied
// before a violation's message leaves the process.
type RedactionConfig struct {
	Patterns []RedactionPatternConfig `mapstructure:"patterns"`
}

// Provider mirrors adapter.Provider for mapstructure binding purposes;
// Config.AdapterProvider() converts it at the adapter-factory boundary.
type Provider string

// AdapterProvider converts the bound Provider string into adapter.Provider.
func (p Provider) AdapterProvider() adapter.Provider {
	return adapter.Provider(p)
}

// CloudConfig holds the resource identifiers shared by the AWS, GCP and
// OCI adapters. Not every field applies to every provider; unused
// fields are ignored by the factory for the selected provider.
type CloudConfig struct {
	Region                  string `mapstructure:"region"`
	Endpoint                string `mapstructure:"endpoint"`
	FPTableName             string `mapstructure:"fp_table_name"`
	ConsentTableName        string `mapstructure:"consent_table_name"`
	BlockCounterTableName   string `mapstructure:"block_counter_table_name"`
	CalibrationTableName    string `mapstructure:"calibration_table_name"`
	NonceParameterName      string `mapstructure:"nonce_parameter_name"`
	BaselineBucket          string `mapstructure:"baseline_bucket"`
	ProjectID               string `mapstructure:"project_id"`
	CompartmentID           string `mapstructure:"compartment_id"`
	ObjectStorageNamespace  string `mapstructure:"object_storage_namespace"`
	VaultID                 string `mapstructure:"vault_id"`
	VaultKeyID              string `mapstructure:"vault_key_id"`
	RetryMaxAttempts        int    `mapstructure:"retry_max_attempts"`
}

// LocalConfig holds the local (file-backed) provider's settings.
type LocalConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// DecisionConfig holds policy/decision-layer knobs.
type DecisionConfig struct {
	StrictMode              bool `mapstructure:"strict_mode"`
	DryRun                  bool `mapstructure:"dry_run"`
	CircuitBreakerThreshold int64 `mapstructure:"circuit_breaker_threshold"`
}

// NonceConfig holds the nonce cache's TTL.
type NonceConfig struct {
	TTL time.Duration `mapstructure:"ttl_ms"`
}

// CalibrationConfig holds the Byzantine-filter and K-anonymity knobs.
type CalibrationConfig struct {
	ByzantineFilterPercentile float64 `mapstructure:"byzantine_filter_percentile"`
	ZScoreThreshold           float64 `mapstructure:"z_score_threshold"`
	KAnonymityThreshold       int     `mapstructure:"k_anonymity_threshold"`
}

// EvaluatorConfig holds the rule evaluator's concurrency and per-rule
// timeout knobs.
type EvaluatorConfig struct {
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	RuleTimeout    time.Duration `mapstructure:"rule_timeout"`
}

// ReputationConfig holds the external ReputationEngine HTTP client's
// connection settings.
type ReputationConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`

	// RateLimit caps outbound calls to the reputation engine at this
	// many requests per second; 0 (the default) disables limiting.
	// Burst allows short bursts above RateLimit before the limiter
	// starts blocking.
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

// CacheConfig holds the FP window read-through cache's knobs. RedisAddr
// empty means the Redis tier is skipped and only the in-process LRU is
// used.
type CacheConfig struct {
	LocalSize     int           `mapstructure:"local_size"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// LogConfig mirrors the teacher's log configuration, consumed by
// pkg/logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig holds the Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

// AppConfig holds process-identity metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// LoadConfig reads configuration from the given YAML file (if any),
// environment variables, and built-in defaults, in that precedence
// order, then validates the result.
func LoadConfig(configPath string) (*Config, error) {
	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")

		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("provider", string(adapter.ProviderLocal))

	viper.SetDefault("local.data_dir", ".test-data")
	viper.SetDefault("cloud.nonce_parameter_name", "oracle-nonce-v1")
	viper.SetDefault("cloud.retry_max_attempts", 3)

	viper.SetDefault("decision.strict_mode", false)
	viper.SetDefault("decision.dry_run", false)
	viper.SetDefault("decision.circuit_breaker_threshold", 100)

	viper.SetDefault("nonce.ttl_ms", "1h")

	viper.SetDefault("calibration.byzantine_filter_percentile", 0.2)
	viper.SetDefault("calibration.z_score_threshold", 3.0)
	viper.SetDefault("calibration.k_anonymity_threshold", 10)

	viper.SetDefault("evaluator.max_concurrency", 0) // 0 => runtime.NumCPU()
	viper.SetDefault("evaluator.rule_timeout", "10s")

	viper.SetDefault("reputation.base_url", "")
	viper.SetDefault("reputation.timeout", "5s")
	viper.SetDefault("reputation.rate_limit", 0)
	viper.SetDefault("reputation.burst", 1)

	viper.SetDefault("cache.local_size", 1000)
	viper.SetDefault("cache.redis_addr", "")
	viper.SetDefault("cache.redis_db", 0)
	viper.SetDefault("cache.ttl", "30s")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.port", 9090)

	viper.SetDefault("app.name", "dissonance-oracle")
	viper.SetDefault("app.version", "0.1.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)
}

// Validate checks the config is internally consistent and that the
// selected provider has the resource identifiers it needs.
func (c *Config) Validate() error {
	switch adapter.Provider(c.Provider) {
	case adapter.ProviderLocal:
		if c.Local.DataDir == "" {
			return fmt.Errorf("local provider requires local.data_dir")
		}
	case adapter.ProviderAWS, adapter.ProviderGCP, adapter.ProviderOracle:
		if c.Cloud.FPTableName == "" || c.Cloud.ConsentTableName == "" || c.Cloud.BlockCounterTableName == "" || c.Cloud.CalibrationTableName == "" {
			return fmt.Errorf("provider %q requires fp_table_name, consent_table_name, block_counter_table_name and calibration_table_name", c.Provider)
		}
		if c.Cloud.NonceParameterName == "" {
			return fmt.Errorf("provider %q requires cloud.nonce_parameter_name", c.Provider)
		}
		if c.Cloud.BaselineBucket == "" {
			return fmt.Errorf("provider %q requires cloud.baseline_bucket", c.Provider)
		}
		if adapter.Provider(c.Provider) == adapter.ProviderGCP && c.Cloud.ProjectID == "" {
			return fmt.Errorf("gcp provider requires cloud.project_id")
		}
		if adapter.Provider(c.Provider) == adapter.ProviderOracle {
			if c.Cloud.CompartmentID == "" {
				return fmt.Errorf("oracle (oci) provider requires cloud.compartment_id")
			}
			if c.Cloud.ObjectStorageNamespace == "" {
				return fmt.Errorf("oracle (oci) provider requires cloud.object_storage_namespace")
			}
			if c.Cloud.VaultID == "" || c.Cloud.VaultKeyID == "" {
				return fmt.Errorf("oracle (oci) provider requires cloud.vault_id and cloud.vault_key_id")
			}
		}
	default:
		return fmt.Errorf("invalid provider: %q (must be local, aws, gcp or oracle)", c.Provider)
	}

	if c.Decision.CircuitBreakerThreshold <= 0 {
		return fmt.Errorf("decision.circuit_breaker_threshold must be positive")
	}

	if c.Calibration.KAnonymityThreshold <= 0 {
		return fmt.Errorf("calibration.k_anonymity_threshold must be positive")
	}

	if c.Log.Level == "" {
		return fmt.Errorf("log level cannot be empty")
	}

	if c.App.Name == "" {
		return fmt.Errorf("app name cannot be empty")
	}

	return nil
}

// IsLocalProvider reports whether the configured provider is the
// in-process file-backed one.
func (c *Config) IsLocalProvider() bool {
	return adapter.Provider(c.Provider) == adapter.ProviderLocal
}

// RedactionPatterns converts the bound redaction config into the domain
// shape internal/redact consumes.
func (c *Config) RedactionPatterns() []domain.RedactionPattern {
	out := make([]domain.RedactionPattern, 0, len(c.Redaction.Patterns))
	for _, p := range c.Redaction.Patterns {
		out = append(out, domain.RedactionPattern{Pattern: p.Pattern, Replacement: p.Replacement})
	}
	return out
}
