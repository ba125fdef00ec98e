package cachewire

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// FileConfig is the YAML form of client and cache-policy configuration.
// Durations are in milliseconds to match external configuration conventions.
type FileConfig struct {
	BaseURL       string  `yaml:"base_url"`
	HealthPath    string  `yaml:"health_path"`
	TimeoutMillis int     `yaml:"timeout_ms"`
	RetryAttempts int     `yaml:"retry_attempts"`
	BaseDelayMs   int     `yaml:"base_delay_ms"`
	MaxDelayMs    int     `yaml:"max_delay_ms"`
	Jitter        float64 `yaml:"jitter"`

	CachingEnabled *bool  `yaml:"caching_enabled"`
	CacheName      string `yaml:"cache_name"`

	RateLimit *RateLimitConfig `yaml:"rate_limit"`

	CircuitBreaker *CircuitBreakerFileConfig `yaml:"circuit_breaker"`

	Caches []CachePolicyConfig `yaml:"caches"`
}

// RateLimitConfig configures the token bucket.
type RateLimitConfig struct {
	Capacity int     `yaml:"capacity"`
	Rate     float64 `yaml:"rate"` // tokens per second
}

// CircuitBreakerFileConfig configures the circuit breaker.
type CircuitBreakerFileConfig struct {
	FailureThreshold  int `yaml:"failure_threshold"`
	RecoveryTimeoutMs int `yaml:"recovery_timeout_ms"`
	SuccessThreshold  int `yaml:"success_threshold"`
}

// CachePolicyConfig declares one named cache policy to register.
type CachePolicyConfig struct {
	Name           string `yaml:"name"`
	MaxEntries     int    `yaml:"max_entries"`
	TTLMillis      int    `yaml:"ttl_ms"`
	SizeLimitBytes int64  `yaml:"size_limit_bytes"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// Options converts the file config into client options. Zero-valued fields
// are skipped so the client's defaults apply.
func (fc *FileConfig) Options() []Option {
	var opts []Option

	if fc.BaseURL != "" {
		opts = append(opts, WithBaseURL(fc.BaseURL))
	}
	if fc.HealthPath != "" {
		opts = append(opts, WithHealthPath(fc.HealthPath))
	}
	if fc.TimeoutMillis > 0 {
		opts = append(opts, WithTimeout(time.Duration(fc.TimeoutMillis)*time.Millisecond))
	}
	if fc.RetryAttempts > 0 {
		opts = append(opts, WithRetryAttempts(fc.RetryAttempts))
	}
	if fc.BaseDelayMs > 0 {
		opts = append(opts, WithBaseDelay(time.Duration(fc.BaseDelayMs)*time.Millisecond))
	}
	if fc.MaxDelayMs > 0 {
		opts = append(opts, WithMaxDelay(time.Duration(fc.MaxDelayMs)*time.Millisecond))
	}
	if fc.Jitter > 0 {
		opts = append(opts, WithJitter(fc.Jitter))
	}
	if fc.CachingEnabled != nil && !*fc.CachingEnabled {
		opts = append(opts, WithCachingDisabled())
	}
	if fc.CacheName != "" {
		opts = append(opts, WithCacheName(fc.CacheName))
	}
	if fc.RateLimit != nil {
		opts = append(opts, WithRateLimiter(fc.RateLimit.Capacity, fc.RateLimit.Rate))
	}
	if fc.CircuitBreaker != nil {
		opts = append(opts, WithCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: fc.CircuitBreaker.FailureThreshold,
			RecoveryTimeout:  time.Duration(fc.CircuitBreaker.RecoveryTimeoutMs) * time.Millisecond,
			SuccessThreshold: fc.CircuitBreaker.SuccessThreshold,
		}))
	}

	return opts
}

// RegisterCaches creates the declared cache policies in the registry.
// Policies for names that already exist are no-ops (config is creation-time
// only).
func (fc *FileConfig) RegisterCaches(registry *Registry) {
	for _, policy := range fc.Caches {
		registry.GetOrCreate(policy.Name, CacheConfig[string, any]{
			MaxEntries: policy.MaxEntries,
			TTL:        time.Duration(policy.TTLMillis) * time.Millisecond,
			SizeLimit:  policy.SizeLimitBytes,
		})
	}
}
