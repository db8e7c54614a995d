package retry

import (
	"fmt"
	"time"

	"github.com/vietddude/cachekit/internal/core/clock"
)

// Strategy names accepted in configuration.
const (
	StrategyFixedCount   = "fixed_count"
	StrategyFixedTimeout = "fixed_timeout"
	StrategyExponential  = "exponential"
)

// maxFixedCountAttempts caps zero-delay retries; more than this against an
// unavailable backend is a retry storm, not resilience.
const maxFixedCountAttempts = 10

// Config selects and tunes the unary retry strategy.
type Config struct {
	Strategy string `yaml:"strategy"`

	// fixed_count, exponential (0 = deadline only)
	MaxAttempts int `yaml:"max_attempts"`

	// fixed_timeout
	RetryDelay                  time.Duration `yaml:"retry_delay"`
	Jitter                      float64       `yaml:"jitter"`
	ResponseDataReceivedTimeout time.Duration `yaml:"response_data_received_timeout"`

	// exponential
	InitialDelay time.Duration `yaml:"initial_delay"`
	GrowthFactor float64       `yaml:"growth_factor"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
}

// DefaultConfig matches the fixed-count strategy with three immediate retries.
func DefaultConfig() Config {
	return Config{
		Strategy:                    StrategyFixedCount,
		MaxAttempts:                 3,
		RetryDelay:                  DefaultRetryDelay,
		Jitter:                      DefaultJitter,
		ResponseDataReceivedTimeout: DefaultResponseDataReceivedTO,
		InitialDelay:                DefaultInitialDelay,
		GrowthFactor:                DefaultGrowthFactor,
		MaxBackoff:                  DefaultMaxBackoff,
	}
}

// ApplyDefaults fills zero-valued fields from DefaultConfig.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Strategy == "" {
		c.Strategy = d.Strategy
		if c.MaxAttempts == 0 {
			c.MaxAttempts = d.MaxAttempts
		}
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.Jitter == 0 {
		c.Jitter = d.Jitter
	}
	if c.ResponseDataReceivedTimeout == 0 {
		c.ResponseDataReceivedTimeout = d.ResponseDataReceivedTimeout
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.GrowthFactor == 0 {
		c.GrowthFactor = d.GrowthFactor
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = d.MaxBackoff
	}
}

// Validate checks the settings of the selected strategy.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyFixedCount:
		if c.MaxAttempts < 0 {
			return fmt.Errorf("max_attempts must not be negative")
		}
		if c.MaxAttempts > maxFixedCountAttempts {
			return fmt.Errorf("max_attempts %d too high for zero-delay retries (max %d); use %q instead",
				c.MaxAttempts, maxFixedCountAttempts, StrategyExponential)
		}
	case StrategyFixedTimeout:
		if c.RetryDelay < 0 {
			return fmt.Errorf("retry_delay must not be negative")
		}
		if c.Jitter < 0 || c.Jitter >= 1 {
			return fmt.Errorf("jitter must be in [0, 1), got %f", c.Jitter)
		}
		if c.ResponseDataReceivedTimeout <= 0 {
			return fmt.Errorf("response_data_received_timeout must be greater than zero")
		}
	case StrategyExponential:
		if c.InitialDelay <= 0 {
			return fmt.Errorf("initial_delay must be greater than zero")
		}
		if c.MaxBackoff <= 0 {
			return fmt.Errorf("max_backoff must be greater than zero")
		}
		if c.InitialDelay > c.MaxBackoff {
			return fmt.Errorf("initial_delay must not exceed max_backoff")
		}
		if c.GrowthFactor < 1.0 {
			return fmt.Errorf("growth_factor must be at least 1.0")
		}
		if c.MaxAttempts < 0 {
			return fmt.Errorf("max_attempts must not be negative")
		}
	default:
		return fmt.Errorf("unknown retry strategy %q", c.Strategy)
	}
	return nil
}

// Build constructs the configured strategy. A nil eligibility uses DefaultEligibility.
func (c Config) Build(clk clock.Clock, e EligibilityStrategy) (Strategy, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.Real{}
	}
	e = eligibility(e)

	switch c.Strategy {
	case StrategyFixedTimeout:
		return &FixedTimeout{
			RetryDelay:                  c.RetryDelay,
			Jitter:                      c.Jitter,
			ResponseDataReceivedTimeout: c.ResponseDataReceivedTimeout,
			Eligibility:                 e,
			Clock:                       clk,
		}, nil
	case StrategyExponential:
		return &ExponentialBackoff{
			InitialDelay: c.InitialDelay,
			GrowthFactor: c.GrowthFactor,
			MaxBackoff:   c.MaxBackoff,
			MaxAttempts:  c.MaxAttempts,
			Eligibility:  e,
			Clock:        clk,
		}, nil
	default:
		return &FixedCount{MaxAttempts: c.MaxAttempts, Eligibility: e, Clock: clk}, nil
	}
}

func (c Config) String() string {
	switch c.Strategy {
	case StrategyFixedTimeout:
		return fmt.Sprintf("Strategy=%s, RetryDelay=%s, Jitter=%.2f, ResponseDataReceivedTimeout=%s",
			c.Strategy, c.RetryDelay, c.Jitter, c.ResponseDataReceivedTimeout)
	case StrategyExponential:
		return fmt.Sprintf("Strategy=%s, InitialDelay=%s, GrowthFactor=%.2f, MaxBackoff=%s, MaxAttempts=%d",
			c.Strategy, c.InitialDelay, c.GrowthFactor, c.MaxBackoff, c.MaxAttempts)
	default:
		return fmt.Sprintf("Strategy=%s, MaxAttempts=%d", c.Strategy, c.MaxAttempts)
	}
}
