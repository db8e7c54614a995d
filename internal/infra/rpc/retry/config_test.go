package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Validate())
	})

	t.Run("UnknownStrategy", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Strategy = "linear"
		require.ErrorContains(t, cfg.Validate(), "unknown retry strategy")
	})

	t.Run("FixedCountTooManyZeroDelayRetries", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxAttempts = 50
		require.ErrorContains(t, cfg.Validate(), "too high for zero-delay retries")
	})

	t.Run("FixedTimeoutJitter", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Strategy = StrategyFixedTimeout
		cfg.Jitter = 1.5
		require.ErrorContains(t, cfg.Validate(), "jitter")
	})

	t.Run("ExponentialInitialAboveMax", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Strategy = StrategyExponential
		cfg.InitialDelay = 10 * time.Second
		cfg.MaxBackoff = time.Second
		require.ErrorContains(t, cfg.Validate(), "initial_delay")
	})

	t.Run("ExponentialGrowth", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Strategy = StrategyExponential
		cfg.GrowthFactor = 0.5
		require.ErrorContains(t, cfg.Validate(), "growth_factor")
	})
}

func TestConfig_Build(t *testing.T) {
	cfg := DefaultConfig()

	s, err := cfg.Build(nil, nil)
	require.NoError(t, err)
	require.IsType(t, &FixedCount{}, s)

	cfg.Strategy = StrategyFixedTimeout
	s, err = cfg.Build(nil, nil)
	require.NoError(t, err)
	ft, ok := s.(*FixedTimeout)
	require.True(t, ok)
	require.Equal(t, DefaultResponseDataReceivedTO, ft.AttemptTimeout())

	cfg.Strategy = StrategyExponential
	s, err = cfg.Build(nil, SubscriptionEligibility{})
	require.NoError(t, err)
	eb, ok := s.(*ExponentialBackoff)
	require.True(t, ok)
	require.Equal(t, SubscriptionEligibility{}, eb.Eligibility)
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Strategy: StrategyExponential, InitialDelay: 50 * time.Millisecond}
	cfg.ApplyDefaults()

	require.Equal(t, 50*time.Millisecond, cfg.InitialDelay)
	require.Equal(t, DefaultGrowthFactor, cfg.GrowthFactor)
	require.Equal(t, DefaultMaxBackoff, cfg.MaxBackoff)
	require.Zero(t, cfg.MaxAttempts)

	empty := Config{}
	empty.ApplyDefaults()
	require.Equal(t, StrategyFixedCount, empty.Strategy)
	require.Equal(t, 3, empty.MaxAttempts)
}
