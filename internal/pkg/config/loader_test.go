package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// LoadEnvString
// ============================================================================

func TestLoadEnvString_WithValue(t *testing.T) {
	t.Setenv("TEST_STRING", "custom_value")

	result := LoadEnvString("TEST_STRING", "default_value")

	assert.Equal(t, "custom_value", result)
}

func TestLoadEnvString_WithoutValue(t *testing.T) {
	result := LoadEnvString("TEST_STRING", "default_value")

	assert.Equal(t, "default_value", result)
}

func TestLoadEnvString_EmptyString(t *testing.T) {
	t.Setenv("TEST_STRING", "")

	result := LoadEnvString("TEST_STRING", "default_value")

	// Empty string should use default
	assert.Equal(t, "default_value", result)
}

// ============================================================================
// LoadEnvWithFallback
// ============================================================================

func TestLoadEnvWithFallback_WithValidValue(t *testing.T) {
	t.Setenv("TEST_CRON", "0 6 * * *")

	result := LoadEnvWithFallback("TEST_CRON", "*/10 * * * *", ValidateCronSchedule)

	assert.Equal(t, "0 6 * * *", result.Value)
	assert.Empty(t, result.Warnings)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvWithFallback_WithoutValue(t *testing.T) {
	result := LoadEnvWithFallback("TEST_CRON", "*/10 * * * *", ValidateCronSchedule)

	assert.Equal(t, "*/10 * * * *", result.Value)
	assert.Empty(t, result.Warnings)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvWithFallback_InvalidValue(t *testing.T) {
	t.Setenv("TEST_CRON", "not a cron line")

	result := LoadEnvWithFallback("TEST_CRON", "*/10 * * * *", ValidateCronSchedule)

	assert.Equal(t, "*/10 * * * *", result.Value)
	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "TEST_CRON")
	assert.True(t, result.FallbackApplied)
}

func TestLoadEnvWithFallback_NoValidator(t *testing.T) {
	t.Setenv("TEST_STRING", "any_value")

	result := LoadEnvWithFallback("TEST_STRING", "default", nil)

	assert.Equal(t, "any_value", result.Value)
	assert.False(t, result.FallbackApplied)
}

// ============================================================================
// LoadEnvDuration
// ============================================================================

func TestLoadEnvDuration_WithValidValue(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "45s")

	result := LoadEnvDuration("TEST_TIMEOUT", 30*time.Second, ValidatePositiveDuration)

	assert.Equal(t, 45*time.Second, result.Value)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvDuration_ParseError(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "forty five seconds")

	result := LoadEnvDuration("TEST_TIMEOUT", 30*time.Second, ValidatePositiveDuration)

	assert.Equal(t, 30*time.Second, result.Value)
	assert.True(t, result.FallbackApplied)
	assert.Len(t, result.Warnings, 1)
}

func TestLoadEnvDuration_ValidationError(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "-5s")

	result := LoadEnvDuration("TEST_TIMEOUT", 30*time.Second, ValidatePositiveDuration)

	assert.Equal(t, 30*time.Second, result.Value)
	assert.True(t, result.FallbackApplied)
}

func TestLoadEnvDuration_WithoutValue(t *testing.T) {
	result := LoadEnvDuration("TEST_TIMEOUT", 30*time.Second, ValidatePositiveDuration)

	assert.Equal(t, 30*time.Second, result.Value)
	assert.Empty(t, result.Warnings)
}

// ============================================================================
// LoadEnvInt
// ============================================================================

func TestLoadEnvInt_WithValidValue(t *testing.T) {
	t.Setenv("TEST_WORKERS", "8")

	result := LoadEnvInt("TEST_WORKERS", 4, func(v int) error { return ValidateIntRange(v, 1, 32) })

	assert.Equal(t, 8, result.Value)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvInt_ParseError(t *testing.T) {
	t.Setenv("TEST_WORKERS", "eight")

	result := LoadEnvInt("TEST_WORKERS", 4, nil)

	assert.Equal(t, 4, result.Value)
	assert.True(t, result.FallbackApplied)
	assert.Contains(t, result.Warnings[0], "invalid integer format")
}

func TestLoadEnvInt_OutOfRange(t *testing.T) {
	t.Setenv("TEST_WORKERS", "100")

	result := LoadEnvInt("TEST_WORKERS", 4, func(v int) error { return ValidateIntRange(v, 1, 32) })

	assert.Equal(t, 4, result.Value)
	assert.True(t, result.FallbackApplied)
}

// ============================================================================
// LoadEnvFloat
// ============================================================================

func TestLoadEnvFloat_WithValidValue(t *testing.T) {
	t.Setenv("TEST_THRESHOLD", "0.85")

	result := LoadEnvFloat("TEST_THRESHOLD", 0.8, func(v float64) error { return ValidateFloatRange(v, 0, 1) })

	assert.Equal(t, 0.85, result.Value)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvFloat_ParseError(t *testing.T) {
	t.Setenv("TEST_THRESHOLD", "high")

	result := LoadEnvFloat("TEST_THRESHOLD", 0.8, nil)

	assert.Equal(t, 0.8, result.Value)
	assert.True(t, result.FallbackApplied)
	assert.Contains(t, result.Warnings[0], "invalid float format")
}

func TestLoadEnvFloat_OutOfRange(t *testing.T) {
	t.Setenv("TEST_THRESHOLD", "1.5")

	result := LoadEnvFloat("TEST_THRESHOLD", 0.8, func(v float64) error { return ValidateFloatRange(v, 0, 1) })

	assert.Equal(t, 0.8, result.Value)
	assert.True(t, result.FallbackApplied)
}

func TestLoadEnvFloat_WithoutValue(t *testing.T) {
	result := LoadEnvFloat("TEST_THRESHOLD", 0.8, nil)

	assert.Equal(t, 0.8, result.Value)
	assert.Empty(t, result.Warnings)
}

// ============================================================================
// LoadEnvBool
// ============================================================================

func TestLoadEnvBool_TrueValues(t *testing.T) {
	for _, v := range []string{"1", "t", "T", "true", "TRUE", "True"} {
		t.Setenv("TEST_FLAG", v)

		result := LoadEnvBool("TEST_FLAG", false)

		assert.Equal(t, true, result.Value, "input %q", v)
		assert.False(t, result.FallbackApplied)
	}
}

func TestLoadEnvBool_FalseValues(t *testing.T) {
	for _, v := range []string{"0", "f", "F", "false", "FALSE", "False"} {
		t.Setenv("TEST_FLAG", v)

		result := LoadEnvBool("TEST_FLAG", true)

		assert.Equal(t, false, result.Value, "input %q", v)
		assert.False(t, result.FallbackApplied)
	}
}

func TestLoadEnvBool_InvalidValue(t *testing.T) {
	t.Setenv("TEST_FLAG", "yes")

	result := LoadEnvBool("TEST_FLAG", true)

	assert.Equal(t, true, result.Value)
	assert.True(t, result.FallbackApplied)
	assert.Len(t, result.Warnings, 1)
}

func TestLoadEnvBool_WithoutValue(t *testing.T) {
	result := LoadEnvBool("TEST_FLAG", true)

	assert.Equal(t, true, result.Value)
	assert.Empty(t, result.Warnings)
}
