package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConfigLoadResult reports how a single configuration value was resolved.
// Value holds the resolved value (the default when a fallback was applied),
// Warnings carries one message per fallback, and FallbackApplied tells the
// caller whether a set-but-invalid environment value was rejected.
//
// Every loader below returns this shape so schedules, budgets, pool sizes,
// and toggles all surface fallbacks the same way:
//
//	result := LoadEnvDuration("EXTRACT_RUN_BUDGET", 20*time.Minute, ValidatePositiveDuration)
//	for _, warning := range result.Warnings {
//	    log.Warn("Configuration warning: %s", warning)
//	}
//	budget := result.Value.(time.Duration)
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// resolved wraps a value accepted from the environment, or the default when
// the variable was unset. An unset variable is not a fallback and produces
// no warning.
func resolved(value interface{}) ConfigLoadResult {
	return ConfigLoadResult{Value: value}
}

// rejected discards a malformed or invalid environment value, resolves to
// the default, and records a warning. reason is a parse note or the
// validator's error text.
func rejected(envKey, raw, reason string, defaultValue interface{}) ConfigLoadResult {
	return ConfigLoadResult{
		Value: defaultValue,
		Warnings: []string{fmt.Sprintf(
			"Invalid %s='%s': %s, falling back to default '%v'",
			envKey, raw, reason, defaultValue,
		)},
		FallbackApplied: true,
	}
}

// LoadEnvString reads a string from the environment, returning the default
// when the variable is unset. No validation, no warnings; use
// LoadEnvWithFallback when a bad value should be caught.
//
//	mailto := LoadEnvString("OPENALEX_MAILTO", "corpus@example.org")
func LoadEnvString(envKey, defaultValue string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

// LoadEnvWithFallback reads a string from the environment and validates it,
// falling back to the default when validation fails.
//
// The function never returns an error. A typo in one variable must not keep
// a scheduled harvest from running, so validation failures degrade to
// warnings the worker logs at boot. validator may be nil to accept any
// non-empty value.
//
//	result := LoadEnvWithFallback("HARVEST_SCHEDULE", "30 5 * * *", ValidateCronSchedule)
//	schedule := result.Value.(string)
//
// Warning format:
//
//	"Invalid {envKey}='{value}': {error}, falling back to default '{default}'"
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	value := os.Getenv(envKey)
	if value == "" {
		return resolved(defaultValue)
	}
	if validator != nil {
		if err := validator(value); err != nil {
			return rejected(envKey, value, err.Error(), defaultValue)
		}
	}
	return resolved(value)
}

// LoadEnvDuration reads a Go duration string ("30s", "1h30m") from the
// environment. Parse failures and validator rejections both fall back to
// the default with a warning.
//
// Harvest timeouts, the excerpt run budget, and the robots.txt cache TTL
// all load through here.
//
//	result := LoadEnvDuration("HARVEST_TIMEOUT", 30*time.Minute, ValidatePositiveDuration)
//	timeout := result.Value.(time.Duration)
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return resolved(defaultValue)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return rejected(envKey, raw, err.Error(), defaultValue)
	}
	if validator != nil {
		if err := validator(parsed); err != nil {
			return rejected(envKey, raw, err.Error(), defaultValue)
		}
	}
	return resolved(parsed)
}

// LoadEnvInt reads an integer from the environment. Parse failures and
// validator rejections both fall back to the default with a warning.
//
// Pool sizes, the health server port, and per-source page limits load
// through here, usually with a ValidateIntRange validator.
//
//	result := LoadEnvInt("EXTRACT_PARALLELISM", 4, func(v int) error {
//	    return ValidateIntRange(v, 1, 32)
//	})
//	parallelism := result.Value.(int)
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return resolved(defaultValue)
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return rejected(envKey, raw, "invalid integer format", defaultValue)
	}
	if validator != nil {
		if err := validator(parsed); err != nil {
			return rejected(envKey, raw, err.Error(), defaultValue)
		}
	}
	return resolved(parsed)
}

// LoadEnvBool reads a boolean from the environment, accepting the forms
// strconv.ParseBool accepts: "1", "t", "T", "true", "TRUE", "True" and the
// matching false spellings. Anything else, including "yes" and "on", falls
// back to the default with a warning.
//
//	result := LoadEnvBool("ENABLE_EXTRACTION", false)
//	withExcerpts := result.Value.(bool)
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return resolved(defaultValue)
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return rejected(envKey, raw, "invalid boolean format, expected 'true' or 'false'", defaultValue)
	}
	return resolved(parsed)
}
