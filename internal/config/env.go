package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables read by ApplyEnv.
const (
	EnvStore                = "SKILL_STORE"
	EnvDatabaseURL          = "DATABASE_URL"
	EnvBadgerPath           = "SKILL_BADGER_PATH"
	EnvPort                 = "PORT"
	EnvLogLevel             = "SKILL_LOG_LEVEL"
	EnvMinGrades            = "SKILL_MIN_GRADES"
	EnvImprovementThreshold = "SKILL_IMPROVEMENT_THRESHOLD"
	EnvAutoImplement        = "SKILL_AUTO_IMPLEMENT"
)

// ApplyEnv overrides fields from the process environment.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}

	if v, ok := get(EnvStore); ok {
		c.Store = v
	}
	if v, ok := get(EnvDatabaseURL); ok {
		c.DatabaseURL = v
	}
	if v, ok := get(EnvBadgerPath); ok {
		c.BadgerPath = v
	}
	if v, ok := get(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := get(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be a valid integer: %w", EnvPort, err)
		}
		c.Port = port
	}

	policy := c.ImprovementPolicy()
	if v, ok := get(EnvMinGrades); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be a valid integer: %w", EnvMinGrades, err)
		}
		policy.MinGradesForImprovement = n
	}
	if v, ok := get(EnvImprovementThreshold); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s must be a number: %w", EnvImprovementThreshold, err)
		}
		policy.ImprovementThreshold = f
	}
	if v, ok := get(EnvAutoImplement); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s must be a boolean: %w", EnvAutoImplement, err)
		}
		policy.AutoImplement = b
	}
	c.Improvement = &policy

	return nil
}
