package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// envPrefix namespaces the limiter's environment variables.
const envPrefix = "SKILL_RATE_LIMIT_"

// EndpointConfig overrides the default limit for one route family.
// A Path ending in "/" matches every path below it.
type EndpointConfig struct {
	Path   string
	Method string
	Limit  int // requests per Window; 0 means unlimited
	Window time.Duration
	Burst  int // defaults to Limit
}

// LoadConfig builds a Config from SKILL_RATE_LIMIT_* variables.
// Unparseable values fall back to their defaults.
func LoadConfig() *Config {
	if !envValue("ENABLED", true, strconv.ParseBool) {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    envValue("DEFAULT_LIMIT", 1000, strconv.Atoi),
		DefaultWindow:   envValue("DEFAULT_WINDOW", time.Minute, time.ParseDuration),
		CleanupInterval: envValue("CLEANUP_INTERVAL", 5*time.Minute, time.ParseDuration),
		Whitelist:       ipSet(os.Getenv(envPrefix + "WHITELIST")),
		Blacklist:       ipSet(os.Getenv(envPrefix + "BLACKLIST")),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs limits the routes that write to the registry.
// Reads use the default limit; /health and /metrics are never limited.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// registration and review change which prompt is active
		{Path: "/skills", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
		{Path: "/improvements/", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
		// grades and manual requests arrive once per execution
		{Path: "/skills/", Method: "POST", Limit: 600, Window: time.Minute, Burst: 60},
	}
}

func envValue[T any](key string, def T, parse func(string) (T, error)) T {
	raw := os.Getenv(envPrefix + key)
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func ipSet(list string) map[string]bool {
	set := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			set[ip] = true
		}
	}
	return set
}
