package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MaxKeySlots is the number of upstream API key slots read from the
// environment (UPSTREAM_API_KEY_1 .. UPSTREAM_API_KEY_20).
const MaxKeySlots = 20

type Config struct {
	DatabaseURLs []string // one connection string per partition, probe order
	RedisAddrs   []string
	UpstreamKeys []string // raw key slots, empty string = slot not set
	UpstreamURL  string
	JWTSecret    string
	ServerPort   string
	ModelsConfig string

	GuestLimit  int
	GuestWindow time.Duration

	TenantWindow    time.Duration
	TierLimits      map[string]int
	DefaultTierName string
}

func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		DatabaseURLs: splitList(getEnv("DATABASE_URLS", "")),
		RedisAddrs:   splitList(getEnv("REDIS_ADDRS", "")),
		UpstreamKeys: loadKeySlots(),
		UpstreamURL:  getEnv("UPSTREAM_BASE_URL", "https://openrouter.ai/api/v1"),
		JWTSecret:    getEnv("JWT_SECRET", "secret"),
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ModelsConfig: getEnv("MODELS_CONFIG", "models.yaml"),

		GuestLimit:  getEnvInt("GUEST_QUOTA_LIMIT", 5),
		GuestWindow: getEnvDuration("GUEST_QUOTA_WINDOW", 48*time.Hour),

		TenantWindow: getEnvDuration("TENANT_QUOTA_WINDOW", 24*time.Hour),
		TierLimits: map[string]int{
			"free": getEnvInt("TIER_LIMIT_FREE", 20),
			"plus": getEnvInt("TIER_LIMIT_PLUS", 200),
			"pro":  getEnvInt("TIER_LIMIT_PRO", 2000),
		},
		DefaultTierName: "free",
	}

	if len(cfg.DatabaseURLs) == 0 {
		return nil, fmt.Errorf("DATABASE_URLS is required (comma-separated, one per partition)")
	}

	return cfg, nil
}

// LimitForTier returns the daily request limit for an entitlement tier.
// Unknown tiers get the free limit.
func (c *Config) LimitForTier(tier string) int {
	if limit, ok := c.TierLimits[tier]; ok {
		return limit
	}
	return c.TierLimits[c.DefaultTierName]
}

func loadKeySlots() []string {
	keys := make([]string, MaxKeySlots)
	for i := 0; i < MaxKeySlots; i++ {
		keys[i] = os.Getenv(fmt.Sprintf("UPSTREAM_API_KEY_%d", i+1))
	}
	return keys
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}
