package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresDatabaseURLs(t *testing.T) {
	t.Setenv("DATABASE_URLS", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_SplitsListsAndTrims(t *testing.T) {
	t.Setenv("DATABASE_URLS", "postgres://p0, postgres://p1 ,")
	t.Setenv("REDIS_ADDRS", "localhost:6379,localhost:6380")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"postgres://p0", "postgres://p1"}, cfg.DatabaseURLs)
	assert.Equal(t, []string{"localhost:6379", "localhost:6380"}, cfg.RedisAddrs)
}

func TestLoad_KeySlotsArePositional(t *testing.T) {
	t.Setenv("DATABASE_URLS", "postgres://p0")
	t.Setenv("UPSTREAM_API_KEY_1", "sk-first")
	t.Setenv("UPSTREAM_API_KEY_3", "sk-third")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.UpstreamKeys, MaxKeySlots)
	assert.Equal(t, "sk-first", cfg.UpstreamKeys[0])
	assert.Empty(t, cfg.UpstreamKeys[1])
	assert.Equal(t, "sk-third", cfg.UpstreamKeys[2])
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URLS", "postgres://p0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.GuestLimit)
	assert.Equal(t, 48*time.Hour, cfg.GuestWindow)
	assert.Equal(t, 24*time.Hour, cfg.TenantWindow)
	assert.Equal(t, "8080", cfg.ServerPort)
}

func TestLimitForTier(t *testing.T) {
	t.Setenv("DATABASE_URLS", "postgres://p0")
	t.Setenv("TIER_LIMIT_PLUS", "300")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.LimitForTier("plus"))
	assert.Equal(t, cfg.TierLimits["free"], cfg.LimitForTier("unknown-tier"))
}
