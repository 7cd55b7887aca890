package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requiredEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ADMIN_PASSWORD", "123")
}

func TestLoad_Defaults(t *testing.T) {
	requiredEnv(t)
	cfg, err := Load([]string{"--config", filepath.Join(t.TempDir(), "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "admin", cfg.AdminUsername)
	assert.Equal(t, int64(200_000), cfg.BidIncrement)
	assert.Equal(t, 20, cfg.BidTimerSeconds)
	assert.True(t, cfg.ResetTimerOnBid)
	assert.Equal(t, int64(10_000_000), cfg.InitialPurse)
	assert.Equal(t, 12*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoad_EnvFileFlagsAndEnv(t *testing.T) {
	requiredEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("BID_TIMER_SECONDS=15\nRESET_TIMER_ON_BID=false\nPORT=9000\n"), 0o600))
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("JWT_TTL", "30m")
	t.Cleanup(func() {
		os.Unsetenv("BID_TIMER_SECONDS")
		os.Unsetenv("RESET_TIMER_ON_BID")
		os.Unsetenv("PORT")
	})

	cfg, err := Load([]string{"--config", envFile, "--port", "7000", "--seed", "fixtures/seed.yaml"})
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.BidTimerSeconds)
	assert.False(t, cfg.ResetTimerOnBid)
	assert.Equal(t, "7000", cfg.Port, "flag wins over env file")
	assert.Equal(t, "fixtures/seed.yaml", cfg.SeedFile)
	assert.Equal(t, 30*time.Minute, cfg.JWTTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
}

func TestLoad_RequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ADMIN_PASSWORD", "")
	t.Setenv("ADMIN_PASSWORD_HASH", "")
	_, err := Load([]string{"--config", filepath.Join(t.TempDir(), "none.env")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "ADMIN_PASSWORD")
}

func TestLoad_BadFlag(t *testing.T) {
	_, err := Load([]string{"--nope"})
	assert.Error(t, err)
}
