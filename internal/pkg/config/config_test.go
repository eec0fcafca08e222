package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		JWT:      JWTConfig{Secret: "0123456789abcdef0123456789abcdef"},
		Database: DatabaseConfig{Host: "localhost", User: "balkly", DBName: "balkly"},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Voucher:  VoucherConfig{Window: 24 * time.Hour, CodeLength: 16, MaxCodeAttempts: 5},
		CheckIn:  CheckInConfig{Dedup: "none"},
	}
}

func TestValidate(t *testing.T) {
	t.Run("Valid config", func(t *testing.T) {
		cfg := validConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Short JWT secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWT.Secret = "short"
		assert.Error(t, cfg.Validate())
	})

	t.Run("Zero voucher window", func(t *testing.T) {
		cfg := validConfig()
		cfg.Voucher.Window = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("Voucher code length bounds", func(t *testing.T) {
		for _, n := range []int{11, 33} {
			cfg := validConfig()
			cfg.Voucher.CodeLength = n
			assert.Error(t, cfg.Validate(), "length %d", n)
		}

		cfg := validConfig()
		cfg.Voucher.CodeLength = 32
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Unknown dedup policy", func(t *testing.T) {
		cfg := validConfig()
		cfg.CheckIn.Dedup = "weekly"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "weekly")
	})

	t.Run("Sweeper enabled without interval", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sweeper = SweeperConfig{Enabled: true}
		assert.Error(t, cfg.Validate())
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  host: db.internal
  user: balkly
  dbname: balkly
jwt:
  secret: 0123456789abcdef0123456789abcdef
voucher:
  window: 12h
checkin:
  dedup: daily
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 12*time.Hour, cfg.Voucher.Window)
	assert.Equal(t, 16, cfg.Voucher.CodeLength)
	assert.Equal(t, "daily", cfg.CheckIn.Dedup)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Catalog.CacheTTL)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
