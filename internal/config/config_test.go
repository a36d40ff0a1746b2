package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadMergesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
mode = "standalone"

[owner]
address = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"

[server]
port = 9090
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "standalone", cfg.Mode)
	require.Equal(t, 9090, cfg.Server.Port)
	// Untouched sections keep their defaults.
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, int64(86400), cfg.House.DefaultDurationSeconds)
	require.True(t, cfg.Postgres.RunMigrations)

	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
mode = "standalone"

[owner]
address = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
`)

	t.Setenv("AUCTIOND_SERVER_PORT", "7777")
	t.Setenv("AUCTIOND_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("AUCTIOND_ARCHIVE_INTERVAL", "30m")
	t.Setenv("AUCTIOND_NOTIFY_EVENTS", "bid_placed, settled")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 7777, cfg.Server.Port)
	require.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	require.Equal(t, "30m0s", cfg.Archive.Interval.String())
	require.Equal(t, []string{"bid_placed", "settled"}, cfg.Notify.Events)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "cluster"
	cfg.LogLevel = "loud"
	cfg.Server.Port = 99999

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown mode")
	require.Contains(t, err.Error(), "unknown log_level")
	require.Contains(t, err.Error(), "port must be")
}

func TestValidateServeModeRequirements(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "serve"
	cfg.Owner.Address = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
	// No API key set.
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "api_key")

	cfg.Server.APIKey = "secret"
	require.NoError(t, cfg.Validate())
}

func TestValidateOwnerKeySources(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "standalone"

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "owner")

	cfg.Owner.EncryptedKeyPath = "/keys/owner.json"
	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "key_password")

	cfg.Owner.KeyPassword = "hunter2"
	require.NoError(t, cfg.Validate())
}

func TestValidateBankAccounts(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "standalone"
	cfg.Owner.Address = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
	cfg.Bank.Accounts = map[string]string{
		"not-an-address": "1000",
	}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a valid address")

	cfg.Bank.Accounts = map[string]string{
		"0x00000000000000000000000000000000000000a1": "ten",
	}
	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "wei")

	cfg.Bank.Accounts = map[string]string{
		"0x00000000000000000000000000000000000000a1": "10000000000000000000",
	}
	require.NoError(t, cfg.Validate())
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Owner.PrivateKey = "deadbeef"
	cfg.Postgres.Password = "dbpass"
	cfg.Redis.Password = "redispass"
	cfg.S3.SecretKey = "s3secret"
	cfg.Server.APIKey = "apikey"
	cfg.Notify.TelegramToken = "tok"

	red := RedactedConfig(&cfg)
	require.Equal(t, "***", red.Owner.PrivateKey)
	require.Equal(t, "***", red.Postgres.Password)
	require.Equal(t, "***", red.Redis.Password)
	require.Equal(t, "***", red.S3.SecretKey)
	require.Equal(t, "***", red.Server.APIKey)
	require.Equal(t, "***", red.Notify.TelegramToken)

	// The original is untouched.
	require.Equal(t, "deadbeef", cfg.Owner.PrivateKey)

	// Mutating the redacted copy's slices does not leak back.
	red.Notify.Events[0] = "mutated"
	require.NotEqual(t, "mutated", cfg.Notify.Events[0])
}
