package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Setting environment variables.
func setEnvVars(t *testing.T, vars map[string]string) {
	t.Helper()
	for key, value := range vars {
		err := os.Setenv(key, value)
		require.NoError(t, err, "failed to set env var %s", key)

		// Ensure that the env vars are cleared after the test
		t.Cleanup(func() {
			os.Unsetenv(key)
		})
	}
}

func TestConfigTelegramEnv(t *testing.T) {
	expected := &Config{
		Telegram: TelegramConfig{
			Token:            "123",
			Timeout:          10 * time.Second,
			Chats:            []int64{1, 2, 3},
			ReconnectDelay:   7 * time.Second,
			MaxReconnects:    4,
			WatchdogInterval: time.Minute,
		},
	}

	setEnvVars(t, map[string]string{
		"TELEGRAM_TOKEN":             "123",
		"TELEGRAM_TIMEOUT":           "10s",
		"TELEGRAM_CHATS":             "1,2,3",
		"TELEGRAM_RECONNECT_DELAY":   "7s",
		"TELEGRAM_MAX_RECONNECTS":    "4",
		"TELEGRAM_WATCHDOG_INTERVAL": "1m",
	})

	actual, err := MustLoadConfig()
	require.NoError(t, err)
	require.NotNil(t, actual)

	// Compare each field with the expected values
	require.Equal(t, expected.Telegram.Token, actual.Telegram.Token)
	require.Equal(t, expected.Telegram.Timeout, actual.Telegram.Timeout)
	require.Equal(t, expected.Telegram.Chats, actual.Telegram.Chats)
	require.Equal(t, expected.Telegram.ReconnectDelay, actual.Telegram.ReconnectDelay)
	require.Equal(t, expected.Telegram.MaxReconnects, actual.Telegram.MaxReconnects)
	require.Equal(t, expected.Telegram.WatchdogInterval, actual.Telegram.WatchdogInterval)
}

func TestConfigDefaults(t *testing.T) {
	setEnvVars(t, map[string]string{
		"TELEGRAM_TOKEN": "123",
	})

	actual, err := MustLoadConfig()
	require.NoError(t, err)
	require.NotNil(t, actual)

	require.Equal(t, "production", actual.Environment)
	require.Equal(t, "info", actual.Verbose)
	require.Equal(t, "sqlite3", actual.Database.Driver)
	require.Equal(t, time.Second, actual.Webhook.MinInterval)
	require.Equal(t, 3, actual.Webhook.MaxRetries)
	require.Equal(t, 2000, actual.Webhook.MaxContentLength)
	require.Equal(t, int64(26214400), actual.Media.UploadLimit)
	require.Equal(t, int64(8388608), actual.Media.CompressTarget)
	require.Equal(t, "data/avatars", actual.Identity.AvatarDir)
	require.Equal(t, 24*time.Hour, actual.Identity.RefreshTTL)
	require.Equal(t, 5*time.Second, actual.Telegram.ReconnectDelay)
	require.Equal(t, 10, actual.Telegram.MaxReconnects)
	require.Equal(t, "localhost", actual.API.Host)
	require.Equal(t, 8080, actual.API.Port)
}

func TestConfigMissingToken(t *testing.T) {
	_, err := MustLoadConfig()
	require.Error(t, err)
}

func TestConfigWebhookEnv(t *testing.T) {
	setEnvVars(t, map[string]string{
		"TELEGRAM_TOKEN":             "123",
		"WEBHOOK_MIN_INTERVAL":       "500ms",
		"WEBHOOK_MAX_RETRIES":        "5",
		"WEBHOOK_RETRY_BACKOFF":      "3s",
		"WEBHOOK_MAX_CONTENT_LENGTH": "1500",
	})

	actual, err := MustLoadConfig()
	require.NoError(t, err)
	require.Equal(t, 500*time.Millisecond, actual.Webhook.MinInterval)
	require.Equal(t, 5, actual.Webhook.MaxRetries)
	require.Equal(t, 3*time.Second, actual.Webhook.RetryBackoff)
	require.Equal(t, 1500, actual.Webhook.MaxContentLength)
}
