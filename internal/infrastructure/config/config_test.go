package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		path := writeEnvFile(t, "IAB_PACKAGE_NAME=com.example.app\nIAB_PUBLIC_KEY=abc\n")

		cfg, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, "com.example.app", cfg.Billing.PackageName)
		assert.Equal(t, 3, cfg.Billing.APIVersion)
		assert.Equal(t, 10*time.Second, cfg.Billing.BindTimeout)
		assert.Equal(t, "http://127.0.0.1:8765", cfg.Service.URL)
		assert.Equal(t, 15*time.Second, cfg.Service.Timeout)
		assert.Equal(t, "127.0.0.1:8766", cfg.Callback.Addr)
		assert.Equal(t, "production", cfg.Log.Environment)
		assert.Empty(t, cfg.Sentry.DSN)
	})

	t.Run("file values", func(t *testing.T) {
		path := writeEnvFile(t, `IAB_PACKAGE_NAME=com.example.app
IAB_PUBLIC_KEY=abc
IAB_API_VERSION=5
IAB_BIND_TIMEOUT=3s
IAB_SERVICE_URL=http://billing.local:9000
IAB_PUBLISHER_CREDENTIALS=/etc/iab/sa.json
SENTRY_DSN=https://key@sentry.example.com/1
LOG_ENVIRONMENT=development
`)

		cfg, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, 5, cfg.Billing.APIVersion)
		assert.Equal(t, 3*time.Second, cfg.Billing.BindTimeout)
		assert.Equal(t, "http://billing.local:9000", cfg.Service.URL)
		assert.Equal(t, "/etc/iab/sa.json", cfg.Publisher.CredentialsFile)
		assert.Equal(t, "https://key@sentry.example.com/1", cfg.Sentry.DSN)
		assert.Equal(t, "development", cfg.Log.Environment)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		path := writeEnvFile(t, "IAB_PACKAGE_NAME=com.example.app\nIAB_PUBLIC_KEY=abc\nIAB_API_VERSION=3\n")
		t.Setenv("IAB_API_VERSION", "5")

		cfg, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, 5, cfg.Billing.APIVersion)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name    string
			content string
			wantErr string
		}{
			{name: "missing package", content: "IAB_PUBLIC_KEY=abc\n", wantErr: "IAB_PACKAGE_NAME"},
			{name: "missing key", content: "IAB_PACKAGE_NAME=p\n", wantErr: "IAB_PUBLIC_KEY"},
			{name: "bad version", content: "IAB_PACKAGE_NAME=p\nIAB_PUBLIC_KEY=k\nIAB_API_VERSION=4\n", wantErr: "IAB_API_VERSION"},
			{name: "bad url", content: "IAB_PACKAGE_NAME=p\nIAB_PUBLIC_KEY=k\nIAB_SERVICE_URL=nope\n", wantErr: "IAB_SERVICE_URL"},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				_, err := Load(writeEnvFile(t, tc.content))
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			})
		}
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
		assert.Error(t, err)
	})
}
