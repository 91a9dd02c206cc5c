package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, ":50051", c.GRPCAddr)
	assert.Empty(t, c.DatabaseDSN)
	assert.False(t, c.RemoteConfigured())
	assert.Equal(t, 500*time.Millisecond, c.PollInterval)
	assert.Equal(t, TransportAuto, c.NotifyTransport)
	assert.Equal(t, 3*time.Second, c.SuccessDisplay)
	assert.Equal(t, 24*time.Hour, c.ReturnWindow)
	assert.Equal(t, int64(5<<20), c.LocalQuotaBytes)
	assert.False(t, c.S3Configured())
	assert.Equal(t, time.Local, c.Location())
}

func TestLoadConfig_UsesDefaultsWithoutArgs(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	c := LoadConfig()
	require.NotNil(t, c)
	assert.Equal(t, 500*time.Millisecond, c.PollInterval)
}

func TestParseEnv(t *testing.T) {
	env := map[string]string{
		"LEADKEEPER_DATABASE_DSN":      "postgres://x",
		"LEADKEEPER_POLL_INTERVAL":     "250ms",
		"LEADKEEPER_PROBE_TIMEOUT":     "not-a-duration",
		"LEADKEEPER_LOCAL_QUOTA_BYTES": "1024",
		"LEADKEEPER_NOTIFY_TRANSPORT":  "redis",
		"LEADKEEPER_REDIS_ADDR":        "redis:6379",
		"LEADKEEPER_TIMEZONE":          "Asia/Seoul",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	var c Config
	c.LoadDefaults()
	parseEnv(&c, lookup)

	assert.Equal(t, "postgres://x", c.DatabaseDSN)
	assert.True(t, c.RemoteConfigured())
	assert.Equal(t, 250*time.Millisecond, c.PollInterval)
	assert.Equal(t, 3*time.Second, c.ProbeTimeout, "malformed value keeps default")
	assert.Equal(t, int64(1024), c.LocalQuotaBytes)
	assert.Equal(t, TransportRedis, c.NotifyTransport)
	assert.Equal(t, "redis:6379", c.RedisAddr)
	assert.Equal(t, "Asia/Seoul", c.Location().String())
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LEADKEEPER_TEST_DOTENV=hello\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("LEADKEEPER_TEST_DOTENV") })

	loadDotEnv(path)
	assert.Equal(t, "hello", os.Getenv("LEADKEEPER_TEST_DOTENV"))

	// missing file is ignored
	loadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
}

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"http_addr":        ":9090",
		"database_dsn":     "postgres://json",
		"poll_interval":    "1s",
		"return_window":    "12h",
		"notify_transport": "postgres",
		"s3_base_endpoint": "http://minio:9000",
	})

	t.Run("loads only present keys", func(t *testing.T) {
		var c Config
		c.LoadDefaults()
		parseJson(&c, []string{"-config", path})

		assert.Equal(t, ":9090", c.HTTPAddr)
		assert.Equal(t, "postgres://json", c.DatabaseDSN)
		assert.Equal(t, time.Second, c.PollInterval)
		assert.Equal(t, 12*time.Hour, c.ReturnWindow)
		assert.Equal(t, TransportPostgres, c.NotifyTransport)
		assert.True(t, c.S3Configured())
		assert.Equal(t, ":50051", c.GRPCAddr, "absent key keeps default")
	})

	t.Run("no flag → no changes", func(t *testing.T) {
		var c, want Config
		c.LoadDefaults()
		want.LoadDefaults()
		parseJson(&c, nil)
		assert.Empty(t, cmp.Diff(want, c))
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ nope`), 0o600))
		var c Config
		require.Panics(t, func() { parseJson(&c, []string{"-c", bad}) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		var c Config
		require.Panics(t, func() { parseJson(&c, []string{"-c", "/does/not/exist.json"}) })
	})
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		mutate      func(c *Config)
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{
				"-a", ":9000", "-g", ":9001", "-s", "srv:9001", "-d", "postgres://flag",
				"-l", "/tmp/lk.db", "-i", "750ms", "-n", "local", "-r", "r:6379",
				"-b", "bucket", "-e", "http://s3", "-v", "debug", "-unknown", "x",
			},
			mutate: func(c *Config) {
				c.HTTPAddr = ":9000"
				c.GRPCAddr = ":9001"
				c.ServerAddr = "srv:9001"
				c.DatabaseDSN = "postgres://flag"
				c.LocalStorePath = "/tmp/lk.db"
				c.PollInterval = 750 * time.Millisecond
				c.NotifyTransport = TransportLocal
				c.RedisAddr = "r:6379"
				c.S3Bucket = "bucket"
				c.S3BaseEndpoint = "http://s3"
				c.LogLevel = "debug"
			},
		},
		{
			name:        "bad duration panics",
			args:        []string{"-i", "soon"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got, want Config
			got.LoadDefaults()
			want.LoadDefaults()

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(&got, tt.args) })
				return
			}

			tt.mutate(&want)
			require.NotPanics(t, func() { parseFlags(&got, tt.args) })
			assert.Empty(t, cmp.Diff(want, got))
		})
	}
}
