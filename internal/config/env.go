package config

import (
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv reads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error; variables already set are not overridden.
func loadDotEnv(path string) {
	_ = godotenv.Load(path)
}

type lookupFunc func(string) (string, bool)

// parseEnv overlays Config with LEADKEEPER_* variables. Malformed durations
// and numbers are ignored and the previous value is kept.
func parseEnv(c *Config, lookup lookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	str("LEADKEEPER_HTTP_ADDR", &c.HTTPAddr)
	str("LEADKEEPER_GRPC_ADDR", &c.GRPCAddr)
	str("LEADKEEPER_SERVER_ADDR", &c.ServerAddr)
	str("LEADKEEPER_DATABASE_DSN", &c.DatabaseDSN)
	str("LEADKEEPER_LOCAL_STORE", &c.LocalStorePath)
	if v, ok := lookup("LEADKEEPER_LOCAL_QUOTA_BYTES"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.LocalQuotaBytes = n
		}
	}
	dur("LEADKEEPER_POLL_INTERVAL", &c.PollInterval)
	dur("LEADKEEPER_PROBE_INTERVAL", &c.ProbeInterval)
	dur("LEADKEEPER_PROBE_TIMEOUT", &c.ProbeTimeout)
	str("LEADKEEPER_NOTIFY_TRANSPORT", &c.NotifyTransport)
	str("LEADKEEPER_REDIS_ADDR", &c.RedisAddr)
	str("LEADKEEPER_REDIS_PASSWORD", &c.RedisPassword)
	str("LEADKEEPER_REDIS_CHANNEL", &c.RedisChannel)
	str("LEADKEEPER_S3_ACCESS_KEY", &c.S3AccessKey)
	str("LEADKEEPER_S3_SECRET_KEY", &c.S3SecretKey)
	str("LEADKEEPER_S3_BUCKET", &c.S3Bucket)
	str("LEADKEEPER_S3_REGION", &c.S3Region)
	str("LEADKEEPER_S3_ENDPOINT", &c.S3BaseEndpoint)
	dur("LEADKEEPER_SUCCESS_DISPLAY", &c.SuccessDisplay)
	dur("LEADKEEPER_RETURN_WINDOW", &c.ReturnWindow)
	str("LEADKEEPER_PUBLIC_BASE_URL", &c.PublicBaseURL)
	str("LEADKEEPER_TIMEZONE", &c.TimeZone)
	str("LEADKEEPER_APP_VERSION", &c.AppVersion)
	str("LEADKEEPER_LOG_LEVEL", &c.LogLevel)
	str("LEADKEEPER_LOG_FILE", &c.LogFile)
}
