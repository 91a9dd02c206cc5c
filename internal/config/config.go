package config

import (
	"os"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/flagx"
)

// Notification transports accepted by Config.NotifyTransport.
const (
	TransportAuto     = "auto"
	TransportPostgres = "postgres"
	TransportRedis    = "redis"
	TransportLocal    = "local"
)

// Config holds runtime settings shared by the collection server and the
// admin console.
//
// Fields:
//   - HTTPAddr / GRPCAddr: listen addresses of the server.
//   - ServerAddr: gRPC address the console follows for the live feed.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty means no remote store.
//   - LocalStorePath / LocalQuotaBytes: on-device SQLite slot store.
//   - PollInterval: local change-detection poll period.
//   - ProbeInterval / ProbeTimeout: remote reachability re-probe settings.
//   - NotifyTransport: auto, postgres, redis or local.
//   - RedisAddr / RedisPassword / RedisChannel: cross-context messaging.
//   - S3*: object storage for exports.
//   - SuccessDisplay / ReturnWindow: submission form timings.
//   - PublicBaseURL: prefix of the mobile submission link shown to admins.
//   - TimeZone: location used for "today" counters.
//   - LogLevel / LogFile: logging.
//   - AssumeYes: console answers yes to destructive confirmations (-yes).
type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	ServerAddr      string
	DatabaseDSN     string
	LocalStorePath  string
	LocalQuotaBytes int64
	PollInterval    time.Duration
	ProbeInterval   time.Duration
	ProbeTimeout    time.Duration
	NotifyTransport string
	RedisAddr       string
	RedisPassword   string
	RedisChannel    string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3Region        string
	S3BaseEndpoint  string
	SuccessDisplay  time.Duration
	ReturnWindow    time.Duration
	PublicBaseURL   string
	TimeZone        string
	AppVersion      string
	LogLevel        string
	LogFile         string
	AssumeYes       bool
}

// LoadDefaults populates Config with development defaults. The remote store
// is left unconfigured so a fresh checkout runs in local mode.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.GRPCAddr = ":50051"
	c.ServerAddr = "127.0.0.1:50051"
	c.DatabaseDSN = ""
	c.LocalStorePath = "leadkeeper.db"
	c.LocalQuotaBytes = 5 << 20
	c.PollInterval = 500 * time.Millisecond
	c.ProbeInterval = 10 * time.Second
	c.ProbeTimeout = 3 * time.Second
	c.NotifyTransport = TransportAuto
	c.RedisAddr = ""
	c.RedisPassword = ""
	c.RedisChannel = "leadkeeper:entries"
	c.S3AccessKey = ""
	c.S3SecretKey = ""
	c.S3Bucket = "exports"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
	c.SuccessDisplay = 3 * time.Second
	c.ReturnWindow = 24 * time.Hour
	c.PublicBaseURL = "http://localhost:8080"
	c.TimeZone = "Local"
	c.AppVersion = "1.0.0"
	c.LogLevel = "info"
	c.LogFile = ""
}

// LoadConfig builds a Config by applying defaults, then .env/environment
// variables, then an optional JSON file, and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	loadDotEnv(".env")
	parseEnv(cfg, os.LookupEnv)
	parseJson(cfg, os.Args[1:])
	parseFlags(cfg, os.Args[1:])
	cfg.AssumeYes = flagx.HasFlag(os.Args[1:], "-yes")
	return cfg
}

// Location resolves TimeZone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// RemoteConfigured reports whether a remote store DSN is set.
func (c *Config) RemoteConfigured() bool {
	return c.DatabaseDSN != ""
}

// S3Configured reports whether exports can be uploaded to object storage.
func (c *Config) S3Configured() bool {
	return c.S3BaseEndpoint != "" && c.S3Bucket != ""
}
