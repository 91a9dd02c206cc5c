package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/leadkeeper/internal/flagx"
	"github.com/dmitrijs2005/leadkeeper/internal/timex"
)

// JsonConfig is a DTO used only for reading JSON configuration files.
// Pointer fields distinguish "absent" from "zero", so a file only overrides
// the keys it actually contains.
type JsonConfig struct {
	HTTPAddr        *string         `json:"http_addr"`
	GRPCAddr        *string         `json:"grpc_addr"`
	ServerAddr      *string         `json:"server_addr"`
	DatabaseDSN     *string         `json:"database_dsn"`
	LocalStorePath  *string         `json:"local_store_path"`
	LocalQuotaBytes *int64          `json:"local_quota_bytes"`
	PollInterval    *timex.Duration `json:"poll_interval"`
	ProbeInterval   *timex.Duration `json:"probe_interval"`
	ProbeTimeout    *timex.Duration `json:"probe_timeout"`
	NotifyTransport *string         `json:"notify_transport"`
	RedisAddr       *string         `json:"redis_addr"`
	RedisPassword   *string         `json:"redis_password"`
	RedisChannel    *string         `json:"redis_channel"`
	S3AccessKey     *string         `json:"s3_access_key"`
	S3SecretKey     *string         `json:"s3_secret_key"`
	S3Bucket        *string         `json:"s3_bucket"`
	S3Region        *string         `json:"s3_region"`
	S3BaseEndpoint  *string         `json:"s3_base_endpoint"`
	SuccessDisplay  *timex.Duration `json:"success_display"`
	ReturnWindow    *timex.Duration `json:"return_window"`
	PublicBaseURL   *string         `json:"public_base_url"`
	TimeZone        *string         `json:"time_zone"`
	AppVersion      *string         `json:"app_version"`
	LogLevel        *string         `json:"log_level"`
	LogFile         *string         `json:"log_file"`
}

// parseJson loads the JSON file named by -c/-config in args into config.
// Without the flag nothing happens. Read or decode failures panic.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.ServerAddr, c.ServerAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LocalStorePath, c.LocalStorePath)
	if c.LocalQuotaBytes != nil {
		config.LocalQuotaBytes = *c.LocalQuotaBytes
	}
	if c.PollInterval != nil {
		config.PollInterval = c.PollInterval.Duration
	}
	if c.ProbeInterval != nil {
		config.ProbeInterval = c.ProbeInterval.Duration
	}
	if c.ProbeTimeout != nil {
		config.ProbeTimeout = c.ProbeTimeout.Duration
	}
	setString(&config.NotifyTransport, c.NotifyTransport)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setString(&config.RedisChannel, c.RedisChannel)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.SuccessDisplay != nil {
		config.SuccessDisplay = c.SuccessDisplay.Duration
	}
	if c.ReturnWindow != nil {
		config.ReturnWindow = c.ReturnWindow.Duration
	}
	setString(&config.PublicBaseURL, c.PublicBaseURL)
	setString(&config.TimeZone, c.TimeZone)
	setString(&config.AppVersion, c.AppVersion)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFile, c.LogFile)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
