// Package config loads runtime configuration for the leadkeeper server and
// admin console.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. A .env file in the working directory and LEADKEEPER_* environment
//     variables (see parseEnv).
//  3. Optional JSON file selected via -c or -config (see parseJson).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
// Intervals use timex.Duration, so they may be strings like "500ms" or
// integer nanoseconds:
//
//	{
//	  "http_addr": ":8080",
//	  "database_dsn": "postgres://app:app@db:5432/leads?sslmode=disable",
//	  "poll_interval": "500ms",
//	  "notify_transport": "auto"
//	}
package config
