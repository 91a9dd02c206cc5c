package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/leadkeeper/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     HTTP listen address (e.g. ":8080")
//	-g string     gRPC listen address (e.g. ":50051")
//	-s string     server gRPC address followed by the console
//	-d string     PostgreSQL DSN; empty keeps the remote store disabled
//	-l string     local store file
//	-i duration   local poll interval (e.g. "500ms")
//	-n string     notification transport: auto, postgres, redis, local
//	-r string     Redis address
//	-b string     S3 bucket for exports
//	-e string     S3 base endpoint
//	-v string     log level
//
// args are filtered with flagx.FilterArgs first so flags owned by other
// components do not break parsing.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-s", "-d", "-l", "-i", "-n", "-r", "-b", "-e", "-v"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP listen address")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC listen address")
	fs.StringVar(&config.ServerAddr, "s", config.ServerAddr, "server gRPC address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.LocalStorePath, "l", config.LocalStorePath, "local store file")
	fs.DurationVar(&config.PollInterval, "i", config.PollInterval, "local poll interval")
	fs.StringVar(&config.NotifyTransport, "n", config.NotifyTransport, "notification transport")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
