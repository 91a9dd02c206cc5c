// Package core assembles the storage and notification stack shared by the
// collection server and the admin console: local slot store, optional
// remote database, persistence gateway, change notifier and session
// registry.
package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/leadkeeper/internal/config"
	"github.com/dmitrijs2005/leadkeeper/internal/export"
	"github.com/dmitrijs2005/leadkeeper/internal/gateway"
	"github.com/dmitrijs2005/leadkeeper/internal/localstore"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/metrics"
	"github.com/dmitrijs2005/leadkeeper/internal/notifier"
	"github.com/dmitrijs2005/leadkeeper/internal/registry"
	"github.com/dmitrijs2005/leadkeeper/internal/repositories/repomanager"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// openPostgres is a seam for tests.
var openPostgres = repomanager.OpenPostgres

type Core struct {
	Config   *config.Config
	Logger   logging.Logger
	Metrics  *metrics.Metrics
	Store    *localstore.Store
	Local    *repomanager.LocalRepositoryManager
	Remote   *repomanager.PostgresRepositoryManager
	Gateway  *gateway.Gateway
	Notifier *notifier.Notifier
	Sessions *registry.Registry
	// Uploader is nil unless S3 is configured.
	Uploader *export.S3Sink

	redis *redis.Client
}

// Build opens the stores, runs migrations and wires the gateway, notifier
// and registry. reg may be nil when metrics are not exported.
func Build(ctx context.Context, cfg *config.Config, l logging.Logger, reg prometheus.Registerer) (*Core, error) {
	c := &Core{Config: cfg, Logger: l}
	if reg != nil {
		c.Metrics = metrics.New(reg)
	}
	loc := cfg.Location()

	store, err := localstore.Open(cfg.LocalStorePath, localstore.WithQuota(cfg.LocalQuotaBytes), localstore.WithLogger(l))
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	c.Store = store
	c.Local = repomanager.NewLocalRepositoryManager(store, loc)
	if err := c.Local.RunMigrations(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}
	if changed, err := c.Local.Handle().CheckVersion(ctx, cfg.AppVersion); err != nil {
		l.Warn(ctx, "failed to record app version", "error", err)
	} else if changed {
		l.Info(ctx, "app version changed", "version", cfg.AppVersion)
	}

	var remote repomanager.RepositoryManager
	if cfg.RemoteConfigured() {
		db, err := openPostgres(cfg.DatabaseDSN)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.Remote = repomanager.NewPostgresRepositoryManager(db)
		remote = c.Remote
		// An unreachable database is not fatal: the gateway starts local
		// and the watcher switches over once it answers.
		if err := c.Remote.RunMigrations(ctx); err != nil {
			l.Warn(ctx, "failed to migrate remote store", "error", err)
		}
	}

	if cfg.RedisAddr != "" {
		c.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	}

	gwOpts := []gateway.Option{
		gateway.WithLogger(l),
		gateway.WithMetrics(c.Metrics),
		gateway.WithLocation(loc),
		gateway.WithProbeTimeout(cfg.ProbeTimeout),
	}
	remoteTransport := c.remoteTransport(ctx)
	if rt, ok := remoteTransport.(*notifier.RedisTransport); ok {
		gwOpts = append(gwOpts, gateway.WithBroadcaster(rt))
	}
	c.Gateway = gateway.New(remote, c.Local, gwOpts...)

	// The feed watches its own handle so writes made through the gateway
	// arrive as storage events.
	local := notifier.NewLocalTransport(store.Open(), l, notifier.WithPollInterval(cfg.PollInterval))
	c.Gateway.SetLocalChannel(local)
	c.Notifier = notifier.New(c.Gateway, remoteTransport, local, l, c.Metrics)

	c.Gateway.Configure(ctx)

	c.Sessions = registry.New(c.Gateway, l, loc)
	if _, err := c.Sessions.Reload(ctx); err != nil {
		l.Warn(ctx, "failed to load sessions", "error", err)
	}
	c.Sessions.Follow(c.Gateway)

	if cfg.S3Configured() {
		c.Uploader = export.NewS3Sink(export.S3Config{
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			BaseEndpoint: cfg.S3BaseEndpoint,
			Bucket:       cfg.S3Bucket,
		})
	}

	l.Info(ctx, "storage ready", "mode", c.Gateway.Mode(), "remote_configured", cfg.RemoteConfigured())
	return c, nil
}

// remoteTransport picks the cross-process transport used in remote mode.
// nil means the local transport serves both modes.
func (c *Core) remoteTransport(ctx context.Context) notifier.Transport {
	cfg := c.Config
	switch cfg.NotifyTransport {
	case config.TransportRedis:
		if c.redis == nil {
			c.Logger.Warn(ctx, "redis transport requested without an address")
			return nil
		}
		return notifier.NewRedisTransport(c.redis, cfg.RedisChannel, c.Logger)
	case config.TransportPostgres:
		if !cfg.RemoteConfigured() {
			c.Logger.Warn(ctx, "postgres transport requested without a database")
			return nil
		}
		return notifier.NewPostgresTransport(cfg.DatabaseDSN, c.Logger)
	case config.TransportLocal:
		return nil
	default:
		if c.redis != nil {
			return notifier.NewRedisTransport(c.redis, cfg.RedisChannel, c.Logger)
		}
		if cfg.RemoteConfigured() {
			return notifier.NewPostgresTransport(cfg.DatabaseDSN, c.Logger)
		}
		return nil
	}
}

// Close releases the redis client and both databases.
func (c *Core) Close() error {
	var errs []error
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	if c.Remote != nil {
		errs = append(errs, c.Remote.DB().Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}
