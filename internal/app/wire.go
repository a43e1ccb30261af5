package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/outcomelab/marketd/internal/blob/s3"
	"github.com/outcomelab/marketd/internal/cache/redis"
	"github.com/outcomelab/marketd/internal/chain"
	"github.com/outcomelab/marketd/internal/config"
	"github.com/outcomelab/marketd/internal/domain"
	"github.com/outcomelab/marketd/internal/lifecycle"
	"github.com/outcomelab/marketd/internal/registry"
	"github.com/outcomelab/marketd/internal/resolver"
	"github.com/outcomelab/marketd/internal/scanner"
	"github.com/outcomelab/marketd/internal/store/postgres"
)

// Dependencies bundles everything the application modes operate on.
type Dependencies struct {
	Records domain.RecordStore
	Index   domain.RegistryStore
	Chain   domain.ChainClient

	Scanner     *scanner.Scanner
	Coordinator *lifecycle.Coordinator

	// Optional collaborators; nil when not configured.
	PriceCache  domain.PriceCache
	AuditStore  domain.AuditStore
	Snapshotter *s3blob.Snapshotter
	Stream      *chain.Stream
}

// Wire constructs the concrete dependency graph from the configuration and
// returns it with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis (cross-instance lock and price cache) ---
	var locker domain.LockManager = registry.NewLocalLocker()
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		if strings.EqualFold(cfg.Registry.Lock, "redis") {
			locker = redis.NewLockManager(redisClient)
		}
		deps.PriceCache = redis.NewPriceCache(redisClient, 0)
	}

	// --- Registry stores ---
	deps.Records = registry.NewRecordStore(cfg.Registry.Dir)
	deps.Index = registry.NewIndex(cfg.Registry.Dir, locker, cfg.Registry.LockTTL.Duration)

	// --- Chain gateway ---
	deps.Chain = chain.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout.Duration)

	// --- PostgreSQL audit trail ---
	if cfg.Audit.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Audit.DSN,
			Host:     cfg.Audit.Host,
			Port:     cfg.Audit.Port,
			Database: cfg.Audit.Database,
			User:     cfg.Audit.User,
			Password: cfg.Audit.Password,
			SSLMode:  cfg.Audit.SSLMode,
			MaxConns: cfg.Audit.PoolMaxConns,
			MinConns: cfg.Audit.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Audit.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.AuditStore = postgres.NewAuditStore(pgClient.Pool())
	}

	// --- S3 registry backup ---
	if cfg.Backup.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Backup.S3.Endpoint,
			Region:         cfg.Backup.S3.Region,
			Bucket:         cfg.Backup.S3.Bucket,
			AccessKey:      cfg.Backup.S3.AccessKey,
			SecretKey:      cfg.Backup.S3.SecretKey,
			UseSSL:         cfg.Backup.S3.UseSSL,
			ForcePathStyle: cfg.Backup.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Snapshotter = s3blob.NewSnapshotter(
			s3blob.NewWriter(s3Client), deps.Records, deps.Index, cfg.Backup.Prefix, logger,
		)
	}

	// --- Scanner and lifecycle coordinator ---
	var resolve domain.ResolveFunc
	switch strings.ToLower(cfg.Scanner.Resolver) {
	case "manual":
		resolve = resolver.Manual()
	default:
		resolve = resolver.ChainOracle(deps.Chain)
	}

	scannerOpts := []scanner.Option{}
	if deps.AuditStore != nil {
		scannerOpts = append(scannerOpts, scanner.WithAudit(deps.AuditStore))
	}
	deps.Scanner = scanner.New(deps.Records, deps.Index, deps.Chain, resolve, logger, scannerOpts...)

	coordOpts := []lifecycle.Option{lifecycle.WithScanner(deps.Scanner)}
	if deps.PriceCache != nil {
		coordOpts = append(coordOpts, lifecycle.WithPriceCache(deps.PriceCache))
	}
	if deps.AuditStore != nil {
		coordOpts = append(coordOpts, lifecycle.WithAudit(deps.AuditStore))
	}
	deps.Coordinator = lifecycle.New(deps.Records, deps.Index, deps.Chain, cfg.LookupCollateral, logger, coordOpts...)

	// --- Gateway event stream ---
	if cfg.Gateway.WsURL != "" {
		deps.Stream = chain.NewStream(cfg.Gateway.WsURL, func(event chain.Event) {
			logger.Info("gateway event",
				slog.String("type", event.Type),
				slog.String("condition_id", event.ConditionID),
				slog.String("tx_hash", event.TxHash),
			)
		}, logger)
	}

	return deps, cleanup, nil
}
