// Package bootstrap builds the components shared by the CLI commands.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"iapgate/internal/infrastructure/config"
	"iapgate/internal/infrastructure/database"
	"iapgate/internal/infrastructure/migration"
	"iapgate/internal/infrastructure/pubsub"
	"iapgate/internal/infrastructure/repository"
	"iapgate/internal/infrastructure/sandboxstore"
	sharedConfig "iapgate/internal/shared/config"
	"iapgate/internal/shared/db"
	"iapgate/internal/shared/logger"
)

// ConfigFlag is the persistent root flag holding the config file path.
const ConfigFlag = "config"

// Init loads the configuration named by the command's --config flag and
// initializes the process logger from it.
func Init(cmd *cobra.Command) (*config.Config, logger.Interface, error) {
	configPath, _ := cmd.Flags().GetString(ConfigFlag)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, logger.NewLogger(), nil
}

// OpenLedger opens the sandbox ledger and applies pending migrations.
func OpenLedger(cfg *config.Config, log logger.Interface) (*gorm.DB, error) {
	if err := database.Init(&cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	ledgerDB := database.Get()
	if err := migration.NewManager(log).Migrate(ledgerDB); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to migrate ledger: %w", err)
	}
	return ledgerDB, nil
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg sharedConfig.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.GetAddr(), err)
	}
	return client, nil
}

// Runtime is the sandbox store with the bus and ledger behind it.
type Runtime struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Bus    pubsub.StoreEventBus
	Store  *sandboxstore.Store
	logger logger.Interface
}

// NewRuntime wires the sandbox store. Events go through Redis when enabled,
// otherwise through an in-process bus.
func NewRuntime(ctx context.Context, cfg *config.Config, log logger.Interface) (*Runtime, error) {
	ledgerDB, err := OpenLedger(cfg, log)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{DB: ledgerDB, logger: log}

	if cfg.Redis.Enabled {
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			_ = database.Close()
			return nil, err
		}
		rt.Redis = client
		bus := pubsub.NewRedisStoreEventBus(client, cfg.Redis.ChannelPrefix, log)
		rt.Bus = bus
		log.Infow("store events use redis", "addr", cfg.Redis.GetAddr(), "channel", bus.Channel())
	} else {
		rt.Bus = pubsub.NewMemoryStoreEventBus(log)
		log.Debugw("store events use the in-process bus")
	}

	ledger := repository.NewSandboxTransactionRepository(ledgerDB, log)
	rt.Store = sandboxstore.New(cfg.Store, ledger, rt.Bus, log,
		sandboxstore.WithTransactor(db.NewTransactionManager(ledgerDB)))
	return rt, nil
}

// Close releases the bus, Redis and the ledger.
func (r *Runtime) Close() {
	if err := r.Bus.Close(); err != nil {
		r.logger.Warnw("failed to close event bus", "error", err)
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			r.logger.Warnw("failed to close redis client", "error", err)
		}
	}
	if err := database.Close(); err != nil {
		r.logger.Warnw("failed to close database", "error", err)
	}
}
