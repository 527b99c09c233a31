package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/fks/market-data/internal/adapter"
	"github.com/fks/market-data/internal/cache"
	fksconfig "github.com/fks/market-data/internal/config"
	"github.com/fks/market-data/internal/manager"
	"github.com/fks/market-data/internal/persistence"
	"github.com/fks/market-data/internal/persistence/postgres"
	"github.com/fks/market-data/internal/providers"
	"github.com/fks/market-data/internal/secrets"
)

// app bundles the collaborators most subcommands need, assembled once
// at startup in the order the teacher's main.go wires its application
// container.
type app struct {
	cfg      fksconfig.Runtime
	log      zerolog.Logger
	db       *sqlx.DB
	cacheSt  cache.Store
	adapters map[string]*adapter.Base
	mgr      *manager.Manager
}

// bootstrap loads config, builds the shared cache/secrets/provider
// adapters, connects to Postgres, and assembles the priority-ordered
// Manager. Every subcommand calls this first.
func bootstrap(log zerolog.Logger) (*app, error) {
	cfg, err := fksconfig.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load config: %w", err)
	}

	keyStorePath := os.Getenv("FKS_KEYSTORE_PATH")
	if keyStorePath == "" {
		keyStorePath = "data/provider_keys.enc"
	}
	secretsProvider := secrets.NewChain(
		secrets.NewEnvProvider(nil),
		secrets.NewFileStore(keyStorePath, cfg.KeysSecret),
	)

	cacheStore := cache.NewAuto()

	adapters := providers.Build(providers.Deps{
		Cache:   cacheStore,
		Secrets: secretsProvider,
		Logger:  log,
	})
	fksconfig.ApplyOverrides(adapters, cfg)

	order := providers.Names()
	managerProviders := make(map[string]manager.Provider, len(adapters))
	for name, base := range adapters {
		managerProviders[name] = base
	}

	mgr := manager.New(manager.Config{
		Order:             order,
		Providers:         managerProviders,
		Cooldown:          manager.DefaultCooldown,
		VarianceTolerance: manager.VarianceTolerance,
		Verify:            true,
		Logger:            log,
	})

	var db *sqlx.DB
	if cfg.DatabaseURL != "" {
		db, err = sqlx.Connect("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	return &app{cfg: cfg, log: log, db: db, cacheSt: cacheStore, adapters: adapters, mgr: mgr}, nil
}

// repository lazily builds the Postgres-backed repos once a.db is
// present.
func (a *app) repository() (persistence.Repository, error) {
	if a.db == nil {
		return persistence.Repository{}, fmt.Errorf("bootstrap: DATABASE_URL/FKS_DB_URL not set")
	}
	return persistence.Repository{
		OHLCV:  postgres.NewOHLCVRepo(a.db, a.cfg.DefaultTimeout),
		Splits: postgres.NewSplitRepo(a.db, a.cfg.DefaultTimeout),
	}, nil
}
