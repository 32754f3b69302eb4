// Package app wires configuration, storage and the remote client into a SyncService.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mishasvintus/access_mirror/internal/config"
	"github.com/mishasvintus/access_mirror/internal/github"
	"github.com/mishasvintus/access_mirror/internal/logging"
	"github.com/mishasvintus/access_mirror/internal/ratelimit"
	"github.com/mishasvintus/access_mirror/internal/repository"
	"github.com/mishasvintus/access_mirror/internal/repository/store"
	"github.com/mishasvintus/access_mirror/internal/service"
)

// App holds the wired components shared by the binaries.
type App struct {
	DB      *sql.DB
	Service *service.SyncService
}

// New initializes logging, opens and migrates the database and builds the
// sync service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	db, err := repository.NewPostgresDB(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	svc := service.NewSyncService(store.New(db), RemoteFactory(cfg.GitHub), nil, Options(cfg.Sync))
	return &App{DB: db, Service: svc}, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}

// RemoteFactory returns a factory creating one GitHub client per sync invocation.
func RemoteFactory(cfg config.GitHubConfig) service.RemoteFactory {
	return func(observer github.QuotaObserver) (service.Remote, error) {
		client, err := github.New(github.Options{
			Token:           cfg.Token,
			APIURL:          cfg.APIURL,
			RequestInterval: cfg.RequestInterval,
			Observer:        observer,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// Options maps sync configuration to service options.
func Options(cfg config.SyncConfig) service.Options {
	return service.Options{
		MaxRetries: cfg.MaxRetries,
		BatchSize:  cfg.BatchSize,
		Limiter: ratelimit.Options{
			DefaultDelay:  cfg.DefaultDelay,
			WarningDelay:  cfg.WarningDelay,
			CriticalDelay: cfg.CriticalDelay,
		},
	}
}

// DefaultQuery returns the configured correlation query.
func DefaultQuery(cfg config.SyncConfig) service.Query {
	return service.Query{
		Repository:     cfg.Repository,
		SearchTerms:    cfg.SearchTerms,
		ExclusionTerms: cfg.ExclusionTerms,
	}
}
