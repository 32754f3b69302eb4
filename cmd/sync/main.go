// Command sync runs membership and correlation syncs for the configured groups
// and exits. Groups run in parallel up to SYNC_CONCURRENCY (default 1). Every
// group has its own quota view of the single GITHUB_TOKEN, so values above 1
// let groups throttle on stale quota.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mishasvintus/access_mirror/internal/app"
	"github.com/mishasvintus/access_mirror/internal/apperr"
	"github.com/mishasvintus/access_mirror/internal/config"
	"github.com/mishasvintus/access_mirror/internal/logging"
	"github.com/mishasvintus/access_mirror/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}
	if len(cfg.Sync.Groups) == 0 {
		logging.Error().Msg("SYNC_GROUPS is empty, nothing to do")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logging.Error().Err(err).Msg("failed to initialize")
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	if cfg.Sync.Concurrency > 1 {
		logging.Warn().
			Int("concurrency", cfg.Sync.Concurrency).
			Msg("groups share one token but track quota separately")
	}

	q := app.DefaultQuery(cfg.Sync)
	failed := make([]bool, len(cfg.Sync.Groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Sync.Concurrency)
	for i, group := range cfg.Sync.Groups {
		g.Go(func() error {
			err := syncGroup(gctx, a.Service, group, q)
			if err == nil {
				return nil
			}
			failed[i] = true
			// A configuration error affects every group; stop the rest.
			if apperr.Is(err, apperr.KindConfiguration) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logging.Error().Err(err).Msg("sync aborted")
		os.Exit(1)
	}
	for _, f := range failed {
		if f {
			os.Exit(2)
		}
	}
}

func syncGroup(ctx context.Context, svc *service.SyncService, group string, q service.Query) error {
	log := logging.Ctx(ctx).With().Str("group", group).Logger()
	progress := func(remaining int) {
		log.Debug().Int("remaining_seconds", remaining).Msg("waiting for quota")
	}

	membership, err := svc.SyncMembership(ctx, group, progress)
	if err != nil {
		log.Error().Err(err).Str("kind", apperr.KindOf(err).String()).Msg("membership sync failed")
		return err
	}
	log.Info().
		Int("total", membership.Total).
		Int("new", membership.NewCount).
		Int("deactivated", membership.Deactivated).
		Msg("membership synced")

	if q.Repository == "" {
		return nil
	}

	correlations, err := svc.SyncCorrelations(ctx, group, q, progress)
	if err != nil {
		log.Error().Err(err).Str("kind", apperr.KindOf(err).String()).Msg("correlation sync failed")
		return err
	}
	log.Info().
		Int("members", correlations.Members).
		Int("upserted", correlations.Upserted).
		Int("deleted", correlations.Deleted).
		Int("failures", len(correlations.Failures)).
		Msg("correlations synced")
	return nil
}
