package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mishasvintus/access_mirror/internal/app"
	"github.com/mishasvintus/access_mirror/internal/config"
	"github.com/mishasvintus/access_mirror/internal/handler"
	"github.com/mishasvintus/access_mirror/internal/logging"
	"github.com/mishasvintus/access_mirror/internal/router"
)

const syncTimeout = 30 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		logging.Error().Err(err).Msg("failed to initialize")
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	gin.SetMode(gin.ReleaseMode)
	syncHandler := handler.NewSyncHandler(a.Service, a.Service, app.DefaultQuery(cfg.Sync), syncTimeout)
	r := router.SetupRoutes(syncHandler)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("failed to start server")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	logging.Info().Msg("server exited")
}
