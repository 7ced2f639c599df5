package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"borrowbuddy/app"
	"borrowbuddy/config"
	"borrowbuddy/logging"
	"borrowbuddy/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadEnv()
	logging.Setup()
	gin.SetMode(config.Get("GIN_MODE", gin.ReleaseMode))

	application := app.MustNew(app.LoadConfig())
	defer application.Close()

	routes.RegisterRoutes(application.Router, application)

	// 启动时核对 available 与未归还记录是否一致，只告警不修复
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if drift, err := application.Repo.AuditAvailability(ctx); err != nil {
		slog.Warn("availability audit failed", "err", err)
	} else if len(drift) > 0 {
		slog.Warn("items with inconsistent availability", "item_ids", drift)
	}
	cancel()

	srv := &http.Server{
		Addr:              ":" + application.Config.Port,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop, stopCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopCancel()

	go func() {
		slog.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
			stopCancel()
		}
	}()

	<-stop.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "err", err)
	}
}
