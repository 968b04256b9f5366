// Command dataplane serves invocations: on boot it replays every
// persisted deployment into the router, plugin registry, and
// materialized on-disk bundles (component L), then serves /invoke/*url
// against the worker pool, plus the control plane's /add_code_deploy
// and /add_plugin_deploy notifications (§4.F–§4.L, §5).
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/goatkit/darxrun/internal/darx/deploy"
	"github.com/goatkit/darxrun/internal/darx/materialize"
	"github.com/goatkit/darxrun/internal/darx/plugins"
	"github.com/goatkit/darxrun/internal/darx/router"
	"github.com/goatkit/darxrun/internal/darx/startup"
	"github.com/goatkit/darxrun/internal/darx/vars"
	"github.com/goatkit/darxrun/internal/darx/workerpool"
	"github.com/goatkit/darxrun/internal/platform/config"
	"github.com/goatkit/darxrun/internal/platform/database"
	"github.com/goatkit/darxrun/internal/platform/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (optional; env vars always apply)")
	flag.Parse()

	log := logging.New("dataplane")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	os.Setenv("DB_DRIVER", cfg.Database.Driver)

	sqlDB, err := database.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()
	db := sqlx.NewDb(sqlDB, cfg.Database.Driver)

	deploys := deploy.New(db)
	varStore := vars.New(db)
	pluginRegistry := plugins.New()
	rt := router.New(pluginRegistry)
	mat := materialize.New(cfg.Runtime.EnvsRoot, rt)
	pool := workerpool.New(cfg.Runtime.WorkerCount, cfg.Runtime.SnapshotCacheSize)
	defer pool.Shutdown()

	loader := &startup.Loader{Deploys: deploys, Materializer: mat, Router: rt, Plugins: pluginRegistry, Log: log}
	stats, err := loader.Run(context.Background())
	if err != nil {
		log.Error("startup replay failed", "error", err)
		os.Exit(1)
	}
	log.Info("startup replay complete",
		"plugins_loaded", stats.PluginsLoaded, "tenants", stats.Tenants,
		"materialized", stats.Materialized, "skipped", stats.Skipped)

	a := &app{db: sqlDB, vars: varStore, router: rt, plugins: pluginRegistry, materializer: mat, pool: pool, log: log}

	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery())
	ginRouter.Any("/invoke/*url", a.handleInvoke)
	ginRouter.POST("/add_code_deploy", a.handleAddCodeDeploy)
	ginRouter.POST("/add_plugin_deploy", a.handleAddPluginDeploy)
	ginRouter.POST("/add_var_deploy", a.handleAddVarDeploy)

	srv := &http.Server{Addr: cfg.HTTP.DataPlaneAddr, Handler: ginRouter}
	runWithGracefulShutdown(srv, log)
}

func runWithGracefulShutdown(srv *http.Server, log *slog.Logger) {
	go func() {
		log.Info("data plane listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
