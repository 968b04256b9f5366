// Command controlplane serves the deployment and variable-management
// HTTP surface: deploy_code, deploy_plugin, deploy_var, list_code, and
// list_api, persisting every change and then notifying the data plane
// so it can materialize and route it.
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
	"github.com/goatkit/darxrun/internal/darx/notify"
	"github.com/goatkit/darxrun/internal/darx/vars"
	"github.com/goatkit/darxrun/internal/platform/config"
	"github.com/goatkit/darxrun/internal/platform/database"
	"github.com/goatkit/darxrun/internal/platform/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (optional; env vars always apply)")
	flag.Parse()

	log := logging.New("controlplane")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// sql_compat's driver-selection helpers (IsMySQL/IsPostgreSQL/IsSQLite,
	// ConvertPlaceholders) read DB_DRIVER directly, not this process's
	// Config struct, so it must be exported before any database call.
	os.Setenv("DB_DRIVER", cfg.Database.Driver)

	sqlDB, err := database.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()
	db := sqlx.NewDb(sqlDB, cfg.Database.Driver)

	var notifyClient *notify.Client
	if cfg.HTTP.DataPlaneAddr != "" {
		notifyClient = notify.New(addrToURL(cfg.HTTP.DataPlaneAddr))
	}

	a := &app{
		deploys: deploy.New(db),
		vars:    vars.New(db),
		notify:  notifyClient,
		log:     log,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.POST("/deploy_code/:env_id", a.handleDeployCode)
	router.POST("/deploy_plugin/:plugin_name", a.handleDeployPlugin)
	router.POST("/deploy_var/:env_id", a.handleDeployVar)
	router.GET("/list_code/:env_id", a.handleListCode)
	router.GET("/list_api/:env_id", a.handleListAPI)

	srv := &http.Server{Addr: cfg.HTTP.ControlPlaneAddr, Handler: router}
	runWithGracefulShutdown(srv, log)
}

// addrToURL turns a bind address like ":8081" or "0.0.0.0:8081" into a
// loopback URL the notify client can POST to.
func addrToURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://127.0.0.1" + addr
	}
	return "http://" + addr
}

func runWithGracefulShutdown(srv *http.Server, log *slog.Logger) {
	go func() {
		log.Info("control plane listening", "addr", srv.Addr)
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
