package main

import (
	"context"
	"embed"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vearutop/statigz"
	"github.com/vearutop/statigz/zstd"

	"github.com/sweater-ventures/psph/api"
	"github.com/sweater-ventures/psph/app"
	"github.com/sweater-ventures/psph/config"
	"github.com/sweater-ventures/psph/middleware"
	"github.com/sweater-ventures/psph/views"
)

//go:embed static/*
var static embed.FS

func main() {
	config.InitLogging()
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Unable to load configuration!!!", err)
	}

	if appConfig == nil {
		log.Fatal("Nil AppConfig, WTF")
	}

	slog.Debug("Configuration",
		"DevMode", appConfig.DevMode,
		"LogLevel", appConfig.LogLevel,
		"DataSource", appConfig.DataSource,
		"MailProvider", appConfig.MailProvider,
	)

	metrics := app.NewMetrics(prometheus.DefaultRegisterer)
	application, err := app.NewApp(context.Background(), appConfig, static, metrics)
	if err != nil {
		log.Fatal("Unable to initialize application", err)
	}
	defer application.Close()

	router := http.NewServeMux()
	if appConfig.DevMode {
		router.Handle("/static/", http.StripPrefix("/static", http.FileServer(http.Dir("static"))))
	} else {
		router.Handle("/static/", statigz.FileServer(static, zstd.AddEncoding))
	}
	router.Handle("GET /metrics", promhttp.Handler())
	views.AddViews(application, router)
	api.AddApis(application, router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", appConfig.Port),
		Handler: middleware.AllStandardMiddleware(router, appConfig.AllowedOrigin),
	}

	// Listen for shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("Starting PSPH", "port", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-sigChan
	slog.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// closing widgets ends their event streams so Shutdown can drain
	application.Widgets.CloseAll()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
