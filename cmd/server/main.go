package main

import (
	"context"
	"log"
	"time"

	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal"
	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/handler"
	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/service"
	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/settings"
	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/store"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "modernc.org/sqlite"
)

func main() {
	internal.InitializeConfiguration()
	settings.ReadDotenv(internal.DotEnvPath)
	settings.Settings = settings.NewSettings()

	rdb := store.InitDatabase(true)
	defer rdb.Close()
	rwdb := store.InitDatabase(false)
	defer rwdb.Close()
	store.RunMigrations(rwdb, internal.MigrationsDir)

	scriptStore := store.NewScriptSQLiteStore(rdb, rwdb)
	buildStore := store.NewBuildSQLiteStore(rdb, rwdb)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := service.NewPrometheusRecorder(registry)

	broadcaster := service.NewBroadcaster(recorder)
	executor := service.NewExecutor(
		scriptStore,
		buildStore,
		broadcaster,
		recorder,
		internal.Config.Shell,
		settings.Settings.BuildsDir,
		time.Duration(internal.Config.BuildTimeoutSeconds)*time.Second,
	)
	buildSvc := service.NewBuildService(scriptStore, buildStore, broadcaster, executor, recorder)
	scriptSvc := service.NewScriptService(scriptStore)

	// builds orphaned by an unclean shutdown are failed before any new
	// trigger is accepted
	if n, err := buildSvc.ReconcileInterruptedBuilds(context.Background()); err != nil {
		log.Fatal("fatal error reconciling interrupted builds:", err)
	} else if n > 0 {
		log.Printf("marked %d interrupted builds as failed\n", n)
	}

	cronSvc := service.NewCronService(
		scriptStore,
		buildStore,
		buildSvc,
		service.NewScheduler(),
		time.Duration(internal.Config.BuildRetentionDays)*24*time.Hour,
	)
	if err := cronSvc.Start(); err != nil {
		log.Fatal("fatal error starting cron service:", err)
	}
	defer cronSvc.Shutdown()

	e := setupEcho()
	e.GET("/healthz", handler.GetHealthz)
	e.GET("/metrics", echo.WrapHandler(
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	))
	handler.SetupWebhookRoutes(e, buildSvc)

	g := e.Group("")
	handler.SetupScriptRoutes(g, scriptSvc, buildSvc)
	handler.SetupBuildRoutes(g, buildSvc)
	handler.SetupConfigRoutes(g)

	internal.GracefulShutdown(e, settings.Settings.Port)
}

func setupEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(
		middleware.CORSWithConfig(internal.GetCORSConfig()),
		middleware.RateLimiterWithConfig(internal.GetRateLimiterConfig()),
	)
	return e
}
