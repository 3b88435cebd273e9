package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	analyticsapp "gridflow/internal/analytics/application"
	analyticsinterfaces "gridflow/internal/analytics/interfaces"
	apihttp "gridflow/internal/api/http"
	"gridflow/internal/auth"
	"gridflow/internal/eventing"
	"gridflow/internal/observability/metrics"
	spatialapp "gridflow/internal/spatial/application"
	telemetrypostgres "gridflow/internal/telemetry/infrastructure/postgres"
	"gridflow/internal/telemetry/interfaces/ingest"
	triggerapp "gridflow/internal/trigger/application"
	triggerpostgres "gridflow/internal/trigger/infrastructure/postgres"
	triggerinterfaces "gridflow/internal/trigger/interfaces"
	triggernotify "gridflow/internal/trigger/notify"
	workflowapp "gridflow/internal/workflow/application"
	workflowpostgres "gridflow/internal/workflow/infrastructure/postgres"
	workflowhttp "gridflow/internal/workflow/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init()

	telemetryRepo := telemetrypostgres.NewTelemetryRepository(db)
	workflowRepo := workflowpostgres.NewWorkflowRepository(db)
	executionRepo := workflowpostgres.NewExecutionRepository(db)
	thresholdRepo := triggerpostgres.NewThresholdRepository(db)

	workflowService, err := workflowapp.NewService(workflowRepo, executionRepo)
	if err != nil {
		logger.Fatalf("workflow service error: %v", err)
	}

	analyticsEngine, err := analyticsapp.NewEngine(telemetryRepo, logger,
		analyticsapp.WithAnomalyThreshold(cfg.AnomalyStddevs),
		analyticsapp.WithTrendTolerance(cfg.TrendTolerance),
	)
	if err != nil {
		logger.Fatalf("analytics engine error: %v", err)
	}
	spatialAnalyzer, err := spatialapp.NewAnalyzer(telemetryRepo, logger,
		spatialapp.WithAnomalySource(analyticsEngine),
		spatialapp.WithClusterDistance(cfg.ClusterDistanceKm),
		spatialapp.WithHotspotPercentile(cfg.HotspotPercentile),
	)
	if err != nil {
		logger.Fatalf("spatial analyzer error: %v", err)
	}

	coordinatorOpts := []triggerapp.CoordinatorOption{
		triggerapp.WithRepository(thresholdRepo),
	}
	if cfg.TriggerWebhookURL != "" {
		notifier, err := triggernotify.NewWebhookNotifier(cfg.TriggerWebhookURL, logger,
			triggernotify.WithRequestTimeout(cfg.TriggerWebhookTimeout))
		if err != nil {
			logger.Fatalf("trigger notifier error: %v", err)
		}
		coordinatorOpts = append(coordinatorOpts, triggerapp.WithNotifier(notifier))
	}
	coordinator, err := triggerapp.NewCoordinator(workflowService, logger, coordinatorOpts...)
	if err != nil {
		logger.Fatalf("trigger coordinator error: %v", err)
	}
	if count, err := coordinator.LoadFromRepository(context.Background()); err != nil {
		logger.Fatalf("threshold hydration error: %v", err)
	} else if count > 0 {
		logger.Printf("loaded %d thresholds from registry", count)
	}
	thresholdCfg, err := triggerapp.LoadConfig(cfg.ThresholdConfigPath)
	if err != nil {
		logger.Fatalf("threshold config error: %v", err)
	}
	if count, err := coordinator.RegisterConfigured(context.Background(), thresholdCfg); err != nil {
		logger.Fatalf("threshold config register error: %v", err)
	} else if count > 0 {
		logger.Printf("registered %d thresholds from %s", count, cfg.ThresholdConfigPath)
	}

	bus := eventing.NewInMemoryEventBus()
	bridge, err := triggerinterfaces.NewStreamBridge(bus, cfg.StreamBuffer, logger)
	if err != nil {
		logger.Fatalf("stream bridge error: %v", err)
	}
	go func() {
		if err := coordinator.ProcessTelemetryStream(context.Background(), bridge.Stream()); err != nil {
			logger.Printf("telemetry stream stopped: %v", err)
		}
	}()

	ingestHandler, err := ingest.NewHandler(telemetryRepo, bus, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	workflowHandler, err := workflowhttp.NewHandler(workflowService, executionRepo)
	if err != nil {
		logger.Fatalf("workflow handler error: %v", err)
	}
	thresholdHandler, err := triggerinterfaces.NewThresholdHandler(coordinator)
	if err != nil {
		logger.Fatalf("threshold handler error: %v", err)
	}
	reportHandler, err := analyticsinterfaces.NewReportHandler(analyticsEngine)
	if err != nil {
		logger.Fatalf("report handler error: %v", err)
	}
	spatialHandler, err := apihttp.NewSpatialHandler(spatialAnalyzer)
	if err != nil {
		logger.Fatalf("spatial handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/ingest/telemetry", ingestHandler)
	mux.Handle("/api/v1/workflows", workflowHandler)
	mux.Handle("/api/v1/workflows/", workflowHandler)
	mux.Handle("/api/v1/thresholds", thresholdHandler)
	mux.Handle("/api/v1/conditions/validate", apihttp.NewConditionValidateHandler())
	mux.Handle("/api/v1/analytics/report", reportHandler)
	mux.Handle("/api/v1/analytics/spatial", spatialHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", apihttp.NewHealthzHandler(db))

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL           string
	HTTPAddr              string
	JWTSecret             string
	ThresholdConfigPath   string
	TriggerWebhookURL     string
	TriggerWebhookTimeout time.Duration
	StreamBuffer          int
	AnomalyStddevs        float64
	TrendTolerance        float64
	ClusterDistanceKm     float64
	HotspotPercentile     float64
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:           getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:              getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:             getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		ThresholdConfigPath:   getenvDefault("THRESHOLD_CONFIG_PATH", ""),
		TriggerWebhookURL:     getenvDefault("TRIGGER_WEBHOOK_URL", ""),
		TriggerWebhookTimeout: getenvDuration("TRIGGER_WEBHOOK_TIMEOUT", 5*time.Second),
		StreamBuffer:          getenvIntDefault("STREAM_BUFFER", 256),
		AnomalyStddevs:        getenvFloatDefault("ANOMALY_STDDEVS", 3),
		TrendTolerance:        getenvFloatDefault("TREND_TOLERANCE", 0.05),
		ClusterDistanceKm:     getenvFloatDefault("CLUSTER_DISTANCE_KM", 1),
		HotspotPercentile:     getenvFloatDefault("HOTSPOT_PERCENTILE", 0.9),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
