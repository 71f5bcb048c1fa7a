package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"splitledger/internal/audit"
	"splitledger/internal/auth"
	"splitledger/internal/eventing"
	eventingrepo "splitledger/internal/eventing/infrastructure/postgres"
	rateapp "splitledger/internal/exchangerate/application"
	"splitledger/internal/exchangerate/infrastructure/bluelytics"
	raterepo "splitledger/internal/exchangerate/infrastructure/postgres"
	ratehttp "splitledger/internal/exchangerate/interfaces/http"
	ledgerapp "splitledger/internal/ledger/application"
	ledgerrepo "splitledger/internal/ledger/infrastructure/postgres"
	ledgerinterfaces "splitledger/internal/ledger/interfaces"
	"splitledger/internal/observability/metrics"
	"splitledger/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	ledgerCfg, err := ledgerapp.LoadConfig()
	if err != nil {
		logger.Fatalf("ledger config error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}
	if cfg.AutoMigrate {
		if err := migrations.Apply(context.Background(), db); err != nil {
			logger.Fatalf("migrate error: %v", err)
		}
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	store, err := ledgerrepo.NewStore(db)
	if err != nil {
		logger.Fatalf("ledger store error: %v", err)
	}
	projectChecker, err := auth.NewProjectChecker(store.Projects())
	if err != nil {
		logger.Fatalf("project checker error: %v", err)
	}

	rateClient, err := bluelytics.NewClient(ledgerCfg.ExchangeRate.URL, ledgerCfg.ExchangeRate.Timeout)
	if err != nil {
		logger.Fatalf("rate client error: %v", err)
	}
	rates, err := rateapp.NewCachedSource(rateClient, raterepo.NewHistoryRepository(db), rateapp.SystemClock{},
		rateapp.WithTTL(ledgerCfg.ExchangeRate.CacheTTL),
		rateapp.WithFetchTimeout(ledgerCfg.ExchangeRate.Timeout),
		rateapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("rate source error: %v", err)
	}

	bus := eventing.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(ledgerapp.EventSamples()...)
	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(bus, outboxStore, registry, dlqStore)
	publisher := ledgerinterfaces.NewOutboxPublisher(eventing.NewPublisher(outboxStore, dispatcher, cfg.TenantID, bus), cfg.TenantID)
	ledgerinterfaces.NewLoggingConsumer(logger).Register(bus, processedStore)
	go dispatcher.Run(context.Background(), cfg.DispatchInterval, 100, logger)

	clock := ledgerapp.SystemClock{}
	projects, err := ledgerapp.NewProjectService(store, clock)
	if err != nil {
		logger.Fatalf("project service error: %v", err)
	}
	expenses, err := ledgerapp.NewExpenseService(store, rates, publisher, clock)
	if err != nil {
		logger.Fatalf("expense service error: %v", err)
	}
	payments, err := ledgerapp.NewPaymentService(store, rates, publisher, clock, ledgerapp.WithDefaultRejectionReason(ledgerCfg.DefaultRejectionReason))
	if err != nil {
		logger.Fatalf("payment service error: %v", err)
	}
	contributions, err := ledgerapp.NewContributionService(store, rates, publisher, clock, ledgerapp.WithContributionRejectionReason(ledgerCfg.DefaultRejectionReason))
	if err != nil {
		logger.Fatalf("contribution service error: %v", err)
	}
	summaries, err := ledgerapp.NewSummaryService(store, rates)
	if err != nil {
		logger.Fatalf("summary service error: %v", err)
	}
	projectHandler, err := ledgerinterfaces.NewProjectHandler(ledgerinterfaces.Services{
		Projects:      projects,
		Expenses:      expenses,
		Payments:      payments,
		Contributions: contributions,
		Summaries:     summaries,
	}, projectChecker, auditRepo, ledgerCfg.Export)
	if err != nil {
		logger.Fatalf("project handler error: %v", err)
	}
	catalogs, err := ledgerapp.NewCatalogService(store, clock)
	if err != nil {
		logger.Fatalf("catalog service error: %v", err)
	}
	catalogHandler, err := ledgerinterfaces.NewCatalogHandler(catalogs, auditRepo)
	if err != nil {
		logger.Fatalf("catalog handler error: %v", err)
	}
	rateHandler, err := ratehttp.NewHandler(rates)
	if err != nil {
		logger.Fatalf("rate handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/projects", projectHandler)
	mux.Handle("/api/v1/projects/", projectHandler)
	mux.Handle("/api/v1/providers", catalogHandler)
	mux.Handle("/api/v1/providers/", catalogHandler)
	mux.Handle("/api/v1/categories", catalogHandler)
	mux.Handle("/api/v1/categories/", catalogHandler)
	mux.Handle("/api/v1/exchange-rate/", rateHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL      string
	HTTPAddr         string
	TenantID         string
	JWTSecret        string
	AutoMigrate      bool
	DispatchInterval time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:      getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		TenantID:         getenvDefault("TENANT_ID", "tenant-demo"),
		JWTSecret:        getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		AutoMigrate:      getenvBoolDefault("AUTO_MIGRATE", false),
		DispatchInterval: getenvDuration("OUTBOX_DISPATCH_INTERVAL", 5*time.Second),
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

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
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
