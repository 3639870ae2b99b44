package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"

	apikeyhandler "aegis/internal/apikey/handler"
	apikeysvc "aegis/internal/apikey/service"
	apikeystore "aegis/internal/apikey/store"
	apphandler "aegis/internal/app/handler"
	appsvc "aegis/internal/app/service"
	appstore "aegis/internal/app/store"
	"aegis/internal/audit"
	guardrailhandler "aegis/internal/guardrail/handler"
	guardrailmetrics "aegis/internal/guardrail/metrics"
	guardrailsvc "aegis/internal/guardrail/service"
	guardrailstore "aegis/internal/guardrail/store"
	obshandler "aegis/internal/observability/handler"
	obsmetrics "aegis/internal/observability/metrics"
	obssvc "aegis/internal/observability/service"
	obsstore "aegis/internal/observability/store"
	"aegis/internal/platform/config"
	"aegis/internal/platform/httpserver"
	"aegis/internal/platform/logger"
	"aegis/internal/platform/middleware"
	"aegis/internal/policy/compiler"
	policyhandler "aegis/internal/policy/handler"
	policymetrics "aegis/internal/policy/metrics"
	policysvc "aegis/internal/policy/service"
	policystore "aegis/internal/policy/store"
	tenanthandler "aegis/internal/tenant/handler"
	tenantmetrics "aegis/internal/tenant/metrics"
	tenantsvc "aegis/internal/tenant/service"
	tenantstore "aegis/internal/tenant/store"
	httptransport "aegis/internal/transport/http"
)

type stores struct {
	tenants    tenantsvc.TenantStore
	guardrails guardrailsvc.GuardrailStore
	policies   policysvc.PolicyStore
	apps       appsvc.ApplicationStore
	keys       apikeysvc.KeyStore
	logs       obssvc.LogStore
	audit      audit.Store
	catalog    obssvc.CatalogStats
}

// main wires dependencies and owns process lifecycle. Business logic lives
// in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditMetrics := audit.NewMetrics()
	st, cleanup, err := buildStores(ctx, cfg, log, auditMetrics)
	if err != nil {
		log.Error("store initialization failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	recorder := audit.NewRecorder(st.audit, log, auditMetrics)

	tenantService := tenantsvc.New(st.tenants,
		tenantsvc.WithLogger(log),
		tenantsvc.WithRecorder(recorder),
		tenantsvc.WithMetrics(tenantmetrics.New()),
	)
	guardrailService := guardrailsvc.New(st.guardrails,
		guardrailsvc.WithLogger(log),
		guardrailsvc.WithRecorder(recorder),
		guardrailsvc.WithMetrics(guardrailmetrics.New()),
	)
	appService := appsvc.New(st.apps,
		appsvc.WithLogger(log),
		appsvc.WithRecorder(recorder),
	)
	policyService := policysvc.New(st.policies, tenantService,
		policysvc.NewComposer(guardrailService),
		compiler.New(cfg.CompilerBaseURL, cfg.CompilerTimeout),
		policysvc.WithLogger(log),
		policysvc.WithRecorder(recorder),
		policysvc.WithMetrics(policymetrics.New()),
		policysvc.WithBinder(appService),
	)
	apikeyService := apikeysvc.New(st.keys, cfg.Env,
		apikeysvc.WithLogger(log),
		apikeysvc.WithRecorder(recorder),
	)

	obsMetrics := obsmetrics.New()
	aggregator := obssvc.NewAggregator(st.logs, st.catalog,
		obssvc.WithLogger(log),
		obssvc.WithMetrics(obsMetrics),
	)
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	cached := obssvc.NewCachedSummarizer(aggregator, redisClient, cfg.AggregateCacheTTL, log, obsMetrics)

	router := httptransport.NewRouter(middleware.NewHMACValidator(cfg.JWTSigningKey), log,
		tenanthandler.New(tenantService, log),
		guardrailhandler.New(guardrailService, tenantService, log),
		policyhandler.New(policyService, log),
		apphandler.New(appService, tenantService, log),
		obshandler.New(cached, aggregator, cached, tenantService, log),
		apikeyhandler.New(apikeyService, tenantService, log),
	)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting aegis", "addr", cfg.Addr, "env", cfg.Env)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// buildStores selects postgres-backed stores when a database URL is
// configured, in-memory otherwise. The in-memory path exists for local
// development only; it loses everything on restart.
func buildStores(ctx context.Context, cfg config.Config, log *slog.Logger, auditMetrics *audit.Metrics) (*stores, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("no database configured, using in-memory stores")
		apps := appstore.NewInMemoryStore()
		policies := policystore.NewInMemoryStore()
		return &stores{
			tenants:    tenantstore.NewInMemoryStore(),
			guardrails: guardrailstore.NewInMemoryStore(),
			policies:   policies,
			apps:       apps,
			keys:       apikeystore.NewInMemoryStore(),
			logs:       obsstore.NewInMemoryStore(),
			audit:      audit.NewInMemoryStore(),
			catalog:    obssvc.NewStoreCatalogStats(apps, policies),
		}, func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	// The audit outbox runs on database/sql so the worker and the recorder
	// share lib/pq's array handling.
	outboxDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	auditStore := audit.NewPostgresStore(outboxDB)
	cleanup := func() {
		pool.Close()
		_ = outboxDB.Close()
	}

	if len(cfg.KafkaBrokers) > 0 {
		client, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.KafkaBrokers...),
			kgo.DefaultProduceTopic(audit.Topic),
		)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		worker := audit.NewWorker(auditStore, client, log, auditMetrics)
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit worker stopped", "error", err)
			}
			client.Close()
		}()
	}

	apps := appstore.NewPostgresStore(pool)
	policies := policystore.NewPostgresStore(pool)
	return &stores{
		tenants:    tenantstore.NewPostgresStore(pool),
		guardrails: guardrailstore.NewPostgresStore(pool),
		policies:   policies,
		apps:       apps,
		keys:       apikeystore.NewPostgresStore(pool),
		logs:       obsstore.NewPostgresStore(pool),
		audit:      auditStore,
		catalog:    obssvc.NewStoreCatalogStats(apps, policies),
	}, cleanup, nil
}
