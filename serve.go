package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/audit"
	"github.com/jvaguiar05/smart-park-system/pkg/auth"
	"github.com/jvaguiar05/smart-park-system/pkg/crypto"
	"github.com/jvaguiar05/smart-park-system/pkg/database"
	"github.com/jvaguiar05/smart-park-system/pkg/handlers"
	"github.com/jvaguiar05/smart-park-system/pkg/metrics"
	"github.com/jvaguiar05/smart-park-system/pkg/middleware"
	"github.com/jvaguiar05/smart-park-system/pkg/repositories"
	"github.com/jvaguiar05/smart-park-system/pkg/services"
)

const shutdownTimeout = 15 * time.Second

func serveCommand() *cobra.Command {
	var migrateOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, migrateOnStart)
		},
	}

	cmd.Flags().BoolVar(&migrateOnStart, "migrate", true, "apply pending migrations before serving")
	return cmd
}

// meteredIngestAuditor counts rejected hardware reports alongside the audit log entry.
type meteredIngestAuditor struct {
	*audit.SecurityAuditor
	metrics *metrics.Metrics
}

func (a meteredIngestAuditor) LogIngestRejected(ctx context.Context, keyID, reason, clientIP string) {
	a.SecurityAuditor.LogIngestRejected(ctx, keyID, reason, clientIP)
	a.metrics.IngestRejected(reason)
}

func serve(ctx context.Context, migrateOnStart bool) error {
	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", cfg.Database.User+"@"+cfg.Database.Host+"/"+cfg.Database.Database),
		zap.String("redis", cfg.Redis.Addr()))

	if migrateOnStart {
		sqlDB, err := database.OpenSQL(cfg.Database.ConnectionString())
		if err != nil {
			return err
		}
		err = database.RunMigrations(sqlDB, logger)
		_ = sqlDB.Close()
		if err != nil {
			return err
		}
	}

	db, err := database.Connect(ctx, database.ConfigFrom(&cfg.Database), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Info("Redis not configured, status notifications disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	secrets, err := crypto.NewSecretBox(cfg.Ingest.SecretsKey)
	if err != nil {
		return fmt.Errorf("INGEST_SECRETS_KEY must be set: %w", err)
	}

	jwksClient, err := auth.NewJWKSClient(ctx, &auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		return err
	}
	defer jwksClient.Close()
	authMiddleware := auth.NewMiddleware(auth.NewAuthService(jwksClient, logger), logger)

	auditor := audit.NewSecurityAuditor(logger)

	// Repositories
	clientRepo := repositories.NewClientRepository()
	establishmentRepo := repositories.NewEstablishmentRepository()
	lotRepo := repositories.NewLotRepository()
	slotRepo := repositories.NewSlotRepository()
	lookupRepo := repositories.NewLookupRepository()
	memberRepo := repositories.NewMemberRepository()
	statusRepo := repositories.NewSlotStatusRepository()
	eventRepo := repositories.NewEventRepository()
	apiKeyRepo := repositories.NewAPIKeyRepository()
	cameraRepo := repositories.NewCameraRepository()
	publicRepo := repositories.NewPublicRepository()

	// Services
	callers := services.NewCallerLoader(memberRepo)
	catalogService := services.NewCatalogService(clientRepo, establishmentRepo, lotRepo, slotRepo, lookupRepo, auditor, logger)
	tenantService := services.NewTenantService(clientRepo, memberRepo, auditor, logger)
	statusService := services.NewSlotStatusService(slotRepo, statusRepo, eventRepo, cameraRepo,
		services.NewStatusPublisher(redisClient, cfg.Redis.Channel), auditor, m, cfg.Ingest.MaxClockSkew, logger)
	publicService := services.NewPublicService(publicRepo, auditor, logger)
	cameraService := services.NewCameraService(cameraRepo, auditor, logger)

	verifier := auth.NewIngestVerifier(apiKeyRepo, secrets, meteredIngestAuditor{SecurityAuditor: auditor, metrics: m},
		cfg.Ingest.MaxClockSkew, cfg.Ingest.MaxBodyBytes, logger)
	if redisClient != nil {
		verifier.WithReplayGuard(auth.NewRedisReplayGuard(redisClient))
	} else {
		verifier.WithReplayGuard(auth.NewMemoryReplayGuard())
	}

	scope := handlers.ScopeMiddleware(database.WithScopeMiddleware(db, logger))

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, m, logger).RegisterRoutes(mux)
	handlers.NewTenantsHandler(tenantService, callers, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewCatalogHandler(catalogService, callers, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewSlotStatusHandler(statusService, callers, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewCameraHandler(cameraService, callers, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewIngestHandler(statusService, cameraService, logger).RegisterRoutes(mux, verifier, scope)
	handlers.NewPublicHandler(publicService, logger).RegisterRoutes(mux, scope)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger, m)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting "+programName,
			zap.String("addr", server.Addr),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		var err error
		if cfg.TLSCertPath != "" {
			err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
		return err
	}
	return <-errCh
}
