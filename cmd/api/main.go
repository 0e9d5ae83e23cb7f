package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/nimasrn/lending-admin/internal/auth"
	"github.com/nimasrn/lending-admin/internal/config"
	"github.com/nimasrn/lending-admin/internal/handlers"
	"github.com/nimasrn/lending-admin/internal/processor"
	"github.com/nimasrn/lending-admin/internal/queue"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/internal/scheduler"
	"github.com/nimasrn/lending-admin/internal/services"
	xhttp "github.com/nimasrn/lending-admin/pkg/http"
	"github.com/nimasrn/lending-admin/pkg/logger"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"github.com/nimasrn/lending-admin/pkg/prom"
	"github.com/nimasrn/lending-admin/pkg/redis"
	"github.com/nimasrn/lending-admin/pkg/storage"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const dashboardJob = "dashboard-refresh"

func main() {
	logger.Info("starting api", "version", version, "commit", commit, "date", date)
	defer logger.Sync()

	err := config.Load(config.ArgEnvPath(os.Args))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), cfg.AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("api", cfg.RedisUniversalKeyPrefix, cfg.Redis("api"))
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	stream, err := queue.New(redisAdap, processor.DispatcherConfigFrom(cfg).Stream)
	if err != nil {
		logger.Error("failed creating communications stream", "error", err)
		return
	}

	files, err := storage.NewS3Store(context.Background(), storage.Options{
		URL:    cfg.S3Endpoint,
		Bucket: cfg.S3Bucket,
		Region: cfg.S3Region,
		Credential: aws.Credentials{
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
		},
		LinkExpireIn: cfg.S3LinkExpireIn,
	})
	if err != nil {
		logger.Error("failed creating document storage", "error", err)
		return
	}

	enforcer, err := auth.NewEnforcer()
	if err != nil {
		logger.Error("failed loading rbac policy", "error", err)
		return
	}

	// repositories
	tenantRepo := repository.NewTenantRepository(db)
	userRepo := repository.NewUserRepository(db)
	loanRepo := repository.NewLoanRepository(db)
	reportRepo := repository.NewReportRepository(db)
	commRepo := repository.NewCommunicationRepository(db)

	// auth
	tokens := auth.NewTokens(cfg.JwtSecret, cfg.JwtAccessTTL, cfg.JwtRefreshTTL, redisAdap)
	throttle := auth.NewThrottle(redisAdap, cfg.LoginMaxFails, cfg.LoginLockWindow)
	resolver := auth.NewTenantResolver(tenantRepo, cfg.TenantCacheSize, cfg.TenantCacheTTL)
	guard := auth.NewGuard(tokens, userRepo, resolver, enforcer)

	// services
	audit := services.NewAuditService(userRepo)
	authService := services.NewAuthService(userRepo, tokens, throttle, audit)
	tenantService := services.NewTenantService(db, tenantRepo, userRepo, tokens, audit)
	userService := services.NewUserService(db, userRepo, tenantRepo, audit, cfg.AppName)
	crmService := services.NewCRMService(db, tenantRepo, audit)
	losService := services.NewLOSService(db, loanRepo, tenantRepo, audit)
	lmsService := services.NewLMSService(db, loanRepo, audit)
	documentService := services.NewDocumentService(db, files, tenantRepo, tenantRepo, audit, cfg.DocumentMaxSize)
	commService := services.NewCommunicationService(db, stream, tenantRepo, audit)
	complianceService := services.NewComplianceService(db, tenantRepo, audit)
	integrationService := services.NewIntegrationService(db, repository.NewIntegrationRepository(db), commRepo, tenantRepo, audit, cfg.WebhookSecret)
	onboardingService := services.NewOnboardingService(db, audit)
	reportService := services.NewReportService(db, reportRepo, redisAdap, cfg.ReportCacheTTL, tenantRepo, audit)
	dashboardService := services.NewDashboardService(repository.NewDashboardRepository(db), reportRepo)
	settingService := services.NewSettingService(repository.NewSettingRepository(db), audit)
	panelService := services.NewAdminPanelService(db, repository.NewSubscriptionRepository(db), tenantRepo, audit)
	healthService := services.NewHealthService(db, redisAdap)

	// transport
	s := xhttp.NewServer(xhttp.ServerOption{
		ReadTimeout:        cfg.HttpServerReadTimeout,
		WriteTimeout:       cfg.HttpServerWriteTimeout,
		ReadBufferSize:     cfg.HttpServerReadBufferSize,
		WriteBufferSize:    cfg.HttpServerWriteBufferSize,
		MaxRequestBodySize: int(cfg.DocumentMaxSize) + 1<<20,
	})
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(prom.Middleware)
	s.Use(xhttp.CORSMiddleware(xhttp.CORSOptions{AllowedOrigins: cfg.CorsOrigins(), MaxAge: time.Hour}))
	s.Use(xhttp.TimeoutMiddleware(cfg.HttpRequestTimeout))
	s.Use(xhttp.CompressMiddleware)

	handlers.RegisterAuthRoutes(s.Router, guard, handlers.NewAuthHandler(authService))

	g := s.Router.Group("/api/v1")
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(healthService))
	handlers.RegisterTenantRoutes(g, guard, handlers.NewTenantHandler(tenantService))
	handlers.RegisterUserRoutes(g, guard, handlers.NewUserHandler(userService, userService.AuditLogs))
	handlers.RegisterCRMRoutes(g, guard, handlers.NewCRMHandler(crmService))
	handlers.RegisterLoanRoutes(g, guard, handlers.NewLoanHandler(losService, lmsService))
	handlers.RegisterOperationsRoutes(g, guard, handlers.NewOperationsHandler(documentService, commService, complianceService, integrationService, onboardingService))
	handlers.RegisterReportRoutes(g, guard, handlers.NewReportHandler(reportService, reportService.SavedReports, reportService.Analytics))
	handlers.RegisterAdminPanelRoutes(g, guard, handlers.NewAdminPanelHandler(panelService, settingService, dashboardService))

	// metrics
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	if cfg.AppDebugMetricsAddr != "" {
		go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)
	}

	// scheduled jobs
	sched := scheduler.New(redisAdap.Client(), scheduler.Options{LockPrefix: cfg.RedisUniversalKeyPrefix + "cron:"})
	err = sched.Add(dashboardJob, cfg.DashboardRefreshSpec, func(ctx context.Context) error {
		_, err := dashboardService.Refresh(ctx)
		return err
	})
	if err != nil {
		logger.Error("failed to schedule dashboard refresh", "error", err)
		return
	}
	sched.Start()

	s.CloseOnSignal(sched.Stop)
	if err := s.ListenAndServe(cfg.HttpListenAddr); err != nil {
		logger.Error("error in running http-server", "error", err)
	}
}
