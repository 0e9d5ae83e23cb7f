package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimasrn/lending-admin/internal/config"
	"github.com/nimasrn/lending-admin/internal/gateways"
	"github.com/nimasrn/lending-admin/internal/processor"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/logger"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"github.com/nimasrn/lending-admin/pkg/prom"
	"github.com/nimasrn/lending-admin/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger.Info("starting dispatcher", "version", version, "commit", commit, "date", date)
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

	redisAdap, err := redis.NewRedisAdapter("dispatcher", cfg.RedisUniversalKeyPrefix, cfg.Redis("dispatcher"))
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	providers := cfg.Providers()
	if len(providers) == 0 {
		logger.Error("no sms provider configured, set PROVIDER_PRIMARY_URL")
		return
	}
	sms, err := gateways.NewSMSClient(gateways.SMSConfigFor(providers))
	if err != nil {
		logger.Error("failed to create sms gateway", "error", err)
		return
	}
	defer sms.Close()

	var mail processor.EmailSender = disabledEmail{}
	if cfg.SmtpHost != "" {
		smtp, err := gateways.NewSMTPSender(gateways.SMTPConfig{
			Host:     cfg.SmtpHost,
			Port:     cfg.SmtpPort,
			User:     cfg.SmtpUser,
			Password: cfg.SmtpPass,
			From:     cfg.SmtpFrom,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			logger.Error("failed to create smtp sender", "error", err)
			return
		}
		defer smtp.Close()
		mail = smtp
	} else {
		logger.Warn("SMTP_HOST is empty, email communications will fail")
	}

	guard := processor.NewDeliveryGuard(redisAdap, processor.DefaultGuardConfig())
	handler := processor.NewCommunicationProcessor(repository.NewCommunicationRepository(db), sms, mail, guard)
	dispatcher := processor.NewDispatcher(redisAdap, processor.DispatcherConfigFrom(cfg), handler)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go func() {
		addr := cfg.AppDebugMetricsAddr
		if addr == "" {
			addr = ":9100"
		}
		prom.ListenAndServer(addr, cfg.AppDebugMetricsURI)
	}()

	if err := dispatcher.Start(); err != nil {
		logger.Error("failed to start dispatcher", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	dispatcher.Stop()
}
