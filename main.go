package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis/v3"
	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"github.com/wardenhq/warden/internal/common"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/ddos"
	"github.com/wardenhq/warden/internal/gdpr"
	"github.com/wardenhq/warden/internal/handlers/api"
	"github.com/wardenhq/warden/internal/incident"
	"github.com/wardenhq/warden/internal/mail"
	"github.com/wardenhq/warden/internal/middlewares"
	"github.com/wardenhq/warden/internal/middlewares/guard"
	"github.com/wardenhq/warden/internal/middlewares/secheaders"
	"github.com/wardenhq/warden/internal/privacy"
	"github.com/wardenhq/warden/internal/ratelimit"
	"github.com/wardenhq/warden/internal/render"
	"github.com/wardenhq/warden/internal/security"
	"github.com/wardenhq/warden/internal/store"
	"github.com/wardenhq/warden/internal/vulnscan"
	"github.com/wardenhq/warden/model"
	"github.com/wardenhq/warden/params"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "warden - request protection and data compliance engine"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func mustInitDatabase(dbConfig config.MySQLConfig) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dbConfig.Dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   dbConfig.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if dbConfig.ReplicaDsn != "" {
		err := db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: []gorm.Dialector{mysql.Open(dbConfig.ReplicaDsn)},
		}))
		if err != nil {
			slog.Error("Failed to register read replica", "error", err)
			os.Exit(1)
		}
	}

	sqlDB, err := db.DB()
	if err == nil {
		if dbConfig.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
		}
		if dbConfig.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
		}
		if dbConfig.ConnMaxIdleTime > 0 {
			sqlDB.SetConnMaxIdleTime(time.Duration(dbConfig.ConnMaxIdleTime) * time.Second)
		}
		if dbConfig.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Second)
		}
	}

	if err := model.AutoMigrate(db); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}
	return db
}

func mustInitRedisStorage(redisCfg config.RedisConfig) *redis.Storage {
	return redis.New(redis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
}

func mustInitMailSender(mailCfg config.MailConfig) mail.MailSender {
	switch mailCfg.Backend {
	case "smtp":
		from := mailCfg.From
		if from == "" {
			from = mailCfg.SMTP.From
		}
		sender, err := mail.NewSMTPMailSender(mail.SMTPConfig{
			Host:     mailCfg.SMTP.Host,
			Port:     mailCfg.SMTP.Port,
			Username: mailCfg.SMTP.Username,
			Password: mailCfg.SMTP.Password,
			TLS:      mailCfg.SMTP.TLS,
			CertFile: mailCfg.SMTP.CertFile,
			KeyFile:  mailCfg.SMTP.KeyFile,
			CAFile:   mailCfg.SMTP.CAFile,
		}, from)
		if err != nil {
			slog.Error("Failed to initialize SMTP sender", "error", err)
			os.Exit(1)
		}
		return sender
	case "", "log":
		slog.Warn("No mail backend configured, messages will only be logged")
		return mail.NewLogSender()
	default:
		slog.Error("Unsupported mail sender backend", "backend", mailCfg.Backend)
		os.Exit(1)
		return nil
	}
}

func setupAPIRoutes(router fiber.Router, gdprHandler *api.GDPRHandler, securityHandler *api.SecurityHandler) {
	router.Post("/api/gdpr/requests", gdprHandler.PostRequest)
	router.Post("/api/gdpr/requests/:id/verify", gdprHandler.PostVerify)
	router.Post("/api/gdpr/requests/:id/process", gdprHandler.PostProcess)
	router.Get("/api/gdpr/requests/:id", gdprHandler.GetRequest)
	router.Get("/api/gdpr/statistics", gdprHandler.GetStatistics)
	router.Get("/api/gdpr/report", gdprHandler.GetReport)
	router.Get("/api/security/events", securityHandler.GetEvents)
	router.Get("/api/security/statistics", securityHandler.GetStatistics)
	router.Post("/api/security/unblock/:ip", securityHandler.PostUnblock)
	router.Get("/api/logs/export", securityHandler.GetLogsExport)
	router.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
}

func startSweeps(ctx context.Context, privacyLogger *privacy.Logger, manager *gdpr.Manager, hasher *privacy.Hasher) {
	go runTicker(ctx, params.RetentionSweepInterval, func(ctx context.Context) {
		report, err := privacyLogger.Sweep(ctx)
		if err != nil {
			slog.Warn("retention sweep failed", "error", err)
			return
		}
		if report.Purged > 0 || report.Anonymized > 0 {
			slog.Info("retention sweep done", "purged", report.Purged, "anonymized", report.Anonymized)
		}
	})
	go runTicker(ctx, params.GDPRCleanupInterval, func(ctx context.Context) {
		expired, err := manager.CleanupExpired(ctx)
		if err != nil {
			slog.Warn("gdpr cleanup failed", "error", err)
			return
		}
		if expired > 0 {
			slog.Info("gdpr cleanup done", "expired", expired)
		}
	})
	go runTicker(ctx, params.IPSaltRotationInterval, func(ctx context.Context) {
		hasher.Rotate()
		slog.Info("ip hash salt rotated")
	})
}

func runTicker(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func run(ctx *cli.Context) error {
	config, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}

	mustInitLogger(config.Debug || ctx.IsSet(debugFlag.Name))

	globalVars := fiber.Map{
		"siteName": config.SiteName,
		"baseURL":  config.BaseURL,
	}
	if err := render.Initialize(globalVars, config.TemplateDir); err != nil {
		slog.Error("Template initialization failed", "error", err)
		return err
	}
	mailSender := mustInitMailSender(config.Mail)

	// the counter store backs rate limiting, DDoS blocks, incident counters,
	// verification challenges and tier lookups; redis when configured, local
	// memory otherwise
	var (
		counterStore store.Storage
		rdb          goredis.UniversalClient
	)
	if config.Redis.URL != "" {
		redisStorage := mustInitRedisStorage(config.Redis)
		rdb = redisStorage.Conn()
		counterStore = store.NewRedisStorage(rdb)
	} else {
		slog.Warn("No redis configured, using in-process counter store")
		counterStore = store.NewMemoryStorage()
	}

	var (
		db          *gorm.DB
		logRepo     privacy.LogRepository
		auditRepo   privacy.AuditRepository
		requestRepo gdpr.RequestRepository
	)
	if config.MySQL.Dsn != "" {
		db = mustInitDatabase(config.MySQL)
		logRepo = privacy.NewGormLogRepository(db)
		auditRepo = privacy.NewGormAuditRepository(db)
		requestRepo = gdpr.NewGormRequestRepository(db)
	} else {
		slog.Warn("No database configured, log and request stores are in-process")
		logRepo = privacy.NewMemoryLogRepository()
		auditRepo = privacy.NewMemoryAuditRepository()
		requestRepo = gdpr.NewMemoryRequestRepository()
	}

	// privacy and compliance layer
	hasher := privacy.NewHasher(config.Security.IdentityHashKey, config.Security.IPHashSecret)
	privacyLogger := privacy.NewLogger(config.Production, hasher, nil, logRepo, auditRepo)
	challengers := gdpr.NewChallengers(config.Security.VerifyTokenSecret, counterStore,
		mailSender, config.BaseURL+"/api/gdpr/verify")
	complianceManager := gdpr.NewManager(requestRepo, privacyLogger, challengers)
	complianceManager.SetMailSender(mailSender)

	// protection layer
	ddosGuard := ddos.NewGuard(counterStore)
	ddosGuard.SetSuspicionReporter(func(ip string, count int64) {
		slog.Warn("suspicious request rate", "ipHash", hasher.HashIP(ip), "count", count)
	})
	history := security.NewHistory(params.SecurityEventHistoryMax)
	responder := incident.NewResponder(counterStore, ddosGuard, history, privacyLogger)
	limiter := ratelimit.NewAdaptiveLimiter(
		ratelimit.NewLimiter(counterStore),
		ratelimit.NewStorageTierSource(counterStore),
	)

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.ErrorHandler,
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(config.AllowOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-CSRF-Token",
	}))
	router.Use(secheaders.New(config.Production))
	router.Use(guard.New(guard.Config{
		DDoS:             ddosGuard,
		Scanner:          vulnscan.New(),
		Limiter:          limiter,
		Responder:        responder,
		Production:       config.Production,
		CSRFExcludePaths: config.Security.CSRFExcludePaths,
		Identity: func(c *fiber.Ctx) string {
			// the auth layer upstream stores the caller identity here
			id, _ := c.Locals("userId").(string)
			return id
		},
	}))

	setupAPIRoutes(router,
		api.NewGDPRHandler(complianceManager),
		api.NewSecurityHandler(history, ddosGuard, privacyLogger),
	)

	sweepCtx, stopSweeps := context.WithCancel(ctx.Context)
	defer stopSweeps()
	startSweeps(sweepCtx, privacyLogger, complianceManager, hasher)

	healthCheckCtx, term := context.WithCancel(ctx.Context)
	done := make(chan struct{})
	go common.StartHealthCheckServer(healthCheckCtx, done, rdb, db)
	defer func() {
		term()
		<-done
	}()
	return router.Listen(config.ListenAddr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
