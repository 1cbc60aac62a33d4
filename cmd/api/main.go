package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"cogi/internal/captcha"
	"cogi/internal/completion"
	"cogi/internal/config"
	"cogi/internal/database"
	_ "cogi/internal/docs" // Import swagger docs
	"cogi/internal/handlers"
	"cogi/internal/locks"
	"cogi/internal/logger"
	"cogi/internal/mail"
	"cogi/internal/password"
	"cogi/internal/router"
	"cogi/internal/services"
	"cogi/internal/session"
	"cogi/internal/tokens"
)

// @title           Cogi API
// @version         1.0
// @description     Cogi is a chat companion: accounts with confirmed email, idle-limited sessions and multi-thread conversations with an assistant.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey SessionAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description Operator API key.

const shutdownTimeout = 10 * time.Second

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create database manager
	dbManager, err := database.NewManager(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("failed to close database: %v", err)
		}
	}()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Session store and per-thread lock
	var (
		sessions session.Store = session.NewMemoryStore()
		locker   locks.Locker  = locks.NewKeyedMutex()
	)
	if cfg.Session.Store == "redis" {
		rdb, err := database.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		sessions = session.NewRedisStore(rdb, cfg.Session.IdleTimeout)
		locker = locks.NewRedisLocker(rdb, cfg.Completion.TurnLockTTL())
		log.Infof("Using redis at %s for sessions and thread locks", cfg.Redis.Addr)
	}

	// External capabilities
	client, err := completion.NewClient(ctx, cfg.Completion)
	if err != nil {
		return fmt.Errorf("failed to create completion client: %w", err)
	}
	generator := completion.NewGenerator(client, completion.OptionsFromConfig(cfg.Completion))

	mailer, err := mail.New(cfg.Mail)
	if err != nil {
		return fmt.Errorf("failed to create mailer: %w", err)
	}
	verifier := captcha.New(cfg.Captcha)

	// Initialize services
	db := dbManager.DB()
	auditService := services.NewAuditService(db)
	userService := services.NewUserService(db, password.NewHasher(cfg.Auth.BcryptCost))
	authService := services.NewAuthService(
		userService,
		sessions,
		tokens.NewIssuer(cfg.SecretKey, cfg.Auth.TokenMaxAge),
		mailer,
		verifier,
		auditService,
		services.AuthConfig{
			MaxLoginAttempts: cfg.Auth.MaxLoginAttempts,
			IdleTimeout:      cfg.Session.IdleTimeout,
			PublicBaseURL:    cfg.PublicBaseURL,
			PasswordResetURL: cfg.Auth.PasswordResetURL,
		},
	)
	threadService := services.NewThreadService(db, generator, locker, auditService)
	ledgerService := services.NewLedgerService(db)

	engine := router.New(router.Services{
		Users:   userService,
		Auth:    authService,
		Threads: threadService,
		Ledger:  ledgerService,
		Audit:   auditService,
	}, router.Options{
		CORSOrigin:  cfg.CORSOrigin,
		AdminAPIKey: cfg.AdminAPIKey,
		Cookie: handlers.CookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.CookieSecure,
		},
		Swagger: !cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Starting Cogi server on port %s", cfg.Port)
		if !cfg.IsProduction() {
			log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", cfg.Port)
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
