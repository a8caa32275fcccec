// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/apporbit/apporbit-backend/internal/auth"
	"github.com/apporbit/apporbit-backend/internal/config"
	"github.com/apporbit/apporbit-backend/internal/database"
	"github.com/apporbit/apporbit-backend/internal/i18n"
	"github.com/apporbit/apporbit-backend/internal/models"
	"github.com/apporbit/apporbit-backend/internal/router"
	"github.com/apporbit/apporbit-backend/internal/services"
	"github.com/apporbit/apporbit-backend/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer st.Close()

	if err := i18n.Initialize(cfg.I18n.DefaultLocale); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize i18n")
	}

	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize identity verifier")
	}

	if err := seedAdmins(ctx, st, cfg.Admin.BootstrapEmails); err != nil {
		logrus.WithError(err).Fatal("Failed to seed admin roles")
	}

	var mailer services.Mailer
	if cfg.Email.Enabled() {
		mailer = services.NewSMTPMailer(cfg.Email)
	}
	notifications := services.NewNotificationService(mailer)
	defer notifications.Wait()

	storage, err := services.NewStorageService(cfg.AWS, cfg.Storage.UploadDir, fmt.Sprintf("http://%s:%s", cfg.Server.Host, cfg.Server.Port))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize storage")
	}

	limiter := router.NewRateLimiter(cfg.RateLimit)
	go limiter.Run(ctx)

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := router.Initialize(router.Dependencies{
		Store:       st,
		Verifier:    verifier,
		Notifier:    notifications,
		Intents:     services.NewStripeIntentCreator(cfg.Payment.StripeSecretKey),
		Storage:     storage,
		RateLimiter: limiter,
	}, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}

	logrus.Info("Server exited")
}

func setupLogging(cfg *config.Config) {
	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(logrus.DebugLevel)
}

func openStore(cfg config.DatabaseConfig) (store.Store, error) {
	if cfg.Driver == config.DatabaseDriverMemory {
		logrus.Warn("Using in-memory store; data is lost on restart")
		return store.NewMemory(), nil
	}

	db, err := database.Initialize(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store.NewGorm(db), nil
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (auth.Verifier, error) {
	var verifier auth.Verifier
	switch cfg.Provider {
	case config.AuthProviderJWT:
		logrus.Warn("Using shared-secret JWT verification; development only")
		verifier = auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	default:
		fv, err := auth.NewFirebaseVerifier(ctx, cfg.FirebaseCredentialsFile, cfg.FirebaseProjectID)
		if err != nil {
			return nil, err
		}
		verifier = fv
	}
	return auth.WithTimeout(verifier, cfg.VerifyTimeout), nil
}

func seedAdmins(ctx context.Context, st store.Store, emails []string) error {
	users := services.NewUserService(st.Users())
	for _, email := range emails {
		if err := users.EnsureRole(ctx, email, models.RoleAdmin); err != nil {
			return fmt.Errorf("seed admin %s: %w", email, err)
		}
		logrus.WithField("email", email).Info("Admin role ensured")
	}
	return nil
}
