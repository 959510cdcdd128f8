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
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers/auth"
	"storefront/internal/repository"
	"storefront/internal/routes"
	"storefront/internal/services"
	"storefront/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	clients, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer clients.Close(context.Background())

	store, err := newStore(ctx, cfg, clients)
	if err != nil {
		return err
	}

	auditSink, err := newAuditSink(cfg, clients, logger)
	if err != nil {
		return err
	}
	auditor := utils.NewAuditor(auditSink, logger)
	defer auditor.Wait()

	images, uploadsDir, err := newImageStore(cfg, clients)
	if err != nil {
		return err
	}

	if err := auth.SeedAdmin(ctx, store, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, logger); err != nil {
		return err
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewRouter(routes.Dependencies{
		Store:       store,
		Redis:       clients.Redis,
		Images:      images,
		Auditor:     auditor,
		Issuer:      utils.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Logger:      logger,
		CORSOrigins: cfg.Server.CORSOrigins,
		UploadsDir:  uploadsDir,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Storefront API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newStore(ctx context.Context, cfg *config.Config, clients *database.Clients) (repository.Store, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return repository.NewMemoryStore(), nil
	case "mongo":
		store := repository.NewMongoStore(clients.MongoDB)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// newAuditSink prefers Scylla, then Mongo, then the log.
func newAuditSink(cfg *config.Config, clients *database.Clients, logger *zap.Logger) (utils.AuditSink, error) {
	switch {
	case clients.Scylla != nil:
		return utils.NewScyllaAuditSink(clients.Scylla)
	case clients.MongoDB != nil:
		return utils.NewMongoAuditSink(clients.MongoDB), nil
	}
	logger.Warn("Audit records go to the log only", zap.String("storage", cfg.Storage.Driver))
	return utils.NewLogAuditSink(logger), nil
}

// newImageStore returns the uploads dir to serve when images stay local.
func newImageStore(cfg *config.Config, clients *database.Clients) (services.ImageStore, string, error) {
	if clients.MinIO != nil {
		return services.NewMinIOImageStore(clients.MinIO, cfg.MinIO.Bucket, cfg.MinIO.Endpoint, cfg.MinIO.UseSSL), "", nil
	}
	store, err := services.NewLocalImageStore(cfg.Server.UploadsDir, "/uploads")
	if err != nil {
		return nil, "", err
	}
	return store, cfg.Server.UploadsDir, nil
}
