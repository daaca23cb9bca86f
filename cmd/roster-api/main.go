package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-roster-api/api/swagger"
	"github.com/noah-isme/sma-roster-api/internal/handler"
	"github.com/noah-isme/sma-roster-api/internal/repository"
	"github.com/noah-isme/sma-roster-api/internal/router"
	"github.com/noah-isme/sma-roster-api/internal/service"
	"github.com/noah-isme/sma-roster-api/pkg/certificate"
	"github.com/noah-isme/sma-roster-api/pkg/config"
	"github.com/noah-isme/sma-roster-api/pkg/database"
	"github.com/noah-isme/sma-roster-api/pkg/lock"
	"github.com/noah-isme/sma-roster-api/pkg/logger"
	"github.com/noah-isme/sma-roster-api/pkg/storage"
)

// @title Student Roster API
// @version 1.0.0
// @description Student roster management with spreadsheet exports and completion certificates
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	checks := map[string]handler.ReadinessCheck{}

	store, closeStore, err := openStore(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer closeStore()
	checks["store"] = func(ctx context.Context) error {
		_, err := store.List(ctx)
		return err
	}

	locker, closeLocker, err := openLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocker()
	if rl, ok := locker.(*lock.RedisLocker); ok {
		checks["locks"] = rl.Ping
	}

	files, err := storage.New(ctx, cfg.Exports)
	if err != nil {
		return fmt.Errorf("init export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	renderer, err := newRenderer(cfg.Certificate)
	if err != nil {
		return err
	}

	metrics := service.NewMetricsService()
	students := service.NewStudentService(store, locker, validator.New(), metrics, logr, service.StudentServiceConfig{
		LockTTL: cfg.Locks.TTL,
	})
	exports := service.NewExportService(store, files, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, metrics, logr)
	certificates := service.NewCertificateService(store, renderer, service.CertificateConfig{
		QueueBuffer: cfg.Certificate.QueueBuffer,
	}, metrics, logr)

	// Background workers outlive the signal context; they are stopped only
	// after the HTTP server has drained its in-flight requests.
	certificates.Start(context.Background())
	stopCleanup, err := exports.StartCleanup(context.Background(), cfg.Exports.CleanupSchedule)
	if err != nil {
		certificates.Stop()
		return fmt.Errorf("schedule export cleanup: %w", err)
	}

	engine := router.New(router.Options{
		Env:            cfg.Env,
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logr,
		Metrics:        metrics,
	}, router.Handlers{
		Students:     handler.NewStudentHandler(students),
		Exports:      handler.NewExportHandler(exports),
		Certificates: handler.NewCertificateHandler(certificates),
		Metrics:      handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		certificates.Stop()
		stopCleanup()
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Store.Driver)
	return serve(ctx, srv, ln, logr, 15*time.Second, certificates.Stop, stopCleanup)
}

// serve runs srv on ln until ctx is done, then shuts it down gracefully and
// calls each stop function in order once no request is in flight.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, logr *zap.Logger, grace time.Duration, stops ...func()) error {
	defer func() {
		for _, stop := range stops {
			stop()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (service.StudentStore, func(), error) {
	if cfg.Store.Driver == config.StoreDriverMemory || cfg.Store.Driver == "" {
		logr.Warn("using in-memory student store; data is lost on restart")
		return repository.NewMemoryStudentStore(), func() {}, nil
	}

	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open student store: %w", err)
	}
	repo := repository.NewStudentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repo, func() { _ = db.Close() }, nil
}

func openLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func(), error) {
	if cfg.Locks.Driver != config.LockDriverRedis {
		return lock.NewMemoryLocker(), func() {}, nil
	}
	client, err := lock.DialRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return lock.NewRedisLocker(client, ""), func() { _ = client.Close() }, nil
}

func newRenderer(cfg config.CertificateConfig) (*certificate.Renderer, error) {
	layout := certificate.DefaultLayout()
	if cfg.LayoutFile != "" {
		loaded, err := certificate.LoadLayout(cfg.LayoutFile)
		if err != nil {
			return nil, fmt.Errorf("load certificate layout: %w", err)
		}
		layout = loaded
	}
	return certificate.NewRenderer(certificate.Options{
		Layout:          layout,
		Loader:          certificate.NewAssetLoader(&http.Client{}, cfg.AssetTimeout),
		LogoSource:      cfg.LogoSource,
		SignatureSource: cfg.SignatureSource,
		Locale:          cfg.DateLocale,
	})
}
