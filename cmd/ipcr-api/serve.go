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
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/ipcr-api/api/swagger"
	"github.com/noah-isme/ipcr-api/internal/handler"
	"github.com/noah-isme/ipcr-api/internal/middleware"
	"github.com/noah-isme/ipcr-api/internal/models"
	"github.com/noah-isme/ipcr-api/internal/repository"
	"github.com/noah-isme/ipcr-api/internal/service"
	"github.com/noah-isme/ipcr-api/pkg/cache"
	"github.com/noah-isme/ipcr-api/pkg/classifier"
	"github.com/noah-isme/ipcr-api/pkg/config"
	"github.com/noah-isme/ipcr-api/pkg/database"
	"github.com/noah-isme/ipcr-api/pkg/events"
	"github.com/noah-isme/ipcr-api/pkg/export"
	"github.com/noah-isme/ipcr-api/pkg/gdrive"
	"github.com/noah-isme/ipcr-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ipcr-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ipcr-api/pkg/middleware/requestid"
	"github.com/noah-isme/ipcr-api/pkg/storage"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "Apply pending migrations before serving")
}

type app struct {
	db        *sqlx.DB
	publisher *events.Publisher
	folders   *repository.FolderCacheRepository
	router    *gin.Engine
}

func serve(ctx context.Context) error {
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logr.Info("server shutting down")
	return server.Shutdown(shutdownCtx)
}

func buildApp(ctx context.Context) (*app, error) {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, err
	}
	if migrateOnStart {
		applied, err := database.Migrate(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logr.Info("migrations applied", zap.Strings("versions", applied))
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, folder cache disabled", zap.Error(err))
		redisClient = nil
	}
	publisher, err := events.Connect(cfg.Events.NATSURL, cfg.Events.Subject, logr)
	if err != nil {
		logr.Warn("nats unavailable, ingestion events disabled", zap.Error(err))
		publisher = nil
	}

	staging, err := storage.NewStaging(cfg.Ingest.StagingDir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	reports, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	defaultPeriod := models.Period{
		AcademicYear: cfg.Ingest.DefaultAcademicYear,
		Semester:     cfg.Ingest.DefaultSemester,
	}.Or(models.DefaultPeriod)
	validate := validator.New()

	documentRepo := repository.NewDocumentRepository(db)
	accomplishmentRepo := repository.NewAccomplishmentRepository(db)
	ownerRepo := repository.NewOwnerRepository(db)
	folderCache := repository.NewFolderCacheRepository(redisClient, logr)

	metrics := service.NewMetricsService()
	classifierClient := classifier.New(classifier.Config{
		BaseURL:                 cfg.Classifier.URL,
		Timeout:                 cfg.Classifier.Timeout,
		RateLimit:               cfg.Classifier.RateLimit,
		BreakerEnabled:          cfg.Classifier.BreakerEnabled,
		BreakerMinRequests:      cfg.Classifier.BreakerMinRequests,
		BreakerFailureRatio:     cfg.Classifier.BreakerFailureRatio,
		BreakerOpenTimeout:      cfg.Classifier.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: cfg.Classifier.BreakerHalfOpenMaxCalls,
	}, nil, logr)

	driveFactory := gdrive.NewFactory(cfg.Archive.GoogleClientID, cfg.Archive.GoogleClientSecret)
	archiver := service.NewArchiveResolver(
		func(ctx context.Context, creds models.StorageCredentials) (service.ArchiveProvider, error) {
			provider, err := driveFactory.NewProvider(ctx, creds)
			if err != nil {
				return nil, err
			}
			return provider, nil
		},
		folderCache,
		service.ArchiveConfig{
			Enabled:        cfg.Archive.Enabled,
			RootFolder:     cfg.Archive.RootFolder,
			PipelineFolder: cfg.Archive.PipelineFolder,
			FolderCacheTTL: cfg.Archive.FolderCacheTTL,
			Timeout:        cfg.Archive.Timeout,
		},
		logr,
	)

	ingestion := service.NewIngestionService(service.IngestionDeps{
		Classifier: classifierClient,
		Archiver:   archiver,
		Store:      documentRepo,
		Owners:     ownerRepo,
		Stager:     staging,
		Events:     publisher,
		Metrics:    metrics,
	}, service.IngestionConfig{
		Concurrency:      cfg.Ingest.Concurrency,
		MaxFileSizeBytes: cfg.Ingest.MaxFileSizeBytes,
		DefaultPeriod:    defaultPeriod,
	}, logr)
	accomplishments := service.NewAccomplishmentService(accomplishmentRepo, validate, defaultPeriod, logr)
	documents := service.NewDocumentService(documentRepo, logr)
	faculty := service.NewFacultyService(ownerRepo, accomplishmentRepo, logr)
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exports := service.NewExportService(accomplishmentRepo, reports, signer,
		map[string]service.DatasetRenderer{service.ExportFormatXLSX: export.NewXLSXExporter(cfg.Reports.TemplatePath)},
		metrics,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL},
		logr,
	)
	identity := service.NewIdentityService(service.IdentityConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	}, logr)

	metricsHandler := handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
		"database":   db.PingContext,
		"classifier": classifierClient.Health,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeHandlers{
		identity:        identity,
		ingestion:       handler.NewIngestionHandler(ingestion),
		documents:       handler.NewDocumentHandler(documents),
		accomplishments: handler.NewAccomplishmentHandler(accomplishments),
		exports:         handler.NewExportHandler(exports, accomplishments),
		admin:           handler.NewAdminHandler(faculty, accomplishments),
	})

	return &app{db: db, publisher: publisher, folders: folderCache, router: r}, nil
}

type routeHandlers struct {
	identity        middleware.TokenValidator
	ingestion       *handler.IngestionHandler
	documents       *handler.DocumentHandler
	accomplishments *handler.AccomplishmentHandler
	exports         *handler.ExportHandler
	admin           *handler.AdminHandler
}

func registerRoutes(api *gin.RouterGroup, h routeHandlers) {
	// Signed download links authorise themselves.
	api.GET("/exports/:token", h.exports.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(h.identity))
	secured.POST("/documents/upload", h.ingestion.Upload)
	secured.GET("/documents", h.documents.List)
	secured.GET("/ipcr", h.accomplishments.Summary)
	secured.PUT("/ipcr/targets", h.accomplishments.SetTargets)
	secured.POST("/ipcr/export", h.exports.Export)

	admin := secured.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/ipcr", h.admin.ListFaculty)
}

func (a *app) close() {
	a.publisher.Close()
	if err := a.folders.Close(); err != nil {
		logr.Warn("close redis", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		logr.Warn("close database", zap.Error(err))
	}
}
