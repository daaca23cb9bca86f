package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-roster-api/internal/middleware"
	"github.com/noah-isme/sma-roster-api/internal/service"
	"github.com/noah-isme/sma-roster-api/pkg/config"
	"github.com/noah-isme/sma-roster-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-roster-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-roster-api/pkg/middleware/requestid"
)

// Options configures the engine.
type Options struct {
	Env            string
	APIPrefix      string
	AllowedOrigins []string
	Logger         *zap.Logger
	Metrics        *service.MetricsService
}

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Students     *handler.StudentHandler
	Exports      *handler.ExportHandler
	Certificates *handler.CertificateHandler
	Metrics      *handler.MetricsHandler
}

// New builds the gin engine with middleware and every roster route.
func New(opts Options, h Handlers) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(opts.Metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if opts.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)

	students := api.Group("/students")
	students.GET("", h.Students.List)
	students.POST("", internalmiddleware.MutationLog(opts.Logger, "create", "student"), h.Students.Create)
	students.GET("/export/xlsx", h.Exports.Spreadsheet)
	students.GET("/export/csv", h.Exports.CSV)
	students.GET("/:id", h.Students.Get)
	students.PUT("/:id", internalmiddleware.MutationLog(opts.Logger, "replace", "student"), h.Students.Replace)
	students.PATCH("/:id", internalmiddleware.MutationLog(opts.Logger, "edit", "student"), h.Students.Patch)
	students.DELETE("/:id", internalmiddleware.MutationLog(opts.Logger, "delete", "student"), h.Students.Delete)
	students.GET("/:id/certificate", h.Certificates.Generate)

	exports := api.Group("/exports")
	exports.POST("", internalmiddleware.MutationLog(opts.Logger, "publish", "export"), h.Exports.Publish)
	exports.GET("/:token", h.Exports.Download)

	return r
}
