package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"imagebox/internal/config"
	"imagebox/internal/handler"
	"imagebox/internal/middleware"
	"imagebox/internal/repository"
	"imagebox/internal/service"
)

type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	log        *zap.Logger
}

func New(cfg *config.Config, log *zap.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))

	router.LoadHTMLGlob("web/templates/*")

	repo, err := repository.NewDiskRepository(cfg.App.UploadDir, cfg.App.AllowedFormats, log)
	if err != nil {
		return nil, err
	}

	validator := service.NewValidator(cfg.App.MaxUploadSize, cfg.App.AllowedFormats)
	imageService := service.NewImageService(repo, validator, log)

	h := handler.NewHandler(imageService, cfg, log)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.Window, cfg.RateLimit.Max, log)

	router.GET("/", h.Dashboard)
	router.GET("/dashboard", h.Dashboard)
	router.GET("/health", h.HealthCheck)

	router.POST("/upload", limiter.Middleware(), h.UploadImage)
	router.DELETE("/image/:filename", h.DeleteImage)
	router.POST("/delete", h.DeleteBatch)

	api := router.Group("/api")
	{
		api.GET("/images", h.ListImages)
	}

	uploads := router.Group("/uploads", middleware.CacheControl(cfg.App.StaticCacheAge))
	uploads.Static("/", cfg.App.UploadDir)

	server := &Server{
		httpServer: &http.Server{
			Addr:           cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:        router,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		cfg: cfg,
		log: log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port))

	return server, nil
}

func (s *Server) Run() error {
	s.log.Info("Server is running",
		zap.String("address", s.httpServer.Addr))

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
