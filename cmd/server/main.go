// Package main runs the CastGrid room management HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/castgrid/backend/config"
	"github.com/castgrid/backend/internal/auth"
	"github.com/castgrid/backend/internal/freemium"
	"github.com/castgrid/backend/internal/middleware"
	"github.com/castgrid/backend/internal/realtime"
	"github.com/castgrid/backend/internal/rooms"
	"github.com/castgrid/backend/pkg/database"
	"github.com/castgrid/backend/pkg/redis"
	"github.com/castgrid/backend/pkg/response"
	"github.com/castgrid/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	// The room store degrades to in-memory storage on backend failure, so an
	// unreachable database is not fatal: start directly in fallback mode.
	var roomBackend rooms.Backend
	authAvailable := false
	var authRepo *auth.Repository
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Warn("database unreachable, rooms served from in-memory storage", zap.Error(err))
	} else {
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		roomBackend = rooms.NewRepository(pool)
		authRepo = auth.NewRepository(pool)
		authAvailable = true
	}

	// The freemium session store is Redis when available, process memory otherwise.
	var sessionStore freemium.SessionStore
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unreachable, watch sessions kept in process memory", zap.Error(err))
		sessionStore = freemium.NewMemorySessionStore()
	} else {
		defer rdb.Close()
		sessionStore = freemium.NewRedisSessionStore(rdb.Client)
	}

	var s3Client *storage.S3
	if cfg.AWS.Region != "" && cfg.AWS.AccessKeyID != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ThumbnailsBucket:     cfg.AWS.ThumbnailsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	loc, err := time.LoadLocation(cfg.Freemium.Timezone)
	if err != nil {
		logger.Warn("invalid freemium timezone, using UTC", zap.String("timezone", cfg.Freemium.Timezone))
		loc = time.UTC
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	roomStore := rooms.NewStore(roomBackend, logger)
	roomHandler := rooms.NewHandler(roomStore, s3Client, logger)

	gateManager := freemium.NewManager(freemium.Config{
		FreeSlotLimit:      cfg.Freemium.FreeSlotLimit,
		TotalSlots:         cfg.Freemium.TotalSlots,
		WatchBudgetSeconds: cfg.Freemium.WatchBudgetSeconds,
	}, sessionStore, loc, logger)
	gateHandler := freemium.NewHandler(gateManager)

	wsValidate := func(token string) (viewerID string, isPro bool, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", false, err
		}
		return claims.UserID.String(), claims.Plan == "pro", nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public; requires the database)
	if authAvailable {
		authHandler := auth.NewHandler(authRepo, jwtService, logger)
		authGroup := router.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/register", authHandler.Register)
		}
		router.GET("/users", middleware.JWT(jwtService), middleware.RequireRole("admin"), authHandler.List)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Rooms, scoped by company
		company := api.Group("/companies/:companyId")
		company.GET("/rooms", roomHandler.List)
		company.GET("/rooms/:roomId", roomHandler.GetByID)

		adminScoped := company.Group("")
		adminScoped.Use(middleware.RequireRole("admin"), middleware.RequireCompanyScope())
		{
			adminScoped.POST("/rooms", roomHandler.Create)
			adminScoped.POST("/rooms/initialize", roomHandler.Initialize)
			adminScoped.PATCH("/rooms/:roomId", roomHandler.Update)
			adminScoped.DELETE("/rooms/:roomId", roomHandler.Delete)
			adminScoped.POST("/rooms/:roomId/thumbnail-upload-url", roomHandler.ThumbnailUploadURL)
		}

		api.GET("/admin/rooms", middleware.RequireRole("admin"), roomHandler.ListAll)

		// Viewer gate
		api.GET("/gate", gateHandler.State)
		api.POST("/gate/start", gateHandler.Start)
		api.POST("/gate/stop", gateHandler.Stop)
		api.GET("/gate/slots/:index", gateHandler.Slot)
		api.POST("/gate/ack-upgrade", gateHandler.AckUpgrade)
	}

	// WebSocket countdown (token in query; no Authorization header required)
	router.GET("/ws/watch", realtime.ServeWatch(gateManager, logger, wsValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Tear down every gate so no tick timer leaks past shutdown.
	gateManager.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
