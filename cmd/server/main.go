package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fugitivebreach/arrow-api/internal/bot"
	"github.com/fugitivebreach/arrow-api/internal/config"
	"github.com/fugitivebreach/arrow-api/internal/domain/guild"
	"github.com/fugitivebreach/arrow-api/internal/domain/user"
	"github.com/fugitivebreach/arrow-api/internal/domain/verification"
	"github.com/fugitivebreach/arrow-api/internal/handler"
	"github.com/fugitivebreach/arrow-api/internal/handler/dto"
	"github.com/fugitivebreach/arrow-api/internal/handler/middleware"
	"github.com/fugitivebreach/arrow-api/internal/ierr"
	"github.com/fugitivebreach/arrow-api/internal/roblox"
	"github.com/fugitivebreach/arrow-api/internal/service"
	"github.com/fugitivebreach/arrow-api/internal/session"
	"github.com/fugitivebreach/arrow-api/internal/storage/memstorage"
	"github.com/fugitivebreach/arrow-api/internal/storage/postgres"
	"github.com/fugitivebreach/arrow-api/internal/storage/redis"
	"github.com/fugitivebreach/arrow-api/internal/worker"
	"github.com/fugitivebreach/arrow-api/pkg/logger"
)

func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.NewZapLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	sugarLogger := appLogger.Sugar()
	sugarLogger.Info("Starting Arrow API...")

	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The service deliberately survives a missing database or Redis:
	// persistence-backed features degrade instead of blocking startup.
	var dbPool *pgxpool.Pool
	if cfg.Database.URL != "" {
		dbPool, err = postgres.NewPgxPool(appCtx, &cfg.Database, appLogger)
		if err != nil {
			sugarLogger.Warnf("PostgreSQL unavailable, running degraded: %v", err)
			dbPool = nil
		} else {
			defer dbPool.Close()
		}
	} else {
		sugarLogger.Warn("No database URL configured, running with in-memory storage")
	}

	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = redis.NewRedisClient(appCtx, &cfg.Redis, appLogger)
		if err != nil {
			sugarLogger.Warnf("Redis unavailable, running degraded: %v", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var userRepo user.Repository
	var verificationRepo verification.Repository
	var guildStore guild.Store
	if dbPool != nil {
		userRepo = postgres.NewUserRepository(dbPool, appLogger)
		verificationRepo = postgres.NewVerificationRepository(dbPool, appLogger)
		guildStore = postgres.NewGuildStore(dbPool, appLogger)
	} else {
		userRepo = memstorage.NewUserRepository()
		verificationRepo = memstorage.NewVerificationRepository()
		guildStore = memstorage.NewGuildStore()
	}

	robloxClient := roblox.NewClient(cfg.Roblox.RequestTimeout, appLogger)
	sessions := session.NewManager(cfg.Session.Secret, cfg.Session.MaxAge)
	cookieCooldown := redis.NewCooldown(redisClient, "cooldown:cookie", 5*time.Second)
	reserver := redis.NewCredentialReserver(redisClient, service.GroupCapacity)

	cookiePool, err := cfg.Roblox.CookiePool()
	if err != nil {
		sugarLogger.Fatalf("Invalid Roblox cookie pool configuration: %v", err)
	}

	keyService := service.NewKeyService(userRepo, appLogger)
	blacklistService := service.NewBlacklistService(userRepo, keyService, appLogger)
	linkingService := service.NewLinkingService(verificationRepo, appLogger)
	ownershipService := service.NewOwnershipService(guildStore, robloxClient, appLogger)
	setupService := service.NewSetupService(guildStore, robloxClient, reserver, cookiePool, appLogger)

	var discordBot *bot.Bot
	var errorReporter middleware.ErrorReporter
	if cfg.Discord.BotToken != "" {
		discordBot, err = bot.New(cfg.Discord, keyService, blacklistService, linkingService, ownershipService, setupService, appLogger)
		if err != nil {
			sugarLogger.Fatalf("Failed to create Discord bot: %v", err)
		}
		errorReporter = discordBot
	} else {
		sugarLogger.Warn("Discord bot token not configured, bot disabled")
	}

	healthHandler := handler.NewHealthHandler(dbPool, redisClient, appLogger)
	robloxHandler := handler.NewRobloxHandler(robloxClient, appLogger)
	dashboardHandler := handler.NewDashboardHandler(keyService, linkingService, userRepo, cookieCooldown, appLogger)
	authHandler := handler.NewAuthHandler(cfg.Discord.ClientID, cfg.Discord.ClientSecret, cfg.Discord.OAuthRedirectURL, sessions, userRepo, appLogger)

	apiKeyAuthMiddleware := middleware.APIKeyAuthMiddleware(keyService)
	sessionAuthMiddleware := middleware.SessionAuthMiddleware(sessions, userRepo)
	errorMiddleware := middleware.ErrorHandlerMiddleware(appLogger, errorReporter)

	router := gin.New()
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logMsg := "Panic recovered"
		if err, ok := recovered.(string); ok {
			logMsg = fmt.Sprintf("%s: %s", logMsg, err)
		} else if err, ok := recovered.(error); ok {
			logMsg = fmt.Sprintf("%s: %v", logMsg, err)
		}
		appLogger.Error(logMsg, zap.Stack("stack"))

		_ = c.Error(ierr.ErrInternalServer)
		c.Abort()
	}))

	corsConfig := cors.Config{
		AllowOrigins: []string{"http://localhost:" + cfg.Server.Port},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"api-key",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))
	router.Use(errorMiddleware)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.APIErrorResponse{
			Code:    "NOT_FOUND",
			Message: "The requested resource was not found.",
		})
	})

	router.GET("/health", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authRoutes := router.Group("/auth")
	{
		authRoutes.GET("/discord", authHandler.Login)
		authRoutes.GET("/discord/callback", authHandler.Callback)
		authRoutes.GET("/logout", authHandler.Logout)
	}

	dashboardRoutes := router.Group("/dashboard")
	dashboardRoutes.Use(sessionAuthMiddleware)
	{
		dashboardRoutes.GET("/me", dashboardHandler.Me)
		dashboardRoutes.POST("/keys", dashboardHandler.GenerateKey)
		dashboardRoutes.DELETE("/keys/:keyID", dashboardHandler.DeleteKey)
		dashboardRoutes.POST("/verify/generate", dashboardHandler.GenerateVerificationCode)
		dashboardRoutes.POST("/cookie", dashboardHandler.UpdateCookie)
	}

	apiRoutes := router.Group("/")
	apiRoutes.Use(apiKeyAuthMiddleware)
	{
		userRoutes := apiRoutes.Group("/user/:userID")
		{
			userRoutes.GET("", robloxHandler.UserProfile)
			userRoutes.GET("/headshot", robloxHandler.UserHeadshot)
			userRoutes.GET("/badges", robloxHandler.UserBadges)
			userRoutes.GET("/status", robloxHandler.UserStatus)
			userRoutes.GET("/games", robloxHandler.UserGames)
			userRoutes.GET("/favorites", robloxHandler.UserFavoriteGames)
			userRoutes.GET("/friends", robloxHandler.UserFriends)
			userRoutes.GET("/followers", robloxHandler.UserFollowers)
			userRoutes.GET("/following", robloxHandler.UserFollowing)
			userRoutes.GET("/presence", robloxHandler.UserPresence)
			userRoutes.GET("/inventory", robloxHandler.UserInventory)
		}
		groupRoutes := apiRoutes.Group("/group/:groupID")
		{
			groupRoutes.GET("", robloxHandler.GroupInfo)
			groupRoutes.GET("/roles", robloxHandler.GroupRoles)
			groupRoutes.GET("/wall", robloxHandler.GroupWall)
			groupRoutes.GET("/allies", robloxHandler.GroupAllies)
		}
		apiRoutes.GET("/game/:universeID/info", robloxHandler.GameInfo)
		apiRoutes.GET("/asset/:assetID", robloxHandler.AssetDetails)
		apiRoutes.GET("/catalog/search", robloxHandler.CatalogSearch)

		// Registered last: the membership route's first segment is a
		// wildcard.
		apiRoutes.GET("/:robloxUserID/:groupID", robloxHandler.Membership)
	}

	g, groupCtx := errgroup.WithContext(appCtx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		sugarLogger.Infof("HTTP server listening on port %s", cfg.Server.Port)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		sugarLogger.Info("HTTP server stopped listening.")
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		sugarLogger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown error: %w", err)
		}
		sugarLogger.Info("HTTP server shutdown complete.")
		return nil
	})

	if discordBot != nil {
		g.Go(func() error {
			if err := discordBot.Run(groupCtx); err != nil {
				return fmt.Errorf("discord bot error: %w", err)
			}
			return nil
		})
	}

	if redisClient != nil {
		g.Go(func() error {
			if err := worker.RunWorkers(groupCtx, cfg, linkingService, appLogger); err != nil {
				return fmt.Errorf("asynq worker error: %w", err)
			}
			sugarLogger.Info("Asynq workers finished gracefully.")
			return nil
		})
	} else {
		sugarLogger.Warn("Redis unavailable, periodic code purge disabled")
	}

	sugarLogger.Info("Application started. Waiting for interrupt signal or component error...")

	waitErr := g.Wait()

	if waitErr != nil {
		if errors.Is(waitErr, context.Canceled) {
			sugarLogger.Info("Shutdown reason: context canceled (OS signal).")
		} else {
			sugarLogger.Errorf("Application shutdown finished with error: %v", waitErr)
		}
	} else {
		sugarLogger.Info("Application shutdown successfully.")
	}
}
