package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/PrivvyRentals/pricing_api/internal/cache"
	"github.com/PrivvyRentals/pricing_api/internal/config"
	"github.com/PrivvyRentals/pricing_api/internal/database"
	"github.com/PrivvyRentals/pricing_api/internal/handler"
	"github.com/PrivvyRentals/pricing_api/internal/middleware"
	"github.com/PrivvyRentals/pricing_api/internal/repository"
	"github.com/PrivvyRentals/pricing_api/internal/service"
	"github.com/PrivvyRentals/pricing_api/internal/utils"
	"github.com/PrivvyRentals/pricing_api/internal/worker"
	"github.com/PrivvyRentals/pricing_api/pkg/routes"
	"github.com/PrivvyRentals/pricing_api/pkg/sheets"
)

// main is the application entrypoint for the pricing API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting pricing api")

	utils.InitJWT(cfg.JWTSecret)

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	// 3c. Initialize caches
	catalogCache := cache.NewCatalogCache(redisClient)
	distanceCache := cache.NewDistanceCache(redisClient, cfg.Pricing.DistanceTTL)

	// 4. Initialize external clients
	sheetsClient := sheets.NewClient(cfg.Sheets.BaseURL, cfg.Sheets.SpreadsheetID, cfg.Sheets.APIKey)
	routesClient := routes.NewClient(cfg.Routes.BaseURL, cfg.Routes.APIKey, cfg.Routes.Timeout)

	// 5. Initialize repositories
	clientRepo := repository.NewClientRepository(db)
	adminRepo := repository.NewAdminUserRepository(db)

	// 6. Initialize services
	authSvc := service.NewAuthService(clientRepo)
	adminAuthSvc := service.NewAdminAuthService(adminRepo)

	// The archiver must be passed as untyped nil when disabled, otherwise the
	// interface holds a nil pointer and the nil check inside CatalogService
	// never fires.
	var catalogSvc *service.CatalogService
	if archiveSvc := service.NewArchiveService(&cfg.Archive); archiveSvc != nil {
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("Snapshot archive enabled")
		catalogSvc = service.NewCatalogService(sheetsClient, catalogCache, archiveSvc)
	} else {
		catalogSvc = service.NewCatalogService(sheetsClient, catalogCache, nil)
	}

	distanceSvc := service.NewDistanceService(distanceCache, routesClient)
	quoteSvc := service.NewQuoteService(catalogSvc, distanceSvc, cfg.Pricing.MaxCatalogAge)

	// 7. Initialize handlers
	handlers := &Handlers{
		Health:  handler.NewHealthHandler(redisClient, catalogSvc),
		Pricing: handler.NewPricingHandler(quoteSvc, catalogSvc, distanceSvc),
		Admin:   handler.NewAdminHandler(catalogSvc, redisClient),
		Auth:    handler.NewAuthHandler(adminAuthSvc),
		Client:  handler.NewClientHandler(clientRepo),
	}

	// 8. Initialize middleware
	authMw := middleware.NewAuthMiddleware(authSvc)
	jwtMw := middleware.NewJWTMiddleware()

	// 9. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, authMw, jwtMw)

	// 10. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 11. Start the catalog sync worker
	go worker.NewCatalogSyncWorker(catalogSvc, cfg.Worker.SyncInterval).Start(ctx)

	// 12. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 14. Cancel context to stop workers
	cancel()

	// 15. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health  *handler.HealthHandler
	Pricing *handler.PricingHandler
	Admin   *handler.AdminHandler
	Auth    *handler.AuthHandler
	Client  *handler.ClientHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, authMiddleware *middleware.AuthMiddleware, jwtMiddleware *middleware.JWTMiddleware) {
	router.GET("/v1/health", handlers.Health.Health)

	// Quoting routes (protected with client API key)
	pricing := router.Group("/v1/pricing")
	pricing.Use(authMiddleware.Handle())
	{
		pricing.POST("/quote", handlers.Pricing.CreateQuote)
		pricing.POST("/location/prefetch", handlers.Pricing.PrefetchLocation)
	}

	// Admin routes
	admin := router.Group("/v1/admin")
	admin.POST("/auth/login", handlers.Auth.Login)
	admin.Use(jwtMiddleware.Handle())
	{
		// Catalog management
		admin.POST("/catalog/sync", handlers.Admin.TriggerSync)
		admin.GET("/catalog", handlers.Admin.GetCatalog)

		// Cache inspection
		admin.GET("/cache/keys", handlers.Admin.ListCacheKeys)
		admin.DELETE("/cache/keys", handlers.Admin.DeleteCacheKeys)

		// Client management
		admin.POST("/clients", handlers.Client.Create)
		admin.GET("/clients", handlers.Client.List)
		admin.POST("/clients/:id/regenerate", handlers.Client.RegenerateKeys)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
