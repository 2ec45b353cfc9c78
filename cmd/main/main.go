package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"stock-service/internal/config"
	"stock-service/internal/events"
	"stock-service/internal/handlers"
	"stock-service/internal/middleware"
	"stock-service/internal/models"
	"stock-service/internal/repository"
	"stock-service/internal/services"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/rbac"
	"github.com/Tesseract-Nexus/go-shared/tracing"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate models
	if err := db.AutoMigrate(
		&models.VendorProduct{},
		&models.StockMovement{},
		&models.StockBatch{},
		&models.StockConfig{},
		&models.StockAlert{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize logrus logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize NATS event publisher (optional - graceful degradation if NATS unavailable)
	var eventPublisher *events.StockEventPublisher
	if cfg.NATSURL != "" {
		eventPublisher, err = events.NewStockEventPublisher(cfg.NATSURL, logger)
		if err != nil {
			log.Printf("Warning: Failed to initialize NATS event publisher: %v", err)
			log.Println("Continuing without event publishing...")
		} else {
			log.Println("✓ Connected to NATS JetStream for event publishing")
			defer eventPublisher.Close()
		}
	} else {
		log.Println("NATS_URL not configured, event publishing disabled")
	}

	// Initialize Redis client (optional - repository degrades to DB-only reads)
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Warning: Redis unavailable: %v (continuing without cache)", err)
			redisClient = nil
		} else {
			log.Println("✓ Connected to Redis")
		}
		cancel()
	} else {
		log.Println("REDIS_ADDR not configured, caching disabled")
	}

	// Initialize repository and services
	stockRepo := repository.NewStockRepository(db, redisClient)
	alertService := services.NewAlertService(stockRepo, eventPublisher, logger)
	stockService := services.NewStockService(stockRepo, alertService, eventPublisher, logger)
	analyticsService := services.NewAnalyticsService(stockRepo, logger)
	orderService := services.NewOrderIntegrationService(stockRepo, stockService, logger)

	// Initialize handlers
	stockHandler := handlers.NewStockHandler(stockService, alertService, analyticsService, orderService, stockRepo, logger)
	importHandler := handlers.NewImportHandler(stockService)

	// Initialize OpenTelemetry tracing
	var tracerProvider *tracing.TracerProvider
	if cfg.Environment == "production" {
		tracerProvider, err = tracing.InitTracer(tracing.ProductionConfig("stock-service"))
	} else {
		tracerProvider, err = tracing.InitTracer(tracing.DefaultConfig("stock-service"))
	}
	if err != nil {
		log.Printf("WARNING: Failed to initialize tracing: %v (continuing without tracing)", err)
	} else {
		log.Println("✓ OpenTelemetry tracing initialized")
	}

	// Initialize Prometheus metrics
	metrics := gosharedmw.InitGlobalMetrics("tesseract", "stock_service")
	log.Println("✓ Prometheus metrics initialized")

	// Initialize RBAC middleware
	staffServiceURL := os.Getenv("STAFF_SERVICE_URL")
	if staffServiceURL == "" {
		staffServiceURL = "http://staff-service:8080"
	}
	rbacMiddleware := rbac.NewMiddlewareWithURL(staffServiceURL, nil)
	log.Println("✓ RBAC middleware initialized")

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Add observability middleware (metrics + tracing)
	router.Use(metrics.Middleware())
	router.Use(tracing.GinMiddleware("stock-service"))

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/health/extended", stockHandler.ExtendedHealthCheck)
	router.GET("/ready", handlers.HealthCheck)
	router.GET("/metrics", gosharedmw.Handler())

	// Protected API routes
	api := router.Group("/api/v1")

	// Authentication middleware using Istio JWT claims
	// Istio validates JWT and injects x-jwt-claim-* headers
	api.Use(gosharedmw.IstioAuth(gosharedmw.IstioAuthConfig{
		RequireAuth:        true,
		AllowLegacyHeaders: false,
		SkipPaths:          []string{"/health", "/ready", "/metrics", "/swagger"},
	}))
	api.Use(middleware.TenantMiddleware())
	api.Use(middleware.VendorMiddleware())

	// Product and stock movement routes with RBAC
	products := api.Group("/products")
	{
		products.POST("", rbacMiddleware.RequirePermission(rbac.PermissionInventoryUpdate), stockHandler.CreateProduct)
		products.GET("", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.ListProducts)
		products.GET("/:id", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.GetProduct)
		products.PATCH("/:id", rbacMiddleware.RequirePermission(rbac.PermissionInventoryUpdate), stockHandler.UpdateProduct)

		// Stock movements
		products.POST("/:id/stock-in", rbacMiddleware.RequirePermission(rbac.PermissionInventoryAdjust), stockHandler.RecordStockIn)
		products.POST("/:id/stock-out", rbacMiddleware.RequirePermission(rbac.PermissionInventoryAdjust), stockHandler.RecordStockOut)
		products.GET("/:id/movements", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.ListProductMovements)

		// Threshold config
		products.GET("/:id/config", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.GetStockConfig)
		products.PATCH("/:id/config", rbacMiddleware.RequirePermission(rbac.PermissionInventoryUpdate), stockHandler.UpdateStockConfig)

		// Batches
		products.GET("/:id/batches", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.ListProductBatches)

		// Analytics
		products.GET("/:id/turnover", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.GetTurnoverRate)

		// Import
		products.GET("/import/template", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), importHandler.GetProductImportTemplate)
		products.POST("/import", rbacMiddleware.RequirePermission(rbac.PermissionInventoryUpdate), importHandler.ImportProducts)
	}

	// Vendor-level ledger
	movements := api.Group("/movements")
	{
		movements.GET("", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.ListMovements)
	}

	// Batch routes with RBAC
	batches := api.Group("/batches")
	{
		batches.GET("/expiring", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.ListExpiringBatches)
	}

	// Alert routes with RBAC
	alerts := api.Group("/alerts")
	{
		alerts.GET("", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.ListAlerts)
		alerts.GET("/summary", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.GetAlertSummary)
		alerts.POST("/sweep", rbacMiddleware.RequirePermission(rbac.PermissionInventoryUpdate), stockHandler.SweepAlerts)
		alerts.POST("/expiry-sweep", rbacMiddleware.RequirePermission(rbac.PermissionInventoryUpdate), stockHandler.SweepExpiry)
		alerts.GET("/:id", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.GetAlert)
		alerts.POST("/:id/acknowledge", rbacMiddleware.RequirePermission(rbac.PermissionInventoryUpdate), stockHandler.AcknowledgeAlert)
		alerts.POST("/:id/resolve", rbacMiddleware.RequirePermission(rbac.PermissionInventoryUpdate), stockHandler.ResolveAlert)
		alerts.POST("/:id/dismiss", rbacMiddleware.RequirePermission(rbac.PermissionInventoryUpdate), stockHandler.DismissAlert)
	}

	// Analytics routes with RBAC
	analytics := api.Group("/analytics")
	{
		analytics.GET("/slow-moving", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.GetSlowMovingProducts)
		analytics.GET("/valuation", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.GetStockValuation)
	}

	// Integration routes for the order and billing services
	integrations := api.Group("/integrations")
	{
		integrations.POST("/orders/status-change", rbacMiddleware.RequirePermission(rbac.PermissionInventoryAdjust), stockHandler.OrderStatusChange)
		integrations.POST("/bills/item-change", rbacMiddleware.RequirePermission(rbac.PermissionInventoryAdjust), stockHandler.BillItemChange)
	}

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8088"
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Stock service starting on port %s", port)
		if err := router.Run(":" + port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	log.Println("Shutting down stock-service...")

	// Shutdown tracer provider
	if tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		} else {
			log.Println("✓ Tracer provider shut down")
		}
	}

	log.Println("Stock service stopped")
}
