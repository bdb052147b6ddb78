package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/retailcore/retailpos-backend/internal/auth"
	"github.com/retailcore/retailpos-backend/internal/branch"
	"github.com/retailcore/retailpos-backend/internal/customer"
	"github.com/retailcore/retailpos-backend/internal/dashboard"
	"github.com/retailcore/retailpos-backend/internal/inventory"
	"github.com/retailcore/retailpos-backend/internal/pricing"
	"github.com/retailcore/retailpos-backend/internal/product"
	"github.com/retailcore/retailpos-backend/internal/reports"
	"github.com/retailcore/retailpos-backend/internal/sale"
	"github.com/retailcore/retailpos-backend/internal/store/gormstore"
	"github.com/retailcore/retailpos-backend/internal/user"
	"github.com/retailcore/retailpos-backend/pkg/activitylog"
	"github.com/retailcore/retailpos-backend/pkg/cache"
	"github.com/retailcore/retailpos-backend/pkg/config"
	"github.com/retailcore/retailpos-backend/pkg/database"
	"github.com/retailcore/retailpos-backend/pkg/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Connect()
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := database.Migrate(db); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	var statsCache cache.StatsCache = cache.NoopStatsCache{}
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisStatsCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn("redis unavailable, dashboard caching disabled", zap.Error(err))
		} else {
			statsCache = redisCache
			defer redisCache.Close()
		}
	}

	st := gormstore.New(db)
	coordinator := sale.NewCoordinator(st, pricing.New(cfg.TaxRate), logger)
	audit := activitylog.NewLogger(db)

	r := gin.Default()
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		// Auth routes (public)
		authHandler := auth.NewHandler(db)
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/refresh", authHandler.RefreshToken)
		api.GET("/auth/google", authHandler.GoogleLogin)
		api.GET("/auth/google/callback", authHandler.GoogleCallback)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/auth/me", authHandler.GetMe)

			// Sales
			saleHandler := sale.NewHandler(coordinator, st, audit)
			protected.POST("/sales", saleHandler.Create)
			protected.GET("/sales", saleHandler.List)
			protected.GET("/sales/:id", saleHandler.Get)
			protected.PUT("/sales/:id", saleHandler.Update)
			protected.DELETE("/sales/:id", saleHandler.Cancel)

			// Dashboard
			dashboardHandler := dashboard.NewHandler(db, statsCache)
			protected.GET("/dashboard/stats", dashboardHandler.GetStats)
			protected.GET("/dashboard/top-products", dashboardHandler.GetTopProducts)
			protected.GET("/dashboard/recent-sales", dashboardHandler.GetRecentSales)

			// Products
			productHandler := product.NewHandler(db)
			protected.GET("/products", productHandler.List)
			protected.POST("/products", productHandler.Create)
			protected.GET("/products/:id", productHandler.Get)
			protected.PUT("/products/:id", productHandler.Update)
			protected.DELETE("/products/:id", productHandler.Delete)
			protected.PATCH("/products/:id/toggle", productHandler.ToggleActive)

			// Customers
			customerHandler := customer.NewHandler(db)
			protected.GET("/customers", customerHandler.List)
			protected.POST("/customers", customerHandler.Create)
			protected.GET("/customers/:id", customerHandler.Get)
			protected.PUT("/customers/:id", customerHandler.Update)
			protected.DELETE("/customers/:id", customerHandler.Delete)
			protected.GET("/customers/:id/stats", customerHandler.GetStats)

			// Inventory
			inventoryHandler := inventory.NewHandler(db, st)
			protected.GET("/inventory", inventoryHandler.GetInventory)
			protected.GET("/inventory/summary", inventoryHandler.GetSummary)
			protected.GET("/inventory/alerts", inventoryHandler.GetAlerts)
			protected.PUT("/inventory/:id/stock", inventoryHandler.AdjustStock)

			importHandler := inventory.NewImportHandler(db)
			protected.POST("/inventory/import", middleware.RequireRoles("owner", "admin", "manager"), importHandler.ImportFile)
			protected.GET("/inventory/import/template", importHandler.DownloadTemplate)

			// Reports
			reportsHandler := reports.NewHandler(db)
			protected.GET("/reports/sales", reportsHandler.GetSalesReport)
			protected.GET("/reports/products", reportsHandler.GetProductSalesReport)
			protected.GET("/reports/sales/export", reportsHandler.ExportSalesReport)

			// Branches
			branchHandler := branch.NewHandler(db)
			protected.GET("/branches", branchHandler.List)
			protected.POST("/branches", middleware.RequireRoles("owner", "admin"), branchHandler.Create)
			protected.GET("/branches/:id", branchHandler.Get)
			protected.PUT("/branches/:id", middleware.RequireRoles("owner", "admin"), branchHandler.Update)
			protected.DELETE("/branches/:id", middleware.RequireRoles("owner"), branchHandler.Delete)
			protected.GET("/branches/:id/stats", branchHandler.GetStats)

			// Staff
			userHandler := user.NewHandler(db)
			protected.GET("/staff", userHandler.ListStaff)
			protected.POST("/staff", middleware.RequireRoles("owner", "admin", "manager"), userHandler.CreateStaff)
			protected.PUT("/staff/:id", middleware.RequireRoles("owner", "admin", "manager"), userHandler.UpdateStaff)
			protected.DELETE("/staff/:id", middleware.RequireRoles("owner"), userHandler.DeleteStaff)
			protected.GET("/staff/logs", userHandler.GetActivityLogs)
		}
	}

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := r.Run(cfg.Address()); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
