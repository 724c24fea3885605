package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/thanosan23/StockSim/internal/auth"
	"github.com/thanosan23/StockSim/internal/config"
	"github.com/thanosan23/StockSim/internal/db"
	"github.com/thanosan23/StockSim/internal/engine"
	"github.com/thanosan23/StockSim/internal/handlers"
	"github.com/thanosan23/StockSim/internal/leaderboard"
	"github.com/thanosan23/StockSim/internal/logger"
	"github.com/thanosan23/StockSim/internal/quotes"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults or environment variables")
	}

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	zl, syncLogger, err := logger.NewZapLogger(logger.ParseLevel(cfg.LogLevel))
	if err != nil {
		log.Fatal("Failed to init logger: ", err)
	}
	defer syncLogger()

	// Initialize database
	database, err := db.Connect(&cfg.Postgres)
	if err != nil {
		zl.Fatalf("failed to connect to database: %s", err)
	}
	defer database.Close()

	if err := db.EnsureSchema(context.Background(), database); err != nil {
		zl.Fatalf("failed to apply schema: %s", err)
	}

	quoter := quotes.NewFinnhubClient(cfg.Quotes, zl)
	defer quoter.Close()

	authSvc := auth.NewService(database, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	eng := engine.New(database, quoter, zl)
	lb := leaderboard.NewService(database)

	processor := handlers.NewOrderProcessor(cfg.NumWorkers, eng, zl)
	processor.Start()
	defer processor.Stop()

	h := handlers.New(eng, processor, authSvc, lb, quoter, zl)

	// Set Gin mode based on environment
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.Default()

	// API routes
	api := router.Group("/api")
	{
		api.POST("/signup", h.Signup)
		api.POST("/login", h.Login)
		api.GET("/leaderboard", h.GetLeaderboard)

		// Everything touching the ledger requires an identity
		authed := api.Group("", authSvc.Middleware())
		{
			authed.POST("/trades/buy", h.BuyStock)
			authed.POST("/trades/sell", h.SellStock)
			authed.GET("/trades", h.GetTradeHistory)
			authed.GET("/portfolio", h.GetPortfolio)
			authed.GET("/quote/:symbol", h.GetQuote)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	zl.Infof("server starting on http://localhost:%s", cfg.Port)

	if err := router.Run(":" + cfg.Port); err != nil {
		zl.Fatalf("failed to start server: %s", err)
	}
}
