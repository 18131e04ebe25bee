package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chequeops/backend/docs"
	"github.com/chequeops/backend/internal/config"
	"github.com/chequeops/backend/internal/corebank"
	"github.com/chequeops/backend/internal/database"
	mW "github.com/chequeops/backend/internal/middleware"
	"github.com/chequeops/backend/internal/render"
	"github.com/chequeops/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Checkbook Printing Backend API
// @version 1.0
// @description Back-office API for branch checkbook and certified check printing
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	// Set environment variable prefix
	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("corebank.endpoint", "COREBANK_ENDPOINT")
	viper.BindEnv("corebank.timeout", "COREBANK_TIMEOUT")
	viper.BindEnv("corebank.cache_ttl", "COREBANK_CACHE_TTL")
	viper.BindEnv("render.output_dir", "RENDER_OUTPUT_DIR")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Checkbook Printing Backend API"
	docs.SwaggerInfo.Description = "Back-office API for branch checkbook and certified check printing"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	renderer, err := render.NewWriter()
	if err != nil {
		log.Fatalf("Failed to initialize renderer: %v", err)
	}

	policies := config.LoadPrintPolicies()
	cbClient := corebank.NewClient(redisClient)
	engine := services.NewAllocationEngine(db, policies)

	settingsService := services.NewSettingsService(db, policies)
	if err := settingsService.ApplyStored(); err != nil {
		log.Printf("Failed to apply stored settings, using defaults: %v", err)
	}

	authService := services.NewAuthService(db, redisClient)
	printingService := services.NewPrintingService(db, engine, cbClient, renderer)
	certifiedService := services.NewCertifiedCheckService(db, engine, policies, renderer)
	printLogService := services.NewPrintLogService(db, engine, renderer)
	inventoryService := services.NewInventoryService(db)
	branchService := services.NewBranchService(db)
	accountService := services.NewAccountService(db, cbClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	authRequired := mW.AuthMiddleware(redisClient)

	// Rendered checkbook documents
	r.Route("/documents", func(r chi.Router) {
		r.Use(authRequired)
		r.Handle("/*", http.StripPrefix("/documents/",
			mW.ArtifactServer(viper.GetString("render.output_dir"))))
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(authRequired)

			// Printing
			r.Post("/print", printingService.PrintCheckbook)

			// Certified checks
			r.Post("/certified/print", certifiedService.PrintCertified)
			r.Get("/certified/next-range", certifiedService.NextRange)
			r.Get("/certified/serials", certifiedService.BranchSerials)

			// Print logs
			r.Get("/print-logs", printLogService.ListLogs)
			r.Get("/print-logs/statistics", printLogService.GetStatistics)
			r.Post("/print-logs/{id}/reprint", printLogService.Reprint)

			// Inventory
			r.Get("/inventory", inventoryService.GetInventory)
			r.Get("/inventory/transactions", inventoryService.ListTransactions)

			// Settings
			r.Get("/settings", settingsService.GetSettings)

			// Branches and accounts
			r.Get("/branches", branchService.ListBranches)
			r.Get("/branches/{id}", branchService.GetBranch)
			r.Get("/accounts", accountService.ListAccounts)
			r.Get("/accounts/{accountNumber}", accountService.GetAccount)

			// Admin-only endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireAdmin)

				r.Post("/auth/register", authService.Register)
				r.Put("/settings/policy", settingsService.UpdatePolicy)
				r.Post("/inventory/add", inventoryService.AddStock)
				r.Post("/branches", branchService.CreateBranch)
				r.Put("/branches/{id}", branchService.UpdateBranch)
				r.Delete("/branches/{id}", branchService.DeleteBranch)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
