package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ccjoness/StellarIQ-API/app"
	"github.com/ccjoness/StellarIQ-API/config"
	"github.com/ccjoness/StellarIQ-API/middleware"
	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("==============================================")
	log.Println("  StellarIQ Monitoring API - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	application, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Initialization failed: %v", err)
	}

	if err := application.Migrate(); err != nil {
		application.Close(context.Background())
		log.Fatalf("ERROR: %v", err)
	}

	// Start background scheduler
	if err := application.Scheduler.Start(); err != nil {
		application.Close(context.Background())
		log.Fatalf("Scheduler failed to start: %v", err)
	}

	// Create Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger())
	application.RegisterRoutes(router)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	gracefulShutdown(server, application)
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, application *app.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop scheduler first
	application.Scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	application.Close(ctx)
	log.Println("Server shutdown completed")
}
