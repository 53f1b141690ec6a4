package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/existflow/instafeed/internal/logger"
	"github.com/existflow/instafeed/server"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load() // optional .env

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = "instafeed-server.db"
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
		log.Printf("JWT_SECRET not set, using an insecure development key")
	}

	pageSize, _ := strconv.Atoi(os.Getenv("PAGE_SIZE"))

	if err := logger.Init(logger.Config{
		Level:    logger.ParseLevel(os.Getenv("LOG_LEVEL")),
		FilePath: os.Getenv("LOG_FILE"),
		Console:  true,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Close()
	}()

	srv, err := server.New(server.Config{
		DatabaseURL: dbURL,
		JWTSecret:   secret,
		PageSize:    pageSize,
		SeedDemo:    os.Getenv("SEED_DEMO") == "true",
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Printf("Error closing server: %v", err)
		}
	}()

	go func() {
		logger.Info("Instafeed server starting", logger.F("port", port))
		if err := srv.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
