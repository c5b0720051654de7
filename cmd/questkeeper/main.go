package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/questkeeper/internal/database"
	"github.com/dukerupert/questkeeper/internal/logging"
	"github.com/dukerupert/questkeeper/internal/server"
)

func main() {
	// Optional .env file for local development.
	_ = godotenv.Load()

	port := os.Getenv("QUESTKEEPER_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("QUESTKEEPER_DB_PATH")
	if dbPath == "" {
		dbPath = "questkeeper.db"
	}

	logger := logging.Setup(os.Getenv("QUESTKEEPER_LOG_LEVEL"))

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	srv := server.New(db, logger)

	// Hourly recurring-task reset loop.
	schedCtx, schedCancel := context.WithCancel(context.Background())
	srv.Scheduler().Start(schedCtx)
	defer schedCancel()

	// Periodic session and rate-limit cleanup.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := srv.SessionStore().DeleteExpired(); err != nil {
				logger.Warn("session cleanup failed", "error", err)
			}
			srv.RateLimiter().Cleanup()
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("QuestKeeper running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	srv.Scheduler().Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
