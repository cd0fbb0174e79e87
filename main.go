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

	"github.com/lendingdesk/lending-api/internal/api"
	"github.com/lendingdesk/lending-api/internal/cache"
	"github.com/lendingdesk/lending-api/internal/config"
	"github.com/lendingdesk/lending-api/internal/database"
	"github.com/lendingdesk/lending-api/internal/logger"
	"github.com/lendingdesk/lending-api/internal/monitoring"
	"github.com/lendingdesk/lending-api/internal/services"
	"github.com/lendingdesk/lending-api/internal/websocket"
)

func main() {
	logger.Init()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to apply database migrations: %v", err)
	}

	// Set up the schedule cache: Redis when configured, in-process otherwise
	var scheduleCache cache.ScheduleCache
	if cfg.RedisAddr != "" {
		scheduleCache = cache.NewRedisCache(cfg.RedisAddr)
	} else {
		scheduleCache = cache.NewMemoryCache()
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	eventService := services.NewEventService(db, hub)
	userService := services.NewUserService(db, eventService)
	accessService := services.NewAccessService(db)
	loanService := services.NewLoanService(db, userService, accessService, eventService, scheduleCache)

	// Set up and run the background loan maintenance job
	maintenance, err := monitoring.NewMaintenance(loanService, cfg.MaintenanceCron)
	if err != nil {
		log.Fatalf("Invalid maintenance cron expression: %v", err)
	}
	go maintenance.Run()

	// Set up router
	router := api.NewRouter(hub, userService, loanService, accessService, eventService)

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on port %d\n", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	maintenance.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
