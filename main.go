package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"boxdsync/api"
	"boxdsync/config"
	"boxdsync/handlers"
	"boxdsync/internal/database"
	"boxdsync/services/activity"
	"boxdsync/services/jellyfin"
	"boxdsync/services/scheduler"
	boxdsync "boxdsync/services/sync"
	"boxdsync/utils"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("boxdsync starting...")

	configPath := os.Getenv("BOXDSYNC_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// File logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	// Generate the API key on first start
	settings.Server.APIKey = strings.TrimSpace(settings.Server.APIKey)
	if settings.Server.APIKey == "" {
		key, err := utils.GenerateAPIKey()
		if err != nil {
			log.Fatalf("failed to generate API key: %v", err)
		}
		settings.Server.APIKey = key
		if err := cfgManager.Save(settings); err != nil {
			log.Fatalf("failed to persist generated API key: %v", err)
		}
		fmt.Printf("Generated API key (saved in %s): %s\n", configPath, key)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Open(ctx, settings.Database.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	activityService := activity.NewService(database.NewActivityRepository(db))
	jellyfinClient := jellyfin.NewClient(settings.Jellyfin.BaseURL, settings.Jellyfin.APIKey)
	syncService := boxdsync.NewService(cfgManager, jellyfinClient, activityService)
	schedulerService := scheduler.NewService(cfgManager, syncService)
	schedulerService.Start(ctx)

	r := utils.NewRouter()
	api.Register(
		r,
		settings.Server.APIKey,
		handlers.NewSettingsHandler(cfgManager),
		handlers.NewAccountsHandler(cfgManager),
		handlers.NewSyncHandler(schedulerService, syncService),
		handlers.NewActivityHandler(activityService),
		handlers.NewJellyfinHandler(jellyfinClient),
		handlers.NewLogsHandler(settings.Log.File),
	)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()
	schedulerService.Stop(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}
