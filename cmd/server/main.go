package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/weedbot/console/internal/config"
	custommw "github.com/weedbot/console/internal/middleware"
	"github.com/weedbot/console/internal/observability"
	"github.com/weedbot/console/internal/server"
)

const serviceVersion = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetry, err := observability.InitTelemetry(ctx,
		observability.NewTelemetryConfig("weedbot-gallery", serviceVersion))
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	// Tag repository
	var tagRepo server.TagRepo
	if cfg.UsePostgres() {
		log.Println("Using PostgreSQL tag database")
		tagRepo, err = server.NewPostgresTagRepo(cfg.DatabaseURL)
	} else {
		log.Println("Using SQLite tag database")
		tagRepo, err = server.NewSQLiteTagRepo(cfg.DatabasePath)
	}
	if err != nil {
		log.Fatalf("Failed to initialize tag database: %v", err)
	}
	defer tagRepo.Close()

	store, err := server.NewStore(cfg.Gallery.ImageDirectory)
	if err != nil {
		log.Fatalf("Failed to initialize image store: %v", err)
	}

	thumbs := server.NewThumbnailer(cfg.Gallery.ThumbnailMaxDim, cfg.Gallery.ThumbnailQuality)

	hub := server.NewHub()
	go hub.Run()

	watcher := server.NewCaptureWatcher(store, hub)
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			observability.Errorf("capture watcher stopped: %v", err)
		}
	}()

	galleryHandler := server.NewGalleryHandler(store, tagRepo, thumbs, hub)

	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		log.Fatalf("Failed to create HTTP metrics: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware("weedbot-gallery"))
	r.Use(observability.MetricsMiddleware(httpMetrics))
	r.Use(custommw.APIKeyAuth(cfg.Security.APIKey, cfg.Security.APIKeyHeader))

	r.Get("/health", healthCheck)
	r.Get("/api/health", healthCheck)
	r.Route("/api/gallery", galleryHandler.Routes)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Longer for zip downloads
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Gallery server starting on %s", cfg.ServerAddress)
		log.Printf("Image directory: %s", cfg.Gallery.ImageDirectory)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.Printf("Telemetry shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
