package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/alumni-connect/gallery-service/docs"
	"github.com/alumni-connect/gallery-service/internal/bootstrap"
	"github.com/alumni-connect/gallery-service/internal/cache"
	"github.com/alumni-connect/gallery-service/internal/captions"
	"github.com/alumni-connect/gallery-service/internal/config"
	"github.com/alumni-connect/gallery-service/internal/events"
	"github.com/alumni-connect/gallery-service/internal/http/handlers/gallery"
	wsHandler "github.com/alumni-connect/gallery-service/internal/http/handlers/websocket"
	"github.com/alumni-connect/gallery-service/internal/http/middleware"
	galleryService "github.com/alumni-connect/gallery-service/internal/services/gallery"
	galleryTypes "github.com/alumni-connect/gallery-service/internal/types/gallery"
	"github.com/alumni-connect/gallery-service/internal/websocket"
	"github.com/go-redis/redis/v8"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Alumni Connect Gallery API
// @version 1.0
// @description Photo uploads, albums and moderation for the alumni gallery.
// @host localhost:5000
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// load config
	cfg := config.MustLoad()
	setupLogger(cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// stores
	records, closeRecords, err := bootstrap.OpenStorage(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer closeRecords()

	blobs, err := bootstrap.OpenBlobStore(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize blob store:", err)
	}

	redisClient, err := bootstrap.OpenRedis(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize Redis:", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		records = cache.NewCacheService(records, redisClient)
	}

	// moderation feed
	hub := websocket.NewHub()
	go hub.Run(ctx)

	service := galleryService.NewService(records, blobs, galleryService.Options{
		MaxFileSize: cfg.Upload.MaxFileSize,
		Captions:    captionStore(cfg),
		Publisher:   events.NewEventPublisher(hub),
	})

	router := newRouter(cfg, service, hub, redisClient)

	server := http.Server{
		Addr:    cfg.HTTPServer.Address,
		Handler: middleware.Authenticate(cfg.Auth)(router),
	}

	slog.Info("server started", slog.String("address", cfg.HTTPServer.Address))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start server: %s", err)
		}
	}()

	<-done

	slog.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
		return
	}

	slog.Info("Server stopped")
}

func setupLogger(env string) {
	var handler slog.Handler
	if env == "local" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func captionStore(cfg *config.Config) captions.Store {
	if !cfg.Upload.CaptionsFile || cfg.Blob.Driver != "fs" {
		return captions.Noop{}
	}
	return captions.NewFile(filepath.Join(cfg.Upload.Dir, galleryTypes.UncategorizedDir, captions.FileName))
}

func newRouter(cfg *config.Config, service *galleryService.Service, hub *websocket.Hub, redisClient *redis.Client) *http.ServeMux {
	router := http.NewServeMux()

	handlers := gallery.NewGalleryHandlers(service, cfg.Upload.MaxFileSize, cfg.Upload.MaxFiles)
	handlers.RegisterRoutes(router, middleware.NewRateLimitConfig(redisClient, cfg.RateLimit))
	if cfg.Upload.ServeBlobFiles {
		handlers.RegisterBlobRoutes(router)
	}

	router.HandleFunc("GET /gallery/ws", wsHandler.WebSocketHandler(hub, cfg.Auth))

	if redisClient != nil {
		router.HandleFunc("GET /gallery/cache", middleware.RequireAdmin(cache.GetCacheStats(redisClient)))
		router.HandleFunc("DELETE /gallery/cache", middleware.RequireAdmin(cache.ClearCache(redisClient)))
	}

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	router.Handle("GET /swagger/", httpSwagger.WrapHandler)

	// the web client calls the gallery under /api
	router.Handle("/api/", http.StripPrefix("/api", router))

	return router
}
