package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cshum/vipsgen/vips"
	"go.uber.org/zap"

	"tilecache/internal/config"
	httphandlers "tilecache/internal/http"
	"tilecache/internal/imageprobe"
	"tilecache/internal/library"
	"tilecache/internal/logger"
	"tilecache/internal/preload"
	"tilecache/internal/resource"
	"tilecache/internal/tile_renderer"
	"tilecache/internal/tileset"
	"tilecache/internal/tileset_list"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	imageprobe.Startup(imageprobe.Config{
		MaxCacheMB:  cfg.VipsMaxCacheMB,
		Concurrency: cfg.VipsConcurrency,
	}, log)
	defer vips.Shutdown()

	log.Info("Starting tileset server",
		zap.Int("port", cfg.Port),
		zap.String("asset_dir", cfg.AssetDir),
	)

	scanner := tileset_list.New(cfg.AssetDir, log)
	if err := scanner.Scan(); err != nil {
		log.Warn("Initial scan failed", zap.Error(err))
	}

	tilesetCache, err := resource.NewCache(cfg.CacheMode, log)
	if err != nil {
		log.Fatal("Failed to initialize cache", zap.Error(err))
	}

	var prober tileset.ImageProber
	if cfg.ProbeImages {
		prober = imageprobe.NewVipsProber()
	}
	loader := tileset.NewLoader(prober, log)

	lib := library.New(scanner, tilesetCache, loader, log)
	renderer := tile_renderer.New(lib, log)
	handlers := httphandlers.New(cfg, log, lib, renderer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Preload {
		go func() {
			if _, err := preload.Run(ctx, cfg.PreloadWorkers, lib.Keys(), tilesetCache, loader, log); err != nil {
				log.Warn("Tileset preload interrupted", zap.Error(err))
			}
		}()
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handlers.Routes(),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
