package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aniways/anipush/internal/api"
	"github.com/aniways/anipush/internal/core"
	"github.com/aniways/anipush/internal/fetch"
	"github.com/aniways/anipush/internal/imagecache"
	"github.com/aniways/anipush/internal/onebot"
	"github.com/aniways/anipush/internal/processor"
	"github.com/aniways/anipush/internal/push"
	"github.com/aniways/anipush/internal/store"
)

func main() {
	// Initialize the core application components
	app, err := core.New()
	if err != nil {
		log.Fatalf("Fatal error during application setup: %v", err)
	}
	defer app.Close()

	fetcher, err := fetch.New(app.Config.Proxy)
	if err != nil {
		log.Fatalf("Fatal error building HTTP client: %v", err)
	}

	images, err := imagecache.New(
		filepath.Join(app.Config.DataDir, "images"),
		fetcher,
		app.Config.Emby.Enabled,
		app.Config.Emby.Host,
		app.Config.Emby.APIKey,
	)
	if err != nil {
		log.Fatalf("Fatal error preparing image cache: %v", err)
	}

	probeExternalServices(app, fetcher)

	bot := onebot.New(app.Config.OneBot.URL, app.Config.OneBot.AccessToken)
	defer bot.Close()

	st := store.New(app.DB)
	registry := processor.NewRegistry(processor.NewEmby(), processor.NewAniRSS())
	merger := processor.NewMerger(st, app.Config.Emby.Enabled, app.Config.Emby.Host)
	pusher := push.NewService(st, app.Targets, images, bot)
	pipeline := processor.NewPipeline(st, registry, merger, pusher)

	// Reload destinations when the file changes on disk.
	stopWatch, err := app.Targets.Watch()
	if err != nil {
		log.Printf("Warning: push target file watcher unavailable: %v", err)
	} else {
		defer close(stopWatch)
	}

	// Setup the API server
	server := api.NewServer(app, pipeline)
	addr := fmt.Sprintf(":%d", app.Config.Port)
	log.Printf("Starting web server on %s", addr)

	httpServer := &http.Server{Addr: addr, Handler: server.Router()}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Warning: server shutdown: %v", err)
	}
}

// probeExternalServices checks reachability of the configured upstream
// services at startup. Failures are logged, never fatal: the pipeline
// degrades per event instead.
func probeExternalServices(app *core.App, fetcher *fetch.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if app.Config.Emby.Enabled && app.Config.Emby.Host != "" {
		url := fmt.Sprintf("%s/emby/System/Ping", app.Config.Emby.Host)
		if _, err := fetcher.Get(ctx, url, nil); err != nil {
			log.Printf("Warning: Emby server unreachable: %v", err)
		} else {
			log.Println("Emby server reachable.")
		}
	}

	if app.Config.TMDB.Enabled && app.Config.TMDB.APIKey != "" {
		headers := map[string]string{
			"Authorization": "Bearer " + app.Config.TMDB.APIKey,
			"Accept":        "application/json",
		}
		if _, err := fetcher.Get(ctx, "https://api.themoviedb.org/3/authentication", headers); err != nil {
			log.Printf("Warning: TMDB API unreachable: %v", err)
		} else {
			log.Println("TMDB API reachable.")
		}
	}
}
