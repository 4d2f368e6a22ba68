package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/nexusdeck/nexus/backend-go/internal/asset"
	"github.com/nexusdeck/nexus/backend-go/internal/auth"
	"github.com/nexusdeck/nexus/backend-go/internal/clock"
	"github.com/nexusdeck/nexus/backend-go/internal/config"
	"github.com/nexusdeck/nexus/backend-go/internal/db"
	"github.com/nexusdeck/nexus/backend-go/internal/deck"
	"github.com/nexusdeck/nexus/backend-go/internal/export"
	"github.com/nexusdeck/nexus/backend-go/internal/generate"
	"github.com/nexusdeck/nexus/backend-go/internal/live"
	mw "github.com/nexusdeck/nexus/backend-go/internal/middleware"
	"github.com/nexusdeck/nexus/backend-go/internal/playback"
	"github.com/nexusdeck/nexus/backend-go/internal/render"
	"github.com/nexusdeck/nexus/backend-go/internal/store"
	"github.com/nexusdeck/nexus/backend-go/internal/store/postgres"
	"github.com/nexusdeck/nexus/backend-go/internal/store/sqlite"
)

const (
	assetPrefix = "/assets/"
	videoWidth  = 1280
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, users, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("open store", "error", err, "driver", cfg.StoreDriver)
		os.Exit(1)
	}
	defer closeStore()

	clk := clock.Real()
	raster := render.NewRasterizer(render.DirSource{Dir: cfg.AssetDir, Prefix: assetPrefix})
	encoder := export.NewFFmpeg(cfg.FfmpegPath)
	if err := encoder.Available(); err != nil {
		slog.Warn("ffmpeg not available, video export will fail", "error", err)
	}

	play := playback.Config{SettleDelay: cfg.SettleDelay, GraceDelay: cfg.GraceDelay}
	exportDir := cfg.ExportDir

	authService := auth.NewService(users, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	var (
		deckOpts []deck.Option
		gen      generate.Generator
		images   generate.ImageGenerator
	)
	if cfg.LLMAPIKey != "" {
		client, err := generate.NewOpenAIClient(generate.Config{
			Provider: generate.Provider(cfg.LLMProvider),
			APIKey:   cfg.LLMAPIKey,
			Model:    cfg.LLMModel,
		})
		if err != nil {
			slog.Error("configure content generation", "error", err)
			os.Exit(1)
		}
		gen, images = client, client
		deckOpts = append(deckOpts, deck.WithGenerator(client, client))
	} else {
		slog.Info("LLM_API_KEY not set, content generation disabled")
	}

	deckService := deck.NewService(st, clk, raster, deckOpts...)
	deckHandler := deck.NewHandler(deckService)

	exportHandler := export.NewHandler(st, encoder, raster, clk, export.HandlerConfig{
		FPS:      cfg.CaptureFPS,
		Width:    videoWidth,
		OutDir:   exportDir,
		Playback: play,
	})
	assetHandler := asset.NewHandler(cfg.AssetDir, assetPrefix)

	hub := live.NewHub(st, clk, raster, encoder, live.Config{
		AutosaveDelay: cfg.AutosaveDebounce,
		Playback:      play,
		Capture: live.CaptureConfig{
			FPS:    cfg.CaptureFPS,
			Format: cfg.CaptureFormat,
			Width:  videoWidth,
			OutDir: exportDir,
		},
		Generator: gen,
		Images:    images,
	})
	liveHandler := live.NewHandler(hub, authService, mw.OriginHosts(cfg.Origins()))

	r := mux.NewRouter()

	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Auth routes (public)
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Public: used by the playground as well as signed-in users
	r.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST", "OPTIONS")
	r.PathPrefix(assetPrefix).Handler(assetHandler.Serve()).Methods("GET")
	r.HandleFunc("/export/frames", exportHandler.Frames).Methods("POST", "OPTIONS")
	r.HandleFunc("/exports/{name}", liveHandler.Download).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/me", authHandler.Me).Methods("GET")
	api.HandleFunc("/presentations", deckHandler.List).Methods("GET")
	api.HandleFunc("/presentations", deckHandler.Create).Methods("POST")
	api.HandleFunc("/presentations/import", deckHandler.Import).Methods("POST")
	api.HandleFunc("/presentations/{presentationId}", deckHandler.Get).Methods("GET")
	api.HandleFunc("/presentations/{presentationId}", deckHandler.Save).Methods("PUT")
	api.HandleFunc("/presentations/{presentationId}", deckHandler.Delete).Methods("DELETE")
	api.HandleFunc("/presentations/{presentationId}/thumbnail", deckHandler.Thumbnail).Methods("GET")
	api.HandleFunc("/presentations/{presentationId}/generate", deckHandler.Generate).Methods("POST")
	api.HandleFunc("/presentations/{presentationId}/export", exportHandler.Document).Methods("GET")
	api.HandleFunc("/presentations/{presentationId}/export/video", exportHandler.Video).Methods("POST")

	r.HandleFunc("/ws/presentations/{presentationId}", liveHandler.ServeWS)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Server-side video export holds the request for the whole show.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Close editor rooms first so pending edits are flushed
		slog.Info("saving open presentations...")
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "store", cfg.StoreDriver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, store.UserStore, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		m := store.NewMemory()
		return m, m, func() {}, nil
	case "file":
		f, err := store.NewFile(cfg.DataDir)
		if err != nil {
			return nil, nil, nil, err
		}
		slog.Warn("file store keeps accounts in memory; they are lost on restart")
		return f, store.NewMemory(), func() {}, nil
	case "sqlite":
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, func() { s.Close() }, nil
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		s := postgres.New(pool)
		return s, s, pool.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
