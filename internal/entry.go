// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/cardring/internal/api"
	"github.com/starford/cardring/internal/hostopen"
	"github.com/starford/cardring/internal/index"
	"github.com/starford/cardring/internal/mcpserver"
	"github.com/starford/cardring/internal/scene"
	"github.com/starford/cardring/internal/scrapbox"
	"github.com/starford/cardring/internal/sse"
	"github.com/starford/cardring/internal/storage"
	"github.com/starford/cardring/internal/vault"
)

// simulateFPS drives headless runs; nobody watches the frames.
const simulateFPS = 1000

// sources holds the page cache and the fetcher built from the configuration.
type sources struct {
	db      *index.DB
	fetcher scene.Fetcher
	vault   *vault.Source
}

func (s *sources) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(level slog.Level, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// openSources opens the page cache and builds the configured fetcher.
func (a *application) openSources(logger *slog.Logger) (*sources, error) {
	cfg := a.config

	db, err := index.Open(cfg.Cache.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	src := &sources{db: db, fetcher: a.fetcher}
	if src.fetcher != nil {
		return src, nil
	}

	client := scrapbox.New(cfg.Source.BaseURL,
		scrapbox.WithCache(db),
		scrapbox.WithLogger(logger),
	)
	if cfg.Source.Kind != SourceVault {
		src.fetcher = client
		return src, nil
	}

	if err := os.MkdirAll(cfg.Source.VaultPath, 0o755); err != nil {
		db.Close()
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Source.VaultPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	src.vault = vault.NewSource(cfg.Source.Project, db, store, client, logger)
	src.fetcher = src.vault
	return src, nil
}

func (a *application) registry(f scene.Fetcher, sink func(string) scene.FrameSink, fps int, logger *slog.Logger) *scene.Registry {
	return scene.NewRegistry(f, scene.RegistryConfig{
		Params:      a.config.Scene.Params(),
		FPS:         fps,
		Concurrency: a.config.Scene.LoadConcurrency,
		Sink:        sink,
	}, logger)
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(cfg.App.LogLevel, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("source", cfg.Source.Kind),
		slog.String("project", cfg.Source.Project),
		slog.String("sqlite_path", cfg.Cache.SQLitePath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	src, err := app.openSources(logger)
	if err != nil {
		return err
	}
	defer src.Close()

	broker := sse.NewBroker(cfg.Scene.FrameThrottle)
	defer broker.Close()

	reg := app.registry(src.fetcher, broker.Sink, cfg.Scene.FPS, logger)
	defer reg.Close()

	apiRouter := api.NewRouter(api.RouterConfig{
		Fetcher:     src.fetcher,
		Opener:      hostopen.New(),
		Scenes:      reg,
		Broker:      broker,
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		StaticDir:   cfg.Static.Dir,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload the vault project whenever its files settle after a change.
	if src.vault != nil {
		g.Go(func() error {
			err := src.vault.Watch(gCtx, 300*time.Millisecond, func() {
				if err := reg.Reload(gCtx, cfg.Source.Project); err != nil {
					logger.Warn("vault reload failed", slog.String("error", err.Error()))
				}
			})
			if err != nil && gCtx.Err() == nil {
				logger.Warn("vault watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams stay open until the broker closes them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the vault watcher stops with the server.
var errShutdown = errors.New("shutdown")

// Simulate loads the configured project headlessly, optionally selects
// title, runs the scene until it is idle and writes the final frame as JSON.
func Simulate(ctx context.Context, title string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg.App.LogLevel, os.Stderr)

	src, err := app.openSources(logger)
	if err != nil {
		return err
	}
	defer src.Close()

	reg := app.registry(src.fetcher, nil, simulateFPS, logger)
	defer reg.Close()

	sess, err := reg.Session(ctx, cfg.Source.Project)
	if err != nil {
		return fmt.Errorf("simulate: load %s: %w", cfg.Source.Project, err)
	}
	if title != "" {
		started, err := sess.Select(ctx, title)
		if err != nil {
			return fmt.Errorf("simulate: select %s: %w", title, err)
		}
		if !started {
			logger.Info("simulate: card has no links", slog.String("title", title))
		}
	}

	frame, err := sess.WaitIdle(ctx)
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}

	enc := json.NewEncoder(app.out)
	enc.SetIndent("", "  ")
	return enc.Encode(frame)
}

// ServeMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg.App.LogLevel, os.Stderr)
	slog.SetDefault(logger)

	src, err := app.openSources(logger)
	if err != nil {
		return err
	}
	defer src.Close()

	reg := app.registry(src.fetcher, nil, cfg.Scene.FPS, logger)
	defer reg.Close()

	if src.vault != nil {
		go func() {
			_ = src.vault.Watch(ctx, 300*time.Millisecond, func() {
				if err := reg.Reload(ctx, cfg.Source.Project); err != nil {
					logger.Warn("vault reload failed", slog.String("error", err.Error()))
				}
			})
		}()
	}

	logger.Info("MCP server starting", slog.String("project", cfg.Source.Project))
	return mcpserver.New(reg, src.fetcher, src.db, cfg.Source.Project).ServeStdio()
}
