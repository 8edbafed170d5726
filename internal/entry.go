// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/asterisk/internal/aggregate"
	"github.com/starford/asterisk/internal/annotation"
	"github.com/starford/asterisk/internal/api"
	"github.com/starford/asterisk/internal/dispatch"
	"github.com/starford/asterisk/internal/host"
	"github.com/starford/asterisk/internal/kv"
	"github.com/starford/asterisk/internal/mcpserver"
	"github.com/starford/asterisk/internal/prefs"
	"github.com/starford/asterisk/internal/sse"
)

// runtime is the wired object graph shared by every entry point.
type runtime struct {
	logger *slog.Logger
	store  kv.Store
	canvas *host.Canvas
	repo   *annotation.Repository
	engine *aggregate.Engine
	d      *dispatch.Dispatcher
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// build opens the store, loads the document and wires the dispatcher.
// The caller owns rt.store and must close it.
func (app *application) build(ctx context.Context, sink dispatch.Sink) (*runtime, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("document_path", cfg.Document.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	doc, err := loadDocument(cfg.Document)
	if err != nil {
		return nil, err
	}
	canvas, err := host.NewCanvas(doc)
	if err != nil {
		return nil, fmt.Errorf("init canvas: %w", err)
	}

	store, err := kv.Open(ctx, cfg.Storage.Options())
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	repo := annotation.NewRepository(store, logger)
	engine := aggregate.NewEngine(store, canvas, logger)
	d := dispatch.New(canvas, repo, engine, prefs.NewStore(store, logger), sink, logger)
	canvas.Subscribe(d.HostEvent)

	return &runtime{logger: logger, store: store, canvas: canvas, repo: repo, engine: engine, d: d}, nil
}

// loadDocument reads the configured document, or returns a one-page local
// document when no path is set.
func loadDocument(cfg DocumentConfig) (host.DocumentSpec, error) {
	if cfg.Path == "" {
		return host.DocumentSpec{
			Pages: []host.PageSpec{{ID: "0:1", Name: "Page 1"}},
		}, nil
	}
	doc, err := host.LoadDocument(cfg.Path)
	if err != nil {
		return doc, fmt.Errorf("init document: %w", err)
	}
	return doc, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// SSE broker. Late subscribers get the startup pushes replayed.
	broker := sse.NewBroker(15*time.Second,
		dispatch.TypeInitPreferences, dispatch.TypeContextInfo, dispatch.TypeContextChanged)
	defer broker.Close()

	rt, err := app.build(ctx, broker)
	if err != nil {
		return err
	}
	defer rt.store.Close()
	logger := rt.logger

	if _, err := rt.d.Start(ctx); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}

	apiRouter := api.NewRouter(rt.d, rt.canvas, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", readyHandler(rt.store))

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// Reload the document on change.
	if cfg.Document.Watch {
		g.Go(func() error {
			if err := host.Watch(gCtx, rt.canvas, cfg.Document.Path, logger); err != nil {
				logger.Warn("document watcher failed", slog.String("error", err.Error()))
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
		stop()

		// SSE streams only end when their clients go away.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to the configured
// log output, which must not be stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	var logger *slog.Logger
	pushes := dispatch.SinkFunc(func(m dispatch.Message) {
		logger.Debug("push", slog.String("type", m.Type))
	})

	rt, err := app.build(ctx, pushes)
	if err != nil {
		return err
	}
	defer rt.store.Close()
	logger = rt.logger

	if _, err := rt.d.Start(ctx); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}

	if app.config.Document.Watch {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := host.Watch(watchCtx, rt.canvas, app.config.Document.Path, logger); err != nil {
				logger.Warn("document watcher failed", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.d).ServeStdio()
}

type pinger interface {
	Ping(ctx context.Context) error
}

func readyHandler(store kv.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p, ok := store.(pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
