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

	"github.com/starford/dosewise/internal/adherence"
	"github.com/starford/dosewise/internal/api"
	"github.com/starford/dosewise/internal/assistant"
	"github.com/starford/dosewise/internal/interaction"
	"github.com/starford/dosewise/internal/mcpserver"
	"github.com/starford/dosewise/internal/medication"
	"github.com/starford/dosewise/internal/notify"
	"github.com/starford/dosewise/internal/profile"
	"github.com/starford/dosewise/internal/reminder"
	"github.com/starford/dosewise/internal/scan"
	"github.com/starford/dosewise/internal/sse"
	"github.com/starford/dosewise/internal/storage"
	"github.com/starford/dosewise/internal/tracker"
)

const probeRetry = 30 * time.Second

// components is the wired application shared by all commands.
type components struct {
	cfg        *Config
	logger     *slog.Logger
	store      storage.Backend
	broker     *sse.Broker
	reminders  *reminder.Scheduler
	service    *tracker.Service
	responder  assistant.Responder
	classifier *scan.HTTPClassifier
	closers    []func()
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// build initializes the logger, storage and every domain component.
func build(ctx context.Context, opts []Option) (*components, error) {
	app := newApplication(opts)
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	loc, err := cfg.App.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve timezone: %w", err)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("timezone", loc.String()),
		slog.String("assistant", cfg.Assistant.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c := &components{cfg: cfg, logger: logger}

	// Initialize storage.
	store, err := storage.Open(ctx, cfg.Store.Options())
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	c.store = store
	c.closers = append(c.closers, func() { _ = store.Close() })

	engine := interaction.Default()
	if cfg.Interactions.RulesFile != "" {
		engine, err = interaction.LoadFile(cfg.Interactions.RulesFile)
		if err != nil {
			c.close()
			return nil, fmt.Errorf("load interaction rules: %w", err)
		}
		logger.Info("interaction rules loaded",
			slog.String("file", cfg.Interactions.RulesFile),
			slog.Int("rules", len(engine.Rules())))
	}

	// SSE broker.
	c.broker = sse.NewBroker(2 * time.Second)
	c.closers = append(c.closers, c.broker.Close)

	// Notification sinks. MQTT is best-effort; a broker that is down at
	// startup only costs the MQTT copy of each reminder.
	sinks := notify.Multi{notify.Log{Logger: logger}, notify.Broker{Events: c.broker}}
	if cfg.Notify.MQTT.Enabled() {
		m, err := notify.DialMQTT(notify.MQTTOptions{
			Broker:      cfg.Notify.MQTT.Broker,
			ClientID:    cfg.Notify.MQTT.ClientID,
			Username:    cfg.Notify.MQTT.Username,
			Password:    cfg.Notify.MQTT.Password,
			TopicPrefix: cfg.Notify.MQTT.TopicPrefix,
		})
		if err != nil {
			logger.Warn("mqtt notifier disabled", slog.String("error", err.Error()))
		} else {
			sinks = append(sinks, m)
			c.closers = append(c.closers, m.Close)
		}
	}

	rr := cfg.Reminders.RoundRobinInterval
	if rr == 0 {
		rr = -1
	}
	c.reminders = reminder.New(sinks, logger, reminder.Options{
		SnoozeDelay:        cfg.Reminders.SnoozeDelay,
		RoundRobinInterval: rr,
		Location:           loc,
	})
	c.closers = append(c.closers, c.reminders.Close)

	keys := storage.NewKeys(cfg.Store.KeyPrefix)
	c.service = tracker.New(tracker.Deps{
		Medications: medication.NewRegistry(ctx, store, keys.Medications, medication.WithLogger(logger)),
		Ledger: adherence.NewLedger(ctx, store, keys.Adherence,
			adherence.WithLocation(loc), adherence.WithLogger(logger)),
		Profile:   profile.NewStore(ctx, store, keys.Profile, logger),
		Engine:    engine,
		Reminders: c.reminders,
		Events:    c.broker,
		Keys:      keys,
		Logger:    logger,
	})

	c.responder, err = assistant.New(ctx, cfg.Assistant.Options(), logger)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("init assistant: %w", err)
	}

	if cfg.Scan.Endpoint != "" {
		c.classifier = scan.NewHTTPClassifier(cfg.Scan.Endpoint, cfg.Scan.Timeout, logger)
	}

	return c, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	c, err := build(ctx, opts)
	if err != nil {
		return err
	}
	defer c.close()

	cfg := c.cfg
	logger := c.logger

	apiOpts := api.Options{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		Events:      c.broker,
		Assistant:   c.responder,
	}
	if c.classifier != nil {
		apiOpts.Classifier = c.classifier
	}
	apiRouter := api.NewRouter(c.service, apiOpts)

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
		scanState := "disabled"
		if c.classifier != nil {
			scanState = "loading"
			if c.classifier.Ready() {
				scanState = "ready"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","scan":%q}`, scanState)
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	// Reminder loop.
	g.Go(func() error {
		return c.reminders.Run(gCtx)
	})

	// Reload state written by other processes.
	if fs, ok := c.store.(*storage.FS); ok && cfg.Store.Watch {
		g.Go(func() error {
			err := storage.Watch(gCtx, fs, logger, func(key string) {
				c.service.Reload(gCtx, key)
			})
			if err != nil {
				logger.Warn("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Classifier model load.
	if c.classifier != nil {
		g.Go(func() error {
			probeUntilReady(gCtx, c.classifier, logger)
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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		c.reminders.Close()
		stop()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	c, err := build(ctx, opts)
	if err != nil {
		return err
	}
	defer c.close()

	c.logger.Info("MCP server starting on stdio")
	if err := mcpserver.New(c.service, c.responder).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func probeUntilReady(ctx context.Context, cl *scan.HTTPClassifier, logger *slog.Logger) {
	for {
		err := cl.Probe(ctx)
		if err == nil {
			return
		}
		logger.Warn("scan model not ready", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return
		case <-time.After(probeRetry):
		}
	}
}
