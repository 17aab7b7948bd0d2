package app

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/osvaldoandrade/xebench/internal/middleware"
	"github.com/osvaldoandrade/xebench/internal/services"
	"github.com/osvaldoandrade/xebench/internal/tracing"
	"github.com/osvaldoandrade/xebench/pkg/config"
	"github.com/osvaldoandrade/xebench/pkg/persistence"

	"github.com/gin-gonic/gin"
)

const serviceName = "xebench"

type Application struct {
	Config          *config.Config
	Engine          *gin.Engine
	Reports         services.ReportService
	Store           persistence.PluginPersistence
	Logger          *slog.Logger
	TracingShutdown func(context.Context) error
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithStore sets the report store instead of building one from config
func WithStore(store persistence.PluginPersistence) ApplicationOption {
	return func(app *Application) error {
		app.Store = store
		return nil
	}
}

// WithLogger replaces the config-derived logger
func WithLogger(logger *slog.Logger) ApplicationOption {
	return func(app *Application) error {
		app.Logger = logger
		return nil
	}
}

// NewLogger builds the process logger from config. LogFormat "text" selects
// the text handler; anything else logs JSON.
func NewLogger(cfg *config.Config, w io.Writer, component string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With("service", serviceName, "component", component, "env", cfg.Env)
}

// OpenStore builds the configured report store. It returns nil when
// persistence is disabled.
func OpenStore(cfg *config.Config) (persistence.PluginPersistence, error) {
	if cfg.Persistence.Type == "" {
		return nil, nil
	}
	raw, err := cfg.Persistence.RawConfig()
	if err != nil {
		return nil, err
	}
	return persistence.NewPersistence(persistence.ProviderConfig{Type: cfg.Persistence.Type, Config: raw})
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	app := &Application{Config: cfg}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.Logger == nil {
		app.Logger = NewLogger(cfg, os.Stdout, "server")
		slog.SetDefault(app.Logger)
	}

	if app.Store == nil {
		if cfg.Persistence.Type == "" {
			cfg.Persistence.Type = "memory"
		}
		store, err := OpenStore(cfg)
		if err != nil {
			return nil, err
		}
		app.Store = store
	}
	app.Reports = services.NewReportService(app.Store, app.Logger)

	shutdown, err := tracing.Setup(context.Background(), serviceName, cfg.Tracing, config.WorkerIdentity{JobID: "server"}, app.Logger)
	if err != nil {
		return nil, err
	}
	app.TracingShutdown = shutdown

	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestIDMiddleware(), middleware.LoggerMiddleware(app.Logger), middleware.TracingMiddleware(serviceName))
	app.Engine = engine

	return app, nil
}

// Close flushes traces and releases the report store.
func (a *Application) Close(ctx context.Context) error {
	if a.TracingShutdown != nil {
		_ = a.TracingShutdown(ctx)
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
