package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"stargate/internal/config"
	"stargate/internal/db"
	"stargate/internal/engine"
	"stargate/internal/events"
	"stargate/internal/metrics"
	"stargate/internal/migrate"
	"stargate/internal/repo"
)

// Options override what stargate.yml says. Empty fields keep the file value.
type Options struct {
	Workspace  string
	ConfigPath string
	Driver     string
	DSN        string
	LogOutput  io.Writer
}

// Runtime is a fully wired process: migrated database, audit queue and engine.
type Runtime struct {
	Config  *config.Config
	DB      *sql.DB
	Repo    repo.Repo
	Engine  engine.Engine
	Metrics *metrics.Metrics
	Audit   *events.Queue
	Logger  *slog.Logger
}

// LoadConfig resolves the config file (explicit path, then workspace) and
// applies flag overrides.
func LoadConfig(opts Options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = config.FromFile(opts.ConfigPath)
	} else {
		cfg, err = config.Load(opts.Workspace)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.Driver != "" {
		cfg.Database.Driver = opts.Driver
	}
	if opts.DSN != "" {
		cfg.Database.DSN = opts.DSN
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// Open loads config, opens and migrates the database and starts the audit queue.
// Callers must Close the runtime to flush pending audit entries.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	out := opts.LogOutput
	if out == nil {
		out = io.Discard
	}
	logger := NewLogger(cfg, out)

	driver := db.Driver(cfg.Database.Driver)
	conn, err := db.Open(db.Config{Workspace: opts.Workspace, Driver: driver, DSN: cfg.Database.DSN})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate.Migrate(conn, driver); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r := repo.Repo{DB: conn, Driver: driver}
	m := metrics.New()
	queue := events.NewQueue(events.Writer{Repo: r}, events.QueueOptions{
		Size:        cfg.Audit.QueueSize,
		Environment: cfg.Audit.Environment,
		Logger:      logger,
		Metrics:     m,
	})

	e := engine.New(r, cfg)
	e.Audit = queue
	e.Metrics = m
	e.Log = logger

	logger.Debug("runtime ready", "driver", string(driver), "workspace", opts.Workspace)
	return &Runtime{
		Config:  cfg,
		DB:      conn,
		Repo:    r,
		Engine:  e,
		Metrics: m,
		Audit:   queue,
		Logger:  logger,
	}, nil
}

// Close drains the audit queue, then closes the database.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.Audit != nil {
		if err := rt.Audit.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain audit queue: %w", err))
		}
	}
	if rt.DB != nil {
		if err := rt.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
