package engine

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"stargate/internal/config"
	"stargate/internal/domain"
	"stargate/internal/events"
	"stargate/internal/metrics"
	"stargate/internal/repo"
)

// Recorder receives audit entries. Implementations must not block.
type Recorder interface {
	Record(ctx context.Context, e domain.AuditEntry)
}

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Audit   Recorder
	Metrics *metrics.Metrics
	Config  *config.Config
	Log     *slog.Logger
	Now     func() time.Time
}

func New(r repo.Repo, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     r.DB,
		Repo:   r,
		Audit:  events.Nop{},
		Config: cfg,
		Log:    slog.Default(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) log() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

func (e Engine) record(ctx context.Context, entry domain.AuditEntry) {
	if e.Audit == nil {
		return
	}
	e.Audit.Record(ctx, entry)
}

func (e Engine) retirementTitle() string {
	if e.Config == nil || e.Config.RetirementTitle == "" {
		return "RETIRED"
	}
	return e.Config.RetirementTitle
}

// fail records a failed operation in metrics and the audit log. Unexpected
// failures are also logged with their full cause.
func (e Engine) fail(ctx context.Context, op, source string, err error, payload events.EventPayload) {
	kind := KindOf(err)
	e.Metrics.Failure(op, string(kind))
	level := domain.LevelWarn
	if kind == KindUnexpected {
		level = domain.LevelError
		e.log().ErrorContext(ctx, "operation failed", "op", op, "err", err, "request_id", events.RequestID(ctx))
	}
	if payload == nil {
		payload = events.EventPayload{}
	}
	payload["kind"] = string(kind)
	payload["subject"] = SubjectOf(err)
	e.record(ctx, events.WithError(events.Entry(level, source, op, "operation failed", payload), err))
}
