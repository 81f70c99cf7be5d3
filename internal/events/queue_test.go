package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stargate/internal/db"
	"stargate/internal/domain"
	"stargate/internal/metrics"
	"stargate/internal/migrate"
	"stargate/internal/repo"
)

func newTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn, db.SQLite))
	return repo.Repo{DB: conn, Driver: db.SQLite}
}

func counterValue(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	mfs, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func fixedNow() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func TestQueueWritesStampedEntries(t *testing.T) {
	r := newTestRepo(t)
	m := metrics.New()
	q := NewQueue(Writer{Repo: r}, QueueOptions{Size: 8, Environment: "test", MachineName: "box", Metrics: m, Now: fixedNow})

	ctx := WithRequestID(context.Background(), "req-1")
	q.Record(ctx, Entry("info", "engine.CreateDuty", "POST", "duty created", EventPayload{"person": "John Doe"}))
	q.Record(ctx, WithError(Entry(domain.LevelError, "engine.CreateDuty", "POST", "duty failed", nil), assert.AnError))

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Close(closeCtx))

	got, err := r.ListAuditEntries(context.Background(), repo.AuditFilters{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, e := range got {
		assert.Equal(t, "req-1", e.RequestID)
		assert.Equal(t, "test", e.Environment)
		assert.Equal(t, "box", e.MachineName)
		assert.Equal(t, "2024-05-01T12:00:00.000000Z", e.Timestamp)
	}
	levels := map[string]domain.AuditEntry{}
	for _, e := range got {
		levels[e.Level] = e
	}
	assert.JSONEq(t, `{"person":"John Doe"}`, levels[domain.LevelInfo].Payload)
	assert.Equal(t, assert.AnError.Error(), levels[domain.LevelError].Error)
	assert.Equal(t, 2.0, counterValue(t, m, "stargate_audit_written_total"))
}

func TestQueueDropsWhenFull(t *testing.T) {
	r := newTestRepo(t)
	m := metrics.New()

	// hold the only sqlite connection so the drain goroutine blocks
	ctx := context.Background()
	held, err := r.DB.Conn(ctx)
	require.NoError(t, err)

	q := NewQueue(Writer{Repo: r}, QueueOptions{Size: 1, Metrics: m, Now: fixedNow, WriteTimeout: 10 * time.Second})
	const sent = 5
	for i := 0; i < sent; i++ {
		q.Record(ctx, Entry(domain.LevelInfo, "test", "", "entry", nil))
	}
	dropped := counterValue(t, m, "stargate_audit_dropped_total")
	assert.GreaterOrEqual(t, dropped, 3.0)

	require.NoError(t, held.Close())
	closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, q.Close(closeCtx))

	got, err := r.ListAuditEntries(ctx, repo.AuditFilters{})
	require.NoError(t, err)
	assert.Equal(t, sent-int(dropped), len(got))
}

func TestRecordAfterCloseIsDropped(t *testing.T) {
	r := newTestRepo(t)
	m := metrics.New()
	q := NewQueue(Writer{Repo: r}, QueueOptions{Size: 4, Metrics: m})
	require.NoError(t, q.Close(context.Background()))
	require.NoError(t, q.Close(context.Background()))

	assert.NotPanics(t, func() {
		q.Record(context.Background(), Entry(domain.LevelInfo, "test", "", "late", nil))
	})
	assert.Equal(t, 1.0, counterValue(t, m, "stargate_audit_dropped_total"))
}

func TestEnsureRequestID(t *testing.T) {
	ctx := EnsureRequestID(context.Background())
	id := RequestID(ctx)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, RequestID(EnsureRequestID(ctx)))
	assert.Equal(t, "abc", RequestID(EnsureRequestID(WithRequestID(context.Background(), "abc"))))
}
