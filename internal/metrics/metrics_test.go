package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.DutyCreated()
	m.DutyCreated()
	m.PersonCreated()
	m.Failure("create_duty", "conflict")
	m.AuditDropped()
	m.AuditWritten()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dutiesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.peopleCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("create_duty", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.auditDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.auditWritten))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.DutyCreated()
		m.PersonCreated()
		m.Failure("x", "y")
		m.AuditDropped()
		m.AuditWritten()
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.DutyCreated()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "stargate_duties_created_total 1"))
}
