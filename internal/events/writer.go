package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stargate/internal/domain"
	"stargate/internal/repo"
)

// TimeLayout is fixed-width so stored timestamps sort lexically.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Writer persists audit entries to the audit_log table.
type Writer struct {
	Repo repo.Repo
	Now  func() time.Time
}

type EventPayload map[string]any

func (w Writer) Append(ctx context.Context, e domain.AuditEntry) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	if e.Timestamp == "" {
		e.Timestamp = w.Now().UTC().Format(TimeLayout)
	}
	e.Level = strings.ToUpper(e.Level)
	if e.Level == "" {
		e.Level = domain.LevelInfo
	}
	if err := w.Repo.InsertAuditEntry(ctx, e); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Entry builds an audit entry; the payload is stored as JSON.
func Entry(level, source, method, message string, payload EventPayload) domain.AuditEntry {
	e := domain.AuditEntry{
		Level:   level,
		Source:  source,
		Method:  method,
		Message: message,
	}
	if len(payload) > 0 {
		data, err := json.Marshal(payload)
		if err != nil {
			data = []byte(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
		}
		e.Payload = string(data)
	}
	return e
}

// WithError attaches err's text to the entry.
func WithError(e domain.AuditEntry, err error) domain.AuditEntry {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
