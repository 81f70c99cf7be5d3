package repo

import (
	"context"
	"strings"

	"stargate/internal/domain"
)

const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
)

type AuditFilters struct {
	Limit  int
	Level  string
	Source string
}

func (r Repo) InsertAuditEntry(ctx context.Context, e domain.AuditEntry) error {
	_, err := r.DB.ExecContext(ctx, r.q(`INSERT INTO audit_log(level,message,error,source,method,request_id,payload_json,ts,machine_name,environment)
VALUES (?,?,?,?,?,?,?,?,?,?)`),
		e.Level, e.Message, nullable(e.Error), nullable(e.Source), nullable(e.Method), nullable(e.RequestID),
		nullable(e.Payload), e.Timestamp, nullable(e.MachineName), nullable(e.Environment))
	return err
}

// ListAuditEntries returns audit rows newest first. Level matches exactly
// after upper-casing; Source matches as a substring.
func (r Repo) ListAuditEntries(ctx context.Context, f AuditFilters) ([]domain.AuditEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}
	var (
		clauses []string
		args    []any
	)
	if f.Level != "" {
		clauses = append(clauses, "level=?")
		args = append(args, strings.ToUpper(f.Level))
	}
	if f.Source != "" {
		clauses = append(clauses, "source LIKE ?")
		args = append(args, "%"+f.Source+"%")
	}
	query := `SELECT id, level, message, COALESCE(error,''), COALESCE(source,''), COALESCE(method,''), COALESCE(request_id,''),
COALESCE(payload_json,''), ts, COALESCE(machine_name,''), COALESCE(environment,'') FROM audit_log`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY ts DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.AuditEntry{}
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.Level, &e.Message, &e.Error, &e.Source, &e.Method, &e.RequestID,
			&e.Payload, &e.Timestamp, &e.MachineName, &e.Environment); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
