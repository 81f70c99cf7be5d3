package db

import (
	"context"
	"path/filepath"
	"testing"
)

func TestRebind(t *testing.T) {
	q := `SELECT id FROM person WHERE name=? AND note<>'?' AND id>?`
	if got := Rebind(SQLite, q); got != q {
		t.Fatalf("sqlite rebind changed query: %s", got)
	}
	want := `SELECT id FROM person WHERE name=$1 AND note<>'?' AND id>$2`
	if got := Rebind(Postgres, q); got != want {
		t.Fatalf("postgres rebind = %s", got)
	}
}

func TestOpenSQLiteAppliesPragmas(t *testing.T) {
	ws := t.TempDir()
	conn, err := Open(Config{Workspace: ws})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	var fk int
	if err := conn.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("pragma foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d", fk)
	}
	var mode string
	if err := conn.QueryRowContext(ctx, `PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("pragma journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %s", mode)
	}
	if got := Path(ws); got != filepath.Join(ws, ".stargate", "stargate.db") {
		t.Fatalf("path = %s", got)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "mysql"}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := Open(Config{Driver: Postgres}); err == nil {
		t.Fatalf("expected dsn error")
	}
}
