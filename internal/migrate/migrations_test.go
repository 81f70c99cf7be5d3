package migrate

import (
	"testing"

	"stargate/internal/db"
)

func TestMigrateSeedsReferenceDataOnce(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		if err := Migrate(conn, db.SQLite); err != nil {
			t.Fatalf("migrate run %d: %v", i, err)
		}
	}
	v, err := Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 2 {
		t.Fatalf("version = %d, want 2", v)
	}

	var ranks, titles int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM rank`).Scan(&ranks); err != nil {
		t.Fatalf("count ranks: %v", err)
	}
	if err := conn.QueryRow(`SELECT COUNT(*) FROM duty_title`).Scan(&titles); err != nil {
		t.Fatalf("count titles: %v", err)
	}
	if ranks != 6 || titles != 5 {
		t.Fatalf("seeded ranks=%d titles=%d", ranks, titles)
	}
	var abbr string
	if err := conn.QueryRow(`SELECT abbreviation FROM rank WHERE id=2`).Scan(&abbr); err != nil {
		t.Fatalf("rank 2: %v", err)
	}
	if abbr != "1LT" {
		t.Fatalf("rank 2 = %s", abbr)
	}
}

func TestLoadMigrationsPerDriver(t *testing.T) {
	for _, d := range []db.Driver{db.SQLite, db.Postgres} {
		ms, err := loadMigrations(d)
		if err != nil {
			t.Fatalf("%s: %v", d, err)
		}
		if len(ms) != 2 || ms[0].Version != 1 || ms[1].Version != 2 {
			t.Fatalf("%s migrations = %+v", d, ms)
		}
	}
	if _, err := loadMigrations("mysql"); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
