package database

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/m3rciful/smpbot/core/config"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := upMigrations(migrationsFS, migrationsDir)
	if err != nil {
		t.Fatalf("upMigrations: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no embedded up migrations")
	}
	if files[0].name != "0001_report_runs.up.sql" || files[0].version != 1 {
		t.Fatalf("first migration = %+v", files[0])
	}
	down, err := migrationsFS.ReadFile("migrations/0001_report_runs.down.sql")
	if err != nil || !strings.Contains(string(down), "DROP TABLE") {
		t.Fatalf("down migration missing: %v", err)
	}
}

func TestUpMigrationsOrderAndValidation(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0010_later.up.sql":    {Data: []byte("")},
		"m/0002_second.up.sql":   {Data: []byte("")},
		"m/0002_second.down.sql": {Data: []byte("")},
	}
	files, err := upMigrations(fsys, "m")
	if err != nil {
		t.Fatalf("upMigrations: %v", err)
	}
	if len(files) != 2 || files[0].version != 2 || files[1].version != 10 {
		t.Fatalf("files = %+v", files)
	}

	fsys["m/x_bad.up.sql"] = &fstest.MapFile{}
	if _, err := upMigrations(fsys, "m"); err == nil {
		t.Fatal("expected error for a file without a numeric prefix")
	}
}

func TestBetween(t *testing.T) {
	files := []migrationFile{{1, "0001_a.up.sql"}, {2, "0002_b.up.sql"}, {3, "0003_c.up.sql"}}
	got := between(files, 1, 3)
	if len(got) != 2 || got[0] != "0002_b.up.sql" {
		t.Fatalf("between = %v", got)
	}
	if got := between(files, 3, 3); got != nil {
		t.Fatalf("no-op range = %v", got)
	}
}

func TestConnectionStrings(t *testing.T) {
	cfg := config.DatabaseConfig{User: "bot", Password: "p@ss/w'x", Host: "db", Port: "5432", Name: "smp", SSLMode: "disable"}
	u := URL(cfg)
	if !strings.HasPrefix(u, "postgres://bot:p%40ss%2Fw%27x@db:5432/smp?") {
		t.Fatalf("URL = %s", u)
	}
	if !strings.HasSuffix(u, "sslmode=disable") {
		t.Fatalf("URL = %s", u)
	}
	dsn := DSN(cfg)
	if !strings.Contains(dsn, `password='p@ss/w\'x'`) || !strings.Contains(dsn, "dbname='smp'") {
		t.Fatalf("DSN = %s", dsn)
	}
}
