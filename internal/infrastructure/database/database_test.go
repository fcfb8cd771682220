package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/nerrad567/seqtester/internal/infrastructure/config"
)

var testMigrations = fstest.MapFS{
	"20260301_120000_widgets.up.sql":   {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY) STRICT;")},
	"20260301_120000_widgets.down.sql": {Data: []byte("DROP TABLE widgets;")},
	"20260302_090000_gadgets.up.sql":   {Data: []byte("CREATE TABLE gadgets (id INTEGER PRIMARY KEY) STRICT;")},
	"20260302_090000_gadgets.down.sql": {Data: []byte("DROP TABLE gadgets;")},
	"README.md":                        {Data: []byte("ignored")},
}

func openMemory(t *testing.T) *DB {
	t.Helper()

	db, err := Open(config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	return db
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()

	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		t.Fatalf("checking table %s: %v", name, err)
	}
	return n == 1
}

func TestOpen_File(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "frames.db")

	db, err := Open(config.DatabaseConfig{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var db *DB
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
}

func TestMigrate(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, testMigrations); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "widgets") || !tableExists(t, db, "gadgets") {
		t.Fatal("Migrate() did not create both tables")
	}

	// Re-running applies nothing new.
	if err := db.Migrate(ctx, testMigrations); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	records, err := db.AppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("AppliedMigrations() error = %v", err)
	}
	if len(records) != 2 || records[0].Version != "20260301_120000" || records[1].Version != "20260302_090000" {
		t.Errorf("AppliedMigrations() = %+v", records)
	}
	if records[0].AppliedAt.IsZero() {
		t.Error("AppliedAt not recorded")
	}
}

func TestMigrateDown(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, testMigrations); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, testMigrations); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "gadgets") {
		t.Error("MigrateDown() left the latest table in place")
	}
	if !tableExists(t, db, "widgets") {
		t.Error("MigrateDown() rolled back more than one migration")
	}
}

func TestMigrate_FailureStopsRun(t *testing.T) {
	db := openMemory(t)
	broken := fstest.MapFS{
		"20260301_120000_ok.up.sql":     {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"20260302_120000_broken.up.sql": {Data: []byte("CREATE TABLE nope (;")},
	}

	if err := db.Migrate(context.Background(), broken); err == nil {
		t.Fatal("Migrate() expected error for broken SQL")
	}
	if !tableExists(t, db, "ok") {
		t.Error("earlier migration should stay committed")
	}
}

func TestLoadMigrations_MissingUp(t *testing.T) {
	fsys := fstest.MapFS{
		"20260301_120000_orphan.down.sql": {Data: []byte("DROP TABLE x;")},
	}
	if _, err := LoadMigrations(fsys); err == nil {
		t.Error("LoadMigrations() expected error for down-only migration")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20260301_120000_frames.up.sql", "20260301_120000", "frames", true, true},
		{"20260301_120000_frame_index.down.sql", "20260301_120000", "frame_index", false, true},
		{"20260301_frames.up.sql", "", "", false, false},
		{"2026_120000_frames.up.sql", "", "", false, false},
		{"20260301_120000_frames.sql", "", "", false, false},
		{"embed.go", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, isUp, ok := parseMigrationFilename(tt.filename)
			if version != tt.wantVersion || name != tt.wantName || isUp != tt.wantUp || ok != tt.wantOK {
				t.Errorf("parseMigrationFilename() = (%q, %q, %v, %v), want (%q, %q, %v, %v)",
					version, name, isUp, ok, tt.wantVersion, tt.wantName, tt.wantUp, tt.wantOK)
			}
		})
	}
}
