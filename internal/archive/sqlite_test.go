package archive

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/seqtester/internal/camera"
	"github.com/nerrad567/seqtester/internal/infrastructure/config"
	"github.com/nerrad567/seqtester/internal/infrastructure/database"
	"github.com/nerrad567/seqtester/internal/setting"
	"github.com/nerrad567/seqtester/migrations"
)

func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func testRecord(runID string, nr uint64) Record {
	return Record{
		RunID:         runID,
		Camera:        "Cam1",
		GlobalImageNr: nr,
		CameraSeqNr:   nr - 1,
		EventCount:    2,
		Payload:       []byte{0x86, byte(nr)},
	}
}

func TestSQLiteRepository_RecordAndGet(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	rec := testRecord("run-1", 1)
	rec.IsSequence = true
	rec.AcquisitionSeqNr = 4
	rec.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

	id, err := repo.Record(ctx, rec)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if id <= 0 {
		t.Errorf("Record() id = %d, want positive", id)
	}

	got, err := repo.Get(ctx, "run-1", 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Camera != "Cam1" || !got.IsSequence || got.AcquisitionSeqNr != 4 || got.EventCount != 2 {
		t.Errorf("Get() = %+v", got)
	}
	if !bytes.Equal(got.Payload, rec.Payload) {
		t.Errorf("Payload = %x, want %x", got.Payload, rec.Payload)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
}

func TestSQLiteRepository_Errors(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Record(ctx, testRecord("run-1", 1)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	tests := []struct {
		name    string
		rec     Record
		wantErr error
	}{
		{"duplicate", testRecord("run-1", 1), ErrDuplicateFrame},
		{"missing run", testRecord("", 2), nil},
		{"missing camera", Record{RunID: "run-1", GlobalImageNr: 3}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Record(ctx, tt.rec)
			if err == nil {
				t.Fatal("Record() error = nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Record() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Same image number in another run is fine.
	if _, err := repo.Record(ctx, testRecord("run-2", 1)); err != nil {
		t.Errorf("Record() other run error = %v", err)
	}

	if _, err := repo.Get(ctx, "run-1", 99); !errors.Is(err, ErrFrameNotFound) {
		t.Errorf("Get() missing error = %v, want ErrFrameNotFound", err)
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for nr := uint64(1); nr <= 5; nr++ {
		if _, err := repo.Record(ctx, testRecord("run-1", nr)); err != nil {
			t.Fatalf("Record(%d) error = %v", nr, err)
		}
	}
	if _, err := repo.Record(ctx, testRecord("run-2", 1)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	tests := []struct {
		name  string
		limit int
		want  []uint64
	}{
		{"default limit", 0, []uint64{5, 4, 3, 2, 1}},
		{"limited", 2, []uint64{5, 4}},
		{"over max", 1000, []uint64{5, 4, 3, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, "run-1", tt.limit)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("List() len = %d, want %d", len(got), len(tt.want))
			}
			for i, nr := range tt.want {
				if got[i].GlobalImageNr != nr || got[i].RunID != "run-1" {
					t.Errorf("List()[%d] = %s/%d, want run-1/%d", i, got[i].RunID, got[i].GlobalImageNr, nr)
				}
			}
		})
	}

	empty, err := repo.List(ctx, "no-such-run", 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("List() unknown run = %d records", len(empty))
	}
}

func TestSQLiteRepository_Prune(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	old := testRecord("run-1", 1)
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	recent := testRecord("run-1", 2)

	for _, rec := range []Record{old, recent} {
		if _, err := repo.Record(ctx, rec); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	n, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
	if _, err := repo.Get(ctx, "run-1", 1); !errors.Is(err, ErrFrameNotFound) {
		t.Errorf("old frame survived prune: %v", err)
	}
	if _, err := repo.Get(ctx, "run-1", 2); err != nil {
		t.Errorf("recent frame pruned: %v", err)
	}

	if _, err := repo.Prune(ctx, 0); err == nil {
		t.Error("Prune(0) error = nil")
	}
}

func TestSQLiteRepository_AsCameraSink(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	settings := setting.NewLogger()
	sim := camera.NewSimulator(settings, camera.Config{Name: "Cam1"})
	sim.AddSink(repo)

	settings.SetInteger("Stage", "X", 10)
	frame, err := sim.SnapImage(ctx)
	if err != nil {
		t.Fatalf("SnapImage() error = %v", err)
	}

	got, err := repo.Get(ctx, sim.RunID(), frame.GlobalImageNr())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.EventCount != len(frame.Snapshot.History) {
		t.Errorf("EventCount = %d, want %d", got.EventCount, len(frame.Snapshot.History))
	}

	snap, err := setting.Unpack(got.Payload)
	if err != nil {
		t.Fatalf("Unpack() archived payload error = %v", err)
	}
	if snap.GlobalImageCount != 1 || snap.History[0].Key != (setting.Key{Device: "Stage", Name: "X"}) {
		t.Errorf("archived snapshot = %+v", snap)
	}
}
