package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/nerrad567/seqtester/internal/camera"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// timeLayout is fixed width so created_at sorts and compares as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// SQLiteRepository implements Repository using SQLite.
//
// Payloads are stored as BLOBs in the frames table; timestamps are UTC
// RFC3339 text with nanoseconds.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite frame repository.
//
// Parameters:
//   - db: Open SQLite connection with the frames migration applied
//
// Returns:
//   - *SQLiteRepository: Repository instance ready for use
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts a frame.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - rec: Frame to persist; CreatedAt defaults to now
//
// Returns:
//   - int64: Row ID of the stored frame
//   - error: ErrDuplicateFrame, or the underlying database error
func (r *SQLiteRepository) Record(ctx context.Context, rec Record) (int64, error) {
	if rec.RunID == "" {
		return 0, fmt.Errorf("run id is required")
	}
	if rec.Camera == "" {
		return 0, fmt.Errorf("camera is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Payload == nil {
		rec.Payload = []byte{}
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO frames (run_id, camera, global_image_nr, camera_seq_nr,
		                     acquisition_seq_nr, is_sequence, event_count, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.Camera,
		int64(rec.GlobalImageNr),
		int64(rec.CameraSeqNr),
		int64(rec.AcquisitionSeqNr),
		boolToInt(rec.IsSequence),
		rec.EventCount,
		rec.Payload,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: run %s image %d", ErrDuplicateFrame, rec.RunID, rec.GlobalImageNr)
		}
		return 0, fmt.Errorf("inserting frame: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading frame id: %w", err)
	}
	return id, nil
}

// Get returns one frame including its payload.
func (r *SQLiteRepository) Get(ctx context.Context, runID string, globalImageNr uint64) (*Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, run_id, camera, global_image_nr, camera_seq_nr, acquisition_seq_nr,
		        is_sequence, event_count, payload, created_at
		 FROM frames
		 WHERE run_id = ? AND global_image_nr = ?`,
		runID,
		int64(globalImageNr),
	)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFrameNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns recent frames of a run, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - runID: Simulator run to list
//   - limit: Maximum frames to return (default 50, max 200)
//
// Returns:
//   - []Record: Frames ordered by global image number DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteRepository) List(ctx context.Context, runID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, run_id, camera, global_image_nr, camera_seq_nr, acquisition_seq_nr,
		        is_sequence, event_count, payload, created_at
		 FROM frames
		 WHERE run_id = ?
		 ORDER BY global_image_nr DESC
		 LIMIT ?`,
		runID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying frames: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating frames: %w", err)
	}

	return records, nil
}

// Prune deletes frames older than the given duration.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(timeLayout)
	result, err := r.db.ExecContext(ctx, "DELETE FROM frames WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting frames: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return rowsAffected, nil
}

// Name implements camera.Sink.
func (r *SQLiteRepository) Name() string { return "archive" }

// Deliver implements camera.Sink by recording the frame.
func (r *SQLiteRepository) Deliver(ctx context.Context, frame camera.Frame) error {
	_, err := r.Record(ctx, RecordFromFrame(frame))
	return err
}

// RecordFromFrame converts a captured frame into an archive record.
func RecordFromFrame(frame camera.Frame) Record {
	rec := Record{
		RunID:            frame.RunID,
		Camera:           frame.Info.Camera,
		GlobalImageNr:    frame.GlobalImageNr(),
		CameraSeqNr:      frame.Info.CameraSeqNum,
		AcquisitionSeqNr: frame.Info.AcquisitionSeqNum,
		IsSequence:       frame.Info.IsSequence,
		Payload:          frame.Payload,
		CreatedAt:        frame.CapturedAt,
	}
	if frame.Snapshot != nil {
		rec.EventCount = len(frame.Snapshot.History)
	}
	return rec
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec                   Record
		globalNr, camNr, acNr int64
		isSequence            int
		createdAt             string
	)

	err := row.Scan(&rec.ID, &rec.RunID, &rec.Camera, &globalNr, &camNr, &acNr,
		&isSequence, &rec.EventCount, &rec.Payload, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning frame: %w", err)
	}

	rec.GlobalImageNr = uint64(globalNr)
	rec.CameraSeqNr = uint64(camNr)
	rec.AcquisitionSeqNr = uint64(acNr)
	rec.IsSequence = isSequence != 0

	rec.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &rec, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
