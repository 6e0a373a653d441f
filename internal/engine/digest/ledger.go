package digest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Ledger records which videos have already gone out in a digest, so an
// interrupted or re-run batch never mails the same video twice. Together
// with the transcript cache this makes a run resumable.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (or creates) the SQLite ledger at path.
func OpenLedger(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("ledger: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS processed_videos (
		video_id     TEXT PRIMARY KEY,
		title        TEXT,
		processed_at TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: init schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// IsProcessed reports whether videoID was already delivered.
func (l *Ledger) IsProcessed(ctx context.Context, videoID string) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_videos WHERE video_id = ?`, videoID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger: lookup %s: %w", videoID, err)
	}
	return true, nil
}

// MarkProcessed records a delivered video. Re-marking is a no-op.
func (l *Ledger) MarkProcessed(ctx context.Context, videoID, title string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_videos (video_id, title, processed_at) VALUES (?, ?, ?)`,
		videoID, title, now)
	if err != nil {
		return fmt.Errorf("ledger: mark %s: %w", videoID, err)
	}
	return nil
}

// Count returns the number of ledger entries.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_videos`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ledger: count: %w", err)
	}
	return n, nil
}
