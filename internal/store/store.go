// Package store persists sealed pose tracks. The storage contract is a
// key-value blob store with listing metadata; this implementation keeps the
// encoded track as a blob in SQLite with the metadata the list view needs
// denormalized into columns.
//
// Storage failures never corrupt a live session: callers keep their
// in-memory track and rep state whether or not Save succeeds.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/idvorkin/swing-analyzer-sub004/internal/track"
)

// ErrNotFound is returned by Load and Delete for unknown track IDs.
var ErrNotFound = errors.New("store: track not found")

const schema = `
CREATE TABLE IF NOT EXISTS tracks (
    track_id    TEXT PRIMARY KEY,
    data        BLOB NOT NULL,
    byte_size   INTEGER NOT NULL,
    duration    REAL NOT NULL,
    frame_count INTEGER NOT NULL,
    source_name TEXT NOT NULL DEFAULT '',
    source_hash TEXT NOT NULL DEFAULT '',
    saved_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tracks_source_hash ON tracks(source_hash);
`

// TrackInfo is one listing entry.
type TrackInfo struct {
	TrackID         string
	Size            int64
	Duration        float64
	FrameCount      int
	SourceVideoName string
	SourceVideoHash string
	SavedAt         time.Time
}

// Store is a SQLite-backed pose-track store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// SQLite handles one writer; serialize at the pool.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: bootstrap schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save encodes and upserts a track under its track ID.
func (s *Store) Save(ctx context.Context, t *track.Track) error {
	data, err := track.Encode(t)
	if err != nil {
		return fmt.Errorf("store: save: %w", err)
	}
	meta := t.Meta()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tracks (track_id, data, byte_size, duration, frame_count, source_name, source_hash, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
		    data = excluded.data,
		    byte_size = excluded.byte_size,
		    duration = excluded.duration,
		    frame_count = excluded.frame_count,
		    source_name = excluded.source_name,
		    source_hash = excluded.source_hash,
		    saved_at = excluded.saved_at`,
		meta.TrackID, data, len(data), t.Duration(), t.Len(),
		meta.SourceVideoName, meta.SourceVideoHash, now,
	)
	if err != nil {
		return fmt.Errorf("store: save %s: %w", meta.TrackID, err)
	}
	return nil
}

// Load reads and decodes a track. The decoded track is sealed and
// reproduces the saved keypoint and timing data exactly.
func (s *Store) Load(ctx context.Context, trackID string) (*track.Track, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM tracks WHERE track_id = ?`, trackID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: load %s: %w", trackID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", trackID, err)
	}
	t, err := track.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", trackID, err)
	}
	return t, nil
}

// Delete removes a track.
func (s *Store) Delete(ctx context.Context, trackID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tracks WHERE track_id = ?`, trackID)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", trackID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", trackID, err)
	}
	if n == 0 {
		return fmt.Errorf("store: delete %s: %w", trackID, ErrNotFound)
	}
	return nil
}

// List returns metadata for every stored track, most recent first.
func (s *Store) List(ctx context.Context) ([]TrackInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT track_id, byte_size, duration, frame_count, source_name, source_hash, saved_at
		FROM tracks ORDER BY saved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var infos []TrackInfo
	for rows.Next() {
		var info TrackInfo
		var savedAt string
		if err := rows.Scan(&info.TrackID, &info.Size, &info.Duration,
			&info.FrameCount, &info.SourceVideoName, &info.SourceVideoHash, &savedAt); err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, savedAt); err == nil {
			info.SavedAt = ts
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return infos, nil
}
