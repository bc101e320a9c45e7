// Package store persists the library and playlists in SQLite.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/track"
)

const nextTrackIDKey = "next_track_id"

const schema = `
	CREATE TABLE IF NOT EXISTS tracks (
		id INTEGER PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		album TEXT NOT NULL DEFAULT '',
		artist TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS playlists (
		name TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS playlist_entries (
		playlist TEXT NOT NULL REFERENCES playlists(name) ON UPDATE CASCADE ON DELETE CASCADE,
		position INTEGER NOT NULL,
		track_id INTEGER NOT NULL,
		PRIMARY KEY (playlist, position)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
`

// State is everything loaded at startup.
type State struct {
	Tracks    []track.Track
	Playlists []*playlist.Playlist
	NextID    track.ID
}

// Store is a SQLite backed store. Playlist entries carry no foreign key to
// tracks, so dangling ids survive until the playlist is next edited.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path. ":memory:" opens
// a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create database directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// A single connection keeps an in-memory database shared between calls.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "failed to set pragma %q", pragma)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}

	zlog.Debug().Msgf("store: opened database path=%s", path)
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load reads the whole persisted state.
func (s *Store) Load(ctx context.Context) (State, error) {
	var st State

	rows, err := s.db.QueryContext(ctx, `SELECT id, path, title, album, artist, year FROM tracks ORDER BY id`)
	if err != nil {
		return st, errors.Wrap(err, "failed to query tracks")
	}
	for rows.Next() {
		var t track.Track
		if err := rows.Scan(&t.ID, &t.Path, &t.Tag.Title, &t.Tag.Album, &t.Tag.Artist, &t.Tag.Year); err != nil {
			_ = rows.Close()
			return st, errors.Wrap(err, "failed to scan track")
		}
		st.Tracks = append(st.Tracks, t)
	}
	if err := closeRows(rows); err != nil {
		return st, errors.Wrap(err, "failed to read tracks")
	}

	st.Playlists, err = s.loadPlaylists(ctx)
	if err != nil {
		return st, err
	}

	err = s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, nextTrackIDKey).Scan(&st.NextID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return st, errors.Wrap(err, "failed to read next track id")
	}

	zlog.Debug().Msgf("store: loaded tracks=%d playlists=%d next_id=%d", len(st.Tracks), len(st.Playlists), st.NextID)
	return st, nil
}

func (s *Store) loadPlaylists(ctx context.Context) ([]*playlist.Playlist, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM playlists ORDER BY rowid`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query playlists")
	}
	var lists []*playlist.Playlist
	byName := make(map[string]*playlist.Playlist)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return nil, errors.Wrap(err, "failed to scan playlist")
		}
		p := playlist.New(name)
		lists = append(lists, p)
		byName[name] = p
	}
	if err := closeRows(rows); err != nil {
		return nil, errors.Wrap(err, "failed to read playlists")
	}

	rows, err = s.db.QueryContext(ctx, `SELECT playlist, track_id FROM playlist_entries ORDER BY playlist, position`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query playlist entries")
	}
	for rows.Next() {
		var (
			name string
			id   track.ID
		)
		if err := rows.Scan(&name, &id); err != nil {
			_ = rows.Close()
			return nil, errors.Wrap(err, "failed to scan playlist entry")
		}
		if p, ok := byName[name]; ok {
			p.Entries = append(p.Entries, id)
		}
	}
	if err := closeRows(rows); err != nil {
		return nil, errors.Wrap(err, "failed to read playlist entries")
	}
	return lists, nil
}

// PutTrack inserts or updates a track.
func (s *Store) PutTrack(ctx context.Context, t track.Track) error {
	query := `
		INSERT INTO tracks (id, path, title, album, artist, year)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			title = excluded.title,
			album = excluded.album,
			artist = excluded.artist,
			year = excluded.year
	`
	if _, err := s.db.ExecContext(ctx, query, t.ID, t.Path, t.Tag.Title, t.Tag.Album, t.Tag.Artist, t.Tag.Year); err != nil {
		return errors.Wrapf(err, "failed to put track %d", t.ID)
	}
	return nil
}

// DeleteTracks removes tracks. Playlist entries referencing them are kept.
func (s *Store) DeleteTracks(ctx context.Context, ids []track.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM tracks WHERE id = ?`)
		if err != nil {
			return errors.Wrap(err, "failed to prepare statement")
		}
		defer stmt.Close()

		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, id); err != nil {
				return errors.Wrapf(err, "failed to delete track %d", id)
			}
		}
		return nil
	})
}

// PutPlaylist creates the playlist if needed and replaces its entries.
func (s *Store) PutPlaylist(ctx context.Context, p *playlist.Playlist) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO playlists (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
			p.Name, time.Now().UnixNano())
		if err != nil {
			return errors.Wrapf(err, "failed to put playlist %s", p.Name)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_entries WHERE playlist = ?`, p.Name); err != nil {
			return errors.Wrapf(err, "failed to clear playlist %s", p.Name)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO playlist_entries (playlist, position, track_id) VALUES (?, ?, ?)`)
		if err != nil {
			return errors.Wrap(err, "failed to prepare statement")
		}
		defer stmt.Close()

		for pos, id := range p.Entries {
			if _, err := stmt.ExecContext(ctx, p.Name, pos, id); err != nil {
				return errors.Wrapf(err, "failed to insert entry %d of %s", pos, p.Name)
			}
		}
		return nil
	})
}

// DeletePlaylist removes a playlist with its entries.
func (s *Store) DeletePlaylist(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM playlists WHERE name = ?`, name); err != nil {
		return errors.Wrapf(err, "failed to delete playlist %s", name)
	}
	return nil
}

// RenamePlaylist renames a playlist; entries follow through the cascade.
func (s *Store) RenamePlaylist(ctx context.Context, from, to string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE playlists SET name = ? WHERE name = ?`, to, from)
	if err != nil {
		return errors.Wrapf(err, "failed to rename playlist %s", from)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Newf("playlist %s not found", from)
	}
	return nil
}

// SetNextID stores the library's next-id counter.
func (s *Store) SetNextID(ctx context.Context, id track.ID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		nextTrackIDKey, id)
	if err != nil {
		return errors.Wrap(err, "failed to set next track id")
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}
