package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/naijatalk/client-go/domain/entities"
)

// Store persists user settings and chat history in a local SQLite database.
// Reads silently fall back to defaults/empty on missing or corrupt data.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens or creates the database under dir.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "naijatalk.db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			id      INTEGER PRIMARY KEY CHECK (id = 1),
			payload TEXT NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create settings table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id          TEXT PRIMARY KEY,
			room_id     TEXT NOT NULL,
			sender      TEXT NOT NULL DEFAULT '',
			body        TEXT NOT NULL,
			original    TEXT NOT NULL DEFAULT '',
			source_lang TEXT NOT NULL DEFAULT '',
			sent_at     TEXT NOT NULL,
			own         INTEGER NOT NULL DEFAULT 0
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create messages table: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the persisted settings, or defaults when nothing valid is
// stored. It never surfaces corruption to the caller.
func (s *Store) Load(ctx context.Context) (entities.UserSettings, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM settings WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.DefaultSettings(), nil
	}
	if err != nil {
		s.logger.Warn("failed to read settings, using defaults", zap.Error(err))
		return entities.DefaultSettings(), nil
	}

	var settings entities.UserSettings
	if err := json.Unmarshal([]byte(payload), &settings); err != nil {
		s.logger.Warn("corrupt settings payload, using defaults", zap.Error(err))
		return entities.DefaultSettings(), nil
	}
	if err := settings.Validate(); err != nil {
		s.logger.Warn("invalid persisted settings, using defaults", zap.Error(err))
		return entities.DefaultSettings(), nil
	}
	return settings, nil
}

// Save persists the full settings record.
func (s *Store) Save(ctx context.Context, settings entities.UserSettings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (id, payload) VALUES (1, ?)
		 ON CONFLICT (id) DO UPDATE SET payload = excluded.payload`,
		string(payload)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Append stores one transcript entry.
func (s *Store) Append(ctx context.Context, msg entities.ChatMessage) error {
	own := 0
	if msg.Own {
		own = 1
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO messages
			(id, room_id, sender, body, original, source_lang, sent_at, own)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.RoomID, msg.Sender, msg.Text, msg.OriginalText,
		string(msg.SourceLanguage), msg.Timestamp.Format(time.RFC3339Nano), own,
	); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Recent returns up to limit transcript entries in chronological order.
// Unreadable rows are skipped, never surfaced.
func (s *Store) Recent(ctx context.Context, limit int) ([]entities.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room_id, sender, body, original, source_lang, sent_at, own
		 FROM messages ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		s.logger.Warn("failed to read chat history", zap.Error(err))
		return nil, nil
	}
	defer rows.Close()

	var out []entities.ChatMessage
	for rows.Next() {
		var (
			msg    entities.ChatMessage
			lang   string
			sentAt string
			own    int
		)
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Sender, &msg.Text,
			&msg.OriginalText, &lang, &sentAt, &own); err != nil {
			s.logger.Warn("skipping unreadable history row", zap.Error(err))
			continue
		}
		msg.SourceLanguage = entities.Language(lang)
		msg.Own = own != 0
		if ts, perr := time.Parse(time.RFC3339Nano, sentAt); perr == nil {
			msg.Timestamp = ts
		}
		out = append(out, msg)
	}

	// Newest-first query, chronological result.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Clear drops the whole transcript.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
