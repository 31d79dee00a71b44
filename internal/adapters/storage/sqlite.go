package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	sqlite "modernc.org/sqlite"
)

const (
	sqliteConstraintCode = 19
	defaultBusyTimeout   = 5000
)

// SQLiteStore keeps rooms in a single SQLite file. Expiry is precomputed into
// expires_at (unix millis, NULL for never) so the sweep is one indexed DELETE.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at path and runs the schema migration.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = "huddle.db"
	}
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d", path, separator, defaultBusyTimeout)
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			room_id TEXT PRIMARY KEY,
			password_hash BLOB,
			created_at INTEGER NOT NULL,
			lifetime_seconds INTEGER NOT NULL,
			expires_at INTEGER,
			layout TEXT NOT NULL,
			upvote_enabled INTEGER NOT NULL,
			rate_limit INTEGER NOT NULL,
			max_message_duration INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS rooms_expires_at ON rooms(expires_at);`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func expiresAtMillis(r *domain.Room) sql.NullInt64 {
	at, ok := r.ExpiresAt()
	if !ok {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: at.UnixMilli(), Valid: true}
}

func (s *SQLiteStore) Insert(ctx context.Context, room *domain.Room) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM rooms WHERE room_id = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		string(room.ID), room.CreatedAt.UnixMilli(),
	); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rooms(room_id, password_hash, created_at, lifetime_seconds, expires_at, layout, upvote_enabled, rate_limit, max_message_duration)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(room.ID), room.PasswordHash, room.CreatedAt.UnixMilli(), room.LifetimeSeconds,
		expiresAtMillis(room), room.Layout, boolToInt(room.UpvoteEnabled), room.RateLimit, room.MaxMessageDuration,
	)
	if err != nil {
		if isConstraintError(err) {
			err = domain.ErrDuplicateRoom
		}
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT room_id, password_hash, created_at, lifetime_seconds, layout, upvote_enabled, rate_limit, max_message_duration
		 FROM rooms WHERE room_id = ?`, string(id))
	var (
		r         domain.Room
		rid       string
		createdMs int64
		upvote    int
	)
	if err := row.Scan(&rid, &r.PasswordHash, &createdMs, &r.LifetimeSeconds, &r.Layout, &upvote, &r.RateLimit, &r.MaxMessageDuration); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	r.ID = domain.RoomID(rid)
	r.CreatedAt = time.UnixMilli(createdMs)
	r.UpvoteEnabled = upvote != 0
	if len(r.PasswordHash) == 0 {
		r.PasswordHash = nil
	}
	return &r, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id domain.RoomID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE room_id = ?`, string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM rooms WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Close releases the underlying DB connection.
func (s *SQLiteStore) Close(context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == sqliteConstraintCode
	}
	return false
}
