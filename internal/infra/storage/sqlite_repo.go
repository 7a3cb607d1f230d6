package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event GameEvent) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO events (id, game_id, session_id, timestamp_ns, event_type, actor_id, target_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.GameID, event.SessionID, event.Timestamp.UnixNano(), event.EventType,
		event.ActorID, event.TargetID, string(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Timestamps are stored as Unix nanoseconds, which only span these bounds.
var (
	minEventTime = time.Unix(0, math.MinInt64)
	maxEventTime = time.Unix(0, math.MaxInt64)
)

const selectEvents = `SELECT id, game_id, session_id, timestamp_ns, event_type, actor_id, target_id, payload FROM events`

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]GameEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []GameEvent
	for rows.Next() {
		var e GameEvent
		var ts int64
		var payloadStr string
		err := rows.Scan(
			&e.ID, &e.GameID, &e.SessionID, &ts, &e.EventType,
			&e.ActorID, &e.TargetID, &payloadStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Timestamp = time.Unix(0, ts)
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload of %s: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLiteEventRepository) GetByGameID(ctx context.Context, gameID string) ([]GameEvent, error) {
	query := selectEvents + ` WHERE game_id = ? ORDER BY timestamp_ns ASC`
	return r.getMany(ctx, query, gameID)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, gameID string, eventType string) ([]GameEvent, error) {
	query := selectEvents + ` WHERE game_id = ? AND event_type = ? ORDER BY timestamp_ns ASC`
	return r.getMany(ctx, query, gameID, eventType)
}

// GetSince treats times outside the int64 nanosecond range, including the zero
// time, as unbounded.
func (r *SQLiteEventRepository) GetSince(ctx context.Context, gameID string, since time.Time) ([]GameEvent, error) {
	if since.Before(minEventTime) {
		return r.GetByGameID(ctx, gameID)
	}
	if since.After(maxEventTime) {
		return nil, nil
	}
	query := selectEvents + ` WHERE game_id = ? AND timestamp_ns >= ? ORDER BY timestamp_ns ASC`
	return r.getMany(ctx, query, gameID, since.UnixNano())
}

// ---------------------------------------------------------
// SQLiteSaveRepository
// ---------------------------------------------------------

// SQLiteSaveRepository implements SaveRepository on the saves table.
type SQLiteSaveRepository struct {
	db *sql.DB
}

func NewSQLiteSaveRepository(db *sql.DB) *SQLiteSaveRepository {
	return &SQLiteSaveRepository{db: db}
}

func (r *SQLiteSaveRepository) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var blob []byte
	err := r.db.QueryRowContext(ctx, `SELECT blob FROM saves WHERE save_key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load save: %w", err)
	}
	return blob, true, nil
}

func (r *SQLiteSaveRepository) Store(ctx context.Context, key string, blob []byte) error {
	query := `
		INSERT INTO saves (save_key, blob, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(save_key) DO UPDATE SET
			blob=excluded.blob,
			updated_at=excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, key, blob, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to store save: %w", err)
	}
	return nil
}

func (r *SQLiteSaveRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM saves WHERE save_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete save: %w", err)
	}
	return nil
}
