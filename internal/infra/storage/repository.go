// Package storage provides the persistence layer for the cookie processes.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"time"
)

// GameEvent mirrors the ledger event structure for persistence.
// The domain packages should NOT import this; use interfaces instead.
type GameEvent struct {
	ID        string                 `json:"id" db:"id"`
	GameID    string                 `json:"game_id" db:"game_id"` // the save slot the event belongs to
	SessionID string                 `json:"session_id" db:"session_id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	EventType string                 `json:"event_type" db:"event_type"`
	ActorID   string                 `json:"actor_id" db:"actor_id"`
	TargetID  string                 `json:"target_id" db:"target_id"`
	Payload   map[string]interface{} `json:"payload" db:"payload"`
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event GameEvent) error

	// GetByGameID retrieves all events for a game, oldest first.
	GetByGameID(ctx context.Context, gameID string) ([]GameEvent, error)

	// GetByEventType retrieves all events of a specific type.
	GetByEventType(ctx context.Context, gameID string, eventType string) ([]GameEvent, error)

	// GetSince retrieves the events recorded at or after since.
	GetSince(ctx context.Context, gameID string, since time.Time) ([]GameEvent, error)
}

// SaveRepository is a key/value slot for save blobs.
type SaveRepository interface {
	// Load returns the blob stored under key and whether one exists.
	Load(ctx context.Context, key string) ([]byte, bool, error)

	// Store replaces the blob under key.
	Store(ctx context.Context, key string, blob []byte) error

	// Delete removes the blob under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
