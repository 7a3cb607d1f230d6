// Package events provides the game ledger: an append-only record of every
// change the economy went through.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a game event.
type EventType string

const (
	EventTypeClick            EventType = "CLICK"
	EventTypePurchase         EventType = "PURCHASE"
	EventTypePurchaseRejected EventType = "PURCHASE_REJECTED"
	EventTypePassiveTick      EventType = "PASSIVE_TICK"
	EventTypeGameSaved        EventType = "GAME_SAVED"
	EventTypeGameLoaded       EventType = "GAME_LOADED"
	EventTypeGameReset        EventType = "GAME_RESET"
	EventTypeSaveCorrupt      EventType = "SAVE_CORRUPT"
)

// Actors.
const (
	ActorSystem = "SYSTEM" // raised by the engine itself
	ActorPlayer = "PLAYER"
)

// ClickPayload records a single click.
type ClickPayload struct {
	Amount int64 `json:"amount"`
}

// PurchasePayload records a purchase attempt.
type PurchasePayload struct {
	Kind     string  `json:"kind"`
	Cost     int64   `json:"cost"`
	NextCost int64   `json:"next_cost"`
	Count    int64   `json:"count"`
	Balance  float64 `json:"balance"`
}

// PassiveTickPayload records passive generation.
type PassiveTickPayload struct {
	Elapsed float64 `json:"elapsed"`
	Earned  float64 `json:"earned"`
	Rate    float64 `json:"rate"`
}

// SavePayload records a save or load of the persisted snapshot.
type SavePayload struct {
	Key      string  `json:"key"`
	Bytes    int     `json:"bytes"`
	Currency float64 `json:"currency"`
}

// GameEvent represents an immutable record of an action in the game.
type GameEvent struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"`            // who performed the action
	TargetID  string      `json:"target_id,omitempty"` // upgrade kind or storage key
	SessionID string      `json:"session_id"`
	Payload   interface{} `json:"payload"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// DefaultWindow is how many events the in-memory log keeps.
const DefaultWindow = 4096

// EventLog is the in-memory window of recent events. Older events are only
// available through the persister.
type EventLog struct {
	mu        sync.RWMutex
	events    []GameEvent
	window    int
	total     int
	sessionID string
	persister EventPersister
	onError   func(GameEvent, error)
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]GameEvent, 0),
		window:    DefaultWindow,
		sessionID: uuid.NewString(),
		persister: persister,
	}
}

// SetWindow changes how many events are kept in memory.
func (el *EventLog) SetWindow(n int) {
	if n <= 0 {
		return
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	el.window = n
	el.trim()
}

// OnPersistError registers a callback for failed write-throughs.
func (el *EventLog) OnPersistError(fn func(GameEvent, error)) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.onError = fn
}

// SessionID identifies this process run in every event.
func (el *EventLog) SessionID() string {
	return el.sessionID
}

// Append stamps and records an event. Events are immutable once appended.
func (el *EventLog) Append(event GameEvent) GameEvent {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ActorID == "" {
		event.ActorID = ActorSystem
	}
	event.SessionID = el.sessionID

	el.mu.Lock()
	el.events = append(el.events, event)
	el.total++
	el.trim()
	persister, onError := el.persister, el.onError
	el.mu.Unlock()

	if persister != nil {
		if err := persister.Append(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
	return event
}

func (el *EventLog) trim() {
	if over := len(el.events) - el.window; over > 0 {
		el.events = append([]GameEvent(nil), el.events[over:]...)
	}
}

// Total is the number of events appended since start, including trimmed ones.
func (el *EventLog) Total() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.total
}

// GetByType returns the retained events of one type.
func (el *EventLog) GetByType(eventType EventType) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result
}

// Recent returns up to n of the newest events, oldest first.
func (el *EventLog) Recent(n int) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	if n <= 0 || n > len(el.events) {
		n = len(el.events)
	}
	out := make([]GameEvent, n)
	copy(out, el.events[len(el.events)-n:])
	return out
}

// Replay returns a copy of every retained event.
func (el *EventLog) Replay() []GameEvent {
	return el.Recent(0)
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
