package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MRamiBalles/CookieClicker/internal/events"
	"github.com/MRamiBalles/CookieClicker/internal/platform/metrics"
)

// PersisterAdapter translates ledger events to storage events so an
// EventRepository can back an events.EventLog.
type PersisterAdapter struct {
	repo    EventRepository
	gameID  string
	timeout time.Duration
	metrics *metrics.Collector
}

// NewPersisterAdapter writes every ledger event under gameID.
func NewPersisterAdapter(repo EventRepository, gameID string) *PersisterAdapter {
	return &PersisterAdapter{repo: repo, gameID: gameID, timeout: 5 * time.Second}
}

// WithMetrics counts every write, successful or not, on c.
func (a *PersisterAdapter) WithMetrics(c *metrics.Collector) *PersisterAdapter {
	a.metrics = c
	return a
}

func (a *PersisterAdapter) Append(event events.GameEvent) error {
	err := a.append(event)
	if a.metrics != nil {
		a.metrics.RecordEventWrite(err)
	}
	return err
}

func (a *PersisterAdapter) append(event events.GameEvent) error {
	payloadMap := map[string]interface{}{}
	if event.Payload != nil {
		payloadBytes, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		if err := json.Unmarshal(payloadBytes, &payloadMap); err != nil {
			return fmt.Errorf("failed to flatten payload: %w", err)
		}
	}

	storageEvent := GameEvent{
		ID:        event.ID,
		GameID:    a.gameID,
		SessionID: event.SessionID,
		Timestamp: event.Timestamp,
		EventType: string(event.Type),
		ActorID:   event.ActorID,
		TargetID:  event.TargetID,
		Payload:   payloadMap,
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	return a.repo.Append(ctx, storageEvent)
}
