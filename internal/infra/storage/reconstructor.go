// Package storage - reconstructor.go
// Recap: rebuilds what happened to a game from the persisted ledger.
// This is the core of Event Sourcing: totals = f(events).
package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
)

// Ledger event types as stored. Kept as strings so storage does not depend on
// the in-memory ledger constants.
const (
	eventClick            = "CLICK"
	eventPurchase         = "PURCHASE"
	eventPurchaseRejected = "PURCHASE_REJECTED"
	eventPassiveTick      = "PASSIVE_TICK"
	eventGameSaved        = "GAME_SAVED"
	eventGameLoaded       = "GAME_LOADED"
	eventGameReset        = "GAME_RESET"
	eventSaveCorrupt      = "SAVE_CORRUPT"
)

// Reconstructor rebuilds game history from the event log.
// This is used for:
// 1. The "welcome back" recap after being away
// 2. Auditing and debugging
type Reconstructor struct {
	eventRepo EventRepository
	now       func() time.Time
}

// NewReconstructor creates a new recap builder.
func NewReconstructor(eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{eventRepo: eventRepo, now: time.Now}
}

// Recap holds the totals of a game since a point in time.
type Recap struct {
	GameID           string           `json:"game_id"`
	Since            time.Time        `json:"since"`
	Events           int              `json:"events"`
	Clicks           int64            `json:"clicks"`
	CookiesClicked   float64          `json:"cookies_clicked"`
	CookiesGenerated float64          `json:"cookies_generated"`
	Purchases        map[string]int64 `json:"purchases"`
	Spent            map[string]int64 `json:"spent"`
	Rejected         int64            `json:"rejected"`
	Saves            int64            `json:"saves"`
	Loads            int64            `json:"loads"`
	Resets           int64            `json:"resets"`
	CorruptSaves     int64            `json:"corrupt_saves"`
	Lines            []RecapEvent     `json:"lines"`
}

// RecapEvent is a simplified event for the recap screen.
type RecapEvent struct {
	Timestamp string `json:"timestamp"`
	EventType string `json:"event_type"`
	Summary   string `json:"summary"` // Human-readable description
	Impact    string `json:"impact"`  // "POSITIVE", "NEGATIVE", "NEUTRAL"
}

// Recap replays the persisted events of gameID recorded at or after since.
// A zero since means the whole history.
func (r *Reconstructor) Recap(ctx context.Context, gameID string, since time.Time) (*Recap, error) {
	var (
		evs []GameEvent
		err error
	)
	if since.IsZero() {
		evs, err = r.eventRepo.GetByGameID(ctx, gameID)
	} else {
		evs, err = r.eventRepo.GetSince(ctx, gameID, since)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game events: %w", err)
	}

	recap := &Recap{
		GameID:    gameID,
		Since:     since,
		Events:    len(evs),
		Purchases: make(map[string]int64),
		Spent:     make(map[string]int64),
	}
	for _, e := range evs {
		r.applyEvent(recap, e)
	}
	recap.Lines = append(r.summaryLines(recap), recap.Lines...)
	return recap, nil
}

// applyEvent folds one event into the totals. Only events worth a line of
// their own get one; clicks and ticks are summarised.
func (r *Reconstructor) applyEvent(recap *Recap, e GameEvent) {
	switch e.EventType {
	case eventClick:
		recap.Clicks++
		recap.CookiesClicked += number(e.Payload, "amount")
	case eventPassiveTick:
		recap.CookiesGenerated += number(e.Payload, "earned")
	case eventPurchase:
		recap.Purchases[e.TargetID]++
		cost := int64(number(e.Payload, "cost"))
		recap.Spent[e.TargetID] += cost
		recap.Lines = append(recap.Lines, r.line(e,
			fmt.Sprintf("Bought %s #%d for %s cookies.", e.TargetID,
				int64(number(e.Payload, "count")), humanize.Comma(cost)),
			"POSITIVE"))
	case eventPurchaseRejected:
		recap.Rejected++
	case eventGameSaved:
		recap.Saves++
	case eventGameLoaded:
		recap.Loads++
		recap.Lines = append(recap.Lines, r.line(e,
			fmt.Sprintf("Game loaded with %s cookies.", humanize.Comma(int64(number(e.Payload, "currency")))),
			"NEUTRAL"))
	case eventGameReset:
		recap.Resets++
		recap.Lines = append(recap.Lines, r.line(e, "All progress was reset.", "NEGATIVE"))
	case eventSaveCorrupt:
		recap.CorruptSaves++
		recap.Lines = append(recap.Lines, r.line(e, "A corrupt save was discarded.", "NEGATIVE"))
	}
}

func (r *Reconstructor) summaryLines(recap *Recap) []RecapEvent {
	window := "since the beginning"
	if !recap.Since.IsZero() {
		window = "since " + humanize.RelTime(recap.Since, r.now(), "ago", "from now")
	}

	lines := []RecapEvent{{
		EventType: "SUMMARY",
		Summary: fmt.Sprintf("%s clicks baked %s cookies %s.",
			humanize.Comma(recap.Clicks), humanize.Commaf(recap.CookiesClicked), window),
		Impact: "POSITIVE",
	}}
	if recap.CookiesGenerated > 0 {
		lines = append(lines, RecapEvent{
			EventType: "SUMMARY",
			Summary:   fmt.Sprintf("Generators baked %s cookies.", humanize.Commaf(recap.CookiesGenerated)),
			Impact:    "POSITIVE",
		})
	}

	kinds := make([]string, 0, len(recap.Spent))
	for k := range recap.Spent {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		lines = append(lines, RecapEvent{
			EventType: "SUMMARY",
			Summary: fmt.Sprintf("%s: %d bought, %s cookies spent.",
				k, recap.Purchases[k], humanize.Comma(recap.Spent[k])),
			Impact: "NEUTRAL",
		})
	}
	return lines
}

func (r *Reconstructor) line(e GameEvent, summary, impact string) RecapEvent {
	return RecapEvent{
		Timestamp: humanize.RelTime(e.Timestamp, r.now(), "ago", "from now"),
		EventType: e.EventType,
		Summary:   summary,
		Impact:    impact,
	}
}

// number reads a JSON number out of a flattened payload.
func number(payload map[string]interface{}, key string) float64 {
	if v, ok := payload[key].(float64); ok {
		return v
	}
	return 0
}
