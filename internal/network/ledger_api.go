// Package network - ledger_api.go
// LedgerAPI - read-only JSON export of the event ledger.
//
// Recent events come from the in-memory window; the recap replays the
// persisted history.
package network

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MRamiBalles/CookieClicker/internal/events"
	"github.com/MRamiBalles/CookieClicker/internal/infra/storage"
	"github.com/MRamiBalles/CookieClicker/internal/platform/logger"
)

// DefaultEventLimit caps /api/events when no limit is given.
const DefaultEventLimit = 100

// LedgerAPI provides the ledger endpoints.
type LedgerAPI struct {
	eventLog      *events.EventLog
	reconstructor *storage.Reconstructor
	gameID        string
	logger        *logger.Logger
}

// NewLedgerAPI creates a ledger handler. reconstructor may be nil when the
// ledger is not persisted, in which case /api/recap is unavailable.
func NewLedgerAPI(el *events.EventLog, reconstructor *storage.Reconstructor, gameID string, log *logger.Logger) *LedgerAPI {
	return &LedgerAPI{
		eventLog:      el,
		reconstructor: reconstructor,
		gameID:        gameID,
		logger:        log,
	}
}

// EventsResponse is the API response for the event listing.
type EventsResponse struct {
	SessionID   string             `json:"session_id"`
	Total       int                `json:"total"`
	Returned    int                `json:"returned"`
	FilteredBy  string             `json:"filtered_by,omitempty"`
	GeneratedAt string             `json:"generated_at"`
	Events      []events.GameEvent `json:"events"`
}

// HandleEvents returns the newest ledger events.
// GET /api/events?type=PURCHASE&limit=50
func (la *LedgerAPI) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		la.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := DefaultEventLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			la.jsonError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	eventType := r.URL.Query().Get("type")

	var evs []events.GameEvent
	if eventType != "" {
		evs = la.eventLog.GetByType(events.EventType(eventType))
		if len(evs) > limit {
			evs = evs[len(evs)-limit:]
		}
	} else {
		evs = la.eventLog.Recent(limit)
	}
	if evs == nil {
		evs = []events.GameEvent{}
	}

	writeJSON(w, http.StatusOK, EventsResponse{
		SessionID:   la.eventLog.SessionID(),
		Total:       la.eventLog.Total(),
		Returned:    len(evs),
		FilteredBy:  eventType,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      evs,
	})
}

// HandleStats returns counts per event type over the in-memory window.
// GET /api/events/stats
func (la *LedgerAPI) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		la.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	retained := la.eventLog.Replay()
	stats := map[string]int{}
	for _, e := range retained {
		stats[string(e.Type)]++
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"total_events": la.eventLog.Total(),
		"retained":     len(retained),
		"stats":        stats,
	})
}

// HandleRecap replays the persisted ledger.
// GET /api/recap?since=2026-01-02T15:04:05Z or ?since=1h
func (la *LedgerAPI) HandleRecap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		la.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if la.reconstructor == nil {
		la.jsonError(w, "Ledger is not persisted", http.StatusServiceUnavailable)
		return
	}

	since, err := parseSince(r.URL.Query().Get("since"), time.Now())
	if err != nil {
		la.jsonError(w, "Invalid since", http.StatusBadRequest)
		return
	}

	recap, err := la.reconstructor.Recap(r.Context(), la.gameID, since)
	if err != nil {
		la.logger.Errorf("Recap failed: %v", err)
		la.jsonError(w, "Recap failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recap)
}

// RegisterRoutes sets up the ledger API routes.
func (la *LedgerAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/events", la.HandleEvents)
	mux.HandleFunc("/api/events/stats", la.HandleStats)
	mux.HandleFunc("/api/recap", la.HandleRecap)
}

// parseSince accepts an RFC3339 timestamp or a duration back from now.
// Empty means the whole history.
func parseSince(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	return time.Parse(time.RFC3339, s)
}

// jsonError sends an error response.
func (la *LedgerAPI) jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
