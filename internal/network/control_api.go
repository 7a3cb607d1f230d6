// Package network - control_api.go
// ControlAPI - REST surface for scripted clients and dashboards.
//
// Every endpoint drives the same engine as the WebSocket clients, so changes
// made here are broadcast to them too.
package network

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MRamiBalles/CookieClicker/internal/domain/economy"
	"github.com/MRamiBalles/CookieClicker/internal/domain/upgrade"
	"github.com/MRamiBalles/CookieClicker/internal/platform/logger"
)

// ControlAPI handles HTTP game intents.
type ControlAPI struct {
	game   Game
	logger *logger.Logger
}

// NewControlAPI creates a new control handler.
func NewControlAPI(game Game, log *logger.Logger) *ControlAPI {
	return &ControlAPI{
		game:   game,
		logger: log,
	}
}

// PurchaseRequest is the payload for buying an upgrade.
type PurchaseRequest struct {
	Kind upgrade.Kind `json:"kind"`
}

// PurchaseResponse reports the outcome of a purchase.
type PurchaseResponse struct {
	Purchased bool             `json:"purchased"`
	Snapshot  economy.Snapshot `json:"snapshot"`
}

// ResetRequest must carry an explicit confirmation.
type ResetRequest struct {
	Confirm bool `json:"confirm"`
}

// HandleState returns the display snapshot.
// GET /api/state
func (ca *ControlAPI) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ca.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ca.jsonSuccess(w, ca.game.Snapshot())
}

// HandleClick performs one click.
// POST /api/click
func (ca *ControlAPI) HandleClick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ca.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ack := ca.game.Click()
	ca.jsonSuccess(w, map[string]interface{}{
		"amount":   ack.Amount,
		"snapshot": ca.game.Snapshot(),
	})
}

// HandlePurchase buys one upgrade.
// POST /api/purchase {"kind":"grandma"}
func (ca *ControlAPI) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ca.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ca.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Kind == "" {
		ca.jsonError(w, "Missing kind", http.StatusBadRequest)
		return
	}

	ok, err := ca.game.Purchase(req.Kind)
	if err != nil {
		if errors.Is(err, economy.ErrUnknownUpgradeKind) {
			ca.jsonError(w, economy.ErrUnknownUpgradeKind.Error(), http.StatusNotFound)
			return
		}
		ca.jsonError(w, "Purchase failed", http.StatusInternalServerError)
		return
	}

	ca.jsonSuccess(w, PurchaseResponse{Purchased: ok, Snapshot: ca.game.Snapshot()})
}

// HandleSave persists the game now.
// POST /api/save
func (ca *ControlAPI) HandleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ca.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := ca.game.RequestSave(r.Context()); err != nil {
		ca.jsonError(w, "Save failed", http.StatusInternalServerError)
		return
	}
	ca.jsonSuccess(w, map[string]interface{}{"saved": true})
}

// HandleReset wipes the game.
// POST /api/reset {"confirm":true}
func (ca *ControlAPI) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ca.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ca.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Confirm {
		ca.jsonError(w, "Reset requires confirm=true", http.StatusBadRequest)
		return
	}

	ca.logger.Event("RESET_REQUEST", "HTTP", r.RemoteAddr)
	if err := ca.game.RequestReset(r.Context()); err != nil {
		ca.jsonError(w, "Reset could not clear the saved game", http.StatusInternalServerError)
		return
	}
	ca.jsonSuccess(w, ca.game.Snapshot())
}

// HandleCatalog lists the upgrades the game was built from.
// GET /api/catalog
func (ca *ControlAPI) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ca.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ca.jsonSuccess(w, map[string]interface{}{"upgrades": ca.game.Catalog()})
}

// RegisterRoutes sets up the control API routes.
func (ca *ControlAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/state", ca.HandleState)
	mux.HandleFunc("/api/click", ca.HandleClick)
	mux.HandleFunc("/api/purchase", ca.HandlePurchase)
	mux.HandleFunc("/api/save", ca.HandleSave)
	mux.HandleFunc("/api/reset", ca.HandleReset)
	mux.HandleFunc("/api/catalog", ca.HandleCatalog)
}

// jsonError sends an error response.
func (ca *ControlAPI) jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// jsonSuccess sends a success response.
func (ca *ControlAPI) jsonSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, data)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
