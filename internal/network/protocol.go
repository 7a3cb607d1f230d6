// Package network exposes a game over WebSocket and a JSON control API.
package network

import (
	"context"

	"github.com/MRamiBalles/CookieClicker/internal/domain/economy"
	"github.com/MRamiBalles/CookieClicker/internal/domain/upgrade"
)

// Game is the engine surface the network layer drives.
type Game interface {
	Click() economy.ClickAck
	Purchase(kind upgrade.Kind) (bool, error)
	RequestSave(ctx context.Context) error
	RequestReset(ctx context.Context) error
	Snapshot() economy.Snapshot
	Catalog() upgrade.Catalog
}

// Client intent types.
const (
	IntentClick    = "CLICK"
	IntentPurchase = "PURCHASE"
	IntentSave     = "SAVE"
	IntentReset    = "RESET"
	IntentSync     = "SYNC"
)

// Server message types.
const (
	MessageSnapshot = "SNAPSHOT"
	MessageClickAck = "CLICK_ACK"
	MessageError    = "ERROR"
)

// Intent is an incoming command from a client.
type Intent struct {
	Type    string       `json:"type"`
	Kind    upgrade.Kind `json:"kind,omitempty"`    // PURCHASE
	Confirm bool         `json:"confirm,omitempty"` // RESET
}

// ServerMessage is pushed to clients.
type ServerMessage struct {
	Type     string            `json:"type"`
	Snapshot *economy.Snapshot `json:"snapshot,omitempty"`
	Amount   int64             `json:"amount,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func snapshotMessage(s economy.Snapshot) ServerMessage {
	return ServerMessage{Type: MessageSnapshot, Snapshot: &s}
}

func errorMessage(err string) ServerMessage {
	return ServerMessage{Type: MessageError, Error: err}
}
