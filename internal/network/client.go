package network

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/CookieClicker/internal/domain/economy"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// Time allowed for a save or reset triggered by a client.
	intentTimeout = 5 * time.Second
)

// Client is one WebSocket connection. The hub owns its send channel.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, hub.cfg.SendBuffer),
	}
}

// ReadPump pumps intents from the websocket connection into the game.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.metrics.RecordWSError()
				c.hub.logger.Warnf("WebSocket read error: %v", err)
			}
			break
		}
		c.hub.metrics.RecordWSMessage(true)

		var intent Intent
		if err := json.Unmarshal(message, &intent); err != nil {
			c.hub.logger.Warnf("Failed to parse intent from WebSocket: %v", err)
			c.hub.sendTo(c, errorMessage("malformed intent"))
			continue
		}

		c.handleIntent(intent)
	}
}

func (c *Client) handleIntent(intent Intent) {
	game := c.hub.game

	switch intent.Type {
	case IntentClick:
		// The ack and snapshot arrive through the hub observer.
		game.Click()

	case IntentPurchase:
		if _, err := game.Purchase(intent.Kind); err != nil {
			if errors.Is(err, economy.ErrUnknownUpgradeKind) {
				c.hub.sendTo(c, errorMessage(err.Error()))
				return
			}
			c.hub.logger.Errorf("Purchase of %q failed: %v", intent.Kind, err)
			c.hub.sendTo(c, errorMessage("purchase failed"))
		}

	case IntentSave:
		ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
		defer cancel()
		if err := game.RequestSave(ctx); err != nil {
			c.hub.sendTo(c, errorMessage("save failed"))
		}

	case IntentReset:
		if !intent.Confirm {
			c.hub.logger.Warn("Ignoring unconfirmed RESET intent")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
		defer cancel()
		if err := game.RequestReset(ctx); err != nil {
			c.hub.sendTo(c, errorMessage("reset could not clear the saved game"))
		}

	case IntentSync:
		c.hub.sendTo(c, snapshotMessage(game.Snapshot()))

	default:
		c.hub.logger.Warn("Unknown intent type: " + intent.Type)
		c.hub.sendTo(c, errorMessage("unknown intent type "+intent.Type))
	}
}

// WritePump pumps messages from the hub to the websocket connection.
// Each message goes out as its own frame.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.metrics.RecordWSError()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
