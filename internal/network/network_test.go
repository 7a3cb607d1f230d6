package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/CookieClicker/internal/engine"
	"github.com/MRamiBalles/CookieClicker/internal/events"
	"github.com/MRamiBalles/CookieClicker/internal/infra/storage"
	"github.com/MRamiBalles/CookieClicker/internal/platform/logger"
	"github.com/MRamiBalles/CookieClicker/internal/platform/metrics"
)

const gameID = "cookieClickerSave"

type fixture struct {
	engine *engine.Engine
	saves  *storage.MemorySaveRepository
	ledger *storage.MemoryEventRepository
	log    *events.EventLog
	mux    *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	saves := storage.NewMemorySaveRepository()
	ledger := storage.NewMemoryEventRepository()
	el := events.NewEventLog(storage.NewPersisterAdapter(ledger, gameID))
	eng := engine.NewEngine(engine.Config{Metrics: metrics.New()}, saves, el, logger.Discard())

	mux := http.NewServeMux()
	NewControlAPI(eng, logger.Discard()).RegisterRoutes(mux)
	NewLedgerAPI(el, storage.NewReconstructor(ledger), gameID, logger.Discard()).RegisterRoutes(mux)
	return &fixture{engine: eng, saves: saves, ledger: ledger, log: el, mux: mux}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestControlAPI(t *testing.T) {
	f := newFixture(t)

	code, state := f.do(t, http.MethodGet, "/api/state", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0.0, state["currency"])
	assert.Equal(t, "0.0", state["displayRate"])

	code, _ = f.do(t, http.MethodGet, "/api/click", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)

	code, click := f.do(t, http.MethodPost, "/api/click", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, click["amount"])

	code, body := f.do(t, http.MethodPost, "/api/purchase", `{"kind":"factory"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "unknown upgrade kind", body["error"])

	code, _ = f.do(t, http.MethodPost, "/api/purchase", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(t, http.MethodPost, "/api/purchase", `{"kind":"clickPower"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["purchased"])

	for i := 0; i < 9; i++ {
		f.engine.Click()
	}
	code, body = f.do(t, http.MethodPost, "/api/purchase", `{"kind":"clickPower"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["purchased"])
	assert.Equal(t, 2.0, body["snapshot"].(map[string]interface{})["clickYield"])

	code, _ = f.do(t, http.MethodPost, "/api/save", "")
	assert.Equal(t, http.StatusOK, code)
	_, ok, err := f.saves.Load(context.Background(), gameID)
	require.NoError(t, err)
	assert.True(t, ok)

	code, _ = f.do(t, http.MethodPost, "/api/reset", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, int64(2), f.engine.Snapshot().ClickYield)

	code, body = f.do(t, http.MethodPost, "/api/reset", `{"confirm":true}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, body["clickYield"])
	_, ok, err = f.saves.Load(context.Background(), gameID)
	require.NoError(t, err)
	assert.False(t, ok)

	code, body = f.do(t, http.MethodGet, "/api/catalog", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["upgrades"], 3)
}

func TestLedgerAPI(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 12; i++ {
		f.engine.Click()
	}
	_, err := f.engine.Purchase("clickPower")
	require.NoError(t, err)

	code, body := f.do(t, http.MethodGet, "/api/events?limit=5", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 13.0, body["total"])
	assert.Len(t, body["events"], 5)

	code, body = f.do(t, http.MethodGet, "/api/events?type=PURCHASE", "")
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, body["events"], 1)
	assert.Equal(t, "PURCHASE", body["filtered_by"])

	code, _ = f.do(t, http.MethodGet, "/api/events?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(t, http.MethodGet, "/api/events/stats", "")
	assert.Equal(t, http.StatusOK, code)
	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, 12.0, stats["CLICK"])
	assert.Equal(t, 1.0, stats["PURCHASE"])

	code, body = f.do(t, http.MethodGet, "/api/recap?since=1h", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 12.0, body["clicks"])
	assert.Equal(t, 10.0, body["spent"].(map[string]interface{})["clickPower"])

	code, _ = f.do(t, http.MethodGet, "/api/recap?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRecapUnavailableWithoutPersistence(t *testing.T) {
	mux := http.NewServeMux()
	NewLedgerAPI(events.NewEventLog(nil), nil, gameID, logger.Discard()).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recap", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	got, err := parseSince("", now)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = parseSince("90m", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-90*time.Minute), got)

	got, err = parseSince("2026-03-01T00:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = parseSince("soon", now)
	assert.Error(t, err)
}

// --- WebSocket ---

func startHub(t *testing.T) (*engine.Engine, *Hub, string) {
	t.Helper()
	eng := engine.NewEngine(engine.Config{Metrics: metrics.New()}, storage.NewMemorySaveRepository(), nil, logger.Discard())
	hub := NewHub(eng, HubConfig{AllowAnyOrigin: true, Metrics: metrics.New()}, logger.Discard())
	eng.Subscribe(hub.Observer())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWs)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return eng, hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skips messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestWebSocketIntents(t *testing.T) {
	eng, _, url := startHub(t)
	conn := dial(t, url)

	first := readUntil(t, conn, MessageSnapshot)
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, 0.0, first.Snapshot.Currency)

	require.NoError(t, conn.WriteJSON(Intent{Type: IntentClick}))
	ack := readUntil(t, conn, MessageClickAck)
	assert.Equal(t, int64(1), ack.Amount)
	snap := readUntil(t, conn, MessageSnapshot)
	assert.Equal(t, int64(1), snap.Snapshot.DisplayCurrency)

	require.NoError(t, conn.WriteJSON(Intent{Type: IntentPurchase, Kind: "factory"}))
	errMsg := readUntil(t, conn, MessageError)
	assert.Contains(t, errMsg.Error, "unknown upgrade kind")

	require.NoError(t, conn.WriteJSON(Intent{Type: IntentReset}))
	require.NoError(t, conn.WriteJSON(Intent{Type: IntentSync}))
	synced := readUntil(t, conn, MessageSnapshot)
	assert.Equal(t, int64(1), synced.Snapshot.DisplayCurrency)

	require.NoError(t, conn.WriteJSON(Intent{Type: IntentReset, Confirm: true}))
	reset := readUntil(t, conn, MessageSnapshot)
	assert.Equal(t, 0.0, reset.Snapshot.Currency)
	assert.Equal(t, 0.0, eng.Snapshot().Currency)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	assert.Equal(t, "malformed intent", readUntil(t, conn, MessageError).Error)

	require.NoError(t, conn.WriteJSON(Intent{Type: "DANCE"}))
	assert.Contains(t, readUntil(t, conn, MessageError).Error, "DANCE")
}

func TestWebSocketBroadcastsToEveryClient(t *testing.T) {
	eng, hub, url := startHub(t)
	a := dial(t, url)
	b := dial(t, url)
	readUntil(t, a, MessageSnapshot)
	readUntil(t, b, MessageSnapshot)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, a.WriteJSON(Intent{Type: IntentClick}))
	assert.Equal(t, int64(1), readUntil(t, b, MessageClickAck).Amount)

	// Changes made outside the socket reach clients too.
	eng.Click()
	snap := readUntil(t, b, MessageSnapshot)
	for snap.Snapshot.DisplayCurrency < 2 {
		snap = readUntil(t, b, MessageSnapshot)
	}
	assert.Equal(t, int64(2), snap.Snapshot.DisplayCurrency)

	a.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
}
