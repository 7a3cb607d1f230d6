package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/CookieClicker/internal/domain/economy"
	"github.com/MRamiBalles/CookieClicker/internal/engine"
	"github.com/MRamiBalles/CookieClicker/internal/infra/storage"
	"github.com/MRamiBalles/CookieClicker/internal/platform/logger"
	"github.com/MRamiBalles/CookieClicker/internal/platform/metrics"
)

type countingSound struct{ clicks int }

func (c *countingSound) Click() { c.clicks++ }
func (c *countingSound) Close() {}

type harness struct {
	screen tcell.SimulationScreen
	eng    *engine.Engine
	store  *storage.MemorySaveRepository
	app    *App
	sound  *countingSound
	clock  time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	t.Cleanup(screen.Fini)
	screen.SetSize(80, 24)

	store := storage.NewMemorySaveRepository()
	eng := engine.NewEngine(engine.Config{Metrics: metrics.New()}, store, nil, logger.Discard())
	h := &harness{screen: screen, eng: eng, store: store, sound: &countingSound{}}
	h.clock = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	h.app = NewApp(screen, eng, h.sound, logger.Discard())
	h.app.now = func() time.Time { return h.clock }
	eng.Subscribe(h.app.Observer())
	return h
}

func (h *harness) key(t *testing.T, r rune) bool {
	t.Helper()
	return h.app.HandleEvent(tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone))
}

func (h *harness) screenText() string {
	h.app.Draw()
	w, ht := h.screen.Size()
	var b strings.Builder
	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			r, _, _, _ := h.screen.GetContent(x, y)
			b.WriteRune(r)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (h *harness) saved() bool {
	_, ok, _ := h.store.Load(context.Background(), economy.SaveKey)
	return ok
}

func TestClickInputs(t *testing.T) {
	h := newHarness(t)

	assert.True(t, h.key(t, ' '))
	assert.True(t, h.app.HandleEvent(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)))
	assert.True(t, h.app.HandleEvent(tcell.NewEventMouse(cookieX+1, cookieY+1, tcell.Button1, tcell.ModNone)))
	assert.True(t, h.app.HandleEvent(tcell.NewEventMouse(70, 20, tcell.Button1, tcell.ModNone)))

	assert.Equal(t, int64(3), h.eng.Snapshot().DisplayCurrency)
	assert.Equal(t, 3, h.sound.clicks)

	text := h.screenText()
	assert.Contains(t, text, "Cookies: 3")
	assert.Contains(t, text, "+1")
}

func TestObserverKeepsNewestSnapshot(t *testing.T) {
	h := newHarness(t)
	obs := h.app.Observer()

	obs.OnSnapshot(economy.Snapshot{Seq: 9, DisplayCurrency: 90})
	obs.OnSnapshot(economy.Snapshot{Seq: 4, DisplayCurrency: 40})
	assert.Contains(t, h.screenText(), "Cookies: 90")
}

func TestFloatersExpire(t *testing.T) {
	h := newHarness(t)
	h.key(t, ' ')
	assert.Contains(t, h.screenText(), "+1")

	h.clock = h.clock.Add(floaterLife)
	assert.NotContains(t, h.screenText(), "+1")
	assert.Empty(t, h.app.floaters)
}

func TestPurchaseKeys(t *testing.T) {
	h := newHarness(t)

	h.key(t, '1')
	assert.Contains(t, h.screenText(), "Not enough cookies for Click Power.")

	for i := 0; i < 10; i++ {
		h.key(t, ' ')
	}
	h.key(t, '1')
	text := h.screenText()
	assert.Contains(t, text, "Bought Click Power.")
	assert.Contains(t, text, "per click: 2")
	assert.Contains(t, text, "[1] Click Power    cost 15")

	// Digits past the catalog are ignored.
	assert.True(t, h.key(t, '9'))
}

func TestSaveKey(t *testing.T) {
	h := newHarness(t)
	h.key(t, ' ')
	h.key(t, 's')

	assert.True(t, h.saved())
	assert.Contains(t, h.screenText(), "Saved now")
}

func TestResetNeedsConfirmation(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 5; i++ {
		h.key(t, ' ')
	}
	h.key(t, 's')

	h.key(t, 'r')
	assert.Contains(t, h.screenText(), "Reset ALL progress? y/n")
	h.key(t, 'n')
	assert.Equal(t, int64(5), h.eng.Snapshot().DisplayCurrency)
	assert.Contains(t, h.screenText(), "Reset cancelled.")

	h.key(t, 'r')
	h.key(t, 'y')
	assert.Equal(t, 0.0, h.eng.Snapshot().Currency)
	assert.False(t, h.saved())
	assert.Contains(t, h.screenText(), "Progress reset.")
}

func TestQuitSaves(t *testing.T) {
	h := newHarness(t)
	h.key(t, ' ')
	assert.False(t, h.key(t, 'q'))
	assert.True(t, h.saved())

	h2 := newHarness(t)
	assert.False(t, h2.app.HandleEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)))
	assert.True(t, h2.saved())
}

func TestRunStopsOnContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.app.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.True(t, h.saved())
}
