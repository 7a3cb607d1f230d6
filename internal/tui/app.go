// Package tui is a terminal front end for a local game.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/MRamiBalles/CookieClicker/internal/domain/economy"
	"github.com/MRamiBalles/CookieClicker/internal/domain/upgrade"
	"github.com/MRamiBalles/CookieClicker/internal/engine"
	"github.com/MRamiBalles/CookieClicker/internal/platform/logger"
)

const (
	frameInterval = 50 * time.Millisecond
	saveTimeout   = 5 * time.Second
)

// Game is the engine surface the terminal drives.
type Game interface {
	Click() economy.ClickAck
	Purchase(kind upgrade.Kind) (bool, error)
	RequestSave(ctx context.Context) error
	RequestReset(ctx context.Context) error
	Snapshot() economy.Snapshot
}

// App owns the screen and translates input into game intents.
type App struct {
	screen tcell.Screen
	game   Game
	sound  Sound
	logger *logger.Logger
	now    func() time.Time

	mu           sync.Mutex
	snap         economy.Snapshot
	floaters     []floater
	status       string
	confirmReset bool
	lastSave     time.Time
}

// NewApp creates the terminal app. The screen must already be initialised.
func NewApp(screen tcell.Screen, game Game, sound Sound, log *logger.Logger) *App {
	if sound == nil {
		sound = Silent{}
	}
	if log == nil {
		log = logger.Discard()
	}
	screen.EnableMouse()
	return &App{
		screen: screen,
		game:   game,
		sound:  sound,
		logger: log,
		now:    time.Now,
		snap:   game.Snapshot(),
	}
}

// Observer keeps the display in sync with the engine.
func (a *App) Observer() engine.Observer {
	return engine.Observer{
		OnSnapshot: func(s economy.Snapshot) {
			a.mu.Lock()
			if s.Seq >= a.snap.Seq {
				a.snap = s
			}
			a.mu.Unlock()
		},
		OnClick: func(ack economy.ClickAck) {
			a.mu.Lock()
			a.floaters = append(a.floaters, floater{text: fmt.Sprintf("+%d", ack.Amount), born: a.now()})
			a.mu.Unlock()
			a.sound.Click()
		},
	}
}

// Run draws and handles input until the player quits or ctx is cancelled.
// A final save is attempted either way.
func (a *App) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	input := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case input <- ev:
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	a.Draw()
	for {
		select {
		case <-ctx.Done():
			a.save()
			return nil
		case ev := <-input:
			if !a.HandleEvent(ev) {
				return nil
			}
			a.Draw()
		case <-ticker.C:
			a.Draw()
		}
	}
}

// HandleEvent applies one input event. It returns false when the app should
// exit.
func (a *App) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return a.handleKey(ev)
	case *tcell.EventMouse:
		if ev.Buttons()&tcell.Button1 != 0 {
			if x, y := ev.Position(); inCookie(x, y) {
				a.game.Click()
			}
		}
	case *tcell.EventResize:
		a.screen.Sync()
	}
	return true
}

func (a *App) handleKey(ev *tcell.EventKey) bool {
	a.mu.Lock()
	confirming := a.confirmReset
	a.confirmReset = false
	a.mu.Unlock()

	if confirming {
		if ev.Key() == tcell.KeyRune && (ev.Rune() == 'y' || ev.Rune() == 'Y') {
			a.reset()
		} else {
			a.setStatus("Reset cancelled.")
		}
		return true
	}

	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		a.save()
		return false
	case tcell.KeyEnter:
		a.game.Click()
		return true
	case tcell.KeyRune:
	default:
		return true
	}

	switch r := ev.Rune(); {
	case r == ' ':
		a.game.Click()
	case r >= '1' && r <= '9':
		a.purchase(int(r - '1'))
	case r == 's' || r == 'S':
		a.save()
	case r == 'r' || r == 'R':
		a.mu.Lock()
		a.confirmReset = true
		a.mu.Unlock()
	case r == 'q' || r == 'Q':
		a.save()
		return false
	}
	return true
}

func (a *App) purchase(index int) {
	snap := a.game.Snapshot()
	if index >= len(snap.Upgrades) {
		return
	}
	u := snap.Upgrades[index]

	ok, err := a.game.Purchase(u.Kind)
	switch {
	case errors.Is(err, economy.ErrUnknownUpgradeKind):
		a.setStatus("No such upgrade.")
	case err != nil:
		a.setStatus("Purchase failed.")
	case !ok:
		a.setStatus(fmt.Sprintf("Not enough cookies for %s.", u.Name))
	default:
		a.setStatus(fmt.Sprintf("Bought %s.", u.Name))
	}
}

func (a *App) save() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := a.game.RequestSave(ctx); err != nil {
		a.logger.Errorf("Save failed: %v", err)
		a.setStatus("Save failed.")
		return
	}
	a.mu.Lock()
	a.lastSave = a.now()
	a.status = ""
	a.mu.Unlock()
}

func (a *App) reset() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := a.game.RequestReset(ctx); err != nil {
		a.logger.Errorf("Reset failed: %v", err)
		a.setStatus("Progress reset, but the old save could not be removed.")
		return
	}
	a.mu.Lock()
	a.lastSave = time.Time{}
	a.mu.Unlock()
	a.setStatus("Progress reset.")
}

func (a *App) setStatus(s string) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

// Draw renders the current frame and drops expired floaters.
func (a *App) Draw() {
	now := a.now()

	a.mu.Lock()
	live := a.floaters[:0]
	for _, f := range a.floaters {
		if now.Sub(f.born) < floaterLife {
			live = append(live, f)
		}
	}
	a.floaters = live
	f := frame{
		snap:         a.snap,
		floaters:     append([]floater(nil), live...),
		status:       a.status,
		confirmReset: a.confirmReset,
		lastSave:     a.lastSave,
		now:          now,
	}
	a.mu.Unlock()

	render(a.screen, f)
}
