// Package engine is the application shell around the cookie economy.
//
// ARCHITECTURAL RULE: the economy core never sees a goroutine, a clock or a
// storage backend. The Engine owns the only State, serialises every access
// with one mutex and tells observers about changes after releasing it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MRamiBalles/CookieClicker/internal/domain/economy"
	"github.com/MRamiBalles/CookieClicker/internal/domain/upgrade"
	"github.com/MRamiBalles/CookieClicker/internal/events"
	"github.com/MRamiBalles/CookieClicker/internal/platform/logger"
	"github.com/MRamiBalles/CookieClicker/internal/platform/metrics"
)

// Default periods for the two background triggers.
const (
	DefaultTickInterval = 1 * time.Second
	DefaultSaveInterval = 10 * time.Second
)

// SaveStore is the key/value slot the save blob lives in.
type SaveStore interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Store(ctx context.Context, key string, blob []byte) error
	Delete(ctx context.Context, key string) error
}

// Observer receives display updates. Either callback may be nil.
type Observer struct {
	OnSnapshot func(economy.Snapshot)
	OnClick    func(economy.ClickAck)
}

// Config tunes an Engine.
type Config struct {
	Catalog      upgrade.Catalog // nil means the built-in catalog
	SaveKey      string
	TickInterval time.Duration
	SaveInterval time.Duration
	Metrics      *metrics.Collector // nil means the process-wide collector
}

func (c Config) withDefaults() Config {
	if c.SaveKey == "" {
		c.SaveKey = economy.SaveKey
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.SaveInterval <= 0 {
		c.SaveInterval = DefaultSaveInterval
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Get()
	}
	return c
}

// Engine is the central orchestrator: one game, its ledger and its save slot.
type Engine struct {
	mu    sync.Mutex
	state *economy.State

	cfg      Config
	store    SaveStore
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector

	// version counts mutations and stamps snapshots; guarded by mu.
	version uint64

	// notifyMu serialises deliveries so observers see snapshots in order.
	notifyMu  sync.Mutex
	delivered uint64

	obsMu     sync.RWMutex
	observers []Observer
}

// NewEngine creates an engine over a fresh game. store may be nil, in which
// case nothing is persisted.
func NewEngine(cfg Config, store SaveStore, eventLog *events.EventLog, log *logger.Logger) *Engine {
	cfg = cfg.withDefaults()
	if eventLog == nil {
		eventLog = events.NewEventLog(nil)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Engine{
		state:    economy.New(cfg.Catalog),
		cfg:      cfg,
		store:    store,
		eventLog: eventLog,
		logger:   log,
		metrics:  cfg.Metrics,
	}
}

// SaveKey is the storage key the blob is written under.
func (e *Engine) SaveKey() string {
	return e.cfg.SaveKey
}

// GetEventLog exposes the ledger for the read-side APIs.
func (e *Engine) GetEventLog() *events.EventLog {
	return e.eventLog
}

// Catalog returns the upgrade catalog the game was built from.
func (e *Engine) Catalog() upgrade.Catalog {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Catalog()
}

// Subscribe registers an observer for every later change.
func (e *Engine) Subscribe(o Observer) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, o)
}

// Load restores the persisted game. A missing blob is not an error. A corrupt
// one is discarded and reported as economy.ErrCorruptSave; the current game
// keeps running either way.
func (e *Engine) Load(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	blob, ok, err := e.store.Load(ctx, e.cfg.SaveKey)
	if err != nil {
		e.logger.Errorf("Save load failed: %v", err)
		return fmt.Errorf("failed to load save %q: %w", e.cfg.SaveKey, err)
	}
	if !ok {
		e.logger.Info("No saved game found, starting fresh.")
		return nil
	}

	e.mu.Lock()
	err = e.state.Deserialize(blob)
	snap := e.snapshotLocked(err == nil)
	e.mu.Unlock()

	payload := events.SavePayload{Key: e.cfg.SaveKey, Bytes: len(blob), Currency: snap.Currency}
	if err != nil {
		e.metrics.RecordCorruptLoad()
		e.logger.Warnf("Discarding corrupt save %q: %v", e.cfg.SaveKey, err)
		e.eventLog.Append(events.GameEvent{
			Type:     events.EventTypeSaveCorrupt,
			TargetID: e.cfg.SaveKey,
			Payload:  payload,
		})
		return err
	}

	e.eventLog.Append(events.GameEvent{
		Type:     events.EventTypeGameLoaded,
		TargetID: e.cfg.SaveKey,
		Payload:  payload,
	})
	e.logger.Event(string(events.EventTypeGameLoaded), events.ActorSystem,
		fmt.Sprintf("currency=%d rate=%s", snap.DisplayCurrency, snap.DisplayRate))
	e.notifySnapshot(snap)
	return nil
}

// Click grants the current click yield.
func (e *Engine) Click() economy.ClickAck {
	e.mu.Lock()
	amount := e.state.Click()
	snap := e.snapshotLocked(true)
	e.mu.Unlock()

	e.metrics.RecordClick()
	e.eventLog.Append(events.GameEvent{
		Type:    events.EventTypeClick,
		ActorID: events.ActorPlayer,
		Payload: events.ClickPayload{Amount: amount},
	})

	ack := economy.ClickAck{Amount: amount}
	e.notify(snap, &ack)
	return ack
}

// Purchase buys one unit of kind. Insufficient funds is (false, nil); an
// unknown kind wraps economy.ErrUnknownUpgradeKind and changes nothing.
func (e *Engine) Purchase(kind upgrade.Kind) (bool, error) {
	e.mu.Lock()
	before, _ := e.state.Upgrade(kind)
	ok, err := e.state.Purchase(kind)
	after, _ := e.state.Upgrade(kind)
	snap := e.snapshotLocked(err == nil)
	e.mu.Unlock()

	if err != nil {
		e.logger.Warnf("Purchase refused: %v", err)
		return false, err
	}

	e.metrics.RecordPurchase(ok)
	payload := events.PurchasePayload{
		Kind:     string(kind),
		Cost:     before.Cost,
		NextCost: after.Cost,
		Count:    after.Count(),
		Balance:  snap.Currency,
	}
	eventType := events.EventTypePurchaseRejected
	if ok {
		eventType = events.EventTypePurchase
		e.logger.Event(string(eventType), events.ActorPlayer,
			fmt.Sprintf("%s #%d for %d", kind, after.Count(), before.Cost))
	}
	e.eventLog.Append(events.GameEvent{
		Type:     eventType,
		ActorID:  events.ActorPlayer,
		TargetID: string(kind),
		Payload:  payload,
	})

	e.notifySnapshot(snap)
	return ok, nil
}

// Tick adds passive generation for elapsedSeconds and returns what was earned.
func (e *Engine) Tick(elapsedSeconds float64) float64 {
	start := time.Now()

	e.mu.Lock()
	earned := e.state.Tick(elapsedSeconds)
	rate := e.state.PassiveRate
	snap := e.snapshotLocked(earned > 0)
	e.mu.Unlock()

	e.metrics.RecordTick(time.Since(start))
	if earned <= 0 {
		return 0
	}

	e.eventLog.Append(events.GameEvent{
		Type:    events.EventTypePassiveTick,
		Payload: events.PassiveTickPayload{Elapsed: elapsedSeconds, Earned: earned, Rate: rate},
	})
	e.notifySnapshot(snap)
	return earned
}

// RequestSave serialises the game and writes it under the save key.
func (e *Engine) RequestSave(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	start := time.Now()

	e.mu.Lock()
	blob, err := e.state.Serialize()
	currency := e.state.Currency
	e.mu.Unlock()
	if err != nil {
		e.metrics.RecordSave(0, err)
		return fmt.Errorf("failed to serialize game: %w", err)
	}

	if err := e.store.Store(ctx, e.cfg.SaveKey, blob); err != nil {
		e.metrics.RecordSave(0, err)
		e.logger.Errorf("Save failed: %v", err)
		return fmt.Errorf("failed to store save %q: %w", e.cfg.SaveKey, err)
	}
	e.metrics.RecordSave(time.Since(start), nil)

	e.eventLog.Append(events.GameEvent{
		Type:     events.EventTypeGameSaved,
		TargetID: e.cfg.SaveKey,
		Payload:  events.SavePayload{Key: e.cfg.SaveKey, Bytes: len(blob), Currency: currency},
	})
	return nil
}

// RequestReset throws away all progress and the persisted blob. Confirmation
// is the caller's job.
func (e *Engine) RequestReset(ctx context.Context) error {
	e.mu.Lock()
	e.state.Reset()
	snap := e.snapshotLocked(true)
	e.mu.Unlock()

	e.metrics.RecordReset()
	e.eventLog.Append(events.GameEvent{
		Type:     events.EventTypeGameReset,
		ActorID:  events.ActorPlayer,
		TargetID: e.cfg.SaveKey,
	})
	e.logger.Event(string(events.EventTypeGameReset), events.ActorPlayer, "progress cleared")
	e.notifySnapshot(snap)

	if e.store == nil {
		return nil
	}
	if err := e.store.Delete(ctx, e.cfg.SaveKey); err != nil {
		e.logger.Errorf("Reset could not clear save: %v", err)
		return fmt.Errorf("failed to delete save %q: %w", e.cfg.SaveKey, err)
	}
	return nil
}

// Snapshot returns the current display snapshot.
func (e *Engine) Snapshot() economy.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(false)
}

// snapshotLocked stamps the snapshot with the version, bumping it first when
// the state changed. Callers hold mu.
func (e *Engine) snapshotLocked(changed bool) economy.Snapshot {
	if changed {
		e.version++
	}
	snap := e.state.Snapshot()
	snap.Seq = e.version
	return snap
}

// Serialize returns the save blob of the current game without storing it.
func (e *Engine) Serialize() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Serialize()
}

// Deserialize replaces the game with a blob. On error the game is unchanged.
func (e *Engine) Deserialize(blob []byte) error {
	e.mu.Lock()
	err := e.state.Deserialize(blob)
	snap := e.snapshotLocked(err == nil)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.notifySnapshot(snap)
	return nil
}

// State returns a deep copy of the game for inspection.
func (e *Engine) State() *economy.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Start spawns the passive generation and autosave tickers. Both stop when
// ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info("Starting cookie engine...")

	elapsed := e.cfg.TickInterval.Seconds()
	passive := NewTicker("passive", e.cfg.TickInterval, func(context.Context) {
		e.Tick(elapsed)
	}, e.logger)
	autosave := NewTicker("autosave", e.cfg.SaveInterval, func(ctx context.Context) {
		if err := e.RequestSave(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warnf("Autosave skipped: %v", err)
		}
	}, e.logger)

	go passive.Start(ctx)
	go autosave.Start(ctx)
}

func (e *Engine) notifySnapshot(snap economy.Snapshot) {
	e.notify(snap, nil)
}

// notify runs outside mu. Callers race to get here, so a snapshot older than
// one already delivered is dropped. Observers must not call the engine's
// mutating methods.
func (e *Engine) notify(snap economy.Snapshot, ack *economy.ClickAck) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	e.obsMu.RLock()
	defer e.obsMu.RUnlock()

	if ack != nil {
		for _, o := range e.observers {
			if o.OnClick != nil {
				o.OnClick(*ack)
			}
		}
	}
	if snap.Seq <= e.delivered {
		return
	}
	e.delivered = snap.Seq
	for _, o := range e.observers {
		if o.OnSnapshot != nil {
			o.OnSnapshot(snap)
		}
	}
}
