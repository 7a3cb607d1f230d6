// Package metrics provides observability for the game processes.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// latency accumulates durations without locking.
type latency struct {
	count atomic.Int64
	sum   atomic.Int64 // nanoseconds
	max   atomic.Int64
	last  atomic.Int64 // unix nanos of the latest observation
}

func (l *latency) observe(d time.Duration) {
	l.count.Add(1)
	l.sum.Add(int64(d))
	for {
		cur := l.max.Load()
		if int64(d) <= cur || l.max.CompareAndSwap(cur, int64(d)) {
			break
		}
	}
	l.last.Store(time.Now().UnixNano())
}

// LatencyStats summarises a latency series in milliseconds.
type LatencyStats struct {
	Count        int64   `json:"count"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	MaxLatencyMs float64 `json:"max_latency_ms"`
	Last         string  `json:"last,omitempty"`
}

func (l *latency) stats() LatencyStats {
	s := LatencyStats{
		Count:        l.count.Load(),
		MaxLatencyMs: float64(l.max.Load()) / 1e6,
	}
	if s.Count > 0 {
		s.AvgLatencyMs = float64(l.sum.Load()) / float64(s.Count) / 1e6
	}
	if last := l.last.Load(); last != 0 {
		s.Last = time.Unix(0, last).UTC().Format(time.RFC3339)
	}
	return s
}

// Collector gathers performance and gameplay metrics.
type Collector struct {
	ticks latency
	saves latency

	clicks            atomic.Int64
	purchases         atomic.Int64
	purchasesRejected atomic.Int64
	resets            atomic.Int64

	saveErrors    atomic.Int64
	corruptLoads  atomic.Int64
	eventsWritten atomic.Int64
	eventErrors   atomic.Int64

	wsActive      atomic.Int64
	wsMessagesIn  atomic.Int64
	wsMessagesOut atomic.Int64
	wsErrors      atomic.Int64

	started time.Time
}

var collector = New()

// New creates an empty collector.
func New() *Collector {
	return &Collector{started: time.Now()}
}

// Get returns the process-wide collector.
func Get() *Collector {
	return collector
}

// RecordTick records a passive generation cycle.
func (c *Collector) RecordTick(d time.Duration) { c.ticks.observe(d) }

// RecordClick records a click.
func (c *Collector) RecordClick() { c.clicks.Add(1) }

// RecordPurchase records a purchase attempt and whether it went through.
func (c *Collector) RecordPurchase(ok bool) {
	if ok {
		c.purchases.Add(1)
		return
	}
	c.purchasesRejected.Add(1)
}

// RecordReset records a reset.
func (c *Collector) RecordReset() { c.resets.Add(1) }

// RecordSave records a write of the save blob.
func (c *Collector) RecordSave(d time.Duration, err error) {
	if err != nil {
		c.saveErrors.Add(1)
		return
	}
	c.saves.observe(d)
}

// RecordCorruptLoad records a save blob that could not be loaded.
func (c *Collector) RecordCorruptLoad() { c.corruptLoads.Add(1) }

// RecordEventWrite records an event written to the ledger store.
func (c *Collector) RecordEventWrite(err error) {
	if err != nil {
		c.eventErrors.Add(1)
		return
	}
	c.eventsWritten.Add(1)
}

// RecordWSConnection adds delta to the open connection gauge.
func (c *Collector) RecordWSConnection(delta int64) { c.wsActive.Add(delta) }

// RecordWSMessage counts one frame in the given direction.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		c.wsMessagesIn.Add(1)
		return
	}
	c.wsMessagesOut.Add(1)
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() { c.wsErrors.Add(1) }

// GameplayStats counts player actions.
type GameplayStats struct {
	Clicks            int64 `json:"clicks"`
	Purchases         int64 `json:"purchases"`
	PurchasesRejected int64 `json:"purchases_rejected"`
	Resets            int64 `json:"resets"`
}

// PersistenceStats covers saves and the event ledger.
type PersistenceStats struct {
	Saves         LatencyStats `json:"saves"`
	SaveErrors    int64        `json:"save_errors"`
	CorruptLoads  int64        `json:"corrupt_loads"`
	EventsWritten int64        `json:"events_written"`
	EventErrors   int64        `json:"event_write_errors"`
}

// WebSocketStats covers the realtime transport.
type WebSocketStats struct {
	ActiveConnections int64 `json:"active_connections"`
	MessagesIn        int64 `json:"messages_in"`
	MessagesOut       int64 `json:"messages_out"`
	Errors            int64 `json:"errors"`
}

// Stats is a point-in-time copy of every metric.
type Stats struct {
	UptimeSeconds float64          `json:"uptime_seconds"`
	Tick          LatencyStats     `json:"tick"`
	Gameplay      GameplayStats    `json:"gameplay"`
	Persistence   PersistenceStats `json:"persistence"`
	WebSocket     WebSocketStats   `json:"websocket"`
}

// Snapshot returns the current metrics.
func (c *Collector) Snapshot() Stats {
	return Stats{
		UptimeSeconds: time.Since(c.started).Seconds(),
		Tick:          c.ticks.stats(),
		Gameplay: GameplayStats{
			Clicks:            c.clicks.Load(),
			Purchases:         c.purchases.Load(),
			PurchasesRejected: c.purchasesRejected.Load(),
			Resets:            c.resets.Load(),
		},
		Persistence: PersistenceStats{
			Saves:         c.saves.stats(),
			SaveErrors:    c.saveErrors.Load(),
			CorruptLoads:  c.corruptLoads.Load(),
			EventsWritten: c.eventsWritten.Load(),
			EventErrors:   c.eventErrors.Load(),
		},
		WebSocket: WebSocketStats{
			ActiveConnections: c.wsActive.Load(),
			MessagesIn:        c.wsMessagesIn.Load(),
			MessagesOut:       c.wsMessagesOut.Load(),
			Errors:            c.wsErrors.Load(),
		},
	}
}

// Handler serves the snapshot as JSON.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// promFamily is one metric in the text exposition format.
type promFamily struct {
	name, help, kind string
	samples          []promSample
}

type promSample struct {
	labels string
	value  float64
}

func single(v int64) []promSample { return []promSample{{value: float64(v)}} }

func (c *Collector) families() []promFamily {
	s := c.Snapshot()
	return []promFamily{
		{"cookie_tick_count", "Total passive generation cycles", "counter", single(s.Tick.Count)},
		{"cookie_tick_latency_max_ms", "Maximum tick latency", "gauge", []promSample{{value: s.Tick.MaxLatencyMs}}},
		{"cookie_clicks_total", "Total clicks", "counter", single(s.Gameplay.Clicks)},
		{"cookie_purchases_total", "Purchase attempts by outcome", "counter", []promSample{
			{`outcome="bought"`, float64(s.Gameplay.Purchases)},
			{`outcome="rejected"`, float64(s.Gameplay.PurchasesRejected)},
		}},
		{"cookie_resets_total", "Total game resets", "counter", single(s.Gameplay.Resets)},
		{"cookie_saves_total", "Total save blobs written", "counter", single(s.Persistence.Saves.Count)},
		{"cookie_save_errors_total", "Total failed saves", "counter", single(s.Persistence.SaveErrors)},
		{"cookie_corrupt_loads_total", "Save blobs discarded as corrupt", "counter", single(s.Persistence.CorruptLoads)},
		{"cookie_events_written_total", "Ledger events persisted", "counter", single(s.Persistence.EventsWritten)},
		{"cookie_ws_connections", "Active WebSocket connections", "gauge", single(s.WebSocket.ActiveConnections)},
		{"cookie_ws_messages_total", "Total WebSocket messages", "counter", []promSample{
			{`direction="in"`, float64(s.WebSocket.MessagesIn)},
			{`direction="out"`, float64(s.WebSocket.MessagesOut)},
		}},
	}
}

func writeFamily(w io.Writer, f promFamily) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.kind)
	for _, s := range f.samples {
		if s.labels == "" {
			fmt.Fprintf(w, "%s %g\n", f.name, s.value)
		} else {
			fmt.Fprintf(w, "%s{%s} %g\n", f.name, s.labels, s.value)
		}
	}
	fmt.Fprintln(w)
}

// PrometheusHandler serves the metrics in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		for _, f := range c.families() {
			writeFamily(w, f)
		}
	}
}
