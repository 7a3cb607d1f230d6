// Package main - agitator
// Load generator: many concurrent players spamming intents over WebSocket.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/CookieClicker/internal/domain/upgrade"
	"github.com/MRamiBalles/CookieClicker/internal/network"
)

// Config for the agitator
type Config struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
	SaveEvery      int
	ResultsPath    string
}

// Stats is shared by every client goroutine.
type Stats struct {
	sent         atomic.Int64
	received     atomic.Int64
	snapshots    atomic.Int64
	serverErrors atomic.Int64
	errors       atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (s *Stats) observeWrite(d time.Duration) {
	s.sent.Add(1)
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

func (s *Stats) observeMessage(msg network.ServerMessage) {
	s.received.Add(1)
	switch msg.Type {
	case network.MessageSnapshot:
		s.snapshots.Add(1)
	case network.MessageError:
		s.serverErrors.Add(1)
	}
}

// Results is the JSON report written at the end of a run.
type Results struct {
	Clients          int     `json:"clients"`
	Interval         string  `json:"interval"`
	Duration         string  `json:"duration"`
	MessagesSent     int64   `json:"messages_sent"`
	MessagesReceived int64   `json:"messages_received"`
	Snapshots        int64   `json:"snapshots"`
	ServerErrors     int64   `json:"server_errors"`
	Errors           int64   `json:"errors"`
	ThroughputPerSec float64 `json:"throughput_per_sec"`
	LatencyP50       string  `json:"write_latency_p50"`
	LatencyP99       string  `json:"write_latency_p99"`
	LatencyMax       string  `json:"write_latency_max"`
	Verdict          string  `json:"verdict"`
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	numClients := flag.Int("clients", 50, "Number of concurrent clients")
	interval := flag.Duration("interval", 100*time.Millisecond, "Action interval per client")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	saveEvery := flag.Int("save-every", 200, "Send a SAVE roughly once per this many intents (0 disables)")
	out := flag.String("out", "stress_test_results.json", "Where to write the JSON results")
	flag.Parse()

	cfg := Config{
		ServerURL:      *serverURL,
		NumClients:     *numClients,
		ActionInterval: *interval,
		TestDuration:   *duration,
		SaveEvery:      *saveEvery,
		ResultsPath:    *out,
	}

	fmt.Println("=========================================")
	fmt.Println("AGITATOR - Cookie Stress Test Tool")
	fmt.Println("=========================================")
	fmt.Printf("Server: %s\nClients: %d\nInterval: %v\nDuration: %v\n",
		cfg.ServerURL, cfg.NumClients, cfg.ActionInterval, cfg.TestDuration)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.TestDuration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	stats := &Stats{latencies: make([]time.Duration, 0, 10000)}
	run(ctx, cfg, stats)

	results := summarize(stats, cfg)
	printResults(results)
	if err := writeResults(cfg.ResultsPath, results); err != nil {
		log.Printf("Failed to write results: %v", err)
	}
}

func run(ctx context.Context, cfg Config, stats *Stats) {
	var wg sync.WaitGroup
	kinds := upgrade.DefaultCatalog().Kinds()

	for i := 0; i < cfg.NumClients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
			if err := runClient(ctx, cfg, stats, rng, kinds); err != nil {
				log.Printf("Client %d: %v", id, err)
				stats.errors.Add(1)
			}
		}(i)

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}
	fmt.Printf("All %d clients started\n\n", cfg.NumClients)

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("Progress: sent=%s recv=%s errors=%d\n",
					humanize.Comma(stats.sent.Load()), humanize.Comma(stats.received.Load()), stats.errors.Load())
			}
		}
	}()

	wg.Wait()
}

func runClient(ctx context.Context, cfg Config, stats *Stats, rng *rand.Rand, kinds []upgrade.Kind) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer conn.Close()

	go func() {
		for {
			var msg network.ServerMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			stats.observeMessage(msg)
		}
	}()

	ticker := time.NewTicker(cfg.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			start := time.Now()
			if err := conn.WriteJSON(randomIntent(rng, kinds, cfg.SaveEvery)); err != nil {
				return fmt.Errorf("write failed: %w", err)
			}
			stats.observeWrite(time.Since(start))
		}
	}
}

// randomIntent favours clicks. RESET is never sent since it would wipe the
// shared game for every client.
func randomIntent(rng *rand.Rand, kinds []upgrade.Kind, saveEvery int) network.Intent {
	if saveEvery > 0 && rng.Intn(saveEvery) == 0 {
		return network.Intent{Type: network.IntentSave}
	}
	switch n := rng.Intn(100); {
	case n < 80:
		return network.Intent{Type: network.IntentClick}
	case n < 95:
		return network.Intent{Type: network.IntentPurchase, Kind: kinds[rng.Intn(len(kinds))]}
	default:
		return network.Intent{Type: network.IntentSync}
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(p*float64(len(sorted)-1))]
}

func summarize(stats *Stats, cfg Config) Results {
	stats.mu.Lock()
	lat := append([]time.Duration(nil), stats.latencies...)
	stats.mu.Unlock()
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })

	r := Results{
		Clients:          cfg.NumClients,
		Interval:         cfg.ActionInterval.String(),
		Duration:         cfg.TestDuration.String(),
		MessagesSent:     stats.sent.Load(),
		MessagesReceived: stats.received.Load(),
		Snapshots:        stats.snapshots.Load(),
		ServerErrors:     stats.serverErrors.Load(),
		Errors:           stats.errors.Load(),
		LatencyP50:       percentile(lat, 0.50).String(),
		LatencyP99:       percentile(lat, 0.99).String(),
	}
	if len(lat) > 0 {
		r.LatencyMax = lat[len(lat)-1].String()
	}
	r.ThroughputPerSec = float64(r.MessagesSent) / cfg.TestDuration.Seconds()

	errRate := float64(r.Errors) / float64(r.MessagesSent+1)
	expected := float64(cfg.NumClients) * cfg.TestDuration.Seconds() * 5
	switch {
	case r.Errors == 0 && float64(r.MessagesSent) > expected:
		r.Verdict = "PASSED"
	case errRate < 0.05:
		r.Verdict = "WARNING"
	default:
		r.Verdict = "FAILED"
	}
	return r
}

func printResults(r Results) {
	fmt.Println("\n=========================================")
	fmt.Println("STRESS TEST RESULTS")
	fmt.Println("=========================================")
	fmt.Printf("Messages Sent:     %s\n", humanize.Comma(r.MessagesSent))
	fmt.Printf("Messages Received: %s\n", humanize.Comma(r.MessagesReceived))
	fmt.Printf("Snapshots:         %s\n", humanize.Comma(r.Snapshots))
	fmt.Printf("Server Errors:     %d\n", r.ServerErrors)
	fmt.Printf("Errors:            %d\n", r.Errors)
	fmt.Printf("Throughput:        %.2f msg/sec\n", r.ThroughputPerSec)
	fmt.Printf("Write latency:     p50 %s  p99 %s  max %s\n", r.LatencyP50, r.LatencyP99, r.LatencyMax)
	fmt.Println("-----------------------------------------")
	fmt.Println("TEST " + r.Verdict)
}

func writeResults(path string, r Results) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("\nResults saved to %s\n", path)
	return nil
}
