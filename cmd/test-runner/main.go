// Package main - test_runner.go
// Executable to run the scripted economy scenarios.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/CookieClicker/internal/domain/upgrade"
	"github.com/MRamiBalles/CookieClicker/internal/platform/logger"
	"github.com/MRamiBalles/CookieClicker/internal/sim"
)

func main() {
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for the storm scenarios")
	steps := flag.Int("steps", 2000, "Steps per scenario")
	catalogPath := flag.String("catalog", "", "YAML catalog to run against (default: built-in)")
	verbose := flag.Bool("v", false, "Log engine activity")
	flag.Parse()

	fmt.Println("COOKIE CLICKER - ECONOMY SCENARIO SUITE")
	fmt.Println("================================================")
	fmt.Printf("seed=%d steps=%d\n", *seed, *steps)

	catalog, err := upgrade.LoadCatalog(*catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
		os.Exit(2)
	}

	log := logger.Discard()
	if *verbose {
		log = logger.NewLogger()
	}

	runner := sim.NewRunner(catalog, *seed, *steps, log)
	results := runner.RunAll(context.Background())

	passed := 0
	failed := 0
	for _, r := range results {
		if r.Passed {
			passed++
			fmt.Printf("   PASS %-24s %s cookies, %s/s\n", r.ScenarioName,
				humanize.Comma(r.Final.DisplayCurrency), r.Final.DisplayRate)
		} else {
			failed++
			fmt.Printf("   FAIL %-24s after %d steps: %s\n", r.ScenarioName, r.Steps, r.Reason)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("   Passed: %d\n", passed)
	fmt.Printf("   Failed: %d\n", failed)

	if failed > 0 {
		fmt.Println("\nThe economy broke an invariant; rerun with the same -seed to reproduce.")
		os.Exit(1)
	}
	fmt.Println("\nAll economy invariants held.")
}
