// Package sim drives scripted sessions against the engine and checks the
// economy invariants after every step.
package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"reflect"

	"github.com/MRamiBalles/CookieClicker/internal/domain/economy"
	"github.com/MRamiBalles/CookieClicker/internal/domain/upgrade"
	"github.com/MRamiBalles/CookieClicker/internal/engine"
	"github.com/MRamiBalles/CookieClicker/internal/events"
	"github.com/MRamiBalles/CookieClicker/internal/infra/storage"
	"github.com/MRamiBalles/CookieClicker/internal/platform/logger"
	"github.com/MRamiBalles/CookieClicker/internal/platform/metrics"
)

// Result captures the outcome of each scenario.
type Result struct {
	ScenarioName string
	Steps        int
	Passed       bool
	Reason       string
	Final        economy.Snapshot
}

// Runner executes scenarios over one catalog.
type Runner struct {
	catalog upgrade.Catalog
	seed    int64
	steps   int
	logger  *logger.Logger
	results []Result
}

// NewRunner creates the harness. A nil catalog means the built-in one.
func NewRunner(catalog upgrade.Catalog, seed int64, steps int, log *logger.Logger) *Runner {
	if catalog == nil {
		catalog = upgrade.DefaultCatalog()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{catalog: catalog, seed: seed, steps: steps, logger: log}
}

// session is one engine over a throwaway save slot.
type session struct {
	eng   *engine.Engine
	store *storage.MemorySaveRepository
	prev  *economy.State
}

func (r *Runner) newSession(store *storage.MemorySaveRepository) *session {
	if store == nil {
		store = storage.NewMemorySaveRepository()
	}
	eng := engine.NewEngine(engine.Config{Catalog: r.catalog, Metrics: metrics.New()},
		store, events.NewEventLog(nil), logger.Discard())
	return &session{eng: eng, store: store}
}

// RunAll executes every scenario and returns their results.
func (r *Runner) RunAll(ctx context.Context) []Result {
	scenarios := []struct {
		name string
		run  func(ctx context.Context) (*session, error)
	}{
		{"click-only accrual", r.clickOnly},
		{"greedy cheapest buyer", r.greedyBuyer},
		{"random intent storm", r.randomStorm},
		{"save/load every step", r.saveLoadRoundTrip},
	}

	for _, sc := range scenarios {
		r.logger.Info("SIM: running " + sc.name)
		s, err := sc.run(ctx)
		res := Result{ScenarioName: sc.name, Steps: r.steps, Passed: err == nil, Reason: "all invariants held"}
		if err != nil {
			res.Reason = err.Error()
			r.logger.Error("SIM FAILED: " + sc.name + ": " + err.Error())
		}
		if s != nil {
			res.Final = s.eng.Snapshot()
		}
		r.results = append(r.results, res)
	}
	return r.results
}

// GetResults returns all results so far.
func (r *Runner) GetResults() []Result {
	return r.results
}

func (r *Runner) clickOnly(ctx context.Context) (*session, error) {
	s := r.newSession(nil)
	for i := 1; i <= r.steps; i++ {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		s.eng.Click()
		if got := s.eng.Snapshot().Currency; got != float64(i) {
			return s, fmt.Errorf("step %d: currency %v after %d clicks", i, got, i)
		}
		if err := r.check(s); err != nil {
			return s, fmt.Errorf("step %d: %w", i, err)
		}
	}
	return s, nil
}

// greedyBuyer clicks and always buys the cheapest affordable upgrade, letting
// passive generation run in between.
func (r *Runner) greedyBuyer(ctx context.Context) (*session, error) {
	s := r.newSession(nil)
	for i := 1; i <= r.steps; i++ {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		s.eng.Click()
		s.eng.Tick(0.5)

		snap := s.eng.Snapshot()
		var cheapest *economy.UpgradeView
		for j := range snap.Upgrades {
			v := &snap.Upgrades[j]
			if v.Affordable && (cheapest == nil || v.Cost < cheapest.Cost) {
				cheapest = v
			}
		}
		if cheapest != nil {
			ok, err := s.eng.Purchase(cheapest.Kind)
			if err != nil || !ok {
				return s, fmt.Errorf("step %d: affordable %s not bought (ok=%v err=%v)", i, cheapest.Kind, ok, err)
			}
		}
		if err := r.check(s); err != nil {
			return s, fmt.Errorf("step %d: %w", i, err)
		}
	}
	return s, nil
}

func (r *Runner) randomStorm(ctx context.Context) (*session, error) {
	s := r.newSession(nil)
	rng := rand.New(rand.NewSource(r.seed))
	for i := 1; i <= r.steps; i++ {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		if err := r.randomIntent(ctx, s, rng); err != nil {
			return s, fmt.Errorf("step %d: %w", i, err)
		}
		if err := r.check(s); err != nil {
			return s, fmt.Errorf("step %d: %w", i, err)
		}
	}
	return s, nil
}

// saveLoadRoundTrip saves after every intent and checks that a second engine
// loading the same slot sees an identical game.
func (r *Runner) saveLoadRoundTrip(ctx context.Context) (*session, error) {
	s := r.newSession(nil)
	rng := rand.New(rand.NewSource(r.seed + 1))
	for i := 1; i <= r.steps; i++ {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		if err := r.randomIntent(ctx, s, rng); err != nil {
			return s, fmt.Errorf("step %d: %w", i, err)
		}
		if err := s.eng.RequestSave(ctx); err != nil {
			return s, fmt.Errorf("step %d: save: %w", i, err)
		}

		loaded := r.newSession(s.store)
		if err := loaded.eng.Load(ctx); err != nil {
			return s, fmt.Errorf("step %d: load: %w", i, err)
		}
		if want, got := s.eng.State(), loaded.eng.State(); !reflect.DeepEqual(want, got) {
			return s, fmt.Errorf("step %d: loaded state differs: want %+v got %+v", i, want, got)
		}
		if err := r.check(s); err != nil {
			return s, fmt.Errorf("step %d: %w", i, err)
		}
	}
	return s, nil
}

func (r *Runner) randomIntent(ctx context.Context, s *session, rng *rand.Rand) error {
	kinds := r.catalog.Kinds()
	switch n := rng.Intn(100); {
	case n < 60:
		s.eng.Click()
	case n < 85:
		kind := kinds[rng.Intn(len(kinds))]
		if _, err := s.eng.Purchase(kind); err != nil {
			return err
		}
	case n < 97:
		s.eng.Tick(rng.Float64() * 3)
	default:
		if _, err := s.eng.Purchase("unknown"); err == nil {
			return fmt.Errorf("unknown kind was accepted")
		}
	}
	return nil
}

// check verifies the invariants of the current state against the catalog and
// the previous step.
func (r *Runner) check(s *session) error {
	st := s.eng.State()
	defer func() { s.prev = st }()

	if st.Currency < 0 || math.IsNaN(st.Currency) || math.IsInf(st.Currency, 0) {
		return fmt.Errorf("currency %v out of range", st.Currency)
	}

	yield := economy.DefaultClickYield
	var rate float64
	for _, u := range st.Upgrades {
		base, ok := r.catalog.Get(u.Kind)
		if !ok {
			return fmt.Errorf("%s is not in the catalog", u.Kind)
		}
		if u.Effect == upgrade.EffectClick {
			yield += u.Level * u.Increment
		}
		rate += u.Rate()

		want := base.Cost
		for n := int64(0); n < u.Count(); n++ {
			want = upgrade.NextCost(want, base.PriceMultiplier)
		}
		if u.Cost != want {
			return fmt.Errorf("%s costs %d after %d purchases, want %d", u.Kind, u.Cost, u.Count(), want)
		}
		if s.prev != nil {
			if p, ok := s.prev.Upgrade(u.Kind); ok && u.Cost < p.Cost {
				return fmt.Errorf("%s cost dropped from %d to %d", u.Kind, p.Cost, u.Cost)
			}
		}
	}
	if st.ClickYield != yield {
		return fmt.Errorf("click yield %d, want %d", st.ClickYield, yield)
	}
	if math.Abs(st.PassiveRate-rate) > 1e-9 {
		return fmt.Errorf("passive rate %v, want %v", st.PassiveRate, rate)
	}
	return nil
}
