// Package economy is the cookie economy: currency accrual, upgrade purchases,
// passive generation and the save blob round-trip.
// This package is PURE and must NOT import any infrastructure packages.
// A State is not safe for concurrent use; the engine serialises access.
package economy

import (
	"errors"
	"fmt"
	"math"

	"github.com/MRamiBalles/CookieClicker/internal/domain/upgrade"
)

var (
	// ErrUnknownUpgradeKind is returned when a purchase names a kind that is
	// not in the catalog.
	ErrUnknownUpgradeKind = errors.New("unknown upgrade kind")
	// ErrCorruptSave is returned when a save blob cannot be turned into a
	// valid game state.
	ErrCorruptSave = errors.New("corrupt save")
)

// DefaultClickYield is what a single click grants in a fresh game.
const DefaultClickYield int64 = 1

// State holds every number of one game.
type State struct {
	Currency    float64
	ClickYield  int64
	PassiveRate float64
	Upgrades    []upgrade.Upgrade

	catalog upgrade.Catalog
}

// New creates a fresh game from a catalog. A nil catalog means the built-in one.
func New(catalog upgrade.Catalog) *State {
	if catalog == nil {
		catalog = upgrade.DefaultCatalog()
	}
	s := &State{catalog: catalog.Clone()}
	s.Reset()
	return s
}

// Catalog returns the catalog the state falls back to.
func (s *State) Catalog() upgrade.Catalog {
	return s.catalog.Clone()
}

// Reset throws away all progress.
func (s *State) Reset() {
	s.Currency = 0
	s.ClickYield = DefaultClickYield
	s.Upgrades = []upgrade.Upgrade(s.catalog.Clone())
	s.recalculatePassiveRate()
}

// Click grants the current click yield and returns it.
func (s *State) Click() int64 {
	s.Currency += float64(s.ClickYield)
	return s.ClickYield
}

// Purchase buys one unit of the given kind. It reports false without error
// when the balance does not cover the cost.
func (s *State) Purchase(kind upgrade.Kind) (bool, error) {
	i := s.indexOf(kind)
	if i < 0 {
		return false, fmt.Errorf("%w: %q", ErrUnknownUpgradeKind, kind)
	}
	u := &s.Upgrades[i]
	if s.Currency < float64(u.Cost) {
		return false, nil
	}

	s.Currency -= float64(u.Cost)
	switch u.Effect {
	case upgrade.EffectClick:
		u.Level++
		s.ClickYield += u.Increment
	case upgrade.EffectGenerator:
		u.Owned++
	}
	u.Cost = upgrade.NextCost(u.Cost, u.PriceMultiplier)
	s.recalculatePassiveRate()
	return true, nil
}

// Tick adds passive generation for the elapsed seconds and returns the amount
// earned.
func (s *State) Tick(elapsedSeconds float64) float64 {
	if s.PassiveRate <= 0 || !(elapsedSeconds > 0) || math.IsInf(elapsedSeconds, 0) {
		return 0
	}
	earned := s.PassiveRate * elapsedSeconds
	s.Currency += earned
	return earned
}

// Upgrade returns the current entry for a kind.
func (s *State) Upgrade(kind upgrade.Kind) (upgrade.Upgrade, bool) {
	i := s.indexOf(kind)
	if i < 0 {
		return upgrade.Upgrade{}, false
	}
	return s.Upgrades[i], true
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.Upgrades = append([]upgrade.Upgrade(nil), s.Upgrades...)
	c.catalog = s.catalog.Clone()
	return &c
}

func (s *State) indexOf(kind upgrade.Kind) int {
	for i := range s.Upgrades {
		if s.Upgrades[i].Kind == kind {
			return i
		}
	}
	return -1
}

func (s *State) recalculatePassiveRate() {
	var rate float64
	for _, u := range s.Upgrades {
		rate += u.Rate()
	}
	s.PassiveRate = rate
}
