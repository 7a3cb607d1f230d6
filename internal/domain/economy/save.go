package economy

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/MRamiBalles/CookieClicker/internal/domain/upgrade"
)

// SaveKey is the storage key saves are written under unless configured otherwise.
const SaveKey = "cookieClickerSave"

// saveBlob is the persisted layout. Pointer fields tell a missing value apart
// from a zero one so older saves load with defaults instead of failing.
type saveBlob struct {
	Currency    *float64                      `json:"currency"`
	ClickYield  *int64                        `json:"clickYield"`
	PassiveRate *float64                      `json:"passiveRate"`
	Upgrades    map[upgrade.Kind]savedUpgrade `json:"upgrades"`
}

type savedUpgrade struct {
	Cost            *int64   `json:"cost"`
	PriceMultiplier *float64 `json:"priceMultiplier,omitempty"`
	Level           *int64   `json:"level,omitempty"`
	Increment       *int64   `json:"increment,omitempty"`
	Owned           *int64   `json:"owned,omitempty"`
	RatePerUnit     *float64 `json:"ratePerUnit,omitempty"`
}

// Serialize encodes the full state for persistence.
func (s *State) Serialize() ([]byte, error) {
	blob := saveBlob{
		Currency:    ptr(s.Currency),
		ClickYield:  ptr(s.ClickYield),
		PassiveRate: ptr(s.PassiveRate),
		Upgrades:    make(map[upgrade.Kind]savedUpgrade, len(s.Upgrades)),
	}
	for _, u := range s.Upgrades {
		su := savedUpgrade{
			Cost:            ptr(u.Cost),
			PriceMultiplier: ptr(u.PriceMultiplier),
		}
		switch u.Effect {
		case upgrade.EffectClick:
			su.Level = ptr(u.Level)
			su.Increment = ptr(u.Increment)
		case upgrade.EffectGenerator:
			su.Owned = ptr(u.Owned)
			su.RatePerUnit = ptr(u.RatePerUnit)
		}
		blob.Upgrades[u.Kind] = su
	}

	data, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to encode save: %w", err)
	}
	return data, nil
}

// Deserialize replaces the state with the contents of a save blob. Missing
// fields fall back to defaults. On error the state is left untouched.
//
// Kinds in the blob that the catalog no longer knows are dropped. The passive
// rate is always recomputed from the loaded upgrades.
func (s *State) Deserialize(data []byte) error {
	var blob saveBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSave, err)
	}

	next := New(s.catalog)
	if blob.Currency != nil {
		next.Currency = *blob.Currency
	}
	// A zero yield is treated as missing, like any other falsy click power.
	if blob.ClickYield != nil && *blob.ClickYield != 0 {
		next.ClickYield = *blob.ClickYield
	}
	for i := range next.Upgrades {
		u := &next.Upgrades[i]
		saved, ok := blob.Upgrades[u.Kind]
		if !ok {
			continue
		}
		overlay(u, saved)
	}
	next.recalculatePassiveRate()

	if err := next.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSave, err)
	}

	*s = *next
	return nil
}

func overlay(u *upgrade.Upgrade, saved savedUpgrade) {
	if saved.Cost != nil {
		u.Cost = *saved.Cost
	}
	if saved.PriceMultiplier != nil {
		u.PriceMultiplier = *saved.PriceMultiplier
	}
	switch u.Effect {
	case upgrade.EffectClick:
		if saved.Level != nil {
			u.Level = *saved.Level
		}
		if saved.Increment != nil {
			u.Increment = *saved.Increment
		}
	case upgrade.EffectGenerator:
		if saved.Owned != nil {
			u.Owned = *saved.Owned
		}
		if saved.RatePerUnit != nil {
			u.RatePerUnit = *saved.RatePerUnit
		}
	}
}

func (s *State) validate() error {
	if s.Currency < 0 || math.IsNaN(s.Currency) || math.IsInf(s.Currency, 0) {
		return fmt.Errorf("currency %v out of range", s.Currency)
	}
	if s.ClickYield < DefaultClickYield {
		return fmt.Errorf("click yield %d below %d", s.ClickYield, DefaultClickYield)
	}
	if err := upgrade.Catalog(s.Upgrades).Validate(); err != nil {
		return err
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
