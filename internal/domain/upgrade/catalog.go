package upgrade

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the ordered list of upgrades a game starts with.
type Catalog []Upgrade

// DefaultCatalog returns the built-in upgrades.
func DefaultCatalog() Catalog {
	return Catalog{
		{
			Kind:            KindClickPower,
			Name:            "Click Power",
			Effect:          EffectClick,
			Cost:            10,
			PriceMultiplier: 1.5,
			Increment:       1,
		},
		{
			Kind:            KindAutoClicker,
			Name:            "Auto Clicker",
			Effect:          EffectGenerator,
			Cost:            50,
			PriceMultiplier: 1.5,
			RatePerUnit:     1,
		},
		{
			Kind:            KindGrandma,
			Name:            "Grandma",
			Effect:          EffectGenerator,
			Cost:            100,
			PriceMultiplier: 1.5,
			RatePerUnit:     5,
		},
	}
}

// Clone returns an independent copy of the catalog.
func (c Catalog) Clone() Catalog {
	if c == nil {
		return nil
	}
	out := make(Catalog, len(c))
	copy(out, c)
	return out
}

// Get returns the catalog entry for a kind.
func (c Catalog) Get(kind Kind) (Upgrade, bool) {
	for _, u := range c {
		if u.Kind == kind {
			return u, true
		}
	}
	return Upgrade{}, false
}

// Kinds lists the kinds in catalog order.
func (c Catalog) Kinds() []Kind {
	kinds := make([]Kind, 0, len(c))
	for _, u := range c {
		kinds = append(kinds, u.Kind)
	}
	return kinds
}

// Validate checks that every entry can take part in the economy.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return errors.New("catalog is empty")
	}
	seen := make(map[Kind]bool, len(c))
	for i, u := range c {
		if u.Kind == "" {
			return fmt.Errorf("upgrade %d: missing kind", i)
		}
		if seen[u.Kind] {
			return fmt.Errorf("upgrade %q: duplicate kind", u.Kind)
		}
		seen[u.Kind] = true

		if !u.Effect.Valid() {
			return fmt.Errorf("upgrade %q: unknown effect %q", u.Kind, u.Effect)
		}
		if u.Cost < 0 {
			return fmt.Errorf("upgrade %q: negative cost", u.Kind)
		}
		if !(u.PriceMultiplier > 1) || math.IsInf(u.PriceMultiplier, 0) {
			return fmt.Errorf("upgrade %q: price multiplier must be greater than 1", u.Kind)
		}
		if u.Level < 0 || u.Owned < 0 {
			return fmt.Errorf("upgrade %q: negative purchase count", u.Kind)
		}
		switch u.Effect {
		case EffectClick:
			if u.Increment < 0 {
				return fmt.Errorf("upgrade %q: negative increment", u.Kind)
			}
		case EffectGenerator:
			if u.RatePerUnit < 0 || math.IsNaN(u.RatePerUnit) || math.IsInf(u.RatePerUnit, 0) {
				return fmt.Errorf("upgrade %q: invalid rate per unit", u.Kind)
			}
		}
	}
	return nil
}

// catalogFile is the YAML layout of a catalog file.
type catalogFile struct {
	Upgrades Catalog `yaml:"upgrades"`
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := f.Upgrades.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return f.Upgrades, nil
}

// LoadCatalog reads a catalog file. An empty path yields the built-in catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}
